package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/heitortanoue/fractalworker/pkg/protocol"
)

// WorkerLogger gerencia logs estruturados do worker
type WorkerLogger struct {
	workerName string
	logger     *log.Logger
}

// NewWorkerLogger cria um novo logger para o worker (stdout quando out == nil)
func NewWorkerLogger(workerName string, out io.Writer) *WorkerLogger {
	if out == nil {
		out = os.Stdout
	}
	logger := log.New(out, fmt.Sprintf("[%s] ", workerName), log.LstdFlags|log.Lmicroseconds)
	return &WorkerLogger{
		workerName: workerName,
		logger:     logger,
	}
}

// LogConnected registra uma conexão aberta com o distribuidor
func (l *WorkerLogger) LogConnected(runID, addr string) {
	l.logger.Printf("CONNECTED: run=%s server=%s connected_at=%d",
		runID, addr, time.Now().UnixMilli())
}

// LogRequestSent registra o envio do FragmentRequest
func (l *WorkerLogger) LogRequestSent(req protocol.FragmentRequest) {
	l.logger.Printf("REQUEST_SENT: worker_name=%s max_work_load=%d sent_at=%d",
		req.WorkerName, req.MaximalWorkLoad, time.Now().UnixMilli())
}

// LogTaskReceived registra uma tarefa recebida
func (l *WorkerLogger) LogTaskReceived(task protocol.FragmentTask) {
	kind := "none"
	if task.Fractal.Descriptor != nil {
		kind = string(task.Fractal.Kind())
	}
	l.logger.Printf("TASK_RECEIVED: id_offset=%d id_count=%d fractal=%s max_iteration=%d resolution=%dx%d received_at=%d",
		task.ID.Offset, task.ID.Count, kind, task.MaxIteration,
		task.Resolution.Nx, task.Resolution.Ny, time.Now().UnixMilli())
}

// LogTaskComputed registra o fim do cálculo de um fragmento
func (l *WorkerLogger) LogTaskComputed(pixels int, duration time.Duration) {
	l.logger.Printf("TASK_COMPUTED: pixels=%d duration_ms=%.2f computed_at=%d",
		pixels, float64(duration.Microseconds())/1000.0, time.Now().UnixMilli())
}

// LogResultSent registra o envio de um FragmentResult
func (l *WorkerLogger) LogResultSent(result protocol.FragmentResult, bytes uint64) {
	l.logger.Printf("RESULT_SENT: pixels_offset=%d pixels_count=%d bytes=%d sent_at=%d",
		result.Pixels.Offset, result.Pixels.Count, bytes, time.Now().UnixMilli())
}

// LogStateChange registra transições de estado
func (l *WorkerLogger) LogStateChange(from, to string) {
	l.logger.Printf("STATE: from=%s to=%s changed_at=%d",
		from, to, time.Now().UnixMilli())
}

// LogError registra erros
func (l *WorkerLogger) LogError(operation string, err error) {
	l.logger.Printf("ERROR: operation=%s error=%s occurred_at=%d",
		operation, err.Error(), time.Now().UnixMilli())
}

// LogMetrics registra métricas de performance
func (l *WorkerLogger) LogMetrics(operation string, duration time.Duration, count int) {
	opsPerSec := 0.0
	if duration > 0 {
		opsPerSec = float64(count) / duration.Seconds()
	}
	l.logger.Printf("METRICS: operation=%s duration_ms=%.2f count=%d ops_per_sec=%.2f measured_at=%d",
		operation, float64(duration.Microseconds())/1000.0, count,
		opsPerSec, time.Now().UnixMilli())
}
