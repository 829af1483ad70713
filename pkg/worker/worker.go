package worker

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/heitortanoue/fractalworker/logging"
	"github.com/heitortanoue/fractalworker/pkg/protocol"
)

// State is the position of a worker in its request/compute/submit cycle
type State int

const (
	Disconnected State = iota
	AwaitingTask
	Processing
	SendingResult
	Stopped
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "Disconnected"
	case AwaitingTask:
		return "AwaitingTask"
	case Processing:
		return "Processing"
	case SendingResult:
		return "SendingResult"
	case Stopped:
		return "Stopped"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Worker connects to a distributor, asks for work and sends back results until
// it fails or is stopped. A Worker drives one run at a time; Run blocks.
type Worker struct {
	serverAddr string
	opts       protocol.Options
	logger     *logging.WorkerLogger

	// StateHandler, when set, is called from the Run goroutine on every state change
	StateHandler func(State)

	stopRequested atomic.Bool

	mutex          sync.RWMutex
	state          State
	runID          string
	workerName     string
	tasksCompleted uint64
	pixelsSent     uint64
	bytesSent      uint64
	lastError      string
	startedAt      time.Time
}

// NewWorker creates a worker for the distributor at serverAddr ("host:port")
func NewWorker(serverAddr string, opts protocol.Options, logger *logging.WorkerLogger) *Worker {
	return &Worker{
		serverAddr: serverAddr,
		opts:       opts,
		logger:     logger,
		state:      Disconnected,
	}
}

// Stop asks the worker not to start a session. The flag is read once, before
// the initial connection; a session already running ends only on failure.
func (w *Worker) Stop() {
	w.stopRequested.Store(true)
}

// State returns the current state
func (w *Worker) State() State {
	w.mutex.RLock()
	defer w.mutex.RUnlock()
	return w.state
}

// Run performs one worker session: connect, send req, then compute and submit
// tasks until an error occurs. Stop and ctx are checked only before the initial
// connection: Run then returns nil after Stop and ctx.Err() after cancellation
// without touching the network. Once connected, neither interrupts a dial, a
// read or a compute, and every task read is processed. The worker is always
// Stopped when Run returns.
func (w *Worker) Run(ctx context.Context, req protocol.FragmentRequest) error {
	w.reset(req.WorkerName)
	w.setState(Disconnected)

	if stopped, err := w.shouldStop(ctx); stopped {
		w.setState(Stopped)
		return err
	}

	conn, err := w.dial()
	if err != nil {
		return w.fail("connect", err)
	}
	defer func() { conn.Close() }()

	if err := conn.SendRequest(req); err != nil {
		return w.fail("send request", err)
	}
	w.logger.LogRequestSent(req)
	w.addBytes(conn.BytesWritten())

	w.setState(AwaitingTask)
	task, id, err := conn.ReadTask()
	if err != nil {
		return w.fail("read task", err)
	}
	w.logger.LogTaskReceived(task)

	for {
		w.setState(Processing)
		start := time.Now()
		result, pixels, err := ProcessTask(task)
		if err != nil {
			return w.fail("process task", err)
		}
		w.logger.LogTaskComputed(len(pixels), time.Since(start))

		w.setState(SendingResult)
		next, err := w.dial()
		if err != nil {
			return w.fail("connect", err)
		}
		if err := next.SendResult(result, id, pixels); err != nil {
			next.Close()
			return w.fail("send result", err)
		}
		w.logger.LogResultSent(result, next.BytesWritten())
		w.recordResult(len(pixels), next.BytesWritten())

		conn.Close()
		conn = next

		w.setState(AwaitingTask)
		task, id, err = conn.ReadTask()
		if err != nil {
			return w.fail("read task", err)
		}
		w.logger.LogTaskReceived(task)
	}
}

// GetStats returns statistics of the current or last run
func (w *Worker) GetStats() map[string]interface{} {
	w.mutex.RLock()
	defer w.mutex.RUnlock()

	uptime := 0.0
	if !w.startedAt.IsZero() {
		uptime = time.Since(w.startedAt).Seconds()
	}

	return map[string]interface{}{
		"run_id":          w.runID,
		"worker_name":     w.workerName,
		"server_addr":     w.serverAddr,
		"state":           w.state.String(),
		"tasks_completed": w.tasksCompleted,
		"pixels_sent":     w.pixelsSent,
		"bytes_sent":      w.bytesSent,
		"last_error":      w.lastError,
		"uptime":          uptime,
	}
}

func (w *Worker) reset(workerName string) {
	w.mutex.Lock()
	defer w.mutex.Unlock()

	w.runID = uuid.New().String()
	w.workerName = workerName
	w.tasksCompleted = 0
	w.pixelsSent = 0
	w.bytesSent = 0
	w.lastError = ""
	w.startedAt = time.Now()
}

func (w *Worker) shouldStop(ctx context.Context) (bool, error) {
	if w.stopRequested.Load() {
		return true, nil
	}
	if err := ctx.Err(); err != nil {
		return true, err
	}
	return false, nil
}

func (w *Worker) dial() (*protocol.Connection, error) {
	conn, err := protocol.Dial(context.Background(), w.serverAddr, w.opts)
	if err != nil {
		return nil, err
	}
	w.logger.LogConnected(w.currentRunID(), w.serverAddr)
	return conn, nil
}

func (w *Worker) fail(operation string, err error) error {
	w.logger.LogError(operation, err)

	w.mutex.Lock()
	w.lastError = err.Error()
	w.mutex.Unlock()

	w.setState(Stopped)
	w.logMetrics()
	return fmt.Errorf("%s: %w", operation, err)
}

func (w *Worker) setState(s State) {
	w.mutex.Lock()
	prev := w.state
	w.state = s
	w.mutex.Unlock()

	if prev == s {
		return
	}
	w.logger.LogStateChange(prev.String(), s.String())
	if w.StateHandler != nil {
		w.StateHandler(s)
	}
}

func (w *Worker) recordResult(pixels int, bytes uint64) {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	w.tasksCompleted++
	w.pixelsSent += uint64(pixels)
	w.bytesSent += bytes
}

func (w *Worker) addBytes(bytes uint64) {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	w.bytesSent += bytes
}

func (w *Worker) currentRunID() string {
	w.mutex.RLock()
	defer w.mutex.RUnlock()
	return w.runID
}

func (w *Worker) logMetrics() {
	w.mutex.RLock()
	duration := time.Since(w.startedAt)
	tasks := int(w.tasksCompleted)
	w.mutex.RUnlock()

	w.logger.LogMetrics("run", duration, tasks)
}
