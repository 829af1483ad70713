package worker

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/heitortanoue/fractalworker/logging"
	"github.com/heitortanoue/fractalworker/pkg/fractal"
	"github.com/heitortanoue/fractalworker/pkg/model"
	"github.com/heitortanoue/fractalworker/pkg/protocol"
)

type receivedResult struct {
	result protocol.FragmentResult
	id     []byte
	pixels []model.PixelIntensity
}

// fakeDistributor hands out tasks in order: the first one answers the request,
// each following one answers a result on a fresh connection. The connection
// carrying the last result is closed without a task.
type fakeDistributor struct {
	listener net.Listener
	tasks    []protocol.FragmentTask

	// OnResult runs after result i was read and before the next task is sent
	OnResult func(i int)

	requests chan protocol.FragmentRequest
	results  chan receivedResult
	done     chan struct{}

	mutex sync.Mutex
	conns []net.Conn
}

func startFakeDistributor(t *testing.T, tasks []protocol.FragmentTask) *fakeDistributor {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen failed: %v", err)
	}

	d := &fakeDistributor{
		listener: listener,
		tasks:    tasks,
		requests: make(chan protocol.FragmentRequest, 1),
		results:  make(chan receivedResult, len(tasks)+1),
		done:     make(chan struct{}),
	}
	t.Cleanup(d.Stop)
	return d
}

func (d *fakeDistributor) Addr() string {
	return d.listener.Addr().String()
}

func (d *fakeDistributor) Serve() {
	go d.serve()
}

func (d *fakeDistributor) Stop() {
	d.listener.Close()

	d.mutex.Lock()
	defer d.mutex.Unlock()
	for _, c := range d.conns {
		c.Close()
	}
	d.conns = nil
}

func (d *fakeDistributor) accept() (*protocol.Connection, bool) {
	conn, err := d.listener.Accept()
	if err != nil {
		return nil, false
	}
	d.mutex.Lock()
	d.conns = append(d.conns, conn)
	d.mutex.Unlock()
	return protocol.NewConnection(conn, protocol.Options{IOTimeout: 5 * time.Second}), true
}

func (d *fakeDistributor) serve() {
	defer close(d.done)

	first, ok := d.accept()
	if !ok {
		return
	}
	req, err := first.ReadRequest()
	if err != nil {
		return
	}
	d.requests <- req

	if len(d.tasks) == 0 {
		first.Close()
		return
	}
	if err := first.SendTask(d.tasks[0], idBytes(0, d.tasks[0])); err != nil {
		return
	}

	for i := 0; ; i++ {
		conn, ok := d.accept()
		if !ok {
			return
		}
		result, id, pixels, err := conn.ReadResult()
		if err != nil {
			return
		}
		d.results <- receivedResult{result: result, id: id, pixels: pixels}

		if d.OnResult != nil {
			d.OnResult(i)
		}

		if i+1 >= len(d.tasks) {
			conn.Close()
			return
		}
		if err := conn.SendTask(d.tasks[i+1], idBytes(i+1, d.tasks[i+1])); err != nil {
			return
		}
	}
}

func idBytes(i int, task protocol.FragmentTask) []byte {
	return bytes.Repeat([]byte{byte(i + 1)}, int(task.ID.Count))
}

func mandelbrotTask(offset uint32) protocol.FragmentTask {
	return protocol.NewFragmentTask(
		model.U8Data{Offset: offset, Count: 16},
		50,
		model.Resolution{Nx: 2, Ny: 2},
		model.NewRange(-1, -1, 1, 1),
		model.Mandelbrot{},
	)
}

func newTestWorker(addr string) (*Worker, *bytes.Buffer) {
	var buf bytes.Buffer
	logger := logging.NewWorkerLogger("test-worker", &buf)
	return NewWorker(addr, protocol.Options{DialTimeout: 2 * time.Second, IOTimeout: 5 * time.Second}, logger), &buf
}

func runAsync(ctx context.Context, w *Worker, req protocol.FragmentRequest) chan error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- w.Run(ctx, req)
	}()
	return errCh
}

func waitRun(t *testing.T, errCh chan error) error {
	t.Helper()
	select {
	case err := <-errCh:
		return err
	case <-time.After(10 * time.Second):
		t.Fatal("worker did not return in time")
		return nil
	}
}

func TestWorker_EndToEndMandelbrot(t *testing.T) {
	dist := startFakeDistributor(t, []protocol.FragmentTask{mandelbrotTask(0)})
	dist.Serve()

	w, _ := newTestWorker(dist.Addr())
	req := protocol.FragmentRequest{WorkerName: "test-worker", MaximalWorkLoad: 100}
	err := waitRun(t, runAsync(context.Background(), w, req))

	// the distributor hangs up after the only result: the worker stops with an I/O error
	var ioe *protocol.IOError
	if !errors.As(err, &ioe) {
		t.Fatalf("expected IOError after the distributor closed, got %v", err)
	}
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Errorf("expected io.ErrUnexpectedEOF, got %v", err)
	}
	if w.State() != Stopped {
		t.Errorf("expected state Stopped, got %s", w.State())
	}

	gotReq := <-dist.requests
	if gotReq != req {
		t.Errorf("expected request %+v, got %+v", req, gotReq)
	}

	res := <-dist.results
	if res.result.Pixels.Count != 4 {
		t.Errorf("expected pixels.count 4, got %d", res.result.Pixels.Count)
	}
	if res.result.Pixels.Offset != res.result.ID.Offset+res.result.ID.Count {
		t.Errorf("expected pixels.offset %d, got %d", res.result.ID.Offset+res.result.ID.Count, res.result.Pixels.Offset)
	}
	if !bytes.Equal(res.id, idBytes(0, mandelbrotTask(0))) {
		t.Errorf("id bytes were not echoed verbatim")
	}

	task := mandelbrotTask(0)
	want := fractal.NewMandelbrot().Generate(task.MaxIteration, task.Resolution, task.Range)
	if len(res.pixels) != 4 {
		t.Fatalf("expected 4 pixels, got %d", len(res.pixels))
	}
	for i := range want {
		if res.pixels[i] != want[i] {
			t.Errorf("pixel %d: expected %+v, got %+v", i, want[i], res.pixels[i])
		}
	}

	stats := w.GetStats()
	if stats["tasks_completed"].(uint64) != 1 {
		t.Errorf("expected 1 task completed, got %v", stats["tasks_completed"])
	}
	if stats["pixels_sent"].(uint64) != 4 {
		t.Errorf("expected 4 pixels sent, got %v", stats["pixels_sent"])
	}
	if stats["state"] != "Stopped" {
		t.Errorf("expected state Stopped in stats, got %v", stats["state"])
	}
	if stats["last_error"] == "" {
		t.Error("expected last_error to be set")
	}
	if stats["run_id"] == "" {
		t.Error("expected a run id")
	}
}

func TestWorker_SeveralTasksUseFreshConnections(t *testing.T) {
	tasks := []protocol.FragmentTask{mandelbrotTask(0), mandelbrotTask(100), mandelbrotTask(200)}
	dist := startFakeDistributor(t, tasks)
	dist.Serve()

	w, _ := newTestWorker(dist.Addr())
	waitRun(t, runAsync(context.Background(), w, protocol.FragmentRequest{WorkerName: "w", MaximalWorkLoad: 1}))

	for i, task := range tasks {
		select {
		case res := <-dist.results:
			if res.result.ID != task.ID {
				t.Errorf("result %d: expected id %+v, got %+v", i, task.ID, res.result.ID)
			}
			if !bytes.Equal(res.id, idBytes(i, task)) {
				t.Errorf("result %d: id bytes not echoed", i)
			}
		default:
			t.Fatalf("missing result %d", i)
		}
	}

	if got := w.GetStats()["tasks_completed"].(uint64); got != uint64(len(tasks)) {
		t.Errorf("expected %d tasks completed, got %d", len(tasks), got)
	}
}

func TestWorker_StopDuringSessionKeepsTasks(t *testing.T) {
	tasks := []protocol.FragmentTask{mandelbrotTask(0), mandelbrotTask(100)}
	dist := startFakeDistributor(t, tasks)

	w, buf := newTestWorker(dist.Addr())
	dist.OnResult = func(i int) {
		if i == 0 {
			w.Stop()
		}
	}
	dist.Serve()

	err := waitRun(t, runAsync(context.Background(), w, protocol.FragmentRequest{WorkerName: "w", MaximalWorkLoad: 1}))

	// the session only ends when the distributor hangs up after the last result
	var ioe *protocol.IOError
	if !errors.As(err, &ioe) {
		t.Fatalf("expected IOError once the distributor closed, got %v", err)
	}
	if got := w.GetStats()["tasks_completed"].(uint64); got != 2 {
		t.Errorf("expected 2 tasks completed, got %d", got)
	}
	if len(dist.results) != 2 {
		t.Errorf("expected 2 results, got %d", len(dist.results))
	}
	if strings.Count(buf.String(), "RESULT_SENT") != 2 {
		t.Errorf("expected every received task to be answered, got:\n%s", buf.String())
	}
}

func TestWorker_ContextCancelledDuringSession(t *testing.T) {
	tasks := []protocol.FragmentTask{mandelbrotTask(0), mandelbrotTask(100)}
	dist := startFakeDistributor(t, tasks)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	dist.OnResult = func(i int) { cancel() }
	dist.Serve()

	w, _ := newTestWorker(dist.Addr())
	err := waitRun(t, runAsync(ctx, w, protocol.FragmentRequest{WorkerName: "w", MaximalWorkLoad: 1}))

	// cancellation does not abort the dial for the second result
	if errors.Is(err, context.Canceled) {
		t.Fatalf("cancellation should not interrupt a running session, got %v", err)
	}
	if len(dist.results) != 2 {
		t.Errorf("expected 2 results, got %d", len(dist.results))
	}
	if w.State() != Stopped {
		t.Errorf("expected state Stopped, got %s", w.State())
	}
}

func TestWorker_ContextCancelledBeforeStart(t *testing.T) {
	dist := startFakeDistributor(t, []protocol.FragmentTask{mandelbrotTask(0)})
	dist.Serve()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	w, buf := newTestWorker(dist.Addr())
	err := w.Run(ctx, protocol.FragmentRequest{WorkerName: "w", MaximalWorkLoad: 1})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if strings.Contains(buf.String(), "CONNECTED") {
		t.Error("a cancelled worker should not connect")
	}
	if len(dist.requests) != 0 {
		t.Errorf("no request should reach the distributor, got %d", len(dist.requests))
	}
}

func TestWorker_StopBeforeStart(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen failed: %v", err)
	}
	addr := listener.Addr().String()
	listener.Close()

	w, buf := newTestWorker(addr)
	w.Stop()

	if err := w.Run(context.Background(), protocol.FragmentRequest{WorkerName: "w"}); err != nil {
		t.Errorf("expected nil, got %v", err)
	}
	if w.State() != Stopped {
		t.Errorf("expected state Stopped, got %s", w.State())
	}
	if strings.Contains(buf.String(), "CONNECTED") {
		t.Error("a stopped worker should not connect")
	}
}

func TestWorker_ConnectFailure(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen failed: %v", err)
	}
	addr := listener.Addr().String()
	listener.Close()

	var states []State
	w, buf := newTestWorker(addr)
	w.StateHandler = func(s State) { states = append(states, s) }

	err = w.Run(context.Background(), protocol.FragmentRequest{WorkerName: "w"})
	var ioe *protocol.IOError
	if !errors.As(err, &ioe) {
		t.Fatalf("expected IOError, got %v", err)
	}
	if w.State() != Stopped {
		t.Errorf("expected state Stopped, got %s", w.State())
	}
	if len(states) == 0 || states[len(states)-1] != Stopped {
		t.Errorf("expected the state handler to see Stopped, got %v", states)
	}
	if !strings.Contains(buf.String(), "ERROR: operation=connect") {
		t.Errorf("expected the failure to be logged, got:\n%s", buf.String())
	}
}

func TestWorker_UnsupportedDescriptorStops(t *testing.T) {
	task := protocol.NewFragmentTask(model.U8Data{Count: 4}, 10, model.Resolution{Nx: 1, Ny: 1},
		model.NewRange(0, 0, 1, 1), model.NovaNewtonZ4{})
	dist := startFakeDistributor(t, []protocol.FragmentTask{task})
	dist.Serve()

	w, _ := newTestWorker(dist.Addr())
	err := waitRun(t, runAsync(context.Background(), w, protocol.FragmentRequest{WorkerName: "w", MaximalWorkLoad: 1}))

	var unsupported *fractal.UnsupportedDescriptorError
	if !errors.As(err, &unsupported) {
		t.Fatalf("expected UnsupportedDescriptorError, got %v", err)
	}
	if w.State() != Stopped {
		t.Errorf("expected state Stopped, got %s", w.State())
	}
	if len(dist.results) != 0 {
		t.Errorf("no result should be sent, got %d", len(dist.results))
	}
}

func TestWorker_EmptyResolutionStops(t *testing.T) {
	task := mandelbrotTask(0)
	task.Resolution = model.Resolution{Nx: 0, Ny: 2}
	dist := startFakeDistributor(t, []protocol.FragmentTask{task})
	dist.Serve()

	w, _ := newTestWorker(dist.Addr())
	err := waitRun(t, runAsync(context.Background(), w, protocol.FragmentRequest{WorkerName: "w", MaximalWorkLoad: 1}))

	var perr *protocol.ProtocolError
	if !errors.As(err, &perr) {
		t.Fatalf("expected ProtocolError, got %v", err)
	}
	if len(dist.results) != 0 {
		t.Errorf("no result should be sent for an empty grid, got %d", len(dist.results))
	}
	if got := w.GetStats()["tasks_completed"].(uint64); got != 0 {
		t.Errorf("expected no task completed, got %d", got)
	}
}

func TestWorker_StateSequence(t *testing.T) {
	dist := startFakeDistributor(t, []protocol.FragmentTask{mandelbrotTask(0)})
	dist.Serve()

	var states []State
	w, _ := newTestWorker(dist.Addr())
	w.StateHandler = func(s State) { states = append(states, s) }

	waitRun(t, runAsync(context.Background(), w, protocol.FragmentRequest{WorkerName: "w", MaximalWorkLoad: 1}))

	expected := []State{AwaitingTask, Processing, SendingResult, AwaitingTask, Stopped}
	if len(states) != len(expected) {
		t.Fatalf("expected states %v, got %v", expected, states)
	}
	for i := range expected {
		if states[i] != expected[i] {
			t.Errorf("state %d: expected %s, got %s", i, expected[i], states[i])
		}
	}
}

func TestState_String(t *testing.T) {
	names := map[State]string{
		Disconnected:  "Disconnected",
		AwaitingTask:  "AwaitingTask",
		Processing:    "Processing",
		SendingResult: "SendingResult",
		Stopped:       "Stopped",
		State(42):     "State(42)",
	}
	for s, want := range names {
		if s.String() != want {
			t.Errorf("expected %s, got %s", want, s.String())
		}
	}
}
