package server

import (
	"errors"
	"fmt"
	"sync"

	"github.com/chazu/luakit/bridge"
)

// ErrWorkerStopped is returned by Do once the worker has shut down.
var ErrWorkerStopped = errors.New("worker stopped")

// SessionFactory creates the Session a Worker owns. It runs on the worker's
// goroutine.
type SessionFactory func() (*bridge.Session, error)

// workRequest represents a unit of work to be executed on the worker goroutine.
type workRequest struct {
	fn   func(*bridge.Session) (interface{}, error)
	done chan workResult
}

// workResult holds the return value from a Session operation.
type workResult struct {
	value interface{}
	err   error
}

// Worker serializes all access to one Session through a single goroutine.
// A Session is single-threaded; every RPC or LSP handler must go through
// its worker to avoid data races.
type Worker struct {
	session  *bridge.Session
	requests chan workRequest
	quit     chan struct{}
	stopped  chan struct{}
	stopOnce sync.Once

	// broken is set once a contract violation escaped a request. The
	// Session panics on every further use, so the worker refuses work.
	broken error
}

// NewWorker starts a worker goroutine and creates its Session there with
// factory. The factory's error is returned and no worker is left running.
func NewWorker(factory SessionFactory) (*Worker, error) {
	w := &Worker{
		requests: make(chan workRequest, 64),
		quit:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}
	ready := make(chan error, 1)
	go w.loop(factory, ready)
	if err := <-ready; err != nil {
		return nil, err
	}
	return w, nil
}

// loop processes requests sequentially on a dedicated goroutine. The Session
// is created and destroyed here.
func (w *Worker) loop(factory SessionFactory, ready chan<- error) {
	defer close(w.stopped)

	s, err := factory()
	if err != nil {
		ready <- fmt.Errorf("creating session: %w", err)
		return
	}
	w.session = s
	ready <- nil

	for {
		select {
		case req := <-w.requests:
			req.done <- w.execute(req.fn)
		case <-w.quit:
			w.teardown()
			return
		}
	}
}

// execute runs a function on the Session, recovering from panics.
func (w *Worker) execute(fn func(*bridge.Session) (interface{}, error)) workResult {
	if w.broken != nil {
		return workResult{err: w.broken}
	}
	var result workResult
	func() {
		defer func() {
			if r := recover(); r != nil {
				if v, ok := r.(*bridge.ContractViolation); ok {
					w.broken = v
					result.err = v
					return
				}
				result.err = fmt.Errorf("%v", r)
			}
		}()
		result.value, result.err = fn(w.session)
	}()
	return result
}

func (w *Worker) teardown() {
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("destroying session: %v", r)
		}
	}()
	w.session.Destroy()
}

// Do submits a function for execution on the worker goroutine and blocks
// until it completes. Returns the result and any error (including panics).
func (w *Worker) Do(fn func(*bridge.Session) (interface{}, error)) (interface{}, error) {
	req := workRequest{
		fn:   fn,
		done: make(chan workResult, 1),
	}
	select {
	case w.requests <- req:
	case <-w.stopped:
		return nil, ErrWorkerStopped
	}
	select {
	case result := <-req.done:
		return result.value, result.err
	case <-w.stopped:
		return nil, ErrWorkerStopped
	}
}

// Stop destroys the Session on the worker goroutine and waits for the
// goroutine to exit. Calling Stop more than once is safe.
func (w *Worker) Stop() {
	w.stopOnce.Do(func() { close(w.quit) })
	<-w.stopped
}
