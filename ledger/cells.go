package ledger

import (
	"sync"
	"sync/atomic"
)

// Handle is the opaque address handed to the VM as light userdata.
// The VM stores it and hands it back; it never interprets it. Handles
// are issued from a single process-wide counter and are never 0.
type Handle uintptr

// cellTable maps issued handles to boxed host values. It is shared by every
// ledger in the process, so sessions on different goroutines may pack and
// unpack concurrently.
type cellTable struct {
	mu     sync.RWMutex
	cells  map[Handle]any
	nextID atomic.Uintptr
}

var cells = &cellTable{cells: make(map[Handle]any)}

func (t *cellTable) issue() Handle {
	return Handle(t.nextID.Add(1))
}

func (t *cellTable) store(h Handle, v any) {
	t.mu.Lock()
	t.cells[h] = v
	t.mu.Unlock()
}

func (t *cellTable) load(h Handle) (any, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	v, ok := t.cells[h]
	return v, ok
}

func (t *cellTable) free(h Handle) {
	t.mu.Lock()
	delete(t.cells, h)
	t.mu.Unlock()
}

// Pack boxes v in a fresh cell owned by l and returns the cell's handle.
// The release action tracked with l frees exactly this cell.
func Pack[T any](l *Ledger, v T) Handle {
	h := cells.issue()
	cells.store(h, box[T]{v: v})
	l.track(h, func() {
		cells.free(h)
	})
	return h
}

// Unpack recovers the value packed under h. It reports false if the cell
// has been released or was packed with a different type.
func Unpack[T any](h Handle) (T, bool) {
	var zero T
	if h == 0 {
		return zero, false
	}
	raw, ok := cells.load(h)
	if !ok {
		return zero, false
	}
	b, ok := raw.(box[T])
	if !ok {
		return zero, false
	}
	return b.v, true
}

// Live returns the number of packed cells in the whole process.
func Live() int {
	cells.mu.RLock()
	defer cells.mu.RUnlock()
	return len(cells.cells)
}

// box pins the static type of a packed value, so a cell packed as an
// interface type is not confused with one packed as a concrete type.
type box[T any] struct {
	v T
}
