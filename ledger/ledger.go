// Package ledger tracks every opaque cell a session hands to the VM so that
// each one is released exactly once when the session is torn down.
//
// A Ledger belongs to a single session and is only touched from the
// goroutine driving that session; it does no locking of its own.
package ledger

// entry is one tracked cell and the release action bound to it.
type entry struct {
	release func()
}

// Ledger records release actions keyed by handle.
type Ledger struct {
	entries  map[Handle]*entry
	released int
}

// New creates an empty ledger.
func New() *Ledger {
	return &Ledger{entries: make(map[Handle]*entry)}
}

// Track records a release action and returns a fresh handle for it.
// Callers must track before handing the handle to the VM.
func (l *Ledger) Track(release func()) Handle {
	h := cells.issue()
	l.track(h, release)
	return h
}

func (l *Ledger) track(h Handle, release func()) {
	if release == nil {
		release = func() {}
	}
	l.entries[h] = &entry{release: release}
}

// Release runs the release action for h and forgets it. It returns false if
// h is not tracked, which includes handles already released.
func (l *Ledger) Release(h Handle) bool {
	e, ok := l.entries[h]
	if !ok {
		return false
	}
	delete(l.entries, h)
	e.release()
	l.released++
	return true
}

// ReleaseAll runs every tracked release action once, in no particular order,
// and clears the ledger. It returns the number of actions run.
func (l *Ledger) ReleaseAll() int {
	pending := l.entries
	l.entries = make(map[Handle]*entry)
	for _, e := range pending {
		e.release()
	}
	l.released += len(pending)
	return len(pending)
}

// Len returns the number of tracked entries.
func (l *Ledger) Len() int {
	return len(l.entries)
}

// Released returns the number of release actions run over the ledger's life.
func (l *Ledger) Released() int {
	return l.released
}
