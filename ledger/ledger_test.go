package ledger

import (
	"sync"
	"testing"
)

func TestTrackAndReleaseAll(t *testing.T) {
	l := New()
	counts := make([]int, 5)
	for i := range counts {
		l.Track(func() { counts[i]++ })
	}
	if l.Len() != 5 {
		t.Fatalf("Len = %d, want 5", l.Len())
	}

	if n := l.ReleaseAll(); n != 5 {
		t.Errorf("ReleaseAll = %d, want 5", n)
	}
	if l.Len() != 0 {
		t.Errorf("Len after ReleaseAll = %d, want 0", l.Len())
	}
	// Second drain is a no-op.
	if n := l.ReleaseAll(); n != 0 {
		t.Errorf("second ReleaseAll = %d, want 0", n)
	}
	for i, c := range counts {
		if c != 1 {
			t.Errorf("release action %d ran %d times, want 1", i, c)
		}
	}
	if l.Released() != 5 {
		t.Errorf("Released = %d, want 5", l.Released())
	}
}

func TestReleaseIsAtMostOnce(t *testing.T) {
	l := New()
	runs := 0
	h := l.Track(func() { runs++ })

	if !l.Release(h) {
		t.Fatal("first Release should succeed")
	}
	if l.Release(h) {
		t.Error("second Release should report false")
	}
	l.ReleaseAll()
	if runs != 1 {
		t.Errorf("release ran %d times, want 1", runs)
	}
}

func TestHandlesAreNonZeroAndUnique(t *testing.T) {
	l := New()
	seen := make(map[Handle]bool)
	for i := 0; i < 100; i++ {
		h := l.Track(nil)
		if h == 0 {
			t.Fatal("handle 0 issued")
		}
		if seen[h] {
			t.Fatalf("handle %d issued twice", h)
		}
		seen[h] = true
	}
	l.ReleaseAll()
}

// ---------------------------------------------------------------------------
// Pack / Unpack
// ---------------------------------------------------------------------------

func TestPackUnpack(t *testing.T) {
	l := New()
	h := Pack(l, "payload")

	got, ok := Unpack[string](h)
	if !ok || got != "payload" {
		t.Errorf("Unpack = %q, %v, want payload, true", got, ok)
	}
	if l.Len() != 1 {
		t.Errorf("Len = %d, want 1", l.Len())
	}

	l.ReleaseAll()
	if _, ok := Unpack[string](h); ok {
		t.Error("Unpack after release should fail")
	}
}

func TestUnpackWrongType(t *testing.T) {
	l := New()
	defer l.ReleaseAll()

	h := Pack(l, 42)
	if _, ok := Unpack[string](h); ok {
		t.Error("Unpack with the wrong type should fail")
	}
	if _, ok := Unpack[int64](h); ok {
		t.Error("Unpack[int64] of an int cell should fail")
	}
	if v, ok := Unpack[int](h); !ok || v != 42 {
		t.Errorf("Unpack[int] = %v, %v", v, ok)
	}
}

func TestUnpackInterfaceTypeIsExact(t *testing.T) {
	type greeter func() string
	l := New()
	defer l.ReleaseAll()

	h := Pack[any](l, greeter(func() string { return "hi" }))
	if _, ok := Unpack[greeter](h); ok {
		t.Error("a cell packed as any should not unpack as its dynamic type")
	}
	if _, ok := Unpack[any](h); !ok {
		t.Error("Unpack[any] should succeed")
	}
}

func TestUnpackZeroHandle(t *testing.T) {
	if _, ok := Unpack[int](0); ok {
		t.Error("handle 0 should never unpack")
	}
}

func TestLedgersAreIndependent(t *testing.T) {
	a, b := New(), New()
	ha := Pack(a, "a")
	hb := Pack(b, "b")

	a.ReleaseAll()
	if _, ok := Unpack[string](ha); ok {
		t.Error("a's cell should be gone")
	}
	if got, ok := Unpack[string](hb); !ok || got != "b" {
		t.Errorf("b's cell = %q, %v, want b, true", got, ok)
	}
	b.ReleaseAll()
}

func TestConcurrentLedgers(t *testing.T) {
	before := Live()
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l := New()
			for i := 0; i < 50; i++ {
				h := Pack(l, i)
				if v, ok := Unpack[int](h); !ok || v != i {
					t.Errorf("Unpack = %v, %v, want %d", v, ok, i)
				}
			}
			l.ReleaseAll()
		}()
	}
	wg.Wait()
	if after := Live(); after != before {
		t.Errorf("Live = %d after drain, want %d", after, before)
	}
}
