package bridge

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"zombiezen.com/go/lua"

	"github.com/chazu/luakit/value"
)

// Slot describes one stack slot of the active frame.
type Slot struct {
	Index    int // 1-based, bottom to top
	Type     lua.Type
	TypeName string
	Value    value.Value // meaningful only when Decoded is true
	Decoded  bool
}

// Display renders the slot's value, or a placeholder for kinds the codec
// does not bridge.
func (sl Slot) Display() string {
	if sl.Decoded {
		if t, ok := sl.Value.AsText(); ok {
			return strconv.Quote(t)
		}
		if sl.Value.IsNil() {
			return "<nil>"
		}
		return sl.Value.String()
	}
	switch sl.Type {
	case lua.TypeTable:
		return "<table>"
	case lua.TypeFunction:
		return "<function>"
	case lua.TypeUserdata:
		return "<user data>"
	case lua.TypeThread:
		return "<thread>"
	case lua.TypeLightUserdata:
		return "<light user data>"
	default:
		return "<" + sl.TypeName + ">"
	}
}

// Inspect enumerates every slot of the active frame without changing it.
func (s *Session) Inspect() []Slot {
	s.live("inspect")
	l := s.l
	top := l.Top()
	slots := make([]Slot, 0, top)
	for idx := 1; idx <= top; idx++ {
		tp := l.Type(idx)
		sl := Slot{Index: idx, Type: tp, TypeName: typeName(tp)}
		if v, err := decode(l, idx); err == nil {
			sl.Value = v
			sl.Decoded = true
		}
		slots = append(slots, sl)
	}
	return slots
}

// FormatStack writes one "#index, type, display" line per slot. A non-empty
// note brackets the dump.
func (s *Session) FormatStack(w io.Writer, note string) error {
	slots := s.Inspect()
	var b strings.Builder
	switch {
	case len(slots) == 0 && note != "":
		fmt.Fprintf(&b, "%s: Empty stack\n", note)
	case len(slots) == 0:
		b.WriteString("Empty stack\n")
	default:
		if note != "" {
			fmt.Fprintf(&b, "%s %s\n", note, strings.Repeat(">", 8))
		}
		for _, sl := range slots {
			fmt.Fprintf(&b, "#%d, %s, %s\n", sl.Index, sl.TypeName, sl.Display())
		}
		if note != "" {
			fmt.Fprintf(&b, "%s %s\n", note, strings.Repeat("<", 8))
		}
	}
	_, err := io.WriteString(w, b.String())
	return err
}
