package store

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/chazu/luakit/bridge"
	"github.com/chazu/luakit/value"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	st, err := Open(":memory:", "")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func TestPutGet(t *testing.T) {
	st := openTestStore(t)
	values := map[string]value.Value{
		"nil":   value.Nil(),
		"bool":  value.Bool(true),
		"int":   value.Integer(7),
		"float": value.Number(7),
		"text":  value.Text("seven"),
	}
	for k, v := range values {
		if err := st.Put(k, v); err != nil {
			t.Fatalf("Put(%s): %v", k, err)
		}
	}
	for k, want := range values {
		got, err := st.Get(k)
		if err != nil {
			t.Fatalf("Get(%s): %v", k, err)
		}
		if got.Kind() != want.Kind() || !got.Equal(want) {
			t.Errorf("Get(%s) = %#v, want %#v", k, got, want)
		}
	}
}

func TestGetMissing(t *testing.T) {
	st := openTestStore(t)
	if _, err := st.Get("nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get = %v, want ErrNotFound", err)
	}
}

func TestPutReplaces(t *testing.T) {
	st := openTestStore(t)
	st.Put("k", value.Integer(1))
	st.Put("k", value.Integer(2))
	got, err := st.Get("k")
	if err != nil {
		t.Fatal(err)
	}
	if !got.Equal(value.Integer(2)) {
		t.Errorf("Get = %v, want 2", got)
	}
	if n, _ := st.Count(); n != 1 {
		t.Errorf("Count = %d, want 1", n)
	}
}

func TestDeleteAndKeys(t *testing.T) {
	st := openTestStore(t)
	for _, k := range []string{"b", "c", "a"} {
		if err := st.Put(k, value.Text(k)); err != nil {
			t.Fatal(err)
		}
	}
	keys, err := st.Keys()
	if err != nil {
		t.Fatal(err)
	}
	if strings.Join(keys, ",") != "a,b,c" {
		t.Errorf("Keys = %v, want [a b c]", keys)
	}

	existed, err := st.Delete("b")
	if err != nil || !existed {
		t.Errorf("Delete(b) = %v, %v; want true", existed, err)
	}
	existed, err = st.Delete("b")
	if err != nil || existed {
		t.Errorf("second Delete(b) = %v, %v; want false", existed, err)
	}
	if n, _ := st.Count(); n != 2 {
		t.Errorf("Count = %d, want 2", n)
	}
}

func TestPersistsAcrossOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kv.db")
	st, err := Open(path, "things")
	if err != nil {
		t.Fatal(err)
	}
	if err := st.Put("answer", value.Integer(42)); err != nil {
		t.Fatal(err)
	}
	st.Close()

	st, err = Open(path, "things")
	if err != nil {
		t.Fatal(err)
	}
	defer st.Close()
	got, err := st.Get("answer")
	if err != nil {
		t.Fatal(err)
	}
	if !got.Equal(value.Integer(42)) {
		t.Errorf("Get = %v, want 42", got)
	}
	if st.Path() != path {
		t.Errorf("Path = %q, want %q", st.Path(), path)
	}
}

func TestInvalidTableName(t *testing.T) {
	if _, err := Open(":memory:", "kv; DROP TABLE x"); err == nil {
		t.Error("Open should reject a table name that is not an identifier")
	}
}

// ---------------------------------------------------------------------------
// Host functions
// ---------------------------------------------------------------------------

func newInstalledSession(t *testing.T) (*bridge.Session, *Store) {
	t.Helper()
	st := openTestStore(t)
	s, err := bridge.New()
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(s.Destroy)
	if err := st.Install(s); err != nil {
		t.Fatalf("Install: %v", err)
	}
	return s, st
}

func TestInstallRegistersFunctions(t *testing.T) {
	s, _ := newInstalledSession(t)
	for _, name := range []string{GetFunc, PutFunc, DeleteFunc, KeysFunc} {
		if !s.IsRegistered(name) {
			t.Errorf("%s not registered", name)
		}
	}
}

func TestScriptRoundTrip(t *testing.T) {
	s, st := newInstalledSession(t)
	err := s.Run(`
		store_put("count", 3)
		store_put("ratio", 0.5)
		store_put("name", "lua")
		function read(k) return store_get(k) end
		function bump() store_put("count", store_get("count") + 1) return store_get("count") end
	`)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	got, err := s.Call("bump")
	if err != nil {
		t.Fatal(err)
	}
	if !got.Equal(value.Integer(4)) {
		t.Errorf("bump() = %#v, want 4", got)
	}
	got, err = s.Call("read", value.Text("ratio"))
	if err != nil {
		t.Fatal(err)
	}
	if !got.Equal(value.Number(0.5)) {
		t.Errorf("read(ratio) = %#v, want 0.5", got)
	}
	got, err = s.Call("read", value.Text("missing"))
	if err != nil {
		t.Fatal(err)
	}
	if !got.IsNil() {
		t.Errorf("read(missing) = %#v, want nil", got)
	}

	// The host sees what the script wrote.
	v, err := st.Get("name")
	if err != nil || !v.Equal(value.Text("lua")) {
		t.Errorf("Get(name) = %#v, %v", v, err)
	}
}

func TestScriptKeysAndDelete(t *testing.T) {
	s, st := newInstalledSession(t)
	for _, k := range []string{"z", "x", "y"} {
		st.Put(k, value.Bool(true))
	}
	keys, err := s.CallMulti(KeysFunc)
	if err != nil {
		t.Fatal(err)
	}
	var names []string
	for _, k := range keys {
		text, _ := k.AsText()
		names = append(names, text)
	}
	if strings.Join(names, ",") != "x,y,z" {
		t.Errorf("store_keys() = %v, want x y z", names)
	}

	got, err := s.Call(DeleteFunc, value.Text("x"))
	if err != nil {
		t.Fatal(err)
	}
	if !got.Equal(value.Bool(true)) {
		t.Errorf("store_delete(x) = %#v, want true", got)
	}
	if err := s.Run(`assert(store_delete("x") == false)`); err != nil {
		t.Errorf("second delete: %v", err)
	}
}

func TestScriptKeyMustBeString(t *testing.T) {
	s, _ := newInstalledSession(t)
	err := s.Run(`store_put(1, "one")`)
	if !errors.Is(err, bridge.ErrRuntime) {
		t.Fatalf("Run = %v, want ErrRuntime", err)
	}
	if !strings.Contains(err.Error(), "key must be a string") {
		t.Errorf("error %q should explain the key type", err)
	}
}

func TestScriptUnsupportedValue(t *testing.T) {
	s, st := newInstalledSession(t)
	if err := s.Run(`store_put("t", {})`); !errors.Is(err, bridge.ErrRuntime) {
		t.Errorf("Run = %v, want ErrRuntime", err)
	}
	if n, _ := st.Count(); n != 0 {
		t.Errorf("Count = %d, want 0", n)
	}
}
