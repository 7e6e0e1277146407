package store

import (
	"errors"
	"fmt"

	"github.com/chazu/luakit/bridge"
	"github.com/chazu/luakit/value"
)

// Names of the host functions Install registers.
const (
	GetFunc    = "store_get"
	PutFunc    = "store_put"
	DeleteFunc = "store_delete"
	KeysFunc   = "store_keys"
)

// Install registers the store's host functions in s:
//
//	store_get(key)        -> value, or nil when absent
//	store_put(key, value)
//	store_delete(key)     -> true if the key existed
//	store_keys()          -> every key, sorted, as separate results
//
// The store must outlive s.
func (st *Store) Install(s *bridge.Session) error {
	fns := []struct {
		name string
		fn   bridge.HostFunc
	}{
		{GetFunc, st.luaGet},
		{PutFunc, st.luaPut},
		{DeleteFunc, st.luaDelete},
		{KeysFunc, st.luaKeys},
	}
	for _, f := range fns {
		if err := s.Register(f.name, f.fn); err != nil {
			return fmt.Errorf("installing %s: %w", f.name, err)
		}
	}
	return nil
}

func (st *Store) luaGet(s *bridge.Session) (int, error) {
	args, err := checkArgs(s, GetFunc, 1)
	if err != nil {
		return 0, err
	}
	key, err := keyArg(GetFunc, args[0])
	if err != nil {
		return 0, err
	}
	v, err := st.Get(key)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return 0, err
	}
	return 1, s.Push(v)
}

func (st *Store) luaPut(s *bridge.Session) (int, error) {
	args, err := checkArgs(s, PutFunc, 2)
	if err != nil {
		return 0, err
	}
	key, err := keyArg(PutFunc, args[0])
	if err != nil {
		return 0, err
	}
	return 0, st.Put(key, args[1])
}

func (st *Store) luaDelete(s *bridge.Session) (int, error) {
	args, err := checkArgs(s, DeleteFunc, 1)
	if err != nil {
		return 0, err
	}
	key, err := keyArg(DeleteFunc, args[0])
	if err != nil {
		return 0, err
	}
	existed, err := st.Delete(key)
	if err != nil {
		return 0, err
	}
	return 1, s.Push(value.Bool(existed))
}

func (st *Store) luaKeys(s *bridge.Session) (int, error) {
	keys, err := st.Keys()
	if err != nil {
		return 0, err
	}
	for _, k := range keys {
		if err := s.Push(value.Text(k)); err != nil {
			return 0, err
		}
	}
	return len(keys), nil
}

// checkArgs decodes the arguments of a host call and requires at least n.
// Missing trailing arguments read as nil, as in Lua.
func checkArgs(s *bridge.Session, fn string, n int) ([]value.Value, error) {
	args, err := s.Args()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", fn, err)
	}
	for len(args) < n {
		args = append(args, value.Nil())
	}
	return args, nil
}

func keyArg(fn string, v value.Value) (string, error) {
	key, ok := v.AsText()
	if !ok {
		return "", fmt.Errorf("%s: key must be a string, got %v", fn, v.Kind())
	}
	return key, nil
}
