// Package store is a SQLite-backed key/value library for scripts. Values are
// kept as CBOR blobs so every kind, including the integer/number split,
// survives a round trip.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"sync"

	"github.com/tliron/commonlog"
	_ "modernc.org/sqlite"

	"github.com/chazu/luakit/value"
)

var log = commonlog.GetLogger("luakit.store")

// ErrNotFound indicates the requested key doesn't exist.
var ErrNotFound = errors.New("key not found")

var tableName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Store handles SQLite storage for script values.
type Store struct {
	db    *sql.DB
	path  string
	table string
	mu    sync.Mutex
}

// Open opens (creating if needed) the database at path and the key/value
// table inside it. A path of ":memory:" gives a private in-memory store.
func Open(path, table string) (*Store, error) {
	if table == "" {
		table = "kv"
	}
	if !tableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// One connection: an in-memory database exists per connection, and
	// writes are serialized by SQLite anyway.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	_, err = db.Exec(fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		key TEXT PRIMARY KEY,
		data BLOB NOT NULL
	)`, table))
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating table: %w", err)
	}

	log.Debugf("opened store %s (table %s)", path, table)
	return &Store{db: db, path: path, table: table}, nil
}

// Close closes the database connection.
func (st *Store) Close() error {
	if st.db != nil {
		return st.db.Close()
	}
	return nil
}

// Path returns the database path the store was opened with.
func (st *Store) Path() string {
	return st.path
}

// Put stores v under key, replacing any previous value.
func (st *Store) Put(key string, v value.Value) error {
	st.mu.Lock()
	defer st.mu.Unlock()

	data, err := value.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding value for %q: %w", key, err)
	}
	_, err = st.db.Exec(
		fmt.Sprintf("INSERT OR REPLACE INTO %s (key, data) VALUES (?, ?)", st.table),
		key, data,
	)
	if err != nil {
		return fmt.Errorf("saving %q: %w", key, err)
	}
	return nil
}

// Get retrieves the value stored under key. A missing key returns
// ErrNotFound.
func (st *Store) Get(key string) (value.Value, error) {
	var data []byte
	err := st.db.QueryRow(
		fmt.Sprintf("SELECT data FROM %s WHERE key = ?", st.table), key,
	).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return value.Nil(), ErrNotFound
		}
		return value.Nil(), fmt.Errorf("querying %q: %w", key, err)
	}

	v, err := value.Unmarshal(data)
	if err != nil {
		return value.Nil(), fmt.Errorf("decoding %q: %w", key, err)
	}
	return v, nil
}

// Delete removes key and reports whether it existed.
func (st *Store) Delete(key string) (bool, error) {
	st.mu.Lock()
	defer st.mu.Unlock()

	res, err := st.db.Exec(fmt.Sprintf("DELETE FROM %s WHERE key = ?", st.table), key)
	if err != nil {
		return false, fmt.Errorf("deleting %q: %w", key, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("deleting %q: %w", key, err)
	}
	return n > 0, nil
}

// Keys returns every key in ascending order.
func (st *Store) Keys() ([]string, error) {
	rows, err := st.db.Query(fmt.Sprintf("SELECT key FROM %s ORDER BY key", st.table))
	if err != nil {
		return nil, fmt.Errorf("listing keys: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("scanning key: %w", err)
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// Count returns the number of stored keys.
func (st *Store) Count() (int, error) {
	var n int
	if err := st.db.QueryRow(fmt.Sprintf("SELECT COUNT(*) FROM %s", st.table)).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting keys: %w", err)
	}
	return n, nil
}
