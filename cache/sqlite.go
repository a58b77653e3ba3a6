package cache

import (
	"database/sql"
	"sync"

	_ "github.com/glebarez/go-sqlite"
)

// SQLiteStores is a persistent Stores implementation backed by sqlite.
// The autoincrement sequence on the entries table preserves insertion order:
// `INSERT OR REPLACE` deletes the conflicting row and inserts a fresh one,
// so an overwritten key gets a new sequence number and moves to the back.
type SQLiteStores struct {
	db         *sql.DB
	writeMutex *sync.Mutex
}

// NewSQLiteStores creates a new store collection with the given filename as the db.
// If the file name is empty, a new in-memory db is opened.
func NewSQLiteStores(filename string) SQLiteStores {
	if filename == "" {
		filename = "file::memory:?cache=shared"
	}
	db, err := sql.Open("sqlite", filename)
	if err != nil {
		panic(err)
	}
	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS stores (name TEXT PRIMARY KEY)`)
	if err != nil {
		panic(err)
	}
	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS entries (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		store TEXT NOT NULL,
		key TEXT NOT NULL,
		bytes BLOB,
		UNIQUE (store, key)
	)`)
	if err != nil {
		panic(err)
	}
	_, err = db.Exec("PRAGMA journal_mode=WAL")
	if err != nil {
		panic(err)
	}
	return SQLiteStores{
		db:         db,
		writeMutex: &sync.Mutex{},
	}
}

func (s SQLiteStores) Open(store string) error {
	s.writeMutex.Lock()
	defer s.writeMutex.Unlock()
	_, err := s.db.Exec("INSERT OR IGNORE INTO stores (name) VALUES (?)", store)
	return err
}

func (s SQLiteStores) Get(store, key string) ([]byte, bool, error) {
	var bytes []byte
	err := s.db.QueryRow(
		"SELECT bytes FROM entries WHERE store = ? AND key = ?",
		store, key,
	).Scan(&bytes)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return bytes, true, nil
}

func (s SQLiteStores) Put(store, key string, bytes []byte) error {
	s.writeMutex.Lock()
	defer s.writeMutex.Unlock()
	if _, err := s.db.Exec("INSERT OR IGNORE INTO stores (name) VALUES (?)", store); err != nil {
		return err
	}
	_, err := s.db.Exec(
		"INSERT OR REPLACE INTO entries (store, key, bytes) VALUES (?, ?, ?)",
		store, key, bytes,
	)
	return err
}

func (s SQLiteStores) Keys(store string) ([]string, error) {
	rows, err := s.db.Query(
		"SELECT key FROM entries WHERE store = ? ORDER BY seq ASC",
		store,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	keys := make([]string, 0)
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return keys, err
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

func (s SQLiteStores) Count(store string) (int, error) {
	var count int
	err := s.db.QueryRow("SELECT COUNT(*) FROM entries WHERE store = ?", store).Scan(&count)
	return count, err
}

func (s SQLiteStores) Delete(store, key string) error {
	s.writeMutex.Lock()
	defer s.writeMutex.Unlock()
	_, err := s.db.Exec("DELETE FROM entries WHERE store = ? AND key = ?", store, key)
	return err
}

func (s SQLiteStores) Names() ([]string, error) {
	rows, err := s.db.Query("SELECT name FROM stores ORDER BY name ASC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	names := make([]string, 0)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return names, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func (s SQLiteStores) Drop(store string) error {
	s.writeMutex.Lock()
	defer s.writeMutex.Unlock()
	if _, err := s.db.Exec("DELETE FROM entries WHERE store = ?", store); err != nil {
		return err
	}
	_, err := s.db.Exec("DELETE FROM stores WHERE name = ?", store)
	return err
}
