package cache

import "sync"

type memEntry struct {
	key   string
	bytes []byte
}

// MemStores is an in-memory Stores implementation.
// Each store is an insertion-ordered slice of entries.
type MemStores struct {
	mutex *sync.RWMutex
	db    map[string][]memEntry
}

func NewMemStores() MemStores {
	return MemStores{
		mutex: &sync.RWMutex{},
		db:    make(map[string][]memEntry),
	}
}

func (m MemStores) Open(store string) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if _, ok := m.db[store]; !ok {
		m.db[store] = []memEntry{}
	}
	return nil
}

func (m MemStores) Get(store, key string) ([]byte, bool, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	for _, entry := range m.db[store] {
		if entry.key == key {
			return entry.bytes, true, nil
		}
	}
	return nil, false, nil
}

func (m MemStores) Put(store, key string, bytes []byte) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	entries := m.db[store]
	// an overwrite moves the key to the back of the insertion order
	for i, entry := range entries {
		if entry.key == key {
			entries = append(entries[:i], entries[i+1:]...)
			break
		}
	}
	m.db[store] = append(entries, memEntry{key, bytes})
	return nil
}

func (m MemStores) Keys(store string) ([]string, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	keys := make([]string, 0, len(m.db[store]))
	for _, entry := range m.db[store] {
		keys = append(keys, entry.key)
	}
	return keys, nil
}

func (m MemStores) Count(store string) (int, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.db[store]), nil
}

func (m MemStores) Delete(store, key string) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	entries := m.db[store]
	for i, entry := range entries {
		if entry.key == key {
			m.db[store] = append(entries[:i], entries[i+1:]...)
			return nil
		}
	}
	return nil
}

func (m MemStores) Names() ([]string, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	names := make([]string, 0, len(m.db))
	for name := range m.db {
		names = append(names, name)
	}
	return names, nil
}

func (m MemStores) Drop(store string) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	delete(m.db, store)
	return nil
}
