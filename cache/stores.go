package cache

// Stores is the storage backend for the offline engine.
// It keeps response snapshots in named stores, where a store name encodes
// a logical role and a version tag. Within a store, enumeration order is
// insertion order, which is also the eviction order. Overwriting a key
// moves it to the back of that order.
//
// Implementations must be thread-safe!
type Stores interface {
	// Open registers an empty store under the given name.
	// Opening an existing store is a no-op.
	Open(store string) error
	// Get returns the stored bytes for the given key, if they exist.
	// It also returns a boolean indicating whether retrieval was successful.
	Get(store, key string) ([]byte, bool, error)
	// Put stores the given bytes under the given key,
	// creating the store on first write.
	Put(store, key string, bytes []byte) error
	// Keys returns all keys in the store in insertion order.
	Keys(store string) ([]string, error)
	// Count returns the number of entries in the store.
	Count(store string) (int, error)
	// Delete removes the entry for the given key.
	// Deleting an absent key is not an error.
	Delete(store, key string) error
	// Names returns the names of all known stores.
	Names() ([]string, error)
	// Drop removes the store and all of its entries.
	Drop(store string) error
}
