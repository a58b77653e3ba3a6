package appshellcache

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestTrimEvictsOldestFirst(t *testing.T) {
	engine := newTestEngine(t, "http://origin.test", nil)
	for _, key := range []string{"a", "b", "c"} {
		if err := engine.stores.Put("store", key, []byte(key)); err != nil {
			t.Fatal(err)
		}
	}

	engine.trimStore("store", 2)

	keys, err := engine.stores.Keys("store")
	if err != nil {
		t.Fatal(err)
	}
	if len(keys) != 2 || keys[0] != "b" || keys[1] != "c" {
		t.Fatalf("Keys after trim are %v", keys)
	}
}

func TestTrimIsIdempotent(t *testing.T) {
	engine := newTestEngine(t, "http://origin.test", nil)
	for _, key := range []string{"a", "b"} {
		engine.stores.Put("store", key, []byte(key))
	}

	engine.trimStore("store", 2)
	engine.trimStore("store", 2)

	keys, err := engine.stores.Keys("store")
	if err != nil {
		t.Fatal(err)
	}
	if len(keys) != 2 || keys[0] != "a" || keys[1] != "b" {
		t.Fatalf("Keys after trim are %v", keys)
	}
}

func TestTrimEmptyStore(t *testing.T) {
	engine := newTestEngine(t, "http://origin.test", nil)
	engine.trimStore("store", 2)
	if count, _ := engine.stores.Count("store"); count != 0 {
		t.Fatalf("Count is %d", count)
	}
}

// Inserting one entry past the limit evicts exactly the oldest one.
func TestTrimBoundary(t *testing.T) {
	engine := newTestEngine(t, "http://origin.test", nil)
	for i := 0; i < 4; i++ {
		engine.stores.Put("store", fmt.Sprintf("key-%d", i), nil)
	}

	engine.trimStore("store", 3)

	keys, err := engine.stores.Keys("store")
	if err != nil {
		t.Fatal(err)
	}
	if len(keys) != 3 {
		t.Fatalf("Keys after trim are %v", keys)
	}
	for _, key := range keys {
		if key == "key-0" {
			t.Fatal("Oldest entry survived trim")
		}
	}
}

// Filling the asset store past its limit through the cache-first policy
// ends up with the store at its limit.
func TestCacheFirstTrimsAssetStore(t *testing.T) {
	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("asset"))
	}))
	defer origin.Close()
	engine := newTestEngine(t, origin.URL, func(c *Config) {
		c.MaxAssetEntries = 2
	})

	for i := 0; i < 4; i++ {
		rr := httptest.NewRecorder()
		engine.ServeHTTP(rr, httptest.NewRequest("GET", fmt.Sprintf("/static/%d.js", i), nil))
		// the trimmer runs detached; force it here to make the test deterministic
		engine.trimStore(engine.assetStore(), engine.maxAssets)
	}

	keys, err := engine.stores.Keys(engine.assetStore())
	if err != nil {
		t.Fatal(err)
	}
	if len(keys) != 2 || keys[0] != "GET:/static/2.js" || keys[1] != "GET:/static/3.js" {
		t.Fatalf("Keys after trim are %v", keys)
	}
}
