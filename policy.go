package appshellcache

import (
	"context"
	"io"
	"net/http"
	"strings"

	serializer "github.com/appshell-cache/appshell-cache/pkg/response-serializer"
)

// engineHeader reports how the engine resolved the request,
// e.g. "network" or "cache; recovered".
const engineHeader = "X-Offline-Engine"

const (
	sourceNetwork  = "network"
	sourceCache    = "cache"
	sourceFallback = "fallback"
)

// outcome describes how a policy terminated: where the response came
// from, and whether it was a fallback synthesized after a failure.
// Every policy path ends in an outcome; none may fail without one.
type outcome struct {
	source    string
	recovered bool
}

func (o outcome) String() string {
	if o.recovered {
		return o.source + "; recovered"
	}
	return o.source
}

const offlineHTML = `<!doctype html>
<html>
<head><meta charset="utf-8"><title>Offline</title></head>
<body><h1>You are offline</h1><p>This page is not available without a network connection.</p></body>
</html>
`

// networkOnly resolves requests that must never be served stale.
// The response is never written to any store. On network failure a 503
// is synthesized, shaped by the request's accept header.
func (e *Engine) networkOnly(w http.ResponseWriter, r *http.Request) {
	res, err := e.fetch(r)
	if err != nil {
		e.log.Debug().Err(err).Str("url", r.URL.String()).Msg("Live fetch failed")
		e.sendUnavailable(w, r)
		return
	}
	e.send(w, r, res, outcome{source: sourceNetwork})
}

// networkFirst resolves navigations. A successful fetch refreshes the
// shell fallback entry before being returned; on failure the stored
// fallback is replayed, and failing that a minimal offline page is
// served with status 200 so the page always renders something.
func (e *Engine) networkFirst(w http.ResponseWriter, r *http.Request) {
	res, err := e.fetch(r)
	if err == nil {
		if bts, serr := serializer.Snapshot(res); serr != nil {
			e.log.Error().Err(serr).Msg("Could not snapshot shell response")
		} else if perr := e.stores.Put(e.shellStore(), e.fallbackKey, bts); perr != nil {
			e.log.Error().Err(perr).Str("store", e.shellStore()).Msg("Could not store shell fallback")
		}
		e.send(w, r, res, outcome{source: sourceNetwork})
		return
	}
	e.log.Debug().Err(err).Str("url", r.URL.String()).Msg("Navigation fetch failed, trying shell fallback")

	bts, ok, gerr := e.stores.Get(e.shellStore(), e.fallbackKey)
	if gerr != nil {
		e.log.Error().Err(gerr).Str("store", e.shellStore()).Msg("Could not read shell fallback")
	} else if ok {
		if stored, rerr := serializer.ReadSnapshot(bts); rerr == nil {
			e.send(w, r, stored, outcome{source: sourceCache, recovered: true})
			return
		} else {
			e.log.Error().Err(rerr).Msg("Could not read stored shell response")
		}
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set(engineHeader, outcome{source: sourceFallback, recovered: true}.String())
	w.WriteHeader(http.StatusOK)
	io.WriteString(w, offlineHTML)
	e.logRequest(r, outcome{source: sourceFallback, recovered: true})
}

// cacheFirst resolves assets. A stored entry is returned without any
// network call; on a miss the live response is stored (status 200 only)
// and the asset store trimmed in the background.
func (e *Engine) cacheFirst(w http.ResponseWriter, r *http.Request) {
	store := e.assetStore()
	key := requestKey(r)

	if bts, ok, err := e.stores.Get(store, key); err != nil {
		e.log.Error().Err(err).Str("store", store).Msg("Could not retrieve from store")
	} else if ok {
		if stored, rerr := serializer.ReadSnapshot(bts); rerr == nil {
			e.send(w, r, stored, outcome{source: sourceCache})
			return
		} else {
			e.log.Error().Err(rerr).Str("key", key).Msg("Could not read stored response")
		}
	}

	res, err := e.fetch(r)
	if err != nil {
		e.log.Debug().Err(err).Str("url", r.URL.String()).Msg("Asset fetch failed")
		e.sendUnavailable(w, r)
		return
	}
	if res.StatusCode == http.StatusOK {
		e.storeAndTrim(store, key, res)
	}
	e.send(w, r, res, outcome{source: sourceNetwork})
}

// staleWhileRevalidate serves a stored asset immediately and refreshes
// it from the network in the background. On a miss the network result
// is awaited; if that fails too, a 503 is synthesized rather than
// leaving the caller without a response.
func (e *Engine) staleWhileRevalidate(w http.ResponseWriter, r *http.Request) {
	store := e.assetStore()
	key := requestKey(r)

	if bts, ok, err := e.stores.Get(store, key); err != nil {
		e.log.Error().Err(err).Str("store", store).Msg("Could not retrieve from store")
	} else if ok {
		if stored, rerr := serializer.ReadSnapshot(bts); rerr == nil {
			// refresh in the background, detached from the request context
			go e.revalidate(r.Clone(context.Background()), store, key)
			e.send(w, r, stored, outcome{source: sourceCache})
			return
		} else {
			e.log.Error().Err(rerr).Str("key", key).Msg("Could not read stored response")
		}
	}

	res, err := e.fetch(r)
	if err != nil {
		e.log.Debug().Err(err).Str("url", r.URL.String()).Msg("Asset fetch failed")
		e.sendUnavailable(w, r)
		return
	}
	if res.StatusCode == http.StatusOK {
		e.storeAndTrim(store, key, res)
	}
	e.send(w, r, res, outcome{source: sourceNetwork})
}

// revalidate refreshes a stored entry from the network.
// Any failure leaves the stored entry as-is.
func (e *Engine) revalidate(r *http.Request, store, key string) {
	res, err := e.fetch(r)
	if err != nil {
		e.log.Debug().Err(err).Str("key", key).Msg("Revalidation fetch failed")
		return
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		e.log.Trace().Int("status", res.StatusCode).Str("key", key).Msg("Not storing revalidation response")
		return
	}
	bts, err := serializer.Snapshot(res)
	if err != nil {
		e.log.Error().Err(err).Str("key", key).Msg("Could not snapshot revalidation response")
		return
	}
	if err := e.stores.Put(store, key, bts); err != nil {
		e.log.Error().Err(err).Str("store", store).Msg("Could not store revalidated response")
		return
	}
	e.trimStore(store, e.maxAssets)
}

// storeAndTrim snapshots the response into the store and kicks off a
// detached trim. The response body remains readable afterwards.
func (e *Engine) storeAndTrim(store, key string, res *http.Response) {
	bts, err := serializer.Snapshot(res)
	if err != nil {
		e.log.Error().Err(err).Str("key", key).Msg("Could not snapshot response")
		return
	}
	if err := e.stores.Put(store, key, bts); err != nil {
		e.log.Error().Err(err).Str("store", store).Msg("Could not store response")
		return
	}
	e.log.Trace().Str("store", store).Str("key", key).Msg("Stored response")
	// trim in goroutine (do not slow down the response)
	go e.trimStore(store, e.maxAssets)
}

// sendUnavailable synthesizes the offline 503. The body shape follows
// the request's accept header.
func (e *Engine) sendUnavailable(w http.ResponseWriter, r *http.Request) {
	o := outcome{source: sourceFallback, recovered: true}
	w.Header().Set(engineHeader, o.String())
	if strings.Contains(r.Header.Get("Accept"), "application/json") {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		io.WriteString(w, `{"error":"offline"}`)
	} else {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusServiceUnavailable)
		io.WriteString(w, "unavailable")
	}
	e.logRequest(r, o)
}
