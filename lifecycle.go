package appshellcache

import (
	"context"
	"net/http"
	"strings"

	serializer "github.com/appshell-cache/appshell-cache/pkg/response-serializer"
)

// Install provisions the asset store for the current version and
// pre-populates it from the precache manifest. A failure to fetch an
// individual manifest entry is logged and skipped so that installation
// always completes and the new version can activate.
//
// The shell fallback path is deliberately not pre-cached: a navigation
// must not be served a stale shell before any network fetch has occurred.
func (e *Engine) Install(ctx context.Context) error {
	store := e.assetStore()
	if err := e.stores.Open(store); err != nil {
		return err
	}
	e.log.Info().Str("store", store).Int("manifest", len(e.precache)).Msg("Installing")
	for _, path := range e.precache {
		if err := ctx.Err(); err != nil {
			return err
		}
		if path == e.fallbackKey {
			e.log.Trace().Str("path", path).Msg("Skipping navigation entry point")
			continue
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, path, nil)
		if err != nil {
			e.log.Warn().Err(err).Str("path", path).Msg("Invalid manifest entry")
			continue
		}
		res, err := e.fetch(req)
		if err != nil {
			e.log.Warn().Err(err).Str("path", path).Msg("Could not pre-cache entry")
			continue
		}
		if res.StatusCode != http.StatusOK {
			res.Body.Close()
			e.log.Warn().Int("status", res.StatusCode).Str("path", path).Msg("Not pre-caching entry")
			continue
		}
		bts, err := serializer.Snapshot(res)
		res.Body.Close()
		if err != nil {
			e.log.Warn().Err(err).Str("path", path).Msg("Could not snapshot manifest entry")
			continue
		}
		if err := e.stores.Put(store, requestKey(req), bts); err != nil {
			e.log.Warn().Err(err).Str("path", path).Msg("Could not store manifest entry")
			continue
		}
		e.log.Trace().Str("path", path).Msg("Pre-cached entry")
	}
	return nil
}

// Activate promotes the current version: every store within the
// engine's namespace that does not belong to the current version is
// deleted, the current stores are opened, and all connected application
// instances are claimed immediately rather than waiting for a reload.
func (e *Engine) Activate(ctx context.Context) error {
	current := map[string]bool{
		e.shellStore(): true,
		e.assetStore(): true,
	}
	names, err := e.stores.Names()
	if err != nil {
		return err
	}
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !strings.HasPrefix(name, e.namespace+"-") || current[name] {
			continue
		}
		if err := e.stores.Drop(name); err != nil {
			e.log.Error().Err(err).Str("store", name).Msg("Could not delete stale store")
			continue
		}
		e.log.Debug().Str("store", name).Msg("Deleted stale store")
	}
	for name := range current {
		if err := e.stores.Open(name); err != nil {
			e.log.Error().Err(err).Str("store", name).Msg("Could not open store")
		}
	}
	e.claimClients()
	e.log.Info().Msg("Activated")
	return nil
}

// claimClients notifies every connected application instance that this
// engine version now controls them.
func (e *Engine) claimClients() {
	e.broadcast(Message{Type: MsgControllerChange})
}
