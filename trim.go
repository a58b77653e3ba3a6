package appshellcache

// trimStore evicts the oldest-inserted entries once the store exceeds
// max. Trimming is best-effort housekeeping: it never propagates an
// error, and an empty or under-limit store is left untouched.
func (e *Engine) trimStore(store string, max int) {
	if max <= 0 {
		return
	}
	keys, err := e.stores.Keys(store)
	if err != nil {
		e.log.Error().Err(err).Str("store", store).Msg("Could not list keys for trimming")
		return
	}
	for i := 0; i < len(keys)-max; i++ {
		if err := e.stores.Delete(store, keys[i]); err != nil {
			e.log.Error().Err(err).Str("store", store).Str("key", keys[i]).Msg("Could not evict entry")
			continue
		}
		e.log.Trace().Str("store", store).Str("key", keys[i]).Msg("Evicted oldest entry")
	}
}
