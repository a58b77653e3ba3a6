package appshellcache

import (
	"context"
	"strings"
)

// Message types accepted from and broadcast to application instances.
const (
	// MsgSkipWaiting forces immediate activation of this engine version.
	MsgSkipWaiting = "SKIP_WAITING"
	// MsgClearCache deletes every store in the namespace, any version.
	MsgClearCache = "CLEAR_CACHE"
	// MsgClearAll is an accepted alias for MsgClearCache.
	MsgClearAll = "CLEAR_ALL"
	// MsgSyncTriggered is the best-effort reconnection signal.
	MsgSyncTriggered = "SYNC_TRIGGERED"
	// MsgBackgroundSync is broadcast to instances on a reconnection signal.
	MsgBackgroundSync = "BACKGROUND_SYNC_TRIGGERED"
	// MsgControllerChange is broadcast when the engine claims its instances.
	MsgControllerChange = "CONTROLLER_CHANGE"
)

// Message is one out-of-band command or signal on the control channel.
type Message struct {
	Type string `json:"type"`
}

// HandleMessage processes a command sent by an application instance.
// Commands never fail the engine: errors are logged and swallowed.
// Unknown message types are ignored.
func (e *Engine) HandleMessage(ctx context.Context, msg Message) {
	switch msg.Type {
	case MsgSkipWaiting:
		if err := e.Activate(ctx); err != nil {
			e.log.Error().Err(err).Msg("Forced activation failed")
		}
	case MsgClearCache, MsgClearAll:
		e.clearStores()
	case MsgSyncTriggered:
		e.broadcast(Message{Type: MsgBackgroundSync})
	default:
		e.log.Debug().Str("type", msg.Type).Msg("Ignoring unknown message")
	}
}

// clearStores deletes every store in the namespace regardless of
// version. Used for manual recovery.
func (e *Engine) clearStores() {
	names, err := e.stores.Names()
	if err != nil {
		e.log.Error().Err(err).Msg("Could not enumerate stores")
		return
	}
	for _, name := range names {
		if !strings.HasPrefix(name, e.namespace+"-") {
			continue
		}
		if err := e.stores.Drop(name); err != nil {
			e.log.Error().Err(err).Str("store", name).Msg("Could not delete store")
			continue
		}
		e.log.Debug().Str("store", name).Msg("Deleted store")
	}
}

// Subscribe registers an application instance for broadcast signals.
// The returned cancel function must be called when the instance goes away.
func (e *Engine) Subscribe() (<-chan Message, func()) {
	e.subMutex.Lock()
	defer e.subMutex.Unlock()
	ch := make(chan Message, 8)
	id := e.nextSub
	e.nextSub++
	e.subs[id] = ch
	cancel := func() {
		e.subMutex.Lock()
		defer e.subMutex.Unlock()
		if _, ok := e.subs[id]; ok {
			delete(e.subs, id)
			close(ch)
		}
	}
	return ch, cancel
}

// broadcast delivers the message to every subscriber without blocking.
// Delivery is best-effort: an instance that cannot keep up is skipped.
func (e *Engine) broadcast(msg Message) {
	e.subMutex.Lock()
	defer e.subMutex.Unlock()
	for _, ch := range e.subs {
		select {
		case ch <- msg:
		default:
		}
	}
}
