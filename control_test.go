package appshellcache

import (
	"context"
	"testing"
)

func TestSkipWaitingForcesActivation(t *testing.T) {
	engine := newTestEngine(t, "http://origin.test", func(c *Config) {
		c.Version = "v2"
	})
	engine.stores.Put("ns-assets-v1", "a", nil)

	engine.HandleMessage(context.Background(), Message{Type: MsgSkipWaiting})

	names := storeNames(t, engine)
	if len(names) != 2 || names[0] != "ns-assets-v2" || names[1] != "ns-shell-v2" {
		t.Fatalf("Store names are %v", names)
	}
}

func TestClearCacheDeletesAllVersions(t *testing.T) {
	engine := newTestEngine(t, "http://origin.test", func(c *Config) {
		c.Version = "v2"
	})
	engine.stores.Put("ns-assets-v1", "a", nil)
	engine.stores.Put("ns-assets-v2", "a", nil)
	engine.stores.Put("ns-shell-v2", "a", nil)
	engine.stores.Put("other-assets-v1", "a", nil)

	engine.HandleMessage(context.Background(), Message{Type: MsgClearCache})

	names := storeNames(t, engine)
	if len(names) != 1 || names[0] != "other-assets-v1" {
		t.Fatalf("Store names are %v", names)
	}
}

func TestClearAllAlias(t *testing.T) {
	engine := newTestEngine(t, "http://origin.test", nil)
	engine.stores.Put("ns-assets-v1", "a", nil)

	engine.HandleMessage(context.Background(), Message{Type: MsgClearAll})

	if names := storeNames(t, engine); len(names) != 0 {
		t.Fatalf("Store names are %v", names)
	}
}

func TestSyncTriggeredBroadcasts(t *testing.T) {
	engine := newTestEngine(t, "http://origin.test", nil)
	first, cancelFirst := engine.Subscribe()
	defer cancelFirst()
	second, cancelSecond := engine.Subscribe()
	defer cancelSecond()

	engine.HandleMessage(context.Background(), Message{Type: MsgSyncTriggered})

	for _, msgs := range []<-chan Message{first, second} {
		select {
		case msg := <-msgs:
			if msg.Type != MsgBackgroundSync {
				t.Fatalf("Message type is %s", msg.Type)
			}
		default:
			t.Fatal("No sync broadcast received")
		}
	}
}

// A subscriber that cannot keep up is skipped rather than blocking the
// broadcast.
func TestBroadcastDoesNotBlockOnSlowSubscriber(t *testing.T) {
	engine := newTestEngine(t, "http://origin.test", nil)
	_, cancel := engine.Subscribe()
	defer cancel()

	// fill the subscriber's buffer and then some
	for i := 0; i < 20; i++ {
		engine.HandleMessage(context.Background(), Message{Type: MsgSyncTriggered})
	}
}

func TestCancelledSubscriberIsRemoved(t *testing.T) {
	engine := newTestEngine(t, "http://origin.test", nil)
	msgs, cancel := engine.Subscribe()
	cancel()
	// cancelling twice is safe
	cancel()

	engine.HandleMessage(context.Background(), Message{Type: MsgSyncTriggered})

	if _, open := <-msgs; open {
		t.Fatal("Channel still open after cancel")
	}
}

func TestUnknownMessageIsIgnored(t *testing.T) {
	engine := newTestEngine(t, "http://origin.test", nil)
	engine.stores.Put("ns-assets-v1", "a", nil)

	engine.HandleMessage(context.Background(), Message{Type: "BOGUS"})

	if names := storeNames(t, engine); len(names) != 1 {
		t.Fatalf("Store names are %v", names)
	}
}
