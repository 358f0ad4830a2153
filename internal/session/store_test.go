package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/yunqi/beacon/internal/packet"
)

func TestMemoryStore_CreateGetDelete(t *testing.T) {
	store := NewMemoryStore()

	_, ok := store.Get("dev-1")
	assert.False(t, ok)

	s := store.Create("dev-1")
	assert.Equal(t, "dev-1", s.ClientID)

	got, ok := store.Get("dev-1")
	assert.True(t, ok)
	assert.Same(t, s, got)

	store.Delete("dev-1")
	_, ok = store.Get("dev-1")
	assert.False(t, ok)
}

func TestMemoryStore_All(t *testing.T) {
	store := NewMemoryStore()
	store.Create("a")
	store.Create("b")

	all := store.All()
	assert.Len(t, all, 2)

	ids := map[string]bool{}
	for _, s := range all {
		ids[s.ClientID] = true
	}
	assert.True(t, ids["a"])
	assert.True(t, ids["b"])
}

func TestSession_SubscriptionTracking(t *testing.T) {
	s := New("dev-1")
	assert.False(t, s.HasSubscription("a/b"))

	s.AddSubscription("a/b")
	assert.True(t, s.HasSubscription("a/b"))

	s.RemoveSubscription("a/b")
	assert.False(t, s.HasSubscription("a/b"))
}

func TestSession_EnqueueDedup(t *testing.T) {
	s := New("dev-1")
	msg := &packet.Publish{
		FixedHeader: &packet.FixedHeader{PacketType: packet.TypePublish, Qos: 1},
		Topic:       "a/b",
		PacketId:    7,
		Payload:     []byte("hello"),
	}

	assert.True(t, s.Enqueue(msg))
	// An identical (packet id, topic, payload) message is a duplicate.
	dup := &packet.Publish{
		FixedHeader: &packet.FixedHeader{PacketType: packet.TypePublish, Qos: 1},
		Topic:       "a/b",
		PacketId:    7,
		Payload:     []byte("hello"),
	}
	assert.False(t, s.Enqueue(dup))
	assert.Len(t, s.QueuedMessages, 1)

	// Differing payload is not a duplicate even with the same packet id/topic.
	other := &packet.Publish{
		FixedHeader: &packet.FixedHeader{PacketType: packet.TypePublish, Qos: 1},
		Topic:       "a/b",
		PacketId:    7,
		Payload:     []byte("world"),
	}
	assert.True(t, s.Enqueue(other))
	assert.Len(t, s.QueuedMessages, 2)
}

func TestSession_FlushQueueClearsDedupState(t *testing.T) {
	s := New("dev-1")
	msg := &packet.Publish{
		FixedHeader: &packet.FixedHeader{PacketType: packet.TypePublish, Qos: 1},
		Topic:       "a/b",
		PacketId:    1,
		Payload:     []byte("x"),
	}
	s.Enqueue(msg)

	flushed := s.FlushQueue()
	assert.Len(t, flushed, 1)
	assert.Empty(t, s.QueuedMessages)

	// Re-enqueuing the same message after a flush is not treated as a dup.
	assert.True(t, s.Enqueue(msg))
}

func TestDedupKey_DiffersOnPayload(t *testing.T) {
	k1 := DedupKey(1, "a/b", []byte("hello"))
	k2 := DedupKey(1, "a/b", []byte("world"))
	assert.NotEqual(t, k1, k2)
}
