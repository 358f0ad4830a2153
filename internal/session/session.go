/*
 *    Copyright 2021 chenquan
 *
 *    Licensed under the Apache License, Version 2.0 (the "License");
 *    you may not use this file except in compliance with the License.
 *    You may obtain a copy of the License at
 *
 *        http://www.apache.org/licenses/LICENSE-2.0
 *
 *    Unless required by applicable law or agreed to in writing, software
 *    distributed under the License is distributed on an "AS IS" BASIS,
 *    WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 *    See the License for the specific language governing permissions and
 *    limitations under the License.
 */

// Package session holds the per-client-id session record: the
// subscription set and the offline PUBLISH queue that survive a
// clean_session=false disconnect. Callers are expected to hold the
// broker's mutex (internal/broker) across any Store method call and
// any mutation of the returned *Session — there is no independent
// locking here, matching the single-mutex concurrency model spec'd for
// the broker as a whole.
package session

import (
	"crypto/sha256"
	"fmt"

	"github.com/yunqi/beacon/internal/packet"
)

// Session is the durable-in-memory record for one client_id.
type Session struct {
	ClientID         string
	Subscriptions    map[string]struct{}
	QueuedMessages   []*packet.Publish
	QueuedMessageIDs map[string]struct{}
}

// New returns an empty session for clientID.
func New(clientID string) *Session {
	return &Session{
		ClientID:         clientID,
		Subscriptions:    make(map[string]struct{}),
		QueuedMessageIDs: make(map[string]struct{}),
	}
}

// AddSubscription records topic as subscribed.
func (s *Session) AddSubscription(topic string) {
	s.Subscriptions[topic] = struct{}{}
}

// RemoveSubscription forgets topic.
func (s *Session) RemoveSubscription(topic string) {
	delete(s.Subscriptions, topic)
}

// HasSubscription reports whether topic is subscribed.
func (s *Session) HasSubscription(topic string) bool {
	_, ok := s.Subscriptions[topic]
	return ok
}

// DedupKey derives the offline-queue deduplication key for a PUBLISH.
// Per DESIGN.md's recorded Open Question decision, this uses
// (packet_id, topic, sha256(payload)) rather than the source's lossy
// UTF-8-decoded-payload key, since an arbitrary PUBLISH payload is not
// guaranteed to be valid UTF-8.
func DedupKey(packetId uint16, topic string, payload []byte) string {
	sum := sha256.Sum256(payload)
	return fmt.Sprintf("%d-%s-%x", packetId, topic, sum)
}

// Enqueue appends msg to the offline queue unless an equivalent message
// (by DedupKey) is already queued. Reports whether it was appended.
func (s *Session) Enqueue(msg *packet.Publish) bool {
	key := DedupKey(msg.PacketId, msg.Topic, msg.Payload)
	if _, ok := s.QueuedMessageIDs[key]; ok {
		return false
	}
	s.QueuedMessageIDs[key] = struct{}{}
	s.QueuedMessages = append(s.QueuedMessages, msg)
	return true
}

// FlushQueue returns the queued messages in enqueue order and clears
// both the queue and its dedup-id set.
func (s *Session) FlushQueue() []*packet.Publish {
	flushed := s.QueuedMessages
	s.QueuedMessages = nil
	s.QueuedMessageIDs = make(map[string]struct{})
	return flushed
}

// Store persists session records across CONNECTs. The broker holds
// exactly one Store for its lifetime.
type Store interface {
	// Get returns the session for clientID, if one exists.
	Get(clientID string) (*Session, bool)
	// Create replaces (or creates) an empty session for clientID and
	// returns it.
	Create(clientID string) *Session
	// Delete removes the session for clientID, if any.
	Delete(clientID string)
	// All returns every stored session. Used by the PUBLISH handler to
	// find offline subscribers (spec.md §4.3).
	All() []*Session
	// Save persists any in-place mutation made to a *Session returned
	// by Get/Create. MemoryStore's sessions already live in the store's
	// own map, so this is a no-op there; a backend that deserializes a
	// fresh copy on every Get (RedisStore) needs it to write mutations
	// back.
	Save(s *Session) error
}
