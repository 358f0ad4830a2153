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

package session

import (
	"context"
	"encoding/json"

	"github.com/go-redis/redis/v8"
	"github.com/yunqi/beacon/internal/packet"
)

// RedisStore is an opt-in alternate Store backend, matching the
// teacher's pluggable persistence.GetSessionStore(type) factory
// (internal/server/server.go). It is not required by the core's
// "no persisted state across restarts" guarantee (spec.md §6) — a
// broker configured with it simply keeps sessions alive in Redis
// instead of process memory, which is a deployment choice, not a
// protocol one.
type RedisStore struct {
	client    *redis.Client
	keyPrefix string
}

// NewRedisStore returns a Store backed by client. keyPrefix namespaces
// this broker's keys within a shared Redis instance.
func NewRedisStore(client *redis.Client, keyPrefix string) *RedisStore {
	return &RedisStore{client: client, keyPrefix: keyPrefix}
}

func (r *RedisStore) key(clientID string) string {
	return r.keyPrefix + ":session:" + clientID
}

// redisSession is the JSON wire shape stored in Redis. QueuedMessages
// are serialized with their raw fields rather than round-tripped
// through packet.Publish.Encode, since MQTT wire bytes are an
// implementation detail Redis doesn't need to understand.
type redisSession struct {
	ClientID      string         `json:"client_id"`
	Subscriptions []string       `json:"subscriptions"`
	Queued        []redisPublish `json:"queued_messages"`
}

type redisPublish struct {
	Topic    string `json:"topic"`
	PacketId uint16 `json:"packet_id"`
	Qos      byte   `json:"qos"`
	Payload  []byte `json:"payload"`
}

func (r *RedisStore) Get(clientID string) (*Session, bool) {
	ctx := context.Background()
	raw, err := r.client.Get(ctx, r.key(clientID)).Bytes()
	if err != nil {
		return nil, false
	}
	var rs redisSession
	if err := json.Unmarshal(raw, &rs); err != nil {
		return nil, false
	}
	return r.fromWire(&rs), true
}

func (r *RedisStore) Create(clientID string) *Session {
	s := New(clientID)
	_ = r.save(s)
	return s
}

func (r *RedisStore) Delete(clientID string) {
	ctx := context.Background()
	r.client.Del(ctx, r.key(clientID))
}

// All lists every session this broker has persisted in Redis, scanning
// keys under keyPrefix. Used by the PUBLISH handler's offline fan-out.
func (r *RedisStore) All() []*Session {
	ctx := context.Background()
	var out []*Session
	iter := r.client.Scan(ctx, 0, r.keyPrefix+":session:*", 0).Iterator()
	for iter.Next(ctx) {
		raw, err := r.client.Get(ctx, iter.Val()).Bytes()
		if err != nil {
			continue
		}
		var rs redisSession
		if err := json.Unmarshal(raw, &rs); err != nil {
			continue
		}
		out = append(out, r.fromWire(&rs))
	}
	return out
}

// Save persists s. The connection handler calls this after mutating a
// session obtained from Get/Create, since unlike MemoryStore, mutating
// the in-process *Session struct does not by itself update Redis.
func (r *RedisStore) Save(s *Session) error {
	return r.save(s)
}

func (r *RedisStore) save(s *Session) error {
	rs := &redisSession{ClientID: s.ClientID}
	for topic := range s.Subscriptions {
		rs.Subscriptions = append(rs.Subscriptions, topic)
	}
	for _, m := range s.QueuedMessages {
		rs.Queued = append(rs.Queued, redisPublish{
			Topic:    m.Topic,
			PacketId: m.PacketId,
			Qos:      m.Qos(),
			Payload:  m.Payload,
		})
	}
	data, err := json.Marshal(rs)
	if err != nil {
		return err
	}
	ctx := context.Background()
	return r.client.Set(ctx, r.key(s.ClientID), data, 0).Err()
}

func (r *RedisStore) fromWire(rs *redisSession) *Session {
	s := New(rs.ClientID)
	for _, t := range rs.Subscriptions {
		s.AddSubscription(t)
	}
	for _, m := range rs.Queued {
		s.QueuedMessages = append(s.QueuedMessages, publishFromWire(m))
	}
	for _, m := range s.QueuedMessages {
		s.QueuedMessageIDs[DedupKey(m.PacketId, m.Topic, m.Payload)] = struct{}{}
	}
	return s
}

// publishFromWire reconstructs a packet.Publish from its Redis JSON
// shape. The fixed header's RemainLength is left unset since it is
// only meaningful on the wire, never re-derived for a queued message.
func publishFromWire(m redisPublish) *packet.Publish {
	return &packet.Publish{
		FixedHeader: &packet.FixedHeader{
			PacketType: packet.TypePublish,
			Qos:        m.Qos,
		},
		Topic:    m.Topic,
		PacketId: m.PacketId,
		Payload:  m.Payload,
	}
}

var _ Store = (*RedisStore)(nil)
