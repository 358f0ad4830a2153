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

// Package broker holds the single process-wide registry of connected
// clients, topic subscriptions, and sessions that every connection
// handler reads and mutates. A single mutex guards all four registries
// and the handler is allowed to write to a client's connection while
// holding it, trading a little contention for the simplicity of never
// reasoning about interleaved registry mutation and packet delivery.
package broker

import (
	"sync"

	"github.com/yunqi/beacon/internal/auth"
	"github.com/yunqi/beacon/internal/code"
	"github.com/yunqi/beacon/internal/packet"
	"github.com/yunqi/beacon/internal/session"
	"github.com/yunqi/beacon/internal/xlog"
	"go.uber.org/zap"
)

// Conn is the minimal surface the broker needs from a client
// connection: something to write packets to and close on take-over.
type Conn interface {
	WritePacket(p packet.Packet) error
	Close() error
}

// ClientHandle identifies one live connection. Registries key off its
// pointer identity, mirroring the original's use of the StreamWriter
// object itself as a map key.
type ClientHandle struct {
	Conn         Conn
	ClientID     string
	Username     string
	CleanSession bool
}

// Broker is the process-wide connection/subscription/session registry.
type Broker struct {
	mu sync.Mutex

	connectedClients    map[string]*ClientHandle
	writerToClientID    map[*ClientHandle]string
	subscriptions       map[string]map[*ClientHandle]struct{}
	clientSubscriptions map[*ClientHandle]map[string]struct{}

	sessions session.Store

	authEnabled bool
	verifier    auth.Verifier
	authorizer  auth.Authorizer

	log *xlog.Log
}

var (
	once     sync.Once
	instance *Broker
)

// Options configures a Broker. Verifier/Authorizer may be nil, in
// which case authentication is disabled and every topic is authorized
// — matching the original's `authentication_enabled` switch.
type Options struct {
	Sessions   session.Store
	Verifier   auth.Verifier
	Authorizer auth.Authorizer
}

// New returns the process-wide Broker, constructing it on the first
// call and ignoring opts on subsequent calls. The broker is a
// singleton by construction: exactly one registry set must exist per
// process, since two would each think they owned the whole set of
// connected clients.
func New(opts Options) *Broker {
	once.Do(func() {
		if opts.Sessions == nil {
			opts.Sessions = session.NewMemoryStore()
		}
		authorizer := opts.Authorizer
		if authorizer == nil {
			authorizer = auth.AllowAll
		}
		instance = &Broker{
			connectedClients:    make(map[string]*ClientHandle),
			writerToClientID:    make(map[*ClientHandle]string),
			subscriptions:       make(map[string]map[*ClientHandle]struct{}),
			clientSubscriptions: make(map[*ClientHandle]map[string]struct{}),
			sessions:            opts.Sessions,
			authEnabled:         opts.Verifier != nil,
			verifier:            opts.Verifier,
			authorizer:          authorizer,
			log:                 xlog.LoggerModule("broker"),
		}
	})
	return instance
}

// reset is test-only: it lets package tests exercise New's
// construction path more than once within the same process.
func reset() {
	once = sync.Once{}
	instance = nil
}

// Connect performs the CONNECT-time registry updates: authentication,
// session resolution, existing-connection take-over, and
// registration. It returns the CONNACK code to send; on any code other
// than code.Success the caller must not proceed to register the
// connection as live (the broker has not done so either).
//
// Grounded on ConnectCommand.execute in the original source: the whole
// registry update runs under one lock acquisition. The CONNACK itself,
// including the one for an auth failure, is written by the caller after
// Connect has returned and released the lock.
func (b *Broker) Connect(h *ClientHandle, clientID, username, password string, cleanSession bool) (code.Code, *session.Session) {
	b.mu.Lock()
	defer b.mu.Unlock()

	h.ClientID = clientID
	h.Username = username
	h.CleanSession = cleanSession

	if b.authEnabled {
		if !b.verifier.Verify(username, password) {
			b.log.Info("authentication failed", zap.String("client_id", clientID), zap.String("username", username))
			return code.BadUsernameOrPassword, nil
		}
	}

	var sess *session.Session
	if !cleanSession {
		if existing, ok := b.sessions.Get(clientID); ok {
			sess = existing
			b.log.Info("resuming session", zap.String("client_id", clientID))
		} else {
			sess = b.sessions.Create(clientID)
			b.log.Info("creating session", zap.String("client_id", clientID))
		}
	} else {
		b.sessions.Delete(clientID)
		sess = b.sessions.Create(clientID)
	}

	if old, ok := b.connectedClients[clientID]; ok {
		b.unregisterLocked(old)
		_ = old.Conn.Close()
		b.log.Info("closed previous connection on take-over", zap.String("client_id", clientID))
	}

	b.connectedClients[clientID] = h
	b.writerToClientID[h] = clientID

	return code.Success, sess
}

// unregisterLocked removes h from every registry except
// connectedClients, whose entry the caller replaces or deletes itself.
// Must be called with b.mu held.
func (b *Broker) unregisterLocked(h *ClientHandle) {
	for topic := range b.clientSubscriptions[h] {
		if subs := b.subscriptions[topic]; subs != nil {
			delete(subs, h)
			if len(subs) == 0 {
				delete(b.subscriptions, topic)
			}
		}
	}
	delete(b.clientSubscriptions, h)
	delete(b.writerToClientID, h)
}

// Subscribe applies a SUBSCRIBE's topic filters for h, returning the
// granted QoS (or code.SubscribeFailure) per filter in order. Queued
// offline messages are flushed to h immediately after a topic goes
// from unsubscribed to subscribed, mirroring SubscribeCommand.execute.
func (b *Broker) Subscribe(h *ClientHandle, filters []packet.TopicFilter) []byte {
	b.mu.Lock()
	defer b.mu.Unlock()

	granted := make([]byte, 0, len(filters))
	for _, f := range filters {
		if b.authEnabled {
			if !b.authorizer.IsTopicAuthorized(h.Username, f.Topic) {
				granted = append(granted, code.SubscribeFailure)
				b.log.Info("subscribe denied", zap.String("username", h.Username), zap.String("topic", f.Topic))
				continue
			}
		}

		if b.clientSubscriptions[h] == nil {
			b.clientSubscriptions[h] = make(map[string]struct{})
		}
		if _, already := b.clientSubscriptions[h][f.Topic]; already {
			granted = append(granted, f.Qos)
			continue
		}

		if b.subscriptions[f.Topic] == nil {
			b.subscriptions[f.Topic] = make(map[*ClientHandle]struct{})
		}
		b.subscriptions[f.Topic][h] = struct{}{}
		b.clientSubscriptions[h][f.Topic] = struct{}{}
		granted = append(granted, f.Qos)

		if sess, ok := b.sessions.Get(h.ClientID); ok {
			sess.AddSubscription(f.Topic)
			for _, queued := range sess.FlushQueue() {
				if err := h.Conn.WritePacket(queued); err != nil {
					b.log.Error("flush queued message", zap.Error(err), zap.String("client_id", h.ClientID))
					break
				}
			}
			if err := b.sessions.Save(sess); err != nil {
				b.log.Error("save session", zap.Error(err), zap.String("client_id", h.ClientID))
			}
		}
	}
	return granted
}

// Unsubscribe removes each topic in topics from h's subscriptions.
func (b *Broker) Unsubscribe(h *ClientHandle, topics []string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	sess, _ := b.sessions.Get(h.ClientID)
	for _, topic := range topics {
		if _, ok := b.clientSubscriptions[h][topic]; !ok {
			continue
		}
		delete(b.subscriptions[topic], h)
		if len(b.subscriptions[topic]) == 0 {
			delete(b.subscriptions, topic)
		}
		delete(b.clientSubscriptions[h], topic)
		if sess != nil {
			sess.RemoveSubscription(topic)
		}
	}
	if sess != nil {
		if err := b.sessions.Save(sess); err != nil {
			b.log.Error("save session", zap.Error(err), zap.String("client_id", h.ClientID))
		}
	}
}

// Publish fans pub out to every online subscriber of pub.Topic except
// the publisher itself, and queues it for every offline session
// subscribed to that topic. Reports whether the publisher is
// authorized to publish at all; if false the caller must silently drop
// the message (no ack), matching PublishCommand.execute's behavior
// when authorization fails.
func (b *Broker) Publish(h *ClientHandle, pub *packet.Publish) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.authEnabled && !b.authorizer.IsTopicAuthorized(h.Username, pub.Topic) {
		b.log.Info("publish denied", zap.String("username", h.Username), zap.String("topic", pub.Topic))
		return false
	}

	for subscriber := range b.subscriptions[pub.Topic] {
		if subscriber == h {
			continue
		}
		if err := subscriber.Conn.WritePacket(pub); err != nil {
			b.log.Error("forward publish", zap.Error(err), zap.String("client_id", subscriber.ClientID))
		}
	}

	if pub.Qos() > 0 {
		for _, sess := range b.sessions.All() {
			if _, online := b.connectedClients[sess.ClientID]; online {
				continue
			}
			if !sess.HasSubscription(pub.Topic) {
				continue
			}
			if sess.Enqueue(pub) {
				b.log.Info("queued publish for offline client",
					zap.String("client_id", sess.ClientID), zap.String("topic", pub.Topic))
				if err := b.sessions.Save(sess); err != nil {
					b.log.Error("save session", zap.Error(err), zap.String("client_id", sess.ClientID))
				}
			}
		}
	}

	return true
}

// Disconnect removes h from every registry. Called on DISCONNECT and
// on any read/write error that ends the connection. If h is still the
// registered connection for its client id and its CONNECT had
// clean_session=true, the client's session is also destroyed here, per
// the session-lifetime invariant of spec.md §3: a session exists iff
// the client is connected or its last CONNECT had clean_session=false.
// A handle superseded by a take-over leaves the session alone, since it
// now belongs to the connection that replaced it.
func (b *Broker) Disconnect(h *ClientHandle) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.unregisterLocked(h)
	if current, ok := b.connectedClients[h.ClientID]; ok && current == h {
		delete(b.connectedClients, h.ClientID)
		if h.CleanSession {
			b.sessions.Delete(h.ClientID)
		}
	}
}
