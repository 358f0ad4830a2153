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

package server

import (
	"context"
	"errors"
	"net"
	"sync"

	"github.com/yunqi/beacon/internal/broker"
	"github.com/yunqi/beacon/internal/code"
	"github.com/yunqi/beacon/internal/packet"
	"github.com/yunqi/beacon/internal/xerror"
	"github.com/yunqi/beacon/internal/xlog"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// client is one accepted TCP connection's read/dispatch loop. It owns
// exactly one broker.ClientHandle for its lifetime.
type client struct {
	conn   net.Conn
	broker *broker.Broker
	tracer trace.Tracer
	log    *xlog.Log

	writeMu sync.Mutex
	handle  *broker.ClientHandle

	connected bool
}

func newClient(s *server, conn net.Conn) *client {
	c := &client{
		conn:   conn,
		broker: s.broker,
		tracer: s.tracer,
		log:    xlog.LoggerModule("client"),
	}
	c.handle = &broker.ClientHandle{Conn: c}
	return c
}

// WritePacket serializes p directly to the underlying connection,
// serialized against concurrent writes from the broker's fan-out path
// and this client's own read loop.
func (c *client) WritePacket(p packet.Packet) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return p.Encode(c.conn)
}

// Close closes the underlying connection. Safe to call more than once.
func (c *client) Close() error {
	return c.conn.Close()
}

// listen runs the read/dispatch loop until the connection is closed or
// a protocol error ends it. It always unregisters the connection from
// the broker on the way out.
func (c *client) listen() {
	defer c.cleanup()

	for {
		p, err := packet.ReadPacket(c.conn)
		if err != nil {
			if !errors.Is(err, xerror.ErrStreamClosed) {
				c.log.Info("connection ended", zap.Error(err), zap.String("client_id", c.handle.ClientID))
			}
			return
		}

		ctx, span := c.tracer.Start(context.Background(), spanName(p))
		keepGoing := c.dispatch(ctx, p)
		span.End()
		if !keepGoing {
			return
		}
	}
}

func spanName(p packet.Packet) string {
	switch p.(type) {
	case *packet.Connect:
		return "mqtt.connect"
	case *packet.Subscribe:
		return "mqtt.subscribe"
	case *packet.Unsubscribe:
		return "mqtt.unsubscribe"
	case *packet.Publish:
		return "mqtt.publish"
	case *packet.Pubrec:
		return "mqtt.pubrec"
	case *packet.Pubrel:
		return "mqtt.pubrel"
	case *packet.Pubcomp:
		return "mqtt.pubcomp"
	case *packet.Pingreq:
		return "mqtt.pingreq"
	case *packet.Disconnect:
		return "mqtt.disconnect"
	default:
		return "mqtt.unknown"
	}
}

// dispatch handles one decoded packet. It returns false when the
// connection should be closed (DISCONNECT, a protocol error, or a
// CONNECT that must not be followed by any other packet).
//
// Per spec.md §4.3's state machine, the first packet on a connection
// must be CONNECT and no subsequent packet may be another CONNECT;
// either violation is a protocol error that closes the connection
// with no response, distinct from a malformed packet at the codec
// level.
func (c *client) dispatch(ctx context.Context, p packet.Packet) bool {
	_, isConnect := p.(*packet.Connect)
	if !c.connected && !isConnect {
		c.log.Error("protocol violation", zap.Error(xerror.ErrProtocolViolation), zap.String("detail", "first packet was not CONNECT"))
		return false
	}
	if c.connected && isConnect {
		c.log.Error("protocol violation", zap.Error(xerror.ErrProtocolViolation), zap.String("detail", "CONNECT on an already-connected stream"), zap.String("client_id", c.handle.ClientID))
		return false
	}

	switch msg := p.(type) {
	case *packet.Connect:
		return c.onConnect(msg)
	case *packet.Subscribe:
		c.onSubscribe(msg)
	case *packet.Unsubscribe:
		c.onUnsubscribe(msg)
	case *packet.Publish:
		c.onPublish(msg)
	case *packet.Pubrec:
		c.onPubrec(msg)
	case *packet.Pubrel:
		c.onPubrel(msg)
	case *packet.Puback, *packet.Pubcomp:
		// No action required: a subscriber's PUBACK, or the PUBCOMP
		// ending a QoS 2 handshake, completes the exchange from this side.
	case *packet.Pingreq:
		c.onPingreq()
	case *packet.Disconnect:
		return false
	default:
		c.log.Info("unexpected packet on connection", zap.String("client_id", c.handle.ClientID))
		return false
	}
	return true
}

// onConnect handles CONNECT: it is grounded on ConnectCommand.execute
// in the original source, including the behavior of closing the
// connection (without further reads) after a failed CONNACK.
func (c *client) onConnect(msg *packet.Connect) bool {
	cd, _ := c.broker.Connect(c.handle, msg.ClientId, msg.Username, msg.Password, msg.CleanSession)
	connack := msg.NewConnackPacket(cd, false)
	if err := c.WritePacket(connack); err != nil {
		c.log.Error("write connack", zap.Error(err))
		return false
	}
	if cd != code.Success {
		return false
	}
	c.connected = true
	c.log.Info("client connected", zap.String("client_id", msg.ClientId), zap.Bool("clean_session", msg.CleanSession))
	return true
}

func (c *client) onSubscribe(msg *packet.Subscribe) {
	granted := c.broker.Subscribe(c.handle, msg.Subscriptions)
	suback := &packet.Suback{PacketId: msg.PacketId, ReturnCodes: granted}
	if err := c.WritePacket(suback); err != nil {
		c.log.Error("write suback", zap.Error(err))
	}
}

func (c *client) onUnsubscribe(msg *packet.Unsubscribe) {
	c.broker.Unsubscribe(c.handle, msg.Topics)
	unsuback := &packet.Unsuback{PacketId: msg.PacketId}
	if err := c.WritePacket(unsuback); err != nil {
		c.log.Error("write unsuback", zap.Error(err))
	}
}

// onPublish handles PUBLISH: authorization, fan-out, offline queuing,
// then the QoS-appropriate acknowledgment. An authorization failure is
// a silent drop — no ack of any kind — per DESIGN.md's recorded Open
// Question decision.
func (c *client) onPublish(msg *packet.Publish) {
	if !c.broker.Publish(c.handle, msg) {
		return
	}

	switch msg.Qos() {
	case 1:
		if err := c.WritePacket(&packet.Puback{PacketId: msg.PacketId}); err != nil {
			c.log.Error("write puback", zap.Error(err))
		}
	case 2:
		if err := c.WritePacket(&packet.Pubrec{PacketId: msg.PacketId}); err != nil {
			c.log.Error("write pubrec", zap.Error(err))
		}
	}
}

func (c *client) onPubrec(msg *packet.Pubrec) {
	if err := c.WritePacket(&packet.Pubrel{PacketId: msg.PacketId}); err != nil {
		c.log.Error("write pubrel", zap.Error(err))
	}
}

func (c *client) onPubrel(msg *packet.Pubrel) {
	if err := c.WritePacket(&packet.Pubcomp{PacketId: msg.PacketId}); err != nil {
		c.log.Error("write pubcomp", zap.Error(err))
	}
}

func (c *client) onPingreq() {
	if err := c.WritePacket(&packet.Pingresp{}); err != nil {
		c.log.Error("write pingresp", zap.Error(err))
	}
}

func (c *client) cleanup() {
	if c.connected {
		c.broker.Disconnect(c.handle)
	}
	_ = c.conn.Close()
}
