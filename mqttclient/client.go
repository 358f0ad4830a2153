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

// Package mqttclient is a small MQTT 3.1.1 client for testing and
// driving a broker built with internal/packet, grounded on the
// original source's connection/client.py Client class.
package mqttclient

import (
	"fmt"
	"net"
	"sync/atomic"
	"time"

	"github.com/yunqi/beacon/internal/code"
	"github.com/yunqi/beacon/internal/packet"
	"github.com/yunqi/beacon/internal/xlog"
	"go.uber.org/zap"
)

// Options configures a Client.
type Options struct {
	ClientID     string
	Username     string
	Password     string
	Host         string
	Port         int
	CleanSession bool
	KeepAlive    uint16
}

// Handler is invoked for every inbound PUBLISH while Listen runs.
type Handler func(topic string, payload []byte, qos byte)

// Client is a single MQTT 3.1.1 connection to a broker.
type Client struct {
	opts Options
	conn net.Conn
	log  *xlog.Log

	// nextPacketID is a monotonic per-client counter. The original
	// source hard-codes packet id 1 for every SUBSCRIBE and 2 for
	// every PUBLISH; this fixes that so concurrent in-flight QoS 1/2
	// exchanges don't collide on id reuse (SPEC_FULL §12).
	nextPacketID uint32

	handler Handler
}

// New constructs a Client. Call Connect before any other method.
func New(opts Options) *Client {
	if opts.Host == "" {
		opts.Host = "127.0.0.1"
	}
	if opts.Port == 0 {
		opts.Port = 1884
	}
	return &Client{opts: opts, log: xlog.LoggerModule(fmt.Sprintf("client-%s", opts.ClientID))}
}

// OnPublish registers the handler Listen invokes for inbound PUBLISH
// packets. Must be set before calling Listen.
func (c *Client) OnPublish(h Handler) {
	c.handler = h
}

func (c *Client) packetID() uint16 {
	return uint16(atomic.AddUint32(&c.nextPacketID, 1))
}

// Connect dials the broker and performs the CONNECT/CONNACK handshake.
// Reports false (with no error) if the broker refused the connection.
func (c *Client) Connect() (bool, error) {
	conn, err := net.DialTimeout("tcp", fmt.Sprintf("%s:%d", c.opts.Host, c.opts.Port), 5*time.Second)
	if err != nil {
		return false, err
	}
	c.conn = conn
	c.log.Info("connected", zap.String("addr", conn.RemoteAddr().String()))

	connect := &packet.Connect{
		ProtocolName:  packet.ProtocolName311,
		ProtocolLevel: byte(packet.Version311),
		ConnectFlags: packet.ConnectFlags{
			CleanSession: c.opts.CleanSession,
			UsernameFlag: c.opts.Username != "",
			PasswordFlag: c.opts.Password != "",
		},
		KeepAlive: c.opts.KeepAlive,
		ClientId:  c.opts.ClientID,
		Username:  c.opts.Username,
		Password:  c.opts.Password,
	}
	if err := connect.Encode(c.conn); err != nil {
		return false, err
	}
	c.log.Info("sent CONNECT")

	p, err := packet.ReadPacket(c.conn)
	if err != nil {
		return false, err
	}
	connack, ok := p.(*packet.Connack)
	if !ok {
		return false, fmt.Errorf("mqttclient: expected CONNACK, got %T", p)
	}
	c.log.Info("received CONNACK", zap.Bool("session_present", connack.SessionPresent), zap.Uint8("return_code", uint8(connack.Code)))

	if connack.Code != code.Success {
		c.log.Error("connection refused", zap.Uint8("return_code", uint8(connack.Code)))
		_ = c.conn.Close()
		return false, nil
	}
	return true, nil
}

// Subscribe sends a SUBSCRIBE for one topic filter and waits for the
// matching SUBACK.
func (c *Client) Subscribe(topic string, qos byte) (*packet.Suback, error) {
	id := c.packetID()
	sub := &packet.Subscribe{PacketId: id, Subscriptions: []packet.TopicFilter{{Topic: topic, Qos: qos}}}
	if err := sub.Encode(c.conn); err != nil {
		return nil, err
	}
	c.log.Info("sent SUBSCRIBE", zap.String("topic", topic), zap.Uint8("qos", qos))

	p, err := packet.ReadPacket(c.conn)
	if err != nil {
		return nil, err
	}
	suback, ok := p.(*packet.Suback)
	if !ok {
		return nil, fmt.Errorf("mqttclient: expected SUBACK, got %T", p)
	}
	c.log.Info("received SUBACK", zap.Uint16("packet_id", suback.PacketId), zap.Binary("return_codes", suback.ReturnCodes))
	return suback, nil
}

// Publish sends a PUBLISH and, for qos>0, drives the ack handshake to
// completion (PUBACK for qos 1; PUBREC/PUBREL/PUBCOMP for qos 2)
// before returning.
func (c *Client) Publish(topic string, payload []byte, qos byte) error {
	var id uint16
	if qos > 0 {
		id = c.packetID()
	}
	pub := &packet.Publish{
		FixedHeader: &packet.FixedHeader{PacketType: packet.TypePublish, Qos: qos},
		Topic:       topic,
		PacketId:    id,
		Payload:     payload,
	}
	if err := pub.Encode(c.conn); err != nil {
		return err
	}
	c.log.Info("sent PUBLISH", zap.String("topic", topic), zap.Uint8("qos", qos))

	switch qos {
	case 1:
		p, err := packet.ReadPacket(c.conn)
		if err != nil {
			return err
		}
		puback, ok := p.(*packet.Puback)
		if !ok {
			return fmt.Errorf("mqttclient: expected PUBACK, got %T", p)
		}
		c.log.Info("received PUBACK", zap.Uint16("packet_id", puback.PacketId))
	case 2:
		p, err := packet.ReadPacket(c.conn)
		if err != nil {
			return err
		}
		pubrec, ok := p.(*packet.Pubrec)
		if !ok {
			return fmt.Errorf("mqttclient: expected PUBREC, got %T", p)
		}
		c.log.Info("received PUBREC", zap.Uint16("packet_id", pubrec.PacketId))

		if err := (&packet.Pubrel{PacketId: pubrec.PacketId}).Encode(c.conn); err != nil {
			return err
		}
		c.log.Info("sent PUBREL", zap.Uint16("packet_id", pubrec.PacketId))

		p, err = packet.ReadPacket(c.conn)
		if err != nil {
			return err
		}
		pubcomp, ok := p.(*packet.Pubcomp)
		if !ok {
			return fmt.Errorf("mqttclient: expected PUBCOMP, got %T", p)
		}
		c.log.Info("received PUBCOMP", zap.Uint16("packet_id", pubcomp.PacketId))
	}
	return nil
}

// Listen reads packets until the connection closes or an unrecoverable
// error occurs, dispatching PUBLISH to the registered Handler after
// acknowledging it (PUBACK for qos 1, PUBREC for qos 2) and answering
// PUBREL with PUBCOMP. PINGRESP is logged; other packets are logged as
// unexpected and left unanswered.
func (c *Client) Listen() error {
	for {
		p, err := packet.ReadPacket(c.conn)
		if err != nil {
			c.log.Info("connection closed", zap.Error(err))
			return err
		}

		switch msg := p.(type) {
		case *packet.Publish:
			c.log.Info("received PUBLISH", zap.String("topic", msg.Topic), zap.Uint8("qos", msg.Qos()))
			switch msg.Qos() {
			case 1:
				if err := (&packet.Puback{PacketId: msg.PacketId}).Encode(c.conn); err != nil {
					return err
				}
			case 2:
				if err := (&packet.Pubrec{PacketId: msg.PacketId}).Encode(c.conn); err != nil {
					return err
				}
			}
			if c.handler != nil {
				c.handler(msg.Topic, msg.Payload, msg.Qos())
			}
		case *packet.Pubrel:
			if err := (&packet.Pubcomp{PacketId: msg.PacketId}).Encode(c.conn); err != nil {
				return err
			}
		case *packet.Pingresp:
			c.log.Info("received PINGRESP")
		default:
			c.log.Info("received unexpected packet", zap.String("type", fmt.Sprintf("%T", p)))
		}
	}
}

// Ping sends a PINGREQ. The PINGRESP is consumed by Listen, not here.
func (c *Client) Ping() error {
	return (&packet.Pingreq{}).Encode(c.conn)
}

// Disconnect sends DISCONNECT and closes the connection.
func (c *Client) Disconnect() error {
	if err := (&packet.Disconnect{}).Encode(c.conn); err != nil {
		return err
	}
	c.log.Info("sent DISCONNECT")
	return c.conn.Close()
}
