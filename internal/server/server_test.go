package server

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yunqi/beacon/internal/packet"
)

// wireClient is a bare TCP connection used to drive the broker at the
// wire level, independent of mqttclient, so these tests exercise the
// server's framing and dispatch rather than the client library's.
type wireClient struct {
	t    *testing.T
	conn net.Conn
}

func dial(t *testing.T, addr string) *wireClient {
	t.Helper()
	conn, err := net.DialTimeout("tcp", addr, 2*time.Second)
	require.NoError(t, err)
	return &wireClient{t: t, conn: conn}
}

func (w *wireClient) send(p packet.Packet) {
	w.t.Helper()
	require.NoError(w.t, p.Encode(w.conn))
}

func (w *wireClient) recv() packet.Packet {
	w.t.Helper()
	_ = w.conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	p, err := packet.ReadPacket(w.conn)
	require.NoError(w.t, err)
	return p
}

func (w *wireClient) connect(clientID string, cleanSession bool) *packet.Connack {
	w.send(&packet.Connect{
		ProtocolName:  packet.ProtocolName311,
		ProtocolLevel: byte(packet.Version311),
		ConnectFlags:  packet.ConnectFlags{CleanSession: cleanSession},
		ClientId:      clientID,
	})
	ack, ok := w.recv().(*packet.Connack)
	require.True(w.t, ok)
	return ack
}

func (w *wireClient) subscribe(packetID uint16, topic string, qos byte) *packet.Suback {
	w.send(&packet.Subscribe{PacketId: packetID, Subscriptions: []packet.TopicFilter{{Topic: topic, Qos: qos}}})
	ack, ok := w.recv().(*packet.Suback)
	require.True(w.t, ok)
	return ack
}

func startTestServer(t *testing.T) string {
	t.Helper()
	s := NewServer(WithTcpListen("127.0.0.1:0"))
	addr := s.tcpListener.Addr().String()
	go s.ServeTCP()
	t.Cleanup(func() { _ = s.tcpListener.Close() })
	return addr
}

func TestServer_EndToEndScenarios(t *testing.T) {
	addr := startTestServer(t)

	t.Run("happy path QoS0", func(t *testing.T) {
		a := dial(t, addr)
		ack := a.connect("scn1-A", true)
		assert.Equal(t, byte(0), byte(ack.Code))
		a.subscribe(1, "scn1/t", 0)

		b := dial(t, addr)
		bAck := b.connect("scn1-B", true)
		assert.Equal(t, byte(0), byte(bAck.Code))
		b.send(&packet.Publish{
			FixedHeader: &packet.FixedHeader{PacketType: packet.TypePublish, Qos: 0},
			Topic:       "scn1/t",
			Payload:     []byte("hello"),
		})

		got := a.recv()
		pub, ok := got.(*packet.Publish)
		require.True(t, ok)
		assert.Equal(t, "scn1/t", pub.Topic)
		assert.Equal(t, []byte("hello"), pub.Payload)
		assert.Equal(t, byte(0), pub.Qos())
	})

	t.Run("QoS1 ack", func(t *testing.T) {
		a := dial(t, addr)
		a.connect("scn2-A", true)
		a.subscribe(1, "scn2/t", 1)

		b := dial(t, addr)
		b.connect("scn2-B", true)
		b.send(&packet.Publish{
			FixedHeader: &packet.FixedHeader{PacketType: packet.TypePublish, Qos: 1},
			Topic:       "scn2/t",
			PacketId:    7,
			Payload:     []byte("x"),
		})

		puback, ok := b.recv().(*packet.Puback)
		require.True(t, ok)
		assert.Equal(t, uint16(7), puback.PacketId)

		pub, ok := a.recv().(*packet.Publish)
		require.True(t, ok)
		assert.Equal(t, uint16(7), pub.PacketId)
		assert.Equal(t, []byte("x"), pub.Payload)
	})

	t.Run("QoS2 full handshake", func(t *testing.T) {
		a := dial(t, addr)
		a.connect("scn3-A", true)
		a.subscribe(1, "scn3/t", 2)

		b := dial(t, addr)
		b.connect("scn3-B", true)
		b.send(&packet.Publish{
			FixedHeader: &packet.FixedHeader{PacketType: packet.TypePublish, Qos: 2},
			Topic:       "scn3/t",
			PacketId:    9,
			Payload:     []byte("y"),
		})

		pubrec, ok := b.recv().(*packet.Pubrec)
		require.True(t, ok)
		assert.Equal(t, uint16(9), pubrec.PacketId)

		b.send(&packet.Pubrel{PacketId: 9})
		pubcomp, ok := b.recv().(*packet.Pubcomp)
		require.True(t, ok)
		assert.Equal(t, uint16(9), pubcomp.PacketId)

		pub, ok := a.recv().(*packet.Publish)
		require.True(t, ok)
		assert.Equal(t, "scn3/t", pub.Topic)
	})

	t.Run("offline queue and flush", func(t *testing.T) {
		a := dial(t, addr)
		a.connect("scn4-A", false)
		a.subscribe(1, "scn4/t", 1)
		a.send(&packet.Disconnect{})
		_ = a.conn.Close()
		time.Sleep(50 * time.Millisecond)

		b := dial(t, addr)
		b.connect("scn4-B", true)
		b.send(&packet.Publish{
			FixedHeader: &packet.FixedHeader{PacketType: packet.TypePublish, Qos: 1},
			Topic:       "scn4/t",
			PacketId:    1,
			Payload:     []byte("m1"),
		})
		_, ok := b.recv().(*packet.Puback)
		require.True(t, ok)
		b.send(&packet.Publish{
			FixedHeader: &packet.FixedHeader{PacketType: packet.TypePublish, Qos: 1},
			Topic:       "scn4/t",
			PacketId:    2,
			Payload:     []byte("m2"),
		})
		_, ok = b.recv().(*packet.Puback)
		require.True(t, ok)

		a2 := dial(t, addr)
		ack := a2.connect("scn4-A", false)
		assert.Equal(t, byte(0), byte(ack.Code))
		a2.subscribe(2, "scn4/t", 1)

		first, ok := a2.recv().(*packet.Publish)
		require.True(t, ok)
		assert.Equal(t, []byte("m1"), first.Payload)

		second, ok := a2.recv().(*packet.Publish)
		require.True(t, ok)
		assert.Equal(t, []byte("m2"), second.Payload)
	})

	t.Run("duplicate client-id take-over", func(t *testing.T) {
		a1 := dial(t, addr)
		a1.connect("scn5-A", true)

		a2 := dial(t, addr)
		ack := a2.connect("scn5-A", true)
		assert.Equal(t, byte(0), byte(ack.Code))

		_ = a1.conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		buf := make([]byte, 1)
		_, err := a1.conn.Read(buf)
		assert.Error(t, err) // old connection was closed by the broker

		sub := a2.subscribe(1, "scn5/t", 0)
		assert.Equal(t, []byte{0}, sub.ReturnCodes)
	})
}
