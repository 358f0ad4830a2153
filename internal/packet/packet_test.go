package packet

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yunqi/beacon/internal/code"
)

func roundTrip(t *testing.T, p Packet) Packet {
	t.Helper()
	buf := &bytes.Buffer{}
	require.NoError(t, p.Encode(buf))
	decoded, err := ReadPacket(buf)
	require.NoError(t, err)
	return decoded
}

func TestConnectRoundTrip(t *testing.T) {
	c := &Connect{
		ConnectFlags: ConnectFlags{
			CleanSession: true,
			UsernameFlag: true,
			PasswordFlag: true,
		},
		KeepAlive: 60,
		ClientId:  "client-A",
		Username:  "alice",
		Password:  "s3cr3t",
	}
	got := roundTrip(t, c).(*Connect)
	assert.Equal(t, "client-A", got.ClientId)
	assert.Equal(t, "alice", got.Username)
	assert.Equal(t, "s3cr3t", got.Password)
	assert.True(t, got.CleanSession)
	assert.Equal(t, uint16(60), got.KeepAlive)
	assert.Equal(t, Version311, got.Version)
}

func TestConnectRoundTrip_Will(t *testing.T) {
	c := &Connect{
		ConnectFlags: ConnectFlags{
			CleanSession: false,
			WillFlag:     true,
			WillQoS:      1,
			WillRetain:   true,
		},
		ClientId:    "client-B",
		WillTopic:   "last/will",
		WillMessage: "bye",
	}
	got := roundTrip(t, c).(*Connect)
	assert.True(t, got.WillFlag)
	assert.Equal(t, byte(1), got.WillQoS)
	assert.True(t, got.WillRetain)
	assert.Equal(t, "last/will", got.WillTopic)
	assert.Equal(t, "bye", got.WillMessage)
}

func TestConnect_EmptyClientIdRejectedWithoutCleanSession(t *testing.T) {
	c := &Connect{ConnectFlags: ConnectFlags{CleanSession: false}, ClientId: ""}
	buf := &bytes.Buffer{}
	require.NoError(t, c.Encode(buf))
	_, err := ReadPacket(buf)
	assert.Error(t, err)
}

func TestConnackRoundTrip(t *testing.T) {
	c := &Connack{SessionPresent: false, Code: code.BadUsernameOrPassword}
	got := roundTrip(t, c).(*Connack)
	assert.False(t, got.SessionPresent)
	assert.Equal(t, code.BadUsernameOrPassword, got.Code)
}

func TestPublishRoundTrip_Qos0(t *testing.T) {
	p := &Publish{
		FixedHeader: &FixedHeader{Qos: 0},
		Topic:       "t",
		Payload:     []byte("hello"),
	}
	got := roundTrip(t, p).(*Publish)
	assert.Equal(t, "t", got.Topic)
	assert.Equal(t, []byte("hello"), got.Payload)
	assert.Equal(t, byte(0), got.Qos())
}

func TestPublishRoundTrip_Qos1WithPacketId(t *testing.T) {
	p := &Publish{
		FixedHeader: &FixedHeader{Qos: 1, Dup: true},
		Topic:       "t",
		PacketId:    7,
		Payload:     []byte("x"),
	}
	got := roundTrip(t, p).(*Publish)
	assert.Equal(t, uint16(7), got.PacketId)
	assert.Equal(t, byte(1), got.Qos())
	assert.True(t, got.Dup())
}

func TestPubackRoundTrip(t *testing.T) {
	got := roundTrip(t, &Puback{PacketId: 42}).(*Puback)
	assert.Equal(t, uint16(42), got.PacketId)
}

func TestPubrecRoundTrip(t *testing.T) {
	got := roundTrip(t, &Pubrec{PacketId: 42}).(*Pubrec)
	assert.Equal(t, uint16(42), got.PacketId)
}

func TestPubrelRoundTrip(t *testing.T) {
	got := roundTrip(t, &Pubrel{PacketId: 42}).(*Pubrel)
	assert.Equal(t, uint16(42), got.PacketId)
}

func TestPubrelEncodesQos1OnWire(t *testing.T) {
	buf := &bytes.Buffer{}
	require.NoError(t, (&Pubrel{PacketId: 1}).Encode(buf))
	firstByte := buf.Bytes()[0]
	assert.Equal(t, byte(TypePubrel)<<4|0x02, firstByte)
}

func TestPubcompRoundTrip(t *testing.T) {
	got := roundTrip(t, &Pubcomp{PacketId: 42}).(*Pubcomp)
	assert.Equal(t, uint16(42), got.PacketId)
}

func TestSubscribeRoundTrip(t *testing.T) {
	s := &Subscribe{
		PacketId: 5,
		Subscriptions: []TopicFilter{
			{Topic: "a", Qos: 0},
			{Topic: "b", Qos: 1},
			{Topic: "c", Qos: 2},
		},
	}
	got := roundTrip(t, s).(*Subscribe)
	assert.Equal(t, uint16(5), got.PacketId)
	require.Len(t, got.Subscriptions, 3)
	assert.Equal(t, "a", got.Subscriptions[0].Topic)
	assert.Equal(t, byte(2), got.Subscriptions[2].Qos)
}

func TestSubackRoundTrip(t *testing.T) {
	s := &Suback{PacketId: 5, ReturnCodes: []byte{0x00, 0x01, 0x80}}
	got := roundTrip(t, s).(*Suback)
	assert.Equal(t, []byte{0x00, 0x01, 0x80}, got.ReturnCodes)
}

func TestUnsubscribeRoundTrip(t *testing.T) {
	u := &Unsubscribe{PacketId: 9, Topics: []string{"a", "b"}}
	got := roundTrip(t, u).(*Unsubscribe)
	assert.Equal(t, []string{"a", "b"}, got.Topics)
}

func TestUnsubackRoundTrip(t *testing.T) {
	got := roundTrip(t, &Unsuback{PacketId: 9}).(*Unsuback)
	assert.Equal(t, uint16(9), got.PacketId)
}

func TestPingPongRoundTrip(t *testing.T) {
	roundTrip(t, &Pingreq{})
	roundTrip(t, &Pingresp{})
	roundTrip(t, &Disconnect{})
}

func TestReadPacket_StreamClosedAtBoundary(t *testing.T) {
	_, err := ReadPacket(bytes.NewReader(nil))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stream closed")
}

func TestReadPacket_UnexpectedEOFMidPacket(t *testing.T) {
	_, err := ReadPacket(bytes.NewReader([]byte{byte(TypePingreq) << 4}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected eof")
}

func TestReadPacket_MalformedReservedFlags(t *testing.T) {
	// PINGREQ must carry flags 0x0; set 0x1 instead.
	buf := []byte{byte(TypePingreq)<<4 | 0x01, 0x00}
	_, err := ReadPacket(bytes.NewReader(buf))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "malformed")
}
