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

package packet

import (
	"bytes"
	"fmt"
	"io"

	"github.com/yunqi/beacon/internal/binary"
	"github.com/yunqi/beacon/internal/code"
	"github.com/yunqi/beacon/internal/xerror"
)

type (
	// Connect represents the MQTT CONNECT packet.
	Connect struct {
		FixedHeader *FixedHeader

		Version       Version
		ProtocolName  string
		ProtocolLevel byte
		ConnectFlags
		KeepAlive uint16

		ClientId    string
		WillTopic   string
		WillMessage string

		Username string
		Password string
	}

	// ConnectFlags is the single-byte flags field of CONNECT's variable
	// header, bit layout MSB->LSB: username, password, will_retain,
	// will_qos(2), will_flag, clean_session, reserved.
	ConnectFlags struct {
		CleanSession bool
		WillFlag     bool
		WillQoS      byte
		WillRetain   bool
		PasswordFlag bool
		UsernameFlag bool
	}
)

func (c *Connect) String() string {
	return fmt.Sprintf(
		"CONNECT - ProtocolLevel: %v, ClientId: %s, CleanSession: %v, KeepAlive: %v, UsernameFlag: %v, PasswordFlag: %v",
		c.ProtocolLevel, c.ClientId, c.CleanSession, c.KeepAlive, c.UsernameFlag, c.PasswordFlag)
}

// DecodeConnect decodes the CONNECT variable header and payload from r.
// The fixed header's flags nibble must already be validated as reserved
// (0x00) by the caller.
func DecodeConnect(fh *FixedHeader, r io.Reader) (*Connect, error) {
	c := &Connect{FixedHeader: fh}

	protocolName, err := binary.ReadString(r)
	if err != nil {
		return nil, err
	}
	c.ProtocolName = protocolName

	var levelBuf [1]byte
	if _, err := io.ReadFull(r, levelBuf[:]); err != nil {
		return nil, xerror.ErrMalformed
	}
	c.ProtocolLevel = levelBuf[0]
	c.Version = Version(c.ProtocolLevel)
	if c.Version != Version311 {
		return nil, xerror.ErrV3UnacceptableProtocolVersion
	}

	var flagsBuf [1]byte
	if _, err := io.ReadFull(r, flagsBuf[:]); err != nil {
		return nil, xerror.ErrMalformed
	}
	connectFlags := flagsBuf[0]
	if connectFlags&0x01 != 0 { // [MQTT-3.1.2-3] reserved bit must be 0
		return nil, xerror.ErrMalformed
	}
	c.CleanSession = connectFlags&0x02 != 0
	c.WillFlag = connectFlags&0x04 != 0
	c.WillQoS = (connectFlags >> 3) & 0x03
	if !c.WillFlag && c.WillQoS != 0 { // [MQTT-3.1.2-11]
		return nil, xerror.ErrMalformed
	}
	c.WillRetain = connectFlags&0x20 != 0
	if !c.WillFlag && c.WillRetain { // [MQTT-3.1.2-11]
		return nil, xerror.ErrMalformed
	}
	c.PasswordFlag = connectFlags&0x40 != 0
	c.UsernameFlag = connectFlags&0x80 != 0

	keepAlive, err := binary.ReadUint16(r)
	if err != nil {
		return nil, xerror.ErrMalformed
	}
	c.KeepAlive = keepAlive

	return c, c.decodePayload(r)
}

func (c *Connect) decodePayload(r io.Reader) error {
	clientId, err := binary.ReadString(r)
	if err != nil {
		return err
	}
	c.ClientId = clientId

	if c.ClientId == "" && !c.CleanSession { // [MQTT-3.1.3-7][MQTT-3.1.3-8]
		return xerror.ErrV3IdentifierRejected
	}

	if c.WillFlag {
		c.WillTopic, err = binary.ReadString(r)
		if err != nil {
			return err
		}
		c.WillMessage, err = binary.ReadString(r)
		if err != nil {
			return err
		}
	}

	if c.UsernameFlag {
		c.Username, err = binary.ReadString(r)
		if err != nil {
			return err
		}
	}

	if c.PasswordFlag {
		c.Password, err = binary.ReadString(r)
		if err != nil {
			return err
		}
	}

	return nil
}

// Encode writes the CONNECT packet to w.
func (c *Connect) Encode(w io.Writer) error {
	buf := &bytes.Buffer{}
	if err := binary.WriteString(buf, []byte(ProtocolName311)); err != nil {
		return err
	}
	buf.WriteByte(byte(Version311))

	var flags byte
	if c.UsernameFlag {
		flags |= 0x80
	}
	if c.PasswordFlag {
		flags |= 0x40
	}
	if c.WillRetain {
		flags |= 0x20
	}
	flags |= (c.WillQoS & 0x03) << 3
	if c.WillFlag {
		flags |= 0x04
	}
	if c.CleanSession {
		flags |= 0x02
	}
	buf.WriteByte(flags)

	if err := binary.WriteUint16(buf, c.KeepAlive); err != nil {
		return err
	}

	if err := binary.WriteString(buf, []byte(c.ClientId)); err != nil {
		return err
	}
	if c.WillFlag {
		if err := binary.WriteString(buf, []byte(c.WillTopic)); err != nil {
			return err
		}
		if err := binary.WriteString(buf, []byte(c.WillMessage)); err != nil {
			return err
		}
	}
	if c.UsernameFlag {
		if err := binary.WriteString(buf, []byte(c.Username)); err != nil {
			return err
		}
	}
	if c.PasswordFlag {
		if err := binary.WriteString(buf, []byte(c.Password)); err != nil {
			return err
		}
	}

	return encode(&FixedHeader{PacketType: TypeConnect}, buf, w)
}

// NewConnackPacket builds the CONNACK this CONNECT should receive.
// sessionReuse is accepted for API symmetry with a strict MQTT 3.1.1
// implementation but is intentionally ignored: this broker always
// reports SessionPresent=false, matching its documented behavior (see
// DESIGN.md's Open Question decisions) rather than the spec-conformant
// "1 when clean_session=false and a session already existed".
func (c *Connect) NewConnackPacket(cd code.Code, sessionReuse bool) *Connack {
	return &Connack{SessionPresent: false, Code: cd}
}
