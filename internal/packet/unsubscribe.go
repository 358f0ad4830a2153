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
	"io"

	"github.com/yunqi/beacon/internal/binary"
	"github.com/yunqi/beacon/internal/xerror"
)

// Unsubscribe represents the MQTT UNSUBSCRIBE packet.
type Unsubscribe struct {
	PacketId uint16
	Topics   []string
}

// DecodeUnsubscribe decodes the UNSUBSCRIBE variable header and payload
// from r: a packet id followed by repeated topic strings until the
// body is exhausted.
func DecodeUnsubscribe(fh *FixedHeader, r io.Reader) (*Unsubscribe, error) {
	packetId, err := binary.ReadUint16(r)
	if err != nil {
		return nil, xerror.ErrMalformed
	}
	u := &Unsubscribe{PacketId: packetId}

	for {
		topic, err := binary.ReadString(r)
		if err != nil {
			if err == io.EOF {
				break
			}
			return nil, xerror.ErrMalformed
		}
		u.Topics = append(u.Topics, topic)
	}

	if len(u.Topics) == 0 { // [MQTT-3.10.3-2]
		return nil, xerror.ErrMalformed
	}

	return u, nil
}

// Encode writes the UNSUBSCRIBE packet to w.
func (u *Unsubscribe) Encode(w io.Writer) error {
	buf := &bytes.Buffer{}
	if err := binary.WriteUint16(buf, u.PacketId); err != nil {
		return err
	}
	for _, topic := range u.Topics {
		if err := binary.WriteString(buf, []byte(topic)); err != nil {
			return err
		}
	}
	return encode(&FixedHeader{PacketType: TypeUnsubscribe}, buf, w)
}

// Unsuback represents the MQTT UNSUBACK packet.
type Unsuback struct {
	PacketId uint16
}

// DecodeUnsuback decodes the UNSUBACK variable header from r.
func DecodeUnsuback(fh *FixedHeader, r io.Reader) (*Unsuback, error) {
	id, err := binary.ReadUint16(r)
	if err != nil {
		return nil, xerror.ErrMalformed
	}
	return &Unsuback{PacketId: id}, nil
}

// Encode writes the UNSUBACK packet to w.
func (u *Unsuback) Encode(w io.Writer) error {
	return encodePacketIdOnly(TypeUnsuback, u.PacketId, w)
}
