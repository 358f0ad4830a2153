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
)

// Puback, Pubrec, Pubrel, and Pubcomp all share the same variable
// header: a single 2-byte packet identifier, no payload.

type Puback struct{ PacketId uint16 }
type Pubrec struct{ PacketId uint16 }
type Pubrel struct{ PacketId uint16 }
type Pubcomp struct{ PacketId uint16 }

func decodePacketIdOnly(r io.Reader) (uint16, error) {
	return binary.ReadUint16(r)
}

func encodePacketIdOnly(packetType Type, packetId uint16, w io.Writer) error {
	buf := &bytes.Buffer{}
	if err := binary.WriteUint16(buf, packetId); err != nil {
		return err
	}
	return encode(&FixedHeader{PacketType: packetType}, buf, w)
}

func DecodePuback(fh *FixedHeader, r io.Reader) (*Puback, error) {
	id, err := decodePacketIdOnly(r)
	if err != nil {
		return nil, err
	}
	return &Puback{PacketId: id}, nil
}

func (p *Puback) Encode(w io.Writer) error {
	return encodePacketIdOnly(TypePuback, p.PacketId, w)
}

func DecodePubrec(fh *FixedHeader, r io.Reader) (*Pubrec, error) {
	id, err := decodePacketIdOnly(r)
	if err != nil {
		return nil, err
	}
	return &Pubrec{PacketId: id}, nil
}

func (p *Pubrec) Encode(w io.Writer) error {
	return encodePacketIdOnly(TypePubrec, p.PacketId, w)
}

// DecodePubrel decodes PUBREL. The caller (ReadPacket) has already
// verified the fixed header's flags nibble is 0x02, as required for
// PUBREL on the wire.
func DecodePubrel(fh *FixedHeader, r io.Reader) (*Pubrel, error) {
	id, err := decodePacketIdOnly(r)
	if err != nil {
		return nil, err
	}
	return &Pubrel{PacketId: id}, nil
}

func (p *Pubrel) Encode(w io.Writer) error {
	return encodePacketIdOnly(TypePubrel, p.PacketId, w)
}

func DecodePubcomp(fh *FixedHeader, r io.Reader) (*Pubcomp, error) {
	id, err := decodePacketIdOnly(r)
	if err != nil {
		return nil, err
	}
	return &Pubcomp{PacketId: id}, nil
}

func (p *Pubcomp) Encode(w io.Writer) error {
	return encodePacketIdOnly(TypePubcomp, p.PacketId, w)
}
