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

// Publish represents the MQTT PUBLISH packet.
type Publish struct {
	FixedHeader *FixedHeader
	Topic       string
	// PacketId is only meaningful when Qos() > 0.
	PacketId uint16
	Payload  []byte
}

// Dup, Qos, and Retain mirror the fixed header's flag bits.
func (p *Publish) Dup() bool    { return p.FixedHeader.Dup }
func (p *Publish) Qos() byte    { return p.FixedHeader.Qos }
func (p *Publish) Retain() bool { return p.FixedHeader.Retain }

// DecodePublish decodes the PUBLISH variable header and payload from r.
func DecodePublish(fh *FixedHeader, r io.Reader) (*Publish, error) {
	topic, err := binary.ReadString(r)
	if err != nil {
		return nil, err
	}
	p := &Publish{FixedHeader: fh, Topic: topic}
	if fh.Qos > 0 {
		p.PacketId, err = binary.ReadUint16(r)
		if err != nil {
			return nil, err
		}
	}
	payload, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	p.Payload = payload
	return p, nil
}

// Encode writes the PUBLISH packet to w, preserving Dup/Qos/Retain as
// set on FixedHeader.
func (p *Publish) Encode(w io.Writer) error {
	buf := &bytes.Buffer{}
	if err := binary.WriteString(buf, []byte(p.Topic)); err != nil {
		return err
	}
	if p.FixedHeader.Qos > 0 {
		if err := binary.WriteUint16(buf, p.PacketId); err != nil {
			return err
		}
	}
	buf.Write(p.Payload)

	fh := *p.FixedHeader
	fh.PacketType = TypePublish
	return encode(&fh, buf, w)
}
