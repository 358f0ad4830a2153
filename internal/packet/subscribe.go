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

// TopicFilter pairs a topic with its requested (or granted) QoS.
type TopicFilter struct {
	Topic string
	Qos   byte
}

// Subscribe represents the MQTT SUBSCRIBE packet.
type Subscribe struct {
	PacketId      uint16
	Subscriptions []TopicFilter
}

// DecodeSubscribe decodes the SUBSCRIBE variable header and payload
// from r: a packet id followed by repeated (topic, requested qos)
// pairs until the body is exhausted.
func DecodeSubscribe(fh *FixedHeader, r io.Reader) (*Subscribe, error) {
	packetId, err := binary.ReadUint16(r)
	if err != nil {
		return nil, xerror.ErrMalformed
	}
	s := &Subscribe{PacketId: packetId}

	for {
		topic, err := binary.ReadString(r)
		if err != nil {
			if err == io.EOF {
				break
			}
			return nil, xerror.ErrMalformed
		}
		var qosBuf [1]byte
		if _, err := io.ReadFull(r, qosBuf[:]); err != nil {
			return nil, xerror.ErrMalformed
		}
		s.Subscriptions = append(s.Subscriptions, TopicFilter{Topic: topic, Qos: qosBuf[0] & 0x03})
	}

	if len(s.Subscriptions) == 0 { // [MQTT-3.8.3-3]
		return nil, xerror.ErrMalformed
	}

	return s, nil
}

// Encode writes the SUBSCRIBE packet to w.
func (s *Subscribe) Encode(w io.Writer) error {
	buf := &bytes.Buffer{}
	if err := binary.WriteUint16(buf, s.PacketId); err != nil {
		return err
	}
	for _, sub := range s.Subscriptions {
		if err := binary.WriteString(buf, []byte(sub.Topic)); err != nil {
			return err
		}
		buf.WriteByte(sub.Qos & 0x03)
	}
	return encode(&FixedHeader{PacketType: TypeSubscribe}, buf, w)
}

// Suback represents the MQTT SUBACK packet.
type Suback struct {
	PacketId    uint16
	ReturnCodes []byte
}

// DecodeSuback decodes the SUBACK variable header and payload from r.
func DecodeSuback(fh *FixedHeader, r io.Reader) (*Suback, error) {
	packetId, err := binary.ReadUint16(r)
	if err != nil {
		return nil, xerror.ErrMalformed
	}
	codes, err := io.ReadAll(r)
	if err != nil {
		return nil, xerror.ErrMalformed
	}
	return &Suback{PacketId: packetId, ReturnCodes: codes}, nil
}

// Encode writes the SUBACK packet to w.
func (s *Suback) Encode(w io.Writer) error {
	buf := &bytes.Buffer{}
	if err := binary.WriteUint16(buf, s.PacketId); err != nil {
		return err
	}
	buf.Write(s.ReturnCodes)
	return encode(&FixedHeader{PacketType: TypeSuback}, buf, w)
}
