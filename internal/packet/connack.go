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

	"github.com/yunqi/beacon/internal/code"
	"github.com/yunqi/beacon/internal/xerror"
)

// Connack represents the MQTT CONNACK packet.
type Connack struct {
	SessionPresent bool
	Code           code.Code
}

// DecodeConnack decodes the CONNACK variable header from r.
func DecodeConnack(fh *FixedHeader, r io.Reader) (*Connack, error) {
	var buf [2]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return nil, xerror.ErrMalformed
	}
	return &Connack{
		SessionPresent: buf[0]&0x01 != 0,
		Code:           code.Code(buf[1]),
	}, nil
}

// Encode writes the CONNACK packet to w.
func (c *Connack) Encode(w io.Writer) error {
	buf := &bytes.Buffer{}
	var sp byte
	if c.SessionPresent {
		sp = 1
	}
	buf.WriteByte(sp)
	buf.WriteByte(byte(c.Code))
	return encode(&FixedHeader{PacketType: TypeConnack}, buf, w)
}
