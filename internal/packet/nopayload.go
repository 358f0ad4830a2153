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
)

// Pingreq, Pingresp, and Disconnect carry no variable header or payload.

type Pingreq struct{}
type Pingresp struct{}
type Disconnect struct{}

func DecodePingreq(fh *FixedHeader, r io.Reader) (*Pingreq, error)     { return &Pingreq{}, nil }
func DecodePingresp(fh *FixedHeader, r io.Reader) (*Pingresp, error)   { return &Pingresp{}, nil }
func DecodeDisconnect(fh *FixedHeader, r io.Reader) (*Disconnect, error) { return &Disconnect{}, nil }

func (p *Pingreq) Encode(w io.Writer) error {
	return encode(&FixedHeader{PacketType: TypePingreq}, &bytes.Buffer{}, w)
}

func (p *Pingresp) Encode(w io.Writer) error {
	return encode(&FixedHeader{PacketType: TypePingresp}, &bytes.Buffer{}, w)
}

func (d *Disconnect) Encode(w io.Writer) error {
	return encode(&FixedHeader{PacketType: TypeDisconnect}, &bytes.Buffer{}, w)
}
