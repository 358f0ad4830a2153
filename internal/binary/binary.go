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

// Package binary implements the primitive byte-level encodings the MQTT
// 3.1.1 wire format is built out of: booleans, big-endian uint16s,
// length-prefixed UTF-8 strings, and the variable-length "remaining
// length" varint.
package binary

import (
	"encoding/binary"
	"io"
	"unicode/utf8"

	"github.com/yunqi/beacon/internal/xerror"
)

// ReadBool reads a single byte and reports whether it is non-zero.
func ReadBool(r io.Reader) (bool, error) {
	var buf [1]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return false, err
	}
	return buf[0] != 0, nil
}

// WriteBool writes b as a single 0x00/0x01 byte.
func WriteBool(w io.Writer, b bool) error {
	var buf [1]byte
	if b {
		buf[0] = 1
	}
	_, err := w.Write(buf[:])
	return err
}

// ReadUint16 reads a 2-byte big-endian unsigned integer.
func ReadUint16(r io.Reader) (uint16, error) {
	var buf [2]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(buf[:]), nil
}

// WriteUint16 writes v as a 2-byte big-endian unsigned integer.
func WriteUint16(w io.Writer, v uint16) error {
	var buf [2]byte
	binary.BigEndian.PutUint16(buf[:], v)
	_, err := w.Write(buf[:])
	return err
}

// ReadString reads a 2-byte big-endian length followed by that many
// bytes of UTF-8. It fails with xerror.ErrMalformed if fewer bytes are
// available than declared, or if the bytes are not valid UTF-8.
func ReadString(r io.Reader) (string, error) {
	n, err := ReadUint16(r)
	if err != nil {
		return "", err
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		if err == io.ErrUnexpectedEOF || err == io.EOF {
			return "", xerror.ErrMalformed
		}
		return "", err
	}
	if !utf8.Valid(buf) {
		return "", xerror.ErrMalformed
	}
	return string(buf), nil
}

// WriteString writes b as a 2-byte big-endian length followed by b
// itself.
func WriteString(w io.Writer, b []byte) error {
	if err := WriteUint16(w, uint16(len(b))); err != nil {
		return err
	}
	_, err := w.Write(b)
	return err
}

// maxRemainingLength is the largest value representable in the 4-byte
// remaining-length varint: 128^4 - 1.
const maxRemainingLength = 268435455

// EncodeRemainingLength encodes length as MQTT's base-128 little-endian
// varint: 1-4 bytes, each non-final byte with its top bit set.
func EncodeRemainingLength(length int) ([]byte, error) {
	if length < 0 || length > maxRemainingLength {
		return nil, xerror.ErrMalformed
	}
	var out []byte
	for {
		b := byte(length % 128)
		length /= 128
		if length > 0 {
			b |= 0x80
		}
		out = append(out, b)
		if length == 0 {
			break
		}
	}
	return out, nil
}

// DecodeRemainingLength reads the variable-length "remaining length"
// field: up to 4 continuation bytes, base-128 little-endian. A 5th
// continuation byte is a malformed packet.
func DecodeRemainingLength(r io.Reader) (int, error) {
	var (
		multiplier = 1
		value      = 0
		buf        [1]byte
	)
	for i := 0; i < 4; i++ {
		if _, err := io.ReadFull(r, buf[:]); err != nil {
			return 0, err
		}
		b := buf[0]
		value += int(b&0x7F) * multiplier
		if b&0x80 == 0 {
			return value, nil
		}
		multiplier *= 128
	}
	return 0, xerror.ErrMalformed
}
