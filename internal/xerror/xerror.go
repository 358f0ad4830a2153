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

// Package xerror collects the sentinel errors the wire codec and
// connection handler can produce.
package xerror

import "errors"

var (
	// ErrMalformed is returned whenever the codec rejects bytes that do
	// not conform to the MQTT 3.1.1 wire format.
	ErrMalformed = errors.New("xerror: malformed packet")

	// ErrV3UnacceptableProtocolVersion is returned when CONNECT names a
	// protocol level this broker does not speak.
	ErrV3UnacceptableProtocolVersion = errors.New("xerror: unacceptable protocol version")

	// ErrV3IdentifierRejected is returned for an empty client id with
	// clean_session=false under MQTT 3.1.1 [MQTT-3.1.3-8].
	ErrV3IdentifierRejected = errors.New("xerror: identifier rejected")

	// ErrStreamClosed is returned on a clean EOF at a packet boundary.
	ErrStreamClosed = errors.New("xerror: stream closed")

	// ErrUnexpectedEOF is returned when the peer closes mid-packet.
	ErrUnexpectedEOF = errors.New("xerror: unexpected eof")

	// ErrAuthFailure names a failed CONNECT credential check. No code in
	// this module returns it: the broker reports that case as CONNACK
	// code.BadUsernameOrPassword.
	ErrAuthFailure = errors.New("xerror: bad username or password")

	// ErrProtocolViolation is returned for packets that are well-formed
	// on the wire but arrive in an illegal order (e.g. a second CONNECT).
	ErrProtocolViolation = errors.New("xerror: protocol violation")
)
