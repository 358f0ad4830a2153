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

// Package code holds the CONNACK/SUBACK return codes this broker uses.
package code

// Code is a CONNACK return code.
type Code byte

const (
	// Success: connection accepted.
	Success Code = 0x00
	// UnacceptableProtocolVersion: the broker does not support the
	// requested protocol level. Not produced by this broker (MQTT 3.1.1
	// only), kept for completeness of the CONNACK return-code space.
	UnacceptableProtocolVersion Code = 0x01
	// IdentifierRejected: the client id is malformed or unacceptable.
	IdentifierRejected Code = 0x02
	// ServerUnavailable: the broker is not accepting connections.
	ServerUnavailable Code = 0x03
	// BadUsernameOrPassword: the credential check failed.
	BadUsernameOrPassword Code = 0x04
	// NotAuthorized: the client is not authorized to connect.
	NotAuthorized Code = 0x05
)

// SubscribeFailure is the SUBACK return code byte for a topic that was
// denied authorization.
const SubscribeFailure byte = 0x80
