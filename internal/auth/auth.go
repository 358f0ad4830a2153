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

// Package auth declares the two small ports the broker calls into:
// credential verification on CONNECT, and per-topic authorization on
// SUBSCRIBE/PUBLISH. Storage, hashing, and credential/ACL editing are
// deliberately out of scope — callers hand in an implementation.
package auth

// Verifier checks a CONNECT username/password pair. Implementations
// must reject an empty username or password when the corresponding
// CONNECT flag was unset.
type Verifier interface {
	Verify(username, password string) bool
}

// Authorizer checks whether username may subscribe to or publish on
// topic.
type Authorizer interface {
	IsTopicAuthorized(username, topic string) bool
}

// VerifierFunc adapts a plain function to a Verifier.
type VerifierFunc func(username, password string) bool

func (f VerifierFunc) Verify(username, password string) bool { return f(username, password) }

// AuthorizerFunc adapts a plain function to an Authorizer.
type AuthorizerFunc func(username, topic string) bool

func (f AuthorizerFunc) IsTopicAuthorized(username, topic string) bool { return f(username, topic) }

// AllowAll is an Authorizer that permits every topic; used when
// authorization is not enabled.
var AllowAll Authorizer = AuthorizerFunc(func(string, string) bool { return true })
