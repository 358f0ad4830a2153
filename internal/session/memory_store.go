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

package session

// MemoryStore is the default Store: a plain map, guarded by the
// broker's mutex rather than its own (see package doc).
type MemoryStore struct {
	sessions map[string]*Session
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]*Session)}
}

func (m *MemoryStore) Get(clientID string) (*Session, bool) {
	s, ok := m.sessions[clientID]
	return s, ok
}

func (m *MemoryStore) Create(clientID string) *Session {
	s := New(clientID)
	m.sessions[clientID] = s
	return s
}

func (m *MemoryStore) Delete(clientID string) {
	delete(m.sessions, clientID)
}

// All returns every stored session. Used by the connection
// handler's PUBLISH offline-fanout pass (spec.md §4.3), which walks
// every session to find offline subscribers.
func (m *MemoryStore) All() []*Session {
	out := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s)
	}
	return out
}

// Save is a no-op: a *Session returned by Get/Create is the same
// pointer stored in m.sessions, so in-place mutations are already
// visible to every future Get.
func (m *MemoryStore) Save(s *Session) error {
	return nil
}

var _ Store = (*MemoryStore)(nil)
