// SPDX-License-Identifier: AGPL-3.0
// Copyright 2025 Kadir Pekel
//
// Licensed under the GNU Affero General Public License v3.0 (AGPL-3.0) (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.gnu.org/licenses/agpl-3.0.en.html
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package session owns conversation histories keyed by session id.
//
// Manager is process-wide state guarded by per-session locks: reads and
// writes to one session id are serialized, but different session ids
// proceed independently. Sessions are in-memory only and do not survive
// a process restart.
package session

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/holmesgpt/agentcore/pkg/tool"
)

// ErrSessionNotFound is returned by operations addressing an id the
// Manager has no record of.
var ErrSessionNotFound = errors.New("session: not found")

// DefaultIdleTimeout is how long a session survives without being
// touched before it becomes eligible for eviction.
const DefaultIdleTimeout = time.Hour

type record struct {
	mu         sync.Mutex
	id         string
	messages   []tool.Message
	createdAt  time.Time
	lastTouch  time.Time
}

// Manager owns ConversationSessions. It is safe for concurrent use.
type Manager struct {
	idleTimeout time.Duration

	mu       sync.RWMutex
	sessions map[string]*record
}

// NewManager constructs a Manager with the given idle eviction timeout.
// A zero timeout selects DefaultIdleTimeout.
func NewManager(idleTimeout time.Duration) *Manager {
	if idleTimeout <= 0 {
		idleTimeout = DefaultIdleTimeout
	}
	return &Manager{
		idleTimeout: idleTimeout,
		sessions:    make(map[string]*record),
	}
}

func (m *Manager) getOrCreate(id string) *record {
	m.mu.RLock()
	r, ok := m.sessions[id]
	m.mu.RUnlock()
	if ok {
		return r
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.sessions[id]; ok {
		return r
	}
	r = &record{id: id, createdAt: time.Now(), lastTouch: time.Now()}
	m.sessions[id] = r
	return r
}

// Build composes the initial message list for a turn:
// [system_prompt, ...previous_messages, user(ask)]. If sessionId is
// empty a new session id is generated. The returned message slice is a
// private copy; mutating it does not affect the Manager's stored
// history until Append is called.
func (m *Manager) Build(sessionId string, systemPrompt string, ask string) (string, []tool.Message) {
	if sessionId == "" {
		sessionId = uuid.NewString()
	}

	r := m.getOrCreate(sessionId)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastTouch = time.Now()

	out := make([]tool.Message, 0, len(r.messages)+2)
	out = append(out, tool.Message{Role: tool.RoleSystem, Content: systemPrompt})
	out = append(out, r.messages...)
	out = append(out, tool.Message{Role: tool.RoleUser, Content: ask})
	return sessionId, out
}

// Append records additional messages produced by a completed (or
// partially completed, per cancellation semantics) loop run. The loop
// owns its own working copy of history during a run; Append is the
// single point where that copy is committed back to the session.
func (m *Manager) Append(sessionId string, msgs []tool.Message) error {
	m.mu.RLock()
	r, ok := m.sessions[sessionId]
	m.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, sessionId)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, msgs...)
	r.lastTouch = time.Now()
	return nil
}

// Clear discards a session's history, keeping the session id valid for
// future Build calls.
func (m *Manager) Clear(sessionId string) error {
	m.mu.RLock()
	r, ok := m.sessions[sessionId]
	m.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, sessionId)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = nil
	r.lastTouch = time.Now()
	return nil
}

// EvictIdle removes every session whose last touch is older than the
// Manager's idle timeout. Eviction only drops the Manager's reference;
// an in-flight loop run holds its own copy of the history obtained from
// Build and is unaffected.
func (m *Manager) EvictIdle() int {
	cutoff := time.Now().Add(-m.idleTimeout)

	m.mu.Lock()
	defer m.mu.Unlock()

	evicted := 0
	for id, r := range m.sessions {
		r.mu.Lock()
		stale := r.lastTouch.Before(cutoff)
		r.mu.Unlock()
		if stale {
			delete(m.sessions, id)
			evicted++
		}
	}
	return evicted
}

// Count returns the number of live (not-yet-evicted) sessions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
