// SPDX-License-Identifier: AGPL-3.0
package session

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holmesgpt/agentcore/pkg/tool"
)

func TestBuild_NewSessionGeneratesId(t *testing.T) {
	m := NewManager(0)
	id, msgs := m.Build("", "you are helpful", "hello")
	assert.NotEmpty(t, id)
	require.Len(t, msgs, 2)
	assert.Equal(t, tool.RoleSystem, msgs[0].Role)
	assert.Equal(t, tool.RoleUser, msgs[1].Role)
	assert.Equal(t, "hello", msgs[1].Content)
}

func TestBuild_ThenAppendThenBuild_PrefixMatches(t *testing.T) {
	m := NewManager(0)
	id, firstMsgs := m.Build("", "sys", "ask1")

	err := m.Append(id, []tool.Message{
		{Role: tool.RoleAssistant, Content: "answer1"},
	})
	require.NoError(t, err)

	_, secondMsgs := m.Build(id, "sys", "ask2")

	// First build's output plus the appended message must be a prefix
	// of the second build's output.
	expectedPrefix := append(append([]tool.Message{}, firstMsgs...), tool.Message{Role: tool.RoleAssistant, Content: "answer1"})
	require.GreaterOrEqual(t, len(secondMsgs), len(expectedPrefix))
	for i, m := range expectedPrefix {
		assert.Equal(t, m.Role, secondMsgs[i].Role)
		assert.Equal(t, m.Content, secondMsgs[i].Content)
	}
}

func TestAppend_UnknownSession(t *testing.T) {
	m := NewManager(0)
	err := m.Append("does-not-exist", []tool.Message{{Role: tool.RoleUser, Content: "x"}})
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestClear_RemovesHistoryKeepsId(t *testing.T) {
	m := NewManager(0)
	id, _ := m.Build("", "sys", "ask")
	require.NoError(t, m.Append(id, []tool.Message{{Role: tool.RoleAssistant, Content: "a"}}))

	require.NoError(t, m.Clear(id))

	_, msgs := m.Build(id, "sys", "ask2")
	require.Len(t, msgs, 2) // just system + new user, no leftover history
}

func TestEvictIdle_RemovesStaleSessions(t *testing.T) {
	m := NewManager(time.Millisecond)
	id, _ := m.Build("", "sys", "ask")
	time.Sleep(5 * time.Millisecond)

	evicted := m.EvictIdle()
	assert.Equal(t, 1, evicted)

	err := m.Append(id, []tool.Message{{Role: tool.RoleUser, Content: "x"}})
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestManager_ConcurrentDifferentSessionsIndependent(t *testing.T) {
	m := NewManager(0)
	var wg sync.WaitGroup
	ids := make([]string, 10)
	for i := range ids {
		id, _ := m.Build("", "sys", "ask")
		ids[i] = id
	}

	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				_ = m.Append(id, []tool.Message{{Role: tool.RoleUser, Content: "x"}})
			}
		}(id)
	}
	wg.Wait()

	assert.Equal(t, len(ids), m.Count())
}
