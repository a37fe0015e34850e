// Package toolsetcache persists toolset prerequisite-check outcomes
// across restarts so an interactive session doesn't re-run every
// toolset's CheckPrerequisites on every startup. Presence of the cache
// file is optional; the core functions correctly without one.
package toolsetcache

import (
	"encoding/json"
	"os"
	"sync"
	"time"

	"github.com/holmesgpt/agentcore/pkg/tool"
)

// Entry is one toolset's last known status.
type Entry struct {
	Status        tool.ToolsetStatus `json:"status"`
	LastCheckedAt int64              `json:"last_checked_unix"`
}

// Stale reports whether this entry is older than ttl and should be
// re-verified rather than trusted as-is.
func (e Entry) Stale(ttl time.Duration) bool {
	checked := time.Unix(e.LastCheckedAt, 0)
	return time.Since(checked) > ttl
}

// Store is a simple keyed {toolset_name: {status, last_checked_unix}}
// cache, serialized as JSON to a user-chosen path.
type Store struct {
	mu      sync.Mutex
	path    string
	entries map[string]Entry
}

// Load reads path if it exists; a missing file yields an empty, usable
// Store rather than an error.
func Load(path string) (*Store, error) {
	s := &Store{path: path, entries: make(map[string]Entry)}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(data, &s.entries); err != nil {
		return nil, err
	}
	return s, nil
}

// Get returns a toolset's cached entry, if any.
func (s *Store) Get(toolsetName string) (Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[toolsetName]
	return e, ok
}

// Set records a toolset's freshly-checked status.
func (s *Store) Set(toolsetName string, status tool.ToolsetStatus, checkedAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[toolsetName] = Entry{Status: status, LastCheckedAt: checkedAt.Unix()}
}

// Save persists the current entries to the store's path. If path is
// empty, Save is a no-op — the cache is always optional.
func (s *Store) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.path == "" {
		return nil
	}
	data, err := json.MarshalIndent(s.entries, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, data, 0o644)
}
