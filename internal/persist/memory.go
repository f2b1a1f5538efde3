package persist

import (
	"encoding/json"
	"sync"
)

// MemoryStore is an in-process Store used by tests and dry runs. Values are
// round-tripped through JSON so callers observe the same encoding rules as
// with JSONFile.
type MemoryStore struct {
	mu      sync.Mutex
	name    string
	data    []byte
	saves   int
	LoadErr error
	SaveErr error
}

// Compile-time interface check.
var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty MemoryStore identified by name.
func NewMemoryStore(name string) *MemoryStore {
	return &MemoryStore{name: name}
}

// Path returns the store name.
func (m *MemoryStore) Path() string { return m.name }

// Load decodes the last saved value into v.
func (m *MemoryStore) Load(v any) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.LoadErr != nil {
		return false, m.LoadErr
	}
	if m.data == nil {
		return false, nil
	}
	return true, json.Unmarshal(m.data, v)
}

// Save encodes v and keeps it in memory.
func (m *MemoryStore) Save(v any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SaveErr != nil {
		return m.SaveErr
	}
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	m.data = data
	m.saves++
	return nil
}

// Saves returns how many successful saves happened.
func (m *MemoryStore) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

// Raw returns the last saved JSON document.
func (m *MemoryStore) Raw() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]byte(nil), m.data...)
}
