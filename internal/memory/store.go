// Package memory holds the long-term fact memory: a deduplicated,
// append-only list of facts persisted as {"facts": [...]}.
package memory

import (
	"log/slog"
	"strings"
	"sync"

	"github.com/flemzord/recall/internal/persist"
)

// NoFactsText is rendered when the store holds no facts.
const NoFactsText = "No long-term memories yet."

// factsHeader prefixes the rendered fact listing.
const factsHeader = "Long-term Memory (Facts):"

// document is the on-disk shape of the fact store.
type document struct {
	Facts []string `json:"facts"`
}

// FactStore is the deduplicated fact memory. Facts are never mutated or
// deleted; insertion order is preserved for deterministic rendering.
//
// A failed save is logged and swallowed: the in-memory append is kept, so
// the file lags behind until the next successful save.
type FactStore struct {
	mu     sync.Mutex
	facts  []string
	seen   map[string]struct{}
	store  persist.Store
	logger *slog.Logger
}

// NewFactStore loads the persisted facts from store. A read failure is
// logged and the store starts empty.
func NewFactStore(store persist.Store, logger *slog.Logger) *FactStore {
	if logger == nil {
		logger = slog.Default()
	}
	s := &FactStore{
		seen:   make(map[string]struct{}),
		store:  store,
		logger: logger,
	}

	var doc document
	found, err := store.Load(&doc)
	switch {
	case err != nil:
		logger.Error("memory: failed to load facts", "path", store.Path(), "error", err)
	case found:
		for _, f := range doc.Facts {
			if _, dup := s.seen[f]; dup {
				continue
			}
			s.seen[f] = struct{}{}
			s.facts = append(s.facts, f)
		}
	}
	return s
}

// AddFact appends fact verbatim if it is not already known. It returns
// false for the empty string and for duplicates; neither case touches the
// disk. The MCP tool trims user input first.
func (s *FactStore) AddFact(fact string) bool {
	if fact == "" {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.seen[fact]; ok {
		s.logger.Debug("memory: fact already exists", "fact", fact)
		return false
	}

	s.seen[fact] = struct{}{}
	s.facts = append(s.facts, fact)
	s.saveLocked()
	s.logger.Info("memory: fact saved", "fact", fact)
	return true
}

func (s *FactStore) saveLocked() {
	doc := document{Facts: make([]string, len(s.facts))}
	copy(doc.Facts, s.facts)
	if err := s.store.Save(doc); err != nil {
		s.logger.Error("memory: failed to save facts", "path", s.store.Path(), "error", err)
	}
}

// RenderForPrompt returns a bulleted listing of all facts, or NoFactsText
// when the store is empty.
func (s *FactStore) RenderForPrompt() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.facts) == 0 {
		return NoFactsText
	}
	var b strings.Builder
	b.WriteString(factsHeader)
	for _, f := range s.facts {
		b.WriteString("\n- ")
		b.WriteString(f)
	}
	return b.String()
}

// Facts returns a copy of the facts in insertion order.
func (s *FactStore) Facts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.facts))
	copy(out, s.facts)
	return out
}

// Len returns the number of stored facts.
func (s *FactStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.facts)
}
