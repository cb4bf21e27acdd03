package docset

import (
	"sort"
	"sync"

	language "github.com/hanpama/gqlproject/internal/language"
)

// Set holds the current tracked documents keyed by URI. It is safe for use
// from the watcher goroutine and readers; snapshots are value copies.
type Set struct {
	mu   sync.RWMutex
	docs map[string]*Document
}

// NewSet creates an empty document set.
func NewSet() *Set {
	return &Set{docs: make(map[string]*Document)}
}

// Upsert replaces the document stored under doc.URI.
func (s *Set) Upsert(doc *Document) {
	s.mu.Lock()
	s.docs[doc.URI] = doc
	s.mu.Unlock()
}

// Remove drops the document stored under uri, if any.
func (s *Set) Remove(uri string) {
	s.mu.Lock()
	delete(s.docs, uri)
	s.mu.Unlock()
}

// Get returns the document stored under uri.
func (s *Set) Get(uri string) (*Document, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.docs[uri]
	return d, ok
}

// Len returns the number of tracked documents.
func (s *Set) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs)
}

// Snapshot returns the tracked documents sorted by URI. Passes over the set
// iterate the snapshot so their output order is deterministic.
func (s *Set) Snapshot() []*Document {
	s.mu.RLock()
	out := make([]*Document, 0, len(s.docs))
	for _, d := range s.docs {
		out = append(out, d)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].URI < out[j].URI })
	return out
}

// ExtensionSources collects every tracked file's type-system definitions as
// schema sources, in URI order. The result is the client extension document
// handed to the schema merger.
func (s *Set) ExtensionSources() []*language.Source {
	var out []*language.Source
	for _, d := range s.Snapshot() {
		if src := d.ExtensionSource(); src != nil {
			out = append(out, src)
		}
	}
	return out
}
