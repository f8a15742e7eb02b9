// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"sync"

	"github.com/pdiddy/research-pipeline/pkg/types"
)

// SeenSet is the set of URLs already admitted to a run. Admit is its only
// mutator and is serialized by a mutex.
type SeenSet struct {
	mu   sync.Mutex
	urls map[string]struct{}
}

// NewSeenSet returns an empty set.
func NewSeenSet() *SeenSet {
	return &SeenSet{urls: make(map[string]struct{})}
}

// Admit adds rawURL and reports whether it was new.
func (s *SeenSet) Admit(rawURL string) bool {
	k := types.URLKey(rawURL)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.urls[k]; ok {
		return false
	}
	s.urls[k] = struct{}{}
	return true
}

// Contains reports whether rawURL was admitted.
func (s *SeenSet) Contains(rawURL string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.urls[types.URLKey(rawURL)]
	return ok
}

// Len returns the number of admitted URLs.
func (s *SeenSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.urls)
}
