package bamprovider

import (
	"sort"
	"sync"

	"github.com/grailbio/base/errors"
)

// Set shares one Provider per BAM path.  The zero value is ready to use.
// Thread safe.
type Set struct {
	mu sync.Mutex
	m  map[string]*Provider
}

// Get returns the Provider for path, creating it on first use.
func (s *Set) Get(path string) *Provider {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.m == nil {
		s.m = map[string]*Provider{}
	}
	p, ok := s.m[path]
	if !ok {
		p = NewProvider(path)
		s.m[path] = p
	}
	return p
}

// Close closes every provider and empties the set.  It returns the first
// error, in path order.
func (s *Set) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	paths := make([]string, 0, len(s.m))
	for path := range s.m {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	var err error
	for _, path := range paths {
		if e := s.m[path].Close(); e != nil && err == nil {
			err = errors.E(e, "bamprovider: close "+path)
		}
	}
	s.m = nil
	return err
}
