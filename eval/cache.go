package eval

import (
	"errors"
	"fmt"
	"sync"

	"github.com/cespare/xxhash"
)

// ErrValueConflict signals that two evaluations disagreed on the value
// of the same position at the same depth. Values are deterministic per
// (position, depth), so a conflict is a logic bug, never something to
// paper over by overwriting.
var ErrValueConflict = errors.New("conflicting evaluation values")

const cacheStripes = 64 // power of two

// memoCache memoizes provisional search values per canonical key,
// striped by key hash so concurrent searches do not contend on one
// lock. Entries only ever deepen: a value established at a deeper
// horizon replaces a shallower one, never the reverse.
type memoCache struct {
	stripes [cacheStripes]cacheStripe
}

type cacheStripe struct {
	mu sync.Mutex
	m  map[string]cacheEntry
}

type cacheEntry struct {
	value int
	depth int
}

func newMemoCache() *memoCache {
	c := &memoCache{}
	for i := range c.stripes {
		c.stripes[i].m = make(map[string]cacheEntry)
	}
	return c
}

func (c *memoCache) stripe(key string) *cacheStripe {
	return &c.stripes[xxhash.Sum64String(key)&(cacheStripes-1)]
}

// get returns the cached value when an entry exists at the requested
// depth or deeper.
func (c *memoCache) get(key string, depth int) (int, bool) {
	s := c.stripe(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.m[key]
	if !ok || e.depth < depth {
		return 0, false
	}
	return e.value, true
}

// put records a value established at the given depth. Re-recording the
// same (depth, value) is a no-op; a different value at the same depth
// is a fatal conflict.
func (c *memoCache) put(key string, value, depth int) error {
	s := c.stripe(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.m[key]
	if ok {
		if e.depth == depth && e.value != value {
			return fmt.Errorf("%w: key %s depth %d: %d vs %d", ErrValueConflict, key, depth, e.value, value)
		}
		if e.depth >= depth {
			return nil
		}
	}
	s.m[key] = cacheEntry{value: value, depth: depth}
	return nil
}

func (c *memoCache) reset() {
	for i := range c.stripes {
		s := &c.stripes[i]
		s.mu.Lock()
		s.m = make(map[string]cacheEntry)
		s.mu.Unlock()
	}
}
