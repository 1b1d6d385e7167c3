package cache

import (
	"errors"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/skpttrack/tracker/internal/models"
)

// DefaultTTL bounds how long a cached link can outlive a change made by
// another process sharing the store.
const DefaultTTL = time.Minute

// LinkCache maps tracking tokens to links so the ingest path can skip the
// store for hot links. Callers must Invalidate a token when its link changes.
type LinkCache struct {
	mu  sync.Mutex
	gen uint64
	c   *expirable.LRU[string, models.TrackingLink]
}

func New(size int, ttl time.Duration) (*LinkCache, error) {
	if size <= 0 {
		return nil, errors.New("cache size must be positive")
	}
	if ttl <= 0 {
		return nil, errors.New("cache ttl must be positive")
	}
	return &LinkCache{c: expirable.NewLRU[string, models.TrackingLink](size, nil, ttl)}, nil
}

func (lc *LinkCache) Get(token string) (models.TrackingLink, bool) {
	return lc.c.Get(token)
}

func (lc *LinkCache) Set(link models.TrackingLink) {
	lc.c.Add(link.Token, link)
}

// Generation changes on every Invalidate. Read it before loading a link from
// the store and pass it to SetIfCurrent.
func (lc *LinkCache) Generation() uint64 {
	lc.mu.Lock()
	defer lc.mu.Unlock()
	return lc.gen
}

// SetIfCurrent caches link only if no Invalidate ran since gen was read, so a
// load that raced a deactivation cannot put the stale row back.
func (lc *LinkCache) SetIfCurrent(link models.TrackingLink, gen uint64) bool {
	lc.mu.Lock()
	defer lc.mu.Unlock()
	if lc.gen != gen {
		return false
	}
	lc.c.Add(link.Token, link)
	return true
}

func (lc *LinkCache) Invalidate(token string) {
	lc.mu.Lock()
	defer lc.mu.Unlock()
	lc.gen++
	lc.c.Remove(token)
}

func (lc *LinkCache) Len() int {
	return lc.c.Len()
}
