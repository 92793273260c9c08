package session

import (
	"context"
	"time"

	"github.com/patrickmn/go-cache"
)

// CacheStore keeps sessions in process memory
type CacheStore struct {
	cache *cache.Cache
}

// NewCacheStore creates an in-memory session store; cleanupInterval controls the janitor
func NewCacheStore(cleanupInterval time.Duration) *CacheStore {
	return &CacheStore{cache: cache.New(cache.NoExpiration, cleanupInterval)}
}

func (c *CacheStore) Get(ctx context.Context, id string) (*Session, error) {
	v, ok := c.cache.Get(id)
	if !ok {
		return nil, nil
	}
	s := v.(Session)
	return &s, nil
}

func (c *CacheStore) Save(ctx context.Context, s *Session) error {
	// item TTL lags the session expiry so Validate can still report expiry
	ttl := time.Until(s.Expiry) + time.Hour
	if ttl <= 0 {
		ttl = time.Minute
	}
	c.cache.Set(s.ID, *s, ttl)
	return nil
}

func (c *CacheStore) Delete(ctx context.Context, id string) error {
	c.cache.Delete(id)
	return nil
}

func (c *CacheStore) Purge(ctx context.Context, now time.Time) (int, error) {
	purged := 0
	for id, item := range c.cache.Items() {
		s, ok := item.Object.(Session)
		if ok && s.Expired(now) {
			c.cache.Delete(id)
			purged++
		}
	}
	return purged, nil
}
