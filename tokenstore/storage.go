package tokenstore

import (
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// Storage is a minimal string key-value scope. The Store uses two of them:
// a session scope that is discarded when the process or tab session ends,
// and a persistent scope for refresh-capable credentials.
type Storage interface {
	Set(key, value string) error
	Get(key string) (string, bool)
	Delete(key string) error
}

// MemoryStorage is a TTL-capable in-memory Storage. A zero ttl keeps
// entries until they are deleted or the process exits, which matches
// session-scoped browser storage semantics.
type MemoryStorage struct {
	cache *gocache.Cache
	ttl   time.Duration
}

// NewMemoryStorage creates an in-memory scope. ttl bounds the lifetime of
// every entry; pass 0 for no expiry.
func NewMemoryStorage(ttl time.Duration) *MemoryStorage {
	expiry := gocache.NoExpiration
	if ttl > 0 {
		expiry = ttl
	}
	return &MemoryStorage{
		cache: gocache.New(expiry, 10*time.Minute),
		ttl:   ttl,
	}
}

func (m *MemoryStorage) Set(key, value string) error {
	m.cache.Set(key, value, gocache.DefaultExpiration)
	return nil
}

func (m *MemoryStorage) Get(key string) (string, bool) {
	v, found := m.cache.Get(key)
	if !found {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

func (m *MemoryStorage) Delete(key string) error {
	m.cache.Delete(key)
	return nil
}
