package cache

import (
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"sjsage522/krishaworker/logger"

	"github.com/bradfitz/gomemcache/memcache"
)

// memcached rejects keys longer than this or containing spaces and control characters
const maxKeyLength = 250

// MemcacheService implements CacheService using memcache
type MemcacheService struct {
	client *memcache.Client
	log    *logger.Logger
}

// NewMemcacheService creates a new memcache service; timeout 0 keeps the client default
func NewMemcacheService(serverAddr string, timeout time.Duration) *MemcacheService {
	client := memcache.New(serverAddr)
	if timeout > 0 {
		client.Timeout = timeout
	}
	return &MemcacheService{
		client: client,
		log:    logger.ForCache(),
	}
}

// Ping checks that every configured server answers
func (m *MemcacheService) Ping() error {
	return m.client.Ping()
}

// Get retrieves a value from memcache
func (m *MemcacheService) Get(key string) ([]byte, error) {
	item, err := m.client.Get(safeKey(key))
	if errors.Is(err, memcache.ErrCacheMiss) {
		return nil, ErrMiss
	}
	if err != nil {
		m.log.Warn().Err(err).Str("key", key).Msg("Memcache get failed")
		return nil, err
	}
	return item.Value, nil
}

// Set stores a value in memcache with an expiration time
func (m *MemcacheService) Set(key string, value []byte, expiration time.Duration) error {
	return m.client.Set(&memcache.Item{
		Key:        safeKey(key),
		Value:      value,
		Expiration: int32(expiration.Seconds()),
	})
}

// Delete removes a value from memcache
func (m *MemcacheService) Delete(key string) error {
	err := m.client.Delete(safeKey(key))
	if errors.Is(err, memcache.ErrCacheMiss) {
		return nil
	}
	return err
}

// safeKey keeps valid keys as they are and replaces the rest by a digest
// under the same prefix, so long or unusual listing URLs still map to one key.
func safeKey(key string) string {
	if len(key) <= maxKeyLength && !strings.ContainsFunc(key, invalidKeyRune) {
		return key
	}
	prefix, _, _ := strings.Cut(key, "http")
	if len(prefix) > 64 || strings.ContainsFunc(prefix, invalidKeyRune) {
		prefix = ""
	}
	sum := sha1.Sum([]byte(key))
	return prefix + "sha1:" + hex.EncodeToString(sum[:])
}

func invalidKeyRune(r rune) bool {
	return r <= ' ' || r == 0x7f
}
