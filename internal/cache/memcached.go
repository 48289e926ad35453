package cache

import (
	"context"
	"strings"
	"time"

	"github.com/bradfitz/gomemcache/memcache"
)

const keyPrefix = "zones:"

// MemcachedSnapshots implements SnapshotStore over memcached, letting
// multiple client processes share one warm cache.
type MemcachedSnapshots struct {
	client *memcache.Client
}

// NewMemcachedSnapshots creates a MemcachedSnapshots. addrs is a
// comma-separated server list (e.g. "localhost:11211" or
// "host1:11211,host2:11211"). timeout and maxIdleConns use package defaults
// when zero.
func NewMemcachedSnapshots(addrs string, timeout time.Duration, maxIdleConns int) *MemcachedSnapshots {
	servers := parseAddrs(addrs)
	if len(servers) == 0 {
		servers = []string{"localhost:11211"}
	}
	client := memcache.New(servers...)
	if timeout > 0 {
		client.Timeout = timeout
	}
	if maxIdleConns > 0 {
		client.MaxIdleConns = maxIdleConns
	}
	return &MemcachedSnapshots{client: client}
}

func parseAddrs(s string) []string {
	var out []string
	for _, a := range strings.Split(s, ",") {
		a = strings.TrimSpace(a)
		if a != "" {
			out = append(out, a)
		}
	}
	return out
}

func (s *MemcachedSnapshots) key(k string) string {
	// Memcached keys cannot contain spaces; cache keys embed query strings.
	return keyPrefix + strings.ReplaceAll(k, " ", "+")
}

// Get implements SnapshotStore.Get. A miss is reported as ok=false, nil.
func (s *MemcachedSnapshots) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if ctx.Err() != nil {
		return nil, false, ctx.Err()
	}
	item, err := s.client.Get(s.key(key))
	if err != nil {
		if err == memcache.ErrCacheMiss {
			return nil, false, nil
		}
		return nil, false, err
	}
	return item.Value, true, nil
}

// Set implements SnapshotStore.Set.
func (s *MemcachedSnapshots) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	expSec := int32(ttl.Seconds())
	const maxRelativeExp = 30 * 24 * 60 * 60 // 30 days
	if expSec <= 0 || expSec > maxRelativeExp {
		expSec = 60
	}
	return s.client.Set(&memcache.Item{
		Key:        s.key(key),
		Value:      value,
		Expiration: expSec,
	})
}

// Ping checks if memcached is reachable.
func (s *MemcachedSnapshots) Ping() error {
	return s.client.Ping()
}

// Close closes the memcached client connections.
func (s *MemcachedSnapshots) Close() error {
	return s.client.Close()
}
