package history

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bradfitz/gomemcache/memcache"

	"github.com/kjstillabower/weather-search/internal/models"
)

const memcachedKeyPrefix = "history:"

// MemcachedRepository stores the slot as a single memcached item with no expiration.
type MemcachedRepository struct {
	client *memcache.Client
	key    string
}

// NewMemcachedRepository creates a MemcachedRepository. addrs is a comma-separated list
// (e.g. "localhost:11211" or "host1:11211,host2:11211"). timeout and maxIdleConns use
// client defaults if zero.
func NewMemcachedRepository(addrs, slot string, timeout time.Duration, maxIdleConns int) *MemcachedRepository {
	servers := parseAddrs(addrs)
	if len(servers) == 0 {
		servers = []string{"localhost:11211"}
	}
	if slot == "" {
		slot = DefaultSlot
	}
	client := memcache.New(servers...)
	if timeout > 0 {
		client.Timeout = timeout
	}
	if maxIdleConns > 0 {
		client.MaxIdleConns = maxIdleConns
	}
	return &MemcachedRepository{client: client, key: memcachedKeyPrefix + slot}
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

// Load implements Repository.Load. A cache miss is an empty log.
func (r *MemcachedRepository) Load(ctx context.Context) ([]models.HistoryEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	item, err := r.client.Get(r.key)
	if err != nil {
		if errors.Is(err, memcache.ErrCacheMiss) {
			return nil, nil
		}
		return nil, err
	}
	return decodeEntries(item.Value)
}

// Save implements Repository.Save.
func (r *MemcachedRepository) Save(ctx context.Context, entries []models.HistoryEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	raw, err := encodeEntries(entries)
	if err != nil {
		return err
	}
	return r.client.Set(&memcache.Item{Key: r.key, Value: raw})
}

// Ping checks if memcached is reachable. Used for health checks.
func (r *MemcachedRepository) Ping() error {
	return r.client.Ping()
}

// Close closes the memcached client connections. Call during shutdown.
func (r *MemcachedRepository) Close() error {
	return r.client.Close()
}
