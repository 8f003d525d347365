package lookup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/redis/go-redis/v9"

	"github.com/roach88/tokencid/internal/token"
)

// Cache holds found records by identifier. Implementations must be safe
// for concurrent use and must never fail a lookup: errors are treated as
// misses.
type Cache interface {
	Get(ctx context.Context, identifier string) (token.Record, bool)
	Set(ctx context.Context, rec token.Record)
}

// DefaultCacheSize is the in-process cache capacity.
const DefaultCacheSize = 10000

// NoopCache caches nothing.
type NoopCache struct{}

func (NoopCache) Get(context.Context, string) (token.Record, bool) { return token.Record{}, false }
func (NoopCache) Set(context.Context, token.Record)                {}

// LRUCache is a bounded in-process cache with least-recently-used eviction.
type LRUCache struct {
	c *lru.Cache[string, token.Record]
}

// NewLRUCache returns a cache holding at most size records.
func NewLRUCache(size int) (*LRUCache, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	c, err := lru.New[string, token.Record](size)
	if err != nil {
		return nil, fmt.Errorf("lru cache: %w", err)
	}
	return &LRUCache{c: c}, nil
}

func (l *LRUCache) Get(_ context.Context, identifier string) (token.Record, bool) {
	return l.c.Get(identifier)
}

func (l *LRUCache) Set(_ context.Context, rec token.Record) {
	l.c.Add(rec.Identifier, rec)
}

// Len returns the number of cached records.
func (l *LRUCache) Len() int {
	return l.c.Len()
}

// RedisCache is a cache shared by service instances. Entries expire after
// TTL; nothing invalidates them, which is safe only because a record for
// an identifier never changes meaning.
type RedisCache struct {
	client    *redis.Client
	prefix    string
	ttl       time.Duration
	opTimeout time.Duration
	logger    *slog.Logger
}

// DefaultRedisTTL is the expiry of shared cache entries.
const DefaultRedisTTL = 24 * time.Hour

// DefaultRedisOpTimeout bounds each cache Get or Set. A slower server is
// treated as a miss.
const DefaultRedisOpTimeout = 100 * time.Millisecond

// NewRedisCache connects to the Redis server at url (redis://host:port/db).
func NewRedisCache(url string, ttl time.Duration, logger *slog.Logger) (*RedisCache, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	// Socket deadlines follow the per-operation context.
	opts.ContextTimeoutEnabled = true
	if opts.DialTimeout <= 0 {
		opts.DialTimeout = time.Second
	}
	if opts.ReadTimeout == 0 {
		opts.ReadTimeout = DefaultRedisOpTimeout
	}
	if opts.WriteTimeout == 0 {
		opts.WriteTimeout = DefaultRedisOpTimeout
	}
	return NewRedisCacheFromClient(redis.NewClient(opts), ttl, logger), nil
}

// NewRedisCacheFromClient wraps an existing client.
func NewRedisCacheFromClient(client *redis.Client, ttl time.Duration, logger *slog.Logger) *RedisCache {
	if ttl <= 0 {
		ttl = DefaultRedisTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisCache{
		client:    client,
		prefix:    "tokencid:record:",
		ttl:       ttl,
		opTimeout: DefaultRedisOpTimeout,
		logger:    logger,
	}
}

// WithOpTimeout sets the per-operation deadline and returns r.
func (r *RedisCache) WithOpTimeout(d time.Duration) *RedisCache {
	if d > 0 {
		r.opTimeout = d
	}
	return r
}

func (r *RedisCache) key(identifier string) string {
	return r.prefix + identifier
}

func (r *RedisCache) Get(ctx context.Context, identifier string) (token.Record, bool) {
	ctx, cancel := context.WithTimeout(ctx, r.opTimeout)
	defer cancel()
	val, err := r.client.Get(ctx, r.key(identifier)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			r.logger.Debug("redis cache get failed", "identifier", identifier, "error", err)
		}
		return token.Record{}, false
	}
	var rec token.Record
	if err := json.Unmarshal(val, &rec); err != nil || rec.Identifier != identifier {
		r.logger.Debug("redis cache entry unreadable", "identifier", identifier, "error", err)
		return token.Record{}, false
	}
	return rec, true
}

func (r *RedisCache) Set(ctx context.Context, rec token.Record) {
	data, err := json.Marshal(rec)
	if err != nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, r.opTimeout)
	defer cancel()
	if err := r.client.Set(ctx, r.key(rec.Identifier), data, r.ttl).Err(); err != nil {
		r.logger.Debug("redis cache set failed", "identifier", rec.Identifier, "error", err)
	}
}

// Ping checks connectivity.
func (r *RedisCache) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close closes the client.
func (r *RedisCache) Close() error {
	return r.client.Close()
}

// TieredCache checks L1 then L2. An L2 hit is copied into L1; Set writes
// both.
type TieredCache struct {
	L1 Cache
	L2 Cache
}

func (t TieredCache) Get(ctx context.Context, identifier string) (token.Record, bool) {
	if rec, ok := t.L1.Get(ctx, identifier); ok {
		return rec, true
	}
	rec, ok := t.L2.Get(ctx, identifier)
	if ok {
		t.L1.Set(ctx, rec)
	}
	return rec, ok
}

func (t TieredCache) Set(ctx context.Context, rec token.Record) {
	t.L1.Set(ctx, rec)
	t.L2.Set(ctx, rec)
}
