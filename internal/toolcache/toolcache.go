// Package toolcache caches per-endpoint tool listings for a short TTL so
// repeated acquisitions within a window skip one network round trip per store.
// Session state never lands here; only discovery metadata does.
package toolcache

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/quibble-ai/quibble/internal/mcpclient"
)

const keyPrefix = "quibble:tools:"

// Memory is an in-process TTL cache, the default when redis is not configured.
type Memory struct {
	mu  sync.RWMutex
	ttl time.Duration
	now func() time.Time

	entries map[string]memoryEntry
}

type memoryEntry struct {
	tools   []mcpclient.Tool
	expires time.Time
}

// NewMemory builds an in-process cache.
func NewMemory(ttl time.Duration) *Memory {
	return &Memory{ttl: ttl, now: time.Now, entries: make(map[string]memoryEntry)}
}

func (m *Memory) Get(_ context.Context, key string) ([]mcpclient.Tool, bool) {
	m.mu.RLock()
	e, ok := m.entries[key]
	m.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if m.now().After(e.expires) {
		m.mu.Lock()
		delete(m.entries, key)
		m.mu.Unlock()
		return nil, false
	}
	return e.tools, true
}

// Put stores a listing and sweeps out expired entries so the map stays
// bounded by the set of endpoints seen within one TTL window.
func (m *Memory) Put(_ context.Context, key string, tools []mcpclient.Tool) {
	m.mu.Lock()
	now := m.now()
	for k, e := range m.entries {
		if now.After(e.expires) {
			delete(m.entries, k)
		}
	}
	m.entries[key] = memoryEntry{tools: tools, expires: now.Add(m.ttl)}
	m.mu.Unlock()
}

// Redis caches listings in a shared redis so replicas share discovery results.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
	logger *log.Logger
}

// Conn dials redis and verifies the connection.
func Conn(ctx context.Context, addr, password string, db int, timeout time.Duration) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:        addr,
		DialTimeout: timeout,
		Password:    password,
		DB:          db,
	})
	pong, err := client.Ping(ctx).Result()
	if err != nil {
		return nil, err
	}
	if pong != "PONG" {
		return nil, fmt.Errorf("expected PONG, got %s", pong)
	}
	return client, nil
}

// NewRedis wraps an established client.
func NewRedis(client *redis.Client, ttl time.Duration, logger *log.Logger) *Redis {
	if logger == nil {
		logger = log.New(log.Writer(), "[CACHE] ", log.LstdFlags)
	}
	return &Redis{client: client, ttl: ttl, logger: logger}
}

// Get is best-effort: any redis fault reads as a miss.
func (r *Redis) Get(ctx context.Context, key string) ([]mcpclient.Tool, bool) {
	raw, err := r.client.Get(ctx, keyPrefix+key).Bytes()
	if err != nil {
		if err != redis.Nil {
			r.logger.Printf("get %s: %v", key, err)
		}
		return nil, false
	}
	var tools []mcpclient.Tool
	if err := json.Unmarshal(raw, &tools); err != nil {
		r.logger.Printf("decode %s: %v", key, err)
		return nil, false
	}
	return tools, true
}

func (r *Redis) Put(ctx context.Context, key string, tools []mcpclient.Tool) {
	raw, err := json.Marshal(tools)
	if err != nil {
		return
	}
	if err := r.client.Set(ctx, keyPrefix+key, raw, r.ttl).Err(); err != nil {
		r.logger.Printf("set %s: %v", key, err)
	}
}
