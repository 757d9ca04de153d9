package realtime

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/redis/go-redis/v9"
)

// Presence tracks which users hold at least one open connection
type Presence interface {
	// Add records one more connection; it reports whether the user just came online
	Add(ctx context.Context, userID string) (bool, error)
	// Remove drops one connection; it reports whether the user just went offline
	Remove(ctx context.Context, userID string) (bool, error)
	Online(ctx context.Context) ([]string, error)
}

// MemoryPresence keeps connection counts in process
type MemoryPresence struct {
	mu     sync.Mutex
	counts map[string]int
}

func NewMemoryPresence() *MemoryPresence {
	return &MemoryPresence{counts: make(map[string]int)}
}

func (p *MemoryPresence) Add(_ context.Context, userID string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.counts[userID]++
	return p.counts[userID] == 1, nil
}

func (p *MemoryPresence) Remove(_ context.Context, userID string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	n, ok := p.counts[userID]
	if !ok {
		return false, nil
	}
	if n <= 1 {
		delete(p.counts, userID)
		return true, nil
	}
	p.counts[userID] = n - 1
	return false, nil
}

func (p *MemoryPresence) Online(_ context.Context) ([]string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.counts))
	for id := range p.counts {
		out = append(out, id)
	}
	sort.Strings(out)
	return out, nil
}

// RedisPresence shares presence between server instances. Connection counts
// live in a hash and the online ids in a set.
type RedisPresence struct {
	client    *redis.Client
	countsKey string
	onlineKey string
}

// NewRedisPresence connects to the Redis server at url (redis://...)
func NewRedisPresence(ctx context.Context, url string) (*RedisPresence, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &RedisPresence{
		client:    client,
		countsKey: "pancychat:presence:counts",
		onlineKey: "pancychat:presence:online",
	}, nil
}

// addScript bumps the connection count and marks the user online in one step
var addScript = redis.NewScript(`
local n = redis.call('HINCRBY', KEYS[1], ARGV[1], 1)
redis.call('SADD', KEYS[2], ARGV[1])
return n
`)

// removeScript drops one connection and, at zero, clears the user from both
// keys before any other client can observe the count.
var removeScript = redis.NewScript(`
local n = redis.call('HINCRBY', KEYS[1], ARGV[1], -1)
if n <= 0 then
	redis.call('HDEL', KEYS[1], ARGV[1])
	redis.call('SREM', KEYS[2], ARGV[1])
end
return n
`)

func (p *RedisPresence) Add(ctx context.Context, userID string) (bool, error) {
	n, err := addScript.Run(ctx, p.client, []string{p.countsKey, p.onlineKey}, userID).Int64()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (p *RedisPresence) Remove(ctx context.Context, userID string) (bool, error) {
	n, err := removeScript.Run(ctx, p.client, []string{p.countsKey, p.onlineKey}, userID).Int64()
	if err != nil {
		return false, err
	}
	return n == 0, nil
}

func (p *RedisPresence) Online(ctx context.Context) ([]string, error) {
	ids, err := p.client.SMembers(ctx, p.onlineKey).Result()
	if err != nil {
		return nil, err
	}
	sort.Strings(ids)
	return ids, nil
}

// Close releases the Redis connection
func (p *RedisPresence) Close() error {
	return p.client.Close()
}
