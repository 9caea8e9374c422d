package server

import (
	"context"
	"fmt"
	"sync"
	"time"

	redisSvc "sealed_socket/internal/service/redis"
)

type (
	// PresenceStore maps connected remote ids to their address.
	PresenceStore interface {
		Set(ctx context.Context, id, address string) error
		Get(ctx context.Context, id string) (string, bool, error)
		// Delete removes id only while it still maps to address, so a
		// socket that was replaced under the same id leaves the newer
		// entry in place.
		Delete(ctx context.Context, id, address string) error
	}

	MemoryPresence struct {
		mu    sync.RWMutex
		addrs map[string]string
	}

	// RedisPresence shares presence between server instances. Entries
	// expire after ttl so a crashed instance does not pin ids forever.
	RedisPresence struct {
		redisService *redisSvc.RedisService
		ttl          time.Duration
	}
)

func NewMemoryPresence() *MemoryPresence {
	return &MemoryPresence{addrs: make(map[string]string)}
}

func (m *MemoryPresence) Set(_ context.Context, id, address string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.addrs[id] = address
	return nil
}

func (m *MemoryPresence) Get(_ context.Context, id string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	addr, ok := m.addrs[id]
	return addr, ok, nil
}

func (m *MemoryPresence) Delete(_ context.Context, id, address string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.addrs[id] == address {
		delete(m.addrs, id)
	}
	return nil
}

func NewRedisPresence(svc *redisSvc.RedisService, ttl time.Duration) *RedisPresence {
	return &RedisPresence{redisService: svc, ttl: ttl}
}

func presenceKey(id string) string {
	return fmt.Sprintf("presence: %s", id)
}

func (r *RedisPresence) Set(ctx context.Context, id, address string) error {
	return r.redisService.Set(ctx, presenceKey(id), address, r.ttl)
}

func (r *RedisPresence) Get(ctx context.Context, id string) (string, bool, error) {
	return r.redisService.Get(ctx, presenceKey(id))
}

func (r *RedisPresence) Delete(ctx context.Context, id, address string) error {
	_, err := r.redisService.DelIfEqual(ctx, presenceKey(id), address)
	return err
}
