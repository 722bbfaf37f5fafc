package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"fortec-chat-go/internal/model"

	"github.com/go-redis/redis/v8"
)

// SnapshotCache 缓存看板快照，按用户 ID 为键。
type SnapshotCache interface {
	Get(ctx context.Context, uid string) (*model.DashboardView, bool)
	Set(ctx context.Context, uid string, view *model.DashboardView) error
	Delete(ctx context.Context, uid string) error
}

type redisSnapshotCache struct {
	redisClient *redis.Client
	ttl         time.Duration
}

// NewRedisSnapshotCache 创建基于 Redis 的快照缓存，值以 JSON 存储并带 TTL。
func NewRedisSnapshotCache(redisClient *redis.Client, ttl time.Duration) SnapshotCache {
	return &redisSnapshotCache{redisClient: redisClient, ttl: ttl}
}

func snapshotKey(uid string) string {
	return fmt.Sprintf("dashboard:%s", uid)
}

// Get 读取缓存；未命中、Redis 出错或数据损坏都视为未命中。
func (c *redisSnapshotCache) Get(ctx context.Context, uid string) (*model.DashboardView, bool) {
	jsonData, err := c.redisClient.Get(ctx, snapshotKey(uid)).Result()
	if err != nil {
		return nil, false
	}
	var view model.DashboardView
	if err := json.Unmarshal([]byte(jsonData), &view); err != nil {
		return nil, false
	}
	return &view, true
}

// Set 写入缓存。
func (c *redisSnapshotCache) Set(ctx context.Context, uid string, view *model.DashboardView) error {
	jsonData, err := json.Marshal(view)
	if err != nil {
		return fmt.Errorf("failed to marshal dashboard snapshot: %w", err)
	}
	if err := c.redisClient.Set(ctx, snapshotKey(uid), jsonData, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set dashboard snapshot: %w", err)
	}
	return nil
}

// Delete 删除缓存。
func (c *redisSnapshotCache) Delete(ctx context.Context, uid string) error {
	return c.redisClient.Del(ctx, snapshotKey(uid)).Err()
}

type memoryEntry struct {
	view      model.DashboardView
	expiresAt time.Time
}

type memorySnapshotCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]memoryEntry
}

// NewMemorySnapshotCache 创建进程内的快照缓存，用于内存账本。
func NewMemorySnapshotCache(ttl time.Duration) SnapshotCache {
	return &memorySnapshotCache{ttl: ttl, now: time.Now, entries: make(map[string]memoryEntry)}
}

func (c *memorySnapshotCache) Get(_ context.Context, uid string) (*model.DashboardView, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[uid]
	if !ok {
		return nil, false
	}
	if !c.now().Before(e.expiresAt) {
		delete(c.entries, uid)
		return nil, false
	}
	view := e.view
	return &view, true
}

func (c *memorySnapshotCache) Set(_ context.Context, uid string, view *model.DashboardView) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[uid] = memoryEntry{view: *view, expiresAt: c.now().Add(c.ttl)}
	return nil
}

func (c *memorySnapshotCache) Delete(_ context.Context, uid string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, uid)
	return nil
}
