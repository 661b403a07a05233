package redisstate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"skillport-relay/internal/domain"
	"skillport-relay/internal/repository"
)

// RedisStateRepository 是 StateRepository 接口的 Redis 实现
type RedisStateRepository struct {
	client *redis.Client
	// Redis key 前缀，方便多服务共用一个实例时隔离
	keyPrefix string
}

// NewRedisStateRepository 创建 RedisStateRepository 实例
func NewRedisStateRepository(client *redis.Client, keyPrefix string) *RedisStateRepository {
	if client == nil {
		panic("redis client cannot be nil for RedisStateRepository")
	}
	if keyPrefix == "" {
		keyPrefix = "sr:" // 默认前缀 "sr:" (skillport relay)
	}
	return &RedisStateRepository{
		client:    client,
		keyPrefix: keyPrefix,
	}
}

// --- Key Generation Helpers ---

func (r *RedisStateRepository) roomPresenceKey(roomKey string) string {
	return fmt.Sprintf("%sroom:%s:presence", r.keyPrefix, roomKey)
}

func (r *RedisStateRepository) leaderboardCacheKey(contestID uint) string {
	return fmt.Sprintf("%scontest:%d:leaderboard", r.keyPrefix, contestID)
}

// --- StateRepository Interface Implementation ---

// IncrRoomPresence 原子地增加房间在线计数。
// 设置过期时间，防止清理失败时 key 堆积。
func (r *RedisStateRepository) IncrRoomPresence(ctx context.Context, roomKey string) error {
	key := r.roomPresenceKey(roomKey)
	pipe := r.client.Pipeline()
	pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, 24*time.Hour)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: failed to incr presence for room %s on key %s: %w", roomKey, key, err)
	}
	return nil
}

// DecrRoomPresence 原子地减少房间在线计数，计数降到 0 时删除 key。
func (r *RedisStateRepository) DecrRoomPresence(ctx context.Context, roomKey string) error {
	key := r.roomPresenceKey(roomKey)
	count, err := r.client.Decr(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("redis: failed to decr presence for room %s on key %s: %w", roomKey, key, err)
	}
	if count <= 0 {
		// 降到 0 (或因重复 decr 变负) 时删除，下次 Incr 会重建
		if err := r.client.Del(ctx, key).Err(); err != nil {
			return fmt.Errorf("redis: failed to delete empty presence key %s: %w", key, err)
		}
	}
	return nil
}

// GetRoomPresence 获取房间当前在线计数。key 不存在视为 0。
func (r *RedisStateRepository) GetRoomPresence(ctx context.Context, roomKey string) (int64, error) {
	key := r.roomPresenceKey(roomKey)
	count, err := r.client.Get(ctx, key).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("redis: failed to get presence for room %s from %s: %w", roomKey, key, err)
	}
	return count, nil
}

// GetLeaderboardCache 尝试从缓存获取排行榜快照。
func (r *RedisStateRepository) GetLeaderboardCache(ctx context.Context, contestID uint) ([]domain.LeaderboardEntry, error) {
	key := r.leaderboardCacheKey(contestID)
	entriesStr, err := r.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			// 映射为仓库定义的未找到错误
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("redis: failed to get leaderboard cache for contest %d from %s: %w", contestID, key, err)
	}
	var entries []domain.LeaderboardEntry
	if err := json.Unmarshal([]byte(entriesStr), &entries); err != nil {
		return nil, fmt.Errorf("redis: failed to unmarshal leaderboard cache for contest %d from %s: %w", contestID, key, err)
	}
	return entries, nil
}

// SetLeaderboardCache 将排行榜快照写入缓存。
func (r *RedisStateRepository) SetLeaderboardCache(ctx context.Context, contestID uint, entries []domain.LeaderboardEntry, ttlInSeconds int) error {
	ttl := time.Duration(ttlInSeconds) * time.Second
	key := r.leaderboardCacheKey(contestID)
	entriesBytes, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("redis: failed to marshal leaderboard cache for contest %d: %w", contestID, err)
	}
	// ttl 为 0 表示永不过期
	if err := r.client.Set(ctx, key, string(entriesBytes), ttl).Err(); err != nil {
		return fmt.Errorf("redis: failed to set leaderboard cache for contest %d on key %s: %w", contestID, key, err)
	}
	return nil
}

// CheckRateLimit 检查给定 key 的请求频率是否超限，并递增计数。
func (r *RedisStateRepository) CheckRateLimit(ctx context.Context, key string, limit int, duration time.Duration) (bool, error) {
	// 使用 Pipeline 减少网络往返
	pipe := r.client.Pipeline()
	incrCmd := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, duration)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("redis: pipeline failed for rate limit check on key %s: %w", key, err)
	}
	count, err := incrCmd.Result()
	if err != nil {
		return false, fmt.Errorf("redis: failed to get incr result for rate limit on key %s: %w", key, err)
	}
	return count > int64(limit), nil
}
