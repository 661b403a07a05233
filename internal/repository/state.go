package repository

import (
	"context"
	"time"

	"skillport-relay/internal/domain"
)

// StateRepository 定义与实时状态相关的操作，通常由 Redis 实现。
type StateRepository interface {
	// === Room Presence ===

	// IncrRoomPresence 原子地增加房间在线计数。
	IncrRoomPresence(ctx context.Context, roomKey string) error

	// DecrRoomPresence 原子地减少房间在线计数，不会降到 0 以下。
	DecrRoomPresence(ctx context.Context, roomKey string) error

	// GetRoomPresence 获取房间当前在线计数。key 不存在视为 0。
	GetRoomPresence(ctx context.Context, roomKey string) (int64, error)

	// === Leaderboard Snapshot Cache ===

	// GetLeaderboardCache 尝试从缓存获取最近一次重算的排行榜快照。
	// 缓存未命中时返回 ErrNotFound。
	GetLeaderboardCache(ctx context.Context, contestID uint) ([]domain.LeaderboardEntry, error)

	// SetLeaderboardCache 将排行榜快照写入缓存。
	// ttlInSeconds: 缓存的生存时间（秒），0 表示不过期。
	SetLeaderboardCache(ctx context.Context, contestID uint, entries []domain.LeaderboardEntry, ttlInSeconds int) error

	// === Rate Limiting ===

	// CheckRateLimit 检查给定 key 的请求频率是否超限，并递增计数。
	// 返回 true 如果超限，false 如果未超限。
	CheckRateLimit(ctx context.Context, key string, limit int, duration time.Duration) (bool, error)
}
