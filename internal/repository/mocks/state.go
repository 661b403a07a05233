package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"skillport-relay/internal/domain"
)

// StateRepository 是 repository.StateRepository 的 mock
type StateRepository struct {
	mock.Mock
}

func (m *StateRepository) IncrRoomPresence(ctx context.Context, roomKey string) error {
	args := m.Called(ctx, roomKey)
	return args.Error(0)
}

func (m *StateRepository) DecrRoomPresence(ctx context.Context, roomKey string) error {
	args := m.Called(ctx, roomKey)
	return args.Error(0)
}

func (m *StateRepository) GetRoomPresence(ctx context.Context, roomKey string) (int64, error) {
	args := m.Called(ctx, roomKey)
	return args.Get(0).(int64), args.Error(1)
}

func (m *StateRepository) GetLeaderboardCache(ctx context.Context, contestID uint) ([]domain.LeaderboardEntry, error) {
	args := m.Called(ctx, contestID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.LeaderboardEntry), args.Error(1)
}

func (m *StateRepository) SetLeaderboardCache(ctx context.Context, contestID uint, entries []domain.LeaderboardEntry, ttlInSeconds int) error {
	args := m.Called(ctx, contestID, entries, ttlInSeconds)
	return args.Error(0)
}

func (m *StateRepository) CheckRateLimit(ctx context.Context, key string, limit int, duration time.Duration) (bool, error) {
	args := m.Called(ctx, key, limit, duration)
	return args.Bool(0), args.Error(1)
}
