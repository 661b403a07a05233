// Package mocks 提供 repository 接口的 testify mock 实现，供服务层测试使用。
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"skillport-relay/internal/domain"
)

// ParticipantRepository 是 repository.ParticipantRepository 的 mock
type ParticipantRepository struct {
	mock.Mock
}

func (m *ParticipantRepository) ListByContest(ctx context.Context, contestID uint) ([]domain.ContestParticipant, error) {
	args := m.Called(ctx, contestID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.ContestParticipant), args.Error(1)
}

func (m *ParticipantRepository) SaveRanks(ctx context.Context, contestID uint, ranks map[uint]int) error {
	args := m.Called(ctx, contestID, ranks)
	return args.Error(0)
}
