package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"skillport-relay/internal/domain"
)

// ContestRepository 是 repository.ContestRepository 的 mock
type ContestRepository struct {
	mock.Mock
}

func (m *ContestRepository) FindByID(ctx context.Context, id uint) (*domain.Contest, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Contest), args.Error(1)
}
