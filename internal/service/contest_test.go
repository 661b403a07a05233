package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"skillport-relay/internal/domain"
	"skillport-relay/internal/repository"
	"skillport-relay/internal/repository/mocks"
	"skillport-relay/internal/service"
)

func TestContestService_FindContestByID_Success(t *testing.T) {
	// Arrange
	mockContestRepo := new(mocks.ContestRepository)
	svc := service.NewContestService(mockContestRepo)

	ctx := context.Background()
	expected := &domain.Contest{ID: 42, Title: "Weekly Sprint #12"}
	mockContestRepo.On("FindByID", ctx, uint(42)).Return(expected, nil).Once()

	// Act
	contest, err := svc.FindContestByID(ctx, 42)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, expected, contest)
	mockContestRepo.AssertExpectations(t)
}

func TestContestService_FindContestByID_NotFound(t *testing.T) {
	// Arrange
	mockContestRepo := new(mocks.ContestRepository)
	svc := service.NewContestService(mockContestRepo)

	ctx := context.Background()
	mockContestRepo.On("FindByID", ctx, uint(99)).Return(nil, repository.ErrContestNotFound).Once()

	// Act
	contest, err := svc.FindContestByID(ctx, 99)

	// Assert
	require.Error(t, err)
	assert.True(t, errors.Is(err, service.ErrContestNotFound))
	assert.Nil(t, contest)
}

func TestContestService_FindContestByID_RepoError(t *testing.T) {
	// Arrange
	mockContestRepo := new(mocks.ContestRepository)
	svc := service.NewContestService(mockContestRepo)

	ctx := context.Background()
	mockContestRepo.On("FindByID", ctx, uint(1)).Return(nil, errors.New("db down")).Once()

	// Act
	contest, err := svc.FindContestByID(ctx, 1)

	// Assert
	require.Error(t, err)
	assert.True(t, errors.Is(err, service.ErrInternalServer))
	assert.Nil(t, contest)
}
