package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"skillport-relay/internal/domain"
	"skillport-relay/internal/repository/mocks"
	"skillport-relay/internal/service"
	"skillport-relay/internal/tasks"
)

// mockEnqueuer 是 service.TaskEnqueuer 的 mock
type mockEnqueuer struct {
	mock.Mock
}

func (m *mockEnqueuer) EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	callArgs := []interface{}{ctx, task}
	for _, opt := range opts {
		callArgs = append(callArgs, opt)
	}
	args := m.Called(callArgs...)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*asynq.TaskInfo), args.Error(1)
}

func sampleFeedback() domain.FeedbackData {
	return domain.FeedbackData{
		StudentID: 101,
		MentorID:  7,
		Rating:    5,
		ContestID: 42,
		Message:   "clean solution, watch the edge cases",
	}
}

// --- 测试 DeliverFeedback 方法 ---

func TestNotificationService_DeliverFeedback_EnqueuesPersistTask(t *testing.T) {
	// Arrange
	mockNotificationRepo := new(mocks.NotificationRepository)
	enqueuer := new(mockEnqueuer)
	svc := service.NewNotificationService(mockNotificationRepo, enqueuer)

	ctx := context.Background()
	enqueuer.On("EnqueueContext", ctx, mock.MatchedBy(func(task *asynq.Task) bool {
		return task.Type() == tasks.TypeNotificationPersist
	})).Return(&asynq.TaskInfo{}, nil).Once()

	// Act
	notification, err := svc.DeliverFeedback(ctx, sampleFeedback())

	// Assert: 入队成功时不应同步写库
	require.NoError(t, err)
	require.NotNil(t, notification)
	assert.Equal(t, uint(101), notification.UserID, "通知应归属学生")
	assert.Equal(t, "feedback", notification.Kind)

	data, err := notification.ParseData()
	require.NoError(t, err)
	assert.Equal(t, uint(7), data.MentorID)
	assert.Equal(t, 5, data.Rating)

	enqueuer.AssertExpectations(t)
	mockNotificationRepo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

func TestNotificationService_DeliverFeedback_FallsBackToDirectSave(t *testing.T) {
	// Arrange: 队列不可用时降级为同步写库
	mockNotificationRepo := new(mocks.NotificationRepository)
	enqueuer := new(mockEnqueuer)
	svc := service.NewNotificationService(mockNotificationRepo, enqueuer)

	ctx := context.Background()
	enqueuer.On("EnqueueContext", ctx, mock.Anything).Return(nil, errors.New("redis: connection refused")).Once()
	mockNotificationRepo.On("Save", ctx, mock.AnythingOfType("*domain.Notification")).Return(nil).Once()

	// Act
	notification, err := svc.DeliverFeedback(ctx, sampleFeedback())

	// Assert
	require.NoError(t, err)
	require.NotNil(t, notification)
	mockNotificationRepo.AssertExpectations(t)
}

func TestNotificationService_DeliverFeedback_BothPathsFail(t *testing.T) {
	// Arrange
	mockNotificationRepo := new(mocks.NotificationRepository)
	enqueuer := new(mockEnqueuer)
	svc := service.NewNotificationService(mockNotificationRepo, enqueuer)

	ctx := context.Background()
	enqueuer.On("EnqueueContext", ctx, mock.Anything).Return(nil, errors.New("redis: connection refused")).Once()
	mockNotificationRepo.On("Save", ctx, mock.Anything).Return(errors.New("db down")).Once()

	// Act
	notification, err := svc.DeliverFeedback(ctx, sampleFeedback())

	// Assert
	require.Error(t, err)
	assert.True(t, errors.Is(err, service.ErrDeliveryFailed))
	assert.Nil(t, notification)
}

// --- 测试 RecentForUser 方法 ---

func TestNotificationService_RecentForUser(t *testing.T) {
	// Arrange
	mockNotificationRepo := new(mocks.NotificationRepository)
	enqueuer := new(mockEnqueuer)
	svc := service.NewNotificationService(mockNotificationRepo, enqueuer)

	ctx := context.Background()
	expected := []domain.Notification{
		{ID: 2, UserID: 101, Kind: "feedback"},
		{ID: 1, UserID: 101, Kind: "feedback"},
	}
	mockNotificationRepo.On("ListByUser", ctx, uint(101), 50).Return(expected, nil).Once()

	// Act
	notifications, err := svc.RecentForUser(ctx, 101, 50)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, expected, notifications)
	mockNotificationRepo.AssertExpectations(t)
}

func TestNotificationService_RecentForUser_RepoError(t *testing.T) {
	// Arrange
	mockNotificationRepo := new(mocks.NotificationRepository)
	enqueuer := new(mockEnqueuer)
	svc := service.NewNotificationService(mockNotificationRepo, enqueuer)

	ctx := context.Background()
	mockNotificationRepo.On("ListByUser", ctx, uint(101), 50).Return(nil, errors.New("db down")).Once()

	// Act
	notifications, err := svc.RecentForUser(ctx, 101, 50)

	// Assert
	require.Error(t, err)
	assert.True(t, errors.Is(err, service.ErrInternalServer))
	assert.Nil(t, notifications)
}
