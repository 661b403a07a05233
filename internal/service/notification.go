package service

import (
	"context"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"skillport-relay/internal/domain"
	"skillport-relay/internal/repository"
	"skillport-relay/internal/tasks"
)

// TaskEnqueuer 抽象 asynq 客户端的入队能力，便于测试。
type TaskEnqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// NotificationService 负责通知记录的创建与查询。
// 持久化默认走后台任务队列，入队失败时降级为同步写库。
type NotificationService struct {
	notificationRepo repository.NotificationRepository
	enqueuer         TaskEnqueuer
}

// NewNotificationService 创建 NotificationService 实例。
func NewNotificationService(notificationRepo repository.NotificationRepository, enqueuer TaskEnqueuer) *NotificationService {
	if notificationRepo == nil {
		panic("NotificationRepository cannot be nil for NotificationService")
	}
	if enqueuer == nil {
		panic("TaskEnqueuer cannot be nil for NotificationService")
	}
	return &NotificationService{
		notificationRepo: notificationRepo,
		enqueuer:         enqueuer,
	}
}

// DeliverFeedback 根据 feedback 事件创建通知记录。
// 无论接收者是否在线，通知记录都必须被创建；实时推送由调用方负责。
func (s *NotificationService) DeliverFeedback(ctx context.Context, data domain.FeedbackData) (*domain.Notification, error) {
	logCtx := logrus.WithFields(logrus.Fields{
		"student_id": data.StudentID,
		"mentor_id":  data.MentorID,
		"contest_id": data.ContestID,
	})

	notification := &domain.Notification{
		UserID: data.StudentID,
		Kind:   "feedback",
	}
	if err := notification.SetData(data); err != nil {
		logCtx.WithError(err).Error("Failed to set notification data")
		return nil, ErrInternalServer
	}

	// 优先入队后台持久化，保持事件处理路径轻量
	payload, err := tasks.NewNotificationPersistTask(*notification)
	if err != nil {
		logCtx.WithError(err).Error("Failed to create notification persist task payload")
		return nil, ErrInternalServer
	}
	task := asynq.NewTask(tasks.TypeNotificationPersist, payload)
	if _, err := s.enqueuer.EnqueueContext(ctx, task); err != nil {
		// 队列不可用时降级为同步写库，保证通知不丢
		logCtx.WithError(err).Warn("Failed to enqueue notification persist task, falling back to direct save")
		if err := s.notificationRepo.Save(ctx, notification); err != nil {
			logCtx.WithError(err).Error("Fallback save of notification failed")
			return nil, ErrDeliveryFailed
		}
	}

	logCtx.Debug("Feedback notification accepted for delivery")
	return notification, nil
}

// RecentForUser 返回用户最近的通知，供 HTTP 查询接口使用。
func (s *NotificationService) RecentForUser(ctx context.Context, userID uint, limit int) ([]domain.Notification, error) {
	notifications, err := s.notificationRepo.ListByUser(ctx, userID, limit)
	if err != nil {
		logrus.WithField("user_id", userID).WithError(err).Error("Failed to list notifications")
		return nil, ErrInternalServer
	}
	return notifications, nil
}
