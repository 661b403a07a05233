package worker

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"skillport-relay/internal/repository"
	"skillport-relay/internal/tasks"
)

// NotificationPersistHandler 处理通知持久化任务
type NotificationPersistHandler struct {
	notificationRepo repository.NotificationRepository
}

// NewNotificationPersistHandler 创建 Handler 实例
func NewNotificationPersistHandler(notificationRepo repository.NotificationRepository) *NotificationPersistHandler {
	return &NotificationPersistHandler{notificationRepo: notificationRepo}
}

// ProcessTask 实现 asynq.Handler 接口
func (h *NotificationPersistHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	taskID := ""
	if rw := t.ResultWriter(); rw != nil {
		taskID = rw.TaskID()
	}
	currentRetry, _ := asynq.GetRetryCount(ctx)
	maxRetry, _ := asynq.GetMaxRetry(ctx)

	logCtx := logrus.WithFields(logrus.Fields{
		"task_id":   taskID,
		"task_type": t.Type(),
		"retry":     currentRetry,
		"max_retry": maxRetry,
	})
	logCtx.Debug("Processing notification persistence task...")

	var payload tasks.NotificationPersistPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		logCtx.WithError(err).Error("Failed to unmarshal task payload")
		return fmt.Errorf("failed to unmarshal payload: %v: %w", err, asynq.SkipRetry)
	}

	notification := payload.Notification
	if err := h.notificationRepo.Save(ctx, &notification); err != nil {
		logCtx.WithError(err).Errorf("Failed to save notification for user %d", notification.UserID)
		return fmt.Errorf("failed to save notification for user %d: %w", notification.UserID, err)
	}

	logCtx.WithField("user_id", notification.UserID).Info("Notification persistence task processed successfully")
	return nil
}
