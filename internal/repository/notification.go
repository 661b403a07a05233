package repository

import (
	"context"

	"skillport-relay/internal/domain"
)

// NotificationRepository 定义通知记录的存储和查询。
type NotificationRepository interface {
	// Save 保存通知记录。
	Save(ctx context.Context, notification *domain.Notification) error

	// ListByUser 按创建时间倒序返回用户最近的通知。
	ListByUser(ctx context.Context, userID uint, limit int) ([]domain.Notification, error)
}
