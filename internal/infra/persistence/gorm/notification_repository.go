package gormpersistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"
	"gorm.io/gorm"

	"skillport-relay/internal/domain"
	"skillport-relay/internal/repository"
)

// GormNotificationRepository 是 NotificationRepository 接口的 GORM 实现
type GormNotificationRepository struct {
	db *gorm.DB
}

// NewGormNotificationRepository 创建 GormNotificationRepository 实例
func NewGormNotificationRepository(db *gorm.DB) *GormNotificationRepository {
	if db == nil {
		panic("database connection cannot be nil for GormNotificationRepository")
	}
	return &GormNotificationRepository{db: db}
}

// Save 实现保存通知记录
func (r *GormNotificationRepository) Save(ctx context.Context, notification *domain.Notification) error {
	result := r.db.WithContext(ctx).Save(notification)
	if err := result.Error; err != nil {
		// 唯一约束检查 (以 MySQL 为例)
		var mysqlErr *mysql.MySQLError
		if errors.As(err, &mysqlErr) && mysqlErr.Number == 1062 {
			return repository.ErrDuplicateEntry
		}
		return fmt.Errorf("gorm: save notification (user_id: %d, kind: %s): %w", notification.UserID, notification.Kind, err)
	}
	return nil
}

// ListByUser 实现按创建时间倒序查询用户最近的通知
func (r *GormNotificationRepository) ListByUser(ctx context.Context, userID uint, limit int) ([]domain.Notification, error) {
	if limit <= 0 {
		limit = 50 // 默认返回最近 50 条
	}
	var notifications []domain.Notification
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&notifications).Error
	if err != nil {
		return nil, fmt.Errorf("gorm: list notifications for user %d: %w", userID, err)
	}
	return notifications, nil
}
