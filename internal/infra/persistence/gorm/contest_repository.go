package gormpersistence

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"skillport-relay/internal/domain"
	"skillport-relay/internal/repository"
)

// GormContestRepository 是 ContestRepository 接口的 GORM 实现
type GormContestRepository struct {
	db *gorm.DB
}

// NewGormContestRepository 创建 GormContestRepository 实例
func NewGormContestRepository(db *gorm.DB) *GormContestRepository {
	if db == nil {
		panic("database connection cannot be nil for GormContestRepository")
	}
	return &GormContestRepository{db: db}
}

// FindByID 实现根据竞赛 ID 查找竞赛
func (r *GormContestRepository) FindByID(ctx context.Context, id uint) (*domain.Contest, error) {
	var contest domain.Contest
	err := r.db.WithContext(ctx).First(&contest, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrContestNotFound
		}
		return nil, fmt.Errorf("gorm: find contest by id %d: %w", id, err)
	}
	return &contest, nil
}
