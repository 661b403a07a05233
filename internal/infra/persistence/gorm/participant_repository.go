package gormpersistence

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"skillport-relay/internal/domain"
)

// GormParticipantRepository 是 ParticipantRepository 接口的 GORM 实现
type GormParticipantRepository struct {
	db *gorm.DB
}

// NewGormParticipantRepository 创建 GormParticipantRepository 实例
func NewGormParticipantRepository(db *gorm.DB) *GormParticipantRepository {
	if db == nil {
		panic("database connection cannot be nil for GormParticipantRepository")
	}
	return &GormParticipantRepository{db: db}
}

// ListByContest 实现读取指定竞赛的全部参与者
func (r *GormParticipantRepository) ListByContest(ctx context.Context, contestID uint) ([]domain.ContestParticipant, error) {
	var participants []domain.ContestParticipant
	// 按主键顺序读取即可，排序由上层重算逻辑负责
	err := r.db.WithContext(ctx).Where("contest_id = ?", contestID).Find(&participants).Error
	if err != nil {
		return nil, fmt.Errorf("gorm: list participants for contest %d: %w", contestID, err)
	}
	return participants, nil
}

// SaveRanks 实现批量回写名次。单条失败时整体回滚。
func (r *GormParticipantRepository) SaveRanks(ctx context.Context, contestID uint, ranks map[uint]int) error {
	if len(ranks) == 0 {
		return nil
	}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for userID, rank := range ranks {
			result := tx.Model(&domain.ContestParticipant{}).
				Where("contest_id = ? AND user_id = ?", contestID, userID).
				Update("rank", rank)
			if result.Error != nil {
				return result.Error
			}
			// 参与者记录在重算与回写之间被删除属于正常情况，跳过即可
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("gorm: save ranks for contest %d: %w", contestID, err)
	}
	return nil
}
