package repository

import (
	"context"

	"skillport-relay/internal/domain"
)

// ContestRepository 定义竞赛主数据的只读访问。
type ContestRepository interface {
	// FindByID 根据竞赛 ID 查找竞赛。
	// 如果竞赛不存在，应返回 ErrContestNotFound。
	FindByID(ctx context.Context, id uint) (*domain.Contest, error)
}
