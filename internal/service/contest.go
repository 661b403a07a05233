package service

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"

	"skillport-relay/internal/domain"
	"skillport-relay/internal/repository"
)

// ContestService 负责竞赛主数据的查询。
type ContestService struct {
	contestRepo repository.ContestRepository
}

// NewContestService 创建 ContestService 实例。
func NewContestService(contestRepo repository.ContestRepository) *ContestService {
	if contestRepo == nil {
		panic("ContestRepository cannot be nil for ContestService")
	}
	return &ContestService{contestRepo: contestRepo}
}

// FindContestByID 根据 ID 查找竞赛，供 HTTP Handler 校验竞赛存在性。
func (s *ContestService) FindContestByID(ctx context.Context, contestID uint) (*domain.Contest, error) {
	logCtx := logrus.WithField("contest_id", contestID)
	contest, err := s.contestRepo.FindByID(ctx, contestID)
	if err != nil {
		if errors.Is(err, repository.ErrContestNotFound) {
			logCtx.Warn("FindContestByID: Contest not found")
			return nil, ErrContestNotFound
		}
		logCtx.WithError(err).Error("FindContestByID: Repository error")
		return nil, ErrInternalServer
	}
	if contest == nil { // 防御
		logCtx.Warn("FindContestByID: Repository returned nil contest without error")
		return nil, ErrContestNotFound
	}
	return contest, nil
}
