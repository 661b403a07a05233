package service

import (
	"context"
	"errors"
	"sort"

	"github.com/sirupsen/logrus"

	"skillport-relay/internal/domain"
	"skillport-relay/internal/repository"
)

// 排行榜快照缓存的默认生存时间（秒）
const leaderboardCacheTTLSeconds = 300

// LeaderboardService 负责竞赛排行榜的重算、名次回写与快照缓存。
type LeaderboardService struct {
	participantRepo repository.ParticipantRepository
	stateRepo       repository.StateRepository
}

// NewLeaderboardService 创建 LeaderboardService 实例。
func NewLeaderboardService(participantRepo repository.ParticipantRepository, stateRepo repository.StateRepository) *LeaderboardService {
	if participantRepo == nil || stateRepo == nil {
		panic("All repositories must be non-nil for LeaderboardService")
	}
	return &LeaderboardService{
		participantRepo: participantRepo,
		stateRepo:       stateRepo,
	}
}

// Standings 重算指定竞赛的完整排行榜。
// 排序规则：得分降序；同分时提交时间早者在前（从未提交视为最晚）；
// 仍相同时按 user_id 升序，保证结果确定。名次为 1 起的连续序号。
// 名次回写与缓存写入失败只记录日志，不影响返回的快照。
func (s *LeaderboardService) Standings(ctx context.Context, contestID uint) ([]domain.LeaderboardEntry, error) {
	logCtx := logrus.WithField("contest_id", contestID)

	// 1. 读取全部参与者及当前累计得分
	participants, err := s.participantRepo.ListByContest(ctx, contestID)
	if err != nil {
		logCtx.WithError(err).Error("Failed to list contest participants")
		return nil, ErrInternalServer
	}

	// 2. 排序（确定性 tie-break）
	sort.SliceStable(participants, func(i, j int) bool {
		a, b := participants[i], participants[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		aZero, bZero := a.LastSubmissionAt.IsZero(), b.LastSubmissionAt.IsZero()
		if aZero != bZero {
			return bZero // 有提交记录者在前
		}
		if !aZero && !a.LastSubmissionAt.Equal(b.LastSubmissionAt) {
			return a.LastSubmissionAt.Before(b.LastSubmissionAt)
		}
		return a.UserID < b.UserID
	})

	// 3. 分配名次并构造快照
	entries := make([]domain.LeaderboardEntry, 0, len(participants))
	ranks := make(map[uint]int, len(participants))
	for i, p := range participants {
		rank := i + 1
		entries = append(entries, domain.LeaderboardEntry{
			UserID:         p.UserID,
			DisplayName:    p.DisplayName,
			Score:          p.Score,
			ProblemsSolved: p.ProblemsSolved,
			Rank:           rank,
		})
		ranks[p.UserID] = rank
	}

	// 4. 回写名次（失败不阻断广播）
	if err := s.participantRepo.SaveRanks(ctx, contestID, ranks); err != nil {
		logCtx.WithError(err).Error("Failed to save recomputed ranks")
	}

	// 5. 写入快照缓存，供 HTTP 读取路径使用（失败不阻断广播）
	if err := s.stateRepo.SetLeaderboardCache(ctx, contestID, entries, leaderboardCacheTTLSeconds); err != nil {
		logCtx.WithError(err).Error("Failed to cache leaderboard snapshot")
	}

	logCtx.WithField("participant_count", len(entries)).Debug("Leaderboard recomputed")
	return entries, nil
}

// CachedStandings 优先返回缓存的快照，缓存未命中时回退到完整重算。
func (s *LeaderboardService) CachedStandings(ctx context.Context, contestID uint) ([]domain.LeaderboardEntry, error) {
	entries, err := s.stateRepo.GetLeaderboardCache(ctx, contestID)
	if err == nil {
		return entries, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		// 缓存读取异常降级为重算，不向上抛出
		logrus.WithField("contest_id", contestID).WithError(err).Warn("Leaderboard cache read failed, falling back to recompute")
	}
	return s.Standings(ctx, contestID)
}
