package worker

import (
	"context"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"skillport-relay/internal/relay"
	"skillport-relay/internal/service"
)

// LeaderboardRefreshHandler 处理周期性排行榜刷新任务。
// 对当前有在线成员的每个竞赛房间重算并重新广播快照，
// 兜底修正因提交事件丢失或重算失败造成的陈旧榜单。
type LeaderboardRefreshHandler struct {
	hub                *relay.Hub
	leaderboardService *service.LeaderboardService
}

// NewLeaderboardRefreshHandler 创建 Handler 实例
func NewLeaderboardRefreshHandler(hub *relay.Hub, leaderboardService *service.LeaderboardService) *LeaderboardRefreshHandler {
	return &LeaderboardRefreshHandler{
		hub:                hub,
		leaderboardService: leaderboardService,
	}
}

// ProcessTask 实现 asynq.Handler 接口
func (h *LeaderboardRefreshHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	contests := h.hub.ActiveContests()
	if len(contests) == 0 {
		return nil
	}
	logCtx := logrus.WithField("task_type", t.Type())
	logCtx.WithField("contest_count", len(contests)).Debug("Refreshing leaderboards for active contest rooms")

	for _, contestID := range contests {
		entries, err := h.leaderboardService.Standings(ctx, contestID)
		if err != nil {
			// 单个竞赛失败不影响其他竞赛的刷新
			logCtx.WithField("contest_id", contestID).WithError(err).Error("Failed to refresh leaderboard")
			continue
		}
		h.hub.BroadcastLeaderboard(contestID, entries)
	}
	return nil
}
