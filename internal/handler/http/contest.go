package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"skillport-relay/internal/service"
)

// ContestHandler 负责竞赛相关的 HTTP 查询接口。
// 排行榜查询优先走缓存快照，供仪表盘在没有 WebSocket 连接时轮询。
type ContestHandler struct {
	contestService     *service.ContestService
	leaderboardService *service.LeaderboardService
}

// NewContestHandler 创建 ContestHandler 实例
func NewContestHandler(contestService *service.ContestService, leaderboardService *service.LeaderboardService) *ContestHandler {
	if contestService == nil {
		panic("ContestService cannot be nil for ContestHandler")
	}
	if leaderboardService == nil {
		panic("LeaderboardService cannot be nil for ContestHandler")
	}
	return &ContestHandler{
		contestService:     contestService,
		leaderboardService: leaderboardService,
	}
}

// GetLeaderboard 处理 GET /api/contests/:contestId/leaderboard
func (h *ContestHandler) GetLeaderboard(c *gin.Context) {
	contestIDStr := c.Param("contestId")
	contestID, err := strconv.ParseUint(contestIDStr, 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid contest ID format"})
		return
	}

	// 校验竞赛存在，避免给不存在的竞赛返回空榜单
	if _, err := h.contestService.FindContestByID(c.Request.Context(), uint(contestID)); err != nil {
		if errors.Is(err, service.ErrContestNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Contest not found"})
		} else {
			logrus.WithField("contest_id", contestID).WithError(err).Error("Failed to look up contest")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to validate contest"})
		}
		return
	}

	entries, err := h.leaderboardService.CachedStandings(c.Request.Context(), uint(contestID))
	if err != nil {
		logrus.WithField("contest_id", contestID).WithError(err).Error("Failed to get leaderboard")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get leaderboard"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"contestId": contestID,
		"entries":   entries,
	})
}
