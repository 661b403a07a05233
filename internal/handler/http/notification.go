package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"skillport-relay/internal/middleware"
	"skillport-relay/internal/service"
)

// NotificationHandler 负责通知记录的 HTTP 查询接口。
type NotificationHandler struct {
	notificationService *service.NotificationService
}

// NewNotificationHandler 创建 NotificationHandler 实例
func NewNotificationHandler(notificationService *service.NotificationService) *NotificationHandler {
	if notificationService == nil {
		panic("NotificationService cannot be nil for NotificationHandler")
	}
	return &NotificationHandler{notificationService: notificationService}
}

// ListNotifications 处理 GET /api/notifications，返回当前用户最近的通知。
func (h *NotificationHandler) ListNotifications(c *gin.Context) {
	identity, ok := middleware.IdentityFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	limit := 50
	if limitStr := c.Query("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 && parsed <= 200 {
			limit = parsed
		}
	}

	notifications, err := h.notificationService.RecentForUser(c.Request.Context(), identity.UserID, limit)
	if err != nil {
		logrus.WithField("user_id", identity.UserID).WithError(err).Error("Failed to list notifications")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list notifications"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"notifications": notifications})
}
