package tasks

import (
	"encoding/json"

	"skillport-relay/internal/domain"
)

// 定义任务类型常量
const (
	TypeNotificationPersist = "notification:persist" // 通知持久化任务类型
	TypeLeaderboardRefresh  = "leaderboard:refresh"  // 周期性排行榜刷新任务类型
)

// NotificationPersistPayload 定义通知持久化任务的数据结构
type NotificationPersistPayload struct {
	Notification domain.Notification
}

// NewNotificationPersistTask 创建通知持久化任务的 payload
func NewNotificationPersistTask(notification domain.Notification) ([]byte, error) {
	payload := NotificationPersistPayload{
		Notification: notification,
	}
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return payloadBytes, nil
}

// NewLeaderboardRefreshTask 创建周期性排行榜刷新任务的 payload。
// 刷新范围由 worker 根据当前有在线成员的竞赛房间决定，payload 为空对象。
func NewLeaderboardRefreshTask() ([]byte, error) {
	return json.Marshal(struct{}{})
}
