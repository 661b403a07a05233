package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// Notification 表示投递给用户的站内通知记录。
type Notification struct {
	ID        uint      `gorm:"primaryKey"`
	UserID    uint      `gorm:"index;not null"`     // 接收者用户 ID
	Kind      string    `gorm:"size:50;not null"`   // 通知类型，例如 "feedback"
	Data      string    `gorm:"type:text;not null"` // 具体数据，JSON 字符串
	Read      bool      `gorm:"not null;default:false"`
	CreatedAt time.Time `gorm:"autoCreateTime;index"`
}

// FeedbackData 定义 "feedback" 类型通知的具体数据结构。
type FeedbackData struct {
	StudentID uint   `json:"studentId"`
	MentorID  uint   `json:"mentorId"`
	Rating    int    `json:"rating"`
	ContestID uint   `json:"contestId,omitempty"`
	Message   string `json:"message,omitempty"`
}

// ParseData 将 Notification 的 Data 字段解析为 FeedbackData。
func (n *Notification) ParseData() (FeedbackData, error) {
	var data FeedbackData
	if n.Data == "" || n.Data == "null" {
		return data, fmt.Errorf("notification data is empty for kind %s", n.Kind)
	}
	if err := json.Unmarshal([]byte(n.Data), &data); err != nil {
		return data, fmt.Errorf("failed to unmarshal notification data: %w", err)
	}
	return data, nil
}

// SetData 将 FeedbackData 序列化后写入 Data 字段。
func (n *Notification) SetData(data FeedbackData) error {
	bytes, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal notification data: %w", err)
	}
	n.Data = string(bytes)
	return nil
}
