package relay

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"skillport-relay/internal/domain"
)

// 入站事件名。必须与既有客户端保持逐字节一致。
const (
	EventJoinContest       = "join_contest"
	EventLeaveContest      = "leave_contest"
	EventJoinCommunity     = "join_community"
	EventChatMessage       = "chat_message"
	EventTypingStart       = "typing_start"
	EventTypingStop        = "typing_stop"
	EventSubmissionUpdate  = "submission_update"
	EventFeedbackSubmitted = "feedback_submitted"
)

// 出站事件名。
const (
	EventNotification       = "notification"
	EventLeaderboardUpdated = "leaderboard_updated"
	EventUserJoinedContest  = "user_joined_contest"
	EventUserDisconnected   = "user_disconnected"
)

var (
	// ErrInvalidPayload 表示事件数据缺失、格式错误或未通过校验
	ErrInvalidPayload = errors.New("relay: invalid event payload")
	// ErrUnknownEvent 表示事件名不在事件目录中
	ErrUnknownEvent = errors.New("relay: unknown event")
)

// 事件边界共用一个 validator 实例（并发安全）
var validate = validator.New()

// Envelope 是 WebSocket 上传输的事件信封。
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// parseEnvelope 解析原始消息为事件信封。
func parseEnvelope(raw []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return env, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if env.Event == "" {
		return env, fmt.Errorf("%w: missing event name", ErrInvalidPayload)
	}
	return env, nil
}

// decodePayload 将事件数据解码到目标结构并做字段校验。
// 校验失败的事件在边界被丢弃，绝不带着缺失字段进入处理逻辑。
func decodePayload(raw json.RawMessage, out interface{}) error {
	if len(raw) == 0 {
		return fmt.Errorf("%w: missing data", ErrInvalidPayload)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if err := validate.Struct(out); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return nil
}

// marshalEvent 构造出站事件信封。
func marshalEvent(event string, data interface{}) ([]byte, error) {
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("relay: failed to marshal %s payload: %w", event, err)
	}
	return json.Marshal(Envelope{Event: event, Data: dataBytes})
}

// --- 入站事件数据结构 ---

type joinContestPayload struct {
	ContestID uint `json:"contestId" validate:"required"`
}

type leaveContestPayload struct {
	ContestID uint `json:"contestId" validate:"required"`
}

type joinCommunityPayload struct {
	CommunityID uint `json:"communityId" validate:"required"`
}

type chatMessagePayload struct {
	RoomKind string `json:"roomKind" validate:"required,oneof=contest community"`
	RoomID   uint   `json:"roomId" validate:"required"`
	Message  string `json:"message" validate:"required,max=2000"`
}

type typingPayload struct {
	RoomKind string `json:"roomKind" validate:"required,oneof=contest community"`
	RoomID   uint   `json:"roomId" validate:"required"`
}

type submissionUpdatePayload struct {
	ContestID uint   `json:"contestId" validate:"required"`
	ProblemID string `json:"problemId" validate:"required,max=191"`
	Status    string `json:"status" validate:"required,max=50"`
	Score     int    `json:"score" validate:"min=0"`
}

type feedbackSubmittedPayload struct {
	StudentID uint   `json:"studentId" validate:"required"`
	MentorID  uint   `json:"mentorId" validate:"required"`
	Rating    int    `json:"rating" validate:"required,min=1,max=5"`
	ContestID uint   `json:"contestId"`
	Message   string `json:"message" validate:"max=2000"`
}

// --- 出站事件数据结构 ---

type chatBroadcastPayload struct {
	RoomKind string    `json:"roomKind"`
	RoomID   uint      `json:"roomId"`
	UserID   uint      `json:"userId"`
	Name     string    `json:"name"`
	Message  string    `json:"message"`
	SentAt   time.Time `json:"sentAt"`
}

type typingBroadcastPayload struct {
	RoomKind string `json:"roomKind"`
	RoomID   uint   `json:"roomId"`
	UserID   uint   `json:"userId"`
	Name     string `json:"name"`
	Typing   bool   `json:"typing"`
}

type submissionBroadcastPayload struct {
	ContestID   uint      `json:"contestId"`
	ProblemID   string    `json:"problemId"`
	UserID      uint      `json:"userId"`
	Name        string    `json:"name"`
	Status      string    `json:"status"`
	Score       int       `json:"score"`
	SubmittedAt time.Time `json:"submittedAt"`
}

type leaderboardUpdatePayload struct {
	ContestID uint                     `json:"contestId"`
	Entries   []domain.LeaderboardEntry `json:"entries"`
}

type userJoinedContestPayload struct {
	ContestID uint   `json:"contestId"`
	UserID    uint   `json:"userId"`
	Name      string `json:"name"`
}

type userDisconnectedPayload struct {
	UserID uint   `json:"userId"`
	Name   string `json:"name"`
}

type notificationPayload struct {
	Kind      string              `json:"kind"`
	Data      domain.FeedbackData `json:"data"`
	CreatedAt time.Time           `json:"createdAt"`
}
