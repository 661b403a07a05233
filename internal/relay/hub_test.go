package relay

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"skillport-relay/internal/domain"
)

// --- 测试用 stub ---

type stubLeaderboard struct {
	mu      sync.Mutex
	entries []domain.LeaderboardEntry
	err     error
	calls   []uint
}

func (s *stubLeaderboard) Standings(_ context.Context, contestID uint) ([]domain.LeaderboardEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, contestID)
	if s.err != nil {
		return nil, s.err
	}
	return s.entries, nil
}

func (s *stubLeaderboard) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

type stubNotifications struct {
	mu        sync.Mutex
	delivered []domain.FeedbackData
	err       error
}

func (s *stubNotifications) DeliverFeedback(_ context.Context, data domain.FeedbackData) (*domain.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	s.delivered = append(s.delivered, data)
	notification := &domain.Notification{UserID: data.StudentID, Kind: "feedback"}
	if err := notification.SetData(data); err != nil {
		return nil, err
	}
	return notification, nil
}

func (s *stubNotifications) deliveredCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.delivered)
}

type stubPresence struct{}

func (s *stubPresence) IncrRoomPresence(context.Context, string) error { return nil }
func (s *stubPresence) DecrRoomPresence(context.Context, string) error { return nil }

// --- 测试辅助 ---

func newTestHub() (*Hub, *stubLeaderboard, *stubNotifications) {
	leaderboard := &stubLeaderboard{}
	notifications := &stubNotifications{}
	h := NewHub(leaderboard, notifications, &stubPresence{})
	return h, leaderboard, notifications
}

// newTestClient 构造一个不带真实连接的客户端并直接注册。
// 测试直接调用 Hub 的内部方法，不经过读写泵。
func newTestClient(h *Hub, userID uint, name string) *Client {
	c := &Client{
		hub:        h,
		identity:   domain.Identity{UserID: userID, Name: name, Role: "student"},
		instanceID: uuid.NewString(),
		send:       make(chan []byte, 16),
	}
	h.registerClient(c)
	return c
}

// drainEnvelopes 读出客户端 send 通道中当前积压的全部事件。
func drainEnvelopes(t *testing.T, c *Client) []Envelope {
	t.Helper()
	var out []Envelope
	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				return out
			}
			var env Envelope
			require.NoError(t, json.Unmarshal(msg, &env))
			out = append(out, env)
		default:
			return out
		}
	}
}

func eventNames(envelopes []Envelope) []string {
	names := make([]string, 0, len(envelopes))
	for _, env := range envelopes {
		names = append(names, env.Event)
	}
	return names
}

// --- 注册表 ---

func TestHub_RegisterAndLookup(t *testing.T) {
	h, _, _ := newTestHub()

	c1 := newTestClient(h, 1, "alice")
	c2 := newTestClient(h, 2, "bob")

	assert.Equal(t, 2, h.Count())

	got, ok := h.Lookup(1)
	require.True(t, ok)
	assert.Same(t, c1, got)

	got, ok = h.Lookup(2)
	require.True(t, ok)
	assert.Same(t, c2, got)

	_, ok = h.Lookup(99)
	assert.False(t, ok)
}

func TestHub_RegisterLastWins(t *testing.T) {
	h, _, _ := newTestHub()

	// 同一用户先后两个连接：新连接覆盖旧连接
	old := newTestClient(h, 1, "alice")
	fresh := newTestClient(h, 1, "alice")

	assert.Equal(t, 1, h.Count(), "同一用户只保留一条注册表记录")
	got, ok := h.Lookup(1)
	require.True(t, ok)
	assert.Same(t, fresh, got, "注册表应指向较新的连接")

	// 旧连接延迟关闭触发的注销不能误删新连接
	h.unregisterClient(old)
	got, ok = h.Lookup(1)
	require.True(t, ok)
	assert.Same(t, fresh, got, "旧连接注销后新连接仍应可达")
}

func TestHub_UnregisterIsIdempotent(t *testing.T) {
	h, _, _ := newTestHub()

	c := newTestClient(h, 1, "alice")
	h.join(c, ContestRoom(42))

	h.unregisterClient(c)
	assert.Equal(t, 0, h.Count())

	// 读泵与关闭路径竞态下可能注销两次，第二次必须是 no-op
	assert.NotPanics(t, func() { h.unregisterClient(c) })
	assert.Equal(t, 0, h.Count())
}

// --- 房间成员关系 ---

func TestHub_JoinIsIdempotent(t *testing.T) {
	h, _, _ := newTestHub()

	c1 := newTestClient(h, 1, "alice")
	c2 := newTestClient(h, 2, "bob")
	room := ContestRoom(42)

	assert.True(t, h.join(c1, room))
	assert.False(t, h.join(c1, room), "重复加入不应产生新的成员关系")
	require.True(t, h.join(c2, room))

	// c2 发消息，c1 只能收到一次（成员集合无重复）
	h.broadcast(room, []byte(`{"event":"chat_message","data":{}}`), c2)
	assert.Len(t, drainEnvelopes(t, c1), 1)
}

func TestHub_LeaveRemovesMembership(t *testing.T) {
	h, _, _ := newTestHub()

	c1 := newTestClient(h, 1, "alice")
	c2 := newTestClient(h, 2, "bob")
	room := ContestRoom(42)
	h.join(c1, room)
	h.join(c2, room)

	assert.True(t, h.leave(c1, room))
	assert.False(t, h.leave(c1, room), "重复离开应是 no-op")

	// 离开后不再收到房间广播
	h.handleTyping(c2, typingPayload{RoomKind: "contest", RoomID: 42}, true)
	assert.Empty(t, drainEnvelopes(t, c1))
}

func TestHub_TypingToEmptiedRoomIsNoop(t *testing.T) {
	h, _, _ := newTestHub()

	c1 := newTestClient(h, 1, "alice")
	c2 := newTestClient(h, 2, "bob")
	room := ContestRoom(42)
	h.join(c1, room)
	h.join(c2, room)
	h.leave(c2, room)

	// 房间里只剩发送者自己：广播静默完成，无接收者也无错误
	assert.NotPanics(t, func() {
		h.handleTyping(c1, typingPayload{RoomKind: "contest", RoomID: 42}, true)
	})
	assert.Empty(t, drainEnvelopes(t, c1))
	assert.Empty(t, drainEnvelopes(t, c2))
}

// --- 事件分发 ---

func TestHub_JoinContestBroadcastsUserJoined(t *testing.T) {
	h, _, _ := newTestHub()

	c1 := newTestClient(h, 1, "alice")
	c2 := newTestClient(h, 2, "bob")
	h.join(c1, ContestRoom(42))

	h.handleEvent(c2, []byte(`{"event":"join_contest","data":{"contestId":42}}`))

	// 房间内其他成员收到加入通告，发送者自己不收
	got := drainEnvelopes(t, c1)
	require.Len(t, got, 1)
	assert.Equal(t, EventUserJoinedContest, got[0].Event)

	var p userJoinedContestPayload
	require.NoError(t, json.Unmarshal(got[0].Data, &p))
	assert.Equal(t, uint(42), p.ContestID)
	assert.Equal(t, uint(2), p.UserID)
	assert.Equal(t, "bob", p.Name)

	assert.Empty(t, drainEnvelopes(t, c2))

	// 重复加入不重复通告
	h.handleEvent(c2, []byte(`{"event":"join_contest","data":{"contestId":42}}`))
	assert.Empty(t, drainEnvelopes(t, c1))
}

func TestHub_ChatMessageNotEchoedToSender(t *testing.T) {
	h, _, _ := newTestHub()

	c1 := newTestClient(h, 1, "alice")
	c2 := newTestClient(h, 2, "bob")
	room := ContestRoom(42)
	h.join(c1, room)
	h.join(c2, room)

	h.handleEvent(c1, []byte(`{"event":"chat_message","data":{"roomKind":"contest","roomId":42,"message":"hello"}}`))

	got := drainEnvelopes(t, c2)
	require.Len(t, got, 1)
	assert.Equal(t, EventChatMessage, got[0].Event)

	// 发送者身份取自连接，不取自事件数据
	var p chatBroadcastPayload
	require.NoError(t, json.Unmarshal(got[0].Data, &p))
	assert.Equal(t, uint(1), p.UserID)
	assert.Equal(t, "alice", p.Name)
	assert.Equal(t, "hello", p.Message)
	assert.False(t, p.SentAt.IsZero())

	assert.Empty(t, drainEnvelopes(t, c1), "聊天消息不应回显给发送者")
}

func TestHub_MalformedEventsAreDropped(t *testing.T) {
	h, leaderboard, notifications := newTestHub()

	c1 := newTestClient(h, 1, "alice")
	c2 := newTestClient(h, 2, "bob")
	room := ContestRoom(42)
	h.join(c1, room)
	h.join(c2, room)

	cases := [][]byte{
		[]byte(`not json at all`),
		[]byte(`{"data":{"contestId":42}}`),                                        // 缺少事件名
		[]byte(`{"event":"warp_drive","data":{}}`),                                 // 未知事件
		[]byte(`{"event":"chat_message","data":{"roomKind":"contest","roomId":42}}`), // 缺少 message
		[]byte(`{"event":"chat_message","data":{"roomKind":"dm","roomId":42,"message":"x"}}`),
		[]byte(`{"event":"feedback_submitted","data":{"studentId":2,"mentorId":1,"rating":9}}`),
		[]byte(`{"event":"submission_update","data":{"contestId":42}}`),
	}
	for _, raw := range cases {
		assert.NotPanics(t, func() { h.handleEvent(c1, raw) })
	}

	// 连接保持注册，任何一侧都没有收到广播，也没有触发存储路径
	assert.Equal(t, 2, h.Count())
	assert.Empty(t, drainEnvelopes(t, c1))
	assert.Empty(t, drainEnvelopes(t, c2))
	assert.Equal(t, 0, leaderboard.callCount())
	assert.Equal(t, 0, notifications.deliveredCount())
}

func TestHub_SubmissionUpdateBroadcastsReceiptAndLeaderboard(t *testing.T) {
	h, leaderboard, _ := newTestHub()
	leaderboard.entries = []domain.LeaderboardEntry{
		{UserID: 2, DisplayName: "bob", Score: 80, Rank: 1},
		{UserID: 1, DisplayName: "alice", Score: 50, Rank: 2},
	}

	c1 := newTestClient(h, 1, "alice")
	c2 := newTestClient(h, 2, "bob")
	room := ContestRoom(42)
	h.join(c1, room)
	h.join(c2, room)

	h.handleEvent(c1, []byte(`{"event":"submission_update","data":{"contestId":42,"problemId":"two-sum","status":"accepted","score":100}}`))

	// 提交回执发给全部成员，包括提交者本人；排行榜在后台重算后广播
	var got []Envelope
	require.Eventually(t, func() bool {
		got = append(got, drainEnvelopes(t, c1)...)
		for _, env := range got {
			if env.Event == EventLeaderboardUpdated {
				return true
			}
		}
		return false
	}, time.Second, 10*time.Millisecond, "提交者应先后收到回执与排行榜快照")

	names := eventNames(got)
	assert.Contains(t, names, EventSubmissionUpdate)
	assert.Contains(t, names, EventLeaderboardUpdated)

	for _, env := range got {
		switch env.Event {
		case EventSubmissionUpdate:
			var p submissionBroadcastPayload
			require.NoError(t, json.Unmarshal(env.Data, &p))
			assert.Equal(t, uint(42), p.ContestID)
			assert.Equal(t, "two-sum", p.ProblemID)
			assert.Equal(t, uint(1), p.UserID, "回执应带提交者身份")
		case EventLeaderboardUpdated:
			var p leaderboardUpdatePayload
			require.NoError(t, json.Unmarshal(env.Data, &p))
			assert.Equal(t, uint(42), p.ContestID)
			require.Len(t, p.Entries, 2, "排行榜广播携带完整快照")
			assert.Equal(t, 1, p.Entries[0].Rank)
		}
	}

	assert.Equal(t, 1, leaderboard.callCount())
}

func TestHub_PublishLeaderboardRecomputeFailure(t *testing.T) {
	h, leaderboard, _ := newTestHub()
	leaderboard.err = errors.New("db down")

	c := newTestClient(h, 1, "alice")
	h.join(c, ContestRoom(42))

	// 重算失败只记录日志，不广播也不崩溃
	assert.NotPanics(t, func() { h.publishLeaderboard(42) })
	assert.Empty(t, drainEnvelopes(t, c))
}

func TestHub_BroadcastLeaderboardReachesAllMembers(t *testing.T) {
	h, _, _ := newTestHub()

	c1 := newTestClient(h, 1, "alice")
	c2 := newTestClient(h, 2, "bob")
	room := ContestRoom(7)
	h.join(c1, room)
	h.join(c2, room)

	entries := []domain.LeaderboardEntry{{UserID: 1, DisplayName: "alice", Score: 10, Rank: 1}}
	h.BroadcastLeaderboard(7, entries)

	for _, c := range []*Client{c1, c2} {
		got := drainEnvelopes(t, c)
		require.Len(t, got, 1)
		assert.Equal(t, EventLeaderboardUpdated, got[0].Event)
	}
}

// --- 通知投递 ---

func TestHub_DeliverFeedbackToOnlineStudent(t *testing.T) {
	h, _, notifications := newTestHub()

	mentor := newTestClient(h, 7, "mentor-mei")
	student := newTestClient(h, 101, "alice")

	// 事件里伪造的 mentorId 会被连接身份覆盖
	h.deliverFeedback(mentor, feedbackSubmittedPayload{
		StudentID: 101,
		MentorID:  999,
		Rating:    5,
		ContestID: 42,
		Message:   "nice work",
	})

	got := drainEnvelopes(t, student)
	require.Len(t, got, 1)
	assert.Equal(t, EventNotification, got[0].Event)

	var p notificationPayload
	require.NoError(t, json.Unmarshal(got[0].Data, &p))
	assert.Equal(t, "feedback", p.Kind)
	assert.Equal(t, uint(7), p.Data.MentorID, "导师身份应取自连接")
	assert.Equal(t, uint(101), p.Data.StudentID)
	assert.Equal(t, 5, p.Data.Rating)

	require.Len(t, notifications.delivered, 1)
	assert.Equal(t, uint(7), notifications.delivered[0].MentorID)
}

func TestHub_DeliverFeedbackToOfflineStudentPersistsOnly(t *testing.T) {
	h, _, notifications := newTestHub()

	mentor := newTestClient(h, 7, "mentor-mei")

	// 学生不在线：通知记录仍然创建，实时推送静默跳过
	assert.NotPanics(t, func() {
		h.deliverFeedback(mentor, feedbackSubmittedPayload{
			StudentID: 101,
			MentorID:  7,
			Rating:    4,
		})
	})
	assert.Equal(t, 1, notifications.deliveredCount())
	assert.Empty(t, drainEnvelopes(t, mentor))
}

// --- 断开清理 ---

func TestHub_UnregisterBroadcastsDisconnectToJoinedRoomsOnly(t *testing.T) {
	h, _, _ := newTestHub()

	c1 := newTestClient(h, 1, "alice")
	c2 := newTestClient(h, 2, "bob")
	c3 := newTestClient(h, 3, "carol")
	room := ContestRoom(42)
	h.join(c1, room)
	h.join(c2, room)
	// c3 已注册但不在任何房间

	h.unregisterClient(c1)

	got := drainEnvelopes(t, c2)
	require.Len(t, got, 1)
	assert.Equal(t, EventUserDisconnected, got[0].Event)

	var p userDisconnectedPayload
	require.NoError(t, json.Unmarshal(got[0].Data, &p))
	assert.Equal(t, uint(1), p.UserID)
	assert.Equal(t, "alice", p.Name)

	assert.Empty(t, drainEnvelopes(t, c3), "断开广播不应发给未同房间的连接")

	_, ok := h.Lookup(1)
	assert.False(t, ok)
	assert.Equal(t, 2, h.Count())
}

func TestHub_ActiveContests(t *testing.T) {
	h, _, _ := newTestHub()

	c1 := newTestClient(h, 1, "alice")
	c2 := newTestClient(h, 2, "bob")
	h.join(c1, ContestRoom(42))
	h.join(c2, ContestRoom(7))
	h.join(c2, CommunityRoom(3)) // 社区房间不算竞赛

	contests := h.ActiveContests()
	assert.ElementsMatch(t, []uint{42, 7}, contests)

	h.leave(c2, ContestRoom(7))
	assert.ElementsMatch(t, []uint{42}, h.ActiveContests())
}
