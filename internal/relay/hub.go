package relay

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"skillport-relay/internal/domain"
)

// Hub 内部通道的消息类型
const (
	hubMsgRegister   = "register"
	hubMsgUnregister = "unregister"
	hubMsgEvent      = "event"
)

// hubMessage 定义在 Hub 内部通道传递的消息
type hubMessage struct {
	kind   string  // "register", "unregister", "event"
	client *Client // 来源连接
	raw    []byte  // 仅用于 event (原始 WebSocket 消息)
}

// LeaderboardProvider 抽象排行榜重算，提交事件后由 Hub 调用。
type LeaderboardProvider interface {
	Standings(ctx context.Context, contestID uint) ([]domain.LeaderboardEntry, error)
}

// NotificationSink 抽象通知记录的创建。
// 无论接收者是否在线都必须创建记录；实时推送由 Hub 负责。
type NotificationSink interface {
	DeliverFeedback(ctx context.Context, data domain.FeedbackData) (*domain.Notification, error)
}

// PresenceTracker 抽象房间在线计数的维护（可观测性用途）。
type PresenceTracker interface {
	IncrRoomPresence(ctx context.Context, roomKey string) error
	DecrRoomPresence(ctx context.Context, roomKey string) error
}

// Hub 维护连接注册表与房间成员关系，并协调事件分发。
// 注册表和房间集合是进程内唯一的共享可变状态，由 mu 保护；
// 事件主循环不做存储 I/O，排行榜重算与通知持久化在独立 goroutine 中执行，
// 单个慢 handler 不会阻塞其他连接。
type Hub struct {
	// 内部通道，处理所有来自 Client 的事件
	messageChan chan hubMessage
	closeOnce   sync.Once

	mu sync.RWMutex
	// 身份 -> 活跃连接。同一用户重连时直接覆盖（last wins），
	// 旧连接的注销通过指针比较识别，不会误删新连接。
	registry map[uint]*Client
	// 房间成员集合 map[roomKey]map[*Client]bool
	rooms map[RoomKey]map[*Client]bool
	// 反向索引：连接 -> 已加入的房间，断开时用于清理与定向广播
	joined map[*Client]map[RoomKey]bool

	leaderboard   LeaderboardProvider
	notifications NotificationSink
	presence      PresenceTracker
}

// NewHub 创建并返回一个新的 Hub 实例
func NewHub(leaderboard LeaderboardProvider, notifications NotificationSink, presence PresenceTracker) *Hub {
	if leaderboard == nil {
		panic("LeaderboardProvider cannot be nil for Hub")
	}
	if notifications == nil {
		panic("NotificationSink cannot be nil for Hub")
	}
	if presence == nil {
		panic("PresenceTracker cannot be nil for Hub")
	}
	return &Hub{
		messageChan:   make(chan hubMessage, 512),
		registry:      make(map[uint]*Client),
		rooms:         make(map[RoomKey]map[*Client]bool),
		joined:        make(map[*Client]map[RoomKey]bool),
		leaderboard:   leaderboard,
		notifications: notifications,
		presence:      presence,
	}
}

// Run 启动 Hub 的主事件处理循环。
// 它应该在一个单独的 goroutine 中运行。
func (h *Hub) Run() {
	log := logrus.WithField("component", "hub")
	log.Info("Hub is running...")

	for msg := range h.messageChan {
		switch msg.kind {
		case hubMsgRegister:
			h.registerClient(msg.client)
		case hubMsgUnregister:
			h.unregisterClient(msg.client)
		case hubMsgEvent:
			// 同一连接的事件保持到达顺序处理；
			// handler 内部的存储 I/O 自行切换到后台 goroutine
			h.handleEvent(msg.client, msg.raw)
		default:
			log.Warnf("Hub: Received unknown message kind: %s", msg.kind)
		}
	}
	log.Info("Hub is shutting down...")
}

// Stop 关闭 Hub 的处理通道，Run 循环随之退出。
func (h *Hub) Stop() {
	h.closeOnce.Do(func() {
		close(h.messageChan)
	})
}

// Register 将连接的注册请求放入 Hub 的处理队列 (非阻塞)。
// 返回 false 表示队列已满，调用方应关闭连接。
func (h *Hub) Register(client *Client) bool {
	select {
	case h.messageChan <- hubMessage{kind: hubMsgRegister, client: client}:
		return true
	default:
		logrus.WithField("user_id", client.identity.UserID).Warn("Hub message channel full, dropping register request")
		return false
	}
}

// Lookup 返回指定用户当前的活跃连接，用于定向投递。
func (h *Hub) Lookup(userID uint) (*Client, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	client, ok := h.registry[userID]
	return client, ok
}

// Count 返回当前活跃连接数，用于可观测性。
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.registry)
}

// ActiveContests 返回当前有在线成员的竞赛 ID 列表，供周期性刷新任务使用。
func (h *Hub) ActiveContests() []uint {
	h.mu.RLock()
	defer h.mu.RUnlock()
	var contests []uint
	for key, members := range h.rooms {
		if len(members) == 0 {
			continue
		}
		if contestID, ok := parseContestRoom(key); ok {
			contests = append(contests, contestID)
		}
	}
	return contests
}

// --- 注册表 ---

// registerClient 处理客户端注册逻辑。
// 同一用户的旧连接直接被覆盖，不通知旧句柄（重连场景）。
func (h *Hub) registerClient(client *Client) {
	if client == nil {
		logrus.Error("Hub: Attempted to register a nil client")
		return
	}
	logCtx := logrus.WithFields(client.logFields())

	h.mu.Lock()
	if prev, ok := h.registry[client.identity.UserID]; ok && prev != client {
		logCtx.WithField("stale_instance_id", prev.instanceID).Info("Replacing stale connection for reconnecting user")
	}
	h.registry[client.identity.UserID] = client
	h.joined[client] = make(map[RoomKey]bool)
	h.mu.Unlock()

	logCtx.Info("Client registered to Hub")
}

// unregisterClient 处理客户端注销逻辑。
// 重复注销同一连接是 no-op。断开广播只发给该连接加入过的房间，
// 不做全局广播。
func (h *Hub) unregisterClient(client *Client) {
	if client == nil {
		logrus.Error("Hub: Attempted to unregister a nil client")
		return
	}
	logCtx := logrus.WithFields(client.logFields())

	h.mu.Lock()
	memberOf, ok := h.joined[client]
	if !ok {
		// 已经注销过（double-disconnect），直接返回
		h.mu.Unlock()
		logCtx.Debug("Client already unregistered, ignoring")
		return
	}
	delete(h.joined, client)

	// 从所有已加入的房间移除，记录仍有人的房间用于断开广播
	roomsToNotify := make([]RoomKey, 0, len(memberOf))
	for room := range memberOf {
		if members, exists := h.rooms[room]; exists {
			delete(members, client)
			if len(members) == 0 {
				delete(h.rooms, room)
			} else {
				roomsToNotify = append(roomsToNotify, room)
			}
		}
	}

	// 注册表只删除仍指向本连接的条目，避免误删重连后的新连接
	if current, exists := h.registry[client.identity.UserID]; exists && current == client {
		delete(h.registry, client.identity.UserID)
	}

	// 关闭此客户端的 send 通道，这将导致其 WritePump 退出
	select {
	case <-client.send:
		logCtx.Warn("Client send channel already closed or has data during unregister")
	default:
		close(client.send)
	}
	h.mu.Unlock()

	// 断开广播限定在该连接加入过的房间内
	payload, err := marshalEvent(EventUserDisconnected, userDisconnectedPayload{
		UserID: client.identity.UserID,
		Name:   client.identity.Name,
	})
	if err != nil {
		logCtx.WithError(err).Error("Failed to marshal user_disconnected payload")
	} else {
		for _, room := range roomsToNotify {
			h.broadcast(room, payload, client)
		}
	}
	for room := range memberOf {
		h.trackPresence(false, room)
	}

	logCtx.Info("Client unregistered from Hub")
}

// --- 房间成员关系 ---

// join 将连接加入房间。幂等：重复加入无额外效果。
// 返回 true 表示本次调用产生了新的成员关系。
func (h *Hub) join(client *Client, room RoomKey) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	memberOf, ok := h.joined[client]
	if !ok {
		// 未注册的连接不能加入房间
		return false
	}
	if memberOf[room] {
		return false
	}
	memberOf[room] = true
	if _, exists := h.rooms[room]; !exists {
		h.rooms[room] = make(map[*Client]bool)
	}
	h.rooms[room][client] = true
	return true
}

// leave 将连接从房间移除。非成员时是 no-op。
func (h *Hub) leave(client *Client, room RoomKey) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	memberOf, ok := h.joined[client]
	if !ok || !memberOf[room] {
		return false
	}
	delete(memberOf, room)
	if members, exists := h.rooms[room]; exists {
		delete(members, client)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
	return true
}

// --- 事件分发 ---

// handleEvent 将入站事件翻译为一次或多次出站广播。
// 校验失败或未知的事件记录警告后丢弃，绝不中断连接。
func (h *Hub) handleEvent(client *Client, raw []byte) {
	logCtx := logrus.WithFields(client.logFields())

	env, err := parseEnvelope(raw)
	if err != nil {
		logCtx.WithError(err).Warn("Dropping malformed event")
		return
	}
	logCtx = logCtx.WithField("event", env.Event)

	switch env.Event {
	case EventJoinContest:
		var p joinContestPayload
		if err := decodePayload(env.Data, &p); err != nil {
			logCtx.WithError(err).Warn("Dropping invalid join_contest event")
			return
		}
		h.handleJoinContest(client, p)

	case EventLeaveContest:
		var p leaveContestPayload
		if err := decodePayload(env.Data, &p); err != nil {
			logCtx.WithError(err).Warn("Dropping invalid leave_contest event")
			return
		}
		if h.leave(client, ContestRoom(p.ContestID)) {
			h.trackPresence(false, ContestRoom(p.ContestID))
		}

	case EventJoinCommunity:
		var p joinCommunityPayload
		if err := decodePayload(env.Data, &p); err != nil {
			logCtx.WithError(err).Warn("Dropping invalid join_community event")
			return
		}
		if h.join(client, CommunityRoom(p.CommunityID)) {
			h.trackPresence(true, CommunityRoom(p.CommunityID))
		}

	case EventChatMessage:
		var p chatMessagePayload
		if err := decodePayload(env.Data, &p); err != nil {
			logCtx.WithError(err).Warn("Dropping invalid chat_message event")
			return
		}
		h.handleChatMessage(client, p)

	case EventTypingStart, EventTypingStop:
		var p typingPayload
		if err := decodePayload(env.Data, &p); err != nil {
			logCtx.WithError(err).Warn("Dropping invalid typing event")
			return
		}
		h.handleTyping(client, p, env.Event == EventTypingStart)

	case EventSubmissionUpdate:
		var p submissionUpdatePayload
		if err := decodePayload(env.Data, &p); err != nil {
			logCtx.WithError(err).Warn("Dropping invalid submission_update event")
			return
		}
		h.handleSubmissionUpdate(client, p)

	case EventFeedbackSubmitted:
		var p feedbackSubmittedPayload
		if err := decodePayload(env.Data, &p); err != nil {
			logCtx.WithError(err).Warn("Dropping invalid feedback_submitted event")
			return
		}
		// 通知创建涉及存储 I/O，移出主循环
		go h.deliverFeedback(client, p)

	default:
		logCtx.Warn("Dropping unknown event")
	}
}

// handleJoinContest 加入竞赛房间并向房间内其他成员广播加入事件。
func (h *Hub) handleJoinContest(client *Client, p joinContestPayload) {
	room := ContestRoom(p.ContestID)
	if !h.join(client, room) {
		return // 重复加入，不重复广播
	}
	h.trackPresence(true, room)

	payload, err := marshalEvent(EventUserJoinedContest, userJoinedContestPayload{
		ContestID: p.ContestID,
		UserID:    client.identity.UserID,
		Name:      client.identity.Name,
	})
	if err != nil {
		logrus.WithFields(client.logFields()).WithError(err).Error("Failed to marshal user_joined_contest payload")
		return
	}
	h.broadcast(room, payload, client)
}

// handleChatMessage 将聊天消息广播给房间内除发送者外的成员。
// 发送者身份一律取自连接，不信任事件数据里的身份字段。
// 消息不持久化，重连的客户端会丢失历史。
func (h *Hub) handleChatMessage(client *Client, p chatMessagePayload) {
	room, ok := roomFor(p.RoomKind, p.RoomID)
	if !ok {
		logrus.WithFields(client.logFields()).Warnf("Dropping chat_message with unsupported room kind: %s", p.RoomKind)
		return
	}
	payload, err := marshalEvent(EventChatMessage, chatBroadcastPayload{
		RoomKind: p.RoomKind,
		RoomID:   p.RoomID,
		UserID:   client.identity.UserID,
		Name:     client.identity.Name,
		Message:  p.Message,
		SentAt:   time.Now().UTC(),
	})
	if err != nil {
		logrus.WithFields(client.logFields()).WithError(err).Error("Failed to marshal chat_message payload")
		return
	}
	h.broadcast(room, payload, client)
}

// handleTyping 将输入状态广播给房间内除发送者外的成员。
func (h *Hub) handleTyping(client *Client, p typingPayload, typing bool) {
	room, ok := roomFor(p.RoomKind, p.RoomID)
	if !ok {
		logrus.WithFields(client.logFields()).Warnf("Dropping typing event with unsupported room kind: %s", p.RoomKind)
		return
	}
	event := EventTypingStop
	if typing {
		event = EventTypingStart
	}
	payload, err := marshalEvent(event, typingBroadcastPayload{
		RoomKind: p.RoomKind,
		RoomID:   p.RoomID,
		UserID:   client.identity.UserID,
		Name:     client.identity.Name,
		Typing:   typing,
	})
	if err != nil {
		logrus.WithFields(client.logFields()).WithError(err).Error("Failed to marshal typing payload")
		return
	}
	h.broadcast(room, payload, client)
}

// handleSubmissionUpdate 向竞赛房间广播提交回执，并触发排行榜重算。
// 回执发给全部成员；重算读取持久层，在后台 goroutine 中执行，
// 完成后广播完整快照。
func (h *Hub) handleSubmissionUpdate(client *Client, p submissionUpdatePayload) {
	room := ContestRoom(p.ContestID)
	payload, err := marshalEvent(EventSubmissionUpdate, submissionBroadcastPayload{
		ContestID:   p.ContestID,
		ProblemID:   p.ProblemID,
		UserID:      client.identity.UserID,
		Name:        client.identity.Name,
		Status:      p.Status,
		Score:       p.Score,
		SubmittedAt: time.Now().UTC(),
	})
	if err != nil {
		logrus.WithFields(client.logFields()).WithError(err).Error("Failed to marshal submission_update payload")
	} else {
		h.broadcast(room, payload, nil)
	}

	go h.publishLeaderboard(p.ContestID)
}

// publishLeaderboard 重算竞赛排行榜并向竞赛房间广播完整快照。
// 重算失败只记录日志，已完成的提交回执广播不回滚。
func (h *Hub) publishLeaderboard(contestID uint) {
	ctx := context.Background()
	logCtx := logrus.WithField("contest_id", contestID)

	entries, err := h.leaderboard.Standings(ctx, contestID)
	if err != nil {
		logCtx.WithError(err).Error("Failed to recompute leaderboard")
		return
	}
	h.BroadcastLeaderboard(contestID, entries)
}

// BroadcastLeaderboard 向竞赛房间广播给定的排行榜快照。
// 供提交事件路径和周期性刷新任务共用。
func (h *Hub) BroadcastLeaderboard(contestID uint, entries []domain.LeaderboardEntry) {
	payload, err := marshalEvent(EventLeaderboardUpdated, leaderboardUpdatePayload{
		ContestID: contestID,
		Entries:   entries,
	})
	if err != nil {
		logrus.WithField("contest_id", contestID).WithError(err).Error("Failed to marshal leaderboard_updated payload")
		return
	}
	h.broadcast(ContestRoom(contestID), payload, nil)
}

// deliverFeedback 创建通知记录并尝试实时推送给学生。
// 学生不在线时只持久化，不算错误。
func (h *Hub) deliverFeedback(client *Client, p feedbackSubmittedPayload) {
	ctx := context.Background()
	logCtx := logrus.WithFields(logrus.Fields{
		"student_id": p.StudentID,
		"mentor_id":  client.identity.UserID,
	})

	// 发送者身份取自连接，事件携带的 mentorId 仅作记录
	notification, err := h.notifications.DeliverFeedback(ctx, domain.FeedbackData{
		StudentID: p.StudentID,
		MentorID:  client.identity.UserID,
		Rating:    p.Rating,
		ContestID: p.ContestID,
		Message:   p.Message,
	})
	if err != nil {
		logCtx.WithError(err).Error("Failed to create feedback notification")
		return
	}

	data, err := notification.ParseData()
	if err != nil {
		logCtx.WithError(err).Error("Failed to parse notification data for delivery")
		return
	}
	payload, err := marshalEvent(EventNotification, notificationPayload{
		Kind:      notification.Kind,
		Data:      data,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		logCtx.WithError(err).Error("Failed to marshal notification payload")
		return
	}

	target, online := h.Lookup(p.StudentID)
	if !online {
		logCtx.Debug("Feedback recipient offline, notification persisted only")
		return
	}
	select {
	case target.send <- payload:
	default:
		logCtx.Warn("Recipient send channel full, dropping realtime notification")
	}
}

// --- 广播 ---

// broadcast 将消息发送给指定房间的所有客户端，排除发送者。
// 房间不存在或没有接收者时是 no-op。
func (h *Hub) broadcast(room RoomKey, message []byte, sender *Client) {
	h.mu.RLock()
	members, ok := h.rooms[room]
	// 创建接收者副本，避免发送期间持有锁
	clientsToSend := make([]*Client, 0, len(members))
	if ok {
		for client := range members {
			if client != sender {
				clientsToSend = append(clientsToSend, client)
			}
		}
	}
	h.mu.RUnlock()

	if len(clientsToSend) == 0 {
		return
	}

	for _, client := range clientsToSend {
		// 非阻塞发送，避免单个慢客户端阻塞广播
		select {
		case client.send <- message:
		default:
			logrus.WithFields(logrus.Fields{
				"room":             string(room),
				"receiver_user_id": client.identity.UserID,
			}).Warn("Client send channel full during broadcast, skipping this client")
		}
	}
}

// trackPresence 异步更新房间在线计数，失败只记录日志。
func (h *Hub) trackPresence(incr bool, room RoomKey) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		var err error
		if incr {
			err = h.presence.IncrRoomPresence(ctx, string(room))
		} else {
			err = h.presence.DecrRoomPresence(ctx, string(room))
		}
		if err != nil && !errors.Is(err, context.Canceled) {
			logrus.WithField("room", string(room)).WithError(err).Warn("Failed to update room presence counter")
		}
	}()
}
