package relay

import (
	"fmt"
	"strconv"
	"strings"
)

// RoomKey 是广播房间的复合键，格式为 "kind:id"。
// 房间不是存储实体，只是连接集合上的命名约定；
// 对 id 的格式不做校验，加入授权由上层负责。
type RoomKey string

// ContestRoom 返回竞赛房间键。
func ContestRoom(contestID uint) RoomKey {
	return RoomKey(fmt.Sprintf("contest:%d", contestID))
}

// CommunityRoom 返回社区房间键。
func CommunityRoom(communityID uint) RoomKey {
	return RoomKey(fmt.Sprintf("community:%d", communityID))
}

// RoleRoom 返回角色房间键（例如所有 mentor）。
func RoleRoom(role string) RoomKey {
	return RoomKey("role:" + role)
}

// UserRoom 返回用户个人房间键，用于定向投递。
func UserRoom(userID uint) RoomKey {
	return RoomKey(fmt.Sprintf("user:%d", userID))
}

// roomFor 根据 chat/typing 事件携带的房间类型与 id 构造房间键。
// 只接受 contest 和 community 两种可群聊的房间类型。
func roomFor(kind string, id uint) (RoomKey, bool) {
	switch kind {
	case "contest":
		return ContestRoom(id), true
	case "community":
		return CommunityRoom(id), true
	default:
		return "", false
	}
}

// parseContestRoom 从房间键中还原竞赛 ID。
func parseContestRoom(key RoomKey) (uint, bool) {
	s := string(key)
	if !strings.HasPrefix(s, "contest:") {
		return 0, false
	}
	id, err := strconv.ParseUint(strings.TrimPrefix(s, "contest:"), 10, 32)
	if err != nil {
		return 0, false
	}
	return uint(id), true
}
