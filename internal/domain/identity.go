package domain

// Identity 表示连接握手时由认证层提供的已验证用户身份。
// 连接存续期间信任该身份，不对单个事件重新验证。
type Identity struct {
	UserID uint   `json:"userId"`
	Name   string `json:"name"`
	Role   string `json:"role"` // "student", "mentor", "admin"
}
