package domain

import "time"

// Contest 表示一次竞赛。主数据由 SkillPort 主应用维护，本服务只读。
type Contest struct {
	ID        uint      `gorm:"primaryKey"`
	Title     string    `gorm:"size:191;not null"`
	Status    string    `gorm:"size:50;index;not null"` // "scheduled", "running", "finished"
	StartsAt  time.Time `gorm:"index"`
	EndsAt    time.Time `gorm:"index"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

// ContestParticipant 表示用户在某次竞赛中的报名与得分记录。
// 得分由主应用在判题后写入；本服务读取得分并回写重算后的名次。
type ContestParticipant struct {
	ID               uint      `gorm:"primaryKey"`
	ContestID        uint      `gorm:"index:idx_contest_user,unique;not null"` // 竞赛 ID (联合唯一索引)
	UserID           uint      `gorm:"index:idx_contest_user,unique;not null"`
	DisplayName      string    `gorm:"size:191;not null"` // 冗余存储，避免排行榜查询联表
	Score            int       `gorm:"not null;default:0"`
	Rank             int       `gorm:"not null;default:0"` // 0 表示尚未重算
	Status           string    `gorm:"size:50;not null;default:'joined'"`
	ProblemsSolved   int       `gorm:"not null;default:0"`
	LastSubmissionAt time.Time `gorm:"index"` // 零值表示尚无提交
	CreatedAt        time.Time `gorm:"autoCreateTime"`
	UpdatedAt        time.Time `gorm:"autoUpdateTime"`
}

// LeaderboardEntry 是广播给竞赛房间的排行榜条目。
// 每次广播携带完整快照，客户端整体替换，不做增量。
type LeaderboardEntry struct {
	UserID         uint   `json:"userId"`
	DisplayName    string `json:"displayName"`
	Score          int    `json:"score"`
	ProblemsSolved int    `json:"problemsSolved"`
	Rank           int    `json:"rank"`
}
