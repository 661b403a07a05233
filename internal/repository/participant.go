package repository

import (
	"context"

	"skillport-relay/internal/domain"
)

// ParticipantRepository 定义竞赛参与者数据的读取与名次回写。
// 得分本身由主应用写入，重算层只读取得分、回写名次。
type ParticipantRepository interface {
	// ListByContest 返回指定竞赛的全部参与者记录。
	// 竞赛不存在或无人参与时返回空切片而非错误。
	ListByContest(ctx context.Context, contestID uint) ([]domain.ContestParticipant, error)

	// SaveRanks 批量回写重算后的名次 (userID -> rank)。
	SaveRanks(ctx context.Context, contestID uint, ranks map[uint]int) error
}
