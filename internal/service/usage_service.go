package service

import (
	"context"

	"github.com/google/uuid"

	"github.com/applysmartuk/statement_server/internal/model"
	"github.com/applysmartuk/statement_server/internal/model/dto"
	"github.com/applysmartuk/statement_server/internal/repository"
)

// UsageService 积分消耗审计，只追加
type UsageService struct {
	usageRepo *repository.UsageRepository
}

func NewUsageService(usageRepo *repository.UsageRepository) *UsageService {
	return &UsageService{usageRepo: usageRepo}
}

// Record 记录一次消耗，每次调用生成新的 submission_id
func (s *UsageService) Record(ctx context.Context, accountID string, creditsUsed int, uc dto.UsageContext) (*model.UsageRecord, error) {
	record := &model.UsageRecord{
		AccountID:    accountID,
		CreditsUsed:  creditsUsed,
		Role:         uc.Role,
		Trust:        uc.Trust,
		SubmissionID: uuid.NewString(),
	}
	if err := s.usageRepo.Create(ctx, record); err != nil {
		return nil, err
	}
	return record, nil
}

// List 分页查询账户的消耗记录
func (s *UsageService) List(ctx context.Context, accountID string, page, pageSize int) ([]dto.UsageInfo, int64, error) {
	records, total, err := s.usageRepo.ListByAccount(ctx, accountID, page, pageSize)
	if err != nil {
		return nil, 0, err
	}

	items := make([]dto.UsageInfo, 0, len(records))
	for _, r := range records {
		items = append(items, dto.UsageInfo{
			ID:           r.ID,
			CreditsUsed:  r.CreditsUsed,
			Role:         r.Role,
			Trust:        r.Trust,
			SubmissionID: r.SubmissionID,
			UsedAt:       r.UsedAt,
		})
	}
	return items, total, nil
}
