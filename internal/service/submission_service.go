package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/applysmartuk/statement_server/config"
	"github.com/applysmartuk/statement_server/internal/model/dto"
	"github.com/applysmartuk/statement_server/internal/pkg/tasks"
	"github.com/applysmartuk/statement_server/internal/repository"
)

var ErrConsentDenied = errors.New("consent was not provided")

const (
	taskGenerate       = "generate_statement"
	taskNotifyNoCredit = "insufficient_credits_notice"

	detailLedgerInconsistency = "ledger_inconsistency"

	// settleTimeout 生成之后各步骤的时间预算，不受生成截止时间影响
	settleTimeout = 60 * time.Second
)

// SubmissionService 表单受理：额度检查、后台生成、扣费、审计、投递
type SubmissionService struct {
	entitlement *EntitlementService
	ledger      *LedgerService
	usage       *UsageService
	accountRepo *repository.AccountRepository
	generator   Generator
	notifier    Notifier
	store       ArtifactStore
	runner      TaskRunner
	purchaseURL string
}

// NewSubmissionService store 可为 nil，此时不归档
func NewSubmissionService(
	entitlement *EntitlementService,
	ledger *LedgerService,
	usage *UsageService,
	accountRepo *repository.AccountRepository,
	generator Generator,
	notifier Notifier,
	store ArtifactStore,
	runner TaskRunner,
	cfg *config.Config,
) *SubmissionService {
	return &SubmissionService{
		entitlement: entitlement,
		ledger:      ledger,
		usage:       usage,
		accountRepo: accountRepo,
		generator:   generator,
		notifier:    notifier,
		store:       store,
		runner:      runner,
		purchaseURL: cfg.PurchaseURL(),
	}
}

// Admit 受理一次表单提交
// 额度检查在任何耗时工作之前同步完成，生成任务在后台执行
func (s *SubmissionService) Admit(ctx context.Context, sub *dto.ParsedSubmission) (*dto.SubmissionResult, error) {
	if !sub.Consent {
		log.Printf("Submission rejected, no consent: %s", sub.Email)
		return nil, ErrConsentDenied
	}

	ok, remaining, err := s.entitlement.CheckCapacity(ctx, sub.Email)
	if err != nil {
		return nil, fmt.Errorf("check capacity: %w", err)
	}

	if !ok {
		log.Printf("Submission from %s has insufficient credits (%d), sending purchase link", sub.Email, remaining)
		taskID := s.runner.Submit(taskNotifyNoCredit, func(ctx context.Context) tasks.Outcome {
			return s.NotifyInsufficientCredits(ctx, sub)
		})
		return &dto.SubmissionResult{
			Status:  dto.SubmissionInsufficientCredits,
			Message: "You need to purchase credits first. Check your email for a link.",
			TaskID:  taskID,
		}, nil
	}

	if remaining == UnlimitedCredits {
		log.Printf("Submission from %s accepted (unlimited)", sub.Email)
	} else {
		log.Printf("Submission from %s accepted (%d credits)", sub.Email, remaining)
	}

	taskID := s.runner.Submit(taskGenerate, func(ctx context.Context) tasks.Outcome {
		return s.Process(ctx, sub)
	})
	return &dto.SubmissionResult{
		Status:  dto.SubmissionAccepted,
		Message: "Submission received. Processing in background.",
		TaskID:  taskID,
	}, nil
}

// NotifyInsufficientCredits 发送购买链接
func (s *SubmissionService) NotifyInsufficientCredits(ctx context.Context, sub *dto.ParsedSubmission) tasks.Outcome {
	if err := s.notifier.SendInsufficientCredits(ctx, sub.Email, sub.Name, s.purchaseURL); err != nil {
		log.Printf("Insufficient credits email to %s failed: %v", sub.Email, err)
		return tasks.Outcome{Status: tasks.StatusDeliveryFailed, Err: err.Error()}
	}
	return tasks.Outcome{Status: tasks.StatusNotified}
}

// Process 生成任务：生成成功后才扣费并记录审计，生成失败不扣费
// 扣费失败不阻止已生成结果的投递
// 生成之后的步骤脱离任务截止时间，单独计时
func (s *SubmissionService) Process(ctx context.Context, sub *dto.ParsedSubmission) tasks.Outcome {
	email := normalizeEmail(sub.Email)

	account, err := s.accountRepo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			err = ErrAccountNotFound
		}
		log.Printf("Submission for %s: account lookup failed: %v", email, err)
		return tasks.Outcome{Status: tasks.StatusFailed, Err: err.Error()}
	}

	log.Printf("Submission for %s: generating statement (%s at %s)", email, sub.Role, sub.Trust)
	statement, err := s.generator.Generate(ctx, sub.GenerationInput())
	if err != nil {
		log.Printf("Submission for %s: generation failed, not charged: %v", email, err)
		return tasks.Outcome{Status: tasks.StatusFailed, Err: err.Error()}
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), settleTimeout)
	defer cancel()

	var detail string
	submissionID := ""
	if err := s.ledger.Debit(ctx, email, 1); err != nil {
		log.Printf("Submission for %s: ledger inconsistency, debit failed after generation: %v", email, err)
		detail = detailLedgerInconsistency
	} else {
		record, err := s.usage.Record(ctx, account.ID, 1, dto.UsageContext{Role: sub.Role, Trust: sub.Trust})
		if err != nil {
			log.Printf("Submission for %s: failed to record usage: %v", email, err)
		} else {
			submissionID = record.SubmissionID
		}
	}

	if submissionID == "" {
		submissionID = uuid.NewString()
	}
	s.archive(ctx, account.ID, submissionID, statement)

	if err := s.notifier.SendStatement(ctx, sub.Email, sub.Name, sub.Role, sub.Trust, statement); err != nil {
		log.Printf("Submission for %s: statement email failed, result lost: %v", email, err)
		return tasks.Outcome{Status: tasks.StatusDeliveryFailed, Detail: detail, Err: err.Error()}
	}

	log.Printf("Submission for %s: statement delivered", email)
	return tasks.Outcome{Status: tasks.StatusCompleted, Detail: detail}
}

// archive 归档生成结果，失败只记录日志
func (s *SubmissionService) archive(ctx context.Context, accountID, submissionID, statement string) {
	if s.store == nil {
		return
	}

	key := fmt.Sprintf("statements/%s/%s.md", accountID, submissionID)
	url, err := s.store.Put(ctx, key, []byte(statement), "text/markdown; charset=utf-8")
	if err != nil {
		log.Printf("Submission %s: archive failed: %v", submissionID, err)
		return
	}
	log.Printf("Submission %s: archived to %s", submissionID, url)
}
