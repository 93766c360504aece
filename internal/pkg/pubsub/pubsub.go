package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/applysmartuk/statement_server/internal/pkg/tasks"
)

const (
	ChannelSubmissionOutcomes = "submission_outcomes"

	messageTypeOutcome = "submission_outcome"
)

// OutcomeMessage 后台任务结果消息
type OutcomeMessage struct {
	Type       string    `json:"type"`
	TaskID     string    `json:"task_id"`
	Name       string    `json:"name"`
	Status     string    `json:"status"`
	Message    string    `json:"message,omitempty"`
	Detail     string    `json:"detail,omitempty"`
	Error      string    `json:"error,omitempty"`
	FinishedAt time.Time `json:"finished_at"`
}

// 状态对应的消息
var StatusMessages = map[string]string{
	tasks.StatusCompleted:      "Statement generated and delivered",
	tasks.StatusFailed:         "Statement generation failed",
	tasks.StatusDeliveryFailed: "Statement generated but email delivery failed",
	tasks.StatusNotified:       "Insufficient credits notice sent",
}

// FromOutcome 将任务结果转换为消息
func FromOutcome(o tasks.Outcome) *OutcomeMessage {
	return &OutcomeMessage{
		TaskID:     o.TaskID,
		Name:       o.Name,
		Status:     o.Status,
		Detail:     o.Detail,
		Error:      o.Err,
		FinishedAt: o.FinishedAt,
	}
}

// Publisher Redis 发布者
type Publisher struct {
	client *redis.Client
}

// NewPublisher 创建发布者
func NewPublisher(client *redis.Client) *Publisher {
	return &Publisher{client: client}
}

// PublishOutcome 发布任务结果
func (p *Publisher) PublishOutcome(ctx context.Context, msg *OutcomeMessage) error {
	msg.Type = messageTypeOutcome

	// 自动填充消息
	if msg.Message == "" {
		if message, ok := StatusMessages[msg.Status]; ok {
			msg.Message = message
		}
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal outcome message: %w", err)
	}

	return p.client.Publish(ctx, ChannelSubmissionOutcomes, data).Err()
}

// Subscriber Redis 订阅者
type Subscriber struct {
	client *redis.Client
}

// NewSubscriber 创建订阅者
func NewSubscriber(client *redis.Client) *Subscriber {
	return &Subscriber{client: client}
}

// Subscribe 订阅任务结果，ready 在订阅确认后关闭（可为 nil）
func (s *Subscriber) Subscribe(ctx context.Context, ready chan<- struct{}, handler func(*OutcomeMessage)) error {
	pubsub := s.client.Subscribe(ctx, ChannelSubmissionOutcomes)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}
	if ready != nil {
		close(ready)
	}

	ch := pubsub.Channel()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}

			var outcomeMsg OutcomeMessage
			if err := json.Unmarshal([]byte(msg.Payload), &outcomeMsg); err != nil {
				continue // 忽略解析错误
			}

			handler(&outcomeMsg)
		}
	}
}
