package tasks

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
)

// 任务结果状态
const (
	StatusCompleted      = "completed"
	StatusFailed         = "failed"
	StatusDeliveryFailed = "delivery_failed"
	StatusNotified       = "notified"
)

// Outcome 任务执行结果
type Outcome struct {
	TaskID     string    `json:"task_id"`
	Name       string    `json:"name"`
	Status     string    `json:"status"`
	Detail     string    `json:"detail,omitempty"`
	Err        string    `json:"error,omitempty"`
	FinishedAt time.Time `json:"finished_at"`
}

// Func 后台任务函数
type Func func(ctx context.Context) Outcome

// Runner 后台任务执行器，每个任务一个 goroutine，不重试
type Runner struct {
	timeout  time.Duration
	outcomes chan Outcome
	wg       sync.WaitGroup
}

// NewRunner 创建执行器，timeout 为单个任务的最长执行时间
func NewRunner(timeout time.Duration, outcomeBuffer int) *Runner {
	if outcomeBuffer < 0 {
		outcomeBuffer = 0
	}
	return &Runner{
		timeout:  timeout,
		outcomes: make(chan Outcome, outcomeBuffer),
	}
}

// Submit 提交任务并立即返回任务 ID
// 任务与请求上下文分离，请求结束后仍会继续执行
func (r *Runner) Submit(name string, fn Func) string {
	taskID := uuid.NewString()

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.publish(r.run(taskID, name, fn))
	}()

	return taskID
}

func (r *Runner) run(taskID, name string, fn Func) (outcome Outcome) {
	ctx := context.Background()
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	defer func() {
		if p := recover(); p != nil {
			log.Printf("Task %s (%s) panicked: %v", taskID, name, p)
			outcome = Outcome{Status: StatusFailed, Err: fmt.Sprintf("panic: %v", p)}
		}
		outcome.TaskID = taskID
		outcome.Name = name
		if outcome.Status == "" {
			outcome.Status = StatusCompleted
		}
		outcome.FinishedAt = time.Now()
	}()

	return fn(ctx)
}

// publish 非阻塞写入结果通道，缓冲区满时丢弃并记录日志
func (r *Runner) publish(outcome Outcome) {
	select {
	case r.outcomes <- outcome:
	default:
		log.Printf("Task %s (%s) outcome dropped, channel full: status=%s", outcome.TaskID, outcome.Name, outcome.Status)
	}
}

// Outcomes 任务结果通道
func (r *Runner) Outcomes() <-chan Outcome {
	return r.outcomes
}

// Wait 等待所有已提交任务结束
func (r *Runner) Wait() {
	r.wg.Wait()
}
