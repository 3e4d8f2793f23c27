package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"nullfake/logger"
	"nullfake/models"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Handler 处理一种任务；返回错误时按队列策略重试
type Handler func(ctx context.Context, job *models.Job) error

// Worker 从队列领取任务并分发给已注册的 Handler
type Worker struct {
	queue        *Queue
	log          *logger.Logger
	concurrency  int
	pollInterval time.Duration

	mu       sync.RWMutex
	handlers map[string]Handler
	wg       sync.WaitGroup
}

func NewWorker(queue *Queue, concurrency int, pollInterval time.Duration, log *logger.Logger) *Worker {
	if concurrency <= 0 {
		concurrency = 1
	}
	if pollInterval <= 0 {
		pollInterval = time.Second
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Worker{
		queue:        queue,
		log:          log.With("component", "JobWorker"),
		concurrency:  concurrency,
		pollInterval: pollInterval,
		handlers:     make(map[string]Handler),
	}
}

// Register 注册任务处理函数
func (w *Worker) Register(jobType string, h Handler) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.handlers[jobType] = h
}

// Start 启动 concurrency 个轮询协程，ctx 取消后退出
func (w *Worker) Start(ctx context.Context) {
	for i := 0; i < w.concurrency; i++ {
		w.wg.Add(1)
		go func() {
			defer w.wg.Done()
			ticker := time.NewTicker(w.pollInterval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					// 连续处理直到队列为空
					for ctx.Err() == nil {
						ran, err := w.RunOnce(ctx)
						if err != nil {
							w.log.Warn("领取任务失败", "error", err)
						}
						if !ran {
							break
						}
					}
				}
			}
		}()
	}
}

// Wait 等待所有轮询协程退出
func (w *Worker) Wait() {
	w.wg.Wait()
}

// RunOnce 领取并执行一条任务；没有到期任务时返回 false
func (w *Worker) RunOnce(ctx context.Context) (bool, error) {
	job, err := w.queue.Claim(ctx)
	if err != nil {
		return false, err
	}
	if job == nil {
		return false, nil
	}

	w.mu.RLock()
	h, ok := w.handlers[job.Type]
	w.mu.RUnlock()
	if !ok {
		w.log.Warn("任务类型没有注册处理函数", "job_type", job.Type, "job_id", job.ID)
		return true, w.queue.Fail(ctx, job, Permanent(fmt.Errorf("no handler registered for job_type=%s", job.Type)))
	}

	runErr := w.run(ctx, h, job)
	if runErr != nil {
		if err := w.queue.Fail(ctx, job, runErr); err != nil {
			return true, err
		}
		w.log.Warn("任务执行失败",
			"job_id", job.ID, "job_type", job.Type, "attempt", job.Attempts, "status", job.Status, "error", runErr)
		return true, nil
	}
	return true, w.queue.Complete(ctx, job)
}

func (w *Worker) run(ctx context.Context, h Handler, job *models.Job) (err error) {
	ctx, span := otel.Tracer("nullfake/jobs").Start(ctx, "jobs."+job.Type, trace.WithSpanKind(trace.SpanKindConsumer))
	span.SetAttributes(
		attribute.Int64("job.id", int64(job.ID)),
		attribute.Int("job.attempt", job.Attempts),
	)
	defer func() {
		if r := recover(); r != nil {
			w.log.Error("任务处理 panic", "job_id", job.ID, "job_type", job.Type, "panic", r)
			err = fmt.Errorf("panic: %v", r)
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()
	return h(ctx, job)
}
