package service

import (
	"context"
	"fmt"
	"time"

	"nullfake/config"
	"nullfake/jobs"
	"nullfake/logger"

	"github.com/robfig/cron"
)

// Scheduler 定时重试失败分析、清理卡住的记录和过期数据
type Scheduler struct {
	cron     *cron.Cron
	cfg      config.SchedulerConfig
	records  *AsinStore
	sessions *SessionStore
	queue    *jobs.Queue
	log      *logger.Logger
	now      func() time.Time
}

func NewScheduler(cfg config.SchedulerConfig, records *AsinStore, sessions *SessionStore, queue *jobs.Queue, log *logger.Logger) *Scheduler {
	if log == nil {
		log = logger.Nop()
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryBatchSize <= 0 {
		cfg.RetryBatchSize = 50
	}
	if cfg.StaleAfterMinutes <= 0 {
		cfg.StaleAfterMinutes = 60
	}
	if cfg.KeepDays <= 0 {
		cfg.KeepDays = 7
	}
	return &Scheduler{
		cron:     cron.New(),
		cfg:      cfg,
		records:  records,
		sessions: sessions,
		queue:    queue,
		log:      log.With("component", "Scheduler"),
		now:      time.Now,
	}
}

// Start 注册定时任务并启动（六段表达式，含秒）
func (s *Scheduler) Start() error {
	if err := s.cron.AddFunc(s.cfg.RetrySpec, func() { s.runRetry(context.Background()) }); err != nil {
		return fmt.Errorf("注册重试任务失败: %w", err)
	}
	if err := s.cron.AddFunc(s.cfg.CleanupSpec, func() { s.runCleanup(context.Background()) }); err != nil {
		return fmt.Errorf("注册清理任务失败: %w", err)
	}
	s.cron.Start()
	s.log.Info("定时任务已启动", "retry_spec", s.cfg.RetrySpec, "cleanup_spec", s.cfg.CleanupSpec)
	return nil
}

func (s *Scheduler) Stop() {
	s.cron.Stop()
}

func (s *Scheduler) runRetry(ctx context.Context) {
	if n, err := s.FailStale(ctx); err != nil {
		s.log.Error("处理超时分析失败", "error", err)
	} else if n > 0 {
		s.log.Warn("超时分析已置为失败", "count", n)
	}
	if n, err := s.RetryFailed(ctx); err != nil {
		s.log.Error("重试失败分析出错", "error", err)
	} else if n > 0 {
		s.log.Info("已排队重试失败分析", "count", n)
	}
}

func (s *Scheduler) runCleanup(ctx context.Context) {
	if err := s.Cleanup(ctx); err != nil {
		s.log.Error("清理过期数据失败", "error", err)
	}
}

// FailStale 超过 stale_after 仍在 processing 的记录置为失败，已完成的记录不受影响
func (s *Scheduler) FailStale(ctx context.Context) (int64, error) {
	before := s.now().Add(-time.Duration(s.cfg.StaleAfterMinutes) * time.Minute)
	return s.records.FailStale(ctx, before)
}

// RetryFailed 有评论且重试次数未用完的失败记录重新排队
func (s *Scheduler) RetryFailed(ctx context.Context) (int, error) {
	list, err := s.records.FailedForRetry(ctx, s.cfg.MaxRetries, s.cfg.RetryBatchSize)
	if err != nil {
		return 0, err
	}
	for i, rec := range list {
		if _, err := s.queue.Enqueue(ctx, JobReanalyze, recordPayload{AsinDataID: rec.ID}, 0); err != nil {
			return i, err
		}
	}
	return len(list), nil
}

// Cleanup 放回卡住的任务，删除过期的任务和会话
func (s *Scheduler) Cleanup(ctx context.Context) error {
	now := s.now()
	stale := now.Add(-time.Duration(s.cfg.StaleAfterMinutes) * time.Minute)
	if n, err := s.queue.RequeueStale(ctx, stale); err != nil {
		return err
	} else if n > 0 {
		s.log.Warn("卡住的任务已重新排队", "count", n)
	}

	keep := now.AddDate(0, 0, -s.cfg.KeepDays)
	jobsPurged, err := s.queue.Purge(ctx, keep)
	if err != nil {
		return err
	}
	sessionsPurged, err := s.sessions.PurgeFinished(ctx, keep)
	if err != nil {
		return err
	}
	s.log.Info("过期数据已清理", "jobs", jobsPurged, "sessions", sessionsPurged)
	return nil
}
