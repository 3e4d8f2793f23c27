package service

import (
	"context"
	"errors"
	"fmt"

	"nullfake/jobs"
	"nullfake/models"
	"nullfake/service/llm"
	"nullfake/service/scraper"
)

// brightDataPayload trigger -> poll -> process 三个任务共用
type brightDataPayload struct {
	AsinDataID uint   `json:"asin_data_id"`
	SessionID  string `json:"session_id,omitempty"`
	SnapshotID string `json:"snapshot_id,omitempty"`
	Attempt    int    `json:"attempt,omitempty"`
}

func (s *AnalysisService) handleBrightDataTrigger(ctx context.Context, job *models.Job) error {
	var p brightDataPayload
	if err := jobs.DecodePayload(job, &p); err != nil {
		return err
	}
	rec, err := s.records.Get(ctx, p.AsinDataID)
	if err != nil {
		return s.chainFailed(ctx, job, p, err)
	}

	productURL := rec.ProductURL
	if productURL == "" {
		productURL = scraper.NewProductRef(rec.ASIN, rec.Country).URL
	}
	snapshotID, err := s.brightData.Trigger(ctx, productURL)
	if err != nil {
		return s.chainFailed(ctx, job, p, err)
	}

	s.log.Info("BrightData 任务已提交", "asin", rec.ASIN, "snapshot_id", snapshotID)
	p.SnapshotID = snapshotID
	p.Attempt = 1
	_, err = s.queue.Enqueue(ctx, JobBrightDataPoll, p, s.pollInterval)
	return err
}

func (s *AnalysisService) handleBrightDataPoll(ctx context.Context, job *models.Job) error {
	var p brightDataPayload
	if err := jobs.DecodePayload(job, &p); err != nil {
		return err
	}

	status, err := s.brightData.Progress(ctx, p.SnapshotID)
	if err != nil {
		return s.chainFailed(ctx, job, p, err)
	}

	switch status {
	case scraper.ProgressReady:
		_, err := s.queue.Enqueue(ctx, JobBrightDataProcess, p, 0)
		return err
	case scraper.ProgressFailed:
		return s.chainFailed(ctx, job, p, &scraper.ScrapingJobFailedError{SnapshotID: p.SnapshotID, Reason: "remote job failed"})
	}

	if p.Attempt >= s.maxPollAttempts {
		return s.chainFailed(ctx, job, p, &scraper.ScrapingJobFailedError{
			SnapshotID: p.SnapshotID,
			Reason:     fmt.Sprintf("not ready after %d polls", p.Attempt),
		})
	}

	// 固定间隔重新排队，不做指数退避
	p.Attempt++
	_ = s.sessions.Progress(ctx, p.SessionID, StepFetch, 30, fmt.Sprintf("等待抓取结果（第 %d 次）", p.Attempt))
	_, err = s.queue.Enqueue(ctx, JobBrightDataPoll, p, s.pollInterval)
	return err
}

func (s *AnalysisService) handleBrightDataProcess(ctx context.Context, job *models.Job) error {
	var p brightDataPayload
	if err := jobs.DecodePayload(job, &p); err != nil {
		return err
	}

	reviews, info, err := s.brightData.Snapshot(ctx, p.SnapshotID)
	if err != nil {
		return s.chainFailed(ctx, job, p, err)
	}
	if len(reviews) == 0 {
		return s.chainFailed(ctx, job, p, ErrNoReviewsAvailable)
	}

	saved, err := s.records.SaveReviews(ctx, p.AsinDataID, reviews, info)
	if err != nil {
		return err
	}
	if !saved {
		// 其他任务已完成分析，丢弃这次抓取结果
		s.log.Info("记录已完成，忽略迟到的抓取结果", "asin_data_id", p.AsinDataID, "snapshot_id", p.SnapshotID)
		rec, err := s.records.Get(ctx, p.AsinDataID)
		if err != nil {
			return err
		}
		if p.SessionID != "" {
			return s.sessions.Complete(ctx, p.SessionID, newSessionResult(rec, true))
		}
		return nil
	}

	if p.SessionID == "" {
		_, err := s.AnalyzeRecord(ctx, p.AsinDataID)
		return s.chainResult(ctx, job, p, err)
	}
	return s.chainResult(ctx, job, p, s.analyzeForSession(ctx, p.SessionID, p.AsinDataID))
}

// chainResult 分析阶段的错误：记录状态已由 AnalyzeRecord 写入，这里只处理会话
func (s *AnalysisService) chainResult(ctx context.Context, job *models.Job, p brightDataPayload, err error) error {
	if err == nil {
		return nil
	}
	if retryable(err) && job.Attempts < job.MaxAttempts {
		return err
	}
	if p.SessionID != "" {
		if ferr := s.sessions.Fail(ctx, p.SessionID, userMessage(err)); ferr != nil {
			return ferr
		}
	}
	return jobs.Permanent(err)
}

// chainFailed 可重试的错误在最后一次尝试前交给队列重试；否则记录与会话置为失败
func (s *AnalysisService) chainFailed(ctx context.Context, job *models.Job, p brightDataPayload, cause error) error {
	if retryable(cause) && job.Attempts < job.MaxAttempts {
		return cause
	}

	s.log.Warn("BrightData 任务链失败", "job_type", job.Type, "asin_data_id", p.AsinDataID, "snapshot_id", p.SnapshotID, "error", cause)
	if p.AsinDataID != 0 {
		if _, err := s.records.MarkFailed(ctx, p.AsinDataID, cause.Error()); err != nil {
			return err
		}
	}
	if p.SessionID != "" {
		if err := s.sessions.Fail(ctx, p.SessionID, userMessage(cause)); err != nil {
			return err
		}
	}
	return jobs.Permanent(cause)
}

func retryable(err error) bool {
	switch {
	case errors.Is(err, scraper.ErrScrapingJobFailed),
		errors.Is(err, ErrNoReviewsAvailable),
		errors.Is(err, ErrNotFound),
		errors.Is(err, ErrAnalysisInProgress):
		return false
	}
	// 所有大模型服务都失败时不在任务层重试，由定时任务统一重试
	var all *llm.AllProvidersFailedError
	return !errors.As(err, &all)
}
