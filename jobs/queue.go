package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"nullfake/models"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Queue 以 jobs 表作为任务队列
type Queue struct {
	db          *gorm.DB
	maxAttempts int
	retryDelay  time.Duration
	now         func() time.Time
}

func NewQueue(db *gorm.DB, maxAttempts int, retryDelay time.Duration) *Queue {
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	if retryDelay <= 0 {
		retryDelay = 30 * time.Second
	}
	return &Queue{db: db, maxAttempts: maxAttempts, retryDelay: retryDelay, now: time.Now}
}

// Enqueue 写入一条任务，delay 之后可被领取
func (q *Queue) Enqueue(ctx context.Context, jobType string, payload any, delay time.Duration) (*models.Job, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("序列化任务参数失败: %w", err)
	}
	job := &models.Job{
		Type:        jobType,
		Payload:     datatypes.JSON(raw),
		Status:      models.JobQueued,
		MaxAttempts: q.maxAttempts,
		RunAt:       q.now().Add(delay),
	}
	if err := q.db.WithContext(ctx).Create(job).Error; err != nil {
		return nil, fmt.Errorf("写入任务失败: %w", err)
	}
	return job, nil
}

// Claim 领取一条到期任务并置为 running，没有任务时返回 nil, nil
//
// 先查后改：UPDATE 带 status='queued' 条件，影响行数为 1 才算领取成功，
// 被其他 worker 抢走时重新查询。
func (q *Queue) Claim(ctx context.Context) (*models.Job, error) {
	db := q.db.WithContext(ctx)
	for i := 0; i < 3; i++ {
		now := q.now()
		var job models.Job
		err := db.Where("status = ? AND run_at <= ?", models.JobQueued, now).
			Order("run_at ASC, id ASC").
			Take(&job).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("查询任务失败: %w", err)
		}

		res := db.Model(&models.Job{}).
			Where("id = ? AND status = ?", job.ID, models.JobQueued).
			Updates(map[string]any{
				"status":    models.JobRunning,
				"attempts":  gorm.Expr("attempts + 1"),
				"locked_at": now,
			})
		if res.Error != nil {
			return nil, fmt.Errorf("领取任务失败: %w", res.Error)
		}
		if res.RowsAffected == 1 {
			job.Status = models.JobRunning
			job.Attempts++
			job.LockedAt = &now
			return &job, nil
		}
	}
	return nil, nil
}

// Complete 标记任务完成
func (q *Queue) Complete(ctx context.Context, job *models.Job) error {
	return q.db.WithContext(ctx).Model(&models.Job{}).
		Where("id = ?", job.ID).
		Updates(map[string]any{"status": models.JobDone, "last_error": "", "locked_at": nil}).Error
}

// Fail 记录失败：未到最大次数时按固定间隔重新排队，否则置为 failed
func (q *Queue) Fail(ctx context.Context, job *models.Job, cause error) error {
	msg := ""
	if cause != nil {
		msg = truncateError(cause.Error(), 1000)
	}

	updates := map[string]any{"last_error": msg, "locked_at": nil}
	if IsPermanent(cause) || job.Attempts >= job.MaxAttempts {
		updates["status"] = models.JobFailed
		job.Status = models.JobFailed
	} else {
		updates["status"] = models.JobQueued
		updates["run_at"] = q.now().Add(q.retryDelay)
		job.Status = models.JobQueued
	}
	job.LastError = msg
	return q.db.WithContext(ctx).Model(&models.Job{}).Where("id = ?", job.ID).Updates(updates).Error
}

// RequeueStale 把 locked_at 早于 before 的 running 任务放回队列（进程崩溃后遗留）
func (q *Queue) RequeueStale(ctx context.Context, before time.Time) (int64, error) {
	res := q.db.WithContext(ctx).Model(&models.Job{}).
		Where("status = ? AND locked_at < ?", models.JobRunning, before).
		Updates(map[string]any{"status": models.JobQueued, "run_at": q.now(), "locked_at": nil})
	return res.RowsAffected, res.Error
}

// Purge 删除 updated_at 早于 before 的已结束任务
func (q *Queue) Purge(ctx context.Context, before time.Time) (int64, error) {
	res := q.db.WithContext(ctx).
		Where("status IN ? AND updated_at < ?", []string{models.JobDone, models.JobFailed}, before).
		Delete(&models.Job{})
	return res.RowsAffected, res.Error
}

// truncateError 按字节上限截断，去掉被截断的半个字符
func truncateError(msg string, max int) string {
	if len(msg) <= max {
		return msg
	}
	return strings.ToValidUTF8(msg[:max], "")
}

// DecodePayload 解析任务参数
func DecodePayload(job *models.Job, out any) error {
	if err := json.Unmarshal(job.Payload, out); err != nil {
		return Permanent(fmt.Errorf("解析任务参数失败: %w", err))
	}
	return nil
}

type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent 标记为不可重试的错误
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent 是否为不可重试的错误
func IsPermanent(err error) bool {
	var pe *permanentError
	return errors.As(err, &pe)
}
