package models

import (
	"time"

	"gorm.io/datatypes"
)

// 任务状态
const (
	JobQueued  = "queued"
	JobRunning = "running"
	JobDone    = "done"
	JobFailed  = "failed"
)

// Job 后台任务，数据库即队列
type Job struct {
	ID          uint           `json:"id" gorm:"primaryKey"`
	Type        string         `json:"type" gorm:"size:64;not null;index"`
	Payload     datatypes.JSON `json:"payload"`
	Status      string         `json:"status" gorm:"size:20;not null;default:queued;index:idx_jobs_status_run_at"`
	Attempts    int            `json:"attempts" gorm:"default:0"`
	MaxAttempts int            `json:"max_attempts" gorm:"default:3"`
	RunAt       time.Time      `json:"run_at" gorm:"not null;index:idx_jobs_status_run_at"`
	LastError   string         `json:"last_error,omitempty" gorm:"size:1000"`
	LockedAt    *time.Time     `json:"locked_at"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// TableName 设置表名
func (Job) TableName() string {
	return "jobs"
}
