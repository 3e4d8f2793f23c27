package models

import (
	"time"

	"gorm.io/datatypes"
)

// AnalysisSession 异步分析会话，供前端轮询进度
type AnalysisSession struct {
	ID                 string         `json:"id" gorm:"primaryKey;size:36"`
	ASIN               string         `json:"asin" gorm:"column:asin;size:10;not null;index"`
	Country            string         `json:"country" gorm:"size:2;not null"`
	ProductURL         string         `json:"product_url" gorm:"size:500"`
	AsinDataID         *uint          `json:"asin_data_id"`
	Status             string         `json:"status" gorm:"size:20;not null;default:pending;index"`
	CurrentStep        int            `json:"current_step" gorm:"default:0"`
	TotalSteps         int            `json:"total_steps" gorm:"default:4"`
	ProgressPercentage float64        `json:"progress_percentage" gorm:"default:0"`
	CurrentMessage     string         `json:"current_message" gorm:"size:255"`
	ErrorMessage       string         `json:"error_message,omitempty" gorm:"size:1000"`
	Result             datatypes.JSON `json:"result,omitempty"`
	StartedAt          *time.Time     `json:"started_at"`
	CompletedAt        *time.Time     `json:"completed_at"`
	CreatedAt          time.Time      `json:"created_at"`
	UpdatedAt          time.Time      `json:"updated_at"`
}

// TableName 设置表名
func (AnalysisSession) TableName() string {
	return "analysis_sessions"
}

// IsFinished 会话已结束（完成或失败）
func (s *AnalysisSession) IsFinished() bool {
	return s.Status == StatusCompleted || s.Status == StatusFailed
}
