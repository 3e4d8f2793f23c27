package models

import (
	"time"

	"gorm.io/datatypes"
)

// 分析状态
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// AsinData 商品分析记录，(asin, country) 唯一，同时充当分析结果缓存
//
// FirstAnalyzedAt 只在创建时写入，列表排序依赖它保持稳定；
// LastAnalyzedAt 每次分析完成都会更新。
type AsinData struct {
	ID               uint           `json:"id" gorm:"primaryKey"`
	ASIN             string         `json:"asin" gorm:"column:asin;size:10;not null;uniqueIndex:idx_asin_country"`
	Country          string         `json:"country" gorm:"size:2;not null;default:us;uniqueIndex:idx_asin_country"`
	ProductURL       string         `json:"product_url" gorm:"size:500"`
	ProductTitle     string         `json:"product_title" gorm:"size:500"`
	ProductImageURL  string         `json:"product_image_url" gorm:"size:500"`
	Reviews          datatypes.JSON `json:"-"`
	LLMResult        datatypes.JSON `json:"llm_result,omitempty" gorm:"column:llm_result"`
	FakePercentage   *float64       `json:"fake_percentage"`
	Grade            *string        `json:"grade" gorm:"size:1"`
	AmazonRating     *float64       `json:"amazon_rating"`
	AdjustedRating   *float64       `json:"adjusted_rating"`
	PageRating       *float64       `json:"page_rating,omitempty"` // 商品页展示的评分，有值时作为 amazon_rating
	TotalReviews     int            `json:"total_reviews" gorm:"default:0"`
	FakeReviewCount  int            `json:"fake_review_count" gorm:"default:0"`
	Status           string         `json:"status" gorm:"size:20;not null;default:pending;index"`
	ErrorMessage     string         `json:"error_message,omitempty" gorm:"size:1000"`
	AnalysisAttempts int            `json:"analysis_attempts" gorm:"default:0"`
	FirstAnalyzedAt  *time.Time     `json:"first_analyzed_at" gorm:"index"`
	LastAnalyzedAt   *time.Time     `json:"last_analyzed_at"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
}

// TableName 设置表名
func (AsinData) TableName() string {
	return "asin_data"
}

// IsProtected 已完成且结果齐全的记录不允许被后台任务回退
func (a *AsinData) IsProtected() bool {
	return a.Status == StatusCompleted && a.Grade != nil && a.FakePercentage != nil
}

// ReviewList 解析评论列
func (a *AsinData) ReviewList() ([]Review, error) {
	return DecodeReviews(a.Reviews)
}
