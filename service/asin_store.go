package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"nullfake/models"
	"nullfake/service/llm"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// notProtected 排除已完成且结果齐全的记录；后台写入都带上这个条件，
// 检查和写入在同一条 UPDATE 里完成
const notProtected = "NOT (status = 'completed' AND grade IS NOT NULL AND fake_percentage IS NOT NULL)"

// maxErrorChars error_message 按字符截断，留出 "..." 的位置
const maxErrorChars = 990

// AsinStore asin_data 表读写
type AsinStore struct {
	db  *gorm.DB
	now func() time.Time
}

func NewAsinStore(db *gorm.DB) *AsinStore {
	return &AsinStore{db: db, now: time.Now}
}

// LLMResult 写入 llm_result 列的内容
type LLMResult struct {
	Provider string        `json:"provider"`
	Model    string        `json:"model"`
	Scores   llm.Scores    `json:"scores"`
	Attempts []llm.Attempt `json:"attempts"`
}

// FindOrCreate 按 (asin, country) 取记录，不存在则创建；并发创建依赖唯一索引去重
func (s *AsinStore) FindOrCreate(ctx context.Context, asin, country, productURL string) (*models.AsinData, error) {
	now := s.now()
	rec := &models.AsinData{
		ASIN:            asin,
		Country:         country,
		ProductURL:      productURL,
		Status:          models.StatusPending,
		Reviews:         datatypes.JSON("[]"),
		FirstAnalyzedAt: &now,
	}
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "asin"}, {Name: "country"}}, DoNothing: true}).
		Create(rec).Error
	if err != nil {
		return nil, fmt.Errorf("创建商品记录失败: %w", err)
	}
	return s.GetByKey(ctx, asin, country)
}

// Get 按 ID 取记录
func (s *AsinStore) Get(ctx context.Context, id uint) (*models.AsinData, error) {
	var rec models.AsinData
	if err := s.db.WithContext(ctx).First(&rec, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &rec, nil
}

// GetByKey 按 (asin, country) 取记录
func (s *AsinStore) GetByKey(ctx context.Context, asin, country string) (*models.AsinData, error) {
	var rec models.AsinData
	err := s.db.WithContext(ctx).Where("asin = ? AND country = ?", asin, country).First(&rec).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &rec, nil
}

// MarkProcessing 置为 processing；受保护的记录不变，返回 false
func (s *AsinStore) MarkProcessing(ctx context.Context, id uint) (bool, error) {
	res := s.db.WithContext(ctx).Model(&models.AsinData{}).
		Where("id = ?", id).Where(notProtected).
		Updates(map[string]any{"status": models.StatusProcessing, "error_message": ""})
	return res.RowsAffected == 1, res.Error
}

// SaveReviews 后台抓取结果写入；受保护的记录不覆盖评论，返回 false
func (s *AsinStore) SaveReviews(ctx context.Context, id uint, reviews []models.Review, info models.ProductInfo) (bool, error) {
	updates, err := reviewUpdates(reviews, info)
	if err != nil {
		return false, err
	}
	res := s.db.WithContext(ctx).Model(&models.AsinData{}).
		Where("id = ?", id).Where(notProtected).
		Updates(updates)
	return res.RowsAffected == 1, res.Error
}

func reviewUpdates(reviews []models.Review, info models.ProductInfo) (map[string]any, error) {
	raw, err := models.EncodeReviews(reviews)
	if err != nil {
		return nil, fmt.Errorf("序列化评论失败: %w", err)
	}
	updates := map[string]any{
		"reviews":       raw,
		"total_reviews": len(reviews),
	}
	if info.Title != "" {
		updates["product_title"] = info.Title
	}
	if info.ImageURL != "" {
		updates["product_image_url"] = info.ImageURL
	}
	if info.Rating > 0 {
		updates["page_rating"] = round(info.Rating, 2)
	}
	return updates, nil
}

// MarkCompleted 写入分析结果；重新分析可以覆盖已完成记录，first_analyzed_at 只在为空时补写
func (s *AsinStore) MarkCompleted(ctx context.Context, id uint, m Metrics, result *llm.Result) error {
	return s.complete(ctx, id, m, result, nil)
}

// CompleteWithReviews 用户提交的评论和分析结果在同一条 UPDATE 里写入，
// 分析失败时记录保持原来的评论和结果
func (s *AsinStore) CompleteWithReviews(ctx context.Context, id uint, reviews []models.Review, info models.ProductInfo, m Metrics, result *llm.Result) error {
	updates, err := reviewUpdates(reviews, info)
	if err != nil {
		return err
	}
	return s.complete(ctx, id, m, result, updates)
}

func (s *AsinStore) complete(ctx context.Context, id uint, m Metrics, result *llm.Result, extra map[string]any) error {
	var payload LLMResult
	if result != nil {
		payload = LLMResult{Provider: result.Provider, Model: result.Model, Scores: result.Scores, Attempts: result.Attempts}
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("序列化分析结果失败: %w", err)
	}

	now := s.now()
	updates := map[string]any{
		"status":            models.StatusCompleted,
		"llm_result":        datatypes.JSON(raw),
		"fake_percentage":   m.FakePercentage,
		"grade":             m.Grade,
		"amazon_rating":     m.AmazonRating,
		"adjusted_rating":   m.AdjustedRating,
		"total_reviews":     m.TotalReviews,
		"fake_review_count": m.FakeReviewCount,
		"error_message":     "",
		"analysis_attempts": gorm.Expr("analysis_attempts + 1"),
		"last_analyzed_at":  now,
		"first_analyzed_at": gorm.Expr("COALESCE(first_analyzed_at, ?)", now),
	}
	for k, v := range extra {
		updates[k] = v
	}
	return s.db.WithContext(ctx).Model(&models.AsinData{}).Where("id = ?", id).Updates(updates).Error
}

// MarkFailed 置为 failed；受保护的记录保留原结果，返回 false
func (s *AsinStore) MarkFailed(ctx context.Context, id uint, message string) (bool, error) {
	message = llm.Truncate(message, maxErrorChars)
	res := s.db.WithContext(ctx).Model(&models.AsinData{}).
		Where("id = ?", id).Where(notProtected).
		Updates(map[string]any{
			"status":            models.StatusFailed,
			"error_message":     message,
			"analysis_attempts": gorm.Expr("analysis_attempts + 1"),
		})
	return res.RowsAffected == 1, res.Error
}

// ListCompleted 已完成记录分页，按首次分析时间倒序，保证刷新数据后排序不变
func (s *AsinStore) ListCompleted(ctx context.Context, country string, page, pageSize int) ([]models.AsinData, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	base := func() *gorm.DB {
		q := s.db.WithContext(ctx).Model(&models.AsinData{}).Where("status = ?", models.StatusCompleted)
		if country != "" {
			q = q.Where("country = ?", country)
		}
		return q
	}

	var total int64
	if err := base().Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var list []models.AsinData
	err := base().Omit("reviews").
		Order("first_analyzed_at DESC").Order("id DESC").
		Offset((page - 1) * pageSize).Limit(pageSize).
		Find(&list).Error
	return list, total, err
}

// FailedForRetry 有评论且重试次数未用完的失败记录
func (s *AsinStore) FailedForRetry(ctx context.Context, maxAttempts, limit int) ([]models.AsinData, error) {
	var list []models.AsinData
	err := s.db.WithContext(ctx).Omit("reviews").
		Where("status = ? AND total_reviews > 0 AND analysis_attempts < ?", models.StatusFailed, maxAttempts).
		Order("updated_at ASC").Limit(limit).
		Find(&list).Error
	return list, err
}

// FailStale 长时间停在 processing 的记录置为 failed
func (s *AsinStore) FailStale(ctx context.Context, before time.Time) (int64, error) {
	res := s.db.WithContext(ctx).Model(&models.AsinData{}).
		Where("status = ? AND updated_at < ?", models.StatusProcessing, before).
		Where(notProtected).
		Updates(map[string]any{"status": models.StatusFailed, "error_message": "analysis timed out"})
	return res.RowsAffected, res.Error
}

// ReanalyzeFilter 批量重新分析的筛选条件
type ReanalyzeFilter struct {
	Status  string `json:"status"`
	Grade   string `json:"grade"`
	Country string `json:"country"`
	Limit   int    `json:"limit"`
}

// IDsForReanalysis 按条件取有评论的记录 ID
func (s *AsinStore) IDsForReanalysis(ctx context.Context, f ReanalyzeFilter) ([]uint, error) {
	q := s.db.WithContext(ctx).Model(&models.AsinData{}).Where("total_reviews > 0")
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.Grade != "" {
		q = q.Where("grade = ?", f.Grade)
	}
	if f.Country != "" {
		q = q.Where("country = ?", f.Country)
	}
	limit := f.Limit
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	var ids []uint
	err := q.Order("id ASC").Limit(limit).Pluck("id", &ids).Error
	return ids, err
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
