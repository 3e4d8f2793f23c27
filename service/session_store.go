package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"nullfake/models"
	"nullfake/service/llm"
	"nullfake/service/scraper"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// 分析步骤
const (
	StepCache = iota + 1
	StepFetch
	StepAnalyze
	StepFinalize
	totalSteps = StepFinalize
)

// 已结束的会话不再更新
const sessionOpen = "status NOT IN ('completed', 'failed')"

// SessionStore analysis_sessions 表读写
type SessionStore struct {
	db  *gorm.DB
	now func() time.Time
}

func NewSessionStore(db *gorm.DB) *SessionStore {
	return &SessionStore{db: db, now: time.Now}
}

// Create 新建会话
func (s *SessionStore) Create(ctx context.Context, ref *scraper.ProductRef) (*models.AnalysisSession, error) {
	now := s.now()
	sess := &models.AnalysisSession{
		ID:             uuid.NewString(),
		ASIN:           ref.ASIN,
		Country:        ref.Country,
		ProductURL:     ref.URL,
		Status:         models.StatusPending,
		TotalSteps:     totalSteps,
		CurrentMessage: "排队中",
		StartedAt:      &now,
	}
	if err := s.db.WithContext(ctx).Create(sess).Error; err != nil {
		return nil, fmt.Errorf("创建分析会话失败: %w", err)
	}
	return sess, nil
}

// Get 按 ID 取会话
func (s *SessionStore) Get(ctx context.Context, id string) (*models.AnalysisSession, error) {
	var sess models.AnalysisSession
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&sess).Error; err != nil {
		return nil, notFound(err)
	}
	return &sess, nil
}

// AttachRecord 关联商品记录
func (s *SessionStore) AttachRecord(ctx context.Context, id string, asinDataID uint) error {
	return s.db.WithContext(ctx).Model(&models.AnalysisSession{}).
		Where("id = ?", id).Where(sessionOpen).
		Update("asin_data_id", asinDataID).Error
}

// Progress 更新步骤和进度
func (s *SessionStore) Progress(ctx context.Context, id string, step int, percent float64, message string) error {
	return s.db.WithContext(ctx).Model(&models.AnalysisSession{}).
		Where("id = ?", id).Where(sessionOpen).
		Updates(map[string]any{
			"status":              models.StatusProcessing,
			"current_step":        step,
			"progress_percentage": percent,
			"current_message":     message,
		}).Error
}

// Complete 会话完成并写入结果
func (s *SessionStore) Complete(ctx context.Context, id string, result any) error {
	raw, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("序列化会话结果失败: %w", err)
	}
	now := s.now()
	return s.db.WithContext(ctx).Model(&models.AnalysisSession{}).
		Where("id = ?", id).Where(sessionOpen).
		Updates(map[string]any{
			"status":              models.StatusCompleted,
			"current_step":        totalSteps,
			"progress_percentage": 100,
			"current_message":     "分析完成",
			"result":              datatypes.JSON(raw),
			"completed_at":        now,
		}).Error
}

// Fail 会话失败
func (s *SessionStore) Fail(ctx context.Context, id string, message string) error {
	message = llm.Truncate(message, maxErrorChars)
	now := s.now()
	return s.db.WithContext(ctx).Model(&models.AnalysisSession{}).
		Where("id = ?", id).Where(sessionOpen).
		Updates(map[string]any{
			"status":          models.StatusFailed,
			"current_message": "分析失败",
			"error_message":   message,
			"completed_at":    now,
		}).Error
}

// PurgeFinished 删除 before 之前结束的会话
func (s *SessionStore) PurgeFinished(ctx context.Context, before time.Time) (int64, error) {
	res := s.db.WithContext(ctx).
		Where("status IN ? AND completed_at < ?", []string{models.StatusCompleted, models.StatusFailed}, before).
		Delete(&models.AnalysisSession{})
	return res.RowsAffected, res.Error
}
