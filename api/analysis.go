package api

import (
	"encoding/json"
	"time"

	"nullfake/models"
	"nullfake/service"

	"github.com/gin-gonic/gin"
)

// AnalysisHandler 分析会话处理器
type AnalysisHandler struct {
	svc      *service.AnalysisService
	sessions *service.SessionStore
}

// NewAnalysisHandler 创建分析会话处理器
func NewAnalysisHandler(svc *service.AnalysisService, sessions *service.SessionStore) *AnalysisHandler {
	return &AnalysisHandler{svc: svc, sessions: sessions}
}

// StartAnalysisRequest 提交分析请求
type StartAnalysisRequest struct {
	ProductURL string `json:"product_url" binding:"required" example:"https://www.amazon.com/dp/B08N5WRWNW"`
}

// StartAnalysisResponse 提交分析响应
type StartAnalysisResponse struct {
	SessionID string `json:"session_id"`
	ASIN      string `json:"asin"`
	Country   string `json:"country"`
	Status    string `json:"status"`
}

// SessionProgress 会话进度
type SessionProgress struct {
	SessionID          string                 `json:"session_id"`
	ASIN               string                 `json:"asin"`
	Country            string                 `json:"country"`
	Status             string                 `json:"status"`
	CurrentStep        int                    `json:"current_step"`
	TotalSteps         int                    `json:"total_steps"`
	ProgressPercentage float64                `json:"progress_percentage"`
	CurrentMessage     string                 `json:"current_message"`
	ErrorMessage       string                 `json:"error_message,omitempty"`
	Result             *service.SessionResult `json:"result,omitempty"`
	StartedAt          *time.Time             `json:"started_at"`
	CompletedAt        *time.Time             `json:"completed_at,omitempty"`
}

// Start 提交分析
// @Summary 提交商品分析
// @Description 校验亚马逊商品链接（支持 a.co / amzn.to 短链和直接输入 ASIN），创建分析会话并在后台执行
// @Tags 分析
// @Accept json
// @Produce json
// @Param request body StartAnalysisRequest true "商品链接"
// @Success 200 {object} Response{data=StartAnalysisResponse} "已创建"
// @Failure 400 {object} Response "链接无效"
// @Failure 429 {object} Response "请求过于频繁"
// @Router /api/analysis/start [post]
func (h *AnalysisHandler) Start(c *gin.Context) {
	var req StartAnalysisRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}

	sess, err := h.svc.StartSession(c.Request.Context(), req.ProductURL)
	if err != nil {
		respondError(c, err, "创建分析会话失败")
		return
	}
	Success(c, StartAnalysisResponse{
		SessionID: sess.ID,
		ASIN:      sess.ASIN,
		Country:   sess.Country,
		Status:    sess.Status,
	})
}

// Progress 查询会话进度
// @Summary 查询分析进度
// @Description 前端轮询会话进度，完成后 result 字段包含分析结果
// @Tags 分析
// @Produce json
// @Param id path string true "会话 ID"
// @Success 200 {object} Response{data=SessionProgress} "获取成功"
// @Failure 404 {object} Response "会话不存在"
// @Router /api/analysis/progress/{id} [get]
func (h *AnalysisHandler) Progress(c *gin.Context) {
	sess, err := h.sessions.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err, "查询分析进度失败")
		return
	}
	Success(c, newSessionProgress(sess))
}

func newSessionProgress(sess *models.AnalysisSession) SessionProgress {
	out := SessionProgress{
		SessionID:          sess.ID,
		ASIN:               sess.ASIN,
		Country:            sess.Country,
		Status:             sess.Status,
		CurrentStep:        sess.CurrentStep,
		TotalSteps:         sess.TotalSteps,
		ProgressPercentage: sess.ProgressPercentage,
		CurrentMessage:     sess.CurrentMessage,
		ErrorMessage:       sess.ErrorMessage,
		StartedAt:          sess.StartedAt,
		CompletedAt:        sess.CompletedAt,
	}
	if sess.Status == models.StatusCompleted && len(sess.Result) > 0 {
		var res service.SessionResult
		if err := json.Unmarshal(sess.Result, &res); err == nil {
			out.Result = &res
		}
	}
	return out
}
