package api

import (
	"nullfake/service"

	"github.com/gin-gonic/gin"
)

// ExtensionHandler 浏览器扩展接口
type ExtensionHandler struct {
	svc *service.AnalysisService
}

// NewExtensionHandler 创建扩展处理器
func NewExtensionHandler(svc *service.AnalysisService) *ExtensionHandler {
	return &ExtensionHandler{svc: svc}
}

// SubmitReviews 扩展提交页面上的评论并同步分析
// @Summary 扩展提交评论
// @Description 浏览器扩展采集评论后提交，覆盖已存评论并立即分析
// @Tags 扩展
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param request body service.ExtensionSubmission true "评论数据"
// @Success 200 {object} Response{data=models.AsinData} "分析完成"
// @Failure 400 {object} Response "参数错误"
// @Failure 401 {object} Response "API Key 无效"
// @Failure 422 {object} Response "没有可分析的评论"
// @Failure 502 {object} Response "AI 服务不可用"
// @Router /api/extension/submit-reviews [post]
func (h *ExtensionHandler) SubmitReviews(c *gin.Context) {
	var req service.ExtensionSubmission
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}
	rec, err := h.svc.SubmitExtensionReviews(c.Request.Context(), req)
	if err != nil {
		respondError(c, err, "分析失败")
		return
	}
	Success(c, rec)
}
