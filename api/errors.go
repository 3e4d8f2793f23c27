package api

import (
	"errors"

	"nullfake/config"
	"nullfake/logger"
	"nullfake/service"
	"nullfake/service/llm"
	"nullfake/service/scraper"

	"github.com/gin-gonic/gin"
)

// respondError 把业务错误转换为 HTTP 状态码
func respondError(c *gin.Context, err error, fallback string) {
	var (
		ve  *scraper.ValidationError
		all *llm.AllProvidersFailedError
	)
	switch {
	case errors.As(err, &ve):
		BadRequest(c, ve.Error())
	case errors.Is(err, service.ErrNoReviewsAvailable):
		UnprocessableEntity(c, "没有找到可分析的评论")
	case errors.Is(err, service.ErrNotFound):
		NotFound(c, "记录不存在")
	case errors.Is(err, service.ErrAnalysisInProgress):
		Conflict(c, "该商品正在分析中，请稍后查看")
	case errors.As(err, &all):
		BadGateway(c, config.SafeErrorMessage(err, "AI 分析服务暂时不可用"))
	case errors.Is(err, scraper.ErrScrapingJobFailed):
		BadGateway(c, config.SafeErrorMessage(err, "评论抓取失败"))
	default:
		logger.L.Error(fallback, "path", c.FullPath(), "error", err)
		InternalError(c, config.SafeErrorMessage(err, fallback))
	}
}
