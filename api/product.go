package api

import (
	"strconv"
	"strings"

	"nullfake/models"
	"nullfake/service"

	"github.com/gin-gonic/gin"
)

// ProductHandler 商品分析结果查询
type ProductHandler struct {
	records *service.AsinStore
}

// NewProductHandler 创建商品处理器
func NewProductHandler(records *service.AsinStore) *ProductHandler {
	return &ProductHandler{records: records}
}

// ProductDetail 商品详情，包含评论
type ProductDetail struct {
	*models.AsinData
	Reviews []models.Review `json:"reviews"`
}

// List 已完成分析的商品列表
// @Summary 商品列表
// @Description 已完成分析的商品，按首次分析时间倒序分页
// @Tags 商品
// @Produce json
// @Param page query int false "页码，默认1"
// @Param page_size query int false "每页数量，默认20，最大100"
// @Param country query string false "国家代码，如 us"
// @Success 200 {object} Response{data=PageResponse} "获取成功"
// @Router /api/products [get]
func (h *ProductHandler) List(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	country := strings.ToLower(strings.TrimSpace(c.Query("country")))

	list, total, err := h.records.ListCompleted(c.Request.Context(), country, page, pageSize)
	if err != nil {
		respondError(c, err, "查询商品列表失败")
		return
	}
	Success(c, NewPage(list, total, page, pageSize))
}

// Show 单个商品的分析结果
// @Summary 商品详情
// @Description 按国家和 ASIN 查询分析结果与评论
// @Tags 商品
// @Produce json
// @Param country path string true "国家代码"
// @Param asin path string true "ASIN"
// @Success 200 {object} Response{data=ProductDetail} "获取成功"
// @Failure 404 {object} Response "记录不存在"
// @Router /api/products/{country}/{asin} [get]
func (h *ProductHandler) Show(c *gin.Context) {
	country := strings.ToLower(c.Param("country"))
	asin := strings.ToUpper(c.Param("asin"))

	rec, err := h.records.GetByKey(c.Request.Context(), asin, country)
	if err != nil {
		respondError(c, err, "查询商品失败")
		return
	}
	reviews, err := rec.ReviewList()
	if err != nil {
		respondError(c, err, "解析评论失败")
		return
	}
	Success(c, ProductDetail{AsinData: rec, Reviews: reviews})
}
