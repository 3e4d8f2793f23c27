package api

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"nullfake/config"
	"nullfake/middleware"
	"nullfake/service"
	"nullfake/service/llm"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
)

// AdminHandler 后台管理处理器
type AdminHandler struct {
	cfg     *config.Config
	manager *llm.Manager
	svc     *service.AnalysisService
	stats   *service.StatsService
	records *service.AsinStore
	mailer  *service.EmailService
}

// NewAdminHandler 创建后台管理处理器
func NewAdminHandler(cfg *config.Config, manager *llm.Manager, svc *service.AnalysisService, stats *service.StatsService, records *service.AsinStore, mailer *service.EmailService) *AdminHandler {
	return &AdminHandler{cfg: cfg, manager: manager, svc: svc, stats: stats, records: records, mailer: mailer}
}

// AdminLoginRequest 登录请求
type AdminLoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// AdminLoginResponse 登录响应
type AdminLoginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ProviderStatus 大模型服务状态
type ProviderStatus struct {
	Name      string                `json:"name"`
	Model     string                `json:"model"`
	Available bool                  `json:"available"`
	Stats     *llm.ProviderSnapshot `json:"stats,omitempty"`
}

// Login 管理员登录
// @Summary 管理员登录
// @Description 校验配置中的管理员用户名和 bcrypt 密码哈希，成功后返回 JWT
// @Tags 后台管理
// @Accept json
// @Produce json
// @Param request body AdminLoginRequest true "登录信息"
// @Success 200 {object} Response{data=AdminLoginResponse} "登录成功"
// @Failure 400 {object} Response "请求参数错误"
// @Failure 401 {object} Response "用户名或密码错误"
// @Router /api/admin/login [post]
func (h *AdminHandler) Login(c *gin.Context) {
	var req AdminLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}

	admin := h.cfg.Admin
	if admin.PasswordHash == "" || req.Username != admin.Username {
		Unauthorized(c, "用户名或密码错误")
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(admin.PasswordHash), []byte(req.Password)); err != nil {
		Unauthorized(c, "用户名或密码错误")
		return
	}

	expire := h.cfg.JWT.ExpireTime
	if expire <= 0 {
		expire = 24 * time.Hour
	}
	token, err := middleware.GenerateToken(admin.Username, expire)
	if err != nil {
		InternalError(c, "生成 token 失败")
		return
	}
	Success(c, AdminLoginResponse{Token: token, ExpiresAt: time.Now().Add(expire)})
}

// Providers 大模型服务状态与调用统计
// @Summary 大模型服务状态
// @Description 按回退顺序列出服务、是否可用以及进程内的调用统计
// @Tags 后台管理
// @Produce json
// @Security BearerAuth
// @Success 200 {object} Response{data=[]ProviderStatus} "获取成功"
// @Failure 401 {object} Response "未授权"
// @Router /api/admin/providers [get]
func (h *AdminHandler) Providers(c *gin.Context) {
	snapshots := make(map[string]llm.ProviderSnapshot)
	for _, s := range h.manager.Stats().Snapshot() {
		snapshots[s.Provider] = s
	}

	out := make([]ProviderStatus, 0, len(h.manager.Providers()))
	for _, p := range h.manager.Providers() {
		status := ProviderStatus{Name: p.Name(), Model: p.Model(), Available: p.Available()}
		if s, ok := snapshots[p.Name()]; ok {
			status.Stats = &s
		}
		out = append(out, status)
	}
	Success(c, out)
}

// Reanalyze 批量重新分析
// @Summary 批量重新分析
// @Description 按状态、评级、国家筛选有评论的记录，逐条排队重新打分
// @Tags 后台管理
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body service.ReanalyzeFilter false "筛选条件"
// @Success 200 {object} Response{data=map[string]int} "已排队数量"
// @Failure 401 {object} Response "未授权"
// @Router /api/admin/reanalyze [post]
func (h *AdminHandler) Reanalyze(c *gin.Context) {
	var f service.ReanalyzeFilter
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&f); err != nil {
			BadRequest(c, "参数错误: "+err.Error())
			return
		}
	}
	n, err := h.svc.EnqueueReanalysis(c.Request.Context(), f)
	if err != nil {
		respondError(c, err, "排队重新分析失败")
		return
	}
	SuccessWithMessage(c, fmt.Sprintf("已排队 %d 条记录", n), gin.H{"queued": n})
}

// Stats 统计概览
// @Summary 统计概览
// @Description 状态分布、评级分布和平均假评论占比
// @Tags 后台管理
// @Produce json
// @Security BearerAuth
// @Success 200 {object} Response{data=service.Overview} "获取成功"
// @Failure 401 {object} Response "未授权"
// @Router /api/admin/stats [get]
func (h *AdminHandler) Stats(c *gin.Context) {
	out, err := h.stats.Overview(c.Request.Context())
	if err != nil {
		respondError(c, err, "查询统计失败")
		return
	}
	Success(c, out)
}

// ExportExcel 导出分析结果
// @Summary 导出 Excel
// @Description 导出分析结果为 xlsx 文件
// @Tags 后台管理
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Security BearerAuth
// @Param status query string false "状态"
// @Param country query string false "国家代码"
// @Param limit query int false "最多导出条数，默认10000"
// @Success 200 {file} file "Excel 文件"
// @Failure 401 {object} Response "未授权"
// @Router /api/admin/export/excel [get]
func (h *AdminHandler) ExportExcel(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	f := service.ExportFilter{Status: c.Query("status"), Country: c.Query("country"), Limit: limit}

	// 先写到缓冲区，失败时还能返回 JSON
	var buf bytes.Buffer
	if _, err := h.records.ExportExcel(c.Request.Context(), &buf, f); err != nil {
		respondError(c, err, "生成 Excel 失败")
		return
	}

	filename := fmt.Sprintf("nullfake_%s.xlsx", time.Now().Format("20060102_150405"))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename*=UTF-8''%s", filename))
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", buf.Bytes())
}

// TestEmailRequest 测试邮件请求
type TestEmailRequest struct {
	To string `json:"to"`
}

// TestEmail 发送测试邮件
// @Summary 发送测试邮件
// @Description 验证告警邮件配置，收件人为空时发送到 alert_to
// @Tags 后台管理
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body TestEmailRequest false "收件人"
// @Success 200 {object} Response "发送成功"
// @Failure 400 {object} Response "邮件未配置"
// @Router /api/admin/email/test [post]
func (h *AdminHandler) TestEmail(c *gin.Context) {
	var req TestEmailRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			BadRequest(c, "参数错误: "+err.Error())
			return
		}
	}
	if err := h.mailer.SendTestEmail(req.To); err != nil {
		BadRequest(c, config.SafeErrorMessage(err, "发送测试邮件失败"))
		return
	}
	SuccessWithMessage(c, "测试邮件已发送", nil)
}
