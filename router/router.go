package router

import (
	"time"

	"nullfake/api"
	"nullfake/config"
	_ "nullfake/docs"
	"nullfake/middleware"
	"nullfake/observability"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

// Handlers 路由用到的处理器
type Handlers struct {
	Analysis  *api.AnalysisHandler
	Product   *api.ProductHandler
	Extension *api.ExtensionHandler
	Admin     *api.AdminHandler
}

// SetupRouter 设置路由
func SetupRouter(cfg *config.Config, h Handlers) *gin.Engine {
	// 设置运行模式
	gin.SetMode(cfg.Server.Mode)

	r := gin.Default()

	if observability.Enabled(cfg.Tracing) {
		r.Use(otelgin.Middleware(cfg.Tracing.ServiceName))
	}

	// 扩展在亚马逊页面内调用，允许任意来源
	r.Use(CORSMiddleware())

	// Swagger 文档
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":  "ok",
			"version": config.Version,
		})
	})

	v := r.Group("/api")
	{
		analysis := v.Group("/analysis")
		{
			analysis.POST("/start", middleware.AnalysisRateLimit(cfg.Server.AnalysisRateLimit), h.Analysis.Start)
			analysis.GET("/progress/:id", h.Analysis.Progress)
		}

		v.GET("/products", h.Product.List)
		v.GET("/products/:country/:asin", h.Product.Show)

		v.POST("/extension/submit-reviews", middleware.ExtensionAPIKey(cfg.Extension.APIKey), h.Extension.SubmitReviews)

		admin := v.Group("/admin")
		{
			admin.POST("/login", middleware.LoginRateLimit(5, time.Minute), h.Admin.Login)

			// 需要 JWT 认证的后台接口
			authorized := admin.Group("")
			authorized.Use(middleware.JWTAuth())
			{
				authorized.GET("/providers", h.Admin.Providers)
				authorized.POST("/reanalyze", h.Admin.Reanalyze)
				authorized.GET("/stats", h.Admin.Stats)
				authorized.GET("/export/excel", h.Admin.ExportExcel)
				authorized.POST("/email/test", h.Admin.TestEmail)
			}
		}
	}

	return r
}

// CORSMiddleware CORS 跨域中间件
func CORSMiddleware() gin.HandlerFunc {
	return cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:    []string{"Authorization", "Content-Type", "X-API-Key", "X-Requested-With"},
		ExposeHeaders:   []string{"Content-Disposition"},
		MaxAge:          12 * time.Hour,
	})
}
