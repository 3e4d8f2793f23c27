package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"nullfake/api"
	"nullfake/config"
	"nullfake/database"
	"nullfake/jobs"
	"nullfake/logger"
	"nullfake/middleware"
	"nullfake/observability"
	"nullfake/router"
	"nullfake/service"
	"nullfake/service/llm"
	"nullfake/service/scraper"

	"github.com/redis/go-redis/v9"
)

// @title Null Fake API
// @version 1.0
// @description 亚马逊评论真实性分析：抓取评论、调用大模型打分、计算假评论占比和评级
// @host localhost:8080
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name X-API-Key

var (
	configFile  string
	port        string
	showVersion bool
	printConfig bool
)

func init() {
	flag.StringVar(&configFile, "config", "", "外部配置文件路径（可选）")
	flag.StringVar(&configFile, "c", "", "外部配置文件路径（简写）")
	flag.StringVar(&port, "port", "", "监听端口，如: 8080 或 :8080")
	flag.StringVar(&port, "p", "", "监听端口（简写）")
	flag.BoolVar(&showVersion, "version", false, "显示版本信息")
	flag.BoolVar(&showVersion, "v", false, "显示版本信息（简写）")
	flag.BoolVar(&printConfig, "print-config", false, "打印合并后的配置并退出（敏感字段已隐藏）")
}

func main() {
	flag.Parse()

	if showVersion {
		fmt.Printf("nullfake v%s\n", config.Version)
		return
	}

	// 加载配置（内置配置 + 可选的外部配置覆盖）
	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}

	// 命令行参数覆盖端口配置
	if port != "" {
		// 自动添加冒号前缀
		if !strings.HasPrefix(port, ":") {
			port = ":" + port
		}
		cfg.Server.Port = port
	}

	if printConfig {
		out, err := config.Dump(cfg)
		if err != nil {
			log.Fatalf("打印配置失败: %v", err)
		}
		fmt.Print(out)
		return
	}

	lg, err := logger.Init(cfg.Log.Mode)
	if err != nil {
		log.Fatalf("初始化日志失败: %v", err)
	}
	defer lg.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := observability.InitTracer(ctx, cfg.Tracing, lg)
	if err != nil {
		lg.Warn("链路追踪初始化失败，继续运行", "error", err)
	}

	// 初始化数据库
	if err := database.Init(cfg); err != nil {
		lg.Fatal("数据库初始化失败", "error", err)
	}

	// 初始化 JWT
	middleware.InitJWT(cfg)

	redisClient := newRedisClient(ctx, cfg.Redis, lg)

	// 大模型服务与抓取
	manager := llm.NewManagerFromConfig(cfg.LLM, llm.NewStats(), lg)
	brightData := scraper.NewBrightDataClient(cfg.Scraping.BrightData)
	direct := scraper.NewAmazonScraper(cfg.Scraping.Direct)

	records := service.NewAsinStore(database.DB)
	sessions := service.NewSessionStore(database.DB)
	queue := jobs.NewQueue(database.DB, cfg.Worker.MaxAttempts, time.Duration(cfg.Worker.RetryDelaySeconds)*time.Second)
	worker := jobs.NewWorker(queue, cfg.Worker.Concurrency, time.Duration(cfg.Worker.PollIntervalMillis)*time.Millisecond, lg)
	mailer := service.NewEmailService(&cfg.Email, time.Duration(cfg.Analysis.AlertThrottleMinutes)*time.Minute)

	svc := service.NewAnalysisService(cfg, service.Deps{
		Records:    records,
		Sessions:   sessions,
		Queue:      queue,
		Analyzer:   manager,
		Locker:     service.NewLocker(redisClient),
		BrightData: brightData,
		Direct:     direct,
		Mailer:     mailer,
		Log:        lg,
	})
	svc.RegisterHandlers(worker)
	worker.Start(ctx)

	var scheduler *service.Scheduler
	if cfg.Scheduler.Enabled {
		scheduler = service.NewScheduler(cfg.Scheduler, records, sessions, queue, lg)
		if err := scheduler.Start(); err != nil {
			lg.Fatal("定时任务启动失败", "error", err)
		}
	}

	// 设置路由
	r := router.SetupRouter(cfg, router.Handlers{
		Analysis:  api.NewAnalysisHandler(svc, sessions),
		Product:   api.NewProductHandler(records),
		Extension: api.NewExtensionHandler(svc),
		Admin:     api.NewAdminHandler(cfg, manager, svc, service.NewStatsService(database.DB), records, mailer),
	})

	srv := &http.Server{
		Addr:              cfg.Server.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			lg.Fatal("服务器启动失败", "error", err)
		}
	}()

	lg.Info("Null Fake 已启动",
		"addr", cfg.Server.Port,
		"swagger", fmt.Sprintf("http://localhost%s/swagger/index.html", cfg.Server.Port),
		"scraping", cfg.Scraping.Service,
		"llm_primary", cfg.LLM.Primary)

	<-ctx.Done()
	lg.Info("收到退出信号，正在关闭")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		lg.Error("关闭 HTTP 服务失败", "error", err)
	}
	if scheduler != nil {
		scheduler.Stop()
	}
	worker.Wait()
	if redisClient != nil {
		_ = redisClient.Close()
	}
	if err := shutdownTracer(shutdownCtx); err != nil {
		lg.Warn("关闭链路追踪失败", "error", err)
	}
}

// newRedisClient 未配置或连接失败时返回 nil，分析锁退化为进程内锁
func newRedisClient(ctx context.Context, cfg config.RedisConfig, lg *logger.Logger) *redis.Client {
	if cfg.Addr == "" {
		return nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		lg.Warn("Redis 连接失败，使用进程内锁", "addr", cfg.Addr, "error", err)
		_ = client.Close()
		return nil
	}
	lg.Info("Redis 已连接", "addr", cfg.Addr)
	return client
}
