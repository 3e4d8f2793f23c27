package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"nullfake/config"
	"nullfake/database"
	"nullfake/jobs"
	"nullfake/logger"
	"nullfake/middleware"
	"nullfake/models"
	"nullfake/service"
	"nullfake/service/llm"
	"nullfake/service/scraper"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func setupMockDB(t *testing.T) (sqlmock.Sqlmock, *gorm.DB, func()) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	gormDB, err := gorm.Open(mysql.New(mysql.Config{
		Conn:                      sqlDB,
		SkipInitializeWithVersion: true,
	}), &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
	require.NoError(t, err)

	return mock, gormDB, func() {
		sqlDB.Close()
	}
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:api_%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, database.Migrate(db))
	return db
}

type fakeProvider struct {
	name   string
	scores llm.Scores
	err    error
}

func (p *fakeProvider) Name() string { return p.name }
func (p *fakeProvider) Model() string { return p.name + "-test" }
func (p *fakeProvider) Available() bool { return true }
func (p *fakeProvider) AnalyzeReviews(context.Context, []models.Review) (llm.Scores, error) {
	return p.scores, p.err
}

type fakeFetcher struct {
	reviews []models.Review
}

func (f *fakeFetcher) Fetch(context.Context, *scraper.ProductRef) ([]models.Review, models.ProductInfo, error) {
	return f.reviews, models.ProductInfo{Title: "Widget"}, nil
}

var testReviews = []models.Review{
	{ID: "r1", Rating: 5, Text: "great"},
	{ID: "r2", Rating: 1, Text: "awful"},
}

type testApp struct {
	cfg      *config.Config
	db       *gorm.DB
	router   *gin.Engine
	worker   *jobs.Worker
	provider *fakeProvider
	records  *service.AsinStore
}

// newTestApp 使用 sqlite 和假的大模型服务搭建完整路由
func newTestApp(t *testing.T) *testApp {
	t.Helper()
	gin.SetMode(gin.TestMode)

	hash, err := bcrypt.GenerateFromPassword([]byte("admin123"), bcrypt.MinCost)
	require.NoError(t, err)

	cfg := &config.Config{}
	cfg.Server.Mode = "debug"
	cfg.JWT = config.JWTConfig{Secret: "test-secret", ExpireTime: time.Hour}
	cfg.Admin = config.AdminConfig{Username: "admin", PasswordHash: string(hash)}
	cfg.Extension.APIKey = "ext-key"
	cfg.Scraping.Service = "direct"
	cfg.Analysis.FakeThreshold = 85
	cfg.Analysis.CacheTTLHours = 720
	config.GlobalConfig = cfg
	t.Cleanup(func() { config.GlobalConfig = nil })
	middleware.InitJWT(cfg)

	db := newTestDB(t)
	provider := &fakeProvider{name: "fake", scores: llm.Scores{"r1": 10, "r2": 90}}
	manager := llm.NewManager([]llm.Provider{provider}, llm.NewStats(), logger.Nop())

	records := service.NewAsinStore(db)
	sessions := service.NewSessionStore(db)
	queue := jobs.NewQueue(db, 3, time.Second)
	worker := jobs.NewWorker(queue, 1, time.Millisecond, logger.Nop())
	mailer := service.NewEmailService(&cfg.Email, time.Hour)
	svc := service.NewAnalysisService(cfg, service.Deps{
		Records:  records,
		Sessions: sessions,
		Queue:    queue,
		Analyzer: manager,
		Direct:   &fakeFetcher{reviews: testReviews},
		Mailer:   mailer,
		Log:      logger.Nop(),
	})
	svc.RegisterHandlers(worker)

	analysis := NewAnalysisHandler(svc, sessions)
	products := NewProductHandler(records)
	extension := NewExtensionHandler(svc)
	admin := NewAdminHandler(cfg, manager, svc, service.NewStatsService(db), records, mailer)

	r := gin.New()
	g := r.Group("/api")
	g.POST("/analysis/start", analysis.Start)
	g.GET("/analysis/progress/:id", analysis.Progress)
	g.GET("/products", products.List)
	g.GET("/products/:country/:asin", products.Show)
	g.POST("/extension/submit-reviews", middleware.ExtensionAPIKey(cfg.Extension.APIKey), extension.SubmitReviews)
	g.POST("/admin/login", admin.Login)
	protected := g.Group("/admin", middleware.JWTAuth())
	protected.GET("/providers", admin.Providers)
	protected.POST("/reanalyze", admin.Reanalyze)
	protected.GET("/stats", admin.Stats)
	protected.GET("/export/excel", admin.ExportExcel)
	protected.POST("/email/test", admin.TestEmail)

	return &testApp{cfg: cfg, db: db, router: r, worker: worker, provider: provider, records: records}
}

func (a *testApp) do(method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func (a *testApp) drain(t *testing.T) {
	t.Helper()
	for i := 0; i < 20; i++ {
		ran, err := a.worker.RunOnce(context.Background())
		require.NoError(t, err)
		if !ran {
			return
		}
	}
	t.Fatal("queue did not drain")
}

func (a *testApp) login(t *testing.T) map[string]string {
	t.Helper()
	w := a.do("POST", "/api/admin/login", map[string]string{"username": "admin", "password": "admin123"}, nil)
	require.Equal(t, 200, w.Code, w.Body.String())
	var resp struct {
		Data AdminLoginResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return map[string]string{"Authorization": "Bearer " + resp.Data.Token}
}

// decode 解析响应信封，data 写入 out
func decode(t *testing.T, w *httptest.ResponseRecorder, out any) Response {
	t.Helper()
	var env struct {
		Code    int             `json:"code"`
		Message string          `json:"message"`
		Data    json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	if out != nil && len(env.Data) > 0 {
		require.NoError(t, json.Unmarshal(env.Data, out))
	}
	return Response{Code: env.Code, Message: env.Message}
}
