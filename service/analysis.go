package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"nullfake/config"
	"nullfake/jobs"
	"nullfake/logger"
	"nullfake/models"
	"nullfake/service/llm"
	"nullfake/service/scraper"
)

// 任务类型
const (
	JobAnalysisRun       = "analysis.run"
	JobReanalyze         = "analysis.reanalyze"
	JobBrightDataTrigger = "brightdata.trigger"
	JobBrightDataPoll    = "brightdata.poll"
	JobBrightDataProcess = "brightdata.process"
)

var asinExpr = regexp.MustCompile(`^[A-Z0-9]{10}$`)

// ReviewFetcher 同步抓取评论
type ReviewFetcher interface {
	Fetch(ctx context.Context, ref *scraper.ProductRef) ([]models.Review, models.ProductInfo, error)
}

// Analyzer 对评论打分，由 llm.Manager 实现
type Analyzer interface {
	Analyze(ctx context.Context, reviews []models.Review) (*llm.Result, error)
}

// AnalysisService 串起抓取、打分、计算和持久化
type AnalysisService struct {
	records    *AsinStore
	sessions   *SessionStore
	queue      *jobs.Queue
	analyzer   Analyzer
	locker     Locker
	brightData *scraper.BrightDataClient
	direct     ReviewFetcher
	mailer     *EmailService
	httpClient *http.Client
	log        *logger.Logger

	scrapingService string
	fakeThreshold   float64
	cacheTTL        time.Duration
	lockTTL         time.Duration
	pollInterval    time.Duration
	maxPollAttempts int
}

// Deps AnalysisService 的依赖
type Deps struct {
	Records    *AsinStore
	Sessions   *SessionStore
	Queue      *jobs.Queue
	Analyzer   Analyzer
	Locker     Locker
	BrightData *scraper.BrightDataClient
	Direct     ReviewFetcher
	Mailer     *EmailService
	Log        *logger.Logger
}

func NewAnalysisService(cfg *config.Config, deps Deps) *AnalysisService {
	log := deps.Log
	if log == nil {
		log = logger.Nop()
	}
	locker := deps.Locker
	if locker == nil {
		locker = NewLocalLocker()
	}
	lockTTL := time.Duration(cfg.Analysis.LockTTLSeconds) * time.Second
	if lockTTL <= 0 {
		lockTTL = 10 * time.Minute
	}
	return &AnalysisService{
		records:    deps.Records,
		sessions:   deps.Sessions,
		queue:      deps.Queue,
		analyzer:   deps.Analyzer,
		locker:     locker,
		brightData: deps.BrightData,
		direct:     deps.Direct,
		mailer:     deps.Mailer,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		log:        log.With("component", "AnalysisService"),

		scrapingService: cfg.Scraping.Service,
		fakeThreshold:   cfg.Analysis.FakeThreshold,
		cacheTTL:        time.Duration(cfg.Analysis.CacheTTLHours) * time.Hour,
		lockTTL:         lockTTL,
		pollInterval:    time.Duration(cfg.Scraping.BrightData.PollIntervalSeconds) * time.Second,
		maxPollAttempts: cfg.Scraping.BrightData.MaxPollAttempts,
	}
}

// RegisterHandlers 注册后台任务
func (s *AnalysisService) RegisterHandlers(w *jobs.Worker) {
	w.Register(JobAnalysisRun, s.handleAnalysisRun)
	w.Register(JobReanalyze, s.handleReanalyze)
	w.Register(JobBrightDataTrigger, s.handleBrightDataTrigger)
	w.Register(JobBrightDataPoll, s.handleBrightDataPoll)
	w.Register(JobBrightDataProcess, s.handleBrightDataProcess)
}

// SessionResult 会话完成后返回给前端的结果
type SessionResult struct {
	AsinDataID      uint     `json:"asin_data_id"`
	ASIN            string   `json:"asin"`
	Country         string   `json:"country"`
	ProductTitle    string   `json:"product_title"`
	FakePercentage  *float64 `json:"fake_percentage"`
	Grade           *string  `json:"grade"`
	AmazonRating    *float64 `json:"amazon_rating"`
	AdjustedRating  *float64 `json:"adjusted_rating"`
	TotalReviews    int      `json:"total_reviews"`
	FakeReviewCount int      `json:"fake_review_count"`
	Cached          bool     `json:"cached"`
}

func newSessionResult(rec *models.AsinData, cached bool) SessionResult {
	return SessionResult{
		AsinDataID:      rec.ID,
		ASIN:            rec.ASIN,
		Country:         rec.Country,
		ProductTitle:    rec.ProductTitle,
		FakePercentage:  rec.FakePercentage,
		Grade:           rec.Grade,
		AmazonRating:    rec.AmazonRating,
		AdjustedRating:  rec.AdjustedRating,
		TotalReviews:    rec.TotalReviews,
		FakeReviewCount: rec.FakeReviewCount,
		Cached:          cached,
	}
}

// StartSession 校验链接、创建会话并排队执行
func (s *AnalysisService) StartSession(ctx context.Context, productURL string) (*models.AnalysisSession, error) {
	ref, err := scraper.ResolveProductURL(ctx, s.httpClient, productURL)
	if err != nil {
		return nil, err
	}
	sess, err := s.sessions.Create(ctx, ref)
	if err != nil {
		return nil, err
	}
	if _, err := s.queue.Enqueue(ctx, JobAnalysisRun, sessionPayload{SessionID: sess.ID}, 0); err != nil {
		_ = s.sessions.Fail(ctx, sess.ID, err.Error())
		return nil, err
	}
	s.log.Info("分析会话已创建", "session_id", sess.ID, "asin", ref.ASIN, "country", ref.Country)
	return sess, nil
}

type sessionPayload struct {
	SessionID string `json:"session_id"`
}

type recordPayload struct {
	AsinDataID uint `json:"asin_data_id"`
}

func (s *AnalysisService) handleAnalysisRun(ctx context.Context, job *models.Job) error {
	var p sessionPayload
	if err := jobs.DecodePayload(job, &p); err != nil {
		return err
	}
	return s.RunSession(ctx, p.SessionID)
}

// RunSession 按步骤执行一次分析会话；会话失败后返回不可重试的错误
func (s *AnalysisService) RunSession(ctx context.Context, sessionID string) error {
	sess, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return jobs.Permanent(err)
		}
		return err
	}
	if sess.IsFinished() {
		return nil
	}

	if err := s.runSession(ctx, sess); err != nil {
		s.log.Warn("分析会话失败", "session_id", sess.ID, "asin", sess.ASIN, "error", err)
		if ferr := s.sessions.Fail(ctx, sess.ID, userMessage(err)); ferr != nil {
			return ferr
		}
		return jobs.Permanent(err)
	}
	return nil
}

func (s *AnalysisService) runSession(ctx context.Context, sess *models.AnalysisSession) error {
	_ = s.sessions.Progress(ctx, sess.ID, StepCache, 10, "检查缓存")

	rec, err := s.records.FindOrCreate(ctx, sess.ASIN, sess.Country, sess.ProductURL)
	if err != nil {
		return err
	}
	if err := s.sessions.AttachRecord(ctx, sess.ID, rec.ID); err != nil {
		return err
	}

	if s.isFresh(rec) {
		s.log.Info("命中缓存", "asin", rec.ASIN, "country", rec.Country)
		return s.sessions.Complete(ctx, sess.ID, newSessionResult(rec, true))
	}

	// 已有结果但缓存过期：不重新抓取，直接对已存评论重新打分
	if rec.IsProtected() && rec.TotalReviews > 0 {
		_ = s.sessions.Progress(ctx, sess.ID, StepFetch, 30, "使用已存储的评论")
		return s.analyzeForSession(ctx, sess.ID, rec.ID)
	}

	_ = s.sessions.Progress(ctx, sess.ID, StepFetch, 30, "抓取评论")
	if s.useBrightData() {
		_, err := s.queue.Enqueue(ctx, JobBrightDataTrigger, brightDataPayload{AsinDataID: rec.ID, SessionID: sess.ID}, 0)
		return err
	}

	if s.direct == nil {
		return fmt.Errorf("没有可用的评论抓取方式")
	}
	ref := scraper.NewProductRef(rec.ASIN, rec.Country)
	reviews, info, err := s.direct.Fetch(ctx, ref)
	if err != nil {
		_, _ = s.records.MarkFailed(ctx, rec.ID, err.Error())
		return err
	}
	if len(reviews) == 0 {
		_, _ = s.records.MarkFailed(ctx, rec.ID, ErrNoReviewsAvailable.Error())
		return ErrNoReviewsAvailable
	}
	if _, err := s.records.SaveReviews(ctx, rec.ID, reviews, info); err != nil {
		return err
	}
	return s.analyzeForSession(ctx, sess.ID, rec.ID)
}

// analyzeForSession 第 3、4 步
func (s *AnalysisService) analyzeForSession(ctx context.Context, sessionID string, recordID uint) error {
	_ = s.sessions.Progress(ctx, sessionID, StepAnalyze, 60, "AI 分析中")
	rec, err := s.AnalyzeRecord(ctx, recordID)
	if err != nil {
		return err
	}
	_ = s.sessions.Progress(ctx, sessionID, StepFinalize, 90, "计算评级")
	return s.sessions.Complete(ctx, sessionID, newSessionResult(rec, false))
}

func (s *AnalysisService) isFresh(rec *models.AsinData) bool {
	if !rec.IsProtected() || rec.LastAnalyzedAt == nil || s.cacheTTL <= 0 {
		return false
	}
	return time.Since(*rec.LastAnalyzedAt) < s.cacheTTL
}

func (s *AnalysisService) useBrightData() bool {
	return s.scrapingService != "direct" && s.brightData != nil && s.brightData.Configured()
}

// AnalyzeRecord 对已存评论打分并写回结果
//
// 同一商品同时只有一个分析；失败时记录置为 failed（已完成的记录保留原结果），不会停在 processing。
func (s *AnalysisService) AnalyzeRecord(ctx context.Context, id uint) (*models.AsinData, error) {
	rec, err := s.records.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	release, err := s.lock(ctx, rec)
	if err != nil {
		return nil, err
	}
	defer release()

	reviews, err := rec.ReviewList()
	if err != nil {
		_, _ = s.records.MarkFailed(ctx, id, "stored reviews are corrupt")
		return nil, fmt.Errorf("解析评论失败: %w", err)
	}
	if len(reviews) == 0 {
		_, _ = s.records.MarkFailed(ctx, id, ErrNoReviewsAvailable.Error())
		return nil, ErrNoReviewsAvailable
	}
	return s.scoreAndSave(ctx, rec, reviews, nil)
}

func (s *AnalysisService) lock(ctx context.Context, rec *models.AsinData) (func(), error) {
	release, ok, err := s.locker.TryLock(ctx, lockKey(rec.ASIN, rec.Country), s.lockTTL)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrAnalysisInProgress
	}
	return release, nil
}

// scoreAndSave 调用方持有商品锁。submitted 非空时 reviews 是用户新提交的评论，
// 只在分析成功后与结果一起写入；受保护的记录分析失败时保持原样
func (s *AnalysisService) scoreAndSave(ctx context.Context, rec *models.AsinData, reviews []models.Review, submitted *models.ProductInfo) (*models.AsinData, error) {
	id := rec.ID
	if _, err := s.records.MarkProcessing(ctx, id); err != nil {
		return nil, err
	}

	result, err := s.analyzer.Analyze(ctx, reviews)
	// 请求被取消时也要把结果写回，记录不能停在 processing
	wctx := context.WithoutCancel(ctx)
	if err != nil {
		if submitted != nil {
			// 未完成的记录保留提交的评论，定时任务可以重试
			if _, serr := s.records.SaveReviews(wctx, id, reviews, *submitted); serr != nil {
				s.log.Error("保存提交的评论失败", "asin_data_id", id, "error", serr)
			}
		}
		if _, ferr := s.records.MarkFailed(wctx, id, err.Error()); ferr != nil {
			s.log.Error("写入失败状态出错", "asin_data_id", id, "error", ferr)
		}
		var all *llm.AllProvidersFailedError
		if errors.As(err, &all) && s.mailer != nil {
			if sent, merr := s.mailer.SendProviderOutageAlert(rec.ASIN, rec.Country, err); merr != nil {
				s.log.Warn("发送告警邮件失败", "error", merr)
			} else if sent {
				s.log.Info("已发送服务不可用告警", "asin", rec.ASIN)
			}
		}
		return nil, err
	}

	metrics := ComputeMetrics(reviews, result.Scores, s.fakeThreshold)
	pageRating := rec.PageRating
	if submitted != nil && submitted.Rating > 0 {
		pageRating = &submitted.Rating
	}
	metrics = withPageRating(metrics, pageRating)

	if submitted != nil {
		err = s.records.CompleteWithReviews(wctx, id, reviews, *submitted, metrics, result)
	} else {
		err = s.records.MarkCompleted(wctx, id, metrics, result)
	}
	if err != nil {
		return nil, err
	}
	s.log.Info("分析完成",
		"asin", rec.ASIN, "country", rec.Country, "provider", result.Provider,
		"fake_percentage", metrics.FakePercentage, "grade", metrics.Grade)
	return s.records.Get(wctx, id)
}

// withPageRating 商品页有官方评分时用它代替样本评论的平均分
func withPageRating(m Metrics, pageRating *float64) Metrics {
	if pageRating != nil && *pageRating > 0 {
		m.AmazonRating = round(*pageRating, 2)
	}
	return m
}

func lockKey(asin, country string) string {
	return "analysis:" + country + ":" + asin
}

// ExtensionSubmission 浏览器扩展提交的评论
type ExtensionSubmission struct {
	ASIN         string          `json:"asin" binding:"required"`
	Country      string          `json:"country"`
	ProductURL   string          `json:"product_url"`
	ProductTitle string          `json:"product_title"`
	ImageURL     string          `json:"product_image_url"`
	AmazonRating float64         `json:"amazon_rating"`
	Reviews      []models.Review `json:"reviews"`
}

// SubmitExtensionReviews 用户主动提交，同步分析成功后覆盖已存评论和结果
func (s *AnalysisService) SubmitExtensionReviews(ctx context.Context, req ExtensionSubmission) (*models.AsinData, error) {
	asin := strings.ToUpper(strings.TrimSpace(req.ASIN))
	if !asinExpr.MatchString(asin) {
		return nil, &scraper.ValidationError{Input: req.ASIN, Message: "invalid ASIN"}
	}
	country := strings.ToLower(strings.TrimSpace(req.Country))
	if country == "" {
		country = "us"
	}
	if !scraper.SupportedCountry(country) {
		return nil, &scraper.ValidationError{Input: req.Country, Message: "unsupported country"}
	}

	reviews := cleanSubmittedReviews(req.Reviews)
	if len(reviews) == 0 {
		return nil, ErrNoReviewsAvailable
	}

	ref := scraper.NewProductRef(asin, country)
	productURL := ref.URL
	if req.ProductURL != "" {
		if parsed, err := scraper.ParseProductURL(req.ProductURL); err == nil && parsed.ASIN == asin {
			productURL = parsed.URL
		}
	}

	rec, err := s.records.FindOrCreate(ctx, asin, country, productURL)
	if err != nil {
		return nil, err
	}
	release, err := s.lock(ctx, rec)
	if err != nil {
		return nil, err
	}
	defer release()

	info := models.ProductInfo{
		Title:    scraper.CleanText(req.ProductTitle),
		ImageURL: strings.TrimSpace(req.ImageURL),
	}
	if req.AmazonRating > 0 && req.AmazonRating <= 5 {
		info.Rating = req.AmazonRating
	}
	return s.scoreAndSave(ctx, rec, reviews, &info)
}

func cleanSubmittedReviews(in []models.Review) []models.Review {
	out := make([]models.Review, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for i, r := range in {
		r.Text = scraper.CleanText(r.Text)
		if r.Text == "" {
			continue
		}
		r.Title = scraper.CleanText(r.Title)
		r.Author = scraper.CleanText(r.Author)
		r.ID = strings.TrimSpace(r.ID)
		if r.ID == "" {
			r.ID = "ext" + strconv.Itoa(i+1)
		}
		if _, dup := seen[r.ID]; dup {
			continue
		}
		seen[r.ID] = struct{}{}
		if r.Rating < 1 {
			r.Rating = 1
		}
		if r.Rating > 5 {
			r.Rating = 5
		}
		out = append(out, r)
	}
	return out
}

// EnqueueReanalysis 为符合条件的记录各排一个重新分析任务
func (s *AnalysisService) EnqueueReanalysis(ctx context.Context, f ReanalyzeFilter) (int, error) {
	ids, err := s.records.IDsForReanalysis(ctx, f)
	if err != nil {
		return 0, err
	}
	for i, id := range ids {
		if _, err := s.queue.Enqueue(ctx, JobReanalyze, recordPayload{AsinDataID: id}, 0); err != nil {
			return i, err
		}
	}
	s.log.Info("已排队重新分析", "count", len(ids))
	return len(ids), nil
}

func (s *AnalysisService) handleReanalyze(ctx context.Context, job *models.Job) error {
	var p recordPayload
	if err := jobs.DecodePayload(job, &p); err != nil {
		return err
	}
	_, err := s.AnalyzeRecord(ctx, p.AsinDataID)
	switch {
	case err == nil, errors.Is(err, ErrAnalysisInProgress):
		// 其他任务正在分析同一商品，无需重试
		return nil
	case !retryable(err):
		// 大模型服务全部失败由定时任务按 max_retries 重试，任务层不再重复
		return jobs.Permanent(err)
	}
	return err
}

// userMessage 面向前端的失败原因
func userMessage(err error) string {
	var ve *scraper.ValidationError
	switch {
	case errors.As(err, &ve):
		return ve.Error()
	case errors.Is(err, ErrNoReviewsAvailable):
		return "没有找到可分析的评论"
	case errors.Is(err, scraper.ErrScrapingJobFailed):
		return "评论抓取失败"
	case errors.Is(err, ErrAnalysisInProgress):
		return "该商品正在分析中，请稍后查看"
	}
	var all *llm.AllProvidersFailedError
	if errors.As(err, &all) {
		return "AI 分析服务暂时不可用"
	}
	return "分析失败"
}
