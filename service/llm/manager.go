package llm

import (
	"context"
	"errors"
	"time"

	"nullfake/config"
	"nullfake/logger"
	"nullfake/models"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "nullfake/service/llm"

// Attempt 一次服务调用记录
type Attempt struct {
	Provider string        `json:"provider"`
	Model    string        `json:"model"`
	Success  bool          `json:"success"`
	Latency  time.Duration `json:"latency_ns"`
	Error    string        `json:"error,omitempty"`
}

// Result 成功的分析结果
type Result struct {
	Provider string    `json:"provider"`
	Model    string    `json:"model"`
	Scores   Scores    `json:"scores"`
	Attempts []Attempt `json:"attempts"`
}

// Manager 按顺序尝试各服务，第一个成功的结果生效
type Manager struct {
	providers []Provider
	stats     *Stats
	log       *logger.Logger
}

// NewManager providers 已按尝试顺序排列；stats 可为 nil
func NewManager(providers []Provider, stats *Stats, log *logger.Logger) *Manager {
	if log == nil {
		log = logger.Nop()
	}
	return &Manager{providers: providers, stats: stats, log: log.With("component", "LLMManager")}
}

// NewManagerFromConfig 主服务在前，其后按 fallback_order，跳过未知和重复的名称
func NewManagerFromConfig(cfg config.LLMConfig, stats *Stats, log *logger.Logger) *Manager {
	all := map[string]Provider{
		ProviderOpenAI:   NewOpenAI(cfg.OpenAI, cfg.Temperature),
		ProviderDeepSeek: NewDeepSeek(cfg.DeepSeek, cfg.Temperature),
		ProviderOllama:   NewOllama(cfg.Ollama, cfg.Temperature),
	}
	order := append([]string{cfg.Primary}, cfg.FallbackOrder...)
	seen := make(map[string]bool, len(order))
	var providers []Provider
	for _, name := range order {
		p, ok := all[name]
		if !ok || seen[name] {
			continue
		}
		seen[name] = true
		providers = append(providers, p)
	}
	return NewManager(providers, stats, log)
}

// Providers 返回尝试顺序
func (m *Manager) Providers() []Provider {
	return m.providers
}

// Stats 返回注入的统计对象，可能为 nil
func (m *Manager) Stats() *Stats {
	return m.stats
}

// Analyze 依次尝试可用服务；全部失败返回 *AllProvidersFailedError
func (m *Manager) Analyze(ctx context.Context, reviews []models.Review) (*Result, error) {
	if len(reviews) == 0 {
		return nil, ErrNoReviews
	}

	tracer := otel.Tracer(tracerName)
	var (
		attempts []Attempt
		errs     []error
	)
	for _, p := range m.providers {
		if !p.Available() {
			continue
		}

		spanCtx, span := tracer.Start(ctx, "llm.analyze_reviews", trace.WithSpanKind(trace.SpanKindClient))
		span.SetAttributes(
			attribute.String("llm.provider", p.Name()),
			attribute.String("llm.model", p.Model()),
			attribute.Int("llm.review_count", len(reviews)),
		)

		started := time.Now()
		scores, err := p.AnalyzeReviews(spanCtx, reviews)
		latency := time.Since(started)

		attempt := Attempt{Provider: p.Name(), Model: p.Model(), Latency: latency, Success: err == nil}
		if err != nil {
			attempt.Error = err.Error()
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()

		attempts = append(attempts, attempt)
		m.stats.Record(p.Name(), err == nil, latency)

		if err == nil {
			m.log.Info("LLM 分析成功", "provider", p.Name(), "model", p.Model(), "latency", latency, "scored", len(scores))
			return &Result{Provider: p.Name(), Model: p.Model(), Scores: scores, Attempts: attempts}, nil
		}

		errs = append(errs, err)
		m.log.Warn("LLM 服务调用失败，尝试下一个", "provider", p.Name(), "error", err)

		// 调用方取消时不再继续尝试
		if errors.Is(err, context.Canceled) || ctx.Err() != nil {
			break
		}
	}

	return nil, &AllProvidersFailedError{Attempts: attempts, Errors: errs}
}
