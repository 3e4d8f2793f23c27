package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"nullfake/config"
	"nullfake/models"

	"golang.org/x/sync/errgroup"
)

// OllamaProvider 本地 Ollama /api/generate，评论较多时分块请求
type OllamaProvider struct {
	cfg         config.ProviderConfig
	temperature float64
	client      *http.Client
}

// NewOllama 创建 Ollama 服务
func NewOllama(cfg config.ProviderConfig, temperature float64) *OllamaProvider {
	if cfg.TruncateChars <= 0 {
		cfg.TruncateChars = 300
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = 25
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.TimeoutSeconds <= 0 {
		cfg.TimeoutSeconds = 180
	}
	return &OllamaProvider{
		cfg:         cfg,
		temperature: temperature,
		client:      &http.Client{Timeout: cfg.Timeout()},
	}
}

func (p *OllamaProvider) Name() string    { return ProviderOllama }
func (p *OllamaProvider) Model() string   { return p.cfg.Model }
func (p *OllamaProvider) Available() bool { return p.cfg.Enabled && p.cfg.BaseURL != "" }

type generateRequest struct {
	Model   string          `json:"model"`
	Prompt  string          `json:"prompt"`
	Stream  bool            `json:"stream"`
	Options generateOptions `json:"options"`
}

type generateOptions struct {
	Temperature float64 `json:"temperature"`
	NumCtx      int     `json:"num_ctx,omitempty"`
}

type generateResponse struct {
	Response string `json:"response"`
}

// AnalyzeReviews 分块并发请求；失败块不超过一半时合并其余结果，否则整批失败
func (p *OllamaProvider) AnalyzeReviews(ctx context.Context, reviews []models.Review) (Scores, error) {
	if len(reviews) == 0 {
		return nil, ErrNoReviews
	}

	chunks := chunkReviews(reviews, p.cfg.ChunkSize)

	var (
		mu       sync.Mutex
		merged   = make(Scores, len(reviews))
		failed   int
		firstErr error
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.Concurrency)
	for _, chunk := range chunks {
		chunk := chunk
		g.Go(func() error {
			scores, err := p.analyzeChunk(gctx, chunk)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failed++
				if firstErr == nil {
					firstErr = err
				}
				// 单块失败不取消其他块
				return nil
			}
			for id, s := range scores {
				merged[id] = s
			}
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, &ProviderError{Provider: ProviderOllama, Err: err}
	}
	if failed*2 > len(chunks) {
		return nil, &ProviderError{
			Provider: ProviderOllama,
			Err:      fmt.Errorf("%d/%d chunks failed: %w", failed, len(chunks), firstErr),
		}
	}
	return merged, nil
}

func (p *OllamaProvider) analyzeChunk(ctx context.Context, reviews []models.Review) (Scores, error) {
	payload, err := json.Marshal(generateRequest{
		Model:  p.cfg.Model,
		Prompt: BuildPrompt(reviews, p.cfg.TruncateChars),
		Stream: false,
		Options: generateOptions{
			Temperature: p.temperature,
			NumCtx:      p.cfg.ContextWindow,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("构建请求失败: %w", err)
	}

	url := strings.TrimRight(p.cfg.BaseURL, "/") + "/api/generate"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("创建请求失败: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	body, err := doRequest(p.client, ProviderOllama, req)
	if err != nil {
		return nil, err
	}

	var out generateResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, invalidFormat(ProviderOllama, "response envelope is not JSON", string(body))
	}
	return ParseScores(ProviderOllama, out.Response, reviews)
}

func chunkReviews(reviews []models.Review, size int) [][]models.Review {
	if size <= 0 {
		size = len(reviews)
	}
	chunks := make([][]models.Review, 0, (len(reviews)+size-1)/size)
	for start := 0; start < len(reviews); start += size {
		end := start + size
		if end > len(reviews) {
			end = len(reviews)
		}
		chunks = append(chunks, reviews[start:end])
	}
	return chunks
}
