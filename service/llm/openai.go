package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"nullfake/config"
	"nullfake/models"
)

// ChatProvider OpenAI 兼容的 /chat/completions 接口，OpenAI 与 DeepSeek 共用
type ChatProvider struct {
	name        string
	cfg         config.ProviderConfig
	temperature float64
	client      *http.Client
}

// NewOpenAI 创建 OpenAI 服务
func NewOpenAI(cfg config.ProviderConfig, temperature float64) *ChatProvider {
	return newChatProvider(ProviderOpenAI, cfg, temperature, 300)
}

// NewDeepSeek 创建 DeepSeek 服务
func NewDeepSeek(cfg config.ProviderConfig, temperature float64) *ChatProvider {
	return newChatProvider(ProviderDeepSeek, cfg, temperature, 400)
}

func newChatProvider(name string, cfg config.ProviderConfig, temperature float64, defaultTruncate int) *ChatProvider {
	if cfg.TruncateChars <= 0 {
		cfg.TruncateChars = defaultTruncate
	}
	return &ChatProvider{
		name:        name,
		cfg:         cfg,
		temperature: temperature,
		client:      &http.Client{Timeout: cfg.Timeout()},
	}
}

func (p *ChatProvider) Name() string  { return p.name }
func (p *ChatProvider) Model() string { return p.cfg.Model }

func (p *ChatProvider) Available() bool {
	return p.cfg.Enabled && p.cfg.APIKey != "" && p.cfg.BaseURL != ""
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// AnalyzeReviews 调用 chat/completions 并解析评分
func (p *ChatProvider) AnalyzeReviews(ctx context.Context, reviews []models.Review) (Scores, error) {
	if len(reviews) == 0 {
		return nil, ErrNoReviews
	}

	reqBody := chatRequest{
		Model: p.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: "You are a strict JSON API. Output JSON only."},
			{Role: "user", Content: BuildPrompt(reviews, p.cfg.TruncateChars)},
		},
		Temperature: p.temperature,
		MaxTokens:   p.cfg.MaxTokens,
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("构建请求失败: %w", err)
	}

	url := strings.TrimRight(p.cfg.BaseURL, "/") + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("创建请求失败: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)

	body, err := doRequest(p.client, p.name, req)
	if err != nil {
		return nil, err
	}

	var out chatResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, invalidFormat(p.name, "response envelope is not JSON", string(body))
	}
	if len(out.Choices) == 0 {
		return nil, invalidFormat(p.name, "response has no choices", string(body))
	}
	return ParseScores(p.name, out.Choices[0].Message.Content, reviews)
}

// doRequest 发送请求，网络错误和非 2xx 统一转换为 ProviderError
func doRequest(client *http.Client, provider string, req *http.Request) ([]byte, error) {
	resp, err := client.Do(req)
	if err != nil {
		return nil, &ProviderError{Provider: provider, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, &ProviderError{Provider: provider, StatusCode: resp.StatusCode, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &ProviderError{Provider: provider, StatusCode: resp.StatusCode, Body: Truncate(string(body), 300)}
	}
	return body, nil
}
