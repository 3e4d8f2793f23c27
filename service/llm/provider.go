package llm

import (
	"context"

	"nullfake/models"
)

// Scores 评论 ID -> 造假概率（0-100，越高越可能是假评论）
type Scores map[string]float64

// Provider 一个大模型后端
type Provider interface {
	Name() string
	Model() string
	// Available 是否已配置（启用且有密钥/地址）
	Available() bool
	AnalyzeReviews(ctx context.Context, reviews []models.Review) (Scores, error)
}

// 服务名称
const (
	ProviderOpenAI   = "openai"
	ProviderDeepSeek = "deepseek"
	ProviderOllama   = "ollama"
)
