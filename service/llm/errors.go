package llm

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrProviderUnavailable 网络错误、超时或非 2xx 响应
	ErrProviderUnavailable = errors.New("llm provider unavailable")
	// ErrInvalidResponseFormat 模型输出无法解析为评分
	ErrInvalidResponseFormat = errors.New("llm invalid response format")
	// ErrNoReviews 没有可分析的评论
	ErrNoReviews = errors.New("no reviews to analyze")
)

// ProviderError 单个服务调用失败
type ProviderError struct {
	Provider   string
	StatusCode int // 0 表示未拿到响应
	Body       string
	Err        error
}

func (e *ProviderError) Error() string {
	var b strings.Builder
	b.WriteString(e.Provider)
	b.WriteString(": provider unavailable")
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, " (status %d)", e.StatusCode)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	} else if e.Body != "" {
		b.WriteString(": ")
		b.WriteString(e.Body)
	}
	return b.String()
}

func (e *ProviderError) Unwrap() error { return e.Err }

func (e *ProviderError) Is(target error) bool { return target == ErrProviderUnavailable }

// InvalidResponseFormatError 模型返回的文本不是可接受的评分结构
type InvalidResponseFormatError struct {
	Provider string
	Reason   string
	Snippet  string // 原始输出片段，便于排查
}

func (e *InvalidResponseFormatError) Error() string {
	return fmt.Sprintf("%s: invalid response format: %s", e.Provider, e.Reason)
}

func (e *InvalidResponseFormatError) Is(target error) bool { return target == ErrInvalidResponseFormat }

// AllProvidersFailedError 所有服务均失败，Errors 与 Attempts 一一对应
type AllProvidersFailedError struct {
	Attempts []Attempt
	Errors   []error
}

func (e *AllProvidersFailedError) Error() string {
	if len(e.Errors) == 0 {
		return "all llm providers failed: no provider available"
	}
	parts := make([]string, 0, len(e.Errors))
	for _, err := range e.Errors {
		parts = append(parts, err.Error())
	}
	return "all llm providers failed: " + strings.Join(parts, "; ")
}

func (e *AllProvidersFailedError) Unwrap() []error { return e.Errors }
