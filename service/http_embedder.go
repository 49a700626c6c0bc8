// Package service 提供 core.Embedder 的实现：HTTP 向量服务客户端与确定性的哈希向量器。
package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/rushteam/shoprec/core"
)

// AuthConfig 认证配置
type AuthConfig struct {
	Type   string // "bearer" 或 "api_key"
	Token  string
	Header string // api_key 使用的 header，缺省 X-API-Key
}

// HTTPEmbedder 是远程 Embedding 服务的客户端。
//
// 协议：
//   - 请求：POST {Endpoint}，body {"input": "...", "model": "..."}
//   - 响应：{"embedding": [...]} 或 {"data": [{"embedding": [...]}]}
//
// 连续失败达到阈值后熔断（gobreaker），熔断期间直接返回 UNAVAILABLE；
// 可选的令牌桶限流保护下游服务。
type HTTPEmbedder struct {
	// Endpoint 服务地址，例如 "http://localhost:8000/embed"
	Endpoint string

	// Model 模型名称（可选）
	Model string

	// Dimension 期望的向量维度，> 0 时校验
	Dimension int

	Auth *AuthConfig

	httpClient *http.Client
	limiter    *rate.Limiter
	breaker    *gobreaker.CircuitBreaker[[]float64]
	logger     zerolog.Logger
}

// HTTPEmbedderOption 配置选项
type HTTPEmbedderOption func(*HTTPEmbedder)

// WithTimeout 设置单次请求超时
func WithTimeout(timeout time.Duration) HTTPEmbedderOption {
	return func(e *HTTPEmbedder) {
		if timeout > 0 {
			e.httpClient.Timeout = timeout
		}
	}
}

// WithRateLimit 设置每秒请求数上限，rps <= 0 不限流
func WithRateLimit(rps float64) HTTPEmbedderOption {
	return func(e *HTTPEmbedder) {
		if rps > 0 {
			e.limiter = rate.NewLimiter(rate.Limit(rps), max(1, int(rps)))
		}
	}
}

// WithModel 设置模型名称
func WithModel(model string) HTTPEmbedderOption {
	return func(e *HTTPEmbedder) { e.Model = model }
}

// WithDimension 设置期望维度
func WithDimension(dim int) HTTPEmbedderOption {
	return func(e *HTTPEmbedder) { e.Dimension = dim }
}

// WithAuth 设置认证信息
func WithAuth(auth *AuthConfig) HTTPEmbedderOption {
	return func(e *HTTPEmbedder) { e.Auth = auth }
}

// WithHTTPClient 设置自定义 HTTP 客户端
func WithHTTPClient(c *http.Client) HTTPEmbedderOption {
	return func(e *HTTPEmbedder) { e.httpClient = c }
}

// WithLogger 设置日志
func WithLogger(logger zerolog.Logger) HTTPEmbedderOption {
	return func(e *HTTPEmbedder) { e.logger = logger }
}

// BreakerConfig 熔断参数
type BreakerConfig struct {
	FailureThreshold uint32
	Timeout          time.Duration // 熔断后多久进入半开
}

// WithBreaker 设置熔断参数
func WithBreaker(cfg BreakerConfig) HTTPEmbedderOption {
	return func(e *HTTPEmbedder) { e.breaker = newBreaker(e, cfg) }
}

func newBreaker(e *HTTPEmbedder, cfg BreakerConfig) *gobreaker.CircuitBreaker[[]float64] {
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return gobreaker.NewCircuitBreaker[[]float64](gobreaker.Settings{
		Name:        "embedder",
		MaxRequests: 1,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		// 调用方取消不计入失败
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			e.logger.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state changed")
		},
	})
}

// NewHTTPEmbedder 创建 HTTP Embedding 客户端
func NewHTTPEmbedder(endpoint string, opts ...HTTPEmbedderOption) *HTTPEmbedder {
	e := &HTTPEmbedder{
		Endpoint:   endpoint,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		logger:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.breaker == nil {
		e.breaker = newBreaker(e, BreakerConfig{})
	}
	return e
}

// BreakerState 返回熔断器状态，用于监控
func (e *HTTPEmbedder) BreakerState() string {
	return e.breaker.State().String()
}

type embedRequest struct {
	Input string `json:"input"`
	Model string `json:"model,omitempty"`
}

type embedResponse struct {
	Embedding []float64 `json:"embedding"`
	Data      []struct {
		Embedding []float64 `json:"embedding"`
	} `json:"data"`
}

// Embed 实现 core.Embedder
func (e *HTTPEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	if e == nil || e.Endpoint == "" {
		return nil, core.NotConfigured(core.ModuleService, "embedding endpoint")
	}
	if e.limiter != nil {
		if err := e.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}
	vec, err := e.breaker.Execute(func() ([]float64, error) {
		return e.do(ctx, text)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, core.WrapDomainError(core.ModuleService, core.ErrorCodeUnavailable, "embedder circuit open", err)
	}
	if err != nil {
		return nil, err
	}
	if e.Dimension > 0 && len(vec) != e.Dimension {
		return nil, core.NewDomainError(core.ModuleService, core.ErrorCodeInvalidInput,
			fmt.Sprintf("embedding dimension %d, want %d", len(vec), e.Dimension))
	}
	return vec, nil
}

func (e *HTTPEmbedder) do(ctx context.Context, text string) ([]float64, error) {
	body, err := json.Marshal(embedRequest{Input: text, Model: e.Model})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	e.addAuth(req)

	resp, err := e.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, core.WrapDomainError(core.ModuleService, core.ErrorCodeUnavailable, "embedding request failed", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, core.NewDomainError(core.ModuleService, core.ErrorCodeUnavailable,
			fmt.Sprintf("embedding service error: status=%d, body=%s", resp.StatusCode, string(raw)))
	}
	var out embedResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}
	switch {
	case len(out.Embedding) > 0:
		return out.Embedding, nil
	case len(out.Data) > 0 && len(out.Data[0].Embedding) > 0:
		return out.Data[0].Embedding, nil
	default:
		return nil, fmt.Errorf("embedding response has no vector")
	}
}

func (e *HTTPEmbedder) addAuth(req *http.Request) {
	if e.Auth == nil || e.Auth.Token == "" {
		return
	}
	switch e.Auth.Type {
	case "api_key":
		h := e.Auth.Header
		if h == "" {
			h = "X-API-Key"
		}
		req.Header.Set(h, e.Auth.Token)
	default:
		req.Header.Set("Authorization", "Bearer "+e.Auth.Token)
	}
}

var _ core.Embedder = (*HTTPEmbedder)(nil)
