package core

import "context"

// Embedder 把文本编码为定长向量（外部 Embedding 模型）。
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
}

// SentimentScorer 返回文本情感分，范围 [-1,1]。
type SentimentScorer interface {
	Score(ctx context.Context, text string) (float64, error)
}

// EmbedderFunc 允许把普通函数当作 Embedder 使用
type EmbedderFunc func(ctx context.Context, text string) ([]float64, error)

func (f EmbedderFunc) Embed(ctx context.Context, text string) ([]float64, error) {
	return f(ctx, text)
}

// SentimentFunc 允许把普通函数当作 SentimentScorer 使用
type SentimentFunc func(ctx context.Context, text string) (float64, error)

func (f SentimentFunc) Score(ctx context.Context, text string) (float64, error) {
	return f(ctx, text)
}
