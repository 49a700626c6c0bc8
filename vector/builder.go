package vector

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/rushteam/shoprec/core"
)

// Builder 为全部商品计算内容向量并构建 FlatIndex。
//
// 商品文本为 name + " " + brand + " " + description。
// 并发度由 Concurrency 控制，Limiter 非空时每次调用 Embedder 前先取令牌。
type Builder struct {
	Embedder    core.Embedder
	Concurrency int
	Limiter     *rate.Limiter
	Logger      zerolog.Logger
}

// NewBuilder 创建构建器；rps <= 0 表示不限速
func NewBuilder(embedder core.Embedder, concurrency int, rps float64, logger zerolog.Logger) *Builder {
	b := &Builder{
		Embedder:    embedder,
		Concurrency: concurrency,
		Logger:      logger.With().Str("component", "vector_builder").Logger(),
	}
	if rps > 0 {
		burst := int(rps)
		if burst < 1 {
			burst = 1
		}
		b.Limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
	return b
}

// Build 按商品目录顺序构建索引，任一商品 Embedding 失败则整体失败。
func (b *Builder) Build(ctx context.Context, products []*core.Product) (*FlatIndex, error) {
	if b == nil || b.Embedder == nil {
		return nil, core.NotConfigured(core.ModuleVector, "embedder")
	}
	start := time.Now()
	vecs := make([][]float64, len(products))

	g, gctx := errgroup.WithContext(ctx)
	if b.Concurrency > 0 {
		g.SetLimit(b.Concurrency)
	}
	for i, p := range products {
		g.Go(func() error {
			if b.Limiter != nil {
				if err := b.Limiter.Wait(gctx); err != nil {
					return err
				}
			}
			v, err := b.Embedder.Embed(gctx, p.ContentText())
			if err != nil {
				return fmt.Errorf("embed product %s: %w", p.ID, err)
			}
			vecs[i] = v
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	idx := NewFlatIndex(0)
	for i, p := range products {
		if err := idx.Add(p.ID, vecs[i]); err != nil {
			return nil, fmt.Errorf("add product %s: %w", p.ID, err)
		}
	}
	b.Logger.Debug().Int("products", len(products)).Int("dim", idx.Dim()).
		Dur("duration", time.Since(start)).Msg("content index built")
	return idx, nil
}
