package engine

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/rushteam/shoprec/catalog"
	"github.com/rushteam/shoprec/config"
	"github.com/rushteam/shoprec/core"
	"github.com/rushteam/shoprec/sentiment"
	"github.com/rushteam/shoprec/service"
	"github.com/rushteam/shoprec/store"
)

// FromConfig 按配置装配目录、缓存、向量化服务并创建引擎
func FromConfig(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*Engine, error) {
	cat, err := NewCatalog(ctx, cfg.Catalog)
	if err != nil {
		return nil, err
	}
	st, err := NewStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	emb, err := NewEmbedder(cfg.Embedding, logger)
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	return New(cat, st,
		WithEmbedder(emb),
		WithSentiment(sentiment.NewKeywordScorer()),
		WithDefaults(cfg),
		WithLogger(logger),
		WithMining(Mining{
			MinSupport:    cfg.Mining.MinSupport,
			MinConfidence: cfg.Mining.MinConfidence,
			TopN:          cfg.Mining.TopN,
			MinBasketSize: cfg.Mining.MinBasketSize,
		}),
		WithContentTopN(cfg.Content.TopN),
		WithMinPairScore(cfg.Similarity.MinScore),
		WithIndexBuild(cfg.Embedding.Concurrency, cfg.Embedding.RPS),
	), nil
}

// NewCatalog 创建目录：memory 读取 fixture（为空时是空目录），postgres 连接数据库
func NewCatalog(_ context.Context, cfg config.CatalogConfig) (core.Catalog, error) {
	switch cfg.Driver {
	case config.DriverPostgres:
		db, err := catalog.OpenPostgres(cfg.DSN)
		if err != nil {
			return nil, core.WrapDomainError(core.ModuleCatalog, core.ErrorCodeUnavailable, "catalog: open postgres", err)
		}
		return catalog.NewGormCatalog(db), nil
	case config.DriverMemory, "":
		if cfg.Fixture == "" {
			return catalog.NewMemoryCatalog(catalog.Fixture{}), nil
		}
		return catalog.LoadFixture(cfg.Fixture)
	default:
		return nil, fmt.Errorf("unknown catalog driver %q", cfg.Driver)
	}
}

// NewStore 创建相似度/推荐缓存
func NewStore(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (core.SimilarityStore, error) {
	switch cfg.Store.Driver {
	case config.DriverRedis:
		rs, err := store.NewRedisStore(ctx, store.RedisOptions{
			Addr:   cfg.Store.Redis.Addr,
			DB:     cfg.Store.Redis.DB,
			Prefix: cfg.Store.Redis.Prefix,
		}, logger)
		if err != nil {
			return nil, err
		}
		rs.GracePeriod = cfg.Store.GracePeriod
		return rs, nil
	case config.DriverPostgres:
		db, err := catalog.OpenPostgres(cfg.StoreDSN())
		if err != nil {
			return nil, core.WrapDomainError(core.ModuleStore, core.ErrorCodeUnavailable, "store: open postgres", err)
		}
		return store.NewGormStore(db), nil
	case config.DriverMemory, "":
		return store.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

// NewEmbedder 创建向量化服务
func NewEmbedder(cfg config.EmbeddingConfig, logger zerolog.Logger) (core.Embedder, error) {
	switch cfg.Provider {
	case config.EmbeddingHTTP:
		opts := []service.HTTPEmbedderOption{
			service.WithTimeout(cfg.Timeout),
			service.WithRateLimit(cfg.RPS),
			service.WithModel(cfg.Model),
			service.WithDimension(cfg.Dimension),
			service.WithLogger(logger),
		}
		if cfg.APIKey != "" {
			opts = append(opts, service.WithAuth(&service.AuthConfig{Type: "bearer", Token: cfg.APIKey}))
		}
		return service.NewHTTPEmbedder(cfg.Endpoint, opts...), nil
	case config.EmbeddingHashing, "":
		return service.NewHashingEmbedder(cfg.Dimension), nil
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Provider)
	}
}
