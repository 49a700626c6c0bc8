// Package engine 是推荐编排层：对外暴露在线查询（推荐、相似商品、高收益商品）
// 与批量预计算任务，内部把召回源、过滤、重排组装成 pipeline.Pipeline。
//
// 重资源（内容向量索引、品类/品牌全集）由 lazy.Value 持有，首次使用时构造；
// 批任务重建后直接换入，读请求始终看到一份完整的索引。
package engine

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/rushteam/shoprec/core"
	"github.com/rushteam/shoprec/feature"
	"github.com/rushteam/shoprec/job"
	"github.com/rushteam/shoprec/metrics"
	"github.com/rushteam/shoprec/pipeline"
	"github.com/rushteam/shoprec/pkg/lazy"
	"github.com/rushteam/shoprec/rank"
	"github.com/rushteam/shoprec/recall"
	"github.com/rushteam/shoprec/vector"
)

// Strategy 推荐策略
const (
	StrategyCollaborative = "collaborative"
	StrategyContentBased  = "content_based"
	StrategyHybrid        = "hybrid"
)

// 兜底原因（metrics 与 fallback label）
const (
	FallbackNoHistory   = "no_history"
	FallbackEmptyResult = "empty_result"
)

// 混合策略权重
const (
	hybridCFWeight      = 0.7
	hybridContentWeight = 0.3
)

// Mining 关联规则参数
type Mining struct {
	MinSupport    float64
	MinConfidence float64
	TopN          int
	MinBasketSize int
}

// Engine 推荐引擎。字段在 New 之后只读，方法并发安全。
type Engine struct {
	catalog   core.Catalog
	store     core.SimilarityStore
	embedder  core.Embedder
	sentiment core.SentimentScorer
	defaults  core.RecommendDefaults
	logger    zerolog.Logger
	now       func() time.Time

	mining       Mining
	contentTopN  int
	minPairScore float64
	concurrency  int
	rps          float64

	profiles *feature.ProfileBuilder
	index    *lazy.Value[*vector.FlatIndex]
	dims     *lazy.Value[*feature.Dimensions]
	runner   *job.Runner
	benefit  *rank.BenefitScorer
}

// Option 引擎选项
type Option func(*Engine)

// WithEmbedder 设置内容向量化服务；未设置时内容相似度返回 NOT_CONFIGURED
func WithEmbedder(e core.Embedder) Option {
	return func(en *Engine) { en.embedder = e }
}

// WithSentiment 设置评论情感打分器
func WithSentiment(s core.SentimentScorer) Option {
	return func(en *Engine) { en.sentiment = s }
}

// WithDefaults 设置推荐默认值（通常是 *config.Config）
func WithDefaults(d core.RecommendDefaults) Option {
	return func(en *Engine) {
		if d != nil {
			en.defaults = d
		}
	}
}

// WithLogger 设置日志
func WithLogger(l zerolog.Logger) Option {
	return func(en *Engine) { en.logger = l }
}

// WithClock 注入时钟（趋势因子使用）
func WithClock(now func() time.Time) Option {
	return func(en *Engine) { en.now = now }
}

// WithMining 设置关联规则参数，零值字段保留默认
func WithMining(m Mining) Option {
	return func(en *Engine) {
		if m.MinSupport > 0 {
			en.mining.MinSupport = m.MinSupport
		}
		if m.MinConfidence > 0 {
			en.mining.MinConfidence = m.MinConfidence
		}
		if m.TopN > 0 {
			en.mining.TopN = m.TopN
		}
		if m.MinBasketSize > 0 {
			en.mining.MinBasketSize = m.MinBasketSize
		}
	}
}

// WithContentTopN 内容相似度批任务每个商品保留的近邻数
func WithContentTopN(n int) Option {
	return func(en *Engine) {
		if n > 0 {
			en.contentTopN = n
		}
	}
}

// WithMinPairScore 两两相似度批任务的最低分
func WithMinPairScore(s float64) Option {
	return func(en *Engine) { en.minPairScore = s }
}

// WithIndexBuild 设置索引构建的并发度与限速（rps <= 0 不限速）
func WithIndexBuild(concurrency int, rps float64) Option {
	return func(en *Engine) {
		en.concurrency = concurrency
		en.rps = rps
	}
}

// New 创建引擎。catalog 与 store 为必需依赖，缺失时相关方法返回 NOT_CONFIGURED。
func New(catalog core.Catalog, st core.SimilarityStore, opts ...Option) *Engine {
	e := &Engine{
		catalog:  catalog,
		store:    st,
		defaults: core.BuiltinDefaults{},
		logger:   zerolog.Nop(),
		now:      time.Now,
		mining: Mining{
			MinSupport:    recall.DefaultMinSupport,
			MinConfidence: recall.DefaultMinConfidence,
			TopN:          recall.DefaultSuggestTopN,
			MinBasketSize: 2,
		},
		contentTopN:  10,
		minPairScore: recall.DefaultMinPairScore,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.With().Str("component", "engine").Logger()
	e.profiles = feature.NewProfileBuilder(catalog, e.logger)
	e.dims = lazy.New(e.profiles.LoadDimensions)
	e.index = lazy.New(e.buildIndex)
	e.runner = job.NewRunner(e.logger)
	e.benefit = &rank.BenefitScorer{
		Catalog:   catalog,
		Sentiment: e.sentiment,
		Now:       e.now,
		Logger:    e.logger,
	}
	return e
}

// Close 释放缓存连接
func (e *Engine) Close() error {
	if e.store == nil {
		return nil
	}
	return e.store.Close()
}

// Runner 返回批任务执行器
func (e *Engine) Runner() *job.Runner {
	return e.runner
}

func (e *Engine) buildIndex(ctx context.Context) (*vector.FlatIndex, error) {
	if e.embedder == nil {
		return nil, core.NotConfigured(core.ModuleEngine, "embedder")
	}
	if e.catalog == nil {
		return nil, core.NotConfigured(core.ModuleEngine, "catalog")
	}
	products, err := e.catalog.Products(ctx)
	if err != nil {
		return nil, err
	}
	return vector.NewBuilder(e.embedder, e.concurrency, e.rps, e.logger).Build(ctx, products)
}

// Index 返回内容向量索引，首次调用时构建
func (e *Engine) Index(ctx context.Context) (*vector.FlatIndex, error) {
	return e.index.Get(ctx)
}

func (e *Engine) userCF() *recall.UserCF {
	return &recall.UserCF{
		Profiles:     e.profiles,
		Dimensions:   e.dims.Get,
		SimilarUsers: e.defaults.DefaultSimilarUsers(),
		Logger:       e.logger,
	}
}

func (e *Engine) limit(n int) int {
	if n > 0 {
		return n
	}
	return e.defaults.DefaultLimit()
}

// observer 把节点耗时写入 metrics，并输出 debug 日志
func (e *Engine) observer(name string) pipeline.Observer {
	return func(node pipeline.Node, in, out int, elapsed time.Duration, err error) {
		metrics.ObserveNode(name, node.Name(), elapsed)
		ev := e.logger.Debug()
		if err != nil {
			ev = e.logger.Warn().Err(err)
		}
		ev.Str("pipeline", name).Str("node", node.Name()).Int("in", in).Int("out", out).
			Dur("elapsed", elapsed).Msg("pipeline node")
	}
}

func (e *Engine) requireCatalog() error {
	if e.catalog == nil {
		return core.NotConfigured(core.ModuleEngine, "catalog")
	}
	return nil
}

func (e *Engine) requireStore() error {
	if e.store == nil {
		return core.NotConfigured(core.ModuleEngine, "similarity store")
	}
	return nil
}
