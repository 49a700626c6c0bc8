package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/rushteam/shoprec/core"
	"github.com/rushteam/shoprec/filter"
	"github.com/rushteam/shoprec/metrics"
	"github.com/rushteam/shoprec/pipeline"
	"github.com/rushteam/shoprec/pkg/utils"
	"github.com/rushteam/shoprec/recall"
	"github.com/rushteam/shoprec/rerank"
)

// ParseStrategy 规范化策略名，空串为 hybrid
func ParseStrategy(s string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", StrategyHybrid:
		return StrategyHybrid, nil
	case StrategyCollaborative:
		return StrategyCollaborative, nil
	case StrategyContentBased:
		return StrategyContentBased, nil
	default:
		return "", core.NewDomainError(core.ModuleEngine, core.ErrorCodeInvalidInput, "engine: unknown strategy "+s)
	}
}

// history 是用户的历史摘要
type history struct {
	purchased    []string
	orders       int
	interactions int
}

func (h history) empty() bool {
	return h.orders == 0 && h.interactions == 0
}

func (e *Engine) loadHistory(ctx context.Context, userID string) (history, error) {
	var h history
	orders, err := e.catalog.OrdersForUser(ctx, userID)
	if err != nil {
		return h, fmt.Errorf("orders for user %s: %w", userID, err)
	}
	h.orders = len(orders)
	seen := make(map[string]struct{})
	for _, o := range orders {
		items, err := e.catalog.OrderItems(ctx, o.ID)
		if err != nil {
			return h, fmt.Errorf("order items %s: %w", o.ID, err)
		}
		for _, it := range items {
			if _, ok := seen[it.ProductID]; !ok {
				seen[it.ProductID] = struct{}{}
				h.purchased = append(h.purchased, it.ProductID)
			}
		}
	}
	inters, err := e.catalog.Interactions(ctx, core.InteractionFilter{UserID: userID})
	if err != nil {
		return h, fmt.Errorf("interactions for user %s: %w", userID, err)
	}
	h.interactions = len(inters)
	return h, nil
}

// Recommend 为用户推荐商品。
//
// 没有任何订单与行为的用户直接返回热门商品；有历史但策略结果为空时，
// 同样退化为热门商品（剔除已购）。结果带 recall_source 与 strategy 标签。
func (e *Engine) Recommend(ctx context.Context, userID string, limit int, strategy string) ([]*core.Item, error) {
	if err := e.requireCatalog(); err != nil {
		return nil, err
	}
	strategy, err := ParseStrategy(strategy)
	if err != nil {
		return nil, err
	}
	if userID == "" {
		return nil, core.NewDomainError(core.ModuleEngine, core.ErrorCodeInvalidInput, "engine: empty user id")
	}
	rctx := &core.RecommendContext{
		UserID:   userID,
		Strategy: strategy,
		Limit:    e.limit(limit),
	}

	h, err := e.loadHistory(ctx, userID)
	if err != nil {
		return nil, err
	}
	rctx.MarkSeen(h.purchased...)
	if h.empty() {
		return e.popular(ctx, rctx, FallbackNoHistory)
	}

	items, err := e.strategyPipeline(strategy).Run(ctx, rctx, nil)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return e.popular(ctx, rctx, FallbackEmptyResult)
	}
	for _, it := range items {
		it.PutLabel(utils.LabelStrategy, utils.NewLabel(strategy, "engine"))
	}
	return items, nil
}

func (e *Engine) strategyPipeline(strategy string) *pipeline.Pipeline {
	var source pipeline.Node
	switch strategy {
	case StrategyCollaborative:
		source = recall.Node(e.collaborativeSource())
	case StrategyContentBased:
		source = recall.Node(e.contentSource())
	default:
		source = &recall.Fanout{
			Sources:       []recall.Source{e.collaborativeSource(), e.contentSource()},
			Weights:       []float64{hybridCFWeight, hybridContentWeight},
			MergeStrategy: recall.MergeWeighted,
			LimitFactor:   2,
		}
	}
	return &pipeline.Pipeline{
		Name: "recommend." + strategy,
		Nodes: []pipeline.Node{
			source,
			filter.NewFilterNode(&filter.ExcludeSeen{}, &filter.ApprovedOnly{Catalog: e.catalog}),
			&rerank.SortNode{},
			&rerank.TopNNode{},
		},
		Observer: e.observer("recommend." + strategy),
	}
}

func (e *Engine) contentSource() recall.Source {
	return &recall.TasteContent{Catalog: e.catalog, Logger: e.logger}
}

func (e *Engine) collaborativeSource() recall.Source {
	return &cachedUserCF{store: e.store, cf: e.userCF()}
}

// popular 热门兜底；rctx.Seen 中的已购商品不会出现
func (e *Engine) popular(ctx context.Context, rctx *core.RecommendContext, reason string) ([]*core.Item, error) {
	p := &pipeline.Pipeline{
		Name: "recommend.popular",
		Nodes: []pipeline.Node{
			recall.Node(&recall.Popular{Catalog: e.catalog}),
			&rerank.TopNNode{},
		},
		Observer: e.observer("recommend.popular"),
	}
	items, err := p.Run(ctx, rctx, nil)
	if err != nil {
		return nil, err
	}
	metrics.RecordFallback(reason)
	rctx.PutLabel(utils.LabelFallback, utils.NewLabel("popularity", reason))
	e.logger.Debug().Str("user_id", rctx.UserID).Str("reason", reason).Int("items", len(items)).Msg("popularity fallback")
	for _, it := range items {
		it.PutLabel(utils.LabelFallback, utils.NewLabel("popularity", reason))
		it.PutLabel(utils.LabelStrategy, utils.NewLabel(rctx.Strategy, "engine"))
	}
	return items, nil
}

// cachedUserCF 先读批量预计算的用户推荐，没有缓存时现场计算协同过滤
type cachedUserCF struct {
	store core.SimilarityStore
	cf    *recall.UserCF
}

func (s *cachedUserCF) Name() string { return s.cf.Name() }

func (s *cachedUserCF) Recall(ctx context.Context, rctx *core.RecommendContext) ([]*core.Item, error) {
	if s.store != nil {
		rows, err := s.store.UserSuggestions(ctx, rctx.UserID)
		if err != nil {
			return nil, err
		}
		if len(rows) > 0 {
			out := make([]*core.Item, 0, len(rows))
			for _, r := range rows {
				if rctx.Limit > 0 && len(out) >= rctx.Limit {
					break
				}
				it := core.NewItem(r.ProductID)
				it.Score = r.Score
				it.Meta["cache"] = s.store.Name()
				out = append(out, it)
			}
			return out, nil
		}
	}
	return s.cf.Recall(ctx, rctx)
}
