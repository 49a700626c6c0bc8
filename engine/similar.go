package engine

import (
	"context"

	"github.com/rushteam/shoprec/core"
	"github.com/rushteam/shoprec/filter"
	"github.com/rushteam/shoprec/pipeline"
	"github.com/rushteam/shoprec/pkg/utils"
	"github.com/rushteam/shoprec/rank"
	"github.com/rushteam/shoprec/recall"
	"github.com/rushteam/shoprec/rerank"
)

// SimilarProducts 返回与 productID 相似的商品：先读缓存，没有缓存行时现场计算。
// 结果不含源商品，至多 limit 条，分数不增。
func (e *Engine) SimilarProducts(ctx context.Context, productID string, limit int, typ string) ([]*core.Item, error) {
	t, err := core.ParseSimilarityType(typ)
	if err != nil {
		return nil, err
	}
	if err := e.requireStore(); err != nil {
		return nil, err
	}
	limit = e.limit(limit)

	rows, err := e.store.SimilarProducts(ctx, productID, t, limit)
	if err != nil {
		return nil, err
	}
	var src recall.ProductSimilar
	if len(rows) > 0 {
		src = &cachedSimilar{store: e.store, rows: rows}
	} else {
		if err := e.requireCatalog(); err != nil {
			return nil, err
		}
		src = e.similarSource(t)
	}

	name := "similar." + string(t)
	p := &pipeline.Pipeline{
		Name: name,
		Nodes: []pipeline.Node{
			&similarNode{src: src, productID: productID},
			filter.NewFilterNode(
				&filter.ExcludeSeen{IDs: []string{productID}},
				&filter.ApprovedOnly{Catalog: e.catalog},
			),
			&rerank.TopNNode{},
		},
		Observer: e.observer(name),
	}
	return p.Run(ctx, &core.RecommendContext{Limit: limit}, nil)
}

func (e *Engine) similarSource(t core.SimilarityType) recall.ProductSimilar {
	switch t {
	case core.SimilarityBehavior:
		return &recall.BehaviorSimilar{Catalog: e.catalog}
	case core.SimilarityFeature:
		return &recall.FeatureSimilar{Catalog: e.catalog}
	default:
		return &recall.ContentKNN{
			Index:    e.index.Get,
			Fallback: &recall.AttributeSimilar{Catalog: e.catalog},
		}
	}
}

// similarNode 把商品到商品的相似度来源包装成 Recall Node
type similarNode struct {
	src       recall.ProductSimilar
	productID string
}

func (n *similarNode) Name() string        { return n.src.Name() }
func (n *similarNode) Kind() pipeline.Kind { return pipeline.KindRecall }

func (n *similarNode) Process(ctx context.Context, rctx *core.RecommendContext, _ []*core.Item) ([]*core.Item, error) {
	items, err := n.src.Similar(ctx, n.productID, rctx.Limit)
	if err != nil {
		return nil, err
	}
	for _, it := range items {
		it.PutLabel(utils.LabelRecallSource, utils.NewLabel(n.src.Name(), "recall"))
	}
	return items, nil
}

// cachedSimilar 直接返回已读出的缓存行
type cachedSimilar struct {
	store core.SimilarityStore
	rows  []core.SimilarityRecord
}

func (s *cachedSimilar) Name() string { return "similar.cache" }

func (s *cachedSimilar) Similar(_ context.Context, _ string, k int) ([]*core.Item, error) {
	out := make([]*core.Item, 0, len(s.rows))
	for _, r := range s.rows {
		if k > 0 && len(out) >= k {
			break
		}
		it := core.NewItem(r.ProductID2)
		it.Score = r.Score
		it.Meta["cache"] = s.store.Name()
		out = append(out, it)
	}
	return out, nil
}

// ProductSuggestions 返回“经常一起购买”的商品：先读缓存，没有缓存时现场挖掘规则
func (e *Engine) ProductSuggestions(ctx context.Context, productID string, limit int) ([]*core.Item, error) {
	if err := e.requireStore(); err != nil {
		return nil, err
	}
	limit = e.limit(limit)
	rows, err := e.store.Suggestions(ctx, productID)
	if err != nil {
		return nil, err
	}
	if len(rows) > 0 {
		out := make([]*core.Item, 0, len(rows))
		for _, r := range rows {
			if len(out) >= limit {
				break
			}
			it := core.NewItem(r.SuggestedProductID)
			it.Score = r.Score
			it.PutLabel(utils.LabelRecallSource, utils.NewLabel("similar.association", "cache"))
			out = append(out, it)
		}
		return out, nil
	}
	if err := e.requireCatalog(); err != nil {
		return nil, err
	}
	items, err := e.associationRules().Similar(ctx, productID, limit)
	if err != nil {
		return nil, err
	}
	for _, it := range items {
		it.PutLabel(utils.LabelRecallSource, utils.NewLabel("similar.association", "recall"))
	}
	return items, nil
}

func (e *Engine) associationRules() *recall.AssociationRules {
	return &recall.AssociationRules{
		Catalog:       e.catalog,
		MinSupport:    e.mining.MinSupport,
		MinConfidence: e.mining.MinConfidence,
		MinBasketSize: e.mining.MinBasketSize,
	}
}

// HighBenefitProducts 按综合收益分返回商品，Limit <= 0 时使用默认条数
func (e *Engine) HighBenefitProducts(ctx context.Context, q rank.BenefitQuery) ([]*core.Item, error) {
	if err := e.requireCatalog(); err != nil {
		return nil, err
	}
	q.Limit = e.limit(q.Limit)
	return e.benefit.HighBenefitProducts(ctx, q)
}

// CategoryAnalytics 统计品类的商品数、平均评分、平均价格
func (e *Engine) CategoryAnalytics(ctx context.Context, category string) (rank.CategoryStats, error) {
	if err := e.requireCatalog(); err != nil {
		return rank.CategoryStats{}, err
	}
	return rank.CategoryAnalytics(ctx, e.catalog, category)
}
