package recall

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/rushteam/shoprec/core"
)

// 口味画像各维度对商品打分的权重
const (
	tasteCategoryWeight = 0.4
	tasteBrandWeight    = 0.3
	tastePriceWeight    = 0.3
)

// PriceBracket 价格档位：<50 low，<200 medium，<500 high，其余 premium
func PriceBracket(price float64) string {
	switch {
	case price < 50:
		return "low"
	case price < 200:
		return "medium"
	case price < 500:
		return "high"
	default:
		return "premium"
	}
}

// TasteProfile 是用户对品类/品牌/价格档位的偏好分布，各维度按总权重归一化。
type TasteProfile struct {
	Categories map[string]float64
	Brands     map[string]float64
	Prices     map[string]float64

	// Touched 用户购买或交互过的商品，不再作为候选
	Touched map[string]struct{}
}

// Empty 是否没有任何偏好
func (t *TasteProfile) Empty() bool {
	return t == nil || len(t.Categories)+len(t.Brands)+len(t.Prices) == 0
}

// Score 商品与口味的匹配分
func (t *TasteProfile) Score(p *core.Product) float64 {
	if t.Empty() || p == nil {
		return 0
	}
	s := 0.0
	if p.Category != "" {
		s += tasteCategoryWeight * t.Categories[p.Category]
	}
	if p.Brand != "" {
		s += tasteBrandWeight * t.Brands[p.Brand]
	}
	if p.Price > 0 {
		s += tastePriceWeight * t.Prices[PriceBracket(p.Price)]
	}
	return s
}

// TasteContent 是基于用户口味画像的内容召回源。
//
// 画像来自两部分：订单行（purchase 权重 × 件数）与行为日志（类型权重 × 行为值）。
// 未购买、未交互过的已上架商品都会被打分，分数可以为 0。
type TasteContent struct {
	Catalog core.Catalog
	Logger  zerolog.Logger
}

func (r *TasteContent) Name() string { return "recall.content" }

func (r *TasteContent) Recall(ctx context.Context, rctx *core.RecommendContext) ([]*core.Item, error) {
	if rctx == nil || rctx.UserID == "" {
		return nil, nil
	}
	return r.RecommendProducts(ctx, rctx.UserID, rctx.Limit)
}

// BuildTaste 构建用户口味画像
func (r *TasteContent) BuildTaste(ctx context.Context, userID string) (*TasteProfile, error) {
	if r.Catalog == nil {
		return nil, core.NotConfigured(core.ModuleRecall, "catalog")
	}
	t := &TasteProfile{
		Categories: make(map[string]float64),
		Brands:     make(map[string]float64),
		Prices:     make(map[string]float64),
		Touched:    make(map[string]struct{}),
	}
	total := 0.0
	add := func(productID string, w float64) error {
		t.Touched[productID] = struct{}{}
		p, err := r.Catalog.Product(ctx, productID)
		if err != nil {
			if core.IsNotFound(err) {
				return nil
			}
			return err
		}
		total += w
		if p.Category != "" {
			t.Categories[p.Category] += w
		}
		if p.Brand != "" {
			t.Brands[p.Brand] += w
		}
		if p.Price > 0 {
			t.Prices[PriceBracket(p.Price)] += w
		}
		return nil
	}

	orders, err := r.Catalog.OrdersForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("orders for user %s: %w", userID, err)
	}
	for _, o := range orders {
		items, err := r.Catalog.OrderItems(ctx, o.ID)
		if err != nil {
			return nil, fmt.Errorf("order items %s: %w", o.ID, err)
		}
		for _, it := range items {
			if err := add(it.ProductID, core.InteractionPurchase.Weight()*float64(it.Quantity)); err != nil {
				return nil, err
			}
		}
	}
	inters, err := r.Catalog.Interactions(ctx, core.InteractionFilter{UserID: userID})
	if err != nil {
		return nil, fmt.Errorf("interactions for user %s: %w", userID, err)
	}
	for _, in := range inters {
		if err := add(in.ProductID, in.Weighted()); err != nil {
			return nil, err
		}
	}

	if total > 0 {
		for _, m := range []map[string]float64{t.Categories, t.Brands, t.Prices} {
			for k := range m {
				m[k] /= total
			}
		}
	}
	return t, nil
}

// RecommendProducts 按口味画像为用户推荐商品，画像为空时返回空结果
func (r *TasteContent) RecommendProducts(ctx context.Context, userID string, n int) ([]*core.Item, error) {
	taste, err := r.BuildTaste(ctx, userID)
	if err != nil {
		return nil, err
	}
	if taste.Empty() {
		return nil, nil
	}
	products, err := r.Catalog.Products(ctx)
	if err != nil {
		return nil, fmt.Errorf("load products: %w", err)
	}
	out := make([]*core.Item, 0, len(products))
	for _, p := range products {
		if !p.Approved() {
			continue
		}
		if _, ok := taste.Touched[p.ID]; ok {
			continue
		}
		it := core.NewItem(p.ID)
		it.Product = p
		it.Score = taste.Score(p)
		out = append(out, it)
	}
	core.SortItems(out)
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	r.Logger.Debug().Str("user_id", userID).Int("items", len(out)).Msg("taste content recall")
	return out, nil
}
