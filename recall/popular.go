package recall

import (
	"context"
	"fmt"

	"github.com/rushteam/shoprec/core"
)

// Popular 是热门召回：按商品评分降序（同分按 ID），只取有评分的已上架商品。
// rctx.Seen 中的商品在截断前剔除，保证兜底列表足量。
type Popular struct {
	Catalog core.Catalog
}

func (r *Popular) Name() string { return "recall.popular" }

func (r *Popular) Recall(ctx context.Context, rctx *core.RecommendContext) ([]*core.Item, error) {
	if r.Catalog == nil {
		return nil, core.NotConfigured(core.ModuleRecall, "catalog")
	}
	products, err := r.Catalog.Products(ctx)
	if err != nil {
		return nil, fmt.Errorf("load products: %w", err)
	}
	out := make([]*core.Item, 0, len(products))
	for _, p := range products {
		if !p.HasRating() || !p.Approved() || rctx.HasSeen(p.ID) {
			continue
		}
		it := core.NewItem(p.ID)
		it.Product = p
		it.Score = p.RatingValue()
		out = append(out, it)
	}
	core.SortItems(out)
	limit := 0
	if rctx != nil {
		limit = rctx.Limit
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
