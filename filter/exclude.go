package filter

import (
	"context"

	"github.com/rushteam/shoprec/core"
)

// ExcludeSeen 过滤掉用户已购买/已见的商品（RecommendContext.Seen）以及 IDs 中的商品。
type ExcludeSeen struct {
	// IDs 额外排除的商品，例如相似商品查询中的源商品
	IDs []string
}

func (f *ExcludeSeen) Name() string {
	return "filter.exclude_seen"
}

func (f *ExcludeSeen) ShouldFilter(
	_ context.Context,
	rctx *core.RecommendContext,
	item *core.Item,
) (bool, error) {
	if item == nil {
		return true, nil
	}
	if rctx.HasSeen(item.ID) {
		return true, nil
	}
	for _, id := range f.IDs {
		if item.ID == id {
			return true, nil
		}
	}
	return false, nil
}
