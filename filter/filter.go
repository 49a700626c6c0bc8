package filter

import (
	"context"

	"github.com/rushteam/shoprec/core"
)

// Filter 判断候选商品是否从结果中剔除，返回 true 表示剔除。
//
// 在线推荐与相似商品链路都会挂 ExcludeSeen（已购或源商品）与 ApprovedOnly
// （未上架或已删除的商品）；ShouldFilter 出错时 FilterNode 保留该商品。
type Filter interface {
	Name() string

	// ShouldFilter 只读 rctx，不修改 item 的分数
	ShouldFilter(ctx context.Context, rctx *core.RecommendContext, item *core.Item) (bool, error)
}
