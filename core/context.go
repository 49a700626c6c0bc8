package core

import "github.com/rushteam/shoprec/pkg/utils"

// RecommendContext 承载一次推荐请求的用户/策略信息，贯穿整个 Pipeline 透传。
type RecommendContext struct {
	UserID   string
	Strategy string
	Limit    int

	// Seen 是用户已购买的商品，ExcludeSeen 过滤节点据此剔除
	Seen map[string]struct{}

	// Labels 是请求级标签，例如 fallback=popularity
	Labels map[string]utils.Label

	// Params 请求级参数
	Params map[string]any
}

// MarkSeen 记录已见商品
func (rctx *RecommendContext) MarkSeen(ids ...string) {
	if rctx.Seen == nil {
		rctx.Seen = make(map[string]struct{}, len(ids))
	}
	for _, id := range ids {
		rctx.Seen[id] = struct{}{}
	}
}

// HasSeen 判断商品是否已见
func (rctx *RecommendContext) HasSeen(id string) bool {
	if rctx == nil || rctx.Seen == nil {
		return false
	}
	_, ok := rctx.Seen[id]
	return ok
}

// PutLabel 写入请求级 Label。
func (rctx *RecommendContext) PutLabel(key string, lbl utils.Label) {
	if rctx.Labels == nil {
		rctx.Labels = make(map[string]utils.Label)
	}
	if old, ok := rctx.Labels[key]; ok {
		rctx.Labels[key] = utils.MergeLabel(old, lbl)
		return
	}
	rctx.Labels[key] = lbl
}

// GetLabel 获取请求级 Label。
func (rctx *RecommendContext) GetLabel(key string) (utils.Label, bool) {
	if rctx.Labels == nil {
		return utils.Label{}, false
	}
	lbl, ok := rctx.Labels[key]
	return lbl, ok
}
