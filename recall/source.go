package recall

import (
	"context"

	"github.com/rushteam/shoprec/core"
	"github.com/rushteam/shoprec/pipeline"
	"github.com/rushteam/shoprec/pkg/utils"
)

// Source 表示一个可复用的召回源（热门/CF/内容/规则/...）。
// 召回源读取 rctx.Limit 决定返回条数，<= 0 表示不限制。
type Source interface {
	Name() string
	Recall(ctx context.Context, rctx *core.RecommendContext) ([]*core.Item, error)
}

// Node 把单个召回源包装为 Pipeline 的 Recall Node，并打上 recall_source 标签
func Node(src Source) pipeline.Node {
	return &sourceNode{src: src}
}

type sourceNode struct {
	src Source
}

func (n *sourceNode) Name() string        { return n.src.Name() }
func (n *sourceNode) Kind() pipeline.Kind { return pipeline.KindRecall }

func (n *sourceNode) Process(
	ctx context.Context,
	rctx *core.RecommendContext,
	_ []*core.Item,
) ([]*core.Item, error) {
	items, err := n.src.Recall(ctx, rctx)
	if err != nil {
		return nil, err
	}
	for _, it := range items {
		it.PutLabel(utils.LabelRecallSource, utils.NewLabel(n.src.Name(), "recall"))
	}
	return items, nil
}

// scoredIDs 把 id->score 转为按分数降序（同分按 ID）排序的 Item 列表并截断
func scoredIDs(scores map[string]float64, limit int) []*core.Item {
	out := make([]*core.Item, 0, len(scores))
	for id, s := range scores {
		it := core.NewItem(id)
		it.Score = s
		out = append(out, it)
	}
	core.SortItems(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
