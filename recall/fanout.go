package recall

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rushteam/shoprec/core"
	"github.com/rushteam/shoprec/pipeline"
	"github.com/rushteam/shoprec/pkg/utils"
)

// 合并策略
const (
	MergeFirst    = "first"    // 按 ID 去重，保留第一个出现的
	MergeUnion    = "union"    // 全部保留
	MergePriority = "priority" // 相同 ID 保留优先级更高（Sources 中更靠前）的
	MergeWeighted = "weighted" // 分数按 Weights 加权求和
)

// Fanout 是一个 Recall Node：并发执行多个召回源，并合并结果。
// 支持超时、限流与多种合并策略。
//
// 每个召回源收到一份 rctx 副本，Limit 为 rctx.Limit × LimitFactor（LimitFactor <= 1 时不放大），
// 最终条数由后续的 TopN 节点决定。
type Fanout struct {
	Sources       []Source
	Weights       []float64     // MergeWeighted 使用，与 Sources 一一对应，缺省为 1
	Timeout       time.Duration // 每个召回源的超时时间
	MaxConcurrent int           // 最大并发数（0 表示无限制）
	MergeStrategy string
	LimitFactor   int

	// IgnoreErrors 为 true 时单个召回源出错只返回空结果，不中断其他召回源
	IgnoreErrors bool
}

func (n *Fanout) Name() string        { return "recall.fanout" }
func (n *Fanout) Kind() pipeline.Kind { return pipeline.KindRecall }

func (n *Fanout) Process(
	ctx context.Context,
	rctx *core.RecommendContext,
	_ []*core.Item,
) ([]*core.Item, error) {
	if len(n.Sources) == 0 {
		return nil, nil
	}

	sub := core.RecommendContext{}
	if rctx != nil {
		sub = *rctx
	}
	if n.LimitFactor > 1 && sub.Limit > 0 {
		sub.Limit *= n.LimitFactor
	}

	results := make([][]*core.Item, len(n.Sources))
	eg, egCtx := errgroup.WithContext(ctx)
	if n.MaxConcurrent > 0 {
		eg.SetLimit(n.MaxConcurrent)
	}
	for i, src := range n.Sources {
		eg.Go(func() error {
			recallCtx := egCtx
			if n.Timeout > 0 {
				var cancel context.CancelFunc
				recallCtx, cancel = context.WithTimeout(egCtx, n.Timeout)
				defer cancel()
			}
			local := sub
			items, err := src.Recall(recallCtx, &local)
			if err != nil {
				if n.IgnoreErrors {
					return nil
				}
				return err
			}
			// 记录召回来源 label，方便 explain / 观测
			for _, it := range items {
				it.PutLabel(utils.LabelRecallSource, utils.NewLabel(src.Name(), "recall"))
			}
			results[i] = items
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	switch n.MergeStrategy {
	case MergeWeighted:
		return n.mergeWeighted(results), nil
	case MergeUnion:
		return flatten(results), nil
	default:
		// 结果按 Sources 顺序排列，first 与 priority 的效果一致
		return mergeFirst(flatten(results)), nil
	}
}

func flatten(results [][]*core.Item) []*core.Item {
	var all []*core.Item
	for _, items := range results {
		all = append(all, items...)
	}
	return all
}

// mergeFirst 按 ID 去重，保留第一个出现的，并合并来源 label。
func mergeFirst(all []*core.Item) []*core.Item {
	seen := make(map[string]*core.Item, len(all))
	out := make([]*core.Item, 0, len(all))
	for _, it := range all {
		if it == nil {
			continue
		}
		if old, ok := seen[it.ID]; ok {
			for k, v := range it.Labels {
				old.PutLabel(k, v)
			}
			continue
		}
		seen[it.ID] = it
		out = append(out, it)
	}
	return out
}

func (n *Fanout) weight(i int) float64 {
	if i < len(n.Weights) {
		return n.Weights[i]
	}
	return 1
}

// mergeWeighted 同一商品的分数按召回源权重累加：score = Σ w_i × s_i，结果按分数降序。
func (n *Fanout) mergeWeighted(results [][]*core.Item) []*core.Item {
	var (
		byID = make(map[string]*core.Item)
		out  []*core.Item
	)
	for i, items := range results {
		w := n.weight(i)
		for _, it := range items {
			if it == nil {
				continue
			}
			old, ok := byID[it.ID]
			if !ok {
				merged := core.NewItem(it.ID)
				merged.Product = it.Product
				merged.Score = w * it.Score
				for k, v := range it.Labels {
					merged.PutLabel(k, v)
				}
				byID[it.ID] = merged
				out = append(out, merged)
				continue
			}
			old.Score += w * it.Score
			if old.Product == nil {
				old.Product = it.Product
			}
			for k, v := range it.Labels {
				old.PutLabel(k, v)
			}
		}
	}
	core.SortItems(out)
	return out
}
