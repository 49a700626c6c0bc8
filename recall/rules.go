package recall

import (
	"context"
	"fmt"

	"github.com/rushteam/shoprec/core"
	"github.com/rushteam/shoprec/mining"
)

// 关联规则挖掘缺省参数
const (
	DefaultMinSupport    = 0.05
	DefaultMinConfidence = 0.2
	DefaultSuggestTopN   = 5
)

// RecommendFromRules 取前件包含 productID 的规则，后件商品分数为匹配规则的置信度之和，
// 排除 productID 本身，降序（同分按 ID）截断到 topN（<= 0 不截断）。
func RecommendFromRules(productID string, rules []mining.Rule, topN int) []*core.Item {
	scores := make(map[string]float64)
	for _, r := range rules {
		if !r.HasAntecedent(productID) {
			continue
		}
		for _, c := range r.Consequent {
			if c == productID {
				continue
			}
			scores[c] += r.Confidence
		}
	}
	return scoredIDs(scores, topN)
}

// SuggestionRecords 为每个商品生成关联推荐记录，Rank 从 1 开始
func SuggestionRecords(products []*core.Product, rules []mining.Rule, topN int) []core.SuggestionRecord {
	var out []core.SuggestionRecord
	for _, p := range products {
		for i, it := range RecommendFromRules(p.ID, rules, topN) {
			out = append(out, core.SuggestionRecord{
				ProductID:          p.ID,
				SuggestedProductID: it.ID,
				Score:              it.Score,
				Rank:               i + 1,
			})
		}
	}
	return out
}

// AssociationRules 现场挖掘购物篮关联规则，给出"经常一起购买"的商品。
type AssociationRules struct {
	Catalog       core.Catalog
	MinSupport    float64
	MinConfidence float64
	MinBasketSize int
}

func (s *AssociationRules) Name() string { return "similar.association" }

// Rules 挖掘当前全部购物篮的规则；没有购物篮时返回空
func (s *AssociationRules) Rules(ctx context.Context) ([]mining.Rule, error) {
	if s.Catalog == nil {
		return nil, core.NotConfigured(core.ModuleMining, "catalog")
	}
	baskets, err := s.Catalog.Baskets(ctx, s.MinBasketSize)
	if err != nil {
		return nil, fmt.Errorf("load baskets: %w", err)
	}
	support, confidence := s.MinSupport, s.MinConfidence
	if support == 0 {
		support = DefaultMinSupport
	}
	if confidence == 0 {
		confidence = DefaultMinConfidence
	}
	return mining.Mine(baskets, support, confidence)
}

func (s *AssociationRules) Similar(ctx context.Context, productID string, k int) ([]*core.Item, error) {
	rules, err := s.Rules(ctx)
	if err != nil {
		return nil, err
	}
	return RecommendFromRules(productID, rules, k), nil
}
