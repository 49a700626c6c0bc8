package recall

import (
	"context"
	"fmt"
	"math"
	"runtime"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/rushteam/shoprec/core"
	"github.com/rushteam/shoprec/pkg/similarity"
)

// ProductSimilar 是商品到商品的相似度来源，结果不含源商品，按分数降序，至多 k 条。
type ProductSimilar interface {
	Name() string
	Similar(ctx context.Context, productID string, k int) ([]*core.Item, error)
}

// 属性相似度权重
const (
	attrCategoryWeight = 0.3
	attrBrandWeight    = 0.2
	attrPriceWeight    = 0.2
	attrFeatureWeight  = 0.3
)

// DefaultMinPairScore 批量两两相似度只保存高于此值的结果
const DefaultMinPairScore = 0.1

// AttributeSimilarity 基于属性的商品相似度：
// 品类相同 0.3，品牌相同（忽略大小写）0.2，价格接近度 0.2×(1-|Δ|/max)，属性 Jaccard 0.3。
func AttributeSimilarity(a, b *core.Product) float64 {
	if a == nil || b == nil {
		return 0
	}
	s := 0.0
	if a.Category != "" && b.Category != "" && strings.EqualFold(a.Category, b.Category) {
		s += attrCategoryWeight
	}
	if a.Brand != "" && b.Brand != "" && strings.EqualFold(a.Brand, b.Brand) {
		s += attrBrandWeight
	}
	if a.Price > 0 && b.Price > 0 {
		s += attrPriceWeight * (1 - math.Abs(a.Price-b.Price)/math.Max(a.Price, b.Price))
	}
	s += attrFeatureWeight * FeatureSimilarity(a, b)
	return s
}

// FeatureSimilarity 属性表 Jaccard：值相同（忽略大小写）的 key 数 / key 并集
func FeatureSimilarity(a, b *core.Product) float64 {
	if a == nil || b == nil {
		return 0
	}
	return a.Features.Jaccard(b.Features)
}

// pairwiseScan 在目录上对 productID 逐一打分，只保留正分
func pairwiseScan(ctx context.Context, catalog core.Catalog, productID string, k int,
	score func(a, b *core.Product) float64) ([]*core.Item, error) {
	if catalog == nil {
		return nil, core.NotConfigured(core.ModuleRecall, "catalog")
	}
	target, err := catalog.Product(ctx, productID)
	if err != nil {
		if core.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	products, err := catalog.Products(ctx)
	if err != nil {
		return nil, fmt.Errorf("load products: %w", err)
	}
	scores := make(map[string]float64, len(products))
	for _, p := range products {
		if p.ID == productID {
			continue
		}
		if s := score(target, p); s > 0 {
			scores[p.ID] = s
		}
	}
	return scoredIDs(scores, k), nil
}

// AttributeSimilar 按属性相似度现场计算相似商品
type AttributeSimilar struct {
	Catalog core.Catalog
}

func (s *AttributeSimilar) Name() string { return "similar.attribute" }

func (s *AttributeSimilar) Similar(ctx context.Context, productID string, k int) ([]*core.Item, error) {
	return pairwiseScan(ctx, s.Catalog, productID, k, AttributeSimilarity)
}

// FeatureSimilar 按属性表 Jaccard 现场计算相似商品
type FeatureSimilar struct {
	Catalog core.Catalog
}

func (s *FeatureSimilar) Name() string { return "similar.feature" }

func (s *FeatureSimilar) Similar(ctx context.Context, productID string, k int) ([]*core.Item, error) {
	return pairwiseScan(ctx, s.Catalog, productID, k, FeatureSimilarity)
}

// BehaviorSimilar 基于共同交互用户的相似商品。
//
// 设 U 为与源商品交互过的去重用户，对这些用户交互过的其它每个商品：
// score = 共同用户数 / |U| × min(平均行为值, 5) / 5。
type BehaviorSimilar struct {
	Catalog core.Catalog
}

func (s *BehaviorSimilar) Name() string { return "similar.behavior" }

func (s *BehaviorSimilar) Similar(ctx context.Context, productID string, k int) ([]*core.Item, error) {
	if s.Catalog == nil {
		return nil, core.NotConfigured(core.ModuleRecall, "catalog")
	}
	inters, err := s.Catalog.Interactions(ctx, core.InteractionFilter{ProductID: productID})
	if err != nil {
		return nil, fmt.Errorf("interactions for product %s: %w", productID, err)
	}
	users := make(map[string]struct{})
	var order []string
	for _, in := range inters {
		if _, ok := users[in.UserID]; !ok {
			users[in.UserID] = struct{}{}
			order = append(order, in.UserID)
		}
	}
	if len(users) == 0 {
		return nil, nil
	}

	type agg struct {
		users map[string]struct{}
		sum   float64
		rows  int
	}
	byProduct := make(map[string]*agg)
	for _, uid := range order {
		rows, err := s.Catalog.Interactions(ctx, core.InteractionFilter{UserID: uid})
		if err != nil {
			return nil, fmt.Errorf("interactions for user %s: %w", uid, err)
		}
		for _, in := range rows {
			if in.ProductID == productID {
				continue
			}
			a := byProduct[in.ProductID]
			if a == nil {
				a = &agg{users: make(map[string]struct{})}
				byProduct[in.ProductID] = a
			}
			a.users[uid] = struct{}{}
			a.sum += in.EffectiveValue()
			a.rows++
		}
	}

	scores := make(map[string]float64, len(byProduct))
	for pid, a := range byProduct {
		avg := a.sum / float64(a.rows)
		sc := float64(len(a.users)) / float64(len(users)) * math.Min(avg, 5) / 5
		if sc > 0 {
			scores[pid] = sc
		}
	}
	return scoredIDs(scores, k), nil
}

// ProductUserSets 返回 商品 -> 交互过的去重用户集合
func ProductUserSets(ctx context.Context, catalog core.Catalog) (map[string]map[string]struct{}, error) {
	if catalog == nil {
		return nil, core.NotConfigured(core.ModuleRecall, "catalog")
	}
	inters, err := catalog.Interactions(ctx, core.InteractionFilter{})
	if err != nil {
		return nil, fmt.Errorf("load interactions: %w", err)
	}
	sets := make(map[string]map[string]struct{})
	for _, in := range inters {
		s := sets[in.ProductID]
		if s == nil {
			s = make(map[string]struct{})
			sets[in.ProductID] = s
		}
		s[in.UserID] = struct{}{}
	}
	return sets, nil
}

// BehaviorJaccard 返回批量计算用的行为相似度：两商品交互用户集合的 Jaccard
func BehaviorJaccard(sets map[string]map[string]struct{}) func(a, b *core.Product) float64 {
	return func(a, b *core.Product) float64 {
		return similarity.Jaccard(sets[a.ID], sets[b.ID])
	}
}

// PairwiseSimilarities 对全部商品两两（i<j）打分，分数 > minScore 的结果双向输出。
// 按行并发计算，输出顺序与并发度无关。
func PairwiseSimilarities(
	ctx context.Context,
	products []*core.Product,
	t core.SimilarityType,
	minScore float64,
	score func(a, b *core.Product) float64,
) ([]core.SimilarityRecord, error) {
	rows := make([][]core.SimilarityRecord, len(products))
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(runtime.GOMAXPROCS(0))
	for i := range products {
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			a := products[i]
			for _, b := range products[i+1:] {
				if a.ID == b.ID {
					continue
				}
				s := score(a, b)
				if s <= minScore {
					continue
				}
				rows[i] = append(rows[i],
					core.SimilarityRecord{ProductID1: a.ID, ProductID2: b.ID, Score: s, Type: t},
					core.SimilarityRecord{ProductID1: b.ID, ProductID2: a.ID, Score: s, Type: t},
				)
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	var out []core.SimilarityRecord
	for _, r := range rows {
		out = append(out, r...)
	}
	return out, nil
}
