package rank

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/rushteam/shoprec/core"
	"github.com/rushteam/shoprec/pipeline"
	"github.com/rushteam/shoprec/pkg/dsl"
	"github.com/rushteam/shoprec/rerank"
)

// BenefitQuery 是高收益商品查询条件
type BenefitQuery struct {
	UserID   string // 非空时启用个性化加成
	Category string // 品类子串，忽略大小写
	Filter   string // 可选 CEL 表达式，例如 product.price < 100.0
	Limit    int
}

// CatalogCandidates 是 Recall Node：列出已上架且满足品类子串与 CEL 条件的商品
type CatalogCandidates struct {
	Catalog  core.Catalog
	Category string
	Filter   *dsl.Expr
}

func (n *CatalogCandidates) Name() string        { return "recall.catalog" }
func (n *CatalogCandidates) Kind() pipeline.Kind { return pipeline.KindRecall }

func (n *CatalogCandidates) Process(ctx context.Context, _ *core.RecommendContext, _ []*core.Item) ([]*core.Item, error) {
	if n.Catalog == nil {
		return nil, core.NotConfigured(core.ModuleRank, "catalog")
	}
	products, err := n.Catalog.Products(ctx)
	if err != nil {
		return nil, fmt.Errorf("load products: %w", err)
	}
	out := make([]*core.Item, 0, len(products))
	for _, p := range products {
		if !p.Approved() || !CategoryMatches(p.Category, n.Category) {
			continue
		}
		ok, err := n.Filter.MatchProduct(p)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		it := core.NewItem(p.ID)
		it.Product = p
		out = append(out, it)
	}
	return out, nil
}

// CategoryMatches 品类子串匹配（忽略大小写），空 query 匹配全部
func CategoryMatches(category, query string) bool {
	if query == "" {
		return true
	}
	return strings.Contains(strings.ToLower(category), strings.ToLower(query))
}

// HighBenefitProducts 按收益分返回商品，每个 item 的 Features 为因子明细
func (s *BenefitScorer) HighBenefitProducts(ctx context.Context, q BenefitQuery) ([]*core.Item, error) {
	expr, err := dsl.Compile(q.Filter)
	if err != nil {
		return nil, err
	}
	p := &pipeline.Pipeline{
		Name: "benefit",
		Nodes: []pipeline.Node{
			&CatalogCandidates{Catalog: s.Catalog, Category: q.Category, Filter: expr},
			&BenefitNode{Scorer: s},
			&rerank.TopNNode{N: q.Limit},
		},
	}
	return p.Run(ctx, &core.RecommendContext{UserID: q.UserID, Limit: q.Limit}, nil)
}

// CategoryStats 是品类统计；没有评分/价格时对应字段为 nil
type CategoryStats struct {
	Category      string   `json:"category"`
	ProductCount  int      `json:"product_count"`
	AverageRating *float64 `json:"average_rating,omitempty"`
	AveragePrice  *float64 `json:"average_price,omitempty"`
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// CategoryAnalytics 统计品类（子串匹配）的商品数、平均评分与平均价格，均值保留两位小数
func CategoryAnalytics(ctx context.Context, catalog core.Catalog, category string) (CategoryStats, error) {
	stats := CategoryStats{Category: category}
	if catalog == nil {
		return stats, core.NotConfigured(core.ModuleRank, "catalog")
	}
	products, err := catalog.Products(ctx)
	if err != nil {
		return stats, fmt.Errorf("load products: %w", err)
	}
	var sumR, sumP float64
	var nR, nP int
	for _, p := range products {
		if !CategoryMatches(p.Category, category) {
			continue
		}
		stats.ProductCount++
		if p.HasRating() {
			sumR += p.RatingValue()
			nR++
		}
		if p.Price > 0 {
			sumP += p.Price
			nP++
		}
	}
	if nR > 0 {
		stats.AverageRating = core.Float64(round2(sumR / float64(nR)))
	}
	if nP > 0 {
		stats.AveragePrice = core.Float64(round2(sumP / float64(nP)))
	}
	return stats, nil
}
