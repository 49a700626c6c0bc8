// Package rank 提供多因子"高收益"商品打分。
package rank

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/rushteam/shoprec/core"
	"github.com/rushteam/shoprec/pipeline"
	"github.com/rushteam/shoprec/pkg/similarity"
	"github.com/rushteam/shoprec/pkg/utils"
)

// 因子名
const (
	FactorRating          = "rating"
	FactorSentiment       = "sentiment"
	FactorPopularity      = "popularity"
	FactorEngagement      = "engagement"
	FactorPriceValue      = "price_value"
	FactorTrend           = "trend"
	FactorPersonalization = "personalization"
)

// BenefitWeights 因子权重，和为 1
var BenefitWeights = map[string]float64{
	FactorRating:     0.25,
	FactorSentiment:  0.20,
	FactorPopularity: 0.20,
	FactorEngagement: 0.15,
	FactorPriceValue: 0.10,
	FactorTrend:      0.10,
}

// benefitFactorOrder 固定求和顺序，保证浮点结果可复现
var benefitFactorOrder = []string{
	FactorRating, FactorSentiment, FactorPopularity, FactorEngagement, FactorPriceValue, FactorTrend,
}

const (
	trendWindow        = 30 * 24 * time.Hour
	maxPersonalization = 0.5
	minPriceRatio      = 1e-6
)

// BenefitScorer 计算商品的综合收益分。
//
// 每个因子先裁剪到 [0,1] 再线性加权；带用户时 score *= 1 + personalization。
type BenefitScorer struct {
	Catalog   core.Catalog
	Sentiment core.SentimentScorer // 可选，评论没有存储情感分时使用
	Now       func() time.Time     // 可注入时钟，nil 时为 time.Now
	Logger    zerolog.Logger
}

func (s *BenefitScorer) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

type categoryAverages struct {
	rating, price float64
	ok            bool
}

// scoringRun 是一次打分的缓存：品类均值与用户偏好只计算一次
type scoringRun struct {
	s        *BenefitScorer
	now      time.Time
	userID   string
	products []*core.Product
	catAvg   map[string]categoryAverages

	prefsLoaded bool
	catPref     map[string]float64
	brandPref   map[string]float64
}

func (s *BenefitScorer) newRun(ctx context.Context, userID string) (*scoringRun, error) {
	if s.Catalog == nil {
		return nil, core.NotConfigured(core.ModuleRank, "catalog")
	}
	products, err := s.Catalog.Products(ctx)
	if err != nil {
		return nil, fmt.Errorf("load products: %w", err)
	}
	return &scoringRun{
		s:        s,
		now:      s.now(),
		userID:   userID,
		products: products,
		catAvg:   make(map[string]categoryAverages),
	}, nil
}

// Score 计算单个商品的收益分与因子明细
func (s *BenefitScorer) Score(ctx context.Context, p *core.Product, userID string) (float64, map[string]float64, error) {
	run, err := s.newRun(ctx, userID)
	if err != nil {
		return 0, nil, err
	}
	return run.score(ctx, p)
}

func (r *scoringRun) score(ctx context.Context, p *core.Product) (float64, map[string]float64, error) {
	factors := make(map[string]float64, len(BenefitWeights)+1)
	factors[FactorRating] = p.RatingValue() / 5

	reviews, err := r.s.Catalog.Reviews(ctx, p.ID)
	if err != nil {
		return 0, nil, fmt.Errorf("reviews for product %s: %w", p.ID, err)
	}
	factors[FactorSentiment] = r.sentiment(ctx, p.ID, reviews)

	inters, err := r.s.Catalog.Interactions(ctx, core.InteractionFilter{ProductID: p.ID})
	if err != nil {
		return 0, nil, fmt.Errorf("interactions for product %s: %w", p.ID, err)
	}
	factors[FactorPopularity] = popularity(len(inters), len(reviews))
	factors[FactorEngagement] = engagement(inters)
	factors[FactorPriceValue] = r.priceValue(p)
	factors[FactorTrend] = trend(inters, r.now)

	score := 0.0
	for _, name := range benefitFactorOrder {
		factors[name] = similarity.Clamp01(factors[name])
		score += BenefitWeights[name] * factors[name]
	}

	if r.userID != "" {
		boost, err := r.personalization(ctx, p)
		if err != nil {
			return 0, nil, err
		}
		factors[FactorPersonalization] = boost
		score *= 1 + boost
	}
	return score, factors, nil
}

// sentiment = mean((s+1)/2)，优先使用已存储的情感分，否则调用 SentimentScorer；
// 没有可打分的评论时为 0.5。单条评论打分失败时跳过该评论。
func (r *scoringRun) sentiment(ctx context.Context, productID string, reviews []core.Review) float64 {
	sum, n := 0.0, 0
	for _, rv := range reviews {
		var v float64
		switch {
		case rv.SentimentScore != nil:
			v = *rv.SentimentScore
		case r.s.Sentiment != nil && strings.TrimSpace(rv.Comment) != "":
			sc, err := r.s.Sentiment.Score(ctx, rv.Comment)
			if err != nil {
				r.s.Logger.Debug().Err(err).Str("product_id", productID).Msg("sentiment scoring failed")
				continue
			}
			v = sc
		default:
			continue
		}
		if math.IsNaN(v) {
			continue
		}
		sum += (math.Max(-1, math.Min(1, v)) + 1) / 2
		n++
	}
	if n == 0 {
		return 0.5
	}
	return sum / float64(n)
}

// popularity = min(log10(interactions + 2×reviews + 1) / 4, 1)
func popularity(interactions, reviews int) float64 {
	activity := float64(interactions + 2*reviews)
	if activity <= 0 {
		return 0
	}
	return math.Min(math.Log10(activity+1)/4, 1)
}

// engagement = min(Σ 类型权重×行为值 / 去重用户数 / 10, 1)
func engagement(inters []core.Interaction) float64 {
	if len(inters) == 0 {
		return 0
	}
	users := make(map[string]struct{})
	total := 0.0
	for _, in := range inters {
		users[in.UserID] = struct{}{}
		total += in.Weighted()
	}
	return math.Min(total/float64(len(users))/10, 1)
}

func (r *scoringRun) averages(category string) categoryAverages {
	if avg, ok := r.catAvg[category]; ok {
		return avg
	}
	var sumR, sumP float64
	n := 0
	for _, p := range r.products {
		if p.Category != category || !p.HasRating() || p.Price <= 0 {
			continue
		}
		sumR += p.RatingValue()
		sumP += p.Price
		n++
	}
	avg := categoryAverages{}
	if n > 0 {
		avg = categoryAverages{rating: sumR / float64(n), price: sumP / float64(n), ok: true}
	}
	r.catAvg[category] = avg
	return avg
}

// priceValue = min((rating/品类均分) / (price/品类均价) / 2, 1)；
// 价格、品类或均值缺失，或价格比过小时为 0.5。
func (r *scoringRun) priceValue(p *core.Product) float64 {
	if p.Price <= 0 || p.Category == "" {
		return 0.5
	}
	avg := r.averages(p.Category)
	if !avg.ok || avg.rating <= 0 || avg.price <= 0 {
		return 0.5
	}
	priceRatio := p.Price / avg.price
	if priceRatio < minPriceRatio {
		return 0.5
	}
	ratingRatio := p.RatingValue() / avg.rating
	return math.Min(ratingRatio/priceRatio/2, 1)
}

// trend 比较最近 30 天与之前 30 天的行为数
func trend(inters []core.Interaction, now time.Time) float64 {
	recentFrom := now.Add(-trendWindow)
	olderFrom := recentFrom.Add(-trendWindow)
	recent, older := 0, 0
	for _, in := range inters {
		switch {
		case !in.CreatedAt.Before(recentFrom):
			recent++
		case !in.CreatedAt.Before(olderFrom):
			older++
		}
	}
	switch {
	case older > 0:
		growth := float64(recent-older) / float64(older)
		return similarity.Clamp01((growth + 1) / 2)
	case recent > 0:
		return 0.8
	default:
		return 0.1
	}
}

func (r *scoringRun) loadPrefs(ctx context.Context) error {
	if r.prefsLoaded {
		return nil
	}
	r.catPref = make(map[string]float64)
	r.brandPref = make(map[string]float64)
	inters, err := r.s.Catalog.Interactions(ctx, core.InteractionFilter{UserID: r.userID})
	if err != nil {
		return fmt.Errorf("interactions for user %s: %w", r.userID, err)
	}
	for _, in := range inters {
		p, err := r.s.Catalog.Product(ctx, in.ProductID)
		if err != nil {
			if core.IsNotFound(err) {
				continue
			}
			return err
		}
		w := in.Type.Weight()
		if p.Category != "" {
			r.catPref[p.Category] += w
		}
		if p.Brand != "" {
			r.brandPref[p.Brand] += w
		}
	}
	r.prefsLoaded = true
	return nil
}

func share(m map[string]float64, key string) float64 {
	v, ok := m[key]
	if !ok || key == "" {
		return 0
	}
	total := 0.0
	for _, w := range m {
		total += w
	}
	if total == 0 {
		return 0
	}
	return v / total
}

// personalization = min(0.3×品类偏好占比 + 0.2×品牌偏好占比, 0.5)
func (r *scoringRun) personalization(ctx context.Context, p *core.Product) (float64, error) {
	if err := r.loadPrefs(ctx); err != nil {
		return 0, err
	}
	boost := 0.3*share(r.catPref, p.Category) + 0.2*share(r.brandPref, p.Brand)
	return math.Min(boost, maxPersonalization), nil
}

// BenefitNode 是 Rank Node：为每个 item 计算收益分，写入 Score 与因子明细，
// 丢弃分数 <= 0 的 item，结果按分数降序（同分按 ID）。
type BenefitNode struct {
	Scorer *BenefitScorer
}

func (n *BenefitNode) Name() string        { return "rank.benefit" }
func (n *BenefitNode) Kind() pipeline.Kind { return pipeline.KindRank }

func (n *BenefitNode) Process(
	ctx context.Context,
	rctx *core.RecommendContext,
	items []*core.Item,
) ([]*core.Item, error) {
	if n.Scorer == nil {
		return nil, core.NotConfigured(core.ModuleRank, "benefit scorer")
	}
	if len(items) == 0 {
		return items, nil
	}
	userID := ""
	if rctx != nil {
		userID = rctx.UserID
	}
	run, err := n.Scorer.newRun(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make([]*core.Item, 0, len(items))
	for _, it := range items {
		if it == nil {
			continue
		}
		p := it.Product
		if p == nil {
			if p, err = n.Scorer.Catalog.Product(ctx, it.ID); err != nil {
				if core.IsNotFound(err) {
					continue
				}
				return nil, err
			}
			it.Product = p
		}
		score, factors, err := run.score(ctx, p)
		if err != nil {
			return nil, err
		}
		if score <= 0 {
			continue
		}
		it.Score = score
		for k, v := range factors {
			it.PutFeature(k, v)
		}
		it.PutLabel("rank_model", utils.NewLabel("benefit", "rank"))
		out = append(out, it)
	}
	core.SortItems(out)
	return out, nil
}
