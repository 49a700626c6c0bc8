package rank

import (
	"context"
	"errors"
	"math"
	"reflect"
	"testing"
	"time"

	"github.com/rushteam/shoprec/catalog"
	"github.com/rushteam/shoprec/core"
)

var testNow = time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)

func approx(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func loadShop(t *testing.T) *catalog.MemoryCatalog {
	t.Helper()
	c, err := catalog.LoadFixture("../catalog/testdata/shop.yaml")
	if err != nil {
		t.Fatalf("LoadFixture: %v", err)
	}
	return c
}

func TestBenefitWeightsSumToOne(t *testing.T) {
	sum := 0.0
	for _, name := range benefitFactorOrder {
		sum += BenefitWeights[name]
	}
	if !approx(sum, 1) || len(benefitFactorOrder) != len(BenefitWeights) {
		t.Fatalf("weights sum = %v", sum)
	}
}

func TestBenefitScoreSoleProduct(t *testing.T) {
	c := catalog.NewMemoryCatalog(catalog.Fixture{
		Products: []*core.Product{{ID: "x", Category: "Solo", Price: 10, Rating: core.Float64(5)}},
	})
	s := &BenefitScorer{Catalog: c, Now: func() time.Time { return testNow }}
	p, _ := c.Product(context.Background(), "x")
	score, factors, err := s.Score(context.Background(), p, "")
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	if !approx(score, 0.41) {
		t.Fatalf("score = %v, want 0.41", score)
	}
	want := map[string]float64{
		FactorRating: 1, FactorSentiment: 0.5, FactorPopularity: 0,
		FactorEngagement: 0, FactorPriceValue: 0.5, FactorTrend: 0.1,
	}
	for k, v := range want {
		if !approx(factors[k], v) {
			t.Errorf("factor %s = %v, want %v", k, factors[k], v)
		}
	}
	if _, ok := factors[FactorPersonalization]; ok {
		t.Error("personalization attached without user")
	}
}

func TestTrend(t *testing.T) {
	at := func(days ...int) []core.Interaction {
		var out []core.Interaction
		for _, d := range days {
			out = append(out, core.Interaction{CreatedAt: testNow.AddDate(0, 0, -d)})
		}
		return out
	}
	cases := []struct {
		name  string
		inter []core.Interaction
		want  float64
	}{
		{"none", nil, 0.1},
		{"only old history", at(90), 0.1},
		{"new with recent", at(1, 2), 0.8},
		{"flat", at(1, 40), 0.5},
		{"grew by half", at(1, 2, 3, 40, 45), 0.75},
		{"doubled", at(1, 2, 40), 1},
		{"growth capped", at(1, 2, 3, 4, 40), 1},
		{"declined", at(40, 45), 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := trend(tc.inter, testNow); !approx(got, tc.want) {
				t.Fatalf("trend = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestPopularityAndEngagement(t *testing.T) {
	if got := popularity(0, 0); got != 0 {
		t.Errorf("popularity(0,0) = %v", got)
	}
	if got := popularity(7, 1); !approx(got, math.Log10(10)/4) {
		t.Errorf("popularity(7,1) = %v", got)
	}
	if got := popularity(100000, 0); got != 1 {
		t.Errorf("popularity capped = %v", got)
	}
	inters := []core.Interaction{
		{UserID: "a", Type: core.InteractionPurchase, Value: 1},
		{UserID: "a", Type: core.InteractionClick, Value: 1},
		{UserID: "b", Type: "wishlist", Value: 1},
	}
	// (5 + 2 + 1) / 2 / 10
	if got := engagement(inters); !approx(got, 0.4) {
		t.Errorf("engagement = %v, want 0.4", got)
	}
}

func fixedSentiment(score float64, err error) core.SentimentFunc {
	return func(context.Context, string) (float64, error) { return score, err }
}

func TestSentimentFactor(t *testing.T) {
	ctx := context.Background()
	c := loadShop(t)
	p1, _ := c.Product(ctx, "p1")

	cases := []struct {
		name   string
		scorer core.SentimentScorer
		want   float64
	}{
		{"stored only", nil, 0.9},
		{"stored plus scorer", fixedSentiment(-0.2, nil), (0.9 + 0.4) / 2},
		{"scorer error skipped", fixedSentiment(0, errors.New("down")), 0.9},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := &BenefitScorer{Catalog: c, Sentiment: tc.scorer, Now: func() time.Time { return testNow }}
			_, factors, err := s.Score(ctx, p1, "")
			if err != nil {
				t.Fatalf("Score: %v", err)
			}
			if !approx(factors[FactorSentiment], tc.want) {
				t.Fatalf("sentiment = %v, want %v", factors[FactorSentiment], tc.want)
			}
		})
	}
}

func TestPriceValue(t *testing.T) {
	ctx := context.Background()
	c := loadShop(t)
	s := &BenefitScorer{Catalog: c}
	run, err := s.newRun(ctx, "")
	if err != nil {
		t.Fatal(err)
	}
	p1, _ := c.Product(ctx, "p1")
	p2, _ := c.Product(ctx, "p2")
	p3, _ := c.Product(ctx, "p3")
	if got := run.priceValue(p1); got != 1 {
		t.Errorf("price_value(p1) = %v, want 1", got)
	}
	want := (4.0 / 4.25) / (80 / 52.5) / 2
	if got := run.priceValue(p2); !approx(got, want) {
		t.Errorf("price_value(p2) = %v, want %v", got, want)
	}
	// Home 品类没有带评分的商品
	if got := run.priceValue(p3); got != 0.5 {
		t.Errorf("price_value(p3) = %v, want 0.5", got)
	}
	if got := run.priceValue(&core.Product{ID: "z", Category: "Electronics"}); got != 0.5 {
		t.Errorf("price_value(no price) = %v, want 0.5", got)
	}
}

func TestPriceValueIgnoresFreeProducts(t *testing.T) {
	ctx := context.Background()
	c := catalog.NewMemoryCatalog(catalog.Fixture{
		Products: []*core.Product{
			{ID: "a", Category: "Toys", Price: 10, Rating: core.Float64(4)},
			{ID: "b", Category: "Toys", Price: 30, Rating: core.Float64(4)},
			{ID: "free", Category: "Toys", Price: 0, Rating: core.Float64(4)},
		},
	})
	run, err := (&BenefitScorer{Catalog: c}).newRun(ctx, "")
	if err != nil {
		t.Fatal(err)
	}
	b, _ := c.Product(ctx, "b")
	// 品类均价 20，免费商品不计入
	if got := run.priceValue(b); !approx(got, 1.0/3) {
		t.Errorf("price_value(b) = %v, want %v", got, 1.0/3)
	}
	free, _ := c.Product(ctx, "free")
	if got := run.priceValue(free); got != 0.5 {
		t.Errorf("price_value(free) = %v, want 0.5", got)
	}
}

func TestHighBenefitProducts(t *testing.T) {
	ctx := context.Background()
	s := &BenefitScorer{Catalog: loadShop(t), Now: func() time.Time { return testNow }}

	items, err := s.HighBenefitProducts(ctx, BenefitQuery{Limit: 10})
	if err != nil {
		t.Fatalf("HighBenefitProducts: %v", err)
	}
	// p4 未上架
	if len(items) != 3 {
		t.Fatalf("items = %v", core.ItemIDs(items))
	}
	for i, it := range items {
		if i > 0 && items[i-1].Score < it.Score {
			t.Fatalf("scores not descending: %v", core.ItemIDs(items))
		}
		if it.Score <= 0 {
			t.Errorf("%s score = %v", it.ID, it.Score)
		}
		for _, name := range benefitFactorOrder {
			if v, ok := it.Features[name]; !ok || v < 0 || v > 1 {
				t.Errorf("%s factor %s = %v", it.ID, name, v)
			}
		}
	}

	items, err = s.HighBenefitProducts(ctx, BenefitQuery{Category: "ELEC", Filter: "product.price < 50.0", Limit: 10})
	if err != nil {
		t.Fatalf("HighBenefitProducts: %v", err)
	}
	if got := core.ItemIDs(items); !reflect.DeepEqual(got, []string{"p1"}) {
		t.Fatalf("filtered items = %v", got)
	}

	if _, err := s.HighBenefitProducts(ctx, BenefitQuery{Filter: "product.price <"}); !core.IsInvalidInput(err) {
		t.Fatalf("err = %v, want INVALID_INPUT", err)
	}

	items, _ = s.HighBenefitProducts(ctx, BenefitQuery{Limit: 1})
	if len(items) != 1 {
		t.Fatalf("limit ignored: %v", core.ItemIDs(items))
	}
}

func TestPersonalization(t *testing.T) {
	ctx := context.Background()
	s := &BenefitScorer{Catalog: loadShop(t), Now: func() time.Time { return testNow }}
	plain, _ := s.HighBenefitProducts(ctx, BenefitQuery{Category: "Electronics"})
	boosted, err := s.HighBenefitProducts(ctx, BenefitQuery{UserID: "u3", Category: "Electronics"})
	if err != nil {
		t.Fatalf("HighBenefitProducts: %v", err)
	}
	base := map[string]float64{}
	for _, it := range plain {
		base[it.ID] = it.Score
	}
	// u3 只浏览过 p1（Electronics / Acme），两个商品都拿到 0.3 + 0.2 的加成
	for _, it := range boosted {
		if !approx(it.Features[FactorPersonalization], 0.5) {
			t.Errorf("%s personalization = %v", it.ID, it.Features[FactorPersonalization])
		}
		if !approx(it.Score, base[it.ID]*1.5) {
			t.Errorf("%s score = %v, want %v", it.ID, it.Score, base[it.ID]*1.5)
		}
	}
}

func TestCategoryAnalytics(t *testing.T) {
	ctx := context.Background()
	c := loadShop(t)
	stats, err := CategoryAnalytics(ctx, c, "electronics")
	if err != nil {
		t.Fatalf("CategoryAnalytics: %v", err)
	}
	if stats.ProductCount != 2 || *stats.AverageRating != 4.25 || *stats.AveragePrice != 52.5 {
		t.Fatalf("stats = %+v", stats)
	}
	stats, _ = CategoryAnalytics(ctx, c, "Home")
	if stats.ProductCount != 1 || stats.AverageRating != nil || *stats.AveragePrice != 40 {
		t.Fatalf("home stats = %+v", stats)
	}
	stats, _ = CategoryAnalytics(ctx, c, "garden")
	if stats.ProductCount != 0 || stats.AverageRating != nil || stats.AveragePrice != nil {
		t.Fatalf("empty stats = %+v", stats)
	}
}
