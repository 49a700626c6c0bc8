package engine

import (
	"context"
	"errors"
	"math"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rushteam/shoprec/catalog"
	"github.com/rushteam/shoprec/core"
	"github.com/rushteam/shoprec/job"
	"github.com/rushteam/shoprec/pkg/utils"
	"github.com/rushteam/shoprec/rank"
	"github.com/rushteam/shoprec/service"
	"github.com/rushteam/shoprec/store"
)

func approx(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func loadShop(t *testing.T) *catalog.MemoryCatalog {
	t.Helper()
	c, err := catalog.LoadFixture("../catalog/testdata/shop.yaml")
	if err != nil {
		t.Fatalf("LoadFixture: %v", err)
	}
	return c
}

func newShopEngine(t *testing.T, opts ...Option) (*Engine, *store.MemoryStore) {
	t.Helper()
	st := store.NewMemoryStore()
	opts = append([]Option{WithEmbedder(service.NewHashingEmbedder(64))}, opts...)
	return New(loadShop(t), st, opts...), st
}

// 三个购物篮 {A,B} {A,B} {A,C}
const basketFixture = `
products:
  - {id: A, name: a, category: x, price: 10, rating: 4}
  - {id: B, name: b, category: x, price: 10, rating: 3}
  - {id: C, name: c, category: y, price: 10, rating: 2}
orders:
  - {id: o1, user_id: u1}
  - {id: o2, user_id: u2}
  - {id: o3, user_id: u3}
order_items:
  - {order_id: o1, product_id: A, quantity: 1}
  - {order_id: o1, product_id: B, quantity: 1}
  - {order_id: o2, product_id: A, quantity: 1}
  - {order_id: o2, product_id: B, quantity: 1}
  - {order_id: o3, product_id: A, quantity: 1}
  - {order_id: o3, product_id: C, quantity: 1}
`

func newBasketEngine(t *testing.T) (*Engine, *store.MemoryStore) {
	t.Helper()
	f, err := catalog.ReadFixture(strings.NewReader(basketFixture))
	if err != nil {
		t.Fatalf("ReadFixture: %v", err)
	}
	st := store.NewMemoryStore()
	return New(catalog.NewMemoryCatalog(f), st), st
}

func TestParseStrategy(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"", StrategyHybrid, false},
		{"Hybrid", StrategyHybrid, false},
		{"collaborative", StrategyCollaborative, false},
		{"content_based", StrategyContentBased, false},
		{"random", "", true},
	}
	for _, tt := range tests {
		got, err := ParseStrategy(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseStrategy(%q) = %q, %v", tt.in, got, err)
		}
		if tt.wantErr && !core.IsInvalidInput(err) {
			t.Errorf("ParseStrategy(%q) err = %v, want INVALID_INPUT", tt.in, err)
		}
	}
}

func TestRecommendNoHistoryFallsBackToPopular(t *testing.T) {
	e, _ := newShopEngine(t)
	for _, strategy := range []string{"", StrategyCollaborative, StrategyContentBased} {
		items, err := e.Recommend(context.Background(), "stranger", 10, strategy)
		if err != nil {
			t.Fatalf("Recommend(%q): %v", strategy, err)
		}
		if got := core.ItemIDs(items); !reflect.DeepEqual(got, []string{"p1", "p2"}) {
			t.Fatalf("strategy %q: items = %v, want [p1 p2]", strategy, got)
		}
		if lbl := items[0].Labels[utils.LabelFallback]; lbl.Value != "popularity" || lbl.Source != FallbackNoHistory {
			t.Errorf("fallback label = %+v", lbl)
		}
	}
}

func TestRecommendStrategies(t *testing.T) {
	e, _ := newShopEngine(t)
	ctx := context.Background()

	tests := []struct {
		user     string
		strategy string
		want     []string
	}{
		{"u2", StrategyCollaborative, []string{"p2"}},
		{"u2", StrategyContentBased, []string{"p2"}},
		{"u2", StrategyHybrid, []string{"p2"}},
		{"u3", StrategyContentBased, []string{"p2", "p3"}},
	}
	for _, tt := range tests {
		t.Run(tt.user+"/"+tt.strategy, func(t *testing.T) {
			items, err := e.Recommend(ctx, tt.user, 10, tt.strategy)
			if err != nil {
				t.Fatalf("Recommend: %v", err)
			}
			if got := core.ItemIDs(items); !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("items = %v, want %v", got, tt.want)
			}
			for _, it := range items {
				if it.Labels[utils.LabelStrategy].Value != tt.strategy {
					t.Errorf("strategy label = %+v", it.Labels[utils.LabelStrategy])
				}
				if it.Labels[utils.LabelRecallSource].Value == "" {
					t.Errorf("item %s has no recall_source label", it.ID)
				}
			}
		})
	}
}

func TestRecommendContentScore(t *testing.T) {
	e, _ := newShopEngine(t)
	items, err := e.Recommend(context.Background(), "u2", 10, StrategyContentBased)
	if err != nil {
		t.Fatalf("Recommend: %v", err)
	}
	// u2 的品类/品牌偏好中 Electronics、Acme 各占 1/4，价格档位没有 medium
	if len(items) != 1 || !approx(items[0].Score, 0.4*0.25+0.3*0.25) {
		t.Fatalf("items = %+v", items)
	}
}

func TestRecommendInvalidInput(t *testing.T) {
	e, _ := newShopEngine(t)
	if _, err := e.Recommend(context.Background(), "u1", 5, "random"); !core.IsInvalidInput(err) {
		t.Errorf("unknown strategy err = %v", err)
	}
	if _, err := e.Recommend(context.Background(), "", 5, ""); !core.IsInvalidInput(err) {
		t.Errorf("empty user err = %v", err)
	}
	var empty Engine
	if _, err := empty.Recommend(context.Background(), "u1", 5, ""); !core.IsNotConfigured(err) {
		t.Errorf("missing catalog err = %v", err)
	}
}

func TestRecommendLimitDefault(t *testing.T) {
	e, _ := newShopEngine(t, WithDefaults(fixedDefaults{users: 5, limit: 1}))
	items, err := e.Recommend(context.Background(), "stranger", 0, "")
	if err != nil {
		t.Fatalf("Recommend: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("items = %v, want 1 entry", core.ItemIDs(items))
	}
}

type fixedDefaults struct{ users, limit int }

func (d fixedDefaults) DefaultSimilarUsers() int { return d.users }
func (d fixedDefaults) DefaultLimit() int        { return d.limit }

func TestAssociationScenario(t *testing.T) {
	e, st := newBasketEngine(t)
	ctx := context.Background()

	rows, err := e.UpdateSuggestions(ctx, 5, 0.5, 0.5)
	if err != nil {
		t.Fatalf("UpdateSuggestions: %v", err)
	}
	// A->B (2/3) 与 B->A (1)，C 的支持度 1/3 不足
	if rows != 2 {
		t.Fatalf("rows = %d, want 2", rows)
	}
	items, err := e.ProductSuggestions(ctx, "A", 5)
	if err != nil {
		t.Fatalf("ProductSuggestions: %v", err)
	}
	if got := core.ItemIDs(items); !reflect.DeepEqual(got, []string{"B"}) {
		t.Fatalf("suggestions = %v, want [B]", got)
	}
	if !approx(items[0].Score, 2.0/3) {
		t.Errorf("score = %v, want 2/3", items[0].Score)
	}

	first, _ := st.Suggestions(ctx, "A")
	if _, err := e.UpdateSuggestions(ctx, 5, 0.5, 0.5); err != nil {
		t.Fatalf("second UpdateSuggestions: %v", err)
	}
	second, _ := st.Suggestions(ctx, "A")
	if !reflect.DeepEqual(first, second) {
		t.Errorf("batch not idempotent: %v vs %v", first, second)
	}
}

func TestProductSuggestionsOnTheFly(t *testing.T) {
	e, _ := newBasketEngine(t)
	e.mining.MinSupport, e.mining.MinConfidence = 0.5, 0.5
	items, err := e.ProductSuggestions(context.Background(), "A", 5)
	if err != nil {
		t.Fatalf("ProductSuggestions: %v", err)
	}
	if got := core.ItemIDs(items); !reflect.DeepEqual(got, []string{"B"}) {
		t.Fatalf("suggestions = %v, want [B]", got)
	}
}

func checkSimilar(t *testing.T, items []*core.Item, self string, k int) {
	t.Helper()
	if len(items) > k {
		t.Errorf("got %d items, want at most %d", len(items), k)
	}
	for i, it := range items {
		if it.ID == self {
			t.Errorf("source product %s in its own similar list", self)
		}
		if i > 0 && it.Score > items[i-1].Score {
			t.Errorf("scores increase at %d: %v > %v", i, it.Score, items[i-1].Score)
		}
	}
}

func TestContentSimilarities(t *testing.T) {
	e, st := newShopEngine(t)
	ctx := context.Background()

	// 没有缓存时现场构建索引
	online, err := e.SimilarProducts(ctx, "p1", 2, "content_based")
	if err != nil {
		t.Fatalf("SimilarProducts: %v", err)
	}
	if len(online) == 0 {
		t.Fatal("expected on-the-fly content neighbours")
	}
	checkSimilar(t, online, "p1", 2)

	status, err := e.UpdateContentSimilarities(ctx, 10)
	if err != nil {
		t.Fatalf("UpdateContentSimilarities: %v", err)
	}
	if !status.OK() || status.Rows != 12 || status.Kind != job.KindContentSimilarities {
		t.Fatalf("status = %+v, want 12 rows", status)
	}

	scores := make(map[[2]string]float64)
	for _, id := range []string{"p1", "p2", "p3", "p4"} {
		rows, _ := st.SimilarProducts(ctx, id, core.SimilarityContent, 0)
		for _, r := range rows {
			scores[[2]string{r.ProductID1, r.ProductID2}] = r.Score
		}
	}
	for k, v := range scores {
		if back, ok := scores[[2]string{k[1], k[0]}]; !ok || math.Abs(back-v) > 1e-6 {
			t.Errorf("asymmetric similarity %v: %v vs %v", k, v, back)
		}
	}

	cached, err := e.SimilarProducts(ctx, "p1", 2, "")
	if err != nil {
		t.Fatalf("SimilarProducts: %v", err)
	}
	checkSimilar(t, cached, "p1", 2)
	if got, want := core.ItemIDs(cached), core.ItemIDs(online); !reflect.DeepEqual(got, want) {
		t.Errorf("cached = %v, online = %v", got, want)
	}
	if cached[0].Meta["cache"] != "memory" {
		t.Errorf("expected cached result, meta = %v", cached[0].Meta)
	}
}

func TestSimilarProductsWithoutEmbedder(t *testing.T) {
	e := New(loadShop(t), store.NewMemoryStore())
	if _, err := e.SimilarProducts(context.Background(), "p1", 5, "content_based"); !core.IsNotConfigured(err) {
		t.Fatalf("err = %v, want NOT_CONFIGURED", err)
	}
	if _, err := e.SimilarProducts(context.Background(), "p1", 5, "visual"); !core.IsInvalidInput(err) {
		t.Fatalf("err = %v, want INVALID_INPUT", err)
	}
}

func TestFeatureSimilarities(t *testing.T) {
	e, _ := newShopEngine(t)
	ctx := context.Background()

	items, err := e.SimilarProducts(ctx, "p1", 5, "feature_based")
	if err != nil {
		t.Fatalf("SimilarProducts: %v", err)
	}
	// color 相同（忽略大小写），connection 不同
	if got := core.ItemIDs(items); !reflect.DeepEqual(got, []string{"p2"}) || !approx(items[0].Score, 0.5) {
		t.Fatalf("items = %v", got)
	}

	status, err := e.UpdateSimilarities(ctx, "feature_based")
	if err != nil {
		t.Fatalf("UpdateSimilarities: %v", err)
	}
	if status.Rows != 2 || status.Kind != job.KindFeatureSimilarity {
		t.Fatalf("status = %+v, want 2 rows", status)
	}
	cached, _ := e.SimilarProducts(ctx, "p2", 5, "feature_based")
	if got := core.ItemIDs(cached); !reflect.DeepEqual(got, []string{"p1"}) {
		t.Fatalf("cached = %v", got)
	}
}

func TestBehaviorSimilarities(t *testing.T) {
	e, _ := newShopEngine(t)
	status, err := e.UpdateSimilarities(context.Background(), "behavior_based")
	if err != nil {
		t.Fatalf("UpdateSimilarities: %v", err)
	}
	// 每个商品只有一个交互用户，且互不相同
	if status.Rows != 0 || status.Kind != job.KindBehaviorSimilarity {
		t.Fatalf("status = %+v", status)
	}
}

func TestUpdateUserRecommendations(t *testing.T) {
	e, st := newShopEngine(t)
	ctx := context.Background()

	status, err := e.UpdateUserRecommendations(ctx, 5)
	if err != nil {
		t.Fatalf("UpdateUserRecommendations: %v", err)
	}
	rows, _ := st.UserSuggestions(ctx, "u2")
	if status.Rows == 0 || len(rows) == 0 || rows[0].ProductID != "p2" {
		t.Fatalf("status = %+v, rows = %+v", status, rows)
	}

	items, err := e.Recommend(ctx, "u2", 5, StrategyCollaborative)
	if err != nil {
		t.Fatalf("Recommend: %v", err)
	}
	if got := core.ItemIDs(items); !reflect.DeepEqual(got, []string{"p2"}) {
		t.Fatalf("items = %v", got)
	}
	if items[0].Meta["cache"] != "memory" {
		t.Errorf("expected cached user suggestions, meta = %v", items[0].Meta)
	}
}

// failingUserStore 写用户推荐时失败
type failingUserStore struct {
	*store.MemoryStore
}

func (failingUserStore) ReplaceUserSuggestions(context.Context, []core.UserSuggestionRecord) (int, error) {
	return 0, core.BatchWriteFailed("user_suggestions", errors.New("disk full"))
}

func TestFailedUserBatchKeepsDimensions(t *testing.T) {
	e := New(loadShop(t), failingUserStore{store.NewMemoryStore()})
	status, err := e.UpdateUserRecommendations(context.Background(), 5)
	if err == nil || status.Rows != 0 {
		t.Fatalf("status = %+v, err = %v", status, err)
	}
	if e.dims.Loaded() {
		t.Fatal("dimensions swapped in after a failed write")
	}

	ok, _ := newShopEngine(t)
	if _, err := ok.UpdateUserRecommendations(context.Background(), 5); err != nil {
		t.Fatalf("UpdateUserRecommendations: %v", err)
	}
	if !ok.dims.Loaded() {
		t.Fatal("dimensions not swapped in after a successful write")
	}
}

func TestBatchConflict(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	blocking := core.EmbedderFunc(func(ctx context.Context, text string) ([]float64, error) {
		once.Do(func() { close(started) })
		select {
		case <-release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		return []float64{1, float64(len(text))}, nil
	})
	e := New(loadShop(t), store.NewMemoryStore(), WithEmbedder(blocking))
	ctx := context.Background()

	done := make(chan error, 1)
	go func() {
		_, err := e.UpdateContentSimilarities(ctx, 5)
		done <- err
	}()
	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("first batch did not start")
	}

	st, err := e.UpdateSimilarities(ctx, "content_based")
	if !errors.Is(err, job.ErrBatchInProgress) || !core.IsConflict(err) {
		t.Fatalf("err = %v, want CONFLICT", err)
	}
	if st.Rows != 0 {
		t.Errorf("rows = %d", st.Rows)
	}
	// 其他类型不受影响
	if _, err := e.UpdateSimilarities(ctx, "feature_based"); err != nil {
		t.Errorf("feature batch: %v", err)
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("first batch: %v", err)
	}
}

func TestFailedBatchKeepsPreviousContent(t *testing.T) {
	failing := core.EmbedderFunc(func(context.Context, string) ([]float64, error) {
		return nil, errors.New("model down")
	})
	st := store.NewMemoryStore()
	ctx := context.Background()
	prev := []core.SimilarityRecord{{ProductID1: "p1", ProductID2: "p2", Score: 0.9}}
	if _, err := st.ReplaceSimilarities(ctx, core.SimilarityContent, prev); err != nil {
		t.Fatal(err)
	}
	e := New(loadShop(t), st, WithEmbedder(failing))

	status, err := e.UpdateContentSimilarities(ctx, 5)
	if err == nil || status.Rows != 0 {
		t.Fatalf("status = %+v, err = %v", status, err)
	}
	rows, _ := st.SimilarProducts(ctx, "p1", core.SimilarityContent, 0)
	if len(rows) != 1 || rows[0].ProductID2 != "p2" {
		t.Errorf("previous content lost: %+v", rows)
	}
}

func TestRunBatch(t *testing.T) {
	e, _ := newBasketEngine(t)
	ctx := context.Background()
	st, err := e.RunBatch(ctx, job.KindSuggestions, map[string]any{
		"top_n":          "5",
		"min_support":    0.5,
		"min_confidence": "0.5",
	})
	if err != nil {
		t.Fatalf("RunBatch: %v", err)
	}
	if st.Rows != 2 || st.RunID == "" {
		t.Errorf("status = %+v", st)
	}
	if _, err := e.RunBatch(ctx, "reindex", nil); !core.IsInvalidInput(err) {
		t.Errorf("unknown kind err = %v", err)
	}
}

func TestHighBenefitAndAnalytics(t *testing.T) {
	e, _ := newShopEngine(t, WithClock(func() time.Time { return time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC) }))
	ctx := context.Background()

	items, err := e.HighBenefitProducts(ctx, rank.BenefitQuery{Category: "electr", Limit: 1})
	if err != nil {
		t.Fatalf("HighBenefitProducts: %v", err)
	}
	if len(items) != 1 || (items[0].ID != "p1" && items[0].ID != "p2") {
		t.Fatalf("items = %v", core.ItemIDs(items))
	}
	if _, ok := items[0].Features[rank.FactorRating]; !ok {
		t.Errorf("factor breakdown missing: %v", items[0].Features)
	}

	stats, err := e.CategoryAnalytics(ctx, "Electronics")
	if err != nil {
		t.Fatalf("CategoryAnalytics: %v", err)
	}
	if stats.ProductCount != 2 || stats.AverageRating == nil || !approx(*stats.AverageRating, 4.25) {
		t.Errorf("stats = %+v", stats)
	}
}
