package feature

import (
	"context"
	"reflect"
	"testing"

	"github.com/rushteam/shoprec/catalog"
	"github.com/rushteam/shoprec/core"
	"github.com/rushteam/shoprec/pkg/logging"
)

func profileCatalog() *catalog.MemoryCatalog {
	return catalog.NewMemoryCatalog(catalog.Fixture{
		Products: []*core.Product{
			{ID: "p1", Brand: "Acme", Category: "Electronics", Price: 10},
			{ID: "p2", Brand: "Lumo", Category: "Home", Price: 20},
			{ID: "p3", Brand: "Ghost", Category: "Home", Price: 5, Status: "DRAFT"},
		},
		Users: []string{"u1", "u2", "u3"},
		Orders: []core.Order{
			{ID: "o1", UserID: "u1", TotalAmount: 40},
			{ID: "o2", UserID: "u1", TotalAmount: 5},
			{ID: "o3", UserID: "u2", TotalAmount: 20},
		},
		OrderItems: []core.OrderItem{
			{OrderID: "o1", ProductID: "p1", Quantity: 2},
			{OrderID: "o1", ProductID: "p2", Quantity: 1},
			{OrderID: "o2", ProductID: "p3", Quantity: 1},
			{OrderID: "o2", ProductID: "gone", Quantity: 1},
			{OrderID: "o3", ProductID: "p2", Quantity: 3},
		},
	})
}

func TestProfileBuilder(t *testing.T) {
	ctx := context.Background()
	b := NewProfileBuilder(profileCatalog(), logging.Nop())
	dims, err := b.LoadDimensions(ctx)
	if err != nil {
		t.Fatal(err)
	}
	// categories: Electronics, Home；brands: Acme, Lumo（Ghost 未上架）
	if dims.Size() != 6 {
		t.Fatalf("Size = %d, want 6", dims.Size())
	}

	profiles, err := b.Build(ctx, dims, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(profiles) != 3 {
		t.Fatalf("profiles = %d", len(profiles))
	}
	tests := []struct {
		user      string
		vector    []float64
		purchases map[string]float64
	}{
		// 未上架商品 p3 与已下架商品只贡献消费金额
		{"u1", []float64{2, 45, 2, 1, 2, 1}, map[string]float64{"p1": 2, "p2": 1}},
		{"u2", []float64{1, 20, 0, 3, 0, 3}, map[string]float64{"p2": 3}},
		{"u3", []float64{0, 0, 0, 0, 0, 0}, map[string]float64{}},
	}
	for i, tt := range tests {
		p := profiles[i]
		if p.UserID != tt.user {
			t.Fatalf("profiles[%d].UserID = %s, want %s", i, p.UserID, tt.user)
		}
		if !reflect.DeepEqual(p.Vector, tt.vector) {
			t.Errorf("%s vector = %v, want %v", tt.user, p.Vector, tt.vector)
		}
		if !reflect.DeepEqual(p.Purchases, tt.purchases) {
			t.Errorf("%s purchases = %v, want %v", tt.user, p.Purchases, tt.purchases)
		}
	}
	if profiles[0].OrderCount() != 2 || profiles[0].TotalSpent() != 45 || !profiles[0].Purchased("p1") {
		t.Error("profile accessors")
	}
}

func TestProfileBuilderSubsetAndNilCatalog(t *testing.T) {
	ctx := context.Background()
	b := NewProfileBuilder(profileCatalog(), logging.Nop())
	dims, _ := b.LoadDimensions(ctx)
	profiles, err := b.Build(ctx, dims, []string{"u2"})
	if err != nil || len(profiles) != 1 || profiles[0].UserID != "u2" {
		t.Fatalf("Build subset = %v, %v", profiles, err)
	}
	if _, err := NewProfileBuilder(nil, logging.Nop()).LoadDimensions(ctx); !core.IsNotConfigured(err) {
		t.Errorf("nil catalog: %v", err)
	}
}
