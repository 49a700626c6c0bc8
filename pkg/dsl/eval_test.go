package dsl

import (
	"testing"

	"github.com/rushteam/shoprec/core"
	"github.com/rushteam/shoprec/pkg/utils"
)

func TestMatchProduct(t *testing.T) {
	p := &core.Product{
		ID:       "p1",
		Brand:    "acme",
		Category: "Electronics",
		Price:    80,
		Rating:   core.Float64(4.5),
		Features: core.NewFeatureMap("color", "red"),
	}
	tests := []struct {
		expr string
		want bool
	}{
		{`product.price < 100.0 && product.brand == "acme"`, true},
		{`product.price > 100.0`, false},
		{`product.has_rating && product.rating >= 4.0`, true},
		{`"color" in product.features && product.features.color == "red"`, true},
		{`product.category.contains("Elec")`, true},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			e, err := Compile(tt.expr)
			if err != nil {
				t.Fatalf("Compile: %v", err)
			}
			got, err := e.MatchProduct(p)
			if err != nil {
				t.Fatalf("MatchProduct: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCompileEmptyAndInvalid(t *testing.T) {
	e, err := Compile("")
	if err != nil || e != nil {
		t.Fatalf("Compile(\"\") = %v, %v", e, err)
	}
	ok, err := e.MatchProduct(&core.Product{})
	if err != nil || !ok {
		t.Fatalf("nil Expr should match everything, got %v, %v", ok, err)
	}
	if _, err := Compile("product.price <"); !core.IsInvalidInput(err) {
		t.Fatalf("expected INVALID_INPUT, got %v", err)
	}
}

func TestNonBoolean(t *testing.T) {
	e, err := Compile("product.price")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := e.MatchProduct(&core.Product{Price: 1}); err == nil {
		t.Fatal("expected error for non-boolean result")
	}
}

func TestMatchItem(t *testing.T) {
	item := core.NewItem("p1")
	item.Score = 0.8
	item.PutLabel("recall_source", utils.Label{Value: "content_based", Source: "recall"})
	e, err := Compile(`label.recall_source.contains("content") && item.score > 0.5 && rctx.user_id == "u1"`)
	if err != nil {
		t.Fatal(err)
	}
	ok, err := e.MatchItem(item, &core.RecommendContext{UserID: "u1"})
	if err != nil || !ok {
		t.Fatalf("MatchItem = %v, %v", ok, err)
	}
}
