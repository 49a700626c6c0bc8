package core

import (
	"testing"

	"github.com/goccy/go-json"
	"gopkg.in/yaml.v3"
)

func TestFeatureMapCaseInsensitive(t *testing.T) {
	fm := NewFeatureMap("Color", "Red", "size", "M")
	if v, ok := fm.Get("color"); !ok || v != "Red" {
		t.Fatalf("Get(color) = %q, %v", v, ok)
	}
	if !fm.Matches("COLOR", "red") {
		t.Error("Matches should ignore case")
	}
	fm.Set("COLOR", "blue")
	if fm.Len() != 2 {
		t.Fatalf("Len = %d, want 2", fm.Len())
	}
	if keys := fm.Keys(); keys[0] != "Color" || keys[1] != "size" {
		t.Errorf("Keys = %v, want insertion order with original names", keys)
	}
	if !fm.Equal(NewFeatureMap("size", "m", "color", "BLUE")) {
		t.Error("Equal should ignore order and case")
	}
}

func TestFeatureMapJaccard(t *testing.T) {
	tests := []struct {
		name string
		a, b FeatureMap
		want float64
	}{
		{"identical", NewFeatureMap("color", "red"), NewFeatureMap("Color", "RED"), 1},
		{"one of three", NewFeatureMap("color", "red", "size", "m"), NewFeatureMap("color", "red", "material", "wool"), 1.0 / 3},
		{"same key different value", NewFeatureMap("color", "red"), NewFeatureMap("color", "blue"), 0},
		{"empty", FeatureMap{}, NewFeatureMap("color", "red"), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.Jaccard(tt.b); got != tt.want {
				t.Errorf("Jaccard = %v, want %v", got, tt.want)
			}
			if got := tt.b.Jaccard(tt.a); got != tt.want {
				t.Errorf("Jaccard (reversed) = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFeatureMapYAMLOrder(t *testing.T) {
	var p Product
	src := "id: p1\nfeatures:\n  size: M\n  color: red\n"
	if err := yaml.Unmarshal([]byte(src), &p); err != nil {
		t.Fatal(err)
	}
	if keys := p.Features.Keys(); len(keys) != 2 || keys[0] != "size" || keys[1] != "color" {
		t.Fatalf("Keys = %v, want document order", keys)
	}
	out, err := yaml.Marshal(p.Features)
	if err != nil {
		t.Fatal(err)
	}
	if string(out) != "size: M\ncolor: red\n" {
		t.Errorf("Marshal = %q", out)
	}
}

func TestFeatureMapJSON(t *testing.T) {
	var fm FeatureMap
	if err := json.Unmarshal([]byte(`{"b":"x","a":42}`), &fm); err != nil {
		t.Fatal(err)
	}
	if keys := fm.Keys(); keys[0] != "a" || keys[1] != "b" {
		t.Errorf("Keys = %v, want sorted", keys)
	}
	if v, _ := fm.Get("a"); v != "42" {
		t.Errorf("non-string value = %q, want literal 42", v)
	}
}

func TestProductHelpers(t *testing.T) {
	p := &Product{Name: "Mug", Brand: "Acme", Description: "ceramic", Status: "approved"}
	if p.HasRating() || p.RatingValue() != 0 {
		t.Error("nil rating should be absent")
	}
	if !p.Approved() {
		t.Error("status match should ignore case")
	}
	if (&Product{Status: "DRAFT"}).Approved() {
		t.Error("DRAFT should not be approved")
	}
	if got := p.ContentText(); got != "Mug Acme ceramic" {
		t.Errorf("ContentText = %q", got)
	}
}
