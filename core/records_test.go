package core

import (
	"errors"
	"reflect"
	"testing"
)

func TestNormalizeSimilarities(t *testing.T) {
	rows := []SimilarityRecord{
		{ProductID1: "b", ProductID2: "a", Score: 0.4},
		{ProductID1: "a", ProductID2: "a", Score: 1},
		{ProductID1: "a", ProductID2: "c", Score: 0.2},
		{ProductID1: "a", ProductID2: "b", Score: 0.5},
		{ProductID1: "a", ProductID2: "c", Score: 0.9},
	}
	got := NormalizeSimilarities(SimilarityFeature, rows)
	want := []SimilarityRecord{
		{ProductID1: "a", ProductID2: "c", Score: 0.9, Type: SimilarityFeature},
		{ProductID1: "a", ProductID2: "b", Score: 0.5, Type: SimilarityFeature},
		{ProductID1: "b", ProductID2: "a", Score: 0.4, Type: SimilarityFeature},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("NormalizeSimilarities =\n%v\nwant\n%v", got, want)
	}
	// 幂等
	if again := NormalizeSimilarities(SimilarityFeature, got); !reflect.DeepEqual(again, want) {
		t.Fatalf("normalize should be idempotent, got %v", again)
	}
}

func TestNormalizeSuggestionsRanks(t *testing.T) {
	rows := []SuggestionRecord{
		{ProductID: "a", SuggestedProductID: "c", Score: 0.3},
		{ProductID: "a", SuggestedProductID: "a", Score: 1},
		{ProductID: "b", SuggestedProductID: "a", Score: 1},
		{ProductID: "a", SuggestedProductID: "b", Score: 0.7},
	}
	got := NormalizeSuggestions(rows)
	want := []SuggestionRecord{
		{ProductID: "a", SuggestedProductID: "b", Score: 0.7, Rank: 1},
		{ProductID: "a", SuggestedProductID: "c", Score: 0.3, Rank: 2},
		{ProductID: "b", SuggestedProductID: "a", Score: 1, Rank: 1},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("NormalizeSuggestions = %v, want %v", got, want)
	}
}

func TestNormalizeUserSuggestions(t *testing.T) {
	rows := []UserSuggestionRecord{
		{UserID: "u2", ProductID: "p1", Score: 1},
		{UserID: "u1", ProductID: "p2", Score: 2},
		{UserID: "u1", ProductID: "p1", Score: 2},
	}
	got := NormalizeUserSuggestions(rows)
	want := []UserSuggestionRecord{
		{UserID: "u1", ProductID: "p1", Score: 2, Rank: 1},
		{UserID: "u1", ProductID: "p2", Score: 2, Rank: 2},
		{UserID: "u2", ProductID: "p1", Score: 1, Rank: 1},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("NormalizeUserSuggestions = %v, want %v", got, want)
	}
}

func TestParseSimilarityType(t *testing.T) {
	if got, err := ParseSimilarityType(""); err != nil || got != SimilarityContent {
		t.Errorf("empty = %v, %v", got, err)
	}
	if got, err := ParseSimilarityType("Behavior_Based"); err != nil || got != SimilarityBehavior {
		t.Errorf("Behavior_Based = %v, %v", got, err)
	}
	if _, err := ParseSimilarityType("visual"); !IsInvalidInput(err) {
		t.Errorf("expected INVALID_INPUT, got %v", err)
	}
}

func TestDomainErrorIs(t *testing.T) {
	cause := errors.New("connection reset")
	err := BatchWriteFailed("product_similarities", cause)
	if !IsBatchWriteFailed(err) {
		t.Error("IsBatchWriteFailed = false")
	}
	if !errors.Is(err, cause) {
		t.Error("errors.Is should reach the wrapped cause")
	}
	if !errors.Is(err, NewDomainError("", ErrorCodeBatchWriteFailed, "")) {
		t.Error("errors.Is should match on code when module is empty")
	}
	if errors.Is(err, NewDomainError(ModuleJob, ErrorCodeBatchWriteFailed, "")) {
		t.Error("errors.Is should not match a different module")
	}
	if IsDomainError(cause) {
		t.Error("plain error is not a DomainError")
	}
}

func TestInteractionWeight(t *testing.T) {
	tests := map[InteractionType]float64{
		InteractionView:      1,
		InteractionClick:     2,
		InteractionAddToCart: 3,
		InteractionPurchase:  5,
		"PURCHASE":           5,
		"wishlist":           1,
	}
	for typ, want := range tests {
		if got := typ.Weight(); got != want {
			t.Errorf("%s.Weight() = %v, want %v", typ, got, want)
		}
	}
	in := Interaction{Type: InteractionClick}
	if in.Weighted() != 2 {
		t.Errorf("zero value should default to 1, Weighted = %v", in.Weighted())
	}
}
