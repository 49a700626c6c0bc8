package sentiment

import (
	"context"
	"math"
	"testing"
)

func TestKeywordScore(t *testing.T) {
	s := NewKeywordScorer()
	cases := []struct {
		text string
		want float64
	}{
		{"Great mouse!", 1},
		{"good but slow", 0},
		{"Terrible, broken on arrival.", -1},
		{"great quality, bad box", 1.0 / 3},
		{"arrived on tuesday", 0},
		{"", 0},
	}
	for _, tc := range cases {
		got, err := s.Score(context.Background(), tc.text)
		if err != nil {
			t.Fatalf("Score(%q): %v", tc.text, err)
		}
		if math.Abs(got-tc.want) > 1e-9 {
			t.Errorf("Score(%q) = %v, want %v", tc.text, got, tc.want)
		}
	}
}

func TestAnalyze(t *testing.T) {
	s := NewKeywordScorer()
	cases := []struct {
		text  string
		label string
	}{
		{"love it, awesome", Positive},
		{"waste of money", Negative},
		{"good but slow", Neutral},
		{"   ", Neutral},
	}
	for _, tc := range cases {
		if got := s.Analyze(tc.text); got.Label != tc.label {
			t.Errorf("Analyze(%q) = %+v, want %s", tc.text, got, tc.label)
		}
	}
	if r := s.Analyze("awful"); r.Confidence != 1 || r.Score != -1 {
		t.Errorf("Analyze(awful) = %+v", r)
	}
}

func TestDistribution(t *testing.T) {
	s := NewKeywordScorer()
	d := s.Distribution([]string{"great", "bad", "meh", "excellent"})
	if d[Positive] != 0.5 || d[Negative] != 0.25 || d[Neutral] != 0.25 {
		t.Fatalf("distribution = %v", d)
	}
	if d := s.Distribution(nil); d[Positive] != 0 || len(d) != 3 {
		t.Fatalf("empty distribution = %v", d)
	}
}

func TestCustomWords(t *testing.T) {
	s := NewKeywordScorerWith([]string{"Snappy"}, []string{"Laggy"})
	if got, _ := s.Score(context.Background(), "snappy snappy laggy"); math.Abs(got-1.0/3) > 1e-9 {
		t.Fatalf("score = %v", got)
	}
}
