// Package sentiment 提供基于关键词的评论情感打分（core.SentimentScorer 实现）。
package sentiment

import (
	"context"
	"strings"
	"unicode"
)

// 情感标签
const (
	Positive = "positive"
	Negative = "negative"
	Neutral  = "neutral"
)

// neutralBand 分数绝对值不超过此值视为中性
const neutralBand = 0.1

var (
	defaultPositive = []string{
		"excellent", "amazing", "great", "good", "fantastic", "wonderful",
		"perfect", "love", "best", "awesome", "outstanding", "superb",
		"brilliant", "satisfied", "happy", "pleased", "impressed",
		"recommend", "quality", "fast", "beautiful", "comfortable",
	}
	defaultNegative = []string{
		"terrible", "awful", "bad", "horrible", "worst", "hate",
		"disappointing", "poor", "cheap", "broken", "defective",
		"slow", "uncomfortable", "expensive", "useless", "waste",
		"regret", "problem", "issue", "complaint", "refund",
	}
)

// Result 是一条文本的情感分析结果
type Result struct {
	Label      string  `json:"sentiment"`
	Score      float64 `json:"score"`      // [-1, 1]
	Confidence float64 `json:"confidence"` // |score|
}

// KeywordScorer 统计正负关键词：score = (正词数 - 负词数) / 关键词总数，没有关键词时为 0。
type KeywordScorer struct {
	positive map[string]struct{}
	negative map[string]struct{}
}

// NewKeywordScorer 使用内置词表
func NewKeywordScorer() *KeywordScorer {
	return NewKeywordScorerWith(defaultPositive, defaultNegative)
}

// NewKeywordScorerWith 使用自定义词表（忽略大小写）
func NewKeywordScorerWith(positive, negative []string) *KeywordScorer {
	s := &KeywordScorer{
		positive: make(map[string]struct{}, len(positive)),
		negative: make(map[string]struct{}, len(negative)),
	}
	for _, w := range positive {
		s.positive[strings.ToLower(w)] = struct{}{}
	}
	for _, w := range negative {
		s.negative[strings.ToLower(w)] = struct{}{}
	}
	return s
}

// tokenize 转小写，去掉字母与空白以外的字符后按空白切分
func tokenize(text string) []string {
	cleaned := strings.Map(func(r rune) rune {
		switch {
		case unicode.IsLetter(r):
			return unicode.ToLower(r)
		case unicode.IsSpace(r):
			return ' '
		default:
			return -1
		}
	}, text)
	return strings.Fields(cleaned)
}

// Score 实现 core.SentimentScorer
func (s *KeywordScorer) Score(_ context.Context, text string) (float64, error) {
	return s.score(text), nil
}

func (s *KeywordScorer) score(text string) float64 {
	pos, neg := 0, 0
	for _, w := range tokenize(text) {
		if _, ok := s.positive[w]; ok {
			pos++
		} else if _, ok := s.negative[w]; ok {
			neg++
		}
	}
	if pos+neg == 0 {
		return 0
	}
	return float64(pos-neg) / float64(pos+neg)
}

// Analyze 返回标签、分数与置信度
func (s *KeywordScorer) Analyze(text string) Result {
	if strings.TrimSpace(text) == "" {
		return Result{Label: Neutral}
	}
	sc := s.score(text)
	r := Result{Label: Neutral, Score: sc, Confidence: min(abs(sc), 1)}
	switch {
	case sc > neutralBand:
		r.Label = Positive
	case sc < -neutralBand:
		r.Label = Negative
	}
	return r
}

// Distribution 返回一组文本中各标签的占比
func (s *KeywordScorer) Distribution(texts []string) map[string]float64 {
	out := map[string]float64{Positive: 0, Negative: 0, Neutral: 0}
	if len(texts) == 0 {
		return out
	}
	for _, t := range texts {
		out[s.Analyze(t).Label]++
	}
	for k := range out {
		out[k] /= float64(len(texts))
	}
	return out
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
