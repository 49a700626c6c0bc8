package core

import (
	"sort"
	"strings"
)

// SimilarityType 商品相似度类型
type SimilarityType string

const (
	SimilarityContent  SimilarityType = "content_based"
	SimilarityBehavior SimilarityType = "behavior_based"
	SimilarityFeature  SimilarityType = "feature_based"
)

// SimilarityTypes 全部相似度类型
var SimilarityTypes = []SimilarityType{SimilarityContent, SimilarityBehavior, SimilarityFeature}

// ParseSimilarityType 解析相似度类型，空串为 content_based
func ParseSimilarityType(s string) (SimilarityType, error) {
	if s == "" {
		return SimilarityContent, nil
	}
	t := SimilarityType(strings.ToLower(s))
	for _, known := range SimilarityTypes {
		if t == known {
			return t, nil
		}
	}
	return "", NewDomainError(ModuleStore, ErrorCodeInvalidInput, "unknown similarity type: "+s)
}

// SimilarityRecord 是一条商品-商品相似度缓存行
type SimilarityRecord struct {
	ProductID1 string         `json:"product_id_1"`
	ProductID2 string         `json:"product_id_2"`
	Score      float64        `json:"score"`
	Type       SimilarityType `json:"type"`
}

// SuggestionRecord 是关联规则推荐缓存行（“买了 X 的人也买了 Y”）
type SuggestionRecord struct {
	ProductID          string  `json:"product_id"`
	SuggestedProductID string  `json:"suggested_product_id"`
	Score              float64 `json:"score"`
	Rank               int     `json:"rank"`
}

// UserSuggestionRecord 是用户推荐缓存行
type UserSuggestionRecord struct {
	UserID    string  `json:"user_id"`
	ProductID string  `json:"product_id"`
	Score     float64 `json:"score"`
	Rank      int     `json:"rank"`
}

// NormalizeSimilarities 丢弃自身对、每个 (p1, p2) 保留最高分，
// 按 p1 升序、分数降序、p2 升序输出。写入的 Type 统一为 t。
func NormalizeSimilarities(t SimilarityType, rows []SimilarityRecord) []SimilarityRecord {
	type key struct{ a, b string }
	best := make(map[key]int, len(rows))
	out := make([]SimilarityRecord, 0, len(rows))
	for _, r := range rows {
		if r.ProductID1 == r.ProductID2 {
			continue
		}
		r.Type = t
		k := key{r.ProductID1, r.ProductID2}
		if i, ok := best[k]; ok {
			if r.Score > out[i].Score {
				out[i].Score = r.Score
			}
			continue
		}
		best[k] = len(out)
		out = append(out, r)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].ProductID1 != out[j].ProductID1 {
			return out[i].ProductID1 < out[j].ProductID1
		}
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].ProductID2 < out[j].ProductID2
	})
	return out
}

// NormalizeSuggestions 丢弃自身推荐、去重后按商品分组重新编号 Rank（从 1 开始）
func NormalizeSuggestions(rows []SuggestionRecord) []SuggestionRecord {
	type key struct{ a, b string }
	best := make(map[key]int, len(rows))
	out := make([]SuggestionRecord, 0, len(rows))
	for _, r := range rows {
		if r.ProductID == r.SuggestedProductID {
			continue
		}
		k := key{r.ProductID, r.SuggestedProductID}
		if i, ok := best[k]; ok {
			if r.Score > out[i].Score {
				out[i].Score = r.Score
			}
			continue
		}
		best[k] = len(out)
		out = append(out, r)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].ProductID != out[j].ProductID {
			return out[i].ProductID < out[j].ProductID
		}
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].SuggestedProductID < out[j].SuggestedProductID
	})
	rank := 0
	for i := range out {
		if i == 0 || out[i].ProductID != out[i-1].ProductID {
			rank = 0
		}
		rank++
		out[i].Rank = rank
	}
	return out
}

// NormalizeUserSuggestions 同 NormalizeSuggestions，按用户分组
func NormalizeUserSuggestions(rows []UserSuggestionRecord) []UserSuggestionRecord {
	type key struct{ a, b string }
	best := make(map[key]int, len(rows))
	out := make([]UserSuggestionRecord, 0, len(rows))
	for _, r := range rows {
		k := key{r.UserID, r.ProductID}
		if i, ok := best[k]; ok {
			if r.Score > out[i].Score {
				out[i].Score = r.Score
			}
			continue
		}
		best[k] = len(out)
		out = append(out, r)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].UserID != out[j].UserID {
			return out[i].UserID < out[j].UserID
		}
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].ProductID < out[j].ProductID
	})
	rank := 0
	for i := range out {
		if i == 0 || out[i].UserID != out[i-1].UserID {
			rank = 0
		}
		rank++
		out[i].Rank = rank
	}
	return out
}
