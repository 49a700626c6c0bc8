// Package store 提供 core.SimilarityStore 的实现：内存、Redis 与 Postgres（gorm）。
//
// 三种实现的替换语义一致：写入前用 core.Normalize* 规范化，读者只会看到完整的旧集合或完整的新集合。
//
//	var s core.SimilarityStore = store.NewMemoryStore()
package store

import "github.com/rushteam/shoprec/core"

// 缓存表名，同时用作 Redis key 前缀与错误信息
const (
	tableSimilarities    = "product_similarities"
	tableSuggestions     = "product_suggestions"
	tableUserSuggestions = "product_suggested_for_user"
)

func similarityTable(t core.SimilarityType) string {
	return tableSimilarities + ":" + string(t)
}

// groupSimilarities 按 ProductID1 分组；输入已规范化，组内保持分数降序
func groupSimilarities(rows []core.SimilarityRecord) map[string][]core.SimilarityRecord {
	out := make(map[string][]core.SimilarityRecord)
	for _, r := range rows {
		out[r.ProductID1] = append(out[r.ProductID1], r)
	}
	return out
}

func groupSuggestions(rows []core.SuggestionRecord) map[string][]core.SuggestionRecord {
	out := make(map[string][]core.SuggestionRecord)
	for _, r := range rows {
		out[r.ProductID] = append(out[r.ProductID], r)
	}
	return out
}

func groupUserSuggestions(rows []core.UserSuggestionRecord) map[string][]core.UserSuggestionRecord {
	out := make(map[string][]core.UserSuggestionRecord)
	for _, r := range rows {
		out[r.UserID] = append(out[r.UserID], r)
	}
	return out
}

// head 返回前 limit 条的副本，limit <= 0 不截断
func head[T any](rows []T, limit int) []T {
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	return append([]T(nil), rows...)
}
