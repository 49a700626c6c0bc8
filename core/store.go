package core

import "context"

// SimilarityStore 是相似度/推荐缓存的领域接口。
//
// 读接口返回空结果表示“没有缓存”，调用方应回退到在线计算。
// 写接口只由批任务调用，整表替换：新集合先规范化（见 NormalizeSimilarities），
// 再原子地替换旧集合；失败时返回 BATCH_WRITE_FAILED，旧内容保持不变。
//
// 实现：
//   - store.MemoryStore
//   - store.RedisStore
//   - store.GormStore
type SimilarityStore interface {
	// Name 返回存储后端名称（用于日志/监控）
	Name() string

	// SimilarProducts 返回 product 的相似商品，按分数降序，最多 limit 条（<=0 不限制）
	SimilarProducts(ctx context.Context, productID string, t SimilarityType, limit int) ([]SimilarityRecord, error)

	// Suggestions 返回关联规则推荐，按 Rank 升序
	Suggestions(ctx context.Context, productID string) ([]SuggestionRecord, error)

	// UserSuggestions 返回用户推荐，按 Rank 升序
	UserSuggestions(ctx context.Context, userID string) ([]UserSuggestionRecord, error)

	// ReplaceSimilarities 整体替换某一类型的相似度表，返回写入行数
	ReplaceSimilarities(ctx context.Context, t SimilarityType, rows []SimilarityRecord) (int, error)

	// ReplaceSuggestions 整体替换关联规则推荐表
	ReplaceSuggestions(ctx context.Context, rows []SuggestionRecord) (int, error)

	// ReplaceUserSuggestions 整体替换用户推荐表
	ReplaceUserSuggestions(ctx context.Context, rows []UserSuggestionRecord) (int, error)

	// Close 关闭连接/释放资源
	Close() error
}

// BatchWriteFailed 构造批量替换失败错误
func BatchWriteFailed(table string, err error) *DomainError {
	return WrapDomainError(ModuleStore, ErrorCodeBatchWriteFailed, "store: replace "+table+" failed", err)
}

