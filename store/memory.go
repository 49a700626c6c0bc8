package store

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/rushteam/shoprec/core"
)

type similaritySnapshot map[core.SimilarityType]map[string][]core.SimilarityRecord

// MemoryStore 是内存实现的 SimilarityStore。
//
// 每张表是一个不可变快照，写者构造完整的新快照后通过 atomic.Pointer 一次性替换，
// 读者无锁读取。适用于单进程部署与测试。
type MemoryStore struct {
	mu sync.Mutex // 串行化写者

	sims  atomic.Pointer[similaritySnapshot]
	sugg  atomic.Pointer[map[string][]core.SuggestionRecord]
	users atomic.Pointer[map[string][]core.UserSuggestionRecord]
}

// NewMemoryStore 创建空的内存缓存
func NewMemoryStore() *MemoryStore {
	s := &MemoryStore{}
	s.sims.Store(&similaritySnapshot{})
	s.sugg.Store(&map[string][]core.SuggestionRecord{})
	s.users.Store(&map[string][]core.UserSuggestionRecord{})
	return s
}

func (s *MemoryStore) Name() string { return "memory" }

func (s *MemoryStore) SimilarProducts(_ context.Context, productID string, t core.SimilarityType, limit int) ([]core.SimilarityRecord, error) {
	snap := *s.sims.Load()
	return head(snap[t][productID], limit), nil
}

func (s *MemoryStore) Suggestions(_ context.Context, productID string) ([]core.SuggestionRecord, error) {
	return head((*s.sugg.Load())[productID], 0), nil
}

func (s *MemoryStore) UserSuggestions(_ context.Context, userID string) ([]core.UserSuggestionRecord, error) {
	return head((*s.users.Load())[userID], 0), nil
}

func (s *MemoryStore) ReplaceSimilarities(ctx context.Context, t core.SimilarityType, rows []core.SimilarityRecord) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, core.BatchWriteFailed(similarityTable(t), err)
	}
	rows = core.NormalizeSimilarities(t, rows)
	s.mu.Lock()
	defer s.mu.Unlock()
	old := *s.sims.Load()
	next := make(similaritySnapshot, len(old)+1)
	for k, v := range old {
		next[k] = v
	}
	next[t] = groupSimilarities(rows)
	s.sims.Store(&next)
	return len(rows), nil
}

func (s *MemoryStore) ReplaceSuggestions(ctx context.Context, rows []core.SuggestionRecord) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, core.BatchWriteFailed(tableSuggestions, err)
	}
	rows = core.NormalizeSuggestions(rows)
	next := groupSuggestions(rows)
	s.mu.Lock()
	s.sugg.Store(&next)
	s.mu.Unlock()
	return len(rows), nil
}

func (s *MemoryStore) ReplaceUserSuggestions(ctx context.Context, rows []core.UserSuggestionRecord) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, core.BatchWriteFailed(tableUserSuggestions, err)
	}
	rows = core.NormalizeUserSuggestions(rows)
	next := groupUserSuggestions(rows)
	s.mu.Lock()
	s.users.Store(&next)
	s.mu.Unlock()
	return len(rows), nil
}

func (s *MemoryStore) Close() error { return nil }

var _ core.SimilarityStore = (*MemoryStore)(nil)
