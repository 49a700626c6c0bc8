// Package vector 提供商品内容向量的精确内积索引及其构建器。
package vector

import (
	"sort"
	"sync"

	"github.com/rushteam/shoprec/core"
	"github.com/rushteam/shoprec/pkg/similarity"
)

// Hit 是一条检索结果
type Hit struct {
	ID    string
	Score float64
}

// FlatIndex 是精确（暴力）内积索引。
//
// 向量在 Add 时做 L2 归一化，因此内积即余弦相似度；零向量保持为零，与任何向量的分数都是 0。
// 检索结果按分数降序，分数相同按插入顺序。线程安全。
type FlatIndex struct {
	mu   sync.RWMutex
	dim  int
	ids  []string
	vecs [][]float64
	pos  map[string]int
}

// NewFlatIndex 创建维度为 dim 的索引；dim <= 0 时以第一次 Add 的向量维度为准
func NewFlatIndex(dim int) *FlatIndex {
	return &FlatIndex{dim: dim, pos: make(map[string]int)}
}

// Dim 向量维度
func (x *FlatIndex) Dim() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.dim
}

// Len 向量个数
func (x *FlatIndex) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.ids)
}

// IDs 返回全部 id（插入顺序）
func (x *FlatIndex) IDs() []string {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return append([]string(nil), x.ids...)
}

// Contains 是否包含商品
func (x *FlatIndex) Contains(id string) bool {
	x.mu.RLock()
	defer x.mu.RUnlock()
	_, ok := x.pos[id]
	return ok
}

// Add 写入向量；同一 id 再次写入会覆盖原向量但保留插入位置
func (x *FlatIndex) Add(id string, vec []float64) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.dim <= 0 {
		x.dim = len(vec)
	}
	if len(vec) != x.dim || x.dim == 0 {
		return core.NewDomainError(core.ModuleVector, core.ErrorCodeInvalidInput, "vector dimension mismatch")
	}
	n := similarity.Normalize(vec)
	if i, ok := x.pos[id]; ok {
		x.vecs[i] = n
		return nil
	}
	x.pos[id] = len(x.ids)
	x.ids = append(x.ids, id)
	x.vecs = append(x.vecs, n)
	return nil
}

// Vector 返回已归一化的向量副本
func (x *FlatIndex) Vector(id string) ([]float64, bool) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	i, ok := x.pos[id]
	if !ok {
		return nil, false
	}
	out := make([]float64, len(x.vecs[i]))
	copy(out, x.vecs[i])
	return out, true
}

// Search 返回与 vec 内积最高的 k 条结果（vec 会先归一化）
func (x *FlatIndex) Search(vec []float64, k int) ([]Hit, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	if len(x.ids) == 0 || k <= 0 {
		return nil, nil
	}
	if len(vec) != x.dim {
		return nil, core.NewDomainError(core.ModuleVector, core.ErrorCodeInvalidInput, "vector dimension mismatch")
	}
	return x.search(similarity.Normalize(vec), k, ""), nil
}

// Nearest 返回与商品 id 最相似的 k 个其它商品（检索 k+1 条再去掉自身）。
// id 不在索引中时返回空结果。
func (x *FlatIndex) Nearest(id string, k int) []Hit {
	x.mu.RLock()
	defer x.mu.RUnlock()
	i, ok := x.pos[id]
	if !ok || k <= 0 {
		return nil
	}
	hits := x.search(x.vecs[i], k+1, id)
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits
}

func (x *FlatIndex) search(q []float64, k int, exclude string) []Hit {
	hits := make([]Hit, 0, len(x.ids))
	for i, id := range x.ids {
		if id == exclude {
			continue
		}
		hits = append(hits, Hit{ID: id, Score: similarity.Dot(q, x.vecs[i])})
	}
	// SliceStable 保证同分时按插入顺序
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits
}
