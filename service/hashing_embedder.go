package service

import (
	"context"
	"strings"
	"unicode"

	"github.com/cespare/xxhash/v2"

	"github.com/rushteam/shoprec/core"
)

// DefaultHashingDimension 哈希向量缺省维度
const DefaultHashingDimension = 256

// HashingEmbedder 是不依赖外部模型的确定性向量器（feature hashing）。
//
// 文本转小写后按非字母数字切词，每个词哈希到一个维度并按符号位 ±1 累加，
// 最后按词数取平均。相同文本总是得到相同向量，适合离线环境、演示与测试。
type HashingEmbedder struct {
	Dimension int
}

// NewHashingEmbedder 创建哈希向量器，dim <= 0 时使用 DefaultHashingDimension
func NewHashingEmbedder(dim int) *HashingEmbedder {
	if dim <= 0 {
		dim = DefaultHashingDimension
	}
	return &HashingEmbedder{Dimension: dim}
}

func (h *HashingEmbedder) dim() int {
	if h.Dimension <= 0 {
		return DefaultHashingDimension
	}
	return h.Dimension
}

// Embed 实现 core.Embedder
func (h *HashingEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	dim := h.dim()
	vec := make([]float64, dim)
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	if len(words) == 0 {
		return vec, nil
	}
	for _, w := range words {
		sum := xxhash.Sum64String(w)
		i := int(sum % uint64(dim))
		if sum&(1<<63) != 0 {
			vec[i]--
		} else {
			vec[i]++
		}
	}
	for i := range vec {
		vec[i] /= float64(len(words))
	}
	return vec, nil
}

var _ core.Embedder = (*HashingEmbedder)(nil)
