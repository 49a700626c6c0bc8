package recall

import (
	"context"

	"github.com/rushteam/shoprec/core"
	"github.com/rushteam/shoprec/vector"
)

// ContentKNN 基于内容向量索引的相似商品。
// 源商品不在索引中时交给 Fallback（通常是 AttributeSimilar）。
type ContentKNN struct {
	Index    func(ctx context.Context) (*vector.FlatIndex, error)
	Fallback ProductSimilar
}

func (s *ContentKNN) Name() string { return "similar.content_knn" }

func (s *ContentKNN) Similar(ctx context.Context, productID string, k int) ([]*core.Item, error) {
	if s.Index == nil {
		return nil, core.NotConfigured(core.ModuleVector, "content index")
	}
	idx, err := s.Index(ctx)
	if err != nil {
		return nil, err
	}
	if !idx.Contains(productID) {
		if s.Fallback == nil {
			return nil, nil
		}
		return s.Fallback.Similar(ctx, productID, k)
	}
	return hitsToItems(idx.Nearest(productID, k)), nil
}

func hitsToItems(hits []vector.Hit) []*core.Item {
	out := make([]*core.Item, 0, len(hits))
	for _, h := range hits {
		it := core.NewItem(h.ID)
		it.Score = h.Score
		out = append(out, it)
	}
	return out
}

// ContentSimilarities 为索引中每个商品取 topN 最近邻，结果双向写出；
// 同一有序对出现多次时由 core.NormalizeSimilarities 保留最大分。
func ContentSimilarities(ctx context.Context, idx *vector.FlatIndex, topN int) ([]core.SimilarityRecord, error) {
	var out []core.SimilarityRecord
	for _, id := range idx.IDs() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for _, h := range idx.Nearest(id, topN) {
			out = append(out,
				core.SimilarityRecord{ProductID1: id, ProductID2: h.ID, Score: h.Score, Type: core.SimilarityContent},
				core.SimilarityRecord{ProductID1: h.ID, ProductID2: id, Score: h.Score, Type: core.SimilarityContent},
			)
		}
	}
	return out, nil
}
