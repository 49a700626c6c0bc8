package engine

import (
	"context"
	"fmt"

	"github.com/rushteam/shoprec/core"
	"github.com/rushteam/shoprec/job"
	"github.com/rushteam/shoprec/pkg/conv"
	"github.com/rushteam/shoprec/recall"
)

// UpdateSuggestions 重新挖掘关联规则并整体替换“经常一起购买”缓存，返回写入行数。
// 参数 <= 0 时使用引擎配置。同类任务正在运行时返回 CONFLICT。
func (e *Engine) UpdateSuggestions(ctx context.Context, topN int, minSupport, minConfidence float64) (int, error) {
	st, err := e.updateSuggestions(ctx, topN, minSupport, minConfidence)
	return st.Rows, err
}

func (e *Engine) updateSuggestions(ctx context.Context, topN int, minSupport, minConfidence float64) (job.Status, error) {
	if err := e.requireBatch(); err != nil {
		return job.Status{Kind: job.KindSuggestions, Err: err}, err
	}
	if topN <= 0 {
		topN = e.mining.TopN
	}
	miner := e.associationRules()
	if minSupport > 0 {
		miner.MinSupport = minSupport
	}
	if minConfidence > 0 {
		miner.MinConfidence = minConfidence
	}
	return e.runner.Run(ctx, job.KindSuggestions, func(ctx context.Context) (int, error) {
		products, err := e.catalog.Products(ctx)
		if err != nil {
			return 0, fmt.Errorf("load products: %w", err)
		}
		rules, err := miner.Rules(ctx)
		if err != nil {
			return 0, err
		}
		rows := recall.SuggestionRecords(products, rules, topN)
		e.logger.Debug().Int("rules", len(rules)).Int("rows", len(rows)).Msg("association rules mined")
		return e.store.ReplaceSuggestions(ctx, rows)
	})
}

// UpdateContentSimilarities 重建内容向量索引，为每个商品写入 topN 近邻，
// 成功后把新索引换入在线句柄。
func (e *Engine) UpdateContentSimilarities(ctx context.Context, topN int) (job.Status, error) {
	if err := e.requireBatch(); err != nil {
		return job.Status{Kind: job.KindContentSimilarities, Err: err}, err
	}
	if topN <= 0 {
		topN = e.contentTopN
	}
	return e.runner.Run(ctx, job.KindContentSimilarities, func(ctx context.Context) (int, error) {
		idx, err := e.buildIndex(ctx)
		if err != nil {
			return 0, err
		}
		rows, err := recall.ContentSimilarities(ctx, idx, topN)
		if err != nil {
			return 0, err
		}
		n, err := e.store.ReplaceSimilarities(ctx, core.SimilarityContent, rows)
		if err != nil {
			return 0, err
		}
		e.index.Set(idx)
		return n, nil
	})
}

// UpdateUserRecommendations 为全部用户计算协同过滤推荐并整体替换用户推荐缓存，
// 写入成功后把本次的品类/品牌全集换入在线句柄。
func (e *Engine) UpdateUserRecommendations(ctx context.Context, topN int) (job.Status, error) {
	if err := e.requireBatch(); err != nil {
		return job.Status{Kind: job.KindUserSuggestions, Err: err}, err
	}
	if topN <= 0 {
		topN = e.defaults.DefaultLimit()
	}
	return e.runner.Run(ctx, job.KindUserSuggestions, func(ctx context.Context) (int, error) {
		dims, err := e.profiles.LoadDimensions(ctx)
		if err != nil {
			return 0, err
		}
		profiles, err := e.profiles.Build(ctx, dims, nil)
		if err != nil {
			return 0, err
		}
		k := e.defaults.DefaultSimilarUsers()
		var rows []core.UserSuggestionRecord
		for _, target := range profiles {
			if err := ctx.Err(); err != nil {
				return 0, err
			}
			for i, it := range recall.RecommendFromProfiles(target, profiles, k, topN) {
				rows = append(rows, core.UserSuggestionRecord{
					UserID:    target.UserID,
					ProductID: it.ID,
					Score:     it.Score,
					Rank:      i + 1,
				})
			}
		}
		n, err := e.store.ReplaceUserSuggestions(ctx, rows)
		if err != nil {
			return 0, err
		}
		e.dims.Set(dims)
		return n, nil
	})
}

// UpdateSimilarities 预计算某一类型的商品相似度。
// content_based 等同 UpdateContentSimilarities；behavior_based 与 feature_based
// 两两打分，只保存高于最低分的结果，双向写入。
func (e *Engine) UpdateSimilarities(ctx context.Context, typ string) (job.Status, error) {
	t, err := core.ParseSimilarityType(typ)
	if err != nil {
		return job.Status{Err: err}, err
	}
	if t == core.SimilarityContent {
		return e.UpdateContentSimilarities(ctx, e.contentTopN)
	}
	kind := job.KindFeatureSimilarity
	if t == core.SimilarityBehavior {
		kind = job.KindBehaviorSimilarity
	}
	if err := e.requireBatch(); err != nil {
		return job.Status{Kind: kind, Err: err}, err
	}
	return e.runner.Run(ctx, kind, func(ctx context.Context) (int, error) {
		products, err := e.catalog.Products(ctx)
		if err != nil {
			return 0, fmt.Errorf("load products: %w", err)
		}
		score := recall.FeatureSimilarity
		if t == core.SimilarityBehavior {
			sets, err := recall.ProductUserSets(ctx, e.catalog)
			if err != nil {
				return 0, err
			}
			score = recall.BehaviorJaccard(sets)
		}
		rows, err := recall.PairwiseSimilarities(ctx, products, t, e.minPairScore, score)
		if err != nil {
			return 0, err
		}
		return e.store.ReplaceSimilarities(ctx, t, rows)
	})
}

// RunBatch 按名称触发批任务，参数从 params 读取（CLI 与定时触发共用）：
//
//	suggestions            top_n, min_support, min_confidence
//	content_similarities   top_n
//	user_suggestions       top_n
//	behavior_similarities
//	feature_similarities
func (e *Engine) RunBatch(ctx context.Context, kind job.Kind, params map[string]any) (job.Status, error) {
	topN := conv.ParamInt(params, "top_n", 0)
	switch kind {
	case job.KindSuggestions:
		return e.updateSuggestions(ctx, topN,
			conv.ParamFloat(params, "min_support", 0),
			conv.ParamFloat(params, "min_confidence", 0))
	case job.KindContentSimilarities:
		return e.UpdateContentSimilarities(ctx, topN)
	case job.KindUserSuggestions:
		return e.UpdateUserRecommendations(ctx, topN)
	case job.KindBehaviorSimilarity:
		return e.UpdateSimilarities(ctx, string(core.SimilarityBehavior))
	case job.KindFeatureSimilarity:
		return e.UpdateSimilarities(ctx, string(core.SimilarityFeature))
	default:
		err := core.NewDomainError(core.ModuleEngine, core.ErrorCodeInvalidInput, "engine: unknown batch kind "+string(kind))
		return job.Status{Kind: kind, Err: err}, err
	}
}

func (e *Engine) requireBatch() error {
	if err := e.requireCatalog(); err != nil {
		return err
	}
	return e.requireStore()
}
