package recall

import (
	"context"
	"fmt"
	"sort"

	"github.com/rs/zerolog"

	"github.com/rushteam/shoprec/core"
	"github.com/rushteam/shoprec/feature"
	"github.com/rushteam/shoprec/pkg/similarity"
)

// DefaultSimilarUsers 近邻用户数缺省值
const DefaultSimilarUsers = 5

// Neighbor 是一个相似用户
type Neighbor struct {
	Profile    *core.UserProfile
	Similarity float64
}

// Similarity 用户画像相似度 = 0.5×Pearson + 0.5×Cosine，退化输入的分量取 0。
func Similarity(u, v *core.UserProfile) float64 {
	if u == nil || v == nil {
		return 0
	}
	return similarity.Hybrid(u.Vector, v.Vector)
}

// TopKSimilarUsers 计算 target 与其余画像的相似度，稳定降序取前 k 个；同分保持 profiles 顺序。
func TopKSimilarUsers(target *core.UserProfile, profiles []*core.UserProfile, k int) []Neighbor {
	if target == nil || k <= 0 {
		return nil
	}
	out := make([]Neighbor, 0, len(profiles))
	for _, p := range profiles {
		if p == nil || p.UserID == target.UserID {
			continue
		}
		out = append(out, Neighbor{Profile: p, Similarity: Similarity(target, p)})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Similarity > out[j].Similarity
	})
	if len(out) > k {
		out = out[:k]
	}
	return out
}

// RecommendFromProfiles 是纯内存的用户协同过滤：
// score(product) = Σ similarity × 近邻购买件数，排除 target 已购商品，降序截断到 n（n <= 0 不截断）。
// 负相似度保留，会压低对应商品的分数。
func RecommendFromProfiles(target *core.UserProfile, profiles []*core.UserProfile, k, n int) []*core.Item {
	neighbors := TopKSimilarUsers(target, profiles, k)
	if len(neighbors) == 0 {
		return nil
	}
	scores := make(map[string]float64)
	for _, nb := range neighbors {
		for pid, qty := range nb.Profile.Purchases {
			if target.Purchased(pid) {
				continue
			}
			scores[pid] += nb.Similarity * qty
		}
	}
	return scoredIDs(scores, n)
}

// UserCF 是基于用户画像的协同过滤召回源。
type UserCF struct {
	Profiles *feature.ProfileBuilder

	// Dimensions 返回品类/品牌全集，通常来自 engine 的 lazy 句柄；为 nil 时每次现场加载
	Dimensions func(ctx context.Context) (*feature.Dimensions, error)

	// SimilarUsers 近邻数，<= 0 时使用 DefaultSimilarUsers
	SimilarUsers int

	Logger zerolog.Logger
}

func (r *UserCF) Name() string { return "recall.user_cf" }

func (r *UserCF) Recall(ctx context.Context, rctx *core.RecommendContext) ([]*core.Item, error) {
	if rctx == nil || rctx.UserID == "" {
		return nil, nil
	}
	return r.RecommendProducts(ctx, rctx.UserID, rctx.Limit)
}

func (r *UserCF) k() int {
	if r.SimilarUsers <= 0 {
		return DefaultSimilarUsers
	}
	return r.SimilarUsers
}

func (r *UserCF) dims(ctx context.Context) (*feature.Dimensions, error) {
	if r.Dimensions != nil {
		return r.Dimensions(ctx)
	}
	return r.Profiles.LoadDimensions(ctx)
}

// RecommendProducts 为用户现场计算协同过滤推荐
func (r *UserCF) RecommendProducts(ctx context.Context, userID string, n int) ([]*core.Item, error) {
	if r.Profiles == nil {
		return nil, core.NotConfigured(core.ModuleRecall, "profile builder")
	}
	dims, err := r.dims(ctx)
	if err != nil {
		return nil, fmt.Errorf("user cf dimensions: %w", err)
	}
	profiles, err := r.Profiles.Build(ctx, dims, nil)
	if err != nil {
		return nil, fmt.Errorf("user cf profiles: %w", err)
	}
	var target *core.UserProfile
	for _, p := range profiles {
		if p.UserID == userID {
			target = p
			break
		}
	}
	if target == nil {
		built, err := r.Profiles.Build(ctx, dims, []string{userID})
		if err != nil {
			return nil, fmt.Errorf("user cf profile %s: %w", userID, err)
		}
		target = built[0]
	}
	items := RecommendFromProfiles(target, profiles, r.k(), n)
	r.Logger.Debug().Str("user_id", userID).Int("profiles", len(profiles)).Int("items", len(items)).Msg("user cf recall")
	return items, nil
}
