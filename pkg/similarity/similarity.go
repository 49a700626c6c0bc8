// Package similarity 提供向量相似度计算。
//
// 所有函数对退化输入（长度不一致、零方差、零范数、NaN）返回 0，不会向上游传播 NaN。
package similarity

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Pearson 皮尔逊相关系数，零方差或 NaN 时为 0。
func Pearson(a, b []float64) float64 {
	if len(a) != len(b) || len(a) < 2 {
		return 0
	}
	if stat.Variance(a, nil) == 0 || stat.Variance(b, nil) == 0 {
		return 0
	}
	return finite(stat.Correlation(a, b, nil))
}

// Cosine 余弦相似度，任一向量零范数时为 0。
func Cosine(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	na, nb := floats.Norm(a, 2), floats.Norm(b, 2)
	if na == 0 || nb == 0 {
		return 0
	}
	return finite(floats.Dot(a, b) / (na * nb))
}

// Hybrid 是 0.5×Pearson + 0.5×Cosine。
func Hybrid(a, b []float64) float64 {
	return 0.5*Pearson(a, b) + 0.5*Cosine(a, b)
}

// Jaccard 两个字符串集合的交集 / 并集，任一为空时为 0。
func Jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	inter := 0
	for k := range a {
		if _, ok := b[k]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	return float64(inter) / float64(union)
}

// Normalize 返回 L2 归一化后的副本；零向量保持为零。
func Normalize(v []float64) []float64 {
	out := make([]float64, len(v))
	copy(out, v)
	n := floats.Norm(out, 2)
	if n == 0 || math.IsNaN(n) || math.IsInf(n, 0) {
		for i := range out {
			out[i] = 0
		}
		return out
	}
	floats.Scale(1/n, out)
	return out
}

// Dot 内积
func Dot(a, b []float64) float64 {
	if len(a) != len(b) {
		return 0
	}
	return finite(floats.Dot(a, b))
}

// Clamp01 把 v 限制在 [0,1]，NaN 视为 0。
func Clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
