package core

// RecommendDefaults 提供推荐相关默认值，由 config 包实现并注入各组件。
type RecommendDefaults interface {
	// DefaultSimilarUsers 协同过滤使用的相似用户数
	DefaultSimilarUsers() int

	// DefaultLimit 推荐结果默认条数
	DefaultLimit() int
}

// BuiltinDefaults 是内置默认值：5 个相似用户，返回 10 条。
type BuiltinDefaults struct{}

func (BuiltinDefaults) DefaultSimilarUsers() int { return 5 }

func (BuiltinDefaults) DefaultLimit() int { return 10 }
