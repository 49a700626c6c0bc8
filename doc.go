// Package shoprec 是电商推荐与商品相似度计算的核心库。
//
// 设计要点：
// - 三类信号：订单共购（关联规则）、内容语义（Embedding 近邻）、用户行为（协同过滤）
// - Pipeline-first: 在线策略由 Node 串联（Recall → Filter → ReRank）
// - Labels-first: 每个结果都带 recall_source / strategy 等 Label，便于解释与观测
// - Batch-first: 相似度、关联推荐、用户推荐由批任务整表替换，在线读缓存、缺失时实时计算
package shoprec

import "github.com/rushteam/shoprec/pipeline"

// 轻量 facade：便于用户直接 import "shoprec" 使用核心抽象。
type Pipeline = pipeline.Pipeline
type Node = pipeline.Node
type Kind = pipeline.Kind

const (
	KindRecall = pipeline.KindRecall
	KindFilter = pipeline.KindFilter
	KindReRank = pipeline.KindReRank
)
