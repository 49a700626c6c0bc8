package core

import (
	"strings"
	"time"
)

// InteractionType 用户行为类型
type InteractionType string

const (
	InteractionView      InteractionType = "view"
	InteractionClick     InteractionType = "click"
	InteractionAddToCart InteractionType = "add_to_cart"
	InteractionPurchase  InteractionType = "purchase"
)

var interactionWeights = map[InteractionType]float64{
	InteractionView:      1,
	InteractionClick:     2,
	InteractionAddToCart: 3,
	InteractionPurchase:  5,
}

// Weight 返回行为类型权重：view 1, click 2, add_to_cart 3, purchase 5，未知类型为 1。
func (t InteractionType) Weight() float64 {
	if w, ok := interactionWeights[InteractionType(strings.ToLower(string(t)))]; ok {
		return w
	}
	return 1
}

// Interaction 是一条用户-商品行为记录。
type Interaction struct {
	UserID    string          `json:"user_id" yaml:"user_id"`
	ProductID string          `json:"product_id" yaml:"product_id"`
	Type      InteractionType `json:"type" yaml:"type"`
	Value     float64         `json:"value" yaml:"value"` // 权重，缺省为 1
	CreatedAt time.Time       `json:"created_at" yaml:"created_at"`
}

// EffectiveValue 返回行为值，0 视为缺省值 1
func (in Interaction) EffectiveValue() float64 {
	if in.Value == 0 {
		return 1
	}
	return in.Value
}

// Weighted 返回 类型权重 × 行为值
func (in Interaction) Weighted() float64 {
	return in.Type.Weight() * in.EffectiveValue()
}

// InteractionFilter 是 Catalog.Interactions 的查询条件，零值字段不参与过滤。
// 时间区间为 [Since, Until)。
type InteractionFilter struct {
	UserID    string
	ProductID string
	Since     time.Time
	Until     time.Time
}

// Match 判断一条行为是否满足过滤条件
func (f InteractionFilter) Match(in Interaction) bool {
	if f.UserID != "" && in.UserID != f.UserID {
		return false
	}
	if f.ProductID != "" && in.ProductID != f.ProductID {
		return false
	}
	if !f.Since.IsZero() && in.CreatedAt.Before(f.Since) {
		return false
	}
	if !f.Until.IsZero() && !in.CreatedAt.Before(f.Until) {
		return false
	}
	return true
}
