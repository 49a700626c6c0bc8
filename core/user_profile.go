package core

// UserProfile 是协同过滤使用的稠密用户画像。
//
// Vector 布局：
//
//	[0]                      订单数
//	[1]                      总消费金额
//	[2 : 2+|categories|]     各品类购买件数（按品类全集排序）
//	[2+|categories| : ]      各品牌购买件数（按品牌全集排序）
//
// 同一批次内所有画像维度一致；没有订单的用户为全零向量。
type UserProfile struct {
	UserID string
	Vector []float64

	// Purchases 是用户购买的商品 -> 购买件数，协同过滤累加推荐分时使用
	Purchases map[string]float64
}

// NewUserProfile 创建指定维度的空画像
func NewUserProfile(userID string, dim int) *UserProfile {
	return &UserProfile{
		UserID:    userID,
		Vector:    make([]float64, dim),
		Purchases: make(map[string]float64),
	}
}

// OrderCount 订单数
func (p *UserProfile) OrderCount() float64 {
	if len(p.Vector) == 0 {
		return 0
	}
	return p.Vector[0]
}

// TotalSpent 总消费
func (p *UserProfile) TotalSpent() float64 {
	if len(p.Vector) < 2 {
		return 0
	}
	return p.Vector[1]
}

// Purchased 是否购买过该商品
func (p *UserProfile) Purchased(productID string) bool {
	_, ok := p.Purchases[productID]
	return ok
}
