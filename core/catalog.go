package core

import (
	"context"
	"time"
)

// Order 是一笔已完成订单
type Order struct {
	ID          string    `json:"id" yaml:"id"`
	UserID      string    `json:"user_id" yaml:"user_id"`
	TotalAmount float64   `json:"total_amount" yaml:"total_amount"`
	CreatedAt   time.Time `json:"created_at" yaml:"created_at"`
}

// OrderItem 是订单中的一行商品
type OrderItem struct {
	OrderID   string  `json:"order_id" yaml:"order_id"`
	ProductID string  `json:"product_id" yaml:"product_id"`
	Quantity  int     `json:"quantity" yaml:"quantity"`
	UnitPrice float64 `json:"unit_price" yaml:"unit_price"`
}

// Review 是一条商品评论；SentimentScore 为已存储的情感分（[-1,1]），nil 表示未打分。
type Review struct {
	ProductID      string    `json:"product_id" yaml:"product_id"`
	UserID         string    `json:"user_id" yaml:"user_id"`
	Rating         float64   `json:"rating" yaml:"rating"`
	Comment        string    `json:"comment" yaml:"comment"`
	SentimentScore *float64  `json:"sentiment_score,omitempty" yaml:"sentiment_score,omitempty"`
	CreatedAt      time.Time `json:"created_at" yaml:"created_at"`
}

// Basket 是一笔订单内去重后的商品 ID 集合
type Basket []string

// Catalog 是商品/订单/行为数据的只读查询接口。
//
// 由 catalog 包实现（内存、Postgres），核心算法只依赖此接口。
// 返回的切片归调用方所有；Product 不存在时返回 NOT_FOUND 的 DomainError。
type Catalog interface {
	// Products 返回全部商品，顺序稳定（目录顺序）
	Products(ctx context.Context) ([]*Product, error)

	// Product 按 ID 查询商品
	Product(ctx context.Context, id string) (*Product, error)

	// Users 返回全部用户 ID，顺序稳定
	Users(ctx context.Context) ([]string, error)

	// OrdersForUser 返回用户的订单
	OrdersForUser(ctx context.Context, userID string) ([]Order, error)

	// OrderItems 返回订单行
	OrderItems(ctx context.Context, orderID string) ([]OrderItem, error)

	// Baskets 返回每笔订单的去重商品集合，仅保留商品数 >= minSize 的订单
	Baskets(ctx context.Context, minSize int) ([]Basket, error)

	// Interactions 按条件查询用户行为
	Interactions(ctx context.Context, filter InteractionFilter) ([]Interaction, error)

	// Reviews 返回商品评论
	Reviews(ctx context.Context, productID string) ([]Review, error)

	// Categories 返回排序后的品类全集
	Categories(ctx context.Context) ([]string, error)

	// Brands 返回排序后的品牌全集
	Brands(ctx context.Context) ([]string, error)
}

// ErrProductNotFound 商品不存在
var ErrProductNotFound = NewDomainError(ModuleCatalog, ErrorCodeNotFound, "catalog: product not found")
