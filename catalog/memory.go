// Package catalog 提供 core.Catalog 的实现：内存（含 YAML fixture）与 Postgres（gorm）。
package catalog

import (
	"context"
	"sort"

	"github.com/rushteam/shoprec/core"
)

// Fixture 是一份完整的目录数据，可从 YAML 加载
type Fixture struct {
	Products     []*core.Product    `yaml:"products"`
	Users        []string           `yaml:"users"`
	Categories   []string           `yaml:"categories"`
	Orders       []core.Order       `yaml:"orders"`
	OrderItems   []core.OrderItem   `yaml:"order_items"`
	Interactions []core.Interaction `yaml:"interactions"`
	Reviews      []core.Review      `yaml:"reviews"`
}

// MemoryCatalog 是只读的内存目录，构造后不可变，并发安全。
type MemoryCatalog struct {
	products     []*core.Product
	byID         map[string]*core.Product
	users        []string
	categories   []string
	brands       []string
	orders       []core.Order
	ordersByUser map[string][]core.Order
	items        map[string][]core.OrderItem
	interactions []core.Interaction
	reviews      map[string][]core.Review
}

// NewMemoryCatalog 从 fixture 构造目录。
//
// Users 为空时按订单、行为中首次出现的顺序推导；Categories 为空时取商品品类去重排序；
// 品牌全集取已上架商品的品牌去重排序。
func NewMemoryCatalog(f Fixture) *MemoryCatalog {
	c := &MemoryCatalog{
		byID:         make(map[string]*core.Product, len(f.Products)),
		ordersByUser: make(map[string][]core.Order),
		items:        make(map[string][]core.OrderItem),
		reviews:      make(map[string][]core.Review),
	}
	for _, p := range f.Products {
		if p == nil {
			continue
		}
		if _, dup := c.byID[p.ID]; dup {
			continue
		}
		c.products = append(c.products, p)
		c.byID[p.ID] = p
	}

	c.users = append([]string(nil), f.Users...)
	if len(c.users) == 0 {
		seen := make(map[string]struct{})
		add := func(uid string) {
			if uid == "" {
				return
			}
			if _, ok := seen[uid]; !ok {
				seen[uid] = struct{}{}
				c.users = append(c.users, uid)
			}
		}
		for _, o := range f.Orders {
			add(o.UserID)
		}
		for _, in := range f.Interactions {
			add(in.UserID)
		}
		for _, r := range f.Reviews {
			add(r.UserID)
		}
	}

	if len(f.Categories) > 0 {
		c.categories = distinctSorted(f.Categories)
	} else {
		cats := make([]string, 0, len(c.products))
		for _, p := range c.products {
			cats = append(cats, p.Category)
		}
		c.categories = distinctSorted(cats)
	}
	brands := make([]string, 0, len(c.products))
	for _, p := range c.products {
		if p.Approved() {
			brands = append(brands, p.Brand)
		}
	}
	c.brands = distinctSorted(brands)

	c.orders = append([]core.Order(nil), f.Orders...)
	for _, o := range c.orders {
		c.ordersByUser[o.UserID] = append(c.ordersByUser[o.UserID], o)
	}
	for _, it := range f.OrderItems {
		c.items[it.OrderID] = append(c.items[it.OrderID], it)
	}
	c.interactions = append([]core.Interaction(nil), f.Interactions...)
	for _, r := range f.Reviews {
		c.reviews[r.ProductID] = append(c.reviews[r.ProductID], r)
	}
	return c
}

func distinctSorted(in []string) []string {
	set := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s == "" {
			continue
		}
		if _, ok := set[s]; !ok {
			set[s] = struct{}{}
			out = append(out, s)
		}
	}
	sort.Strings(out)
	return out
}

func (c *MemoryCatalog) Products(ctx context.Context) ([]*core.Product, error) {
	return append([]*core.Product(nil), c.products...), nil
}

func (c *MemoryCatalog) Product(ctx context.Context, id string) (*core.Product, error) {
	p, ok := c.byID[id]
	if !ok {
		return nil, core.ErrProductNotFound
	}
	return p, nil
}

func (c *MemoryCatalog) Users(ctx context.Context) ([]string, error) {
	return append([]string(nil), c.users...), nil
}

func (c *MemoryCatalog) OrdersForUser(ctx context.Context, userID string) ([]core.Order, error) {
	return append([]core.Order(nil), c.ordersByUser[userID]...), nil
}

func (c *MemoryCatalog) OrderItems(ctx context.Context, orderID string) ([]core.OrderItem, error) {
	return append([]core.OrderItem(nil), c.items[orderID]...), nil
}

// Baskets 按订单顺序返回去重排序后的商品集合，丢弃空订单与商品数 < minSize 的订单
func (c *MemoryCatalog) Baskets(ctx context.Context, minSize int) ([]core.Basket, error) {
	out := make([]core.Basket, 0, len(c.orders))
	for _, o := range c.orders {
		ids := make([]string, 0, len(c.items[o.ID]))
		for _, it := range c.items[o.ID] {
			ids = append(ids, it.ProductID)
		}
		b := core.Basket(distinctSorted(ids))
		if len(b) == 0 || len(b) < minSize {
			continue
		}
		out = append(out, b)
	}
	return out, nil
}

func (c *MemoryCatalog) Interactions(ctx context.Context, filter core.InteractionFilter) ([]core.Interaction, error) {
	var out []core.Interaction
	for _, in := range c.interactions {
		if filter.Match(in) {
			out = append(out, in)
		}
	}
	return out, nil
}

func (c *MemoryCatalog) Reviews(ctx context.Context, productID string) ([]core.Review, error) {
	return append([]core.Review(nil), c.reviews[productID]...), nil
}

func (c *MemoryCatalog) Categories(ctx context.Context) ([]string, error) {
	return append([]string(nil), c.categories...), nil
}

func (c *MemoryCatalog) Brands(ctx context.Context) ([]string, error) {
	return append([]string(nil), c.brands...), nil
}

var _ core.Catalog = (*MemoryCatalog)(nil)
