package feature

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/rushteam/shoprec/core"
)

// Dimensions 是一次批处理内固定的品类/品牌全集，决定画像向量布局。
type Dimensions struct {
	Categories []string
	Brands     []string

	catIdx   map[string]int
	brandIdx map[string]int
}

// NewDimensions 根据排序后的品类、品牌全集构造维度
func NewDimensions(categories, brands []string) *Dimensions {
	d := &Dimensions{
		Categories: categories,
		Brands:     brands,
		catIdx:     make(map[string]int, len(categories)),
		brandIdx:   make(map[string]int, len(brands)),
	}
	for i, c := range categories {
		d.catIdx[c] = 2 + i
	}
	for i, b := range brands {
		d.brandIdx[b] = 2 + len(categories) + i
	}
	return d
}

// Size 画像向量维度 = 2 + |categories| + |brands|
func (d *Dimensions) Size() int {
	return 2 + len(d.Categories) + len(d.Brands)
}

// ProfileBuilder 从订单历史构建用户画像。
type ProfileBuilder struct {
	Catalog core.Catalog
	Logger  zerolog.Logger
}

// NewProfileBuilder 创建画像构建器
func NewProfileBuilder(catalog core.Catalog, logger zerolog.Logger) *ProfileBuilder {
	return &ProfileBuilder{
		Catalog: catalog,
		Logger:  logger.With().Str("component", "profile_builder").Logger(),
	}
}

// LoadDimensions 加载品类与品牌全集（每次批处理加载一次）
func (b *ProfileBuilder) LoadDimensions(ctx context.Context) (*Dimensions, error) {
	if b.Catalog == nil {
		return nil, core.NotConfigured(core.ModuleCatalog, "catalog")
	}
	cats, err := b.Catalog.Categories(ctx)
	if err != nil {
		return nil, fmt.Errorf("load categories: %w", err)
	}
	brands, err := b.Catalog.Brands(ctx)
	if err != nil {
		return nil, fmt.Errorf("load brands: %w", err)
	}
	return NewDimensions(cats, brands), nil
}

// Build 为 userIDs 构建画像，userIDs 为 nil 时构建全部用户。
//
// 订单数与总消费统计全部订单；品类/品牌件数与购买记录只统计已上架商品，
// 不在全集中的品类/品牌被忽略。输出顺序与 userIDs 一致。
func (b *ProfileBuilder) Build(ctx context.Context, dims *Dimensions, userIDs []string) ([]*core.UserProfile, error) {
	if b.Catalog == nil {
		return nil, core.NotConfigured(core.ModuleCatalog, "catalog")
	}
	if userIDs == nil {
		users, err := b.Catalog.Users(ctx)
		if err != nil {
			return nil, fmt.Errorf("load users: %w", err)
		}
		userIDs = users
	}

	products := make(map[string]*core.Product)
	lookup := func(id string) (*core.Product, error) {
		if p, ok := products[id]; ok {
			return p, nil
		}
		p, err := b.Catalog.Product(ctx, id)
		if err != nil {
			if core.IsNotFound(err) {
				products[id] = nil
				return nil, nil
			}
			return nil, err
		}
		products[id] = p
		return p, nil
	}

	profiles := make([]*core.UserProfile, 0, len(userIDs))
	for _, uid := range userIDs {
		prof := core.NewUserProfile(uid, dims.Size())
		orders, err := b.Catalog.OrdersForUser(ctx, uid)
		if err != nil {
			return nil, fmt.Errorf("orders for user %s: %w", uid, err)
		}
		prof.Vector[0] = float64(len(orders))
		for _, o := range orders {
			prof.Vector[1] += o.TotalAmount
			items, err := b.Catalog.OrderItems(ctx, o.ID)
			if err != nil {
				return nil, fmt.Errorf("order items %s: %w", o.ID, err)
			}
			for _, it := range items {
				p, err := lookup(it.ProductID)
				if err != nil {
					return nil, err
				}
				if p == nil || !p.Approved() {
					continue
				}
				qty := float64(it.Quantity)
				if i, ok := dims.catIdx[p.Category]; ok {
					prof.Vector[i] += qty
				}
				if i, ok := dims.brandIdx[p.Brand]; ok {
					prof.Vector[i] += qty
				}
				prof.Purchases[p.ID] += qty
			}
		}
		profiles = append(profiles, prof)
	}
	b.Logger.Debug().Int("users", len(profiles)).Int("dim", dims.Size()).Msg("user profiles built")
	return profiles, nil
}
