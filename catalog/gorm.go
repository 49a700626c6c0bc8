package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"github.com/rushteam/shoprec/core"
)

// ProductModel 商品表
type ProductModel struct {
	ID          string          `gorm:"column:id;primaryKey"`
	Name        string          `gorm:"column:name"`
	Brand       string          `gorm:"column:brand;index"`
	Category    string          `gorm:"column:category;index"`
	Price       float64         `gorm:"column:price"`
	Rating      *float64        `gorm:"column:rating"`
	Features    core.FeatureMap `gorm:"column:features;type:jsonb;serializer:json"`
	Description string          `gorm:"column:description"`
	Status      string          `gorm:"column:status;default:APPROVED"`
}

func (ProductModel) TableName() string { return "products" }

// UserModel 用户表
type UserModel struct {
	ID string `gorm:"column:id;primaryKey"`
}

func (UserModel) TableName() string { return "users" }

// CategoryModel 品类表
type CategoryModel struct {
	Name string `gorm:"column:name;primaryKey"`
}

func (CategoryModel) TableName() string { return "categories" }

// OrderModel 订单表
type OrderModel struct {
	ID          string    `gorm:"column:id;primaryKey"`
	UserID      string    `gorm:"column:user_id;index"`
	TotalAmount float64   `gorm:"column:total_amount"`
	CreatedAt   time.Time `gorm:"column:created_at"`
}

func (OrderModel) TableName() string { return "orders" }

// OrderItemModel 订单行表
type OrderItemModel struct {
	ID        uint    `gorm:"column:id;primaryKey;autoIncrement"`
	OrderID   string  `gorm:"column:order_id;index"`
	ProductID string  `gorm:"column:product_id;index"`
	Quantity  int     `gorm:"column:quantity"`
	UnitPrice float64 `gorm:"column:unit_price"`
}

func (OrderItemModel) TableName() string { return "order_items" }

// InteractionModel 用户行为表
type InteractionModel struct {
	ID        uint      `gorm:"column:id;primaryKey;autoIncrement"`
	UserID    string    `gorm:"column:user_id;index"`
	ProductID string    `gorm:"column:product_id;index"`
	Type      string    `gorm:"column:interaction_type"`
	Value     float64   `gorm:"column:value;default:1"`
	CreatedAt time.Time `gorm:"column:created_at;index"`
}

func (InteractionModel) TableName() string { return "user_interactions" }

// ReviewModel 评论表
type ReviewModel struct {
	ID             uint      `gorm:"column:id;primaryKey;autoIncrement"`
	ProductID      string    `gorm:"column:product_id;index"`
	UserID         string    `gorm:"column:user_id"`
	Rating         float64   `gorm:"column:rating"`
	Comment        string    `gorm:"column:comment"`
	SentimentScore *float64  `gorm:"column:sentiment_score"`
	CreatedAt      time.Time `gorm:"column:created_at"`
}

func (ReviewModel) TableName() string { return "reviews" }

// Models 返回目录相关的全部表模型，用于 AutoMigrate
func Models() []any {
	return []any{
		&ProductModel{}, &UserModel{}, &CategoryModel{}, &OrderModel{},
		&OrderItemModel{}, &InteractionModel{}, &ReviewModel{},
	}
}

// OpenPostgres 打开 Postgres 连接
func OpenPostgres(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		Logger:                                   gormLogger.Default.LogMode(gormLogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Postgres: %w", err)
	}
	return db, nil
}

// GormCatalog 基于 gorm 的 Postgres 目录
type GormCatalog struct {
	db *gorm.DB
}

// NewGormCatalog 创建 Postgres 目录
func NewGormCatalog(db *gorm.DB) *GormCatalog {
	return &GormCatalog{db: db}
}

// AutoMigrate 创建/更新目录表
func (c *GormCatalog) AutoMigrate(ctx context.Context) error {
	return c.db.WithContext(ctx).AutoMigrate(Models()...)
}

// Seed 把 fixture 写入数据库（单事务），用于初始化与集成测试
func (c *GormCatalog) Seed(ctx context.Context, f Fixture) error {
	return c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(f.Products) > 0 {
			rows := make([]ProductModel, 0, len(f.Products))
			for _, p := range f.Products {
				rows = append(rows, productModel(p))
			}
			if err := tx.CreateInBatches(rows, 500).Error; err != nil {
				return err
			}
		}
		users := f.Users
		if len(users) == 0 {
			users = NewMemoryCatalog(f).users
		}
		if len(users) > 0 {
			rows := make([]UserModel, 0, len(users))
			for _, u := range users {
				rows = append(rows, UserModel{ID: u})
			}
			if err := tx.CreateInBatches(rows, 500).Error; err != nil {
				return err
			}
		}
		if len(f.Categories) > 0 {
			rows := make([]CategoryModel, 0, len(f.Categories))
			for _, name := range distinctSorted(f.Categories) {
				rows = append(rows, CategoryModel{Name: name})
			}
			if err := tx.CreateInBatches(rows, 500).Error; err != nil {
				return err
			}
		}
		if len(f.Orders) > 0 {
			rows := make([]OrderModel, 0, len(f.Orders))
			for _, o := range f.Orders {
				rows = append(rows, OrderModel{ID: o.ID, UserID: o.UserID, TotalAmount: o.TotalAmount, CreatedAt: o.CreatedAt})
			}
			if err := tx.CreateInBatches(rows, 500).Error; err != nil {
				return err
			}
		}
		if len(f.OrderItems) > 0 {
			rows := make([]OrderItemModel, 0, len(f.OrderItems))
			for _, it := range f.OrderItems {
				rows = append(rows, OrderItemModel{OrderID: it.OrderID, ProductID: it.ProductID, Quantity: it.Quantity, UnitPrice: it.UnitPrice})
			}
			if err := tx.CreateInBatches(rows, 500).Error; err != nil {
				return err
			}
		}
		if len(f.Interactions) > 0 {
			rows := make([]InteractionModel, 0, len(f.Interactions))
			for _, in := range f.Interactions {
				rows = append(rows, InteractionModel{UserID: in.UserID, ProductID: in.ProductID, Type: string(in.Type), Value: in.EffectiveValue(), CreatedAt: in.CreatedAt})
			}
			if err := tx.CreateInBatches(rows, 500).Error; err != nil {
				return err
			}
		}
		if len(f.Reviews) > 0 {
			rows := make([]ReviewModel, 0, len(f.Reviews))
			for _, r := range f.Reviews {
				rows = append(rows, ReviewModel{ProductID: r.ProductID, UserID: r.UserID, Rating: r.Rating, Comment: r.Comment, SentimentScore: r.SentimentScore, CreatedAt: r.CreatedAt})
			}
			if err := tx.CreateInBatches(rows, 500).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func productModel(p *core.Product) ProductModel {
	return ProductModel{
		ID: p.ID, Name: p.Name, Brand: p.Brand, Category: p.Category, Price: p.Price,
		Rating: p.Rating, Features: p.Features, Description: p.Description, Status: p.Status,
	}
}

func (m ProductModel) product() *core.Product {
	return &core.Product{
		ID: m.ID, Name: m.Name, Brand: m.Brand, Category: m.Category, Price: m.Price,
		Rating: m.Rating, Features: m.Features, Description: m.Description, Status: m.Status,
	}
}

func unavailable(op string, err error) error {
	return core.WrapDomainError(core.ModuleCatalog, core.ErrorCodeUnavailable, "catalog: "+op, err)
}

func (c *GormCatalog) Products(ctx context.Context) ([]*core.Product, error) {
	var rows []ProductModel
	if err := c.db.WithContext(ctx).Order("id").Find(&rows).Error; err != nil {
		return nil, unavailable("list products", err)
	}
	out := make([]*core.Product, 0, len(rows))
	for _, m := range rows {
		out = append(out, m.product())
	}
	return out, nil
}

func (c *GormCatalog) Product(ctx context.Context, id string) (*core.Product, error) {
	var m ProductModel
	err := c.db.WithContext(ctx).Where("id = ?", id).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, core.ErrProductNotFound
	}
	if err != nil {
		return nil, unavailable("get product", err)
	}
	return m.product(), nil
}

func (c *GormCatalog) Users(ctx context.Context) ([]string, error) {
	var ids []string
	if err := c.db.WithContext(ctx).Model(&UserModel{}).Order("id").Pluck("id", &ids).Error; err != nil {
		return nil, unavailable("list users", err)
	}
	return ids, nil
}

func (c *GormCatalog) OrdersForUser(ctx context.Context, userID string) ([]core.Order, error) {
	var rows []OrderModel
	if err := c.db.WithContext(ctx).Where("user_id = ?", userID).Order("created_at, id").Find(&rows).Error; err != nil {
		return nil, unavailable("orders for user", err)
	}
	out := make([]core.Order, 0, len(rows))
	for _, m := range rows {
		out = append(out, core.Order{ID: m.ID, UserID: m.UserID, TotalAmount: m.TotalAmount, CreatedAt: m.CreatedAt})
	}
	return out, nil
}

func (c *GormCatalog) OrderItems(ctx context.Context, orderID string) ([]core.OrderItem, error) {
	var rows []OrderItemModel
	if err := c.db.WithContext(ctx).Where("order_id = ?", orderID).Order("id").Find(&rows).Error; err != nil {
		return nil, unavailable("order items", err)
	}
	out := make([]core.OrderItem, 0, len(rows))
	for _, m := range rows {
		out = append(out, core.OrderItem{OrderID: m.OrderID, ProductID: m.ProductID, Quantity: m.Quantity, UnitPrice: m.UnitPrice})
	}
	return out, nil
}

func (c *GormCatalog) Baskets(ctx context.Context, minSize int) ([]core.Basket, error) {
	type row struct {
		OrderID   string
		ProductID string
	}
	var rows []row
	err := c.db.WithContext(ctx).Model(&OrderItemModel{}).
		Select("DISTINCT order_id, product_id").
		Order("order_id, product_id").
		Scan(&rows).Error
	if err != nil {
		return nil, unavailable("baskets", err)
	}
	var out []core.Basket
	var cur core.Basket
	flush := func() {
		if len(cur) > 0 && len(cur) >= minSize {
			out = append(out, cur)
		}
		cur = nil
	}
	for i, r := range rows {
		if i > 0 && r.OrderID != rows[i-1].OrderID {
			flush()
		}
		cur = append(cur, r.ProductID)
	}
	flush()
	return out, nil
}

func (c *GormCatalog) Interactions(ctx context.Context, filter core.InteractionFilter) ([]core.Interaction, error) {
	q := c.db.WithContext(ctx).Model(&InteractionModel{})
	if filter.UserID != "" {
		q = q.Where("user_id = ?", filter.UserID)
	}
	if filter.ProductID != "" {
		q = q.Where("product_id = ?", filter.ProductID)
	}
	if !filter.Since.IsZero() {
		q = q.Where("created_at >= ?", filter.Since)
	}
	if !filter.Until.IsZero() {
		q = q.Where("created_at < ?", filter.Until)
	}
	var rows []InteractionModel
	if err := q.Order("id").Find(&rows).Error; err != nil {
		return nil, unavailable("interactions", err)
	}
	out := make([]core.Interaction, 0, len(rows))
	for _, m := range rows {
		out = append(out, core.Interaction{
			UserID: m.UserID, ProductID: m.ProductID, Type: core.InteractionType(m.Type),
			Value: m.Value, CreatedAt: m.CreatedAt,
		})
	}
	return out, nil
}

func (c *GormCatalog) Reviews(ctx context.Context, productID string) ([]core.Review, error) {
	var rows []ReviewModel
	if err := c.db.WithContext(ctx).Where("product_id = ?", productID).Order("id").Find(&rows).Error; err != nil {
		return nil, unavailable("reviews", err)
	}
	out := make([]core.Review, 0, len(rows))
	for _, m := range rows {
		out = append(out, core.Review{
			ProductID: m.ProductID, UserID: m.UserID, Rating: m.Rating, Comment: m.Comment,
			SentimentScore: m.SentimentScore, CreatedAt: m.CreatedAt,
		})
	}
	return out, nil
}

// Categories 优先读品类表，品类表为空时取商品品类去重
func (c *GormCatalog) Categories(ctx context.Context) ([]string, error) {
	var names []string
	if err := c.db.WithContext(ctx).Model(&CategoryModel{}).Order("name").Pluck("name", &names).Error; err != nil {
		return nil, unavailable("categories", err)
	}
	if len(names) > 0 {
		return names, nil
	}
	err := c.db.WithContext(ctx).Model(&ProductModel{}).
		Where("category <> ''").Distinct("category").Order("category").Pluck("category", &names).Error
	if err != nil {
		return nil, unavailable("categories", err)
	}
	return names, nil
}

// Brands 返回已上架商品的品牌全集
func (c *GormCatalog) Brands(ctx context.Context) ([]string, error) {
	var names []string
	err := c.db.WithContext(ctx).Model(&ProductModel{}).
		Where("brand <> '' AND (status = ? OR status = '' OR status IS NULL)", core.ProductStatusApproved).
		Distinct("brand").Order("brand").Pluck("brand", &names).Error
	if err != nil {
		return nil, unavailable("brands", err)
	}
	return names, nil
}

var _ core.Catalog = (*GormCatalog)(nil)
