package store

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/rushteam/shoprec/core"
)

// gormBatchSize CreateInBatches 每批行数
const gormBatchSize = 500

// SimilarityModel 商品相似度缓存表
type SimilarityModel struct {
	ID         uint    `gorm:"column:id;primaryKey;autoIncrement"`
	ProductID1 string  `gorm:"column:product_id_1;index:idx_similarity_lookup,priority:2"`
	ProductID2 string  `gorm:"column:product_id_2"`
	Score      float64 `gorm:"column:similarity_score"`
	Type       string  `gorm:"column:similarity_type;index:idx_similarity_lookup,priority:1"`
}

func (SimilarityModel) TableName() string { return tableSimilarities }

// SuggestionModel 关联规则推荐缓存表
type SuggestionModel struct {
	ID                 uint    `gorm:"column:id;primaryKey;autoIncrement"`
	ProductID          string  `gorm:"column:product_id;index"`
	SuggestedProductID string  `gorm:"column:suggested_product_id"`
	Score              float64 `gorm:"column:score"`
	Rank               int     `gorm:"column:rank"`
}

func (SuggestionModel) TableName() string { return tableSuggestions }

// UserSuggestionModel 用户推荐缓存表
type UserSuggestionModel struct {
	ID        uint    `gorm:"column:id;primaryKey;autoIncrement"`
	UserID    string  `gorm:"column:user_id;index"`
	ProductID string  `gorm:"column:product_id"`
	Score     float64 `gorm:"column:score"`
	Rank      int     `gorm:"column:rank"`
}

func (UserSuggestionModel) TableName() string { return tableUserSuggestions }

// Models 返回缓存表模型，用于 AutoMigrate
func Models() []any {
	return []any{&SimilarityModel{}, &SuggestionModel{}, &UserSuggestionModel{}}
}

// GormStore 是 Postgres（gorm）实现的 SimilarityStore。
// 替换在一个事务内完成 DELETE + CreateInBatches，提交前读者看到的是旧的已提交集合。
type GormStore struct {
	db *gorm.DB
}

// NewGormStore 创建 Postgres 缓存
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// AutoMigrate 创建/更新缓存表
func (s *GormStore) AutoMigrate(ctx context.Context) error {
	return s.db.WithContext(ctx).AutoMigrate(Models()...)
}

func (s *GormStore) Name() string { return "postgres" }

func unavailable(table string, err error) error {
	return core.WrapDomainError(core.ModuleStore, core.ErrorCodeUnavailable, "store: read "+table, err)
}

func (s *GormStore) SimilarProducts(ctx context.Context, productID string, t core.SimilarityType, limit int) ([]core.SimilarityRecord, error) {
	var rows []SimilarityModel
	q := s.db.WithContext(ctx).
		Where("product_id_1 = ? AND similarity_type = ?", productID, string(t)).
		Order("similarity_score DESC").Order("product_id_2 ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, unavailable(tableSimilarities, err)
	}
	out := make([]core.SimilarityRecord, 0, len(rows))
	for _, m := range rows {
		out = append(out, core.SimilarityRecord{
			ProductID1: m.ProductID1, ProductID2: m.ProductID2, Score: m.Score, Type: core.SimilarityType(m.Type),
		})
	}
	return out, nil
}

func (s *GormStore) Suggestions(ctx context.Context, productID string) ([]core.SuggestionRecord, error) {
	var rows []SuggestionModel
	if err := s.db.WithContext(ctx).Where("product_id = ?", productID).Order("rank ASC").Find(&rows).Error; err != nil {
		return nil, unavailable(tableSuggestions, err)
	}
	out := make([]core.SuggestionRecord, 0, len(rows))
	for _, m := range rows {
		out = append(out, core.SuggestionRecord{
			ProductID: m.ProductID, SuggestedProductID: m.SuggestedProductID, Score: m.Score, Rank: m.Rank,
		})
	}
	return out, nil
}

func (s *GormStore) UserSuggestions(ctx context.Context, userID string) ([]core.UserSuggestionRecord, error) {
	var rows []UserSuggestionModel
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).Order("rank ASC").Find(&rows).Error; err != nil {
		return nil, unavailable(tableUserSuggestions, err)
	}
	out := make([]core.UserSuggestionRecord, 0, len(rows))
	for _, m := range rows {
		out = append(out, core.UserSuggestionRecord{UserID: m.UserID, ProductID: m.ProductID, Score: m.Score, Rank: m.Rank})
	}
	return out, nil
}

// replace 在事务内删除 scope 匹配的旧行并批量写入新行
func replace[M any](ctx context.Context, db *gorm.DB, table string, scope func(*gorm.DB) *gorm.DB, rows []M) error {
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var zero M
		if err := scope(tx).Delete(&zero).Error; err != nil {
			return fmt.Errorf("delete: %w", err)
		}
		if len(rows) == 0 {
			return nil
		}
		if err := tx.CreateInBatches(rows, gormBatchSize).Error; err != nil {
			return fmt.Errorf("insert: %w", err)
		}
		return nil
	})
	if err != nil {
		return core.BatchWriteFailed(table, err)
	}
	return nil
}

func allRows(tx *gorm.DB) *gorm.DB { return tx.Where("1 = 1") }

func (s *GormStore) ReplaceSimilarities(ctx context.Context, t core.SimilarityType, rows []core.SimilarityRecord) (int, error) {
	rows = core.NormalizeSimilarities(t, rows)
	models := make([]SimilarityModel, 0, len(rows))
	for _, r := range rows {
		models = append(models, SimilarityModel{ProductID1: r.ProductID1, ProductID2: r.ProductID2, Score: r.Score, Type: string(t)})
	}
	scope := func(tx *gorm.DB) *gorm.DB { return tx.Where("similarity_type = ?", string(t)) }
	if err := replace(ctx, s.db, similarityTable(t), scope, models); err != nil {
		return 0, err
	}
	return len(rows), nil
}

func (s *GormStore) ReplaceSuggestions(ctx context.Context, rows []core.SuggestionRecord) (int, error) {
	rows = core.NormalizeSuggestions(rows)
	models := make([]SuggestionModel, 0, len(rows))
	for _, r := range rows {
		models = append(models, SuggestionModel{ProductID: r.ProductID, SuggestedProductID: r.SuggestedProductID, Score: r.Score, Rank: r.Rank})
	}
	if err := replace(ctx, s.db, tableSuggestions, allRows, models); err != nil {
		return 0, err
	}
	return len(rows), nil
}

func (s *GormStore) ReplaceUserSuggestions(ctx context.Context, rows []core.UserSuggestionRecord) (int, error) {
	rows = core.NormalizeUserSuggestions(rows)
	models := make([]UserSuggestionModel, 0, len(rows))
	for _, r := range rows {
		models = append(models, UserSuggestionModel{UserID: r.UserID, ProductID: r.ProductID, Score: r.Score, Rank: r.Rank})
	}
	if err := replace(ctx, s.db, tableUserSuggestions, allRows, models); err != nil {
		return 0, err
	}
	return len(rows), nil
}

func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

var _ core.SimilarityStore = (*GormStore)(nil)
