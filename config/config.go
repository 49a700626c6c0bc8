// Package config 负责加载分层配置：结构体默认值 → YAML 文件（可选） → SHOPREC_ 环境变量。
//
//	cfg, err := config.Load("shoprec.yaml")
//	// SHOPREC_MINING_MIN_SUPPORT=0.1 覆盖 mining.min_support
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/rushteam/shoprec/core"
	"github.com/rushteam/shoprec/pkg/logging"
)

// EnvPrefix 环境变量前缀
const EnvPrefix = "SHOPREC_"

// 后端驱动
const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverRedis    = "redis"

	EmbeddingHashing = "hashing"
	EmbeddingHTTP    = "http"
)

// Config 是 shoprec 的全部配置
type Config struct {
	Log        logging.Config   `koanf:"log"`
	Catalog    CatalogConfig    `koanf:"catalog"`
	Store      StoreConfig      `koanf:"store"`
	Embedding  EmbeddingConfig  `koanf:"embedding"`
	Recommend  RecommendConfig  `koanf:"recommend"`
	Mining     MiningConfig     `koanf:"mining"`
	Content    ContentConfig    `koanf:"content"`
	Similarity SimilarityConfig `koanf:"similarity"`
	Metrics    MetricsConfig    `koanf:"metrics"`
}

// CatalogConfig 商品目录数据源
type CatalogConfig struct {
	Driver  string `koanf:"driver"`  // memory | postgres
	DSN     string `koanf:"dsn"`     // postgres 连接串
	Fixture string `koanf:"fixture"` // memory 驱动加载的 YAML 数据
}

// StoreConfig 相似度/推荐缓存
type StoreConfig struct {
	Driver      string        `koanf:"driver"` // memory | redis | postgres
	DSN         string        `koanf:"dsn"`    // 为空时沿用 catalog.dsn
	Redis       RedisConfig   `koanf:"redis"`
	GracePeriod time.Duration `koanf:"grace_period"` // Redis 旧版本保留时长
}

// RedisConfig Redis 连接
type RedisConfig struct {
	Addr   string `koanf:"addr"`
	DB     int    `koanf:"db"`
	Prefix string `koanf:"prefix"`
}

// EmbeddingConfig 向量化服务
type EmbeddingConfig struct {
	Provider    string        `koanf:"provider"` // hashing | http
	Endpoint    string        `koanf:"endpoint"`
	Model       string        `koanf:"model"`
	APIKey      string        `koanf:"api_key"`
	Dimension   int           `koanf:"dimension"`
	RPS         float64       `koanf:"rps"` // <=0 不限速
	Timeout     time.Duration `koanf:"timeout"`
	Concurrency int           `koanf:"concurrency"`
}

// RecommendConfig 在线推荐
type RecommendConfig struct {
	SimilarUsers int `koanf:"similar_users"`
	DefaultLimit int `koanf:"default_limit"`
}

// MiningConfig 关联规则挖掘
type MiningConfig struct {
	MinSupport    float64 `koanf:"min_support"`
	MinConfidence float64 `koanf:"min_confidence"`
	TopN          int     `koanf:"top_n"`
	MinBasketSize int     `koanf:"min_basket_size"`
}

// ContentConfig 内容相似度批任务
type ContentConfig struct {
	TopN int `koanf:"top_n"`
}

// SimilarityConfig 两两相似度批任务
type SimilarityConfig struct {
	MinScore float64 `koanf:"min_score"`
}

// MetricsConfig Prometheus 暴露地址，为空不启动
type MetricsConfig struct {
	Addr string `koanf:"addr"`
}

// Default 返回内置默认配置
func Default() Config {
	return Config{
		Log:     logging.Config{Level: "info", Format: "json"},
		Catalog: CatalogConfig{Driver: DriverMemory},
		Store: StoreConfig{
			Driver:      DriverMemory,
			Redis:       RedisConfig{Addr: "localhost:6379", Prefix: "shoprec"},
			GracePeriod: 30 * time.Second,
		},
		Embedding: EmbeddingConfig{
			Provider:    EmbeddingHashing,
			Dimension:   256,
			Timeout:     10 * time.Second,
			Concurrency: 8,
		},
		Recommend:  RecommendConfig{SimilarUsers: 5, DefaultLimit: 10},
		Mining:     MiningConfig{MinSupport: 0.05, MinConfidence: 0.2, TopN: 5, MinBasketSize: 2},
		Content:    ContentConfig{TopN: 10},
		Similarity: SimilarityConfig{MinScore: 0.1},
	}
}

// Load 按 默认值 → path（为空则跳过） → 环境变量 的顺序加载并校验配置
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("config: load defaults: %w", err)
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("config: load file %s: %w", path, err)
		}
	}
	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("config: load env: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// 含下划线的子段，需整体保留
var nestedSections = map[string][]string{
	"store": {"redis"},
}

// envKey 将 SHOPREC_MINING_MIN_SUPPORT 映射为 mining.min_support，
// SHOPREC_STORE_REDIS_ADDR 映射为 store.redis.addr。
func envKey(key string) string {
	key = strings.ToLower(strings.TrimPrefix(key, EnvPrefix))
	section, rest, ok := strings.Cut(key, "_")
	if !ok {
		return key
	}
	for _, sub := range nestedSections[section] {
		if field, found := strings.CutPrefix(rest, sub+"_"); found {
			return section + "." + sub + "." + field
		}
	}
	return section + "." + rest
}

// Validate 校验取值范围与驱动名称
func (c *Config) Validate() error {
	switch c.Catalog.Driver {
	case DriverMemory:
	case DriverPostgres:
		if c.Catalog.DSN == "" {
			return invalid("catalog.dsn is required for postgres")
		}
	default:
		return invalid("unknown catalog.driver %q", c.Catalog.Driver)
	}

	switch c.Store.Driver {
	case DriverMemory:
	case DriverRedis:
		if c.Store.Redis.Addr == "" {
			return invalid("store.redis.addr is required for redis")
		}
	case DriverPostgres:
		if c.Store.DSN == "" && c.Catalog.DSN == "" {
			return invalid("store.dsn or catalog.dsn is required for postgres")
		}
	default:
		return invalid("unknown store.driver %q", c.Store.Driver)
	}

	switch c.Embedding.Provider {
	case EmbeddingHashing:
	case EmbeddingHTTP:
		if c.Embedding.Endpoint == "" {
			return invalid("embedding.endpoint is required for http")
		}
	default:
		return invalid("unknown embedding.provider %q", c.Embedding.Provider)
	}
	if c.Embedding.Dimension < 0 || c.Embedding.Concurrency < 0 {
		return invalid("embedding.dimension and embedding.concurrency must not be negative")
	}

	if !inUnitInterval(c.Mining.MinSupport) {
		return invalid("mining.min_support must be in (0,1], got %v", c.Mining.MinSupport)
	}
	if !inUnitInterval(c.Mining.MinConfidence) {
		return invalid("mining.min_confidence must be in (0,1], got %v", c.Mining.MinConfidence)
	}
	if c.Mining.TopN <= 0 || c.Content.TopN <= 0 {
		return invalid("mining.top_n and content.top_n must be positive")
	}
	if c.Mining.MinBasketSize < 1 {
		return invalid("mining.min_basket_size must be at least 1")
	}
	if c.Recommend.SimilarUsers <= 0 || c.Recommend.DefaultLimit <= 0 {
		return invalid("recommend.similar_users and recommend.default_limit must be positive")
	}
	if c.Similarity.MinScore < 0 || c.Similarity.MinScore >= 1 {
		return invalid("similarity.min_score must be in [0,1), got %v", c.Similarity.MinScore)
	}
	return nil
}

// StoreDSN 返回缓存使用的 Postgres 连接串
func (c *Config) StoreDSN() string {
	if c.Store.DSN != "" {
		return c.Store.DSN
	}
	return c.Catalog.DSN
}

// DefaultSimilarUsers 实现 core.RecommendDefaults
func (c *Config) DefaultSimilarUsers() int { return c.Recommend.SimilarUsers }

// DefaultLimit 实现 core.RecommendDefaults
func (c *Config) DefaultLimit() int { return c.Recommend.DefaultLimit }

var _ core.RecommendDefaults = (*Config)(nil)

func inUnitInterval(v float64) bool {
	return v > 0 && v <= 1
}

func invalid(format string, args ...any) error {
	return core.NewDomainError(core.ModuleConfig, core.ErrorCodeInvalidInput, "config: "+fmt.Sprintf(format, args...))
}
