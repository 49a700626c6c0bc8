package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/rushteam/shoprec/core"
)

// DefaultRedisPrefix 缺省 key 前缀
const DefaultRedisPrefix = "shoprec"

// redisWriteChunk 每个 pipeline 最多写入的分组数
const redisWriteChunk = 500

// RedisStore 是 Redis 实现的 SimilarityStore。
//
// 每次替换都写入一个新的版本命名空间（uuid）：
//
//	{prefix}:{table}:current           -> 当前版本号
//	{prefix}:{table}:{version}:g:{key} -> 该分组记录的 JSON 数组
//	{prefix}:{table}:{version}:keys    -> 该版本全部分组 key 的 set
//
// 新版本完整写入后用一次 SET 切换 current 指针，旧版本在 GracePeriod 后过期，
// 正在读取旧版本的读者仍能读完。
type RedisStore struct {
	client *redis.Client
	prefix string

	// GracePeriod 旧版本保留时长，<= 0 时立即删除
	GracePeriod time.Duration
	Logger      zerolog.Logger
}

// RedisOptions 连接参数
type RedisOptions struct {
	Addr   string
	DB     int
	Prefix string
}

// NewRedisStore 连接 Redis 并校验可用性
func NewRedisStore(ctx context.Context, opts RedisOptions, logger zerolog.Logger) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr: opts.Addr,
		DB:   opts.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, core.WrapDomainError(core.ModuleStore, core.ErrorCodeUnavailable, "store: redis ping failed", err)
	}
	return NewRedisStoreWithClient(client, opts.Prefix, logger), nil
}

// NewRedisStoreWithClient 使用已有客户端
func NewRedisStoreWithClient(client *redis.Client, prefix string, logger zerolog.Logger) *RedisStore {
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &RedisStore{
		client:      client,
		prefix:      prefix,
		GracePeriod: 30 * time.Second,
		Logger:      logger.With().Str("component", "redis_store").Logger(),
	}
}

func (r *RedisStore) Name() string { return "redis" }

func (r *RedisStore) currentKey(table string) string {
	return r.prefix + ":" + table + ":current"
}

func (r *RedisStore) groupKey(table, version, key string) string {
	return r.prefix + ":" + table + ":" + version + ":g:" + key
}

func (r *RedisStore) keysKey(table, version string) string {
	return r.prefix + ":" + table + ":" + version + ":keys"
}

// readGroup 读取当前版本中某个分组；没有当前版本或分组不存在时返回 nil
func readGroup[T any](ctx context.Context, r *RedisStore, table, key string) ([]T, error) {
	version, err := r.client.Get(ctx, r.currentKey(table)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, core.WrapDomainError(core.ModuleStore, core.ErrorCodeUnavailable, "store: read "+table, err)
	}
	raw, err := r.client.Get(ctx, r.groupKey(table, version, key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, core.WrapDomainError(core.ModuleStore, core.ErrorCodeUnavailable, "store: read "+table, err)
	}
	var rows []T
	if err := json.Unmarshal(raw, &rows); err != nil {
		return nil, core.WrapDomainError(core.ModuleStore, core.ErrorCodeInternalError, "store: decode "+table, err)
	}
	return rows, nil
}

// replaceGroups 写入新版本并切换指针；任一步失败都会清理新版本，current 保持不变
func replaceGroups[T any](ctx context.Context, r *RedisStore, table string, groups map[string][]T) error {
	version := uuid.NewString()
	keysKey := r.keysKey(table, version)

	write := func() error {
		pipe := r.client.TxPipeline()
		// 先写 keys 集合的占位成员，空集合的版本也能被识别和清理
		pipe.SAdd(ctx, keysKey, keysKey)
		n := 0
		for key, rows := range groups {
			raw, err := json.Marshal(rows)
			if err != nil {
				return fmt.Errorf("encode %s: %w", key, err)
			}
			gk := r.groupKey(table, version, key)
			pipe.Set(ctx, gk, raw, 0)
			pipe.SAdd(ctx, keysKey, gk)
			n++
			if n%redisWriteChunk == 0 {
				if _, err := pipe.Exec(ctx); err != nil {
					return err
				}
			}
		}
		_, err := pipe.Exec(ctx)
		return err
	}
	if err := write(); err != nil {
		r.dropVersion(context.WithoutCancel(ctx), table, version, 0)
		return core.BatchWriteFailed(table, err)
	}

	old, err := r.client.SetArgs(ctx, r.currentKey(table), version, redis.SetArgs{Get: true}).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		r.dropVersion(context.WithoutCancel(ctx), table, version, 0)
		return core.BatchWriteFailed(table, err)
	}
	if old != "" && old != version {
		r.dropVersion(ctx, table, old, r.GracePeriod)
	}
	r.Logger.Debug().Str("table", table).Str("version", version).Int("groups", len(groups)).Msg("redis version swapped")
	return nil
}

// dropVersion 删除（或延迟过期）一个版本的全部 key；失败只记录日志，不影响已完成的切换
func (r *RedisStore) dropVersion(ctx context.Context, table, version string, after time.Duration) {
	keysKey := r.keysKey(table, version)
	members, err := r.client.SMembers(ctx, keysKey).Result()
	if err != nil {
		r.Logger.Warn().Err(err).Str("table", table).Str("version", version).Msg("list version keys failed")
		return
	}
	members = append(members, keysKey)
	pipe := r.client.Pipeline()
	for _, k := range members {
		if after > 0 {
			pipe.Expire(ctx, k, after)
		} else {
			pipe.Del(ctx, k)
		}
	}
	if _, err := pipe.Exec(ctx); err != nil {
		r.Logger.Warn().Err(err).Str("table", table).Str("version", version).Msg("drop version failed")
	}
}

func (r *RedisStore) SimilarProducts(ctx context.Context, productID string, t core.SimilarityType, limit int) ([]core.SimilarityRecord, error) {
	rows, err := readGroup[core.SimilarityRecord](ctx, r, similarityTable(t), productID)
	if err != nil {
		return nil, err
	}
	return head(rows, limit), nil
}

func (r *RedisStore) Suggestions(ctx context.Context, productID string) ([]core.SuggestionRecord, error) {
	return readGroup[core.SuggestionRecord](ctx, r, tableSuggestions, productID)
}

func (r *RedisStore) UserSuggestions(ctx context.Context, userID string) ([]core.UserSuggestionRecord, error) {
	return readGroup[core.UserSuggestionRecord](ctx, r, tableUserSuggestions, userID)
}

func (r *RedisStore) ReplaceSimilarities(ctx context.Context, t core.SimilarityType, rows []core.SimilarityRecord) (int, error) {
	rows = core.NormalizeSimilarities(t, rows)
	if err := replaceGroups(ctx, r, similarityTable(t), groupSimilarities(rows)); err != nil {
		return 0, err
	}
	return len(rows), nil
}

func (r *RedisStore) ReplaceSuggestions(ctx context.Context, rows []core.SuggestionRecord) (int, error) {
	rows = core.NormalizeSuggestions(rows)
	if err := replaceGroups(ctx, r, tableSuggestions, groupSuggestions(rows)); err != nil {
		return 0, err
	}
	return len(rows), nil
}

func (r *RedisStore) ReplaceUserSuggestions(ctx context.Context, rows []core.UserSuggestionRecord) (int, error) {
	rows = core.NormalizeUserSuggestions(rows)
	if err := replaceGroups(ctx, r, tableUserSuggestions, groupUserSuggestions(rows)); err != nil {
		return 0, err
	}
	return len(rows), nil
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}

var _ core.SimilarityStore = (*RedisStore)(nil)
