package repository

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const defaultRedisKeyPrefix = "blogpulse:ratelimit"

// RedisRateLimitRepo はRedisのsorted setを使用したレート制限リポジトリ。
// (ip, action)ごとに1つのsorted set（score=created_at）を持ち、
// 全体パージのためにキー一覧をインデックス用sorted set（score=最終記録時刻）で管理する。
type RedisRateLimitRepo struct {
	client    *redis.Client
	prefix    string
	retention time.Duration
}

// NewRedisRateLimitRepo はRedisRateLimitRepoを生成する。
// retentionは各キーに設定するTTLで、パージが走らない場合でもキーが残り続けないようにする。
func NewRedisRateLimitRepo(client *redis.Client, retention time.Duration) *RedisRateLimitRepo {
	return &RedisRateLimitRepo{
		client:    client,
		prefix:    defaultRedisKeyPrefix,
		retention: retention,
	}
}

func (r *RedisRateLimitRepo) key(ip, actionType string) string {
	return fmt.Sprintf("%s:%s:%s", r.prefix, actionType, ip)
}

func (r *RedisRateLimitRepo) indexKey() string {
	return r.prefix + ":index"
}

// DeleteOlderThan はcreated_atがcutoffより古い記録を全キーから削除する。
func (r *RedisRateLimitRepo) DeleteOlderThan(ctx context.Context, cutoff int64) (int64, error) {
	keys, err := r.client.ZRange(ctx, r.indexKey(), 0, -1).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to list rate limit keys: %w", err)
	}

	// "(" は排他的境界（created_at < cutoff）
	max := "(" + strconv.FormatInt(cutoff, 10)

	// 全キーの削除は1回のパイプラインで送る
	cmds := make([]*redis.IntCmd, 0, len(keys))
	_, err = r.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, key := range keys {
			cmds = append(cmds, pipe.ZRemRangeByScore(ctx, key, "-inf", max))
		}
		// 最終記録がcutoffより古いキーは空になっているためインデックスから外す
		pipe.ZRemRangeByScore(ctx, r.indexKey(), "-inf", max)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired rate limits: %w", err)
	}

	var deleted int64
	for _, cmd := range cmds {
		deleted += cmd.Val()
	}
	return deleted, nil
}

// CountSince は(ip, actionType)のうちcreated_at > sinceの件数を返す。
func (r *RedisRateLimitRepo) CountSince(ctx context.Context, ip, actionType string, since int64) (int, error) {
	n, err := r.client.ZCount(ctx, r.key(ip, actionType), "("+strconv.FormatInt(since, 10), "+inf").Result()
	if err != nil {
		return 0, fmt.Errorf("failed to count rate limits: %w", err)
	}
	return int(n), nil
}

// Record はレート制限記録を追加する。
// 同一ミリ秒の記録が上書きされないよう、メンバーにはUUIDを付与する。
func (r *RedisRateLimitRepo) Record(ctx context.Context, ip, actionType string, createdAt int64) error {
	key := r.key(ip, actionType)
	member := strconv.FormatInt(createdAt, 10) + ":" + uuid.NewString()

	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZAdd(ctx, key, redis.Z{Score: float64(createdAt), Member: member})
		pipe.ZAdd(ctx, r.indexKey(), redis.Z{Score: float64(createdAt), Member: key})
		if r.retention > 0 {
			pipe.Expire(ctx, key, r.retention)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to record rate limit: %w", err)
	}
	return nil
}

// compile-time interface check
var _ RateLimitRepository = (*RedisRateLimitRepo)(nil)
