package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// PostgresRateLimitRepo はrate_limitsテーブルを使用したレート制限リポジトリ。
type PostgresRateLimitRepo struct {
	db *sqlx.DB
}

// NewPostgresRateLimitRepo はPostgresRateLimitRepoを生成する。
func NewPostgresRateLimitRepo(db *sql.DB) *PostgresRateLimitRepo {
	return &PostgresRateLimitRepo{db: sqlx.NewDb(db, "postgres")}
}

// DeleteOlderThan はcreated_atがcutoffより古い記録を全て削除する。
func (r *PostgresRateLimitRepo) DeleteOlderThan(ctx context.Context, cutoff int64) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM rate_limits WHERE created_at < $1`,
		cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired rate limits: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n, nil
}

// CountSince は(ip, actionType)のうちcreated_at > sinceの件数を返す。
func (r *PostgresRateLimitRepo) CountSince(ctx context.Context, ip, actionType string, since int64) (int, error) {
	var n int
	err := r.db.GetContext(ctx, &n,
		`SELECT COUNT(*) FROM rate_limits
		 WHERE ip_address = $1 AND action_type = $2 AND created_at > $3`,
		ip, actionType, since,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to count rate limits: %w", err)
	}
	return n, nil
}

// Record はレート制限記録を追加する。
func (r *PostgresRateLimitRepo) Record(ctx context.Context, ip, actionType string, createdAt int64) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO rate_limits (ip_address, action_type, created_at) VALUES ($1, $2, $3)`,
		ip, actionType, createdAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record rate limit: %w", err)
	}
	return nil
}

// compile-time interface check
var _ RateLimitRepository = (*PostgresRateLimitRepo)(nil)
