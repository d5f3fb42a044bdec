package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/hitoshi/blogpulse/internal/model"
)

// PostgresClapRepo はPostgreSQLを使用したクラップリポジトリ。
// likesテーブルは(post_slug, ip_address)で一意。
type PostgresClapRepo struct {
	db *sqlx.DB
}

// NewPostgresClapRepo はPostgresClapRepoを生成する。
func NewPostgresClapRepo(db *sql.DB) *PostgresClapRepo {
	return &PostgresClapRepo{db: sqlx.NewDb(db, "postgres")}
}

// Find は(postSlug, ip)の記録を取得する。見つからない場合はnilを返す。
func (r *PostgresClapRepo) Find(ctx context.Context, postSlug, ip string) (*model.Clap, error) {
	var row struct {
		PostSlug  string `db:"post_slug"`
		IPAddress string `db:"ip_address"`
		ClapCount int    `db:"clap_count"`
		CreatedAt int64  `db:"created_at"`
		UpdatedAt int64  `db:"updated_at"`
	}
	err := r.db.GetContext(ctx, &row,
		`SELECT post_slug, ip_address, clap_count, created_at, updated_at
		 FROM likes WHERE post_slug = $1 AND ip_address = $2`,
		postSlug, ip,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find clap: %w", err)
	}
	return &model.Clap{
		PostSlug:  row.PostSlug,
		IPAddress: row.IPAddress,
		ClapCount: row.ClapCount,
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
	}, nil
}

// Increment はclap_countがmax未満の場合に限り1加算する。
// 条件付きUPDATE 1文で判定と加算を行うため、同一訪問者の同時リクエストでも上限を超えない。
func (r *PostgresClapRepo) Increment(ctx context.Context, postSlug, ip string, max int, now int64) (int, bool, error) {
	var count int
	err := r.db.QueryRowxContext(ctx,
		`UPDATE likes SET clap_count = clap_count + 1, updated_at = $1
		 WHERE post_slug = $2 AND ip_address = $3 AND clap_count < $4
		 RETURNING clap_count`,
		now, postSlug, ip, max,
	).Scan(&count)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to increment clap: %w", err)
	}
	return count, true, nil
}

// Insert は初回クラップを記録する。
// 競合した場合（同一訪問者の同時初回クラップ）は上限未満に限り加算に切り替える。
func (r *PostgresClapRepo) Insert(ctx context.Context, postSlug, ip string, max int, now int64) (int, bool, error) {
	var count int
	err := r.db.QueryRowxContext(ctx,
		`INSERT INTO likes (post_slug, ip_address, clap_count, created_at, updated_at)
		 VALUES ($1, $2, 1, $3, $3)
		 ON CONFLICT (post_slug, ip_address) DO UPDATE
		   SET clap_count = likes.clap_count + 1, updated_at = EXCLUDED.updated_at
		   WHERE likes.clap_count < $4
		 RETURNING clap_count`,
		postSlug, ip, now, max,
	).Scan(&count)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to insert clap: %w", err)
	}
	return count, true, nil
}

// SumByPost は記事のclap_count合計を返す。
// キャッシュせず毎回集計する。
func (r *PostgresClapRepo) SumByPost(ctx context.Context, postSlug string) (int64, error) {
	var total int64
	err := r.db.GetContext(ctx, &total,
		`SELECT COALESCE(SUM(clap_count), 0) FROM likes WHERE post_slug = $1`,
		postSlug,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to sum claps: %w", err)
	}
	return total, nil
}

// Count はクラップ記録の総数を返す。
func (r *PostgresClapRepo) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM likes`); err != nil {
		return 0, fmt.Errorf("failed to count likes: %w", err)
	}
	return n, nil
}

// compile-time interface check
var _ ClapRepository = (*PostgresClapRepo)(nil)
