// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"

	"github.com/hitoshi/blogpulse/internal/model"
)

// CommentRepository はコメントデータの永続化インターフェース。
type CommentRepository interface {
	// Create はコメントを作成し、採番されたIDをcomment.IDに設定する。
	Create(ctx context.Context, comment *model.Comment) error

	// ListApprovedByPost は記事の公開済みコメントをcreated_at昇順で返す。
	ListApprovedByPost(ctx context.Context, postSlug string) ([]*model.Comment, error)

	// List はコメントをcreated_at降順で返す。
	// statusがnilの場合は全状態、limitが0の場合は件数制限なし。
	List(ctx context.Context, status *model.CommentStatus, limit int) ([]*model.Comment, error)

	// UpdateStatus はコメントの状態を更新する。
	// 対象が存在しない場合はfalseを返す。
	UpdateStatus(ctx context.Context, id int64, status model.CommentStatus) (bool, error)

	// Delete はコメントを物理削除する。対象が存在しない場合はfalseを返す。
	Delete(ctx context.Context, id int64) (bool, error)

	// CountByStatus は状態ごとの件数を1つの集計クエリで返す。
	CountByStatus(ctx context.Context) (model.CommentStats, error)
}

// ClapRepository はクラップ記録の永続化インターフェース。
type ClapRepository interface {
	// Find は(postSlug, ip)の記録を取得する。見つからない場合はnilを返す。
	Find(ctx context.Context, postSlug, ip string) (*model.Clap, error)

	// Increment はclap_countがmax未満の場合に限り1加算し、加算後の値を返す。
	// 条件を満たす記録がない場合はfalseを返す。
	Increment(ctx context.Context, postSlug, ip string, max int, now int64) (int, bool, error)

	// Insert は初回クラップ（clap_count=1）を記録し、記録後の値を返す。
	// 同時に同じ訪問者の記録が作られていた場合はmax未満に限り加算し、
	// 上限に達していた場合はfalseを返す。
	Insert(ctx context.Context, postSlug, ip string, max int, now int64) (int, bool, error)

	// SumByPost は記事のclap_count合計を返す。記録がない場合は0。
	SumByPost(ctx context.Context, postSlug string) (int64, error)

	// Count はクラップ記録の総数を返す。
	Count(ctx context.Context) (int64, error)
}

// RateLimitRepository はレート制限記録の永続化インターフェース。
// 時刻はすべてepochミリ秒で扱う。
type RateLimitRepository interface {
	// DeleteOlderThan はcreated_atがcutoffより古い記録を全て削除し、削除件数を返す。
	DeleteOlderThan(ctx context.Context, cutoff int64) (int64, error)

	// CountSince は(ip, actionType)の記録のうちcreated_atがsinceより新しいものの件数を返す。
	CountSince(ctx context.Context, ip, actionType string, since int64) (int, error)

	// Record は(ip, actionType, createdAt)の記録を追加する。
	Record(ctx context.Context, ip, actionType string, createdAt int64) error
}
