package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/hitoshi/blogpulse/internal/model"
)

// commentRow はcommentsテーブルの1行を表す。
type commentRow struct {
	ID         int64  `db:"id"`
	PostSlug   string `db:"post_slug"`
	AuthorName string `db:"author_name"`
	Content    string `db:"content"`
	CreatedAt  int64  `db:"created_at"`
	IPAddress  string `db:"ip_address"`
	UserAgent  string `db:"user_agent"`
	Approved   int    `db:"approved"`
}

func (row commentRow) toModel() (*model.Comment, error) {
	status, err := model.CommentStatusFromDB(row.Approved)
	if err != nil {
		return nil, fmt.Errorf("comment %d: %w", row.ID, err)
	}
	return &model.Comment{
		ID:         row.ID,
		PostSlug:   row.PostSlug,
		AuthorName: row.AuthorName,
		Content:    row.Content,
		CreatedAt:  row.CreatedAt,
		IPAddress:  row.IPAddress,
		UserAgent:  row.UserAgent,
		Status:     status,
	}, nil
}

const commentColumns = `id, post_slug, author_name, content, created_at, ip_address, user_agent, approved`

// PostgresCommentRepo はPostgreSQLを使用したコメントリポジトリ。
type PostgresCommentRepo struct {
	db *sqlx.DB
}

// NewPostgresCommentRepo はPostgresCommentRepoを生成する。
func NewPostgresCommentRepo(db *sql.DB) *PostgresCommentRepo {
	return &PostgresCommentRepo{db: sqlx.NewDb(db, "postgres")}
}

// Create はコメントを作成し、採番されたIDをcomment.IDに設定する。
func (r *PostgresCommentRepo) Create(ctx context.Context, comment *model.Comment) error {
	err := r.db.QueryRowxContext(ctx,
		`INSERT INTO comments (post_slug, author_name, content, created_at, ip_address, user_agent, approved)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING id`,
		comment.PostSlug, comment.AuthorName, comment.Content, comment.CreatedAt,
		comment.IPAddress, comment.UserAgent, comment.Status.DBValue(),
	).Scan(&comment.ID)
	if err != nil {
		return fmt.Errorf("failed to insert comment: %w", err)
	}
	return nil
}

// ListApprovedByPost は記事の公開済みコメントをcreated_at昇順で返す。
func (r *PostgresCommentRepo) ListApprovedByPost(ctx context.Context, postSlug string) ([]*model.Comment, error) {
	var rows []commentRow
	err := r.db.SelectContext(ctx, &rows,
		`SELECT `+commentColumns+` FROM comments
		 WHERE post_slug = $1 AND approved = 1
		 ORDER BY created_at ASC, id ASC`,
		postSlug,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list approved comments: %w", err)
	}
	return toComments(rows)
}

// List はコメントをcreated_at降順で返す。
func (r *PostgresCommentRepo) List(ctx context.Context, status *model.CommentStatus, limit int) ([]*model.Comment, error) {
	var (
		sb   strings.Builder
		args []interface{}
	)
	sb.WriteString(`SELECT ` + commentColumns + ` FROM comments`)
	if status != nil {
		args = append(args, status.DBValue())
		fmt.Fprintf(&sb, ` WHERE approved = $%d`, len(args))
	}
	sb.WriteString(` ORDER BY created_at DESC, id DESC`)
	if limit > 0 {
		args = append(args, limit)
		fmt.Fprintf(&sb, ` LIMIT $%d`, len(args))
	}

	var rows []commentRow
	if err := r.db.SelectContext(ctx, &rows, sb.String(), args...); err != nil {
		return nil, fmt.Errorf("failed to list comments: %w", err)
	}
	return toComments(rows)
}

// UpdateStatus はコメントの状態を更新する。
func (r *PostgresCommentRepo) UpdateStatus(ctx context.Context, id int64, status model.CommentStatus) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE comments SET approved = $1 WHERE id = $2`,
		status.DBValue(), id,
	)
	if err != nil {
		return false, fmt.Errorf("failed to update comment status: %w", err)
	}
	return affected(result)
}

// Delete はコメントを物理削除する。
func (r *PostgresCommentRepo) Delete(ctx context.Context, id int64) (bool, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM comments WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete comment: %w", err)
	}
	return affected(result)
}

// CountByStatus は状態ごとの件数を1つの集計クエリで返す。
// 単一ステートメントのため、3つの件数は同一スナップショットに基づく。
func (r *PostgresCommentRepo) CountByStatus(ctx context.Context) (model.CommentStats, error) {
	var counts struct {
		Approved int64 `db:"approved"`
		Pending  int64 `db:"pending"`
		Spam     int64 `db:"spam"`
	}
	err := r.db.GetContext(ctx, &counts,
		`SELECT
			COUNT(*) FILTER (WHERE approved = 1)  AS approved,
			COUNT(*) FILTER (WHERE approved = 0)  AS pending,
			COUNT(*) FILTER (WHERE approved = -1) AS spam
		 FROM comments`,
	)
	if err != nil {
		return model.CommentStats{}, fmt.Errorf("failed to count comments: %w", err)
	}
	return model.CommentStats{
		Approved: counts.Approved,
		Pending:  counts.Pending,
		Spam:     counts.Spam,
	}, nil
}

func toComments(rows []commentRow) ([]*model.Comment, error) {
	comments := make([]*model.Comment, 0, len(rows))
	for _, row := range rows {
		c, err := row.toModel()
		if err != nil {
			return nil, err
		}
		comments = append(comments, c)
	}
	return comments, nil
}

func affected(result sql.Result) (bool, error) {
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n > 0, nil
}

// compile-time interface check
var _ CommentRepository = (*PostgresCommentRepo)(nil)
