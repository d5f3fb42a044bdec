// Package moderation は管理キーで保護されたコメントのモデレーション操作を提供する。
package moderation

import (
	"context"
	"crypto/subtle"
	"fmt"
	"log/slog"

	"github.com/hitoshi/blogpulse/internal/metrics"
	"github.com/hitoshi/blogpulse/internal/model"
	"github.com/hitoshi/blogpulse/internal/repository"
)

// 状態フィルタ
const (
	FilterAll = "all"
)

// コメントに対する操作
const (
	ActionApprove = "approve"
	ActionReject  = "reject"
	ActionDelete  = "delete"
)

// ListFilter はコメント一覧の絞り込み条件。
type ListFilter struct {
	Status string // all / pending / approved / spam。空はall
	Limit  int    // 0は件数制限なし
}

// AdminComment は管理用に返すコメント。
type AdminComment struct {
	ID         int64  `json:"id"`
	PostSlug   string `json:"post_slug"`
	AuthorName string `json:"author_name"`
	Content    string `json:"content"`
	CreatedAt  int64  `json:"created_at"`
	IPAddress  string `json:"ip_address"`
	UserAgent  string `json:"user_agent"`
	Status     string `json:"status"`
}

// UpdateResult はコメント操作の結果。
type UpdateResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// CommentCounts は状態別のコメント件数。
type CommentCounts struct {
	Approved int64 `json:"approved"`
	Pending  int64 `json:"pending"`
	Spam     int64 `json:"spam"`
	Total    int64 `json:"total"`
}

// Stats はモデレーション統計。
type Stats struct {
	Comments CommentCounts `json:"comments"`
	Likes    int64         `json:"likes"`
}

// Service はモデレーションのビジネスロジックを提供する。
type Service struct {
	comments repository.CommentRepository
	claps    repository.ClapRepository
	adminKey string
	metrics  metrics.MetricsCollector
	logger   *slog.Logger
}

// NewService はServiceを生成する。adminKeyが空の場合は全ての操作を拒否する。
func NewService(
	comments repository.CommentRepository,
	claps repository.ClapRepository,
	adminKey string,
	collector metrics.MetricsCollector,
	logger *slog.Logger,
) *Service {
	if collector == nil {
		collector = metrics.Nop{}
	}
	return &Service{
		comments: comments,
		claps:    claps,
		adminKey: adminKey,
		metrics:  collector,
		logger:   logger,
	}
}

func (s *Service) authorize(adminKey string) error {
	if s.adminKey == "" || subtle.ConstantTimeCompare([]byte(adminKey), []byte(s.adminKey)) != 1 {
		return model.NewUnauthorizedError()
	}
	return nil
}

// ListComments はコメントを新しい順で返す。
func (s *Service) ListComments(ctx context.Context, adminKey string, filter ListFilter) ([]AdminComment, error) {
	if err := s.authorize(adminKey); err != nil {
		return nil, err
	}

	var status *model.CommentStatus
	if filter.Status != "" && filter.Status != FilterAll {
		st, ok := model.ParseCommentStatus(filter.Status)
		if !ok {
			return nil, model.NewInvalidArgumentError(fmt.Sprintf("Invalid status: %s", filter.Status))
		}
		status = &st
	}
	if filter.Limit < 0 {
		return nil, model.NewInvalidArgumentError("Invalid limit: must not be negative")
	}

	comments, err := s.comments.List(ctx, status, filter.Limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list comments: %w", err)
	}

	result := make([]AdminComment, 0, len(comments))
	for _, c := range comments {
		result = append(result, AdminComment{
			ID:         c.ID,
			PostSlug:   c.PostSlug,
			AuthorName: c.AuthorName,
			Content:    c.Content,
			CreatedAt:  c.CreatedAt,
			IPAddress:  c.IPAddress,
			UserAgent:  c.UserAgent,
			Status:     string(c.Status),
		})
	}
	return result, nil
}

// UpdateComment はコメントを承認、却下（スパム扱い）、または削除する。
func (s *Service) UpdateComment(ctx context.Context, adminKey string, id int64, action string) (*UpdateResult, error) {
	if err := s.authorize(adminKey); err != nil {
		return nil, err
	}

	var (
		found bool
		msg   string
		err   error
	)
	switch action {
	case ActionApprove:
		found, err = s.comments.UpdateStatus(ctx, id, model.CommentStatusApproved)
		msg = "Comment approved"
	case ActionReject:
		found, err = s.comments.UpdateStatus(ctx, id, model.CommentStatusSpam)
		msg = "Comment marked as spam"
	case ActionDelete:
		found, err = s.comments.Delete(ctx, id)
		msg = "Comment deleted"
	default:
		return nil, model.NewInvalidArgumentError("Invalid action")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to %s comment %d: %w", action, id, err)
	}
	if !found {
		return nil, model.NewCommentNotFoundError(id)
	}

	s.metrics.RecordModerationAction(action)
	s.logger.Info("コメントを更新しました",
		slog.Int64("comment_id", id),
		slog.String("action", action),
	)
	return &UpdateResult{Success: true, Message: msg}, nil
}

// Stats は状態別のコメント件数とクラップ記録数を返す。
// コメント件数は1つの集計クエリから得るため、合計は常に3状態の和と一致する。
func (s *Service) Stats(ctx context.Context, adminKey string) (*Stats, error) {
	if err := s.authorize(adminKey); err != nil {
		return nil, err
	}

	counts, err := s.comments.CountByStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count comments: %w", err)
	}
	likes, err := s.claps.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count likes: %w", err)
	}

	return &Stats{
		Comments: CommentCounts{
			Approved: counts.Approved,
			Pending:  counts.Pending,
			Spam:     counts.Spam,
			Total:    counts.Total(),
		},
		Likes: likes,
	}, nil
}
