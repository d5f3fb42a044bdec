// Package comment はコメント投稿パイプラインと公開コメントの取得を提供する。
package comment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/hitoshi/blogpulse/internal/metrics"
	"github.com/hitoshi/blogpulse/internal/model"
	"github.com/hitoshi/blogpulse/internal/ratelimit"
	"github.com/hitoshi/blogpulse/internal/repository"
)

const (
	msgPosted    = "Comment posted successfully!"
	msgModerated = "Comment submitted for moderation"
)

// RateLimiter はレート制限判定のインターフェース。
type RateLimiter interface {
	Admit(ctx context.Context, ip string, profile ratelimit.Profile) (bool, error)
}

// CaptchaVerifier はCAPTCHAトークン検証のインターフェース。
type CaptchaVerifier interface {
	Verify(ctx context.Context, token, remoteIP string) bool
}

// SpamClassifier はテキストのスパム判定のインターフェース。
type SpamClassifier interface {
	IsSpam(text string) bool
}

// PostCatalog は記事の実在確認のインターフェース。
type PostCatalog interface {
	Contains(ctx context.Context, slug string) bool
}

// TextSanitizer は表示用テキストのサニタイズのインターフェース。
type TextSanitizer interface {
	Sanitize(text string) string
}

// SubmitInput はコメント投稿の入力。
type SubmitInput struct {
	PostSlug     string `validate:"required"`
	AuthorName   string `validate:"min=2,max=100"`
	Content      string `validate:"min=10,max=2000"`
	CaptchaToken string
	Honeypot     string
	IP           string
	UserAgent    string
}

// SubmitResult はコメント投稿の結果。
// スパム判定されたコメントも受理されたコメントと同じ結果を返す。
type SubmitResult struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	CommentID int64  `json:"commentId,omitempty"`
}

// PublicComment は公開APIで返すコメント。
type PublicComment struct {
	ID         int64  `json:"id"`
	AuthorName string `json:"author_name"`
	Content    string `json:"content"`
	CreatedAt  int64  `json:"created_at"`
}

// Options はServiceの動作設定。
type Options struct {
	// DefaultStatus はスパムでないコメントの初期状態。空の場合はApproved。
	DefaultStatus model.CommentStatus
	// RateProfile はコメント投稿のレート制限設定。
	RateProfile ratelimit.Profile
}

// Service はコメントのビジネスロジックを提供する。
type Service struct {
	repo      repository.CommentRepository
	limiter   RateLimiter
	captcha   CaptchaVerifier
	spam      SpamClassifier
	catalog   PostCatalog
	sanitizer TextSanitizer
	metrics   metrics.MetricsCollector
	logger    *slog.Logger
	validate  *validator.Validate
	opts      Options
	now       func() time.Time
}

// NewService はServiceを生成する。catalogがnilの場合は記事の実在確認を行わない。
func NewService(
	repo repository.CommentRepository,
	limiter RateLimiter,
	captcha CaptchaVerifier,
	spam SpamClassifier,
	catalog PostCatalog,
	sanitizer TextSanitizer,
	collector metrics.MetricsCollector,
	logger *slog.Logger,
	opts Options,
) *Service {
	if opts.DefaultStatus == "" {
		opts.DefaultStatus = model.CommentStatusApproved
	}
	if opts.RateProfile.Action == "" {
		opts.RateProfile = ratelimit.CommentProfile
	}
	if collector == nil {
		collector = metrics.Nop{}
	}
	return &Service{
		repo:      repo,
		limiter:   limiter,
		captcha:   captcha,
		spam:      spam,
		catalog:   catalog,
		sanitizer: sanitizer,
		metrics:   collector,
		logger:    logger,
		validate:  validator.New(validator.WithRequiredStructEnabled()),
		opts:      opts,
		now:       time.Now,
	}
}

// Submit はコメント投稿パイプラインを実行する。
// 判定順序: 入力検証 → ハニーポット → CAPTCHA → レート制限 → スパム判定 → 保存。
// いずれかの判定で拒否した場合は何も保存しない。
func (s *Service) Submit(ctx context.Context, in SubmitInput) (*SubmitResult, error) {
	if apiErr := s.validateInput(ctx, in); apiErr != nil {
		s.metrics.RecordCommentOutcome(metrics.CommentInvalidInput)
		return nil, apiErr
	}

	if in.Honeypot != "" {
		s.metrics.RecordCommentOutcome(metrics.CommentHoneypot)
		s.logger.Info("ハニーポットにより投稿を拒否しました",
			slog.String("ip", in.IP),
			slog.String("post_slug", in.PostSlug),
		)
		return nil, model.NewSpamDetectedError()
	}

	start := s.now()
	verified := s.captcha.Verify(ctx, in.CaptchaToken, in.IP)
	s.metrics.RecordCaptchaLatency(s.now().Sub(start))
	if !verified {
		s.metrics.RecordCommentOutcome(metrics.CommentCaptchaFail)
		return nil, model.NewCaptchaFailedError()
	}

	admitted, err := s.limiter.Admit(ctx, in.IP, s.opts.RateProfile)
	if err != nil {
		return nil, fmt.Errorf("comment rate limit: %w", err)
	}
	if !admitted {
		s.metrics.RecordCommentOutcome(metrics.CommentRateLimited)
		return nil, model.NewCommentRateLimitedError()
	}

	status := s.opts.DefaultStatus
	if s.spam.IsSpam(in.Content) || s.spam.IsSpam(in.AuthorName) {
		status = model.CommentStatusSpam
	}

	c := &model.Comment{
		PostSlug:   in.PostSlug,
		AuthorName: in.AuthorName,
		Content:    in.Content,
		CreatedAt:  s.now().UnixMilli(),
		IPAddress:  in.IP,
		UserAgent:  in.UserAgent,
		Status:     status,
	}
	if err := s.repo.Create(ctx, c); err != nil {
		return nil, fmt.Errorf("failed to store comment: %w", err)
	}

	if status == model.CommentStatusSpam {
		s.metrics.RecordCommentOutcome(metrics.CommentSpam)
		s.logger.Info("スパムとして保存しました",
			slog.Int64("comment_id", c.ID),
			slog.String("post_slug", c.PostSlug),
		)
	} else {
		s.metrics.RecordCommentOutcome(metrics.CommentAccepted)
	}

	return s.submitted(c), nil
}

// submitted は保存済みコメントの投稿結果を組み立てる。
// 呼び出し元にスパム判定の有無が伝わらないよう、結果は設定上の初期状態のみから決まる。
func (s *Service) submitted(c *model.Comment) *SubmitResult {
	msg := msgPosted
	if s.opts.DefaultStatus != model.CommentStatusApproved {
		msg = msgModerated
	}
	return &SubmitResult{
		Success:   true,
		Message:   msg,
		CommentID: c.ID,
	}
}

func (s *Service) validateInput(ctx context.Context, in SubmitInput) *model.APIError {
	if err := s.validate.StructCtx(ctx, in); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fieldError(verrs[0])
		}
		return model.NewInvalidInputError("input", err.Error())
	}
	if s.catalog != nil && !s.catalog.Contains(ctx, in.PostSlug) {
		return model.NewUnknownPostError(in.PostSlug)
	}
	return nil
}

// fieldError は検証エラーを入力フィールド名付きのAPIErrorに変換する。
func fieldError(fe validator.FieldError) *model.APIError {
	field := map[string]string{
		"PostSlug":   "postSlug",
		"AuthorName": "authorName",
		"Content":    "content",
	}[fe.Field()]
	if field == "" {
		field = fe.Field()
	}

	switch fe.Tag() {
	case "required":
		return model.NewInvalidInputError(field, "is required")
	case "min":
		return model.NewInvalidInputError(field, fmt.Sprintf("must be at least %s characters", fe.Param()))
	case "max":
		return model.NewInvalidInputError(field, fmt.Sprintf("must be at most %s characters", fe.Param()))
	default:
		return model.NewInvalidInputError(field, "is invalid")
	}
}

// ListApproved は記事の公開済みコメントを投稿順（古い順）で返す。
func (s *Service) ListApproved(ctx context.Context, postSlug string) ([]PublicComment, error) {
	comments, err := s.repo.ListApprovedByPost(ctx, postSlug)
	if err != nil {
		return nil, fmt.Errorf("failed to list comments: %w", err)
	}

	result := make([]PublicComment, 0, len(comments))
	for _, c := range comments {
		result = append(result, PublicComment{
			ID:         c.ID,
			AuthorName: s.sanitizer.Sanitize(c.AuthorName),
			Content:    s.sanitizer.Sanitize(c.Content),
			CreatedAt:  c.CreatedAt,
		})
	}
	return result, nil
}
