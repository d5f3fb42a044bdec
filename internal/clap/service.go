// Package clap は記事へのクラップ（訪問者ごとに上限付きの加算式いいね）を提供する。
package clap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/hitoshi/blogpulse/internal/metrics"
	"github.com/hitoshi/blogpulse/internal/model"
	"github.com/hitoshi/blogpulse/internal/ratelimit"
	"github.com/hitoshi/blogpulse/internal/repository"
)

// RateLimiter はレート制限判定のインターフェース。
type RateLimiter interface {
	Admit(ctx context.Context, ip string, profile ratelimit.Profile) (bool, error)
}

// PostCatalog は記事の実在確認のインターフェース。
type PostCatalog interface {
	Contains(ctx context.Context, slug string) bool
}

// Result はクラップ操作の結果。
type Result struct {
	Clapped    bool  `json:"clapped"`
	UserClaps  int   `json:"userClaps"`
	TotalClaps int64 `json:"totalClaps"`
}

// Status は記事のクラップ状況。
type Status struct {
	Count     int64 `json:"count"`
	UserClaps int   `json:"userClaps"`
}

type postInput struct {
	PostSlug string `validate:"required"`
}

// Service はクラップのビジネスロジックを提供する。
type Service struct {
	repo     repository.ClapRepository
	limiter  RateLimiter
	catalog  PostCatalog
	metrics  metrics.MetricsCollector
	logger   *slog.Logger
	validate *validator.Validate
	profile  ratelimit.Profile
	max      int
	now      func() time.Time
}

// NewService はServiceを生成する。profileのActionが空の場合はratelimit.LikeProfileを使用する。
func NewService(
	repo repository.ClapRepository,
	limiter RateLimiter,
	catalog PostCatalog,
	collector metrics.MetricsCollector,
	logger *slog.Logger,
	profile ratelimit.Profile,
) *Service {
	if profile.Action == "" {
		profile = ratelimit.LikeProfile
	}
	if collector == nil {
		collector = metrics.Nop{}
	}
	return &Service{
		repo:     repo,
		limiter:  limiter,
		catalog:  catalog,
		metrics:  collector,
		logger:   logger,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		profile:  profile,
		max:      model.MaxClapsPerVisitor,
		now:      time.Now,
	}
}

// Clap は訪問者のクラップを1加算する。
// 既にクラップ済みの訪問者は上限のみで制限し、初回の訪問者のみレート制限の対象とする。
func (s *Service) Clap(ctx context.Context, postSlug, ip string) (*Result, error) {
	if err := s.checkPost(ctx, postSlug); err != nil {
		return nil, err
	}

	existing, err := s.repo.Find(ctx, postSlug, ip)
	if err != nil {
		return nil, fmt.Errorf("failed to find clap: %w", err)
	}

	now := s.now().UnixMilli()
	var (
		userClaps int
		ok        bool
	)
	if existing != nil {
		if existing.ClapCount >= s.max {
			return nil, s.ceiling(postSlug, ip)
		}
		userClaps, ok, err = s.repo.Increment(ctx, postSlug, ip, s.max, now)
		if err != nil {
			return nil, fmt.Errorf("failed to increment clap: %w", err)
		}
	} else {
		admitted, err := s.limiter.Admit(ctx, ip, s.profile)
		if err != nil {
			return nil, fmt.Errorf("clap rate limit: %w", err)
		}
		if !admitted {
			s.metrics.RecordClapOutcome(metrics.ClapRateLimited)
			return nil, model.NewLikeRateLimitedError()
		}
		userClaps, ok, err = s.repo.Insert(ctx, postSlug, ip, s.max, now)
		if err != nil {
			return nil, fmt.Errorf("failed to insert clap: %w", err)
		}
	}
	// 同一訪問者の並行リクエストが先に上限へ到達した
	if !ok {
		return nil, s.ceiling(postSlug, ip)
	}

	total, err := s.repo.SumByPost(ctx, postSlug)
	if err != nil {
		return nil, fmt.Errorf("failed to sum claps: %w", err)
	}

	s.metrics.RecordClapOutcome(metrics.ClapAccepted)
	return &Result{
		Clapped:    true,
		UserClaps:  userClaps,
		TotalClaps: total,
	}, nil
}

func (s *Service) ceiling(postSlug, ip string) error {
	s.metrics.RecordClapOutcome(metrics.ClapCeiling)
	s.logger.Debug("クラップ上限に到達しています",
		slog.String("post_slug", postSlug),
		slog.String("ip", ip),
	)
	return model.NewClapLimitReachedError(s.max)
}

// Status は記事の総クラップ数と訪問者自身のクラップ数を返す。何も書き込まない。
func (s *Service) Status(ctx context.Context, postSlug, ip string) (*Status, error) {
	if err := s.checkPost(ctx, postSlug); err != nil {
		return nil, err
	}

	total, err := s.repo.SumByPost(ctx, postSlug)
	if err != nil {
		return nil, fmt.Errorf("failed to sum claps: %w", err)
	}

	existing, err := s.repo.Find(ctx, postSlug, ip)
	if err != nil {
		return nil, fmt.Errorf("failed to find clap: %w", err)
	}

	st := &Status{Count: total}
	if existing != nil {
		st.UserClaps = existing.ClapCount
	}
	return st, nil
}

func (s *Service) checkPost(ctx context.Context, postSlug string) error {
	if err := s.validate.StructCtx(ctx, postInput{PostSlug: postSlug}); err != nil {
		return model.NewInvalidInputError("postSlug", "is required")
	}
	if s.catalog != nil && !s.catalog.Contains(ctx, postSlug) {
		return model.NewUnknownPostError(postSlug)
	}
	return nil
}
