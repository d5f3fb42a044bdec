package moderation

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hitoshi/blogpulse/internal/model"
)

// --- モック ---

type mockCommentRepo struct {
	listFn          func(ctx context.Context, status *model.CommentStatus, limit int) ([]*model.Comment, error)
	updateStatusFn  func(ctx context.Context, id int64, status model.CommentStatus) (bool, error)
	deleteFn        func(ctx context.Context, id int64) (bool, error)
	countByStatusFn func(ctx context.Context) (model.CommentStats, error)
}

func (m *mockCommentRepo) Create(ctx context.Context, c *model.Comment) error { return nil }
func (m *mockCommentRepo) ListApprovedByPost(ctx context.Context, slug string) ([]*model.Comment, error) {
	return nil, nil
}
func (m *mockCommentRepo) List(ctx context.Context, status *model.CommentStatus, limit int) ([]*model.Comment, error) {
	return m.listFn(ctx, status, limit)
}
func (m *mockCommentRepo) UpdateStatus(ctx context.Context, id int64, status model.CommentStatus) (bool, error) {
	return m.updateStatusFn(ctx, id, status)
}
func (m *mockCommentRepo) Delete(ctx context.Context, id int64) (bool, error) {
	return m.deleteFn(ctx, id)
}
func (m *mockCommentRepo) CountByStatus(ctx context.Context) (model.CommentStats, error) {
	return m.countByStatusFn(ctx)
}

type mockClapRepo struct {
	countFn func(ctx context.Context) (int64, error)
}

func (m *mockClapRepo) Find(ctx context.Context, slug, ip string) (*model.Clap, error) {
	return nil, nil
}
func (m *mockClapRepo) Increment(ctx context.Context, slug, ip string, max int, now int64) (int, bool, error) {
	return 0, false, nil
}
func (m *mockClapRepo) Insert(ctx context.Context, slug, ip string, max int, now int64) (int, bool, error) {
	return 0, false, nil
}
func (m *mockClapRepo) SumByPost(ctx context.Context, slug string) (int64, error) { return 0, nil }
func (m *mockClapRepo) Count(ctx context.Context) (int64, error) { return m.countFn(ctx) }

const testKey = "s3cret"

func newTestService(comments *mockCommentRepo, claps *mockClapRepo) *Service {
	return NewService(comments, claps, testKey, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func assertAPIError(t *testing.T, err error, code string) {
	t.Helper()
	var apiErr *model.APIError
	require.True(t, errors.As(err, &apiErr), "APIErrorであるべき: %v", err)
	assert.Equal(t, code, apiErr.Code)
}

// --- テスト ---

func TestAuthorize_RejectsWrongOrMissingKey(t *testing.T) {
	repo := &mockCommentRepo{
		listFn: func(ctx context.Context, status *model.CommentStatus, limit int) ([]*model.Comment, error) {
			t.Fatal("認可に失敗した場合はストアにアクセスしない")
			return nil, nil
		},
	}
	s := newTestService(repo, &mockClapRepo{})

	_, err := s.ListComments(context.Background(), "wrong", ListFilter{})
	assertAPIError(t, err, model.ErrCodeUnauthorized)

	_, err = s.ListComments(context.Background(), "", ListFilter{})
	assertAPIError(t, err, model.ErrCodeUnauthorized)

	_, err = s.UpdateComment(context.Background(), "wrong", 1, ActionApprove)
	assertAPIError(t, err, model.ErrCodeUnauthorized)

	_, err = s.Stats(context.Background(), "wrong")
	assertAPIError(t, err, model.ErrCodeUnauthorized)
}

func TestAuthorize_UnconfiguredKeyRejectsEverything(t *testing.T) {
	s := NewService(&mockCommentRepo{}, &mockClapRepo{}, "", nil, slog.Default())

	_, err := s.Stats(context.Background(), "")
	assertAPIError(t, err, model.ErrCodeUnauthorized)
}

func TestListComments_Filters(t *testing.T) {
	tests := []struct {
		name       string
		filter     ListFilter
		wantStatus *model.CommentStatus
		wantLimit  int
	}{
		{"デフォルトは全件", ListFilter{}, nil, 0},
		{"all", ListFilter{Status: "all", Limit: 50}, nil, 50},
		{"pending", ListFilter{Status: "pending"}, ptr(model.CommentStatusPending), 0},
		{"spam", ListFilter{Status: "spam", Limit: 10}, ptr(model.CommentStatusSpam), 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &mockCommentRepo{
				listFn: func(ctx context.Context, status *model.CommentStatus, limit int) ([]*model.Comment, error) {
					assert.Equal(t, tt.wantStatus, status)
					assert.Equal(t, tt.wantLimit, limit)
					return []*model.Comment{
						{ID: 2, PostSlug: "p", AuthorName: "Bob", Content: "<b>raw</b> text", CreatedAt: 200, IPAddress: "2.2.2.2", Status: model.CommentStatusPending},
					}, nil
				},
			}
			s := newTestService(repo, &mockClapRepo{})

			got, err := s.ListComments(context.Background(), testKey, tt.filter)
			require.NoError(t, err)
			require.Len(t, got, 1)
			assert.Equal(t, "pending", got[0].Status)
			assert.Equal(t, "<b>raw</b> text", got[0].Content, "管理用一覧は保存内容をそのまま返す")
			assert.Equal(t, "2.2.2.2", got[0].IPAddress)
		})
	}
}

func TestListComments_InvalidArguments(t *testing.T) {
	s := newTestService(&mockCommentRepo{}, &mockClapRepo{})

	_, err := s.ListComments(context.Background(), testKey, ListFilter{Status: "deleted"})
	assertAPIError(t, err, model.ErrCodeInvalidArgument)

	_, err = s.ListComments(context.Background(), testKey, ListFilter{Limit: -1})
	assertAPIError(t, err, model.ErrCodeInvalidArgument)
}

func TestUpdateComment_Actions(t *testing.T) {
	var gotStatus model.CommentStatus
	deleted := false
	repo := &mockCommentRepo{
		updateStatusFn: func(ctx context.Context, id int64, status model.CommentStatus) (bool, error) {
			gotStatus = status
			return true, nil
		},
		deleteFn: func(ctx context.Context, id int64) (bool, error) {
			deleted = true
			return true, nil
		},
	}
	s := newTestService(repo, &mockClapRepo{})
	ctx := context.Background()

	res, err := s.UpdateComment(ctx, testKey, 1, ActionApprove)
	require.NoError(t, err)
	assert.Equal(t, &UpdateResult{Success: true, Message: "Comment approved"}, res)
	assert.Equal(t, model.CommentStatusApproved, gotStatus)

	res, err = s.UpdateComment(ctx, testKey, 1, ActionReject)
	require.NoError(t, err)
	assert.Equal(t, "Comment marked as spam", res.Message)
	assert.Equal(t, model.CommentStatusSpam, gotStatus)

	res, err = s.UpdateComment(ctx, testKey, 1, ActionDelete)
	require.NoError(t, err)
	assert.Equal(t, "Comment deleted", res.Message)
	assert.True(t, deleted)
}

func TestUpdateComment_ApproveTwiceIsIdempotent(t *testing.T) {
	status := map[int64]model.CommentStatus{7: model.CommentStatusPending}
	repo := &mockCommentRepo{
		updateStatusFn: func(ctx context.Context, id int64, st model.CommentStatus) (bool, error) {
			if _, ok := status[id]; !ok {
				return false, nil
			}
			status[id] = st
			return true, nil
		},
	}
	s := newTestService(repo, &mockClapRepo{})

	for i := 0; i < 2; i++ {
		res, err := s.UpdateComment(context.Background(), testKey, 7, ActionApprove)
		require.NoError(t, err)
		assert.True(t, res.Success)
	}
	assert.Equal(t, model.CommentStatusApproved, status[7])
}

func TestUpdateComment_UnknownIDIsNotFound(t *testing.T) {
	repo := &mockCommentRepo{
		updateStatusFn: func(ctx context.Context, id int64, st model.CommentStatus) (bool, error) { return false, nil },
		deleteFn:       func(ctx context.Context, id int64) (bool, error) { return false, nil },
	}
	s := newTestService(repo, &mockClapRepo{})

	for _, action := range []string{ActionApprove, ActionReject, ActionDelete} {
		_, err := s.UpdateComment(context.Background(), testKey, 999, action)
		assertAPIError(t, err, model.ErrCodeCommentNotFound)
	}
}

func TestUpdateComment_InvalidAction(t *testing.T) {
	s := newTestService(&mockCommentRepo{}, &mockClapRepo{})

	_, err := s.UpdateComment(context.Background(), testKey, 1, "publish")
	assertAPIError(t, err, model.ErrCodeInvalidArgument)
}

func TestUpdateComment_StoreErrorPropagates(t *testing.T) {
	storeErr := errors.New("db down")
	repo := &mockCommentRepo{
		deleteFn: func(ctx context.Context, id int64) (bool, error) { return false, storeErr },
	}
	s := newTestService(repo, &mockClapRepo{})

	_, err := s.UpdateComment(context.Background(), testKey, 1, ActionDelete)
	assert.ErrorIs(t, err, storeErr)
}

func TestStats_TotalIsSumOfStatuses(t *testing.T) {
	repo := &mockCommentRepo{
		countByStatusFn: func(ctx context.Context) (model.CommentStats, error) {
			return model.CommentStats{Approved: 3, Pending: 2, Spam: 1}, nil
		},
	}
	claps := &mockClapRepo{countFn: func(ctx context.Context) (int64, error) { return 4, nil }}
	s := newTestService(repo, claps)

	got, err := s.Stats(context.Background(), testKey)
	require.NoError(t, err)
	assert.Equal(t, &Stats{
		Comments: CommentCounts{Approved: 3, Pending: 2, Spam: 1, Total: 6},
		Likes:    4,
	}, got)
}

func ptr(s model.CommentStatus) *model.CommentStatus { return &s }
