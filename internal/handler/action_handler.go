package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/blogpulse/internal/clap"
	"github.com/hitoshi/blogpulse/internal/comment"
	"github.com/hitoshi/blogpulse/internal/metrics"
	"github.com/hitoshi/blogpulse/internal/middleware"
	"github.com/hitoshi/blogpulse/internal/model"
	"github.com/hitoshi/blogpulse/internal/moderation"
)

// アクション名
const (
	ActionAddComment          = "addComment"
	ActionGetComments         = "getComments"
	ActionToggleLike          = "toggleLike"
	ActionGetLikes            = "getLikes"
	ActionAdminGetAllComments = "adminGetAllComments"
	ActionAdminUpdateComment  = "adminUpdateComment"
	ActionAdminGetStats       = "adminGetStats"
)

const (
	errCodeUnknownAction = "UNKNOWN_ACTION"

	// maxBodySize はアクションのリクエストボディの上限。
	maxBodySize = 64 << 10
)

// CommentServiceInterface はコメント操作に必要なサービスインターフェース。
type CommentServiceInterface interface {
	Submit(ctx context.Context, in comment.SubmitInput) (*comment.SubmitResult, error)
	ListApproved(ctx context.Context, postSlug string) ([]comment.PublicComment, error)
}

// ClapServiceInterface はクラップ操作に必要なサービスインターフェース。
type ClapServiceInterface interface {
	Clap(ctx context.Context, postSlug, ip string) (*clap.Result, error)
	Status(ctx context.Context, postSlug, ip string) (*clap.Status, error)
}

// ModerationServiceInterface は管理操作に必要なサービスインターフェース。
type ModerationServiceInterface interface {
	ListComments(ctx context.Context, adminKey string, filter moderation.ListFilter) ([]moderation.AdminComment, error)
	UpdateComment(ctx context.Context, adminKey string, id int64, action string) (*moderation.UpdateResult, error)
	Stats(ctx context.Context, adminKey string) (*moderation.Stats, error)
}

// ActionHandler は POST /_actions/{action} のHTTPハンドラー。
type ActionHandler struct {
	comments   CommentServiceInterface
	claps      ClapServiceInterface
	moderation ModerationServiceInterface
	metrics    metrics.MetricsCollector
	actions    map[string]func(r *http.Request) (any, error)
}

// NewActionHandler はActionHandlerを生成する。
func NewActionHandler(
	comments CommentServiceInterface,
	claps ClapServiceInterface,
	mod ModerationServiceInterface,
	collector metrics.MetricsCollector,
) *ActionHandler {
	if collector == nil {
		collector = metrics.Nop{}
	}
	h := &ActionHandler{
		comments:   comments,
		claps:      claps,
		moderation: mod,
		metrics:    collector,
	}
	h.actions = map[string]func(r *http.Request) (any, error){
		ActionAddComment:          h.addComment,
		ActionGetComments:         h.getComments,
		ActionToggleLike:          h.toggleLike,
		ActionGetLikes:            h.getLikes,
		ActionAdminGetAllComments: h.adminGetAllComments,
		ActionAdminUpdateComment:  h.adminUpdateComment,
		ActionAdminGetStats:       h.adminGetStats,
	}
	return h
}

// postRequest は記事スラッグのみを受け取るアクションのリクエストボディ。
type postRequest struct {
	PostSlug string `json:"postSlug"`
}

// addCommentRequest はコメント投稿のリクエストボディ。
type addCommentRequest struct {
	PostSlug       string `json:"postSlug"`
	AuthorName     string `json:"authorName"`
	Content        string `json:"content"`
	TurnstileToken string `json:"turnstileToken"`
	Honeypot       string `json:"honeypot"`
}

type adminListRequest struct {
	AdminKey string `json:"adminKey"`
	Status   string `json:"status"`
	Limit    int    `json:"limit"`
}

type adminUpdateRequest struct {
	AdminKey  string `json:"adminKey"`
	CommentID int64  `json:"commentId"`
	Action    string `json:"action"`
}

type adminRequest struct {
	AdminKey string `json:"adminKey"`
}

// commentsResponse はコメント一覧のレスポンス。
type commentsResponse[T any] struct {
	Comments []T `json:"comments"`
	Count    int `json:"count"`
}

// Dispatch はURLのアクション名に対応する処理を実行する。
// POST /_actions/{action}
func (h *ActionHandler) Dispatch(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "action")

	fn, ok := h.actions[name]
	if !ok {
		middleware.WriteErrorResponse(w, http.StatusNotFound, &model.APIError{
			Code:     errCodeUnknownAction,
			Message:  fmt.Sprintf("Unknown action: %s", name),
			Category: model.CategoryNotFound,
			Action:   "Check the action name.",
		})
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)

	result, err := fn(r)
	if err != nil {
		status := writeServiceError(w, r, err)
		h.metrics.RecordHTTPStatus(name, status)
		return
	}

	writeData(w, result)
	h.metrics.RecordHTTPStatus(name, http.StatusOK)
}

func (h *ActionHandler) addComment(r *http.Request) (any, error) {
	req, err := decodeAddComment(r)
	if err != nil {
		return nil, err
	}

	return h.comments.Submit(r.Context(), comment.SubmitInput{
		PostSlug:     req.PostSlug,
		AuthorName:   req.AuthorName,
		Content:      req.Content,
		CaptchaToken: req.TurnstileToken,
		Honeypot:     req.Honeypot,
		IP:           middleware.ClientIP(r),
		UserAgent:    r.UserAgent(),
	})
}

func (h *ActionHandler) getComments(r *http.Request) (any, error) {
	var req postRequest
	if err := decodeJSON(r, &req); err != nil {
		return nil, err
	}

	comments, err := h.comments.ListApproved(r.Context(), req.PostSlug)
	if err != nil {
		return nil, err
	}
	return commentsResponse[comment.PublicComment]{Comments: comments, Count: len(comments)}, nil
}

func (h *ActionHandler) toggleLike(r *http.Request) (any, error) {
	var req postRequest
	if err := decodeJSON(r, &req); err != nil {
		return nil, err
	}
	return h.claps.Clap(r.Context(), req.PostSlug, middleware.ClientIP(r))
}

func (h *ActionHandler) getLikes(r *http.Request) (any, error) {
	var req postRequest
	if err := decodeJSON(r, &req); err != nil {
		return nil, err
	}
	return h.claps.Status(r.Context(), req.PostSlug, middleware.ClientIP(r))
}

func (h *ActionHandler) adminGetAllComments(r *http.Request) (any, error) {
	var req adminListRequest
	if err := decodeJSON(r, &req); err != nil {
		return nil, err
	}

	comments, err := h.moderation.ListComments(r.Context(), req.AdminKey, moderation.ListFilter{
		Status: req.Status,
		Limit:  req.Limit,
	})
	if err != nil {
		return nil, err
	}
	return commentsResponse[moderation.AdminComment]{Comments: comments, Count: len(comments)}, nil
}

func (h *ActionHandler) adminUpdateComment(r *http.Request) (any, error) {
	var req adminUpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		return nil, err
	}
	return h.moderation.UpdateComment(r.Context(), req.AdminKey, req.CommentID, req.Action)
}

func (h *ActionHandler) adminGetStats(r *http.Request) (any, error) {
	var req adminRequest
	if err := decodeJSON(r, &req); err != nil {
		return nil, err
	}
	return h.moderation.Stats(r.Context(), req.AdminKey)
}

// decodeJSON はリクエストボディをJSONとして読み込む。空のボディはゼロ値として扱う。
func decodeJSON(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		slog.Debug("リクエストボディの解析に失敗しました", slog.String("error", err.Error()))
		return model.NewInvalidArgumentError("Malformed request body")
	}
	return nil
}

// decodeAddComment はコメント投稿の入力をJSONまたはフォームから読み込む。
func decodeAddComment(r *http.Request) (*addCommentRequest, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	switch mediaType {
	case "application/x-www-form-urlencoded", "multipart/form-data":
		var err error
		if mediaType == "multipart/form-data" {
			err = r.ParseMultipartForm(maxBodySize)
		} else {
			err = r.ParseForm()
		}
		if err != nil {
			return nil, model.NewInvalidArgumentError("Malformed form body")
		}
		return &addCommentRequest{
			PostSlug:       r.PostFormValue("postSlug"),
			AuthorName:     r.PostFormValue("authorName"),
			Content:        r.PostFormValue("content"),
			TurnstileToken: r.PostFormValue("turnstileToken"),
			Honeypot:       r.PostFormValue("honeypot"),
		}, nil
	default:
		var req addCommentRequest
		if err := decodeJSON(r, &req); err != nil {
			return nil, err
		}
		return &req, nil
	}
}
