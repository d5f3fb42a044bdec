package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/blogpulse/internal/middleware"
	"github.com/hitoshi/blogpulse/internal/model"
)

// dataResponse は成功レスポンスのトップレベル構造（{"data": ...}）。
type dataResponse struct {
	Data any `json:"data"`
}

// writeData は成功結果を200で書き込む。
func writeData(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(dataResponse{Data: data})
}

// writeServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換して書き込み、
// 書き込んだステータスコードを返す。
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) int {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		status := mapAPIErrorToHTTPStatus(apiErr)
		middleware.WriteErrorResponse(w, status, apiErr)
		return status
	}

	// APIError以外のエラーは内部サーバーエラーとして扱う
	slog.Error("internal server error",
		slog.String("error", err.Error()),
		slog.String("path", r.URL.Path),
		slog.String("request_id", middleware.RequestIDFromContext(r.Context())),
	)
	middleware.WriteInternalServerError(w)
	return http.StatusInternalServerError
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeInvalidInput, model.ErrCodeUnknownPost, model.ErrCodeInvalidArgument:
		return http.StatusBadRequest
	case model.ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case model.ErrCodeCaptchaFailed, model.ErrCodeSpamDetected:
		return http.StatusForbidden
	case model.ErrCodeRateLimited:
		return http.StatusTooManyRequests
	case model.ErrCodeClapLimitReached:
		return http.StatusConflict
	case model.ErrCodeCommentNotFound, errCodeUnknownAction:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
