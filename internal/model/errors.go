// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// 呼び出し元に表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: validation, auth, throttle, ceiling, not_found, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// エラーカテゴリ
const (
	CategoryValidation = "validation"
	CategoryAuth       = "auth"
	CategoryThrottle   = "throttle"
	CategoryCeiling    = "ceiling"
	CategoryNotFound   = "not_found"
	CategorySystem     = "system"
)

// 定義済みエラーコード
const (
	ErrCodeInvalidInput     = "INVALID_INPUT"
	ErrCodeUnknownPost      = "UNKNOWN_POST"
	ErrCodeSpamDetected     = "SPAM_DETECTED"
	ErrCodeCaptchaFailed    = "CAPTCHA_FAILED"
	ErrCodeRateLimited      = "RATE_LIMITED"
	ErrCodeClapLimitReached = "CLAP_LIMIT_REACHED"
	ErrCodeUnauthorized     = "UNAUTHORIZED"
	ErrCodeInvalidArgument  = "INVALID_ARGUMENT"
	ErrCodeCommentNotFound  = "COMMENT_NOT_FOUND"
	ErrCodeInternal         = "INTERNAL_ERROR"
)

// NewInvalidInputError は入力値検証エラーを生成する。
func NewInvalidInputError(field, reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidInput,
		Message:  fmt.Sprintf("Invalid %s: %s", field, reason),
		Category: CategoryValidation,
		Action:   "Check the submitted fields and try again.",
	}
}

// NewUnknownPostError は存在しない記事スラッグへの操作エラーを生成する。
func NewUnknownPostError(slug string) *APIError {
	return &APIError{
		Code:     ErrCodeUnknownPost,
		Message:  fmt.Sprintf("Unknown post: %s", slug),
		Category: CategoryValidation,
		Action:   "Reload the page and try again.",
	}
}

// NewSpamDetectedError はハニーポット検知エラーを生成する。
// 本文の判定結果ではなく、bot署名による拒否にのみ使用する。
func NewSpamDetectedError() *APIError {
	return &APIError{
		Code:     ErrCodeSpamDetected,
		Message:  "Spam detected",
		Category: CategoryAuth,
		Action:   "Submit the form without automated tools.",
	}
}

// NewCaptchaFailedError はCAPTCHA検証失敗エラーを生成する。
func NewCaptchaFailedError() *APIError {
	return &APIError{
		Code:     ErrCodeCaptchaFailed,
		Message:  "CAPTCHA verification failed",
		Category: CategoryAuth,
		Action:   "Complete the verification challenge and submit again.",
	}
}

// NewCommentRateLimitedError はコメント投稿のレート制限エラーを生成する。
func NewCommentRateLimitedError() *APIError {
	return &APIError{
		Code:     ErrCodeRateLimited,
		Message:  "Too many comments. Please wait a few minutes.",
		Category: CategoryThrottle,
		Action:   "Wait a few minutes before posting again.",
	}
}

// NewLikeRateLimitedError はクラップのレート制限エラーを生成する。
func NewLikeRateLimitedError() *APIError {
	return &APIError{
		Code:     ErrCodeRateLimited,
		Message:  "Too many actions. Please wait a moment.",
		Category: CategoryThrottle,
		Action:   "Wait a moment before clapping again.",
	}
}

// NewClapLimitReachedError は訪問者あたりのクラップ上限到達エラーを生成する。
func NewClapLimitReachedError(max int) *APIError {
	return &APIError{
		Code:     ErrCodeClapLimitReached,
		Message:  fmt.Sprintf("Maximum claps reached (%d). You really love this post!", max),
		Category: CategoryCeiling,
		Action:   "No further claps are accepted for this post.",
	}
}

// NewUnauthorizedError は管理キー不一致エラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "Unauthorized",
		Category: CategoryAuth,
		Action:   "Provide a valid admin key.",
	}
}

// NewInvalidArgumentError は未知の操作や不正な引数のエラーを生成する。
func NewInvalidArgumentError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidArgument,
		Message:  reason,
		Category: CategoryValidation,
		Action:   "Check the request arguments.",
	}
}

// NewCommentNotFoundError はコメント未検出エラーを生成する。
func NewCommentNotFoundError(id int64) *APIError {
	return &APIError{
		Code:     ErrCodeCommentNotFound,
		Message:  fmt.Sprintf("Comment not found: %d", id),
		Category: CategoryNotFound,
		Action:   "Check the comment ID.",
	}
}

// NewInternalError は内部エラーの統一表現を生成する。
// 詳細はログのみに記録し、呼び出し元には一般的なメッセージを返す。
func NewInternalError() *APIError {
	return &APIError{
		Code:     ErrCodeInternal,
		Message:  "An internal error occurred.",
		Category: CategorySystem,
		Action:   "Please try again later.",
	}
}
