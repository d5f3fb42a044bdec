// Package captcha はCloudflare TurnstileによるCAPTCHAトークン検証を提供する。
package captcha

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
)

// DefaultVerifyURL はTurnstileのトークン検証エンドポイント。
const DefaultVerifyURL = "https://challenges.cloudflare.com/turnstile/v0/siteverify"

// maxResponseBytes は検証レスポンスとして読み込む最大バイト数。
const maxResponseBytes = 64 * 1024

// Verifier はCAPTCHAトークンの検証インターフェース。
type Verifier interface {
	// Verify はトークンが有効な場合にのみtrueを返す。
	// 通信失敗や不正なレスポンスはfalseとして扱い、エラーは返さない。
	Verify(ctx context.Context, token, remoteIP string) bool
}

// verifyResponse はsiteverifyのレスポンスのうち判定に使用する部分。
type verifyResponse struct {
	Success    bool     `json:"success"`
	ErrorCodes []string `json:"error-codes"`
}

// TurnstileClient はTurnstileのsiteverify APIクライアント。
type TurnstileClient struct {
	httpClient *http.Client
	logger     *slog.Logger
	secret     string
	endpoint   string
}

// NewTurnstileClient はTurnstileClientを生成する。endpointが空の場合はDefaultVerifyURLを使用する。
func NewTurnstileClient(httpClient *http.Client, secret, endpoint string, logger *slog.Logger) *TurnstileClient {
	if endpoint == "" {
		endpoint = DefaultVerifyURL
	}
	return &TurnstileClient{
		httpClient: httpClient,
		logger:     logger,
		secret:     secret,
		endpoint:   endpoint,
	}
}

// Verify はトークンをsiteverifyに送信し、success=trueの場合にのみtrueを返す。
// 空のトークンは通信せずにfalseを返す。
func (c *TurnstileClient) Verify(ctx context.Context, token, remoteIP string) bool {
	if token == "" {
		return false
	}

	form := url.Values{}
	form.Set("secret", c.secret)
	form.Set("response", token)
	if remoteIP != "" && remoteIP != "unknown" {
		form.Set("remoteip", remoteIP)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		c.logger.Error("CAPTCHA検証リクエストの作成に失敗しました",
			slog.String("error", err.Error()),
		)
		return false
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("CAPTCHA検証APIの呼び出しに失敗しました",
			slog.String("error", err.Error()),
		)
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.Error("CAPTCHA検証APIがエラーステータスを返しました",
			slog.Int("http_status", resp.StatusCode),
		)
		return false
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		c.logger.Error("CAPTCHA検証レスポンスの読み取りに失敗しました",
			slog.String("error", err.Error()),
		)
		return false
	}

	var result verifyResponse
	if err := json.Unmarshal(body, &result); err != nil {
		c.logger.Error("CAPTCHA検証レスポンスのパースに失敗しました",
			slog.String("error", err.Error()),
		)
		return false
	}

	if !result.Success {
		c.logger.Info("CAPTCHAトークンが拒否されました",
			slog.Any("error_codes", result.ErrorCodes),
		)
	}
	return result.Success
}

// compile-time interface check
var _ Verifier = (*TurnstileClient)(nil)
