package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const defaultTimeout = 15 * time.Second

// Comment は adminGetAllComments が返すコメント。
type Comment struct {
	ID         int64  `json:"id"`
	PostSlug   string `json:"post_slug"`
	AuthorName string `json:"author_name"`
	Content    string `json:"content"`
	CreatedAt  int64  `json:"created_at"`
	IPAddress  string `json:"ip_address"`
	UserAgent  string `json:"user_agent"`
	Status     string `json:"status"`
}

// Stats は adminGetStats の結果。
type Stats struct {
	Comments struct {
		Approved int64 `json:"approved"`
		Pending  int64 `json:"pending"`
		Spam     int64 `json:"spam"`
		Total    int64 `json:"total"`
	} `json:"comments"`
	Likes int64 `json:"likes"`
}

type listResult struct {
	Comments []Comment `json:"comments"`
	Count    int       `json:"count"`
}

type updateResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// APIError はサーバーがエラーエンベロープで返した失敗。
type APIError struct {
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return "API error"
	}
	return e.Message
}

// Client は管理用アクションを呼び出すHTTPクライアント。
type Client struct {
	baseURL    string
	adminKey   string
	httpClient *http.Client
}

// NewClient はClientを生成する。httpClientがnilの場合はタイムアウト付きのクライアントを使う。
func NewClient(baseURL, adminKey string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		adminKey:   adminKey,
		httpClient: httpClient,
	}
}

// Stats はモデレーション統計を取得する。
func (c *Client) Stats(ctx context.Context) (*Stats, error) {
	var out Stats
	if err := c.call(ctx, "adminGetStats", map[string]any{"adminKey": c.adminKey}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListComments は指定状態のコメントを最大limit件取得する。
func (c *Client) ListComments(ctx context.Context, status string, limit int) ([]Comment, error) {
	var out listResult
	body := map[string]any{"adminKey": c.adminKey, "status": status, "limit": limit}
	if err := c.call(ctx, "adminGetAllComments", body, &out); err != nil {
		return nil, err
	}
	return out.Comments, nil
}

// UpdateComment はコメントに approve / reject / delete を適用し、サーバーのメッセージを返す。
func (c *Client) UpdateComment(ctx context.Context, id int64, action string) (string, error) {
	var out updateResult
	body := map[string]any{"adminKey": c.adminKey, "commentId": id, "action": action}
	if err := c.call(ctx, "adminUpdateComment", body, &out); err != nil {
		return "", err
	}
	return out.Message, nil
}

func (c *Client) call(ctx context.Context, action string, payload, out any) error {
	buf, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/_actions/"+action, bytes.NewReader(buf))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request to %s failed: %w", action, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("failed to parse response: %s", strings.TrimSpace(string(raw)))
	}
	if env.Error != nil {
		return &APIError{Code: env.Error.Code, Message: env.Error.Message}
	}
	if len(env.Data) == 0 {
		return errors.New("response has no data")
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", action, err)
	}
	return nil
}
