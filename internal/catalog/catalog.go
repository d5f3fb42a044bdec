// Package catalog はブログのRSSフィードから記事スラッグの一覧を取得し、
// コメントやクラップの対象記事が実在するかを判定する。
package catalog

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"sync"
	"time"

	"github.com/mmcdole/gofeed"
)

const (
	// DefaultTTL は記事一覧を再取得するまでの間隔のデフォルト値。
	DefaultTTL = 15 * time.Minute
	// maxBodySize はフィードとして読み込む最大バイト数。
	maxBodySize = 5 * 1024 * 1024
)

// postPath は記事URLのパス（/blog/<slug>/）。
var postPath = regexp.MustCompile(`^/blog/([^/]+)/?$`)

// FeedCatalog はRSSフィードを元にした記事カタログ。
// 取得に失敗した場合は前回の一覧を使い続け、一度も取得できていない場合は全スラッグを許可する。
type FeedCatalog struct {
	httpClient *http.Client
	feedURL    string
	ttl        time.Duration
	logger     *slog.Logger
	now        func() time.Time

	refreshMu   sync.Mutex
	mu          sync.RWMutex
	slugs       map[string]struct{}
	loaded      bool
	lastAttempt time.Time
}

// NewFeedCatalog はFeedCatalogを生成する。ttlが0以下の場合はDefaultTTLを使用する。
func NewFeedCatalog(httpClient *http.Client, feedURL string, ttl time.Duration, logger *slog.Logger) *FeedCatalog {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &FeedCatalog{
		httpClient: httpClient,
		feedURL:    feedURL,
		ttl:        ttl,
		logger:     logger,
		now:        time.Now,
	}
}

// Contains はslugがフィードに含まれる記事であればtrueを返す。
// 一覧が古くなっていれば再取得してから判定する。
func (c *FeedCatalog) Contains(ctx context.Context, slug string) bool {
	if c.stale() {
		if err := c.Refresh(ctx); err != nil {
			c.logger.Warn("記事一覧の更新に失敗しました。前回の一覧を使用します",
				slog.String("feed_url", c.feedURL),
				slog.String("error", err.Error()),
			)
		}
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.loaded {
		return true
	}
	_, ok := c.slugs[slug]
	return ok
}

// size は読み込み済みの記事数を返す。
func (c *FeedCatalog) size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.slugs)
}

func (c *FeedCatalog) stale() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastAttempt.IsZero() || c.now().Sub(c.lastAttempt) >= c.ttl
}

// Refresh はフィードを取得して記事一覧を置き換える。
// 失敗した場合も試行時刻を更新し、TTLが経過するまで再試行しない。
func (c *FeedCatalog) Refresh(ctx context.Context) error {
	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()

	// 待機中に別のgoroutineが更新を終えていればそれを使う
	if !c.stale() {
		return nil
	}

	slugs, err := c.fetch(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastAttempt = c.now()
	if err != nil {
		return err
	}
	c.slugs = slugs
	c.loaded = true
	c.logger.Info("記事一覧を更新しました",
		slog.String("feed_url", c.feedURL),
		slog.Int("post_count", len(slugs)),
	)
	return nil
}

func (c *FeedCatalog) fetch(ctx context.Context) (map[string]struct{}, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.feedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create feed request: %w", err)
	}
	req.Header.Set("User-Agent", "blogpulse/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("feed returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("failed to read feed body: %w", err)
	}

	feed, err := gofeed.NewParser().ParseString(string(body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse feed: %w", err)
	}

	slugs := make(map[string]struct{}, len(feed.Items))
	for _, slug := range SlugsFromFeed(feed) {
		slugs[slug] = struct{}{}
	}
	return slugs, nil
}

// SlugsFromFeed はフィードの各記事リンクから /blog/<slug>/ 形式のスラッグを取り出す。
// 形式に合わないリンクは無視する。
func SlugsFromFeed(feed *gofeed.Feed) []string {
	var slugs []string
	for _, item := range feed.Items {
		if item == nil || item.Link == "" {
			continue
		}
		u, err := url.Parse(item.Link)
		if err != nil {
			continue
		}
		if m := postPath.FindStringSubmatch(u.Path); m != nil {
			slugs = append(slugs, m[1])
		}
	}
	return slugs
}
