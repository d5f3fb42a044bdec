// Package spam はコメント本文の内容ベースのスパム判定を提供する。
package spam

import (
	"net/url"
	"regexp"
	"strings"

	"golang.org/x/net/publicsuffix"
)

var (
	blockedWords = regexp.MustCompile(`(?i)\b(viagra|cialis|porn|xxx|casino|bitcoin)\b`)
	urlPattern   = regexp.MustCompile(`(?i)https?://[^\s<>"'\[\]]+`)
	schemeStart  = regexp.MustCompile(`(?i)https?://`)
	htmlAnchor   = regexp.MustCompile(`(?i)<a\s+href`)
	bbcodeLink   = regexp.MustCompile(`(?i)\[url=`)
)

// abuseTLDs は不正利用の多いトップレベルドメイン。
var abuseTLDs = map[string]bool{
	"xyz":   true,
	"top":   true,
	"click": true,
	"loan":  true,
	"win":   true,
}

// Classifier はテキストのスパム判定器。副作用を持たず、並行して使用できる。
type Classifier struct{}

// NewClassifier はClassifierを生成する。
func NewClassifier() *Classifier {
	return &Classifier{}
}

// IsSpam はテキストがいずれかの判定規則に該当する場合にtrueを返す。
func (c *Classifier) IsSpam(text string) bool {
	return IsSpam(text)
}

// IsSpam はテキストがいずれかの判定規則に該当する場合にtrueを返す。
//   - 禁止語（単語単位、大文字小文字を区別しない）
//   - 不正利用の多いTLDを持つhttp(s) URL
//   - HTMLのアンカータグ
//   - BBCode形式のリンク
func IsSpam(text string) bool {
	if text == "" {
		return false
	}
	if blockedWords.MatchString(text) {
		return true
	}
	if htmlAnchor.MatchString(text) || bbcodeLink.MatchString(text) {
		return true
	}
	// スキームの出現位置ごとに判定する。リダイレクタに埋め込まれたURLも対象。
	for _, loc := range schemeStart.FindAllStringIndex(text, -1) {
		raw := urlPattern.FindString(text[loc[0]:])
		if raw != "" && hasAbuseTLD(raw) {
			return true
		}
	}
	return false
}

// hasAbuseTLD はURLのホストのパブリックサフィックスが不正利用TLDで終わるか判定する。
func hasAbuseTLD(raw string) bool {
	u, err := url.Parse(strings.TrimRight(raw, ".,;:!?)"))
	if err != nil {
		return false
	}
	host := strings.TrimSuffix(strings.ToLower(u.Hostname()), ".")
	if host == "" {
		return false
	}
	suffix, _ := publicsuffix.PublicSuffix(host)
	if i := strings.LastIndexByte(suffix, '.'); i >= 0 {
		suffix = suffix[i+1:]
	}
	return abuseTLDs[suffix]
}
