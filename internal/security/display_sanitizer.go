package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// DisplaySanitizer は公開APIで返すコメントのテキストからマークアップを取り除く。
// 保存されたテキストは変更せず、読み出し時にのみ適用する。
type DisplaySanitizer struct {
	policy *bluemonday.Policy
}

// NewDisplaySanitizer はタグを一切許可しないポリシーでDisplaySanitizerを生成する。
func NewDisplaySanitizer() *DisplaySanitizer {
	return &DisplaySanitizer{policy: bluemonday.StrictPolicy()}
}

// maxSanitizePasses は除去と文字実体の復元を繰り返す上限。
const maxSanitizePasses = 8

// Sanitize はタグを除去したプレーンテキストを返す。
// bluemondayがエスケープした文字実体は元の文字に戻す。復元によって新たにタグが
// 現れた場合は、出力が変化しなくなるまで除去を繰り返す。
// 上限までに収束しない場合はエスケープ済みの出力を返す。
func (s *DisplaySanitizer) Sanitize(text string) string {
	if text == "" {
		return ""
	}
	prev := text
	for i := 0; i < maxSanitizePasses; i++ {
		escaped := s.policy.Sanitize(prev)
		out := html.UnescapeString(escaped)
		if out == prev {
			return out
		}
		if !strings.Contains(out, "<") {
			return out
		}
		prev = out
	}
	return s.policy.Sanitize(prev)
}
