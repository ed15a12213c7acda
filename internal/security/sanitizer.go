// Package security は記事本文のサニタイズと外部URL取得時のSSRF防止を提供する。
package security

import (
	"html"
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
)

// PostSanitizer は記事本文のHTMLをサニタイズする。
// ポリシーは生成時に1回だけ構築し、複数goroutineから並行に使用できる。
type PostSanitizer struct {
	body  *bluemonday.Policy
	plain *bluemonday.Policy
}

// NewPostSanitizer はPostSanitizerを生成する。
//   - 本文: UGCポリシー（見出し、リスト、表、コード、画像、リンク）
//   - 外部リンク: target="_blank" と rel="nofollow noopener noreferrer" を付与
//   - 抜粋: 全タグを除去するStrictポリシー
func NewPostSanitizer() *PostSanitizer {
	body := bluemonday.UGCPolicy()
	body.RequireNoFollowOnLinks(true)
	body.RequireNoReferrerOnFullyQualifiedLinks(true)
	body.AddTargetBlankToFullyQualifiedLinks(true)
	body.AllowURLSchemes("http", "https", "mailto")

	return &PostSanitizer{
		body:  body,
		plain: bluemonday.StrictPolicy(),
	}
}

// Sanitize は本文HTMLから危険な要素と属性を除去する。
// script, style, iframe, on*属性、javascript:スキームは残らない。
func (s *PostSanitizer) Sanitize(rawHTML string) string {
	return strings.TrimSpace(s.body.Sanitize(rawHTML))
}

// Excerpt はHTMLからタグを除去したテキストを最大maxRunes文字で返す。
// 切り詰めた場合は末尾に"..."を付ける。
func (s *PostSanitizer) Excerpt(rawHTML string, maxRunes int) string {
	text := html.UnescapeString(s.plain.Sanitize(rawHTML))
	text = strings.Join(strings.Fields(text), " ")

	if maxRunes <= 0 || utf8.RuneCountInString(text) <= maxRunes {
		return text
	}
	runes := []rune(text)
	return strings.TrimSpace(string(runes[:maxRunes])) + "..."
}
