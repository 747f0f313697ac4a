// Package security はアプリケーションのセキュリティ機能を提供する。
//
// ContentSanitizerService はエクスポートメールのHTML本文をサニタイズする。
// SSRFGuardService は外部サービスへの送信先を検証する。
package security

import (
	"github.com/microcosm-cc/bluemonday"
)

// ContentSanitizerService はHTMLコンテンツのサニタイズ機能のインターフェースを定義する。
type ContentSanitizerService interface {
	// Sanitize はメール本文として安全なHTMLを返す。
	// 同一入力に対して常に同一出力を返す。
	Sanitize(rawHTML string) string
}

// mailSanitizer はメール向けのbluemondayポリシーを保持する。
// bluemonday.Policyは生成後の並行利用が安全。
type mailSanitizer struct {
	policy *bluemonday.Policy
}

// NewContentSanitizer はGFM由来のHTMLをメール本文向けに絞り込むサニタイザーを生成する。
//
// 画像は外部読み込みによる開封追跡の経路になるため、imgは許可しない。
// リンクはhttp, https, mailtoの絶対URLのみ残す。
func NewContentSanitizer() *mailSanitizer {
	p := bluemonday.NewPolicy()

	p.AllowElements(
		"p", "br", "hr",
		"h1", "h2", "h3", "h4",
		"ul", "ol", "li",
		"blockquote", "pre", "code",
		"strong", "em", "del",
		"table", "thead", "tbody", "tr", "th", "td",
	)

	p.AllowAttrs("href").OnElements("a")
	p.AllowURLSchemes("http", "https", "mailto")
	p.RequireParseableURLs(true)
	p.AllowRelativeURLs(false)
	p.AddTargetBlankToFullyQualifiedLinks(true)
	p.RequireNoReferrerOnLinks(true)

	return &mailSanitizer{policy: p}
}

// Sanitize はHTMLをポリシーに従ってサニタイズする。
func (s *mailSanitizer) Sanitize(rawHTML string) string {
	return s.policy.Sanitize(rawHTML)
}
