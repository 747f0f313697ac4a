package export

import (
	"bytes"
	"fmt"
	"html"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/hitoshi/travelplanner/internal/model"
	"github.com/hitoshi/travelplanner/internal/security"
)

// HTMLRenderer は会話履歴をメールのHTML本文に変換する。
// AIの応答はMarkdownとして解釈し、最後にサニタイズする。
type HTMLRenderer struct {
	md        goldmark.Markdown
	sanitizer security.ContentSanitizerService
}

// NewHTMLRenderer はHTMLRendererの新しいインスタンスを生成する。
func NewHTMLRenderer(sanitizer security.ContentSanitizerService) *HTMLRenderer {
	return &HTMLRenderer{
		md: goldmark.New(
			goldmark.WithExtensions(extension.GFM),
		),
		sanitizer: sanitizer,
	}
}

// Render は会話履歴をHTMLにレンダリングする。
func (r *HTMLRenderer) Render(turns []model.Turn) (string, error) {
	var b strings.Builder
	b.WriteString("<h1>")
	b.WriteString(html.EscapeString(DocumentTitle))
	b.WriteString("</h1>\n")

	for i, turn := range turns {
		heading := assistantHeading
		if turn.Role == model.RoleUser {
			heading = userHeading
		}
		if i > 0 {
			b.WriteString("<hr>\n")
		}
		b.WriteString("<h3>")
		b.WriteString(html.EscapeString(heading))
		b.WriteString("</h3>\n")

		var buf bytes.Buffer
		if err := r.md.Convert([]byte(turn.Content), &buf); err != nil {
			return "", fmt.Errorf("Markdownの変換に失敗しました: %w", err)
		}
		b.Write(buf.Bytes())
	}

	return r.sanitizer.Sanitize(b.String()), nil
}
