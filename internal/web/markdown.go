package web

import (
	"bytes"
	"html/template"
	"strings"

	"github.com/yuin/goldmark"
	emoji "github.com/yuin/goldmark-emoji"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
	"github.com/yuin/goldmark/text"
)

const excerptRunes = 80

// Markdown fields (post bodies, bios, quotes, package features) share one
// renderer. Raw HTML in content is escaped, never passed through.
var markdownRenderer = goldmark.New(
	goldmark.WithExtensions(
		extension.GFM,
		extension.Typographer,
		emoji.Emoji,
	),
	goldmark.WithRendererOptions(
		html.WithHardWraps(),
	),
)

func renderMarkdownHTML(src string) template.HTML {
	src = strings.TrimSpace(src)
	if src == "" {
		return template.HTML("")
	}
	var b bytes.Buffer
	if err := markdownRenderer.Convert([]byte(src), &b); err != nil {
		return template.HTML("<pre>" + template.HTMLEscapeString(src) + "</pre>")
	}
	return template.HTML(b.String())
}

// markdownExcerpt returns the plain text of the first heading or paragraph,
// cut to excerptRunes. Used for list rows.
func markdownExcerpt(src string) string {
	b := []byte(strings.TrimSpace(src))
	if len(b) == 0 {
		return ""
	}
	doc := markdownRenderer.Parser().Parse(text.NewReader(b))

	var out strings.Builder
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			if n.Type() == ast.TypeBlock && out.Len() > 0 {
				return ast.WalkStop, nil
			}
			return ast.WalkContinue, nil
		}
		switch t := n.(type) {
		case *ast.Text:
			out.Write(t.Segment.Value(b))
			if t.SoftLineBreak() || t.HardLineBreak() {
				out.WriteByte(' ')
			}
		case *ast.String:
			out.Write(t.Value)
		}
		return ast.WalkContinue, nil
	})

	s := strings.Join(strings.Fields(out.String()), " ")
	if r := []rune(s); len(r) > excerptRunes {
		s = string(r[:excerptRunes-1]) + "…"
	}
	return s
}
