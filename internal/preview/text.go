package preview

import (
	"bytes"
	"html/template"
	"mime"
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

// Text is a rendered text preview. Exactly one of Plain and HTML is set.
type Text struct {
	Plain     string
	HTML      template.HTML
	Truncated bool
}

type TextRenderer struct {
	md       goldmark.Markdown
	policy   *bluemonday.Policy
	maxBytes int
}

func NewTextRenderer(maxBytes int64) *TextRenderer {
	md := goldmark.New(
		goldmark.WithExtensions(extension.GFM),
		goldmark.WithRendererOptions(html.WithUnsafe()),
	)

	p := bluemonday.UGCPolicy()
	p.AllowAttrs("class").Matching(bluemonday.SpaceSeparatedTokens).OnElements("code", "pre")
	p.RequireNoFollowOnLinks(true)
	p.AddTargetBlankToFullyQualifiedLinks(true)

	return &TextRenderer{md: md, policy: p, maxBytes: int(maxBytes)}
}

// Render decodes data as UTF-8, caps it at the configured size and renders
// markdown types to sanitized HTML.
func (tr *TextRenderer) Render(data []byte, mimeType string) Text {
	var out Text
	if len(data) > tr.maxBytes {
		data = truncateUTF8(data, tr.maxBytes)
		out.Truncated = true
	}
	s := strings.ToValidUTF8(string(data), "�")

	if isMarkdown(mimeType) {
		var buf bytes.Buffer
		if err := tr.md.Convert([]byte(s), &buf); err == nil {
			out.HTML = template.HTML(tr.policy.SanitizeBytes(buf.Bytes()))
			return out
		}
	}
	out.Plain = s
	return out
}

func isMarkdown(mimeType string) bool {
	mediaType, _, err := mime.ParseMediaType(mimeType)
	if err != nil {
		mediaType = strings.ToLower(strings.TrimSpace(mimeType))
	}
	return mediaType == "text/markdown" || mediaType == "text/x-markdown"
}

// truncateUTF8 cuts data to at most n bytes without splitting a rune.
func truncateUTF8(data []byte, n int) []byte {
	if n >= len(data) {
		return data
	}
	cut := n
	for cut > 0 && cut > n-utf8.UTFMax && !utf8.RuneStart(data[cut]) {
		cut--
	}
	return data[:cut]
}
