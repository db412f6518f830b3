package report

import (
	"bytes"
	"html"
	"html/template"
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	goldmarkhtml "github.com/yuin/goldmark/renderer/html"
)

const (
	FormatLite     = "lite"
	FormatMarkdown = "markdown"

	Placeholder = "No report was generated"
)

type Formatter interface {
	Format(text string) template.HTML
}

func New(format string) Formatter {
	if strings.EqualFold(strings.TrimSpace(format), FormatMarkdown) {
		return NewMarkdown()
	}
	return Lite{}
}

type rewrite struct {
	pattern     *regexp.Regexp
	replacement string
}

// liteRewrites run in order. Headings and emphasis are resolved before the
// final newline pass so no construct is split across <br> tags.
var liteRewrites = []rewrite{
	{regexp.MustCompile(`(?m)^# (.*)$`), "<h1>$1</h1>"},
	{regexp.MustCompile(`(?m)^## (.*)$`), "<h2>$1</h2>"},
	{regexp.MustCompile(`(?m)^### (.*)$`), "<h3>$1</h3>"},
	{regexp.MustCompile(`(?m)^#### (.*)$`), "<h4>$1</h4>"},
	{regexp.MustCompile(`(?m)^##### (.*)$`), "<h5>$1</h5>"},
	{regexp.MustCompile(`(?m)^###### (.*)$`), "<h6>$1</h6>"},
	{regexp.MustCompile(`\*\*(.*?)\*\*`), "<strong>$1</strong>"},
	{regexp.MustCompile(`\*(.*?)\*`), "<em>$1</em>"},
	{regexp.MustCompile("```([\\s\\S]*?)```"), "<pre>$1</pre>"},
	{regexp.MustCompile("`([^`]+)`"), "<code>$1</code>"},
	{regexp.MustCompile(`\n`), "<br>"},
}

// Lite renders the lightweight report markup: headings, bold, italic, fenced
// and inline code, line breaks. The text is escaped before any markup is
// applied.
type Lite struct{}

func (Lite) Format(text string) template.HTML {
	out := html.EscapeString(text)
	for _, rw := range liteRewrites {
		out = rw.pattern.ReplaceAllString(out, rw.replacement)
	}
	return template.HTML(out)
}

type Markdown struct {
	md goldmark.Markdown
}

func NewMarkdown() *Markdown {
	return &Markdown{
		md: goldmark.New(
			goldmark.WithExtensions(extension.GFM),
			goldmark.WithRendererOptions(goldmarkhtml.WithHardWraps()),
		),
	}
}

func (m *Markdown) Format(text string) template.HTML {
	var buf bytes.Buffer
	if err := m.md.Convert([]byte(text), &buf); err != nil {
		return template.HTML("<pre>" + template.HTMLEscapeString(text) + "</pre>")
	}
	return template.HTML(buf.String())
}
