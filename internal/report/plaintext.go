package report

import (
	"html"
	"html/template"
	"regexp"
	"sync"

	"github.com/microcosm-cc/bluemonday"
)

const DownloadFilename = "ai_agent_report.txt"

var (
	strictPolicyOnce sync.Once
	strictPolicy     *bluemonday.Policy

	lineBreaks = regexp.MustCompile(`(?i)<br\s*/?>\n?`)
)

func strictHTMLPolicy() *bluemonday.Policy {
	strictPolicyOnce.Do(func() {
		strictPolicy = bluemonday.StrictPolicy()
	})
	return strictPolicy
}

// PlainText serializes rendered report markup back to the text a reader
// sees: line breaks become newlines, every tag is dropped, entities are
// decoded.
func PlainText(rendered template.HTML) string {
	text := lineBreaks.ReplaceAllString(string(rendered), "\n")
	text = strictHTMLPolicy().Sanitize(text)
	return html.UnescapeString(text)
}
