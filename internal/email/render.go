package email

import (
	"bytes"
	"fmt"
	"html"
	"strings"

	"github.com/yuin/goldmark"
	goldmarkHTML "github.com/yuin/goldmark/renderer/html"
)

// Raw HTML in the markdown source is escaped since WithUnsafe is not set.
var md = goldmark.New(
	goldmark.WithRendererOptions(
		goldmarkHTML.WithHardWraps(),
	),
)

// RenderMarkdown converts markdown to HTML, falling back to escaped text.
func RenderMarkdown(src string) string {
	var buf bytes.Buffer
	if err := md.Convert([]byte(src), &buf); err != nil {
		return html.EscapeString(src)
	}
	return buf.String()
}

// RenderReminder builds the subject and HTML body of a reminder email.
func RenderReminder(title, body, eventURL string) (subject, htmlBody string) {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("## %s\n\n%s\n", escapeMarkdown(title), body))
	if eventURL != "" {
		sb.WriteString(fmt.Sprintf("\n[Open event](%s)\n", eventURL))
	}
	return title, RenderMarkdown(sb.String())
}

// RenderDigest builds a digest email from one markdown line per event.
func RenderDigest(lines []string) (subject, htmlBody string) {
	var sb strings.Builder
	sb.WriteString("## Registrations opening soon\n\n")
	for _, l := range lines {
		sb.WriteString("- " + l + "\n")
	}
	return "Registrations opening soon", RenderMarkdown(sb.String())
}

var markdownEscaper = strings.NewReplacer("*", `\*`, "_", `\_`, "[", `\[`, "]", `\]`, "`", "\\`", "#", `\#`)

func escapeMarkdown(s string) string {
	return markdownEscaper.Replace(s)
}
