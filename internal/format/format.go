// Package format turns stored comment text into safe HTML.
package format

import (
	"html"
	"html/template"
	"regexp"
	"strings"
	"time"

	"mvdan.cc/xurls/v2"
)

var (
	urlPattern   = xurls.Strict()
	emailPattern = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9\-]+(?:\.[A-Za-z0-9\-]+)+`)
)

// Lines splits text into its non-blank lines.
func Lines(text string) []string {
	var out []string
	for _, line := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		if strings.TrimSpace(line) != "" {
			out = append(out, line)
		}
	}
	return out
}

// Linkify escapes line and wraps URLs with a scheme and bare email
// addresses in anchors.
func Linkify(line string) template.HTML {
	var b strings.Builder
	last := 0
	for _, loc := range urlPattern.FindAllStringIndex(line, -1) {
		linkifyEmails(&b, line[last:loc[0]])
		u := line[loc[0]:loc[1]]
		b.WriteString(`<a href="`)
		b.WriteString(html.EscapeString(u))
		b.WriteString(`" rel="nofollow ugc noopener" target="_blank">`)
		b.WriteString(html.EscapeString(u))
		b.WriteString(`</a>`)
		last = loc[1]
	}
	linkifyEmails(&b, line[last:])
	return template.HTML(b.String())
}

func linkifyEmails(b *strings.Builder, text string) {
	last := 0
	for _, loc := range emailPattern.FindAllStringIndex(text, -1) {
		b.WriteString(html.EscapeString(text[last:loc[0]]))
		addr := html.EscapeString(text[loc[0]:loc[1]])
		b.WriteString(`<a href="mailto:`)
		b.WriteString(addr)
		b.WriteString(`">`)
		b.WriteString(addr)
		b.WriteString(`</a>`)
		last = loc[1]
	}
	b.WriteString(html.EscapeString(text[last:]))
}

// Paragraphs is Lines followed by Linkify.
func Paragraphs(text string) []template.HTML {
	lines := Lines(text)
	out := make([]template.HTML, 0, len(lines))
	for _, l := range lines {
		out = append(out, Linkify(l))
	}
	return out
}

func Date(t time.Time) string {
	return t.UTC().Format("02/01/2006")
}

func Time(t time.Time) string {
	return t.UTC().Format("15h04")
}

func UTC(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05Z")
}
