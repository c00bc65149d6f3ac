// Package render merges resolved content with task metadata into the
// final chat message.
package render

import (
	"fmt"
	"os"
	"strings"
	"time"
)

const (
	timestampLayout = "2006-01-02 15:04:05"

	// defaultTitle labels tasks that give no title and whose content
	// has no heading to borrow one from.
	defaultTitle = "Scheduled notice"
)

// Template placeholders, substituted literally. Anything else in a
// template passes through untouched; there is deliberately no
// conditional or nested templating here.
const (
	phTitle    = "{{title}}"
	phDatetime = "{{datetime}}"
	phContent  = "{{content}}"
	phMentions = "{{mentions}}"
)

// Input is everything one message is rendered from.
type Input struct {
	Title   string
	Now     time.Time
	Content string

	AtAll   bool
	Mobiles []string
	UserIDs []string
}

// Message is the rendered result, ready for delivery. It lives only for
// the duration of one task's processing.
type Message struct {
	Title string
	Text  string
}

// Render produces the message. With a non-empty template the four
// placeholders are substituted into it verbatim; otherwise the built-in
// layout is used.
func Render(in Input, template string) Message {
	title := deriveTitle(in.Title, in.Content)
	ts := in.Now.Format(timestampLayout)
	mentions := mentionsLabel(in)

	if template != "" {
		text := strings.NewReplacer(
			phTitle, title,
			phDatetime, ts,
			phContent, in.Content,
			phMentions, mentions,
		).Replace(template)
		return Message{Title: title, Text: text}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "## %s\n\n", title)
	b.WriteString(in.Content)
	fmt.Fprintf(&b, "\n\n---\n**time:** %s\n\n**mentions:** %s\n\n", ts, mentions)
	b.WriteString("_sent by dingtask · signed HMAC-SHA256_")
	return Message{Title: title, Text: b.String()}
}

// deriveTitle prefers the explicit title, then the first heading-like
// line of the content (a line starting with a '#' marker), then the
// generic label.
func deriveTitle(explicit, content string) string {
	if s := strings.TrimSpace(explicit); s != "" {
		return s
	}
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "#") {
			continue
		}
		if s := strings.TrimSpace(strings.TrimLeft(line, "#")); s != "" {
			return s
		}
	}
	return defaultTitle
}

// mentionsLabel is the human-readable echo of the at-list. The actual
// pinging happens through the delivery payload's at block; this label
// just makes the message body say who it was aimed at.
func mentionsLabel(in Input) string {
	if in.AtAll {
		return "everyone"
	}
	parts := make([]string, 0, len(in.Mobiles)+len(in.UserIDs))
	for _, m := range in.Mobiles {
		if m = strings.TrimSpace(m); m != "" {
			parts = append(parts, "@"+m)
		}
	}
	for _, id := range in.UserIDs {
		if id = strings.TrimSpace(id); id != "" {
			parts = append(parts, "@"+id)
		}
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, " ")
}

// LoadTemplate reads the optional layout template. A missing file (or an
// empty path) selects the built-in layout and is not an error.
func LoadTemplate(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("template %s: %w", path, err)
	}
	return string(b), nil
}
