package task

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// LoadFile reads and decodes the task list. An unreadable or malformed
// file is a configuration error: the run cannot proceed on a partial list.
func LoadFile(path string) ([]Task, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("task list: %w", err)
	}
	tasks, err := Parse(b)
	if err != nil {
		return nil, fmt.Errorf("task list %s: %w", path, err)
	}
	return tasks, nil
}

// Parse decodes a task list document: comments stripped, then a strict
// decode so a typo'd field name fails loudly instead of silently dropping
// a mention list.
func Parse(b []byte) ([]Task, error) {
	var tasks []Task
	dec := json.NewDecoder(bytes.NewReader(stripBlockComments(b)))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&tasks); err != nil {
		return nil, err
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		if err == nil {
			return nil, fmt.Errorf("trailing data after task array")
		}
		return nil, err
	}
	return tasks, nil
}

// stripBlockComments removes /* ... */ spans. Comments do not nest: the
// first */ closes the comment. String literals are respected, so content
// text may mention comment markers. An unterminated comment swallows the
// rest of the input and is then reported by the JSON decoder.
func stripBlockComments(b []byte) []byte {
	var (
		out       = make([]byte, 0, len(b))
		inString  bool
		inComment bool
		escaped   bool
	)
	for i := 0; i < len(b); i++ {
		c := b[i]

		if inComment {
			if c == '*' && i+1 < len(b) && b[i+1] == '/' {
				inComment = false
				i++
			}
			continue
		}

		if inString {
			out = append(out, c)
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}

		switch {
		case c == '"':
			inString = true
			out = append(out, c)
		case c == '/' && i+1 < len(b) && b[i+1] == '*':
			inComment = true
			i++
		default:
			out = append(out, c)
		}
	}
	return out
}
