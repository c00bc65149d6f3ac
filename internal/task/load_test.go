package task

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestParseWithComments(t *testing.T) {
	t.Parallel()
	doc := `
/* quarterly review reminders, maintained by ops */
[
  {
    "date": "2026-08-29",
    "time": "09:00",
    "title": "Standup",
    "content": "# Standup\nDaily sync in 10 minutes.",
    "at_mobiles": ["13800000000"] /* team lead */
  },
  {
    "date": "2026-09-01",
    "kind": "file",
    "source": "./notes/release.md",
    "at_all": true
  }
]
`
	tasks, err := Parse([]byte(doc))
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	if len(tasks) != 2 {
		t.Fatalf("len(tasks) = %d, want 2", len(tasks))
	}
	if tasks[0].Title != "Standup" || tasks[0].Time != "09:00" {
		t.Fatalf("unexpected first task: %+v", tasks[0])
	}
	if got := tasks[0].AtMobiles; len(got) != 1 || got[0] != "13800000000" {
		t.Fatalf("AtMobiles = %v", got)
	}
	if tasks[1].EffectiveKind() != KindFile {
		t.Fatalf("EffectiveKind = %q, want file", tasks[1].EffectiveKind())
	}
	if !tasks[1].AtAll {
		t.Fatal("AtAll not set")
	}
}

func TestParseKeepsMarkersInsideStrings(t *testing.T) {
	t.Parallel()
	doc := `[{"date": "2026-08-29", "content": "watch for /* literal */ markers"}]`
	tasks, err := Parse([]byte(doc))
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	if want := "watch for /* literal */ markers"; tasks[0].Content != want {
		t.Fatalf("Content = %q, want %q", tasks[0].Content, want)
	}
}

func TestParseCommentsDoNotNest(t *testing.T) {
	t.Parallel()
	// First */ closes the comment, so the trailing "*/" must break decoding.
	doc := `[/* outer /* inner */ {"date": "2026-08-29"} ] */`
	if _, err := Parse([]byte(doc)); err == nil {
		t.Fatal("expected error for non-nesting comment leftovers")
	}
}

func TestParseAcceptsLegacyAtAllName(t *testing.T) {
	t.Parallel()
	doc := `[{"date": "2026-08-29", "content": "x", "is_at_all": true, "at_mobiles": ["138"]}]`
	tasks, err := Parse([]byte(doc))
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	if !tasks[0].AtAll {
		t.Fatal("is_at_all not honored")
	}

	// The canonical name keeps working; explicit false via alias too.
	doc = `[{"date": "2026-08-29", "at_all": true, "is_at_all": false}]`
	tasks, err = Parse([]byte(doc))
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	if tasks[0].AtAll {
		t.Fatal("alias should win when both are present")
	}
}

func TestParseRejectsUnknownField(t *testing.T) {
	t.Parallel()
	doc := `[{"date": "2026-08-29", "at_moblies": ["13800000000"]}]`
	if _, err := Parse([]byte(doc)); err == nil {
		t.Fatal("expected error for unknown field")
	}
}

func TestEffectiveKindDefaultsToStatic(t *testing.T) {
	t.Parallel()
	if got := (Task{}).EffectiveKind(); got != KindStatic {
		t.Fatalf("EffectiveKind = %q, want static", got)
	}
	if got := (Task{Kind: " file "}).EffectiveKind(); got != KindFile {
		t.Fatalf("EffectiveKind = %q, want file", got)
	}
}

func TestParseDate(t *testing.T) {
	t.Parallel()
	d, err := Task{Date: "2026-08-29"}.ParseDate(time.UTC)
	if err != nil {
		t.Fatalf("ParseDate error: %v", err)
	}
	if d.Year() != 2026 || d.Month() != time.August || d.Day() != 29 {
		t.Fatalf("unexpected date: %v", d)
	}

	if _, err := (Task{Date: "29/08/2026"}).ParseDate(time.UTC); err == nil {
		t.Fatal("expected error for malformed date")
	}
}

func TestLoadFileMissing(t *testing.T) {
	t.Parallel()
	if _, err := LoadFile(filepath.Join(t.TempDir(), "nope.json")); err == nil {
		t.Fatal("expected error for missing task list")
	}
}

func TestLoadFile(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "tasks.json")
	if err := os.WriteFile(path, []byte(`[{"date":"2026-08-29"}]`), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	tasks, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile error: %v", err)
	}
	if len(tasks) != 1 {
		t.Fatalf("len = %d, want 1", len(tasks))
	}
}
