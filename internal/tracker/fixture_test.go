package tracker

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestLoadFixture(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "backlog.yaml")
	data := `issues:
  - number: 1
    title: Fix flaky test
    labels: [priority:low]
  - number: 2
    title: Crash on startup
    labels: [priority:critical]
  - number: 3
    title: Old bug
    state: closed
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	f, err := LoadFixture(path)
	if err != nil {
		t.Fatalf("LoadFixture() error = %v", err)
	}

	open, err := f.ListOpenIssues(context.Background())
	if err != nil {
		t.Fatalf("ListOpenIssues() error = %v", err)
	}
	if len(open) != 2 {
		t.Fatalf("got %d open issues, want 2", len(open))
	}
	if open[0].Number != 2 {
		t.Errorf("first issue = #%d, want #2 (priority:critical)", open[0].Number)
	}
}

func TestLoadFixtureMissingFile(t *testing.T) {
	if _, err := LoadFixture(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("LoadFixture() expected error for missing file")
	}
}

func TestFixtureMutations(t *testing.T) {
	f := NewFixture([]Issue{
		{Number: 7, Title: "Add caching"},
	})
	ctx := context.Background()

	if err := f.Comment(ctx, 7, "claimed by session-a"); err != nil {
		t.Fatalf("Comment() error = %v", err)
	}
	if err := f.AddLabel(ctx, 7, "in-progress"); err != nil {
		t.Fatalf("AddLabel() error = %v", err)
	}
	if err := f.AddLabel(ctx, 7, "in-progress"); err != nil {
		t.Fatalf("AddLabel() duplicate error = %v", err)
	}

	issue, err := f.GetIssue(ctx, 7)
	if err != nil {
		t.Fatalf("GetIssue() error = %v", err)
	}
	if len(issue.Labels) != 1 || issue.Labels[0] != "in-progress" {
		t.Errorf("labels = %v, want [in-progress]", issue.Labels)
	}
	if got := f.Comments(7); len(got) != 1 || got[0] != "claimed by session-a" {
		t.Errorf("comments = %v", got)
	}

	f.Close(7)
	open, _ := f.ListOpenIssues(ctx)
	if len(open) != 0 {
		t.Errorf("closed issue still listed: %v", open)
	}
	issue, _ = f.GetIssue(ctx, 7)
	if issue.IsOpen() {
		t.Error("issue still reported open after Close")
	}
}

func TestFixtureUnknownIssue(t *testing.T) {
	f := NewFixture(nil)
	ctx := context.Background()

	_, err := f.GetIssue(ctx, 42)
	var se *StatusError
	if !errors.As(err, &se) || se.Code != 404 {
		t.Errorf("GetIssue() error = %v, want StatusError 404", err)
	}
	if err := f.Comment(ctx, 42, "x"); err == nil {
		t.Error("Comment() expected error for unknown issue")
	}
}
