package tracker

import (
	"context"
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"
)

// fixtureFile is the YAML shape of a backlog fixture.
type fixtureFile struct {
	Issues []Issue `yaml:"issues"`
}

// Fixture is a Tracker backed by a YAML backlog file, for offline runs
// and tests. Mutations (comments, labels, closes) are kept in memory
// only; the file is never written back.
type Fixture struct {
	mu       sync.Mutex
	issues   map[int]*Issue
	order    []int
	comments map[int][]string
}

// LoadFixture reads a backlog fixture from a YAML file.
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read backlog fixture: %w", err)
	}

	var file fixtureFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse backlog fixture: %w", err)
	}
	return NewFixture(file.Issues), nil
}

// NewFixture creates a Fixture from a slice of issues.
func NewFixture(issues []Issue) *Fixture {
	f := &Fixture{
		issues:   make(map[int]*Issue, len(issues)),
		comments: make(map[int][]string),
	}
	for i := range issues {
		issue := issues[i]
		if issue.State == "" {
			issue.State = "open"
		}
		f.issues[issue.Number] = &issue
		f.order = append(f.order, issue.Number)
	}
	return f
}

// ListOpenIssues returns open issues sorted by priority.
func (f *Fixture) ListOpenIssues(ctx context.Context) ([]Issue, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var open []Issue
	for _, n := range f.order {
		if f.issues[n].IsOpen() {
			open = append(open, *f.issues[n])
		}
	}
	SortByPriority(open)
	return open, nil
}

// GetIssue reads a single issue.
func (f *Fixture) GetIssue(ctx context.Context, number int) (*Issue, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	issue, ok := f.issues[number]
	if !ok {
		return nil, &StatusError{Code: 404, Message: fmt.Sprintf("issue %d not found", number)}
	}
	cp := *issue
	return &cp, nil
}

// Comment records a comment in memory.
func (f *Fixture) Comment(ctx context.Context, number int, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.issues[number]; !ok {
		return &StatusError{Code: 404, Message: fmt.Sprintf("issue %d not found", number)}
	}
	f.comments[number] = append(f.comments[number], body)
	return nil
}

// AddLabel attaches a label in memory.
func (f *Fixture) AddLabel(ctx context.Context, number int, label string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	issue, ok := f.issues[number]
	if !ok {
		return &StatusError{Code: 404, Message: fmt.Sprintf("issue %d not found", number)}
	}
	if !issue.HasLabel(label) {
		issue.Labels = append(issue.Labels, label)
	}
	return nil
}

// Close marks an issue closed. Not part of the Tracker interface; used
// by tests and the fixture-driven executor to simulate completed work.
func (f *Fixture) Close(number int) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if issue, ok := f.issues[number]; ok {
		issue.State = "closed"
	}
}

// Comments returns the comments recorded for an issue.
func (f *Fixture) Comments(number int) []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]string, len(f.comments[number]))
	copy(out, f.comments[number])
	return out
}
