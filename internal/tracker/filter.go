package tracker

import (
	"sort"
	"strings"

	"github.com/gobwas/glob"
)

// Priority labels, highest first. Items without a priority label sort
// after labeled ones, by ascending issue number.
var priorityOrder = []string{
	"priority:critical",
	"priority:high",
	"priority:medium",
	"priority:low",
}

// Filter decides which issues are candidates for claiming and orders
// them by priority. Meta/administrative items are matched by label glob
// patterns (e.g. "meta*", "epic") and by title prefixes (e.g. "[meta]").
type Filter struct {
	metaGlobs     []glob.Glob
	titlePrefixes []string
}

// NewFilter compiles the given label patterns. Invalid patterns are
// reported rather than silently dropped: a filter that cannot express
// the operator's intent would silently claim administrative items.
func NewFilter(labelPatterns, titlePrefixes []string) (*Filter, error) {
	globs := make([]glob.Glob, 0, len(labelPatterns))
	for _, p := range labelPatterns {
		g, err := glob.Compile(p)
		if err != nil {
			return nil, err
		}
		globs = append(globs, g)
	}
	return &Filter{metaGlobs: globs, titlePrefixes: titlePrefixes}, nil
}

// IsMeta reports whether the issue is administrative and must never be
// claimed: planning epics, tracking issues, and the like remain visible
// for humans only.
func (f *Filter) IsMeta(issue *Issue) bool {
	for _, label := range issue.Labels {
		for _, g := range f.metaGlobs {
			if g.Match(strings.ToLower(label)) {
				return true
			}
		}
	}

	title := strings.ToLower(strings.TrimSpace(issue.Title))
	for _, prefix := range f.titlePrefixes {
		if strings.HasPrefix(title, strings.ToLower(prefix)) {
			return true
		}
	}
	return false
}

// SortByPriority orders issues in place: priority-labeled items first in
// label order, then unlabeled items by ascending issue number. The sort
// is stable so tracker ordering breaks remaining ties.
func SortByPriority(issues []Issue) {
	rank := func(i *Issue) int {
		for r, label := range priorityOrder {
			if i.HasLabel(label) {
				return r
			}
		}
		return len(priorityOrder)
	}

	sort.SliceStable(issues, func(a, b int) bool {
		ra, rb := rank(&issues[a]), rank(&issues[b])
		if ra != rb {
			return ra < rb
		}
		return issues[a].Number < issues[b].Number
	})
}
