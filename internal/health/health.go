// Package health scores session activity. The monitor is purely
// observational: it never changes scheduling, it only reports whether a
// session's work looked productive and flags suspicious output.
package health

import (
	"strings"

	"github.com/ProvidenceIT/github-coding-agent-framework-sub001/internal/executor"
	"github.com/ProvidenceIT/github-coding-agent-framework-sub001/internal/logging"
)

const (
	// DefaultMinScore is the productivity score below which heavy tool
	// use without results is flagged.
	DefaultMinScore = 0.1

	// DefaultToolFloor is the tool-invocation count above which a low
	// score counts as unproductive. Light sessions are never flagged.
	DefaultToolFloor = 30

	// minResponseLength below which the response warrants a warning.
	minResponseLength = 10
)

// stallPhrases in a response suggest the session spun without
// progressing.
var stallPhrases = []string{
	"i am stuck",
	"i'm stuck",
	"unable to proceed",
	"cannot continue",
	"giving up",
	"fatal error",
	"panic:",
}

// Report is the monitor's verdict on one session execution.
type Report struct {
	IsHealthy         bool
	ProductivityScore float64
	Productive        bool
	Warnings          []string
}

// Monitor scores executions.
type Monitor struct {
	minScore  float64
	toolFloor int
	logger    *logging.Logger
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithMinScore overrides the unproductive-score threshold.
func WithMinScore(s float64) Option {
	return func(m *Monitor) { m.minScore = s }
}

// WithToolFloor overrides the tool-count floor for unproductive flags.
func WithToolFloor(n int) Option {
	return func(m *Monitor) { m.toolFloor = n }
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(m *Monitor) { m.logger = l }
}

// NewMonitor creates a health monitor with default thresholds.
func NewMonitor(opts ...Option) *Monitor {
	m := &Monitor{
		minScore:  DefaultMinScore,
		toolFloor: DefaultToolFloor,
		logger:    logging.NopLogger(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Check scores one execution result. issuesClosed is how many items the
// session verifiably closed during the execution.
func (m *Monitor) Check(result *executor.Result, issuesClosed int) Report {
	score := Score(issuesClosed, result.FilesChanged, result.ToolInvocations)

	report := Report{
		ProductivityScore: score,
		Productive:        !(score < m.minScore && result.ToolInvocations > m.toolFloor),
	}

	if len(strings.TrimSpace(result.Response)) < minResponseLength {
		report.Warnings = append(report.Warnings, "response suspiciously short")
	}
	if result.ToolInvocations == 0 {
		report.Warnings = append(report.Warnings, "no tool invocations recorded")
	}
	if phrase := stallPhrase(result.Response); phrase != "" {
		report.Warnings = append(report.Warnings, "response contains stall phrasing: "+phrase)
	}

	report.IsHealthy = report.Productive && len(report.Warnings) == 0
	if !report.IsHealthy {
		m.logger.Warn("unhealthy execution",
			"score", report.ProductivityScore,
			"productive", report.Productive,
			"warnings", report.Warnings)
	}
	return report
}

// Score computes the productivity score: closed items weigh ten times a
// changed file, normalized by tool invocations. Zero tools scores zero.
func Score(issuesClosed, filesChanged, toolInvocations int) float64 {
	if toolInvocations == 0 {
		return 0
	}
	return float64(issuesClosed*10+filesChanged) / float64(toolInvocations)
}

func stallPhrase(response string) string {
	lower := strings.ToLower(response)
	for _, p := range stallPhrases {
		if strings.Contains(lower, p) {
			return p
		}
	}
	return ""
}
