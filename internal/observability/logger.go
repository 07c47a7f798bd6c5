// Package observability provides structured logging for admission decisions.
//
// Every planned test emits one decision entry: run id, browser, active driver
// tags, test class and method, verdict and reason. Entries go to a JSON stream,
// a SQL audit table, or nowhere.
package observability

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"
)

// Verdicts recorded in the audit log.
const (
	VerdictRun  = "run"
	VerdictSkip = "skip"
)

// DecisionLogEntry contains all required fields for decision logging.
type DecisionLogEntry struct {
	// RunID groups every decision taken by one plan invocation.
	// Required.
	RunID string

	// Browser is the logical browser of the run.
	Browser string

	// ActiveDrivers are the resolved driver tags.
	ActiveDrivers []string

	// Class and Method identify the test.
	// Required.
	Class  string
	Method string

	// Verdict is VerdictRun or VerdictSkip.
	// Required.
	Verdict string

	// Reason is the decision reason for skipped tests.
	Reason string

	// RuleReason is the free-text reason of the rule behind the decision.
	RuleReason string

	// Issue is the tracker reference of the rule behind the decision.
	Issue string
}

// Validate checks that all required fields are present.
func (e *DecisionLogEntry) Validate() error {
	if e.RunID == "" {
		return fmt.Errorf("observability: run_id is required")
	}
	if e.Class == "" || e.Method == "" {
		return fmt.Errorf("observability: class and method are required")
	}
	if e.Verdict != VerdictRun && e.Verdict != VerdictSkip {
		return fmt.Errorf("observability: verdict must be %q or %q, got %q", VerdictRun, VerdictSkip, e.Verdict)
	}
	return nil
}

// DecisionLogger is the interface for decision logging.
type DecisionLogger interface {
	// LogDecision logs one admission decision.
	// Returns an error if logging fails or the entry is invalid.
	LogDecision(ctx context.Context, entry DecisionLogEntry) error

	// GetAuditSummary returns aggregated audit statistics.
	GetAuditSummary() *AuditSummary
}

// AuditSummary represents aggregated audit statistics.
type AuditSummary struct {
	RunCount          int              `json:"run_count"`
	SkipCount         int              `json:"skip_count"`
	TopSkipReasons    []SkipReasonStat `json:"top_skip_reasons"`
	TopSkippedClasses []ClassSkipStat  `json:"top_skipped_classes"`
}

// SkipReasonStat represents skip reason statistics.
type SkipReasonStat struct {
	Reason string `json:"reason"`
	Count  int    `json:"count"`
}

// ClassSkipStat represents per-class skip statistics.
type ClassSkipStat struct {
	Class string `json:"class"`
	Count int    `json:"count"`
}

func newAuditSummary() *AuditSummary {
	return &AuditSummary{
		TopSkipReasons:    []SkipReasonStat{},
		TopSkippedClasses: []ClassSkipStat{},
	}
}

// topN is how many entries the summary lists keep.
const topN = 5

// jsonLogOutput is the structured format for JSON logs.
type jsonLogOutput struct {
	Timestamp     string   `json:"timestamp"`
	Level         string   `json:"level"`
	RunID         string   `json:"run_id"`
	Browser       string   `json:"browser,omitempty"`
	ActiveDrivers []string `json:"active_drivers"`
	Class         string   `json:"class"`
	Method        string   `json:"method"`
	Verdict       string   `json:"verdict"`
	Reason        string   `json:"reason,omitempty"`
	RuleReason    string   `json:"rule_reason,omitempty"`
	Issue         string   `json:"issue,omitempty"`
}

func toJSONOutput(entry DecisionLogEntry, now time.Time) jsonLogOutput {
	output := jsonLogOutput{
		Timestamp:     now.UTC().Format(time.RFC3339),
		Level:         "info",
		RunID:         entry.RunID,
		Browser:       entry.Browser,
		ActiveDrivers: entry.ActiveDrivers,
		Class:         entry.Class,
		Method:        entry.Method,
		Verdict:       entry.Verdict,
		Reason:        entry.Reason,
		RuleReason:    entry.RuleReason,
		Issue:         entry.Issue,
	}
	// Ensure active_drivers is never null in JSON
	if output.ActiveDrivers == nil {
		output.ActiveDrivers = []string{}
	}
	return output
}

// JSONLogger implements DecisionLogger with line-delimited JSON output.
type JSONLogger struct {
	writer  io.Writer
	entries []DecisionLogEntry // Track entries for audit summary
	mu      sync.RWMutex
	now     func() time.Time
}

// NewJSONLogger creates a new JSON logger writing to the given writer.
func NewJSONLogger(w io.Writer) *JSONLogger {
	return &JSONLogger{
		writer:  w,
		entries: make([]DecisionLogEntry, 0),
		now:     time.Now,
	}
}

// LogDecision logs a decision as one JSON line.
func (l *JSONLogger) LogDecision(ctx context.Context, entry DecisionLogEntry) error {
	// Check context first
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("observability: context error: %w", err)
	}

	if err := entry.Validate(); err != nil {
		return err
	}

	data, err := json.Marshal(toJSONOutput(entry, l.now()))
	if err != nil {
		return fmt.Errorf("observability: failed to marshal log: %w", err)
	}
	data = append(data, '\n')

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, err := l.writer.Write(data); err != nil {
		return fmt.Errorf("observability: failed to write log: %w", err)
	}
	l.entries = append(l.entries, entry)

	return nil
}

// GetAuditSummary returns aggregated audit statistics.
func (l *JSONLogger) GetAuditSummary() *AuditSummary {
	l.mu.RLock()
	defer l.mu.RUnlock()

	summary := newAuditSummary()
	reasons := make(map[string]int)
	classes := make(map[string]int)

	for _, entry := range l.entries {
		if entry.Verdict == VerdictRun {
			summary.RunCount++
			continue
		}
		summary.SkipCount++
		reasons[entry.Reason]++
		classes[entry.Class]++
	}

	for reason, count := range reasons {
		summary.TopSkipReasons = append(summary.TopSkipReasons, SkipReasonStat{Reason: reason, Count: count})
	}
	sort.Slice(summary.TopSkipReasons, func(i, j int) bool {
		a, b := summary.TopSkipReasons[i], summary.TopSkipReasons[j]
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		return a.Reason < b.Reason
	})
	if len(summary.TopSkipReasons) > topN {
		summary.TopSkipReasons = summary.TopSkipReasons[:topN]
	}

	for class, count := range classes {
		summary.TopSkippedClasses = append(summary.TopSkippedClasses, ClassSkipStat{Class: class, Count: count})
	}
	sort.Slice(summary.TopSkippedClasses, func(i, j int) bool {
		a, b := summary.TopSkippedClasses[i], summary.TopSkippedClasses[j]
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		return a.Class < b.Class
	})
	if len(summary.TopSkippedClasses) > topN {
		summary.TopSkippedClasses = summary.TopSkippedClasses[:topN]
	}

	return summary
}

// NoopLogger is a logger that discards all logs.
type NoopLogger struct{}

// NewNoopLogger creates a new no-op logger.
func NewNoopLogger() *NoopLogger {
	return &NoopLogger{}
}

// LogDecision does nothing and always succeeds.
func (l *NoopLogger) LogDecision(ctx context.Context, entry DecisionLogEntry) error {
	return nil
}

// GetAuditSummary returns an empty summary for the no-op logger.
func (l *NoopLogger) GetAuditSummary() *AuditSummary {
	return newAuditSummary()
}

// MultiLogger fans a decision out to several loggers. The summary comes from
// the first one.
type MultiLogger struct {
	loggers []DecisionLogger
}

// NewMultiLogger creates a logger that writes to every given logger in order.
func NewMultiLogger(loggers ...DecisionLogger) *MultiLogger {
	return &MultiLogger{loggers: loggers}
}

// LogDecision logs to every logger and stops at the first failure.
func (m *MultiLogger) LogDecision(ctx context.Context, entry DecisionLogEntry) error {
	for _, l := range m.loggers {
		if err := l.LogDecision(ctx, entry); err != nil {
			return err
		}
	}
	return nil
}

// GetAuditSummary returns the summary of the first logger.
func (m *MultiLogger) GetAuditSummary() *AuditSummary {
	if len(m.loggers) == 0 {
		return newAuditSummary()
	}
	return m.loggers[0].GetAuditSummary()
}

// PersistentLogger implements DecisionLogger on the decision_log table.
type PersistentLogger struct {
	db *sql.DB
}

// NewPersistentLogger creates a logger that persists decisions to db.
// The schema must already be migrated.
func NewPersistentLogger(db *sql.DB) (*PersistentLogger, error) {
	if db == nil {
		return nil, fmt.Errorf("observability: database connection is required for persistent logging")
	}
	return &PersistentLogger{db: db}, nil
}

// LogDecision persists a decision.
func (l *PersistentLogger) LogDecision(ctx context.Context, entry DecisionLogEntry) error {
	// Check context first
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("observability: context error: %w", err)
	}

	if err := entry.Validate(); err != nil {
		return err
	}

	query := `
		INSERT INTO decision_log (
			run_id, browser, active_drivers, class_name, method_name,
			verdict, reason, rule_reason, issue
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := l.db.ExecContext(ctx, query,
		entry.RunID,
		entry.Browser,
		strings.Join(entry.ActiveDrivers, ","),
		entry.Class,
		entry.Method,
		entry.Verdict,
		nullableString(entry.Reason),
		nullableString(entry.RuleReason),
		nullableString(entry.Issue),
	)
	if err != nil {
		return fmt.Errorf("observability: failed to persist decision: %w", err)
	}

	return nil
}

// GetAuditSummary returns aggregated statistics over every persisted decision.
func (l *PersistentLogger) GetAuditSummary() *AuditSummary {
	summary, err := l.Summary(context.Background(), "")
	if err != nil {
		return newAuditSummary()
	}
	return summary
}

// Summary aggregates persisted decisions, optionally restricted to one run.
func (l *PersistentLogger) Summary(ctx context.Context, runID string) (*AuditSummary, error) {
	summary := newAuditSummary()

	// An empty run id matches every run.
	const runFilter = `(CAST($1 AS TEXT) = '' OR run_id = CAST($1 AS TEXT))`

	err := l.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM decision_log WHERE verdict = 'run' AND `+runFilter, runID,
	).Scan(&summary.RunCount)
	if err != nil {
		return nil, fmt.Errorf("observability: failed to count runs: %w", err)
	}

	err = l.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM decision_log WHERE verdict = 'skip' AND `+runFilter, runID,
	).Scan(&summary.SkipCount)
	if err != nil {
		return nil, fmt.Errorf("observability: failed to count skips: %w", err)
	}

	rows, err := l.db.QueryContext(ctx, `
		SELECT reason, COUNT(*) AS cnt
		FROM decision_log
		WHERE verdict = 'skip' AND `+runFilter+`
		GROUP BY reason
		ORDER BY cnt DESC, reason ASC
		LIMIT 5
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("observability: failed to query skip reasons: %w", err)
	}
	for rows.Next() {
		var reason sql.NullString
		var count int
		if err := rows.Scan(&reason, &count); err != nil {
			rows.Close()
			return nil, fmt.Errorf("observability: failed to scan skip reason: %w", err)
		}
		summary.TopSkipReasons = append(summary.TopSkipReasons, SkipReasonStat{Reason: reason.String, Count: count})
	}
	rows.Close()

	rows, err = l.db.QueryContext(ctx, `
		SELECT class_name, COUNT(*) AS cnt
		FROM decision_log
		WHERE verdict = 'skip' AND `+runFilter+`
		GROUP BY class_name
		ORDER BY cnt DESC, class_name ASC
		LIMIT 5
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("observability: failed to query skipped classes: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var class string
		var count int
		if err := rows.Scan(&class, &count); err != nil {
			return nil, fmt.Errorf("observability: failed to scan skipped class: %w", err)
		}
		summary.TopSkippedClasses = append(summary.TopSkippedClasses, ClassSkipStat{Class: class, Count: count})
	}

	return summary, rows.Err()
}

// nullableString converts empty strings to nil for SQL NULL.
func nullableString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
