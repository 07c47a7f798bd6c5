package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/canonica-labs/admission/internal/errors"
	"github.com/canonica-labs/admission/internal/filters"
	"github.com/canonica-labs/admission/internal/observability"
	"github.com/canonica-labs/admission/internal/policy"
	"github.com/canonica-labs/admission/internal/rules"
)

func (c *CLI) newPlanCmd() *cobra.Command {
	var decisionsLog string
	var skippedOnly bool

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Decide admission for every test in the manifest",
		Long: `Evaluate every test of the manifest against the admission policy for the
configured browser and print which tests run and which are skipped, with the
reason for each skip.

Each plan gets a run id. When an audit DSN is configured every decision is
persisted to the decision_log table under that run id.

Manifest format:

  classes:
    - name: LoginTest
      skip: "flaky on CI"
      ignore:
        - drivers: [FIREFOX, IE]
          reason: "alert handling"
          issue: "1234"
      methods:
        - name: testLogin
          ignore:
            - drivers: [CHROME]
        - name: testLogout`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runPlan(cmd.Context(), decisionsLog, skippedOnly)
		},
	}

	cmd.Flags().StringVar(&decisionsLog, "decisions-log", "", "also write line-delimited JSON decisions to this file ('-' for stderr)")
	cmd.Flags().BoolVar(&skippedOnly, "skipped-only", false, "list skipped tests only")

	return cmd
}

// DecisionRecord is one planned test.
type DecisionRecord struct {
	Class      string `json:"class"`
	Method     string `json:"method"`
	Verdict    string `json:"verdict"`
	Reason     string `json:"reason,omitempty"`
	Scope      string `json:"scope,omitempty"`
	RuleReason string `json:"rule_reason,omitempty"`
	Issue      string `json:"issue,omitempty"`
}

// Plan is the JSON output of the plan command.
type Plan struct {
	RunID         string                      `json:"run_id"`
	Browser       string                      `json:"browser"`
	ActiveDrivers []string                    `json:"active_drivers"`
	Filters       filters.Summary             `json:"filters"`
	Decisions     []DecisionRecord            `json:"decisions"`
	Summary       *observability.AuditSummary `json:"summary"`
}

func newDecisionRecord(t rules.Test, d policy.Decision) DecisionRecord {
	rec := DecisionRecord{
		Class:   t.Class,
		Method:  t.Method,
		Verdict: observability.VerdictRun,
	}
	if !d.Skip {
		return rec
	}
	rec.Verdict = observability.VerdictSkip
	rec.Reason = string(d.Reason)
	if d.Rule != nil {
		rec.Scope = string(d.Rule.Scope)
		rec.RuleReason = d.Rule.Reason
		rec.Issue = d.Rule.Issue
	}
	return rec
}

func (c *CLI) runPlan(ctx context.Context, decisionsLog string, skippedOnly bool) error {
	if ctx == nil {
		ctx = context.Background()
	}

	engine, err := c.newEngine()
	if err != nil {
		return err
	}
	m, err := c.loadManifest()
	if err != nil {
		return err
	}

	// The first logger keeps the in-memory summary for this run.
	var journal io.Writer = io.Discard
	switch decisionsLog {
	case "":
	case "-":
		journal = c.errOut
	default:
		f, err := os.Create(decisionsLog)
		if err != nil {
			return fmt.Errorf("cannot create decisions log: %w", err)
		}
		defer f.Close()
		journal = f
	}
	runLog := observability.NewJSONLogger(journal)
	loggers := []observability.DecisionLogger{runLog}

	storeCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	store, err := c.openAuditStore(storeCtx)
	if err != nil {
		return err
	}
	if store != nil {
		defer store.Close()
		persistent, err := observability.NewPersistentLogger(store.DB())
		if err != nil {
			return err
		}
		loggers = append(loggers, persistent)
	}
	audit := observability.NewMultiLogger(loggers...)

	plan := Plan{
		RunID:         uuid.NewString(),
		Browser:       engine.Browser().String(),
		ActiveDrivers: tagNames(engine.ActiveDrivers()),
		Filters:       filters.New(c.cfg.Filter).Summary(),
		Decisions:     []DecisionRecord{},
	}
	c.logger.Info("planning run",
		"run_id", plan.RunID,
		"browser", plan.Browser,
		"tests", m.Len(),
	)

	for _, t := range m.Tests() {
		d := engine.Decide(t)
		rec := newDecisionRecord(t, d)

		entry := observability.DecisionLogEntry{
			RunID:         plan.RunID,
			Browser:       plan.Browser,
			ActiveDrivers: plan.ActiveDrivers,
			Class:         rec.Class,
			Method:        rec.Method,
			Verdict:       rec.Verdict,
			Reason:        rec.Reason,
			RuleReason:    rec.RuleReason,
			Issue:         rec.Issue,
		}
		if err := audit.LogDecision(storeCtx, entry); err != nil {
			if store != nil {
				return errors.NewAuditUnavailable(c.cfg.Audit.DSN, err)
			}
			return err
		}
		c.logger.Debug("decision", "test", t.Identity.String(), "verdict", rec.Verdict, "reason", rec.Reason)

		if skippedOnly && !d.Skip {
			continue
		}
		plan.Decisions = append(plan.Decisions, rec)
	}
	plan.Summary = runLog.GetAuditSummary()

	if c.jsonOutput {
		return c.outputJSON(plan)
	}

	c.printf("Run %s (browser %s)\n\n", plan.RunID, plan.Browser)
	for _, rec := range plan.Decisions {
		c.println(formatDecision(rec))
	}
	c.println("")
	c.printf("%d to run, %d skipped\n", plan.Summary.RunCount, plan.Summary.SkipCount)
	return nil
}

func formatDecision(rec DecisionRecord) string {
	line := fmt.Sprintf("%-4s %s.%s", verdictLabel(rec.Verdict), rec.Class, rec.Method)
	if rec.Reason == "" {
		return line
	}
	line = fmt.Sprintf("%s [%s]", line, rec.Reason)
	if rec.RuleReason != "" {
		line = fmt.Sprintf("%s %s", line, rec.RuleReason)
	}
	if rec.Issue != "" {
		line = fmt.Sprintf("%s (issue %s)", line, rec.Issue)
	}
	return line
}

func verdictLabel(verdict string) string {
	if verdict == observability.VerdictSkip {
		return "SKIP"
	}
	return "RUN"
}
