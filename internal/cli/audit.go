package cli

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/canonica-labs/admission/internal/errors"
	"github.com/canonica-labs/admission/internal/observability"
)

func (c *CLI) newAuditCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Audit and reporting commands",
		Long:  `Commands for the persisted decision audit log.`,
	}

	cmd.AddCommand(c.newAuditSummaryCmd())

	return cmd
}

func (c *CLI) newAuditSummaryCmd() *cobra.Command {
	var runID string

	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Show audit summary",
		Long: `Display aggregated decision statistics from the audit database:
  - tests run vs skipped
  - top skip reasons
  - top skipped classes

Use --run to restrict the summary to a single plan.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runAuditSummary(runID)
		},
	}

	cmd.Flags().StringVar(&runID, "run", "", "only count decisions of this run id")

	return cmd
}

func (c *CLI) runAuditSummary(runID string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if c.cfg.Audit.DSN == "" {
		return errors.NewInvalidConfig("no audit database configured; set audit.dsn, ADMIT_AUDIT_DSN or --audit-dsn", nil)
	}
	store, err := c.openAuditStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	logger, err := observability.NewPersistentLogger(store.DB())
	if err != nil {
		return err
	}
	summary, err := logger.Summary(ctx, runID)
	if err != nil {
		return errors.NewAuditUnavailable(c.cfg.Audit.DSN, err)
	}

	if c.jsonOutput {
		return c.outputJSON(summary)
	}

	c.println("Decision Summary:")
	c.printf("  Run:     %d\n", summary.RunCount)
	c.printf("  Skipped: %d\n", summary.SkipCount)

	if len(summary.TopSkipReasons) > 0 {
		c.println("\nTop Skip Reasons:")
		for _, r := range summary.TopSkipReasons {
			c.printf("  - %s: %d\n", r.Reason, r.Count)
		}
	}

	if len(summary.TopSkippedClasses) > 0 {
		c.println("\nTop Skipped Classes:")
		for _, s := range summary.TopSkippedClasses {
			c.printf("  - %s: %d\n", s.Class, s.Count)
		}
	}

	return nil
}
