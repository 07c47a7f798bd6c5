package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/canonica-labs/admission/internal/filters"
	"github.com/canonica-labs/admission/internal/storage"
)

func (c *CLI) newDoctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Run configuration diagnostics",
		Long: `Run configuration diagnostics.

Checks:
  - browser selection and driver resolution
  - environment filters
  - test manifest
  - decision audit database`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runDoctor()
		},
	}
}

func (c *CLI) runDoctor() error {
	checks := []DiagnosticCheck{
		c.checkBrowser(),
		c.checkFilters(),
		c.checkManifest(),
		c.checkAudit(),
	}

	allPassed := true
	for _, check := range checks {
		if !check.Passed {
			allPassed = false
		}
	}

	if c.jsonOutput {
		return c.outputJSON(map[string]interface{}{
			"checks":     checks,
			"all_passed": allPassed,
		})
	}

	c.println("Admission Diagnostics")
	c.println("=====================")
	c.println("")
	for _, check := range checks {
		c.printCheck(check)
	}
	c.println("")

	if allPassed {
		c.println("✓ All checks passed")
	} else {
		c.println("✗ Some checks failed - see above for details")
	}

	return nil
}

// DiagnosticCheck represents a single diagnostic check result.
type DiagnosticCheck struct {
	Name    string `json:"name"`
	Passed  bool   `json:"passed"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

func (c *CLI) printCheck(check DiagnosticCheck) {
	status := "✗"
	if check.Passed {
		status = "✓"
	}
	c.printf("%s %s: %s\n", status, check.Name, check.Message)
	if check.Details != "" && !check.Passed {
		c.printf("  → %s\n", check.Details)
	}
}

func (c *CLI) checkBrowser() DiagnosticCheck {
	check := DiagnosticCheck{Name: "Browser"}

	engine, err := c.newEngine()
	if err != nil {
		check.Message = "Cannot resolve driver tags"
		check.Details = firstLine(err)
		return check
	}

	active := tagNames(engine.ActiveDrivers())
	check.Passed = true
	if len(active) == 0 {
		check.Message = fmt.Sprintf("%s resolves to no driver tags; only ALL rules apply", engine.Browser())
		return check
	}
	check.Message = fmt.Sprintf("%s → %s", engine.Browser(), strings.Join(active, ", "))
	return check
}

func (c *CLI) checkFilters() DiagnosticCheck {
	check := DiagnosticCheck{Name: "Filters", Passed: true}

	s := filters.New(c.cfg.Filter).Summary()
	var parts []string
	if len(s.OnlyRun) > 0 {
		parts = append(parts, "only_run="+strings.Join(s.OnlyRun, ","))
	}
	if len(s.Methods) > 0 {
		parts = append(parts, "method="+strings.Join(s.Methods, ","))
	}
	if len(s.IgnoreClass) > 0 {
		parts = append(parts, "ignore_class="+strings.Join(s.IgnoreClass, ","))
	}
	if len(s.IgnoreMethod) > 0 {
		parts = append(parts, "ignore_method="+strings.Join(s.IgnoreMethod, ","))
	}
	if s.IgnoredOnly {
		parts = append(parts, "ignored_only")
	}

	if len(parts) == 0 {
		check.Message = "No filters active"
		return check
	}
	check.Message = strings.Join(parts, " ")
	return check
}

func (c *CLI) checkManifest() DiagnosticCheck {
	check := DiagnosticCheck{Name: "Manifest"}

	if c.cfg.Manifest == "" {
		check.Message = "No manifest configured"
		check.Details = "Set manifest in admit.yaml, ADMIT_MANIFEST, or use --manifest"
		return check
	}

	m, err := c.loadManifest()
	if err != nil {
		check.Message = fmt.Sprintf("Cannot load %s", c.cfg.Manifest)
		check.Details = firstLine(err)
		return check
	}

	check.Passed = true
	check.Message = fmt.Sprintf("%d classes, %d tests in %s", len(m.Classes), m.Len(), m.Path)
	return check
}

func (c *CLI) checkAudit() DiagnosticCheck {
	check := DiagnosticCheck{Name: "Audit Store"}

	if c.cfg.Audit.DSN == "" {
		check.Passed = true
		check.Message = "Not configured (decisions are not persisted)"
		return check
	}

	driver, _, err := storage.ParseDSN(c.cfg.Audit.DSN)
	if err != nil {
		check.Message = "Invalid DSN"
		check.Details = firstLine(err)
		return check
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	store, err := c.openAuditStore(ctx)
	if err != nil {
		check.Message = fmt.Sprintf("Cannot open %s store", driver)
		check.Details = firstLine(err)
		return check
	}
	defer store.Close()

	versions, err := storage.NewMigrationRunner(store.DB()).Applied(ctx)
	if err != nil {
		check.Message = "Cannot read schema version"
		check.Details = err.Error()
		return check
	}

	check.Passed = true
	check.Message = fmt.Sprintf("%s store reachable, %d migrations applied", driver, len(versions))
	return check
}

// firstLine returns the headline of a multi-line error.
func firstLine(err error) string {
	msg, _, _ := strings.Cut(err.Error(), "\n")
	return msg
}
