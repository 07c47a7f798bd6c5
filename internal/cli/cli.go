// Package cli provides the command-line interface for admit.
// The CLI resolves the configured browser, evaluates the test manifest against
// the admission policy and reports or audits the decisions.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/canonica-labs/admission/internal/config"
	"github.com/canonica-labs/admission/internal/drivers"
	"github.com/canonica-labs/admission/internal/errors"
	"github.com/canonica-labs/admission/internal/filters"
	"github.com/canonica-labs/admission/internal/manifest"
	"github.com/canonica-labs/admission/internal/observability"
	"github.com/canonica-labs/admission/internal/policy"
	"github.com/canonica-labs/admission/internal/resolver"
	"github.com/canonica-labs/admission/internal/storage"
)

// Exit codes. They match errors.ExitCode.
const (
	ExitSuccess       = 0
	ExitConfiguration = int(errors.CodeConfiguration)
	ExitStorage       = int(errors.CodeStorage)
	ExitInternal      = int(errors.CodeInternal)
)

// CLI holds the command-line interface state.
type CLI struct {
	rootCmd *cobra.Command
	cfg     *config.Config
	logger  *slog.Logger

	out    io.Writer
	errOut io.Writer

	// Global flags
	configPath string
	jsonOutput bool
	quiet      bool
	debug      bool
	browser    string
	remote     bool
	grid       bool
	marionette bool
	manifest   string
	auditDSN   string
}

// New creates a new CLI instance writing to stdout and stderr.
func New() *CLI {
	cli := &CLI{
		out:    os.Stdout,
		errOut: os.Stderr,
		logger: observability.DiscardLogger(),
	}
	cli.rootCmd = cli.newRootCmd()
	return cli
}

// SetOutput redirects command output and diagnostics.
func (c *CLI) SetOutput(out, errOut io.Writer) {
	c.out = out
	c.errOut = errOut
	c.rootCmd.SetOut(out)
	c.rootCmd.SetErr(errOut)
}

// SetArgs overrides os.Args[1:].
func (c *CLI) SetArgs(args []string) {
	c.rootCmd.SetArgs(args)
}

// Execute runs the CLI and returns the process exit code.
func (c *CLI) Execute() int {
	if err := c.rootCmd.Execute(); err != nil {
		c.errorf("Error: %v\n", err)
		return errors.ExitCode(err)
	}
	return ExitSuccess
}

func (c *CLI) newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admit",
		Short: "admit - browser test admission policy",
		Long: `admit decides which browser tests run for a given browser selection.

It provides:
  • Browser to driver tag resolution (local, remote and grid runs)
  • Driver-scoped ignore rules and legacy skip markers from a test manifest
  • Class and method filters, and the ignored-only inversion
  • An optional decision audit log in PostgreSQL or SQLite

Every decision is deterministic: the same configuration and manifest always
produce the same plan.`,
		Version:       GetVersionString(),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.initConfig(cmd)
		},
	}

	cmd.SetVersionTemplate("{{.Version}}\n")

	// Global flags
	cmd.PersistentFlags().StringVar(&c.configPath, "config", "", "config file (default: ./admit.yaml or ~/.admit/admit.yaml)")
	cmd.PersistentFlags().BoolVar(&c.jsonOutput, "json", false, "machine-readable JSON output")
	cmd.PersistentFlags().BoolVar(&c.quiet, "quiet", false, "suppress non-essential output")
	cmd.PersistentFlags().BoolVar(&c.debug, "debug", false, "verbose debug logs")
	cmd.PersistentFlags().StringVar(&c.browser, "browser", "", "browser to run against (overrides browser.name)")
	cmd.PersistentFlags().BoolVar(&c.remote, "remote", false, "tests drive a remote WebDriver")
	cmd.PersistentFlags().BoolVar(&c.grid, "grid", false, "tests run through a grid (implies --remote)")
	cmd.PersistentFlags().BoolVar(&c.marionette, "marionette", true, "use the Marionette Firefox backend")
	cmd.PersistentFlags().StringVar(&c.manifest, "manifest", "", "test manifest path (overrides manifest)")
	cmd.PersistentFlags().StringVar(&c.auditDSN, "audit-dsn", "", "decision audit database (postgres://, sqlite:, file:)")

	cmd.AddCommand(c.newDriversCmd())
	cmd.AddCommand(c.newResolveCmd())
	cmd.AddCommand(c.newPlanCmd())
	cmd.AddCommand(c.newCheckCmd())
	cmd.AddCommand(c.newAuditCmd())
	cmd.AddCommand(c.newDoctorCmd())
	cmd.AddCommand(c.newVersionCmd())

	return cmd
}

func (c *CLI) initConfig(cmd *cobra.Command) error {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return errors.NewInvalidConfig("cannot load configuration", err)
	}
	c.cfg = cfg

	// Override with flags
	flags := cmd.Flags()
	if flags.Changed("browser") {
		c.cfg.Browser.Name = c.browser
	}
	if flags.Changed("remote") {
		c.cfg.Browser.Remote = c.remote
	}
	if flags.Changed("grid") {
		c.cfg.Browser.Grid = c.grid
	}
	if flags.Changed("marionette") {
		marionette := c.marionette
		c.cfg.Browser.Marionette = &marionette
	}
	if c.manifest != "" {
		c.cfg.Manifest = c.manifest
	}
	if c.auditDSN != "" {
		c.cfg.Audit.DSN = c.auditDSN
	}

	level := c.cfg.Logging.Level
	if c.debug {
		level = "debug"
	}
	logger, err := observability.NewSlogger(c.errOut, level, c.cfg.Logging.Format)
	if err != nil {
		return errors.NewInvalidConfig("invalid logging configuration", err)
	}
	c.logger = logger

	return nil
}

// resolverFlags returns the run-mode flags of the loaded configuration.
func (c *CLI) resolverFlags() resolver.Flags {
	return resolver.Flags{
		Remote:     c.cfg.Browser.Remote,
		Grid:       c.cfg.Browser.Grid,
		Marionette: c.cfg.Browser.Marionette,
	}
}

// newEngine builds the policy engine for the configured browser and filters.
// Configuration errors abort the command.
func (c *CLI) newEngine() (*policy.Engine, error) {
	browser, err := drivers.ParseBrowser(c.cfg.Browser.Name)
	if err != nil {
		return nil, err
	}
	engine, err := policy.NewForBrowser(browser, c.resolverFlags(), filters.New(c.cfg.Filter))
	if err != nil {
		return nil, err
	}
	c.logger.Debug("policy engine ready",
		"browser", engine.Browser().String(),
		"active_drivers", tagNames(engine.ActiveDrivers()),
	)
	return engine, nil
}

// loadManifest loads the configured test manifest.
func (c *CLI) loadManifest() (*manifest.Manifest, error) {
	if c.cfg.Manifest == "" {
		return nil, errors.NewInvalidConfig("no test manifest configured; set manifest, ADMIT_MANIFEST or --manifest", nil)
	}
	m, err := manifest.Load(c.cfg.Manifest)
	if err != nil {
		return nil, err
	}
	c.logger.Debug("manifest loaded", "path", m.Path, "tests", m.Len())
	return m, nil
}

// openAuditStore opens the configured audit database. It returns nil when no
// audit DSN is configured.
func (c *CLI) openAuditStore(ctx context.Context) (*storage.Store, error) {
	if c.cfg.Audit.DSN == "" {
		return nil, nil
	}
	store, err := storage.Open(ctx, c.cfg.Audit.DSN)
	if err != nil {
		return nil, err
	}
	c.logger.Debug("audit store open", "driver", store.Driver())
	return store, nil
}

// Helper functions for output

func (c *CLI) printf(format string, args ...interface{}) {
	if !c.quiet {
		fmt.Fprintf(c.out, format, args...)
	}
}

func (c *CLI) println(args ...interface{}) {
	if !c.quiet {
		fmt.Fprintln(c.out, args...)
	}
}

func (c *CLI) errorf(format string, args ...interface{}) {
	fmt.Fprintf(c.errOut, format, args...)
}

func (c *CLI) debugf(format string, args ...interface{}) {
	if c.debug {
		fmt.Fprintf(c.errOut, "[DEBUG] "+format, args...)
	}
}
