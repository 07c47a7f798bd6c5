package cli

import (
	"github.com/spf13/cobra"

	"github.com/canonica-labs/admission/internal/rules"
)

func (c *CLI) newCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check <Class> <method>",
		Short: "Decide admission for a single test",
		Long: `Decide whether a single test runs for the configured browser.

The test's rules come from the manifest when one is configured. A test that is
not in the manifest has no rules; only the filters apply to it.

Examples:
  admit check LoginTest testLogin --browser firefox
  admit check LoginTest testLogin --browser ie --json`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runCheck(args[0], args[1])
		},
	}
}

func (c *CLI) runCheck(class, method string) error {
	engine, err := c.newEngine()
	if err != nil {
		return err
	}

	test := rules.NewTest(class, method, nil, nil)
	if c.cfg.Manifest != "" {
		m, err := c.loadManifest()
		if err != nil {
			return err
		}
		if found, ok := m.Find(class, method); ok {
			test = found
		} else {
			c.debugf("%s is not in %s; evaluating without rules\n", test.Identity, m.Path)
		}
	}

	rec := newDecisionRecord(test, engine.Decide(test))

	if c.jsonOutput {
		return c.outputJSON(rec)
	}

	c.println(formatDecision(rec))
	return nil
}
