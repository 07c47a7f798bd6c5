package cli

import (
	"strings"

	"github.com/spf13/cobra"
)

func (c *CLI) newResolveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resolve",
		Short: "Show the active driver tags for the configured browser",
		Long: `Resolve the configured browser and run-mode flags into the set of driver tags
that ignore rules are matched against.

Examples:
  admit resolve --browser firefox
  admit resolve --browser chrome --grid
  admit resolve --browser firefox --marionette=false`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runResolve()
		},
	}
}

// Resolution is the JSON output of the resolve command.
type Resolution struct {
	Browser       string   `json:"browser"`
	Remote        bool     `json:"remote"`
	Grid          bool     `json:"grid"`
	Marionette    *bool    `json:"marionette,omitempty"`
	ActiveDrivers []string `json:"active_drivers"`
}

func (c *CLI) runResolve() error {
	engine, err := c.newEngine()
	if err != nil {
		return err
	}

	res := Resolution{
		Browser:       engine.Browser().String(),
		Remote:        c.cfg.Browser.Remote,
		Grid:          c.cfg.Browser.Grid,
		Marionette:    c.cfg.Browser.Marionette,
		ActiveDrivers: tagNames(engine.ActiveDrivers()),
	}

	if c.jsonOutput {
		return c.outputJSON(res)
	}

	c.printf("Browser:        %s\n", res.Browser)
	active := "(none)"
	if len(res.ActiveDrivers) > 0 {
		active = strings.Join(res.ActiveDrivers, ", ")
	}
	c.printf("Active drivers: %s\n", active)
	return nil
}
