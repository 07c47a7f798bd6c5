package cli

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/canonica-labs/admission/internal/drivers"
)

func (c *CLI) newDriversCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "drivers",
		Short: "List driver tags and browsers",
		Long: `List the closed catalog of driver tags that ignore rules may name, and the
browsers that can be selected with --browser.

ALL matches every driver. REMOTE and GRID are mode tags added on top of the
browser tag for remote and grid runs.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runDrivers()
		},
	}
}

// DriverCatalog is the JSON output of the drivers command.
type DriverCatalog struct {
	Tags     []string `json:"tags"`
	Browsers []string `json:"browsers"`
}

func (c *CLI) runDrivers() error {
	catalog := DriverCatalog{
		Tags:     tagNames(drivers.AllTags()),
		Browsers: tagNames(drivers.AllBrowsers()),
	}

	if c.jsonOutput {
		return c.outputJSON(catalog)
	}

	c.println("Driver tags:")
	for _, t := range catalog.Tags {
		c.printf("  %s\n", t)
	}
	c.println("")
	c.printf("Browsers: %s\n", strings.Join(catalog.Browsers, ", "))
	return nil
}
