// Package resolver maps a logical browser selection and run-mode flags onto the
// set of driver tags that ignore rules are matched against.
//
// Resolution is deterministic and rule-based; it happens once per run.
package resolver

import (
	"github.com/canonica-labs/admission/internal/drivers"
	"github.com/canonica-labs/admission/internal/errors"
)

// Flags are the run-mode inputs that accompany a browser selection.
type Flags struct {
	// Remote is set when tests drive a remote WebDriver endpoint.
	Remote bool

	// Grid is set when tests go through a grid. Grid implies Remote.
	Grid bool

	// Marionette selects the Firefox backend. Nil means unset, which selects
	// the Marionette backend just like true does.
	Marionette *bool
}

// Resolve returns the active driver tags for browser under flags.
//
// The returned set is freshly allocated. It is empty only for the legacy
// opera browser, which predates tag-based exclusion.
func Resolve(browser drivers.Browser, flags Flags) (drivers.TagSet, error) {
	if browser == "" {
		return nil, errors.NewMissingBrowser()
	}

	active := drivers.NewTagSet()

	if flags.Remote || flags.Grid {
		active.Add(drivers.TagRemote)
	}
	if flags.Grid {
		active.Add(drivers.TagGrid)
	}

	switch browser {
	case drivers.BrowserChrome:
		active.Add(drivers.TagChrome)

	case drivers.BrowserEdge:
		active.Add(drivers.TagEdge)

	case drivers.BrowserFirefox:
		if flags.Marionette == nil || *flags.Marionette {
			active.Add(drivers.TagMarionette)
		} else {
			active.Add(drivers.TagFirefox)
		}

	case drivers.BrowserHTMLUnit:
		active.Add(drivers.TagHTMLUnit)

	case drivers.BrowserIE:
		active.Add(drivers.TagIE)

	case drivers.BrowserNone:
		// Driver-agnostic run: every driver-scoped rule applies.
		active.Add(drivers.TagAll)

	case drivers.BrowserOpera:
		// No tag. Only rules targeting ALL can match.

	case drivers.BrowserOperaBlink:
		// Chromium-based Opera shares Chrome's ignore rules.
		active.Add(drivers.TagChrome)

	case drivers.BrowserSafari:
		active.Add(drivers.TagSafari)

	default:
		return nil, errors.NewUnknownBrowser(string(browser))
	}

	return active, nil
}

// ResolveName parses name and resolves it. It is the entry point used when the
// browser comes from configuration.
func ResolveName(name string, flags Flags) (drivers.Browser, drivers.TagSet, error) {
	browser, err := drivers.ParseBrowser(name)
	if err != nil {
		return "", nil, err
	}
	active, err := Resolve(browser, flags)
	if err != nil {
		return "", nil, err
	}
	return browser, active, nil
}
