package drivers

import (
	"strings"

	"github.com/canonica-labs/admission/internal/errors"
)

// Browser is the logical browser a test run is configured for.
type Browser string

const (
	BrowserChrome     Browser = "chrome"
	BrowserEdge       Browser = "edge"
	BrowserFirefox    Browser = "firefox"
	BrowserHTMLUnit   Browser = "htmlunit"
	BrowserIE         Browser = "ie"
	BrowserNone       Browser = "none"
	BrowserOpera      Browser = "opera"      // legacy Presto-based Opera
	BrowserOperaBlink Browser = "operablink" // Chromium-based Opera
	BrowserSafari     Browser = "safari"
)

// browserAliases maps alternate spellings (already lower-cased) to a browser.
var browserAliases = map[string]Browser{
	"ff": BrowserFirefox,
}

// AllBrowsers returns every known logical browser.
func AllBrowsers() []Browser {
	return []Browser{
		BrowserChrome,
		BrowserEdge,
		BrowserFirefox,
		BrowserHTMLUnit,
		BrowserIE,
		BrowserNone,
		BrowserOpera,
		BrowserOperaBlink,
		BrowserSafari,
	}
}

// IsValid checks if the browser is known.
func (b Browser) IsValid() bool {
	for _, valid := range AllBrowsers() {
		if b == valid {
			return true
		}
	}
	return false
}

// String returns the string representation of the browser.
func (b Browser) String() string {
	return string(b)
}

// ParseBrowser parses a browser selector. Matching is case-insensitive.
// An empty selector is a missing required input, not a default.
func ParseBrowser(s string) (Browser, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	if name == "" {
		return "", errors.NewMissingBrowser()
	}
	if alias, ok := browserAliases[name]; ok {
		return alias, nil
	}
	b := Browser(name)
	if !b.IsValid() {
		return "", errors.NewUnknownBrowser(s)
	}
	return b, nil
}
