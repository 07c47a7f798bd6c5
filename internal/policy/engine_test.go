package policy

import (
	stderrors "errors"
	"sync"
	"testing"

	"github.com/canonica-labs/admission/internal/config"
	"github.com/canonica-labs/admission/internal/drivers"
	"github.com/canonica-labs/admission/internal/errors"
	"github.com/canonica-labs/admission/internal/filters"
	"github.com/canonica-labs/admission/internal/resolver"
	"github.com/canonica-labs/admission/internal/rules"
)

func mustEngine(t *testing.T, browser drivers.Browser, flags resolver.Flags, cfg config.FilterConfig) *Engine {
	t.Helper()
	e, err := NewForBrowser(browser, flags, filters.New(cfg))
	if err != nil {
		t.Fatalf("NewForBrowser(%s): %v", browser, err)
	}
	return e
}

func classIgnore(tags ...drivers.Tag) []rules.Rule {
	return []rules.Rule{rules.MustIgnore(rules.ScopeClass, "class rule", tags...)}
}

func methodIgnore(tags ...drivers.Tag) []rules.Rule {
	return []rules.Rule{rules.MustIgnore(rules.ScopeMethod, "method rule", tags...)}
}

// TestShouldSkip_NoRulesRuns proves an undecorated test always runs.
func TestShouldSkip_NoRulesRuns(t *testing.T) {
	for _, b := range drivers.AllBrowsers() {
		e := mustEngine(t, b, resolver.Flags{}, config.FilterConfig{})
		test := rules.NewTest("LoginTest", "testLogin", nil, nil)

		if e.ShouldSkip(test) {
			t.Errorf("%s: test with no rules was skipped", b)
		}
	}
}

// TestShouldSkip_NoTagOverlap proves a chrome run executes a firefox-only test.
func TestShouldSkip_NoTagOverlap(t *testing.T) {
	e := mustEngine(t, drivers.BrowserChrome, resolver.Flags{}, config.FilterConfig{})
	test := rules.NewTest("LoginTest", "testLogin", classIgnore(drivers.TagFirefox), nil)

	if e.ShouldSkip(test) {
		t.Fatal("expected test to run: no tag overlap")
	}
}

// TestShouldSkip_ClassRuleAlone proves a class-level match is sufficient.
func TestShouldSkip_ClassRuleAlone(t *testing.T) {
	e := mustEngine(t, drivers.BrowserIE, resolver.Flags{}, config.FilterConfig{})
	test := rules.NewTest("LoginTest", "testLogin", classIgnore(drivers.TagIE), methodIgnore(drivers.TagChrome))

	d := e.Decide(test)
	if !d.Skip || d.Reason != ReasonDriverRule {
		t.Fatalf("expected driver_rule skip, got %+v", d)
	}
	if d.Rule == nil || d.Rule.Scope != rules.ScopeClass {
		t.Fatalf("expected class rule in decision, got %+v", d.Rule)
	}
}

// TestShouldSkip_BrowserNone proves a driver-agnostic run skips every test
// that carries any driver rule.
func TestShouldSkip_BrowserNone(t *testing.T) {
	e := mustEngine(t, drivers.BrowserNone, resolver.Flags{}, config.FilterConfig{})

	for _, tag := range drivers.AllTags() {
		test := rules.NewTest("LoginTest", "testLogin", nil, methodIgnore(tag))
		if !e.ShouldSkip(test) {
			t.Errorf("browser none: rule on %s did not skip", tag)
		}
	}
}

// TestShouldSkip_Opera proves that only ALL rules reach the legacy opera browser.
func TestShouldSkip_Opera(t *testing.T) {
	e := mustEngine(t, drivers.BrowserOpera, resolver.Flags{}, config.FilterConfig{})

	chromeOnly := rules.NewTest("A", "b", classIgnore(drivers.TagChrome), nil)
	if e.ShouldSkip(chromeOnly) {
		t.Fatal("opera: CHROME rule must not match")
	}
	all := rules.NewTest("A", "b", classIgnore(drivers.TagAll), nil)
	if !e.ShouldSkip(all) {
		t.Fatal("opera: ALL rule must match")
	}
}

// TestShouldSkip_GridRule proves mode tags participate in matching.
func TestShouldSkip_GridRule(t *testing.T) {
	test := rules.NewTest("A", "b", nil, methodIgnore(drivers.TagGrid))

	local := mustEngine(t, drivers.BrowserChrome, resolver.Flags{}, config.FilterConfig{})
	grid := mustEngine(t, drivers.BrowserChrome, resolver.Flags{Grid: true}, config.FilterConfig{})

	if local.ShouldSkip(test) {
		t.Fatal("GRID rule skipped a local run")
	}
	if !grid.ShouldSkip(test) {
		t.Fatal("GRID rule did not skip a grid run")
	}
}

// TestShouldSkip_OnlyRunWins proves only_run excludes other classes whatever
// the rules say.
func TestShouldSkip_OnlyRunWins(t *testing.T) {
	for _, invert := range []bool{false, true} {
		e := mustEngine(t, drivers.BrowserChrome, resolver.Flags{}, config.FilterConfig{
			OnlyRun:     "LoginTest",
			IgnoredOnly: invert,
		})
		for _, test := range []rules.Test{
			rules.NewTest("LogoutTest", "testLogout", nil, nil),
			rules.NewTest("LogoutTest", "testLogout", classIgnore(drivers.TagChrome), nil),
		} {
			if !e.ShouldSkip(test) {
				t.Errorf("invert=%v: %s not excluded by only_run", invert, test.Identity)
			}
		}
	}
}

// TestShouldSkip_Inversion proves ignored_only flips only the driver-rule verdict.
func TestShouldSkip_Inversion(t *testing.T) {
	e := mustEngine(t, drivers.BrowserChrome, resolver.Flags{}, config.FilterConfig{IgnoredOnly: true})

	ignored := rules.NewTest("LoginTest", "testLogin", classIgnore(drivers.TagChrome), nil)
	plain := rules.NewTest("LoginTest", "testLogout", nil, nil)

	if d := e.Decide(ignored); d.Skip {
		t.Fatalf("inverted: normally ignored test must run, got %+v", d)
	}
	if d := e.Decide(plain); !d.Skip || d.Reason != ReasonInverted {
		t.Fatalf("inverted: normally running test must skip as inverted, got %+v", d)
	}
}

// TestShouldSkip_FilterNeverInverted proves environment filters apply after
// inversion.
func TestShouldSkip_FilterNeverInverted(t *testing.T) {
	e := mustEngine(t, drivers.BrowserChrome, resolver.Flags{}, config.FilterConfig{
		IgnoredOnly:  true,
		IgnoreMethod: "testLogin",
	})
	test := rules.NewTest("LoginTest", "testLogin", classIgnore(drivers.TagChrome), nil)

	d := e.Decide(test)
	if !d.Skip || d.Reason != ReasonIgnoreMethod {
		t.Fatalf("expected ignore_method skip, got %+v", d)
	}
}

// TestShouldSkip_SkipMarkerNeverInverted proves the unconditional marker
// skips with and without inversion.
func TestShouldSkip_SkipMarkerNeverInverted(t *testing.T) {
	marker := []rules.Rule{rules.Skip(rules.ScopeMethod, "broken")}

	// Normal run: marker alone skips.
	normal := mustEngine(t, drivers.BrowserChrome, resolver.Flags{}, config.FilterConfig{})
	d := normal.Decide(rules.NewTest("A", "b", nil, marker))
	if !d.Skip || d.Reason != ReasonSkipMarker || d.Rule.Reason != "broken" {
		t.Fatalf("expected skip_marker skip, got %+v", d)
	}

	// Inverted run: a normally ignored test with a marker still skips.
	inverted := mustEngine(t, drivers.BrowserChrome, resolver.Flags{}, config.FilterConfig{IgnoredOnly: true})
	test := rules.NewTest("A", "b", classIgnore(drivers.TagChrome), marker)
	d = inverted.Decide(test)
	if !d.Skip || d.Reason != ReasonSkipMarker {
		t.Fatalf("inverted: expected skip_marker skip, got %+v", d)
	}
}

// TestNewForBrowser_FailsFast proves construction rejects bad browsers.
func TestNewForBrowser_FailsFast(t *testing.T) {
	_, err := NewForBrowser("netscape", resolver.Flags{}, nil)
	var cfgErr *errors.ErrConfiguration
	if !stderrors.As(err, &cfgErr) {
		t.Fatalf("expected ErrConfiguration, got %T: %v", err, err)
	}

	_, err = NewForBrowser("", resolver.Flags{}, nil)
	var missing *errors.ErrMissingInput
	if !stderrors.As(err, &missing) {
		t.Fatalf("expected ErrMissingInput, got %T: %v", err, err)
	}
}

// TestNew_CopiesActiveSet proves later mutation of the caller's set has no effect.
func TestNew_CopiesActiveSet(t *testing.T) {
	active := drivers.NewTagSet(drivers.TagChrome)
	e := New(drivers.BrowserChrome, active, nil)
	active.Add(drivers.TagIE)

	test := rules.NewTest("A", "b", classIgnore(drivers.TagIE), nil)
	if e.ShouldSkip(test) {
		t.Fatal("engine observed mutation of the active set")
	}
	if got := e.ActiveDrivers(); len(got) != 1 || got[0] != drivers.TagChrome {
		t.Fatalf("expected [CHROME], got %v", got)
	}
}

// TestDecide_Concurrent exercises concurrent evaluation; run with -race.
func TestDecide_Concurrent(t *testing.T) {
	e := mustEngine(t, drivers.BrowserFirefox, resolver.Flags{Grid: true}, config.FilterConfig{IgnoreClass: "SlowTest"})
	tests := []rules.Test{
		rules.NewTest("LoginTest", "a", classIgnore(drivers.TagMarionette), nil),
		rules.NewTest("LoginTest", "b", nil, nil),
		rules.NewTest("SlowTest", "c", nil, nil),
	}
	want := []bool{true, false, true}

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				for j, test := range tests {
					if got := e.ShouldSkip(test); got != want[j] {
						t.Errorf("%s: got %v, want %v", test.Identity, got, want[j])
						return
					}
				}
			}
		}()
	}
	wg.Wait()
}
