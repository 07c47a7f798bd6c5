// Package policy provides the test admission decision: given a test and its
// declarative rules, should the harness run it for the current browser?
//
// The decision is rule-based and deterministic. The evaluation order is fixed:
//
//  1. driver-scoped ignore rules (class and method) against the active tags
//  2. inversion of step 1 when ignored_only is set
//  3. legacy unconditional skip markers, never inverted
//  4. environment filters, never inverted
//
// An Engine is bound to one resolved browser. Build a new one when the browser
// selection changes.
package policy

import (
	"github.com/canonica-labs/admission/internal/drivers"
	"github.com/canonica-labs/admission/internal/filters"
	"github.com/canonica-labs/admission/internal/resolver"
	"github.com/canonica-labs/admission/internal/rules"
)

// Reason explains a decision. It is empty when the test runs.
type Reason string

const (
	ReasonDriverRule   Reason = "driver_rule"
	ReasonInverted     Reason = "inverted"
	ReasonSkipMarker   Reason = "skip_marker"
	ReasonOnlyRun      Reason = Reason(filters.ReasonOnlyRun)
	ReasonMethod       Reason = Reason(filters.ReasonMethod)
	ReasonIgnoreClass  Reason = Reason(filters.ReasonIgnoreClass)
	ReasonIgnoreMethod Reason = Reason(filters.ReasonIgnoreMethod)
)

// Decision is the admission verdict for one test.
type Decision struct {
	// Skip is true when the harness must not execute the test.
	Skip bool

	// Reason identifies the step that produced a skip.
	Reason Reason

	// Rule is the rule behind a driver_rule or skip_marker reason.
	Rule *rules.Rule
}

// Engine decides admission for one run. It is safe for concurrent use once
// constructed; it holds no mutable state.
type Engine struct {
	browser drivers.Browser
	active  drivers.TagSet
	filters *filters.Filters
}

// New creates an engine for an already resolved active tag set. The set is
// copied. Nil filters behave like filters.Empty().
func New(browser drivers.Browser, active drivers.TagSet, f *filters.Filters) *Engine {
	if f == nil {
		f = filters.Empty()
	}
	return &Engine{
		browser: browser,
		active:  active.Clone(),
		filters: f,
	}
}

// NewForBrowser resolves browser under flags and creates an engine for it.
// Resolution errors are returned unchanged and are fatal for the run.
func NewForBrowser(browser drivers.Browser, flags resolver.Flags, f *filters.Filters) (*Engine, error) {
	active, err := resolver.Resolve(browser, flags)
	if err != nil {
		return nil, err
	}
	return New(browser, active, f), nil
}

// Browser returns the browser this engine was built for.
func (e *Engine) Browser() drivers.Browser {
	return e.browser
}

// ActiveDrivers returns the active tags, sorted.
func (e *Engine) ActiveDrivers() []drivers.Tag {
	return e.active.Slice()
}

// ShouldSkip reports whether the harness must not execute t.
func (e *Engine) ShouldSkip(t rules.Test) bool {
	return e.Decide(t).Skip
}

// Decide evaluates t and explains the verdict.
func (e *Engine) Decide(t rules.Test) Decision {
	matched, ignored := rules.MatchDriverRules(t.Rules, e.active)

	if e.filters.InvertAnnotationResult() {
		ignored = !ignored
		if ignored {
			// Not ignored by any rule, so skipped under inversion.
			return Decision{Skip: true, Reason: ReasonInverted}
		}
	} else if ignored {
		return Decision{Skip: true, Reason: ReasonDriverRule, Rule: &matched}
	}

	if marker, ok := rules.MarkedSkip(t.Rules); ok {
		return Decision{Skip: true, Reason: ReasonSkipMarker, Rule: &marker}
	}

	if reason, excluded := e.filters.Evaluate(t.Identity); excluded {
		return Decision{Skip: true, Reason: Reason(reason)}
	}

	return Decision{}
}
