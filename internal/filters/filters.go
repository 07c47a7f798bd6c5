// Package filters implements the run-scoped environment filters: class and
// method allow-lists and deny-lists supplied out of band from the declarative
// rules, plus the switch that inverts the declarative verdict.
//
// Filters are parsed once from configuration and never change afterwards.
// Filter evaluation short-circuits on the first match, in this order:
//
//  1. only_run is non-empty and the class is not listed
//  2. method is non-empty and the method is not listed
//  3. the class is listed in ignore_class
//  4. the method is listed in ignore_method
package filters

import (
	"sort"
	"strings"

	"github.com/canonica-labs/admission/internal/config"
	"github.com/canonica-labs/admission/internal/rules"
)

// Reason identifies which filter excluded a test.
type Reason string

const (
	ReasonOnlyRun      Reason = "only_run"
	ReasonMethod       Reason = "method_filter"
	ReasonIgnoreClass  Reason = "ignore_class"
	ReasonIgnoreMethod Reason = "ignore_method"
)

type stringSet map[string]struct{}

func (s stringSet) has(v string) bool {
	_, ok := s[v]
	return ok
}

func (s stringSet) slice() []string {
	out := make([]string, 0, len(s))
	for v := range s {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// Filters is the immutable set of environment filters for one run.
type Filters struct {
	only          stringSet
	methods       stringSet
	ignoreClasses stringSet
	ignoreMethods stringSet
	invert        bool
}

// New parses the filter configuration. Missing keys yield empty sets, which
// never exclude anything.
func New(cfg config.FilterConfig) *Filters {
	return &Filters{
		only:          parseList(cfg.OnlyRun),
		methods:       parseList(cfg.Method),
		ignoreClasses: parseList(cfg.IgnoreClass),
		ignoreMethods: parseList(cfg.IgnoreMethod),
		invert:        cfg.IgnoredOnly,
	}
}

// Empty returns filters that exclude nothing and do not invert.
func Empty() *Filters {
	return New(config.FilterConfig{})
}

// InvertAnnotationResult reports whether the declarative verdict is flipped,
// so that only normally ignored tests run.
func (f *Filters) InvertAnnotationResult() bool {
	return f.invert
}

// Excludes reports whether the filters exclude the test.
func (f *Filters) Excludes(id rules.Identity) bool {
	_, excluded := f.Evaluate(id)
	return excluded
}

// Evaluate returns the first filter that excludes the test, if any.
func (f *Filters) Evaluate(id rules.Identity) (Reason, bool) {
	if len(f.only) > 0 && !f.only.has(id.Class) {
		return ReasonOnlyRun, true
	}
	if len(f.methods) > 0 && !f.methods.has(id.Method) {
		return ReasonMethod, true
	}
	if f.ignoreClasses.has(id.Class) {
		return ReasonIgnoreClass, true
	}
	if f.ignoreMethods.has(id.Method) {
		return ReasonIgnoreMethod, true
	}
	return "", false
}

// Summary describes the active filters, for diagnostics.
type Summary struct {
	OnlyRun      []string `json:"only_run,omitempty"`
	Methods      []string `json:"method,omitempty"`
	IgnoreClass  []string `json:"ignore_class,omitempty"`
	IgnoreMethod []string `json:"ignore_method,omitempty"`
	IgnoredOnly  bool     `json:"ignored_only"`
}

// Summary returns the parsed filter values.
func (f *Filters) Summary() Summary {
	return Summary{
		OnlyRun:      f.only.slice(),
		Methods:      f.methods.slice(),
		IgnoreClass:  f.ignoreClasses.slice(),
		IgnoreMethod: f.ignoreMethods.slice(),
		IgnoredOnly:  f.invert,
	}
}

// parseList splits a comma-separated list, trimming blanks and dropping empty
// entries. An empty input yields an empty set.
func parseList(raw string) stringSet {
	set := make(stringSet)
	for _, part := range strings.Split(raw, ",") {
		if v := strings.TrimSpace(part); v != "" {
			set[v] = struct{}{}
		}
	}
	return set
}
