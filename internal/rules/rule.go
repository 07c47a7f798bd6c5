// Package rules holds the declarative test metadata that decides admission:
// driver-scoped ignore rules and legacy unconditional skip markers, attached to
// a test class or to a single test method.
//
// Both kinds are variants of one Rule type so that callers cannot confuse which
// rules take part in inversion. Only KindDriverIgnore rules do.
package rules

import (
	"fmt"

	"github.com/canonica-labs/admission/internal/drivers"
	"github.com/canonica-labs/admission/internal/errors"
)

// Kind distinguishes the rule variants.
type Kind int

const (
	// KindDriverIgnore excludes a test when its drivers match the active set.
	KindDriverIgnore Kind = iota + 1

	// KindSkip excludes a test unconditionally.
	KindSkip
)

func (k Kind) String() string {
	switch k {
	case KindDriverIgnore:
		return "ignore"
	case KindSkip:
		return "skip"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Scope is where a rule was declared.
type Scope string

const (
	ScopeClass  Scope = "class"
	ScopeMethod Scope = "method"
)

// Rule is a single piece of declarative exclusion metadata.
type Rule struct {
	Kind  Kind
	Scope Scope

	// Drivers is the target tag set. Only set for KindDriverIgnore.
	Drivers drivers.TagSet

	// Reason and Issue are informational.
	Reason string
	Issue  string
}

// Ignore builds a driver-scoped ignore rule. At least one tag is required.
func Ignore(scope Scope, reason string, tags ...drivers.Tag) (Rule, error) {
	if len(tags) == 0 {
		return Rule{}, errors.NewInvalidRule(string(scope), "rule names no driver tags")
	}
	for _, t := range tags {
		if !t.IsValid() {
			return Rule{}, errors.NewUnknownDriverTag(string(t), drivers.TagNames())
		}
	}
	return Rule{
		Kind:    KindDriverIgnore,
		Scope:   scope,
		Drivers: drivers.NewTagSet(tags...),
		Reason:  reason,
	}, nil
}

// MustIgnore is like Ignore but panics on error. For statically known rules.
func MustIgnore(scope Scope, reason string, tags ...drivers.Tag) Rule {
	r, err := Ignore(scope, reason, tags...)
	if err != nil {
		panic(err)
	}
	return r
}

// Skip builds a legacy unconditional skip marker.
func Skip(scope Scope, reason string) Rule {
	return Rule{Kind: KindSkip, Scope: scope, Reason: reason}
}

// Identity names one test for filtering purposes. Class is the simple class
// name, without package qualification.
type Identity struct {
	Class  string
	Method string
}

func (id Identity) String() string {
	return id.Class + "." + id.Method
}

// Test is one test method together with every rule that applies to it, from
// both its class and itself.
type Test struct {
	Identity
	Rules []Rule
}

// NewTest builds a Test from class-level and method-level rules.
func NewTest(class, method string, classRules, methodRules []Rule) Test {
	all := make([]Rule, 0, len(classRules)+len(methodRules))
	all = append(all, classRules...)
	all = append(all, methodRules...)
	return Test{
		Identity: Identity{Class: class, Method: method},
		Rules:    all,
	}
}
