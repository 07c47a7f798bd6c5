// Package manifest loads the test manifest: the YAML description of test
// classes and methods together with their declarative ignore rules and skip
// markers.
//
// The manifest is validated as a whole when it is loaded. Unknown fields,
// unknown driver tags, rules without drivers and duplicate names all fail the
// load, so a bad manifest aborts the run before any test executes.
//
// Format:
//
//	classes:
//	  - name: LoginTest
//	    skip: "flaky on CI"
//	    ignore:
//	      - drivers: [FIREFOX, IE]
//	        reason: "alert handling"
//	        issue: "1234"
//	    methods:
//	      - name: testLogin
//	        ignore:
//	          - drivers: [CHROME]
//	      - name: testLogout
package manifest

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/canonica-labs/admission/internal/drivers"
	"github.com/canonica-labs/admission/internal/errors"
	"github.com/canonica-labs/admission/internal/rules"
)

// Document is the on-disk shape of a manifest.
type Document struct {
	Classes []ClassConfig `yaml:"classes"`
}

// ClassConfig describes one test class.
type ClassConfig struct {
	Name    string         `yaml:"name"`
	Skip    SkipMarker     `yaml:"skip,omitempty"`
	Ignore  []IgnoreConfig `yaml:"ignore,omitempty"`
	Methods []MethodConfig `yaml:"methods"`
}

// MethodConfig describes one test method.
type MethodConfig struct {
	Name   string         `yaml:"name"`
	Skip   SkipMarker     `yaml:"skip,omitempty"`
	Ignore []IgnoreConfig `yaml:"ignore,omitempty"`
}

// SkipMarker is a legacy unconditional skip. It accepts a boolean
// ("skip: true") or a reason string ("skip: flaky on CI").
type SkipMarker struct {
	Set    bool
	Reason string
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (s *SkipMarker) UnmarshalYAML(n *yaml.Node) error {
	switch n.ShortTag() {
	case "!!null":
		*s = SkipMarker{}
		return nil
	case "!!bool":
		var set bool
		if err := n.Decode(&set); err != nil {
			return err
		}
		*s = SkipMarker{Set: set}
		return nil
	}
	var reason string
	if err := n.Decode(&reason); err != nil {
		return fmt.Errorf("skip must be a boolean or a reason string: %w", err)
	}
	*s = SkipMarker{Set: true, Reason: reason}
	return nil
}

// IgnoreConfig is one driver-scoped ignore rule.
type IgnoreConfig struct {
	Drivers []string `yaml:"drivers"`
	Reason  string   `yaml:"reason,omitempty"`
	Issue   string   `yaml:"issue,omitempty"`
}

// Class is a validated test class.
type Class struct {
	Name    string
	Rules   []rules.Rule
	Methods []Method
}

// Method is a validated test method.
type Method struct {
	Name  string
	Rules []rules.Rule
}

// Manifest is a validated manifest.
type Manifest struct {
	Path    string
	Classes []Class

	index map[rules.Identity]int
	tests []rules.Test
}

// Load reads and validates the manifest at path.
func Load(path string) (*Manifest, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.NewInvalidManifest(path, "cannot read file", err)
	}
	defer f.Close()
	return Parse(path, f)
}

// Parse reads and validates a manifest from r. path is used in errors only.
func Parse(path string, r io.Reader) (*Manifest, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.NewInvalidManifest(path, "cannot read manifest", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var doc Document
	if err := dec.Decode(&doc); err != nil && err != io.EOF {
		return nil, errors.NewInvalidManifest(path, "failed to parse manifest YAML", err)
	}

	return Build(path, doc)
}

// Build validates doc and converts it into a Manifest.
func Build(path string, doc Document) (*Manifest, error) {
	m := &Manifest{
		Path:  path,
		index: make(map[rules.Identity]int),
	}

	seenClasses := make(map[string]bool)
	for i, cc := range doc.Classes {
		if cc.Name == "" {
			return nil, errors.NewInvalidManifest(path, fmt.Sprintf("class #%d has no name", i+1), nil)
		}
		if seenClasses[cc.Name] {
			return nil, errors.NewInvalidManifest(path, fmt.Sprintf("duplicate class: %s", cc.Name), nil)
		}
		seenClasses[cc.Name] = true

		classRules, err := buildRules(rules.ScopeClass, cc.Name, cc.Skip, cc.Ignore)
		if err != nil {
			return nil, err
		}
		class := Class{Name: cc.Name, Rules: classRules}

		seenMethods := make(map[string]bool)
		for j, mc := range cc.Methods {
			if mc.Name == "" {
				return nil, errors.NewInvalidManifest(path, fmt.Sprintf("method #%d of %s has no name", j+1, cc.Name), nil)
			}
			if seenMethods[mc.Name] {
				return nil, errors.NewInvalidManifest(path, fmt.Sprintf("duplicate method: %s.%s", cc.Name, mc.Name), nil)
			}
			seenMethods[mc.Name] = true

			target := cc.Name + "." + mc.Name
			methodRules, err := buildRules(rules.ScopeMethod, target, mc.Skip, mc.Ignore)
			if err != nil {
				return nil, err
			}
			class.Methods = append(class.Methods, Method{Name: mc.Name, Rules: methodRules})

			t := rules.NewTest(cc.Name, mc.Name, classRules, methodRules)
			m.index[t.Identity] = len(m.tests)
			m.tests = append(m.tests, t)
		}

		m.Classes = append(m.Classes, class)
	}

	return m, nil
}

func buildRules(scope rules.Scope, target string, skip SkipMarker, ignores []IgnoreConfig) ([]rules.Rule, error) {
	var out []rules.Rule
	for _, ic := range ignores {
		if len(ic.Drivers) == 0 {
			return nil, errors.NewInvalidRule(target, "rule names no driver tags")
		}
		tags, err := drivers.ParseTags(ic.Drivers)
		if err != nil {
			return nil, err
		}
		r, err := rules.Ignore(scope, ic.Reason, tags.Slice()...)
		if err != nil {
			return nil, err
		}
		r.Issue = ic.Issue
		out = append(out, r)
	}
	if skip.Set {
		out = append(out, rules.Skip(scope, skip.Reason))
	}
	return out, nil
}

// Tests returns one Test per method, in manifest order.
func (m *Manifest) Tests() []rules.Test {
	out := make([]rules.Test, len(m.tests))
	copy(out, m.tests)
	return out
}

// Find returns the test with the given class and method names.
func (m *Manifest) Find(class, method string) (rules.Test, bool) {
	i, ok := m.index[rules.Identity{Class: class, Method: method}]
	if !ok {
		return rules.Test{}, false
	}
	return m.tests[i], true
}

// Len returns the number of tests in the manifest.
func (m *Manifest) Len() int {
	return len(m.tests)
}
