// Package drivers defines the closed catalog of driver tags and logical browsers.
// Driver tags label a browser backend or an execution mode (remote, grid) and are
// what declarative ignore rules are written against.
//
// A run resolves its browser selection into a set of active tags once; rules are
// then matched against that set.
package drivers

import (
	"sort"
	"strings"

	"github.com/canonica-labs/admission/internal/errors"
)

// Tag identifies a browser/driver backend or an execution mode.
type Tag string

const (
	// TagAll is the wildcard tag. It matches every other tag.
	TagAll Tag = "ALL"

	TagChrome     Tag = "CHROME"
	TagEdge       Tag = "EDGE"
	TagFirefox    Tag = "FIREFOX"
	TagMarionette Tag = "MARIONETTE"
	TagHTMLUnit   Tag = "HTMLUNIT"
	TagIE         Tag = "IE"
	TagSafari     Tag = "SAFARI"

	// TagRemote is active whenever the run talks to a remote WebDriver endpoint.
	TagRemote Tag = "REMOTE"

	// TagGrid is active when the run goes through a grid. Grid runs are also remote.
	TagGrid Tag = "GRID"
)

// AllTags returns every tag in the catalog, wildcard included.
func AllTags() []Tag {
	return []Tag{
		TagAll,
		TagChrome,
		TagEdge,
		TagFirefox,
		TagMarionette,
		TagHTMLUnit,
		TagIE,
		TagSafari,
		TagRemote,
		TagGrid,
	}
}

// IsValid checks if the tag is a member of the catalog.
func (t Tag) IsValid() bool {
	for _, valid := range AllTags() {
		if t == valid {
			return true
		}
	}
	return false
}

// String returns the string representation of the tag.
func (t Tag) String() string {
	return string(t)
}

// ParseTag parses a tag name. The lookup is case-sensitive: "chrome" is not CHROME.
// Surrounding whitespace is ignored.
func ParseTag(s string) (Tag, error) {
	t := Tag(strings.TrimSpace(s))
	if !t.IsValid() {
		return "", errors.NewUnknownDriverTag(s, TagNames())
	}
	return t, nil
}

// ParseTags parses every name in names, failing on the first unknown one.
func ParseTags(names []string) (TagSet, error) {
	set := make(TagSet, len(names))
	for _, name := range names {
		t, err := ParseTag(name)
		if err != nil {
			return nil, err
		}
		set.Add(t)
	}
	return set, nil
}

// TagNames returns the catalog tag names in catalog order.
func TagNames() []string {
	tags := AllTags()
	names := make([]string, len(tags))
	for i, t := range tags {
		names[i] = string(t)
	}
	return names
}

// TagSet is a set of tags for efficient lookup.
// A TagSet handed to a policy engine must not be mutated afterwards.
type TagSet map[Tag]struct{}

// NewTagSet creates a new TagSet from the given tags.
func NewTagSet(tags ...Tag) TagSet {
	set := make(TagSet, len(tags))
	for _, t := range tags {
		set[t] = struct{}{}
	}
	return set
}

// Has checks if the set contains the given tag.
func (ts TagSet) Has(t Tag) bool {
	_, ok := ts[t]
	return ok
}

// Add adds a tag to the set.
func (ts TagSet) Add(t Tag) {
	ts[t] = struct{}{}
}

// Len returns the number of tags in the set.
func (ts TagSet) Len() int {
	return len(ts)
}

// Clone returns an independent copy of the set.
func (ts TagSet) Clone() TagSet {
	out := make(TagSet, len(ts))
	for t := range ts {
		out[t] = struct{}{}
	}
	return out
}

// Slice returns the tags sorted by name.
func (ts TagSet) Slice() []Tag {
	result := make([]Tag, 0, len(ts))
	for t := range ts {
		result = append(result, t)
	}
	sort.Slice(result, func(i, j int) bool { return result[i] < result[j] })
	return result
}

// Strings returns the sorted tag names.
func (ts TagSet) Strings() []string {
	tags := ts.Slice()
	out := make([]string, len(tags))
	for i, t := range tags {
		out[i] = string(t)
	}
	return out
}

// Matches reports whether a rule targeting ts applies to a run whose active tags
// are active. An empty rule set never matches. ALL on either side matches.
func (ts TagSet) Matches(active TagSet) bool {
	if len(ts) == 0 {
		return false
	}
	if ts.Has(TagAll) || active.Has(TagAll) {
		return true
	}
	for t := range ts {
		if active.Has(t) {
			return true
		}
	}
	return false
}
