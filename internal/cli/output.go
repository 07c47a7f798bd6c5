package cli

import (
	"encoding/json"
)

// outputJSON writes v as indented JSON. It ignores --quiet.
func (c *CLI) outputJSON(v interface{}) error {
	enc := json.NewEncoder(c.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// tagNames converts tags to strings, never returning nil.
func tagNames[T ~string](tags []T) []string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		out = append(out, string(t))
	}
	return out
}
