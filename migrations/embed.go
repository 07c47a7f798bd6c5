// Package migrations embeds the decision audit schema. Files are applied in
// version order; each holds a single statement.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
