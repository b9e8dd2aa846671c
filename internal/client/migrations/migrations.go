// Package migrations embeds the goose migrations applied to the on-device
// store after the base tables exist.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
