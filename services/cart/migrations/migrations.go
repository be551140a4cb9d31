// Package migrations embeds the cart catalog schema.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
