// Package migrations embeds the event store's SQL schema.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
