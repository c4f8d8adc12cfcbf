// Package migrations embeds the item store schema for every SQL dialect.
package migrations

import "embed"

//go:embed sqlite/*.sql postgres/*.sql mysql/*.sql
var FS embed.FS
