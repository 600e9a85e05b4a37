// Package migrations embeds the per-dialect schema files so binaries can migrate without a checkout.
package migrations

import "embed"

//go:embed sqlite/*.sql postgres/*.sql mysql/*.sql
var FS embed.FS
