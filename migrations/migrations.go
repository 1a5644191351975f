package migrations

import "embed"

// FS holds the schema for both supported drivers, one directory per driver
//
//go:embed postgres/*.sql sqlite/*.sql
var FS embed.FS
