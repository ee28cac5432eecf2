package migrations

import "embed"

// FS holds the key-value schema shared by the SQL backends.
//
//go:embed *.sql
var FS embed.FS
