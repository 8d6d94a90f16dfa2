package migrations

import "embed"

// Files holds the SQL migrations applied on startup, in file name order.
//
//go:embed *.sql
var Files embed.FS
