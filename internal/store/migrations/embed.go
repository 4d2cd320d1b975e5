// Package migrations holds the SQL schema of the local record store.
package migrations

import "embed"

// FS contains the numbered *.up.sql files.
//
//go:embed *.sql
var FS embed.FS
