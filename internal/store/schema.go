package store

import _ "embed"

// Schema is the bootstrap DDL applied by `db init`.
//
//go:embed schema.sql
var Schema string
