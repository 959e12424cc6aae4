// Package db provides the embedded schema of the stub API's product store.
package db

import _ "embed"

// Schema contains the DDL statements for the products table.
//
//go:embed migrations/001_schema.sql
var Schema string
