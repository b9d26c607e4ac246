// Package db embeds the SQLite schema migrations and the seed data loaded
// after them.
package db

import "embed"

// Migrations holds migrations/NNNN_name.sql, applied in name order.
//
//go:embed migrations/*.sql
var Migrations embed.FS

// SeedFiles holds the default CV extraction schema and prompt.
//
//go:embed seed/cv_extraction_v1.json seed/prompt_cv_extraction.txt
var SeedFiles embed.FS
