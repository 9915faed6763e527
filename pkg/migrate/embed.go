package migrate

import "embed"

// Migrations holds the SQL migrations compiled into every binary.
//
//go:embed migrations/*.sql
var Migrations embed.FS

// EmbeddedDir is the goose directory inside Migrations.
const EmbeddedDir = "migrations"
