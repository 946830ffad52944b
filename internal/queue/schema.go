package queue

import (
	"embed"

	"visionrecall/internal/sqlitedb"
)

// Migration files are append-only. N_name.up.sql upgrades a journal at N-1.
//
//go:embed migrations/*.up.sql
var migrationFiles embed.FS

var migrations = sqlitedb.Migrations{FS: migrationFiles, Dir: "migrations"}

// expectedColumns is what CheckHealth looks for in queue_items.
var expectedColumns = []string{"id", "source_path", "status", "error_message", "created_at", "updated_at"}
