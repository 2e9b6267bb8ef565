package sqlite

import (
	"database/sql"

	migrate "github.com/rubenv/sql-migrate"
)

const migrationTable = "sheet_migrations"

// migrations are applied in order on startup. Existing entries must never be
// edited; add a new one instead.
var migrations = &migrate.MemoryMigrationSource{
	Migrations: []*migrate.Migration{
		{
			Id: "0001_sheets",
			Up: []string{
				`CREATE TABLE IF NOT EXISTS sheets (
					name TEXT PRIMARY KEY,
					frozen_rows INTEGER NOT NULL DEFAULT 0,
					column_widths TEXT NOT NULL DEFAULT '[]',
					created_at INTEGER NOT NULL
				)`,
				`CREATE TABLE IF NOT EXISTS sheet_rows (
					sheet TEXT NOT NULL,
					row_number INTEGER NOT NULL,
					cells TEXT NOT NULL,
					PRIMARY KEY (sheet, row_number),
					FOREIGN KEY (sheet) REFERENCES sheets(name) ON DELETE CASCADE
				)`,
			},
			Down: []string{
				`DROP TABLE sheet_rows`,
				`DROP TABLE sheets`,
			},
		},
		{
			Id: "0002_row_styles",
			Up: []string{
				`CREATE TABLE IF NOT EXISTS row_styles (
					sheet TEXT NOT NULL,
					row_number INTEGER NOT NULL,
					bold INTEGER NOT NULL DEFAULT 0,
					background TEXT NOT NULL DEFAULT '',
					font_color TEXT NOT NULL DEFAULT '',
					font_size INTEGER NOT NULL DEFAULT 0,
					links TEXT NOT NULL DEFAULT '{}',
					PRIMARY KEY (sheet, row_number),
					FOREIGN KEY (sheet) REFERENCES sheets(name) ON DELETE CASCADE
				)`,
			},
			Down: []string{
				`DROP TABLE row_styles`,
			},
		},
	},
}

// runMigrations brings the schema up to date.
func runMigrations(db *sql.DB) (int, error) {
	migrate.SetTable(migrationTable)
	return migrate.Exec(db, "sqlite3", migrations, migrate.Up)
}
