package db

import (
	"database/sql"
	"fmt"
)

func Migrate(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			username TEXT NOT NULL UNIQUE,
			display_name TEXT NOT NULL,
			password_hash TEXT NOT NULL DEFAULT '',
			role TEXT NOT NULL DEFAULT 'editor',
			create_time TEXT NOT NULL,
			update_time TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS personal_access_tokens (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id INTEGER NOT NULL,
			token_prefix TEXT NOT NULL,
			token_hash TEXT NOT NULL UNIQUE,
			description TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL,
			last_used_at TEXT,
			expires_at TEXT,
			revoked_at TEXT,
			FOREIGN KEY(user_id) REFERENCES users(id) ON DELETE CASCADE
		);`,
		`CREATE TABLE IF NOT EXISTS tables (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			create_time TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS table_fields (
			id TEXT PRIMARY KEY,
			table_id TEXT NOT NULL,
			name TEXT NOT NULL,
			type TEXT NOT NULL,
			options_json TEXT NOT NULL DEFAULT '{}',
			order_index INTEGER NOT NULL DEFAULT 0,
			UNIQUE(table_id, name),
			FOREIGN KEY(table_id) REFERENCES tables(id) ON DELETE CASCADE
		);`,
		`CREATE TABLE IF NOT EXISTS table_rows (
			id TEXT PRIMARY KEY,
			table_id TEXT NOT NULL,
			data_json TEXT NOT NULL DEFAULT '{}',
			create_time TEXT NOT NULL,
			update_time TEXT NOT NULL,
			FOREIGN KEY(table_id) REFERENCES tables(id) ON DELETE CASCADE
		);`,
		`CREATE INDEX IF NOT EXISTS idx_table_rows_table ON table_rows(table_id);`,
		`CREATE TABLE IF NOT EXISTS views (
			id TEXT PRIMARY KEY,
			table_id TEXT NOT NULL,
			name TEXT NOT NULL,
			type TEXT NOT NULL,
			config_json TEXT NOT NULL DEFAULT '{}',
			create_time TEXT NOT NULL,
			FOREIGN KEY(table_id) REFERENCES tables(id) ON DELETE CASCADE
		);`,
		`CREATE INDEX IF NOT EXISTS idx_views_table ON views(table_id);`,
		`CREATE TABLE IF NOT EXISTS view_filter_groups (
			id TEXT PRIMARY KEY,
			view_id TEXT NOT NULL,
			condition_type TEXT NOT NULL DEFAULT 'AND',
			order_index INTEGER NOT NULL DEFAULT 0,
			FOREIGN KEY(view_id) REFERENCES views(id) ON DELETE CASCADE
		);`,
		`CREATE TABLE IF NOT EXISTS view_filters (
			id TEXT PRIMARY KEY,
			view_id TEXT NOT NULL,
			field_name TEXT NOT NULL,
			operator TEXT NOT NULL,
			value TEXT,
			filter_group_id TEXT,
			order_index INTEGER NOT NULL DEFAULT 0,
			FOREIGN KEY(view_id) REFERENCES views(id) ON DELETE CASCADE,
			FOREIGN KEY(filter_group_id) REFERENCES view_filter_groups(id) ON DELETE SET NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_view_filters_view ON view_filters(view_id);`,
		`CREATE TABLE IF NOT EXISTS view_sorts (
			id TEXT PRIMARY KEY,
			view_id TEXT NOT NULL,
			field_name TEXT NOT NULL,
			direction TEXT NOT NULL DEFAULT 'asc',
			order_index INTEGER NOT NULL DEFAULT 0,
			FOREIGN KEY(view_id) REFERENCES views(id) ON DELETE CASCADE
		);`,
		`CREATE TABLE IF NOT EXISTS view_fields (
			id TEXT PRIMARY KEY,
			view_id TEXT NOT NULL,
			field_name TEXT NOT NULL,
			visible INTEGER NOT NULL DEFAULT 1,
			order_index INTEGER NOT NULL DEFAULT 0,
			UNIQUE(view_id, field_name),
			FOREIGN KEY(view_id) REFERENCES views(id) ON DELETE CASCADE
		);`,
		`CREATE TABLE IF NOT EXISTS grid_view_settings (
			view_id TEXT PRIMARY KEY,
			row_height TEXT NOT NULL DEFAULT 'short',
			wrap_text INTEGER NOT NULL DEFAULT 0,
			FOREIGN KEY(view_id) REFERENCES views(id) ON DELETE CASCADE
		);`,
		`CREATE TABLE IF NOT EXISTS pages (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			config_json TEXT NOT NULL DEFAULT '{}',
			create_time TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS page_blocks (
			id TEXT PRIMARY KEY,
			page_id TEXT NOT NULL,
			type TEXT NOT NULL,
			config_json TEXT NOT NULL DEFAULT '{}',
			pos_x INTEGER,
			pos_y INTEGER,
			pos_w INTEGER,
			pos_h INTEGER,
			sizing TEXT NOT NULL DEFAULT 'content',
			FOREIGN KEY(page_id) REFERENCES pages(id) ON DELETE CASCADE
		);`,
		`CREATE INDEX IF NOT EXISTS idx_page_blocks_page ON page_blocks(page_id);`,
		`CREATE TABLE IF NOT EXISTS attachments (
			id TEXT PRIMARY KEY,
			creator_id INTEGER NOT NULL,
			filename TEXT NOT NULL,
			type TEXT NOT NULL,
			size INTEGER NOT NULL,
			storage_type TEXT NOT NULL,
			storage_key TEXT NOT NULL,
			create_time TEXT NOT NULL,
			FOREIGN KEY(creator_id) REFERENCES users(id) ON DELETE CASCADE
		);`,
	}

	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}
