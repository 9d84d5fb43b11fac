package database

import (
	"database/sql"

	_ "modernc.org/sqlite"

	"github.com/gerhard-ee/sqlgateway/internal/config"
)

// NewSQLite creates a connector for a local SQLite file. It is meant for
// development and tests; Database is the file path.
func NewSQLite(cfg *config.WarehouseConfig) Connector {
	path := cfg.Database
	return &sqlConnector{
		warehouse: config.TypeSQLite,
		timeout:   cfg.Timeout,
		open: func() (*sql.DB, error) {
			return sql.Open("sqlite", path)
		},
	}
}
