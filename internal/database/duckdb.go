//go:build cgo

package database

import (
	"database/sql"
	"path/filepath"

	_ "github.com/marcboeker/go-duckdb"

	"github.com/gerhard-ee/sqlgateway/internal/config"
)

// NewDuckDB creates a connector for a DuckDB database file
func NewDuckDB(cfg *config.WarehouseConfig) (Connector, error) {
	// For DuckDB, the Database is treated as a file path
	dbPath := cfg.Database
	if !filepath.IsAbs(dbPath) {
		dbPath = filepath.Join(".", dbPath)
	}
	return &sqlConnector{
		warehouse: config.TypeDuckDB,
		timeout:   cfg.Timeout,
		open: func() (*sql.DB, error) {
			return sql.Open("duckdb", dbPath)
		},
	}, nil
}
