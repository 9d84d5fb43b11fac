package database

import (
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/lib/pq"

	"github.com/gerhard-ee/sqlgateway/internal/config"
)

// NewPostgres creates a connector for PostgreSQL
func NewPostgres(cfg *config.WarehouseConfig) Connector {
	dsn := postgresDSN(cfg)
	return &sqlConnector{
		warehouse: config.TypePostgres,
		timeout:   cfg.Timeout,
		open: func() (*sql.DB, error) {
			return sql.Open("postgres", dsn)
		},
	}
}

func postgresDSN(cfg *config.WarehouseConfig) string {
	parts := []string{
		fmt.Sprintf("host=%s", cfg.Host),
		fmt.Sprintf("port=%d", cfg.Port),
		fmt.Sprintf("user=%s", quoteDSNValue(cfg.User)),
		fmt.Sprintf("password=%s", quoteDSNValue(cfg.Password)),
		fmt.Sprintf("dbname=%s", quoteDSNValue(cfg.Database)),
	}
	if cfg.Schema != "" {
		parts = append(parts, fmt.Sprintf("search_path=%s", quoteDSNValue(cfg.Schema)))
	}
	if cfg.Timeout > 0 {
		parts = append(parts, fmt.Sprintf("connect_timeout=%d", int(cfg.Timeout.Seconds())))
	}
	return strings.Join(parts, " ")
}

// quoteDSNValue quotes a key/value connection string value when it contains
// spaces, quotes or backslashes.
func quoteDSNValue(v string) string {
	if v != "" && !strings.ContainsAny(v, ` '\`) {
		return v
	}
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `'`, `\'`)
	return "'" + v + "'"
}
