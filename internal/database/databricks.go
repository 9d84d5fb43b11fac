package database

import (
	"database/sql"
	"fmt"

	dbsql "github.com/databricks/databricks-sql-go"

	"github.com/gerhard-ee/sqlgateway/internal/config"
)

// NewDatabricks creates a connector for a Databricks SQL warehouse
func NewDatabricks(cfg *config.WarehouseConfig) (Connector, error) {
	port := cfg.Port
	if port == 0 {
		port = 443
	}
	opts := []dbsql.ConnOption{
		dbsql.WithServerHostname(cfg.Host),
		dbsql.WithPort(port),
		dbsql.WithHTTPPath(cfg.HTTPPath),
		dbsql.WithAccessToken(cfg.Token),
	}
	if cfg.Catalog != "" || cfg.Schema != "" {
		opts = append(opts, dbsql.WithInitialNamespace(cfg.Catalog, cfg.Schema))
	}

	connector, err := dbsql.NewConnector(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Databricks connector: %w", err)
	}

	return &sqlConnector{
		warehouse: config.TypeDatabricks,
		timeout:   cfg.Timeout,
		open: func() (*sql.DB, error) {
			return sql.OpenDB(connector), nil
		},
	}, nil
}
