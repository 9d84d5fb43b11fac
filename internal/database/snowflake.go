package database

import (
	"database/sql"
	"fmt"

	sf "github.com/snowflakedb/gosnowflake"

	"github.com/gerhard-ee/sqlgateway/internal/config"
)

// NewSnowflake creates a connector for Snowflake. The DSN is built once;
// every Open logs in again with it.
func NewSnowflake(cfg *config.WarehouseConfig) (Connector, error) {
	dsn, err := snowflakeDSN(cfg)
	if err != nil {
		return nil, err
	}
	return &sqlConnector{
		warehouse: config.TypeSnowflake,
		// gosnowflake enforces the login timeout itself
		timeout: 0,
		open: func() (*sql.DB, error) {
			return sql.Open("snowflake", dsn)
		},
	}, nil
}

func snowflakeDSN(cfg *config.WarehouseConfig) (string, error) {
	sfCfg := &sf.Config{
		Account:      cfg.Account,
		User:         cfg.User,
		Password:     cfg.Password,
		Role:         cfg.Role,
		Warehouse:    cfg.Warehouse,
		Database:     cfg.Database,
		Schema:       cfg.Schema,
		LoginTimeout: cfg.Timeout,
		Application:  "sqlgateway",
	}
	if cfg.Host != "" {
		sfCfg.Host = cfg.Host
	}
	if cfg.Port != 0 {
		sfCfg.Port = cfg.Port
	}

	dsn, err := sf.DSN(sfCfg)
	if err != nil {
		return "", fmt.Errorf("failed to create DSN: %w", err)
	}
	return dsn, nil
}
