package database

import (
	"database/sql"
	"fmt"
	"net/url"
	"strconv"

	_ "github.com/denisenkom/go-mssqldb"

	"github.com/gerhard-ee/sqlgateway/internal/config"
)

// NewMSSQL creates a connector for SQL Server
func NewMSSQL(cfg *config.WarehouseConfig) Connector {
	dsn := mssqlDSN(cfg)
	return &sqlConnector{
		warehouse: config.TypeMSSQL,
		timeout:   cfg.Timeout,
		open: func() (*sql.DB, error) {
			return sql.Open("sqlserver", dsn)
		},
	}
}

func mssqlDSN(cfg *config.WarehouseConfig) string {
	query := url.Values{}
	query.Set("database", cfg.Database)
	if cfg.Timeout > 0 {
		query.Set("dial timeout", strconv.Itoa(int(cfg.Timeout.Seconds())))
	}
	u := &url.URL{
		Scheme:   "sqlserver",
		User:     url.UserPassword(cfg.User, cfg.Password),
		Host:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		RawQuery: query.Encode(),
	}
	return u.String()
}
