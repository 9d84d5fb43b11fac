package database

import (
	"database/sql"
	"fmt"

	"github.com/go-sql-driver/mysql"

	"github.com/gerhard-ee/sqlgateway/internal/config"
)

// NewMySQL creates a connector for MySQL
func NewMySQL(cfg *config.WarehouseConfig) Connector {
	dsn := mysqlDSN(cfg)
	return &sqlConnector{
		warehouse: config.TypeMySQL,
		timeout:   cfg.Timeout,
		open: func() (*sql.DB, error) {
			return sql.Open("mysql", dsn)
		},
	}
}

func mysqlDSN(cfg *config.WarehouseConfig) string {
	mc := mysql.NewConfig()
	mc.User = cfg.User
	mc.Passwd = cfg.Password
	mc.Net = "tcp"
	mc.Addr = fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	mc.DBName = cfg.Database
	mc.Timeout = cfg.Timeout
	return mc.FormatDSN()
}
