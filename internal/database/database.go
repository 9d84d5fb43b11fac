package database

import (
	"fmt"

	"github.com/gerhard-ee/sqlgateway/internal/config"
)

// NewConnector creates a connector for the configured warehouse type
func NewConnector(cfg *config.WarehouseConfig) (Connector, error) {
	switch cfg.Type {
	case config.TypeSnowflake:
		return NewSnowflake(cfg)
	case config.TypeBigQuery:
		return NewBigQuery(cfg), nil
	case config.TypeDatabricks:
		return NewDatabricks(cfg)
	case config.TypePostgres:
		return NewPostgres(cfg), nil
	case config.TypeMSSQL:
		return NewMSSQL(cfg), nil
	case config.TypeMySQL:
		return NewMySQL(cfg), nil
	case config.TypeDuckDB:
		return NewDuckDB(cfg)
	case config.TypeSQLite:
		return NewSQLite(cfg), nil
	default:
		return nil, fmt.Errorf("unsupported warehouse type: %s", cfg.Type)
	}
}
