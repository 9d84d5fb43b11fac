//go:build !cgo

package database

import (
	"fmt"

	"github.com/gerhard-ee/sqlgateway/internal/config"
)

// NewDuckDB reports that DuckDB needs a cgo build
func NewDuckDB(cfg *config.WarehouseConfig) (Connector, error) {
	return nil, fmt.Errorf("DuckDB support requires a cgo-enabled build")
}
