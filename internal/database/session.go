package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// sqlConnector opens sessions through database/sql. Each session gets its own
// *sql.DB capped at a single connection, so nothing is pooled across requests.
type sqlConnector struct {
	warehouse string
	timeout   time.Duration
	open      func() (*sql.DB, error)
}

func (c *sqlConnector) Type() string {
	return c.warehouse
}

// Open creates a fresh handle and acquires its only connection, which is
// where the driver authenticates.
func (c *sqlConnector) Open(ctx context.Context) (Session, error) {
	db, err := c.open()
	if err != nil {
		return nil, &AuthError{Warehouse: c.warehouse, Err: err}
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	connectCtx := ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		connectCtx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	conn, err := db.Conn(connectCtx)
	if err == nil {
		err = conn.PingContext(connectCtx)
		if err != nil {
			conn.Close()
		}
	}
	if err != nil {
		db.Close()
		return nil, &AuthError{Warehouse: c.warehouse, Err: err}
	}

	return &sqlSession{db: db, conn: conn}, nil
}

type sqlSession struct {
	db   *sql.DB
	conn *sql.Conn
}

func (s *sqlSession) Exec(ctx context.Context, statement string) error {
	if _, err := s.conn.ExecContext(ctx, statement); err != nil {
		return fmt.Errorf("failed to execute statement: %w", err)
	}
	return nil
}

func (s *sqlSession) Close() error {
	return errors.Join(s.conn.Close(), s.db.Close())
}
