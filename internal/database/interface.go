package database

import (
	"context"
	"fmt"
)

// Connector opens warehouse sessions. Every call to Open authenticates and
// returns a new Session; sessions are never pooled or shared.
type Connector interface {
	// Open establishes a new authenticated session
	Open(ctx context.Context) (Session, error)
	// Type returns the warehouse type the connector talks to
	Type() string
}

// Session is one authenticated warehouse connection owned by a single caller.
type Session interface {
	// Exec executes a single SQL statement and waits for it to finish
	Exec(ctx context.Context, statement string) error
	// Close releases the connection
	Close() error
}

// AuthError is returned by Connector.Open when a session cannot be established.
type AuthError struct {
	Warehouse string
	Err       error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("%s session creation failed: %v", e.Warehouse, e.Err)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}
