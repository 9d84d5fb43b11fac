package database

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/option"

	"github.com/gerhard-ee/sqlgateway/internal/config"
)

// BigQuery opens one client per session and runs every statement as a
// query job. Database is used as the default dataset.
type BigQuery struct {
	config *config.WarehouseConfig
}

// NewBigQuery creates a connector for BigQuery
func NewBigQuery(cfg *config.WarehouseConfig) *BigQuery {
	return &BigQuery{config: cfg}
}

func (b *BigQuery) Type() string {
	return config.TypeBigQuery
}

func (b *BigQuery) Open(ctx context.Context) (Session, error) {
	var opts []option.ClientOption
	if b.config.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(b.config.CredentialsFile))
	}

	client, err := bigquery.NewClient(ctx, b.config.ProjectID, opts...)
	if err != nil {
		return nil, &AuthError{Warehouse: config.TypeBigQuery, Err: err}
	}
	return &bigQuerySession{client: client, dataset: b.config.Database}, nil
}

type bigQuerySession struct {
	client  *bigquery.Client
	dataset string
}

func (s *bigQuerySession) Exec(ctx context.Context, statement string) error {
	q := s.client.Query(statement)
	if s.dataset != "" {
		q.DefaultProjectID = s.client.Project()
		q.DefaultDatasetID = s.dataset
	}

	job, err := q.Run(ctx)
	if err != nil {
		return fmt.Errorf("failed to start query job: %w", err)
	}
	status, err := job.Wait(ctx)
	if err != nil {
		return fmt.Errorf("failed to wait for query job: %w", err)
	}
	if err := status.Err(); err != nil {
		return fmt.Errorf("query job failed: %w", err)
	}
	return nil
}

func (s *bigQuerySession) Close() error {
	return s.client.Close()
}
