// Package bigquery implements the transaction and user stores on Google
// BigQuery. One Repository holds a shared client; callers close it when
// the process shuts down.
package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
)

const (
	transactionsTable = "transactions"
	usersTable        = "users"
)

// Repository is the BigQuery-backed implementation of TransactionStore
// and UserStore.
type Repository struct {
	client    *bigquery.Client
	projectID string
	datasetID string
}

// NewRepository creates a repository with a shared BigQuery client.
// Application Default Credentials are assumed.
func NewRepository(ctx context.Context, projectID, datasetID string) (*Repository, error) {
	client, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("NewRepository: creating client: %w", err)
	}
	return &Repository{
		client:    client,
		projectID: projectID,
		datasetID: datasetID,
	}, nil
}

// Close releases the underlying client connection.
func (r *Repository) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}

func (r *Repository) table(name string) string {
	return fmt.Sprintf("`%s.%s.%s`", r.projectID, r.datasetID, name)
}

var (
	_ TransactionStore = (*Repository)(nil)
	_ UserStore        = (*Repository)(nil)
)
