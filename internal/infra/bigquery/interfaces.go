package bigquery

import "context"

// TransactionStore is the persistence capability the API layer depends
// on. Every operation is owner-scoped: a transaction is only visible to,
// and mutable by, the user it belongs to.
type TransactionStore interface {
	// InsertTransactions writes a batch of rows. A partial failure is
	// reported as a *bigquery.PutMultiError-wrapping error; use
	// FailedInserts to find out which rows did not make it.
	InsertTransactions(ctx context.Context, rows []*TransactionRow) error

	// ListTransactions returns one page of a user's transactions,
	// newest first, plus the total count matching the filter.
	ListTransactions(ctx context.Context, userID string, f TransactionFilter) ([]*TransactionRow, int64, error)

	// ListAllTransactions returns every transaction the user owns.
	ListAllTransactions(ctx context.Context, userID string) ([]*TransactionRow, error)

	// GetTransaction returns the row, or nil when the user owns no
	// transaction with that ID.
	GetTransaction(ctx context.Context, userID, id string) (*TransactionRow, error)

	// UpdateTransaction applies the non-nil fields, marks the row
	// edited, and returns the updated row (nil when absent).
	UpdateTransaction(ctx context.Context, userID, id string, upd TransactionUpdate) (*TransactionRow, error)

	// DeleteTransaction removes the row and reports whether it existed.
	DeleteTransaction(ctx context.Context, userID, id string) (bool, error)
}

// UserStore persists account records for authentication.
type UserStore interface {
	InsertUser(ctx context.Context, row *UserRow) error

	// FindUserByEmail returns nil when no account uses the address.
	FindUserByEmail(ctx context.Context, email string) (*UserRow, error)

	// GetUser returns nil when the ID is unknown.
	GetUser(ctx context.Context, userID string) (*UserRow, error)

	// UpdateUser rewrites the user's name and email.
	UpdateUser(ctx context.Context, userID, name, email string) error
}
