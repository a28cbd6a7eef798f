package bigquery

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"
)

const (
	defaultPageLimit = 50
	maxPageLimit     = 500
)

const transactionColumns = `
	transaction_id,
	user_id,
	transaction_date,
	amount,
	description,
	merchant,
	category,
	type,
	source_file,
	is_edited,
	created_ts,
	updated_ts`

// InsertTransactions streams a batch of rows into finance.transactions.
func (r *Repository) InsertTransactions(ctx context.Context, rows []*TransactionRow) error {
	if len(rows) == 0 {
		return nil
	}

	inserter := r.client.DatasetInProject(r.projectID, r.datasetID).Table(transactionsTable).Inserter()
	if err := inserter.Put(ctx, rows); err != nil {
		return fmt.Errorf("InsertTransactions: inserting %d rows: %w", len(rows), err)
	}
	return nil
}

// FailedInserts extracts the indices of rows that were rejected from a
// batch insert error. ok is false when the error was a wholesale failure,
// meaning nothing can be assumed saved.
func FailedInserts(err error) (failed []int, ok bool) {
	var multi bigquery.PutMultiError
	if !errors.As(err, &multi) {
		return nil, false
	}
	for _, rowErr := range multi {
		failed = append(failed, rowErr.RowIndex)
	}
	return failed, true
}

// ListTransactions returns one page of the user's transactions, newest
// first, together with the total count matching the filter.
func (r *Repository) ListTransactions(ctx context.Context, userID string, f TransactionFilter) ([]*TransactionRow, int64, error) {
	if f.Limit <= 0 {
		f.Limit = defaultPageLimit
	}
	if f.Limit > maxPageLimit {
		f.Limit = maxPageLimit
	}
	if f.Page <= 0 {
		f.Page = 1
	}

	where, params := transactionPredicate(userID, f)

	q := r.client.Query(fmt.Sprintf(`
		SELECT %s
		FROM %s
		WHERE %s
		ORDER BY transaction_date DESC, created_ts DESC
		LIMIT @limit OFFSET @offset
	`, transactionColumns, r.table(transactionsTable), where))
	q.Parameters = append(params,
		bigquery.QueryParameter{Name: "limit", Value: f.Limit},
		bigquery.QueryParameter{Name: "offset", Value: (f.Page - 1) * f.Limit},
	)

	rows, err := r.readTransactionRows(ctx, q)
	if err != nil {
		return nil, 0, fmt.Errorf("ListTransactions: %w", err)
	}

	total, err := r.countTransactions(ctx, where, params)
	if err != nil {
		return nil, 0, fmt.Errorf("ListTransactions: %w", err)
	}

	return rows, total, nil
}

// ListAllTransactions returns every transaction the user owns, newest
// first. This feeds the dashboard summary, which aggregates in memory.
func (r *Repository) ListAllTransactions(ctx context.Context, userID string) ([]*TransactionRow, error) {
	q := r.client.Query(fmt.Sprintf(`
		SELECT %s
		FROM %s
		WHERE user_id = @user_id
		ORDER BY transaction_date DESC, created_ts DESC
	`, transactionColumns, r.table(transactionsTable)))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "user_id", Value: userID},
	}

	rows, err := r.readTransactionRows(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("ListAllTransactions: %w", err)
	}
	return rows, nil
}

// GetTransaction fetches one owner-scoped transaction, or nil when the
// user owns no row with that ID.
func (r *Repository) GetTransaction(ctx context.Context, userID, id string) (*TransactionRow, error) {
	q := r.client.Query(fmt.Sprintf(`
		SELECT %s
		FROM %s
		WHERE user_id = @user_id AND transaction_id = @transaction_id
		LIMIT 1
	`, transactionColumns, r.table(transactionsTable)))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "user_id", Value: userID},
		{Name: "transaction_id", Value: id},
	}

	rows, err := r.readTransactionRows(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("GetTransaction: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

// UpdateTransaction applies the non-nil fields of upd, marks the row as
// edited, and returns the updated row. Returns nil when the user owns no
// row with that ID.
func (r *Repository) UpdateTransaction(ctx context.Context, userID, id string, upd TransactionUpdate) (*TransactionRow, error) {
	existing, err := r.GetTransaction(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, nil
	}

	assignments := []string{"is_edited = TRUE", "updated_ts = @updated_ts"}
	params := []bigquery.QueryParameter{
		{Name: "updated_ts", Value: time.Now()},
		{Name: "user_id", Value: userID},
		{Name: "transaction_id", Value: id},
	}

	if upd.Date != nil {
		assignments = append(assignments, "transaction_date = @transaction_date")
		params = append(params, bigquery.QueryParameter{Name: "transaction_date", Value: DateOfCanonical(*upd.Date)})
	}
	if upd.Amount != nil {
		assignments = append(assignments, "amount = @amount")
		params = append(params, bigquery.QueryParameter{Name: "amount", Value: *upd.Amount})
	}
	if upd.Description != nil {
		assignments = append(assignments, "description = @description")
		params = append(params, bigquery.QueryParameter{Name: "description", Value: *upd.Description})
	}
	if upd.Merchant != nil {
		assignments = append(assignments, "merchant = @merchant")
		params = append(params, bigquery.QueryParameter{Name: "merchant", Value: *upd.Merchant})
	}
	if upd.Category != nil {
		assignments = append(assignments, "category = @category")
		params = append(params, bigquery.QueryParameter{Name: "category", Value: *upd.Category})
	}
	if upd.Type != nil {
		assignments = append(assignments, "type = @type")
		params = append(params, bigquery.QueryParameter{Name: "type", Value: *upd.Type})
	}

	q := r.client.Query(fmt.Sprintf(`
		UPDATE %s
		SET %s
		WHERE user_id = @user_id AND transaction_id = @transaction_id
	`, r.table(transactionsTable), strings.Join(assignments, ", ")))
	q.Parameters = params

	if err := r.runDML(ctx, q); err != nil {
		return nil, fmt.Errorf("UpdateTransaction: %w", err)
	}

	return r.GetTransaction(ctx, userID, id)
}

// DeleteTransaction removes an owner-scoped transaction, reporting
// whether it existed.
func (r *Repository) DeleteTransaction(ctx context.Context, userID, id string) (bool, error) {
	existing, err := r.GetTransaction(ctx, userID, id)
	if err != nil {
		return false, err
	}
	if existing == nil {
		return false, nil
	}

	q := r.client.Query(fmt.Sprintf(`
		DELETE FROM %s
		WHERE user_id = @user_id AND transaction_id = @transaction_id
	`, r.table(transactionsTable)))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "user_id", Value: userID},
		{Name: "transaction_id", Value: id},
	}

	if err := r.runDML(ctx, q); err != nil {
		return false, fmt.Errorf("DeleteTransaction: %w", err)
	}
	return true, nil
}

func transactionPredicate(userID string, f TransactionFilter) (string, []bigquery.QueryParameter) {
	where := []string{"user_id = @user_id"}
	params := []bigquery.QueryParameter{
		{Name: "user_id", Value: userID},
	}
	if f.Category != "" {
		where = append(where, "category = @category")
		params = append(params, bigquery.QueryParameter{Name: "category", Value: f.Category})
	}
	if f.Type != "" {
		where = append(where, "type = @type")
		params = append(params, bigquery.QueryParameter{Name: "type", Value: f.Type})
	}
	return strings.Join(where, " AND "), params
}

func (r *Repository) countTransactions(ctx context.Context, where string, params []bigquery.QueryParameter) (int64, error) {
	q := r.client.Query(fmt.Sprintf(`
		SELECT COUNT(*) AS total
		FROM %s
		WHERE %s
	`, r.table(transactionsTable), where))
	q.Parameters = params

	it, err := q.Read(ctx)
	if err != nil {
		return 0, fmt.Errorf("count query read: %w", err)
	}

	var row struct {
		Total int64 `bigquery:"total"`
	}
	if err := it.Next(&row); err != nil && err != iterator.Done {
		return 0, fmt.Errorf("count iter next: %w", err)
	}
	return row.Total, nil
}

func (r *Repository) readTransactionRows(ctx context.Context, q *bigquery.Query) ([]*TransactionRow, error) {
	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("query read: %w", err)
	}

	var rows []*TransactionRow
	for {
		var row TransactionRow
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("iter next: %w", err)
		}
		rows = append(rows, &row)
	}
	return rows, nil
}

func (r *Repository) runDML(ctx context.Context, q *bigquery.Query) error {
	job, err := q.Run(ctx)
	if err != nil {
		return fmt.Errorf("running query: %w", err)
	}
	status, err := job.Wait(ctx)
	if err != nil {
		return fmt.Errorf("waiting for job: %w", err)
	}
	if err := status.Err(); err != nil {
		return fmt.Errorf("job error: %w", err)
	}
	return nil
}
