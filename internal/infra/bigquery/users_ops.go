package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"
)

const userColumns = `
	user_id,
	name,
	email,
	password_hash,
	created_ts`

// InsertUser streams a new user row into finance.users.
func (r *Repository) InsertUser(ctx context.Context, row *UserRow) error {
	inserter := r.client.DatasetInProject(r.projectID, r.datasetID).Table(usersTable).Inserter()
	if err := inserter.Put(ctx, row); err != nil {
		return fmt.Errorf("InsertUser: inserting user %s: %w", row.UserID, err)
	}
	return nil
}

// FindUserByEmail looks a user up by email, or nil when no account uses it.
func (r *Repository) FindUserByEmail(ctx context.Context, email string) (*UserRow, error) {
	q := r.client.Query(fmt.Sprintf(`
		SELECT %s
		FROM %s
		WHERE email = @email
		LIMIT 1
	`, userColumns, r.table(usersTable)))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "email", Value: email},
	}

	row, err := r.readUserRow(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("FindUserByEmail: %w", err)
	}
	return row, nil
}

// GetUser fetches a user by ID, or nil when the ID is unknown.
func (r *Repository) GetUser(ctx context.Context, userID string) (*UserRow, error) {
	q := r.client.Query(fmt.Sprintf(`
		SELECT %s
		FROM %s
		WHERE user_id = @user_id
		LIMIT 1
	`, userColumns, r.table(usersTable)))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "user_id", Value: userID},
	}

	row, err := r.readUserRow(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("GetUser: %w", err)
	}
	return row, nil
}

// UpdateUser overwrites the user's profile fields.
func (r *Repository) UpdateUser(ctx context.Context, userID, name, email string) error {
	q := r.client.Query(fmt.Sprintf(`
		UPDATE %s
		SET name = @name, email = @email
		WHERE user_id = @user_id
	`, r.table(usersTable)))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "user_id", Value: userID},
		{Name: "name", Value: name},
		{Name: "email", Value: email},
	}

	if err := r.runDML(ctx, q); err != nil {
		return fmt.Errorf("UpdateUser: %w", err)
	}
	return nil
}

func (r *Repository) readUserRow(ctx context.Context, q *bigquery.Query) (*UserRow, error) {
	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("query read: %w", err)
	}

	var row UserRow
	err = it.Next(&row)
	if err == iterator.Done {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("iter next: %w", err)
	}
	return &row, nil
}
