package bigquery

import (
	"strconv"
	"time"

	"cloud.google.com/go/civil"

	"github.com/finsight-app/finsight/internal/pipeline"
)

// TransactionRow is the finance.transactions table schema. Rows are only
// ever created by the upload pipeline or the manual-create path; edits go
// through UpdateTransaction, which flips is_edited.
type TransactionRow struct {
	TransactionID string     `bigquery:"transaction_id" json:"id"`
	UserID        string     `bigquery:"user_id" json:"userId"`
	Date          civil.Date `bigquery:"transaction_date" json:"date"`
	Amount        float64    `bigquery:"amount" json:"amount"`
	Description   string     `bigquery:"description" json:"description"`
	Merchant      string     `bigquery:"merchant" json:"merchant"`
	Category      string     `bigquery:"category" json:"category"`
	Type          string     `bigquery:"type" json:"type"`
	SourceFile    string     `bigquery:"source_file" json:"sourceFile"`
	IsEdited      bool       `bigquery:"is_edited" json:"isEdited"`
	CreatedTS     time.Time  `bigquery:"created_ts" json:"createdAt"`
	UpdatedTS     time.Time  `bigquery:"updated_ts" json:"updatedAt"`
}

// UserRow is the finance.users table schema.
type UserRow struct {
	UserID       string    `bigquery:"user_id" json:"id"`
	Name         string    `bigquery:"name" json:"name"`
	Email        string    `bigquery:"email" json:"email"`
	PasswordHash string    `bigquery:"password_hash" json:"-"`
	CreatedTS    time.Time `bigquery:"created_ts" json:"createdAt"`
}

// TransactionFilter narrows and pages a user's transaction listing.
// Zero values mean "no filter"; Page and Limit are normalized by the
// store.
type TransactionFilter struct {
	Category string
	Type     string
	Page     int
	Limit    int
}

// TransactionUpdate carries the editable fields of a transaction. Nil
// pointers leave the stored value untouched.
type TransactionUpdate struct {
	Date        *string
	Amount      *float64
	Description *string
	Merchant    *string
	Category    *string
	Type        *string
}

// DateOfCanonical converts a pipeline date string (already normalized to
// YYYY-MM-DD) into a civil.Date. Components are taken verbatim: the
// pipeline deliberately lets through days like 31 in a 30-day month, and
// this conversion must not reject or shift them.
func DateOfCanonical(s string) civil.Date {
	if len(s) != 10 {
		return civil.DateOf(time.Now())
	}
	year, _ := strconv.Atoi(s[0:4])
	month, _ := strconv.Atoi(s[5:7])
	day, _ := strconv.Atoi(s[8:10])
	return civil.Date{Year: year, Month: time.Month(month), Day: day}
}

// NewTransactionRow maps a parsed transaction onto a storable row, stamping
// identity and provenance. Ownership and source file are assigned here, at
// persistence time, never by the parser.
func NewTransactionRow(tx pipeline.Transaction, id, userID, sourceFile string, now time.Time) *TransactionRow {
	return &TransactionRow{
		TransactionID: id,
		UserID:        userID,
		Date:          DateOfCanonical(tx.Date),
		Amount:        tx.Amount,
		Description:   tx.Description,
		Merchant:      tx.Merchant,
		Category:      tx.Category,
		Type:          tx.Type,
		SourceFile:    sourceFile,
		IsEdited:      false,
		CreatedTS:     now,
		UpdatedTS:     now,
	}
}
