package pipeline

import (
	"math"
	"strconv"
	"strings"
)

// DefaultDescription is substituted when the model returns no usable
// description for a transaction.
const DefaultDescription = "Unknown transaction"

// Repair turns an untrusted candidate into a schema-conformant Transaction.
// It is total: every field that is missing, mistyped or out of range is
// replaced with a default rather than rejected, so one malformed record
// never blocks the rest of the statement.
func Repair(c Candidate) Transaction {
	t := Transaction{
		Date:        normalizeDate(stringField(c, "date")),
		Amount:      amountField(c, "amount"),
		Description: textField(c, "description", DefaultDescription),
		Merchant:    textField(c, "merchant", ""),
		Category:    categoryField(c, "category"),
	}
	// Type derivation must see the repaired amount, not the raw one.
	t.Type = typeField(c, "type", t.Amount)
	return t
}

// stringField returns the field as a string, or "" when absent or not a
// string.
func stringField(c Candidate, key string) string {
	s, _ := c[key].(string)
	return s
}

// textField returns the field when it is non-empty text, otherwise def.
func textField(c Candidate, key, def string) string {
	s, ok := c[key].(string)
	if !ok || s == "" {
		return def
	}
	return s
}

// amountField coerces the field into a finite float64. Numbers pass
// through, numeric strings are parsed, everything else becomes 0.
func amountField(c Candidate, key string) float64 {
	switch v := c[key].(type) {
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return 0
		}
		return v
	case int:
		return float64(v)
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0
		}
		return f
	default:
		return 0
	}
}

func categoryField(c Candidate, key string) string {
	s, ok := c[key].(string)
	if !ok || !ValidCategory(s) {
		return CategoryOther
	}
	return s
}

// typeField keeps an explicit valid type; anything else is derived from
// the sign of the repaired amount.
func typeField(c Candidate, key string, amount float64) string {
	if s, ok := c[key].(string); ok && ValidType(s) {
		return s
	}
	if amount >= 0 {
		return TypeIncome
	}
	return TypeExpense
}
