package pipeline

// Candidate is one transaction-shaped object as returned by the extraction
// model, before any validation. Values are whatever encoding/json produced,
// so every field access goes through the coercion helpers in repair.go.
type Candidate map[string]any

// Transaction is a fully validated transaction ready for persistence.
// Every instance produced by Repair satisfies the schema: date is
// "YYYY-MM-DD" with month 1-12 and day 1-31, description is non-empty,
// category is one of the fixed set, and type is "income" or "expense".
type Transaction struct {
	Date        string  `json:"date"`
	Amount      float64 `json:"amount"`
	Description string  `json:"description"`
	Merchant    string  `json:"merchant"`
	Category    string  `json:"category"`
	Type        string  `json:"type"`
}

// Transaction types.
const (
	TypeIncome  = "income"
	TypeExpense = "expense"
)

// CategoryOther is the default bucket for anything the model could not
// classify into the fixed set.
const CategoryOther = "other"

// Categories is the fixed set of transaction categories, matching the
// enumeration enforced at the store.
var Categories = []string{
	"food",
	"utilities",
	"entertainment",
	"transportation",
	"healthcare",
	"shopping",
	"income",
	"transfer",
	CategoryOther,
}

var categorySet = func() map[string]bool {
	m := make(map[string]bool, len(Categories))
	for _, c := range Categories {
		m[c] = true
	}
	return m
}()

// ValidCategory reports whether c is a member of the fixed category set.
// Matching is case-sensitive; the model is prompted with the exact
// lowercase names.
func ValidCategory(c string) bool {
	return categorySet[c]
}

// ValidType reports whether t is exactly "income" or "expense".
func ValidType(t string) bool {
	return t == TypeIncome || t == TypeExpense
}
