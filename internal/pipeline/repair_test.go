package pipeline

import (
	"encoding/json"
	"testing"
	"time"
)

func TestRepair_ConformantCandidatePassesThrough(t *testing.T) {
	c := Candidate{
		"date":        "2024-01-15",
		"amount":      50000.0,
		"description": "Salary",
		"merchant":    "Company XYZ",
		"category":    "income",
		"type":        "income",
	}

	got := Repair(c)
	want := Transaction{
		Date:        "2024-01-15",
		Amount:      50000,
		Description: "Salary",
		Merchant:    "Company XYZ",
		Category:    "income",
		Type:        "income",
	}
	if got != want {
		t.Errorf("Repair() = %+v, want %+v", got, want)
	}
}

func TestRepair_AmountCoercion(t *testing.T) {
	tests := []struct {
		name   string
		amount any
		want   float64
	}{
		{"number", -200.5, -200.5},
		{"numeric string", "-200", -200},
		{"numeric string with spaces", " 42.50 ", 42.5},
		{"non-numeric string", "twelve", 0},
		{"absent", nil, 0},
		{"bool", true, 0},
		{"object", map[string]any{"value": 5}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Candidate{}
			if tt.amount != nil {
				c["amount"] = tt.amount
			}
			if got := Repair(c).Amount; got != tt.want {
				t.Errorf("Repair().Amount = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRepair_CategoryAlwaysInSet(t *testing.T) {
	candidates := []any{"food", "income", "groceries", "FOOD", "", nil, 12.5}

	for _, cat := range candidates {
		c := Candidate{}
		if cat != nil {
			c["category"] = cat
		}
		got := Repair(c).Category
		if !ValidCategory(got) {
			t.Errorf("Repair() with category %v produced %q, not in the fixed set", cat, got)
		}
	}

	if got := Repair(Candidate{"category": "groceries"}).Category; got != CategoryOther {
		t.Errorf("unknown category repaired to %q, want %q", got, CategoryOther)
	}
	if got := Repair(Candidate{"category": "food"}).Category; got != "food" {
		t.Errorf("valid category repaired to %q, want food", got)
	}
}

func TestRepair_TypeDerivedFromRepairedAmount(t *testing.T) {
	tests := []struct {
		name     string
		amount   any
		typ      any
		wantType string
	}{
		{"explicit income kept", -100.0, "income", "income"},
		{"explicit expense kept", 100.0, "expense", "expense"},
		{"positive derives income", 100.0, nil, "income"},
		{"zero derives income", 0.0, nil, "income"},
		{"negative derives expense", -1.0, nil, "expense"},
		{"invalid type rederived", -1.0, "debit", "expense"},
		// Derivation must read the coerced amount, not the raw value.
		{"string amount derives expense", "-200", nil, "expense"},
		{"uncoercible amount derives income", "junk", nil, "income"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Candidate{"amount": tt.amount}
			if tt.typ != nil {
				c["type"] = tt.typ
			}
			if got := Repair(c).Type; got != tt.wantType {
				t.Errorf("Repair().Type = %q, want %q", got, tt.wantType)
			}
		})
	}
}

func TestRepair_TextDefaults(t *testing.T) {
	got := Repair(Candidate{"description": "", "merchant": 42})
	if got.Description != DefaultDescription {
		t.Errorf("Description = %q, want %q", got.Description, DefaultDescription)
	}
	if got.Merchant != "" {
		t.Errorf("Merchant = %q, want empty", got.Merchant)
	}

	got = Repair(Candidate{"description": "Coffee", "merchant": "Blue Tokai"})
	if got.Description != "Coffee" || got.Merchant != "Blue Tokai" {
		t.Errorf("text fields not preserved: %+v", got)
	}
}

func TestRepair_Idempotent(t *testing.T) {
	fixedClock(t, time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC))

	candidates := []Candidate{
		{},
		{"date": "garbage", "amount": "oops", "category": "nope", "type": "credit"},
		{"date": "2024-04-31", "amount": -12.5, "description": "Taxi", "category": "transportation"},
		{"date": "2024-01-15", "amount": 50000.0, "description": "Salary", "merchant": "Company XYZ", "category": "income", "type": "income"},
	}

	for i, c := range candidates {
		first := Repair(c)

		// Round-trip through JSON so the repaired record re-enters as a
		// candidate, the way a stored record would.
		data, err := json.Marshal(first)
		if err != nil {
			t.Fatalf("candidate %d: marshal: %v", i, err)
		}
		var again Candidate
		if err := json.Unmarshal(data, &again); err != nil {
			t.Fatalf("candidate %d: unmarshal: %v", i, err)
		}

		second := Repair(again)
		if first != second {
			t.Errorf("candidate %d: repair not idempotent:\n first: %+v\nsecond: %+v", i, first, second)
		}
	}
}

func TestMockTransactions(t *testing.T) {
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	fixedClock(t, now)

	txs := MockTransactions()
	if len(txs) != 5 {
		t.Fatalf("MockTransactions() returned %d records, want 5", len(txs))
	}

	for i, tx := range txs {
		if !ValidCategory(tx.Category) {
			t.Errorf("record %d: category %q not in set", i, tx.Category)
		}
		if !ValidType(tx.Type) {
			t.Errorf("record %d: type %q invalid", i, tx.Type)
		}
		if tx.Description == "" {
			t.Errorf("record %d: empty description", i)
		}
		wantDate := now.AddDate(0, 0, -(7 - i)).Format(dateLayout)
		if tx.Date != wantDate {
			t.Errorf("record %d: date %q, want %q", i, tx.Date, wantDate)
		}
	}

	if txs[0].Type != TypeIncome || txs[0].Amount != 50000 {
		t.Errorf("first record should be the salary credit, got %+v", txs[0])
	}
}
