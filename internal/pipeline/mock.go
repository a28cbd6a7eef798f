package pipeline

// MockTransactions returns the fixed demo statement used whenever the
// extraction service is unconfigured or has run out of quota. The shape is
// deterministic; only the dates move, as whole-day offsets from now.
func MockTransactions() []Transaction {
	now := timeNow()
	day := func(daysAgo int) string {
		return now.AddDate(0, 0, -daysAgo).Format(dateLayout)
	}

	return []Transaction{
		{
			Date:        day(7),
			Amount:      50000,
			Description: "Salary Credit",
			Merchant:    "Company XYZ",
			Category:    "income",
			Type:        TypeIncome,
		},
		{
			Date:        day(6),
			Amount:      -2500,
			Description: "Amazon Shopping",
			Merchant:    "Amazon",
			Category:    "shopping",
			Type:        TypeExpense,
		},
		{
			Date:        day(5),
			Amount:      -450,
			Description: "Food Delivery",
			Merchant:    "Zomato",
			Category:    "food",
			Type:        TypeExpense,
		},
		{
			Date:        day(4),
			Amount:      -1200,
			Description: "Electricity Bill",
			Merchant:    "Electricity Department",
			Category:    "utilities",
			Type:        TypeExpense,
		},
		{
			Date:        day(3),
			Amount:      -2000,
			Description: "ATM Withdrawal",
			Merchant:    "Bank ATM",
			Category:    CategoryOther,
			Type:        TypeExpense,
		},
	}
}
