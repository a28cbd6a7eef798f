package handlers

import (
	"math"

	"github.com/finsight-app/finsight/internal/infra/bigquery"
)

// Summary is the dashboard aggregate over a user's transactions.
type Summary struct {
	TotalIncome       float64            `json:"totalIncome"`
	TotalExpenses     float64            `json:"totalExpenses"`
	NetBalance        float64            `json:"netBalance"`
	CategoryBreakdown map[string]float64 `json:"categoryBreakdown"`
	TransactionCount  int                `json:"transactionCount"`
}

// Summarize folds a user's transactions into dashboard totals. Income is
// the sum of positive amounts, expenses the absolute sum of negative
// ones. The category breakdown covers spending only, so income rows
// never show up in it.
func Summarize(rows []*bigquery.TransactionRow) Summary {
	s := Summary{
		CategoryBreakdown: make(map[string]float64),
		TransactionCount:  len(rows),
	}

	for _, row := range rows {
		if row.Amount > 0 {
			s.TotalIncome += row.Amount
		} else {
			spent := math.Abs(row.Amount)
			s.TotalExpenses += spent
			if spent > 0 {
				s.CategoryBreakdown[row.Category] += spent
			}
		}
	}

	s.NetBalance = s.TotalIncome - s.TotalExpenses
	return s
}
