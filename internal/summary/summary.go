// Package summary computes the dashboard statistics from a capped window
// of recent transactions.
package summary

import (
	"github.com/mkravets/finlog/internal/domain"
)

// RecentCount is how many transactions the dashboard lists individually.
const RecentCount = 5

// Summary is the dashboard payload. Net is always TotalIncome minus
// TotalExpenses, including for an empty set.
type Summary struct {
	TotalIncome        float64              `json:"totalIncome"`
	TotalExpenses      float64              `json:"totalExpenses"`
	Net                float64              `json:"net"`
	ExpensesByCategory map[string]float64   `json:"expensesByCategory"`
	Recent             []domain.Transaction `json:"recent"`
	TransactionCount   int                  `json:"transactionCount"`
}

// Compute aggregates txs, which are expected to be ordered most recent
// first as the store returns them.
func Compute(txs []domain.Transaction) Summary {
	s := Summary{
		ExpensesByCategory: make(map[string]float64),
		Recent:             []domain.Transaction{},
		TransactionCount:   len(txs),
	}

	for _, tx := range txs {
		switch tx.Type {
		case domain.Income:
			s.TotalIncome += tx.Amount
		case domain.Expense:
			s.TotalExpenses += tx.Amount
			s.ExpensesByCategory[tx.Category] += tx.Amount
		}
	}
	s.Net = s.TotalIncome - s.TotalExpenses

	n := RecentCount
	if len(txs) < n {
		n = len(txs)
	}
	s.Recent = append(s.Recent, txs[:n]...)

	return s
}
