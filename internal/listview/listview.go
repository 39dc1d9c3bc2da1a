// Package listview implements the in-memory search, filter, sort and
// pagination applied to an already-fetched slice of transactions. It is
// pure: the input slice is never mutated and the output is recomputed in
// full on every call.
package listview

import (
	"sort"
	"strings"
	"time"

	"github.com/mkravets/finlog/internal/domain"
)

// PageSize is the fixed number of items shown per page.
const PageSize = 10

// Sort keys.
const (
	SortDate     = "date"
	SortAmount   = "amount"
	SortCategory = "category"
)

// Directions.
const (
	Asc  = "asc"
	Desc = "desc"
)

// Query describes the user's current view state. Zero values mean
// "no constraint".
type Query struct {
	Search string
	Type   domain.TransactionType
	From   time.Time
	To     time.Time
	Sort   string
	Dir    string
	Page   int
}

// Page is the visible slice plus the numbers the pager needs.
type Page struct {
	Items      []domain.Transaction
	Total      int
	Page       int
	TotalPages int
}

// Apply filters, sorts and paginates txs according to q.
func Apply(txs []domain.Transaction, q Query) Page {
	filtered := filter(txs, q)
	sortItems(filtered, q.Sort, q.Dir)

	total := len(filtered)
	totalPages := (total + PageSize - 1) / PageSize
	if totalPages == 0 {
		totalPages = 1
	}

	page := q.Page
	if page < 1 {
		page = 1
	}
	if page > totalPages {
		page = totalPages
	}

	start := (page - 1) * PageSize
	end := start + PageSize
	if end > total {
		end = total
	}

	return Page{
		Items:      filtered[start:end],
		Total:      total,
		Page:       page,
		TotalPages: totalPages,
	}
}

func filter(txs []domain.Transaction, q Query) []domain.Transaction {
	search := strings.ToLower(strings.TrimSpace(q.Search))
	out := make([]domain.Transaction, 0, len(txs))

	for _, tx := range txs {
		if q.Type != "" && tx.Type != q.Type {
			continue
		}
		if !q.From.IsZero() && tx.Date.Before(q.From) {
			continue
		}
		if !q.To.IsZero() && tx.Date.After(q.To) {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(tx.Description), search) &&
			!strings.Contains(strings.ToLower(tx.Category), search) {
			continue
		}
		out = append(out, tx)
	}
	return out
}

func sortItems(txs []domain.Transaction, key, dir string) {
	if key == "" {
		key = SortDate
	}
	desc := dir == Desc || (dir == "" && key == SortDate)

	sort.SliceStable(txs, func(i, j int) bool {
		var less bool
		switch key {
		case SortAmount:
			less = txs[i].Amount < txs[j].Amount
		case SortCategory:
			less = txs[i].Category < txs[j].Category
		default:
			less = txs[i].Date.Before(txs[j].Date)
		}
		if desc {
			return !less && !equalKey(txs[i], txs[j], key)
		}
		return less
	})
}

func equalKey(a, b domain.Transaction, key string) bool {
	switch key {
	case SortAmount:
		return a.Amount == b.Amount
	case SortCategory:
		return a.Category == b.Category
	default:
		return a.Date.Equal(b.Date)
	}
}
