package domain

import "time"

// TransactionType distinguishes money coming in from money going out.
type TransactionType string

const (
	Income  TransactionType = "INCOME"
	Expense TransactionType = "EXPENSE"
)

// Valid reports whether t is one of the known transaction types.
func (t TransactionType) Valid() bool {
	return t == Income || t == Expense
}

// User is the internal user record, created lazily the first time an
// identity-provider subject shows up on an authenticated request.
type User struct {
	ID         string    `json:"id"`
	ProviderID string    `json:"-"`
	Name       string    `json:"name"`
	Email      string    `json:"email"`
	ImageURL   string    `json:"image_url,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Transaction is a single income or expense record owned by one user.
// Amount is a non-negative decimal; it crosses the API boundary as a plain
// JSON number.
type Transaction struct {
	ID          string          `json:"id"`
	UserID      string          `json:"-"`
	Type        TransactionType `json:"type"`
	Amount      float64         `json:"amount"`
	Category    string          `json:"category"`
	Description string          `json:"description,omitempty"`
	Date        time.Time       `json:"date"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// ReceiptDraft is an unpersisted candidate transaction produced by the
// receipt extraction pipeline. It is merged into a transaction form by the
// caller and then discarded; the category is passed through verbatim and
// only validated at form-submit time.
type ReceiptDraft struct {
	Amount       float64   `json:"amount"`
	Date         time.Time `json:"date"`
	Description  string    `json:"description"`
	Category     string    `json:"category"`
	MerchantName string    `json:"merchantName"`
}

// Empty reports whether the draft carries no extracted data, which is how
// the model signals "this is not a receipt".
func (d ReceiptDraft) Empty() bool {
	return d.Amount == 0 && d.Date.IsZero() && d.Description == "" &&
		d.Category == "" && d.MerchantName == ""
}
