package models

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType is shared by categories and transactions.
type TransactionType string

const (
	TransactionTypeIncome  TransactionType = "income"
	TransactionTypeExpense TransactionType = "expense"
)

// Valid reports whether t is one of the two known types.
func (t TransactionType) Valid() bool {
	return t == TransactionTypeIncome || t == TransactionTypeExpense
}

// Transaction is a single ledger movement owned by one account.
// Amount is sign-agnostic: the direction lives in Type.
type Transaction struct {
	ID           string          `json:"id"`
	AccountID    string          `json:"accountId"`
	CategoryID   string          `json:"categoryId"`
	Amount       decimal.Decimal `json:"amount"`
	Type         TransactionType `json:"type"`
	Description  string          `json:"description"`
	Date         time.Time       `json:"date"`                   // Point in time used for filtering and ordering
	ReceiptImage *string         `json:"receiptImage,omitempty"` // Opaque reference to an attached image
	CreatedAt    time.Time       `json:"createdAt"`
	UpdatedAt    time.Time       `json:"updatedAt"`
}

// NewTransaction is the payload accepted by CreateTransaction.
type NewTransaction struct {
	AccountID    string          `json:"accountId"`
	CategoryID   string          `json:"categoryId"`
	Amount       decimal.Decimal `json:"amount"`
	Type         TransactionType `json:"type"`
	Description  string          `json:"description"`
	Date         time.Time       `json:"date"`
	ReceiptImage *string         `json:"receiptImage,omitempty"`
}

// UnmarshalJSON accepts the date as a calendar day ("2024-01-15", as date
// pickers produce it) or as an RFC 3339 timestamp.
func (t *Transaction) UnmarshalJSON(data []byte) error {
	type plain Transaction
	aux := struct {
		*plain
		Date json.RawMessage `json:"date"`
	}{plain: (*plain)(t)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	date, err := decodeDate(aux.Date)
	if err != nil {
		return err
	}
	t.Date = date
	return nil
}

func (n *NewTransaction) UnmarshalJSON(data []byte) error {
	type plain NewTransaction
	aux := struct {
		*plain
		Date json.RawMessage `json:"date"`
	}{plain: (*plain)(n)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	date, err := decodeDate(aux.Date)
	if err != nil {
		return err
	}
	n.Date = date
	return nil
}

// Build stamps the payload with an id and audit timestamps.
func (n NewTransaction) Build(id string, now time.Time) Transaction {
	return Transaction{
		ID:           id,
		AccountID:    n.AccountID,
		CategoryID:   n.CategoryID,
		Amount:       NormalizeAmount(n.Amount),
		Type:         n.Type,
		Description:  n.Description,
		Date:         NormalizeTime(n.Date),
		ReceiptImage: n.ReceiptImage,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// Normalized returns a copy with every time and amount in storage precision.
func (t Transaction) Normalized() Transaction {
	t.Amount = NormalizeAmount(t.Amount)
	t.Date = NormalizeTime(t.Date)
	t.CreatedAt = NormalizeTime(t.CreatedAt)
	t.UpdatedAt = NormalizeTime(t.UpdatedAt)
	return t
}

// SignedAmount returns Amount negated for expenses.
func (t Transaction) SignedAmount() decimal.Decimal {
	if t.Type == TransactionTypeExpense {
		return t.Amount.Abs().Neg()
	}
	return t.Amount.Abs()
}

// NewerFirst orders by date, then creation stamp, then id, all descending.
// Both backends use it so ties resolve identically.
func NewerFirst(a, b Transaction) bool {
	if !a.Date.Equal(b.Date) {
		return a.Date.After(b.Date)
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.ID > b.ID
}
