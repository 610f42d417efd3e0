package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Account is a money container (bank account, wallet, card...).
type Account struct {
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	Currency       string          `json:"currency"` // Free-form code, e.g. "USD"
	InitialBalance decimal.Decimal `json:"initialBalance"`
	IsDefault      bool            `json:"isDefault"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
}

// NewAccount is the payload accepted by CreateAccount.
type NewAccount struct {
	Name           string          `json:"name"`
	Currency       string          `json:"currency"`
	InitialBalance decimal.Decimal `json:"initialBalance"`
	IsDefault      bool            `json:"isDefault"`
}

// Build stamps the payload with an id and audit timestamps.
func (n NewAccount) Build(id string, now time.Time) Account {
	return Account{
		ID:             id,
		Name:           n.Name,
		Currency:       n.Currency,
		InitialBalance: NormalizeAmount(n.InitialBalance),
		IsDefault:      n.IsDefault,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// Normalized returns a copy with timestamps and the balance in storage precision.
func (a Account) Normalized() Account {
	a.InitialBalance = NormalizeAmount(a.InitialBalance)
	a.CreatedAt = NormalizeTime(a.CreatedAt)
	a.UpdatedAt = NormalizeTime(a.UpdatedAt)
	return a
}

// PickCurrent selects the default-flagged account, else the first one.
// It returns nil for an empty list.
func PickCurrent(accounts []Account) *Account {
	if len(accounts) == 0 {
		return nil
	}
	for i := range accounts {
		if accounts[i].IsDefault {
			a := accounts[i]
			return &a
		}
	}
	a := accounts[0]
	return &a
}
