package models

import (
	"sort"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// CategoryTotal is the per-category slice of a Summary.
type CategoryTotal struct {
	CategoryID string          `json:"categoryId"`
	Type       TransactionType `json:"type"`
	Total      decimal.Decimal `json:"total"`
	Count      int             `json:"count"`
}

// Summary aggregates an account's transactions over a period.
type Summary struct {
	AccountID      string          `json:"accountId"`
	Currency       string          `json:"currency"`
	Income         decimal.Decimal `json:"income"`
	Expense        decimal.Decimal `json:"expense"`
	Net            decimal.Decimal `json:"net"`     // Income - Expense
	Balance        decimal.Decimal `json:"balance"` // InitialBalance + Net
	Count          int             `json:"count"`
	ByCategory     []CategoryTotal `json:"byCategory"`
	BalanceDisplay string          `json:"balanceDisplay"`
}

// Summarize folds txs into a Summary for account. Transactions owned by
// other accounts are ignored.
func Summarize(account Account, txs []Transaction) Summary {
	s := Summary{
		AccountID:  account.ID,
		Currency:   account.Currency,
		Income:     decimal.Zero,
		Expense:    decimal.Zero,
		ByCategory: []CategoryTotal{},
	}
	byCategory := make(map[string]*CategoryTotal)
	for _, tx := range txs {
		if tx.AccountID != account.ID {
			continue
		}
		amount := tx.Amount.Abs()
		switch tx.Type {
		case TransactionTypeIncome:
			s.Income = s.Income.Add(amount)
		case TransactionTypeExpense:
			s.Expense = s.Expense.Add(amount)
		default:
			continue
		}
		s.Count++

		ct, ok := byCategory[tx.CategoryID]
		if !ok {
			ct = &CategoryTotal{CategoryID: tx.CategoryID, Type: tx.Type, Total: decimal.Zero}
			byCategory[tx.CategoryID] = ct
		}
		ct.Total = ct.Total.Add(amount)
		ct.Count++
	}
	s.Net = s.Income.Sub(s.Expense)
	s.Balance = account.InitialBalance.Add(s.Net)
	s.BalanceDisplay = FormatMoney(s.Balance, account.Currency)

	for _, ct := range byCategory {
		s.ByCategory = append(s.ByCategory, *ct)
	}
	sort.Slice(s.ByCategory, func(i, j int) bool {
		if !s.ByCategory[i].Total.Equal(s.ByCategory[j].Total) {
			return s.ByCategory[i].Total.GreaterThan(s.ByCategory[j].Total)
		}
		return s.ByCategory[i].CategoryID < s.ByCategory[j].CategoryID
	})
	return s
}

// FormatMoney renders amount in the currency's conventional format when the
// code is known to go-money, and as "<amount> <code>" otherwise.
func FormatMoney(amount decimal.Decimal, code string) string {
	cur := money.GetCurrency(code)
	if cur == nil {
		if code == "" {
			return amount.StringFixed(2)
		}
		return amount.StringFixed(2) + " " + code
	}
	minor := amount.Shift(int32(cur.Fraction)).Round(0)
	return money.New(minor.IntPart(), cur.Code).Display()
}
