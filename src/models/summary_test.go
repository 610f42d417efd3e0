package models

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSummarize(t *testing.T) {
	acc := Account{ID: "a1", Currency: "USD", InitialBalance: decimal.NewFromInt(1000)}
	day := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	txs := []Transaction{
		{ID: "t1", AccountID: "a1", CategoryID: "salary", Type: TransactionTypeIncome, Amount: decimal.RequireFromString("2500"), Date: day},
		{ID: "t2", AccountID: "a1", CategoryID: "food", Type: TransactionTypeExpense, Amount: decimal.RequireFromString("12.50"), Date: day},
		{ID: "t3", AccountID: "a1", CategoryID: "food", Type: TransactionTypeExpense, Amount: decimal.RequireFromString("7.50"), Date: day},
		{ID: "t4", AccountID: "other", CategoryID: "food", Type: TransactionTypeExpense, Amount: decimal.RequireFromString("99"), Date: day},
	}

	s := Summarize(acc, txs)

	assert.Equal(t, "2500", s.Income.String())
	assert.Equal(t, "20", s.Expense.String())
	assert.Equal(t, "2480", s.Net.String())
	assert.Equal(t, "3480", s.Balance.String())
	assert.Equal(t, 3, s.Count)
	require.Len(t, s.ByCategory, 2)
	assert.Equal(t, "salary", s.ByCategory[0].CategoryID)
	assert.Equal(t, "food", s.ByCategory[1].CategoryID)
	assert.Equal(t, 2, s.ByCategory[1].Count)
	assert.Equal(t, "$3,480.00", s.BalanceDisplay)
}

func TestSummarizeEmpty(t *testing.T) {
	acc := Account{ID: "a1", Currency: "EUR", InitialBalance: decimal.RequireFromString("10.5")}

	s := Summarize(acc, nil)

	assert.True(t, s.Income.IsZero())
	assert.True(t, s.Expense.IsZero())
	assert.Equal(t, "10.5", s.Balance.String())
	assert.Empty(t, s.ByCategory)
}

func TestFormatMoneyUnknownCurrency(t *testing.T) {
	assert.Equal(t, "12.30 POINTS", FormatMoney(decimal.RequireFromString("12.3"), "POINTS"))
	assert.Equal(t, "5.00", FormatMoney(decimal.NewFromInt(5), ""))
}

func TestSignedAmount(t *testing.T) {
	income := Transaction{Type: TransactionTypeIncome, Amount: decimal.NewFromInt(5)}
	expense := Transaction{Type: TransactionTypeExpense, Amount: decimal.NewFromInt(5)}

	assert.Equal(t, "5", income.SignedAmount().String())
	assert.Equal(t, "-5", expense.SignedAmount().String())
}
