// Package storagetest holds the behaviour every storage.Adapter must share.
// Each backend's tests call RunAdapterSuite with a factory for fresh stores.
package storagetest

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/username/easyledger/backend/src/models"
	"github.com/username/easyledger/backend/src/storage"
)

// Factory returns an empty, uninitialized adapter. The suite closes it.
type Factory func(t *testing.T) storage.Adapter

// RunAdapterSuite runs the shared contract against adapters built by newAdapter.
func RunAdapterSuite(t *testing.T, newAdapter Factory) {
	tests := []struct {
		name string
		run  func(t *testing.T, ctx context.Context, a storage.Adapter)
	}{
		{"SeedsSystemCategoriesOnce", testSeedsSystemCategoriesOnce},
		{"CreateAccountRoundTrip", testCreateAccountRoundTrip},
		{"AmountsReturnedAsStored", testAmountsReturnedAsStored},
		{"UpdateAccountKeepsCreatedAt", testUpdateAccountKeepsCreatedAt},
		{"UnknownIDsAreNoOps", testUnknownIDsAreNoOps},
		{"TransactionsFilteredByType", testTransactionsFilteredByType},
		{"TransactionsDateRangeInclusive", testTransactionsDateRangeInclusive},
		{"TransactionsLimitOffset", testTransactionsLimitOffset},
		{"TransactionsTieBreak", testTransactionsTieBreak},
		{"TransactionReferencesValidated", testTransactionReferencesValidated},
		{"UpdateTransaction", testUpdateTransaction},
		{"DeleteAccountCascades", testDeleteAccountCascades},
		{"CreateCategory", testCreateCategory},
		{"ExportClearImportRoundTrip", testExportClearImportRoundTrip},
		{"ImportRejectsInvalidBackup", testImportRejectsInvalidBackup},
		{"ImportReplaces", testImportReplaces},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := newAdapter(t)
			t.Cleanup(func() { _ = a.Close() })
			ctx := context.Background()
			require.NoError(t, a.Initialize(ctx))
			tt.run(t, ctx, a)
		})
	}
}

// Day returns noon UTC on the given day of January 2025.
func Day(d int) time.Time {
	return time.Date(2025, time.January, d, 12, 0, 0, 0, time.UTC)
}

// MustCreateAccount creates an account or fails the test.
func MustCreateAccount(t *testing.T, ctx context.Context, a storage.Adapter, name string, isDefault bool) models.Account {
	t.Helper()
	acc, err := a.CreateAccount(ctx, models.NewAccount{
		Name:           name,
		Currency:       "USD",
		InitialBalance: decimal.NewFromInt(100),
		IsDefault:      isDefault,
	})
	require.NoError(t, err)
	return acc
}

// MustCreateTransaction creates a transaction against a seeded category.
func MustCreateTransaction(t *testing.T, ctx context.Context, a storage.Adapter, accountID string, typ models.TransactionType, amount string, date time.Time) models.Transaction {
	t.Helper()
	categoryID := "food"
	if typ == models.TransactionTypeIncome {
		categoryID = "salary"
	}
	tx, err := a.CreateTransaction(ctx, models.NewTransaction{
		AccountID:   accountID,
		CategoryID:  categoryID,
		Amount:      decimal.RequireFromString(amount),
		Type:        typ,
		Description: "entry " + amount,
		Date:        date,
	})
	require.NoError(t, err)
	return tx
}

func transactionIDs(txs []models.Transaction) []string {
	out := make([]string, 0, len(txs))
	for _, tx := range txs {
		out = append(out, tx.ID)
	}
	return out
}

func testSeedsSystemCategoriesOnce(t *testing.T, ctx context.Context, a storage.Adapter) {
	require.NoError(t, a.Initialize(ctx))

	categories, err := a.GetCategories(ctx)
	require.NoError(t, err)
	require.Len(t, categories, 4)

	counts := map[models.TransactionType]int{}
	for _, c := range categories {
		assert.True(t, c.IsSystem, c.ID)
		assert.NotEmpty(t, c.Icon)
		assert.NotEmpty(t, c.Color)
		counts[c.Type]++
	}
	assert.Equal(t, 3, counts[models.TransactionTypeExpense])
	assert.Equal(t, 1, counts[models.TransactionTypeIncome])
}

func testCreateAccountRoundTrip(t *testing.T, ctx context.Context, a storage.Adapter) {
	created, err := a.CreateAccount(ctx, models.NewAccount{
		Name:           "Test Bank",
		Currency:       "USD",
		InitialBalance: decimal.NewFromInt(1000),
	})
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.False(t, created.CreatedAt.IsZero())
	assert.True(t, created.CreatedAt.Equal(created.UpdatedAt))

	accounts, err := a.GetAccounts(ctx)
	require.NoError(t, err)
	require.Len(t, accounts, 1)
	got := accounts[0]
	assert.Equal(t, created.ID, got.ID)
	assert.Equal(t, "Test Bank", got.Name)
	assert.Equal(t, "USD", got.Currency)
	assert.True(t, decimal.NewFromInt(1000).Equal(got.InitialBalance), got.InitialBalance.String())
	assert.False(t, got.IsDefault)
	assert.True(t, got.CreatedAt.Equal(created.CreatedAt))
	assert.True(t, got.UpdatedAt.Equal(got.CreatedAt))
}

func testAmountsReturnedAsStored(t *testing.T, ctx context.Context, a storage.Adapter) {
	huge := decimal.RequireFromString("12345678901234567.89")
	created, err := a.CreateAccount(ctx, models.NewAccount{Name: "Vault", Currency: "USD", InitialBalance: huge})
	require.NoError(t, err)

	accounts, err := a.GetAccounts(ctx)
	require.NoError(t, err)
	require.Len(t, accounts, 1)
	assert.True(t, created.InitialBalance.Equal(accounts[0].InitialBalance),
		"created %s, read back %s", created.InitialBalance, accounts[0].InitialBalance)
	assert.True(t, models.NormalizeAmount(huge).Equal(accounts[0].InitialBalance))

	tx, err := a.CreateTransaction(ctx, models.NewTransaction{
		AccountID: created.ID, CategoryID: "salary", Amount: huge, Type: models.TransactionTypeIncome, Date: Day(1),
	})
	require.NoError(t, err)
	txs, err := a.GetTransactions(ctx, created.ID, nil)
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.True(t, tx.Amount.Equal(txs[0].Amount), "created %s, read back %s", tx.Amount, txs[0].Amount)

	updated := accounts[0]
	updated.InitialBalance = huge.Add(decimal.RequireFromString("0.01"))
	require.NoError(t, a.UpdateAccount(ctx, updated))
	accounts, err = a.GetAccounts(ctx)
	require.NoError(t, err)
	assert.True(t, models.NormalizeAmount(updated.InitialBalance).Equal(accounts[0].InitialBalance))
}

func testUpdateAccountKeepsCreatedAt(t *testing.T, ctx context.Context, a storage.Adapter) {
	acc := MustCreateAccount(t, ctx, a, "Wallet", false)
	time.Sleep(5 * time.Millisecond)

	acc.Name = "Main wallet"
	acc.IsDefault = true
	acc.InitialBalance = decimal.RequireFromString("12.5")
	require.NoError(t, a.UpdateAccount(ctx, acc))

	accounts, err := a.GetAccounts(ctx)
	require.NoError(t, err)
	require.Len(t, accounts, 1)
	got := accounts[0]
	assert.Equal(t, "Main wallet", got.Name)
	assert.True(t, got.IsDefault)
	assert.Equal(t, "12.5", got.InitialBalance.String())
	assert.True(t, got.CreatedAt.Equal(acc.CreatedAt))
	assert.True(t, got.UpdatedAt.After(acc.CreatedAt))
}

func testUnknownIDsAreNoOps(t *testing.T, ctx context.Context, a storage.Adapter) {
	acc := MustCreateAccount(t, ctx, a, "Cash", false)
	tx := MustCreateTransaction(t, ctx, a, acc.ID, models.TransactionTypeExpense, "5", Day(1))

	ghostAccount := acc
	ghostAccount.ID = "missing-account"
	assert.NoError(t, a.UpdateAccount(ctx, ghostAccount))
	assert.NoError(t, a.DeleteAccount(ctx, "missing-account"))

	ghostTx := tx
	ghostTx.ID = "missing-tx"
	assert.NoError(t, a.UpdateTransaction(ctx, ghostTx))
	assert.NoError(t, a.DeleteTransaction(ctx, "missing-tx"))

	accounts, err := a.GetAccounts(ctx)
	require.NoError(t, err)
	assert.Len(t, accounts, 1)
	txs, err := a.GetTransactions(ctx, acc.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{tx.ID}, transactionIDs(txs))
}

func testTransactionsFilteredByType(t *testing.T, ctx context.Context, a storage.Adapter) {
	acc := MustCreateAccount(t, ctx, a, "Cash", false)
	other := MustCreateAccount(t, ctx, a, "Other", false)
	e1 := MustCreateTransaction(t, ctx, a, acc.ID, models.TransactionTypeExpense, "10", Day(1))
	MustCreateTransaction(t, ctx, a, acc.ID, models.TransactionTypeIncome, "20", Day(2))
	e3 := MustCreateTransaction(t, ctx, a, acc.ID, models.TransactionTypeExpense, "30", Day(3))
	MustCreateTransaction(t, ctx, a, other.ID, models.TransactionTypeExpense, "40", Day(4))

	txs, err := a.GetTransactions(ctx, acc.ID, &models.QueryOptions{Type: models.TransactionTypeExpense})
	require.NoError(t, err)
	assert.Equal(t, []string{e3.ID, e1.ID}, transactionIDs(txs))
	for i, tx := range txs {
		assert.Equal(t, models.TransactionTypeExpense, tx.Type)
		assert.Equal(t, acc.ID, tx.AccountID)
		if i > 0 {
			assert.False(t, tx.Date.After(txs[i-1].Date))
		}
	}

	byCategory, err := a.GetTransactions(ctx, acc.ID, &models.QueryOptions{CategoryID: "salary"})
	require.NoError(t, err)
	require.Len(t, byCategory, 1)
	assert.Equal(t, "20", byCategory[0].Amount.String())
}

func testTransactionsDateRangeInclusive(t *testing.T, ctx context.Context, a storage.Adapter) {
	acc := MustCreateAccount(t, ctx, a, "Cash", false)
	for d := 1; d <= 5; d++ {
		MustCreateTransaction(t, ctx, a, acc.ID, models.TransactionTypeExpense, "1", Day(d))
	}

	start, end := Day(2), Day(4)
	txs, err := a.GetTransactions(ctx, acc.ID, &models.QueryOptions{StartDate: &start, EndDate: &end})
	require.NoError(t, err)
	require.Len(t, txs, 3)
	assert.True(t, txs[0].Date.Equal(Day(4)))
	assert.True(t, txs[2].Date.Equal(Day(2)))
}

func testTransactionsLimitOffset(t *testing.T, ctx context.Context, a storage.Adapter) {
	acc := MustCreateAccount(t, ctx, a, "Cash", false)
	var created []models.Transaction
	for d := 1; d <= 4; d++ {
		created = append(created, MustCreateTransaction(t, ctx, a, acc.ID, models.TransactionTypeExpense, "1", Day(d)))
	}

	page, err := a.GetTransactions(ctx, acc.ID, &models.QueryOptions{Limit: 2, Offset: 1})
	require.NoError(t, err)
	assert.Equal(t, []string{created[2].ID, created[1].ID}, transactionIDs(page))

	all, err := a.GetTransactions(ctx, acc.ID, &models.QueryOptions{Offset: 2})
	require.NoError(t, err)
	assert.Len(t, all, 4, "offset without limit is ignored")

	past, err := a.GetTransactions(ctx, acc.ID, &models.QueryOptions{Limit: 2, Offset: 10})
	require.NoError(t, err)
	assert.Empty(t, past)
}

func testTransactionsTieBreak(t *testing.T, ctx context.Context, a storage.Adapter) {
	acc := MustCreateAccount(t, ctx, a, "Cash", false)
	first := MustCreateTransaction(t, ctx, a, acc.ID, models.TransactionTypeExpense, "1", Day(1))
	time.Sleep(5 * time.Millisecond)
	second := MustCreateTransaction(t, ctx, a, acc.ID, models.TransactionTypeExpense, "2", Day(1))

	txs, err := a.GetTransactions(ctx, acc.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{second.ID, first.ID}, transactionIDs(txs))
}

func testTransactionReferencesValidated(t *testing.T, ctx context.Context, a storage.Adapter) {
	acc := MustCreateAccount(t, ctx, a, "Cash", false)

	_, err := a.CreateTransaction(ctx, models.NewTransaction{
		AccountID: "missing", CategoryID: "food", Type: models.TransactionTypeExpense,
		Amount: decimal.NewFromInt(1), Date: Day(1),
	})
	assert.ErrorIs(t, err, storage.ErrInvalidReference)

	_, err = a.CreateTransaction(ctx, models.NewTransaction{
		AccountID: acc.ID, CategoryID: "missing", Type: models.TransactionTypeExpense,
		Amount: decimal.NewFromInt(1), Date: Day(1),
	})
	assert.ErrorIs(t, err, storage.ErrInvalidReference)

	tx := MustCreateTransaction(t, ctx, a, acc.ID, models.TransactionTypeExpense, "1", Day(1))
	tx.CategoryID = "missing"
	assert.ErrorIs(t, a.UpdateTransaction(ctx, tx), storage.ErrInvalidReference)

	txs, err := a.GetTransactions(ctx, acc.ID, nil)
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, "food", txs[0].CategoryID)
}

func testUpdateTransaction(t *testing.T, ctx context.Context, a storage.Adapter) {
	acc := MustCreateAccount(t, ctx, a, "Cash", false)
	tx := MustCreateTransaction(t, ctx, a, acc.ID, models.TransactionTypeExpense, "9.99", Day(1))
	time.Sleep(5 * time.Millisecond)

	receipt := "receipts/1.png"
	tx.Amount = decimal.RequireFromString("19.99")
	tx.Description = "groceries"
	tx.CategoryID = "shopping"
	tx.ReceiptImage = &receipt
	tx.Date = Day(7)
	require.NoError(t, a.UpdateTransaction(ctx, tx))

	txs, err := a.GetTransactions(ctx, acc.ID, nil)
	require.NoError(t, err)
	require.Len(t, txs, 1)
	got := txs[0]
	assert.Equal(t, "19.99", got.Amount.String())
	assert.Equal(t, "groceries", got.Description)
	assert.Equal(t, "shopping", got.CategoryID)
	require.NotNil(t, got.ReceiptImage)
	assert.Equal(t, receipt, *got.ReceiptImage)
	assert.True(t, got.Date.Equal(Day(7)))
	assert.True(t, got.CreatedAt.Equal(tx.CreatedAt))
	assert.True(t, got.UpdatedAt.After(tx.CreatedAt))

	require.NoError(t, a.DeleteTransaction(ctx, tx.ID))
	txs, err = a.GetTransactions(ctx, acc.ID, nil)
	require.NoError(t, err)
	assert.Empty(t, txs)
}

func testDeleteAccountCascades(t *testing.T, ctx context.Context, a storage.Adapter) {
	doomed := MustCreateAccount(t, ctx, a, "Doomed", false)
	kept := MustCreateAccount(t, ctx, a, "Kept", false)
	for d := 1; d <= 3; d++ {
		MustCreateTransaction(t, ctx, a, doomed.ID, models.TransactionTypeExpense, "1", Day(d))
	}
	keptTx := MustCreateTransaction(t, ctx, a, kept.ID, models.TransactionTypeIncome, "2", Day(1))

	require.NoError(t, a.DeleteAccount(ctx, doomed.ID))

	txs, err := a.GetTransactions(ctx, doomed.ID, nil)
	require.NoError(t, err)
	assert.Empty(t, txs)

	txs, err = a.GetTransactions(ctx, kept.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{keptTx.ID}, transactionIDs(txs))

	backup, err := a.ExportData(ctx)
	require.NoError(t, err)
	assert.Len(t, backup.Accounts, 1)
	assert.Len(t, backup.Transactions, 1)
}

func testCreateCategory(t *testing.T, ctx context.Context, a storage.Adapter) {
	c, err := a.CreateCategory(ctx, models.NewCategory{Name: "Rent", Icon: "home", Color: "#000000", Type: models.TransactionTypeExpense})
	require.NoError(t, err)
	assert.NotEmpty(t, c.ID)
	assert.False(t, c.IsSystem)

	fixed, err := a.CreateCategory(ctx, models.NewCategory{ID: "bonus", Name: "Bonus", Type: models.TransactionTypeIncome})
	require.NoError(t, err)
	assert.Equal(t, "bonus", fixed.ID)

	_, err = a.CreateCategory(ctx, models.NewCategory{ID: "bonus", Name: "Again", Type: models.TransactionTypeIncome})
	assert.ErrorIs(t, err, storage.ErrConflict)

	categories, err := a.GetCategories(ctx)
	require.NoError(t, err)
	assert.Len(t, categories, 6)
}

func testExportClearImportRoundTrip(t *testing.T, ctx context.Context, a storage.Adapter) {
	acc := MustCreateAccount(t, ctx, a, "Cash", true)
	MustCreateTransaction(t, ctx, a, acc.ID, models.TransactionTypeExpense, "12.34", Day(1))
	MustCreateTransaction(t, ctx, a, acc.ID, models.TransactionTypeIncome, "1500", Day(2))

	exported, err := a.ExportData(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.BackupVersion, exported.Version)
	assert.False(t, exported.ExportedAt.IsZero())

	require.NoError(t, a.ClearData(ctx))
	cleared, err := a.ExportData(ctx)
	require.NoError(t, err)
	assert.Empty(t, cleared.Accounts)
	assert.Empty(t, cleared.Categories)
	assert.Empty(t, cleared.Transactions)

	require.NoError(t, a.ImportData(ctx, exported))
	restored, err := a.ExportData(ctx)
	require.NoError(t, err)

	AssertSameDataset(t, exported, restored)
}

func testImportRejectsInvalidBackup(t *testing.T, ctx context.Context, a storage.Adapter) {
	acc := MustCreateAccount(t, ctx, a, "Cash", false)
	before, err := a.ExportData(ctx)
	require.NoError(t, err)

	bad := before
	bad.Version = "9.9"
	assert.ErrorIs(t, a.ImportData(ctx, bad), storage.ErrUnsupportedVersion)

	dangling := models.NewBackup(before.Accounts, before.Categories, []models.Transaction{{
		ID: "t1", AccountID: "nope", CategoryID: "food", Type: models.TransactionTypeExpense, Date: Day(1),
	}}, Day(1))
	assert.ErrorIs(t, a.ImportData(ctx, dangling), storage.ErrInvalidBackup)

	accounts, err := a.GetAccounts(ctx)
	require.NoError(t, err)
	require.Len(t, accounts, 1)
	assert.Equal(t, acc.ID, accounts[0].ID)
}

func testImportReplaces(t *testing.T, ctx context.Context, a storage.Adapter) {
	MustCreateAccount(t, ctx, a, "Old", false)

	snapshot := models.NewBackup(
		[]models.Account{{ID: "acc-1", Name: "Imported", Currency: "EUR", InitialBalance: decimal.NewFromInt(5), CreatedAt: Day(1), UpdatedAt: Day(1)}},
		[]models.Category{{ID: "misc", Name: "Misc", Type: models.TransactionTypeExpense, CreatedAt: Day(1)}},
		[]models.Transaction{{ID: "tx-1", AccountID: "acc-1", CategoryID: "misc", Amount: decimal.NewFromInt(3), Type: models.TransactionTypeExpense, Date: Day(2), CreatedAt: Day(2), UpdatedAt: Day(2)}},
		Day(3),
	)
	require.NoError(t, a.ImportData(ctx, snapshot))

	accounts, err := a.GetAccounts(ctx)
	require.NoError(t, err)
	require.Len(t, accounts, 1)
	assert.Equal(t, "acc-1", accounts[0].ID)

	categories, err := a.GetCategories(ctx)
	require.NoError(t, err)
	require.Len(t, categories, 1)
	assert.Equal(t, "misc", categories[0].ID)

	txs, err := a.GetTransactions(ctx, "acc-1", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"tx-1"}, transactionIDs(txs))
}

// AssertSameDataset compares two snapshots entity by entity, ignoring
// ExportedAt and the representation details of decimals and times.
func AssertSameDataset(t *testing.T, want, got models.BackupData) {
	t.Helper()

	require.Len(t, got.Accounts, len(want.Accounts))
	wantAccounts := map[string]models.Account{}
	for _, a := range want.Accounts {
		wantAccounts[a.ID] = a
	}
	for _, a := range got.Accounts {
		w, ok := wantAccounts[a.ID]
		require.True(t, ok, "unexpected account %s", a.ID)
		assert.Equal(t, w.Name, a.Name)
		assert.Equal(t, w.Currency, a.Currency)
		assert.True(t, w.InitialBalance.Equal(a.InitialBalance))
		assert.Equal(t, w.IsDefault, a.IsDefault)
		assert.True(t, w.CreatedAt.Equal(a.CreatedAt))
		assert.True(t, w.UpdatedAt.Equal(a.UpdatedAt))
	}

	require.Len(t, got.Categories, len(want.Categories))
	wantCategories := map[string]models.Category{}
	for _, c := range want.Categories {
		wantCategories[c.ID] = c
	}
	for _, c := range got.Categories {
		w, ok := wantCategories[c.ID]
		require.True(t, ok, "unexpected category %s", c.ID)
		assert.Equal(t, w.Name, c.Name)
		assert.Equal(t, w.Icon, c.Icon)
		assert.Equal(t, w.Color, c.Color)
		assert.Equal(t, w.Type, c.Type)
		assert.Equal(t, w.IsSystem, c.IsSystem)
		assert.True(t, w.CreatedAt.Equal(c.CreatedAt))
	}

	require.Len(t, got.Transactions, len(want.Transactions))
	wantTxs := map[string]models.Transaction{}
	for _, tx := range want.Transactions {
		wantTxs[tx.ID] = tx
	}
	for _, tx := range got.Transactions {
		w, ok := wantTxs[tx.ID]
		require.True(t, ok, "unexpected transaction %s", tx.ID)
		assert.Equal(t, w.AccountID, tx.AccountID)
		assert.Equal(t, w.CategoryID, tx.CategoryID)
		assert.True(t, w.Amount.Equal(tx.Amount))
		assert.Equal(t, w.Type, tx.Type)
		assert.Equal(t, w.Description, tx.Description)
		assert.True(t, w.Date.Equal(tx.Date))
		assert.Equal(t, w.ReceiptImage, tx.ReceiptImage)
		assert.True(t, w.CreatedAt.Equal(tx.CreatedAt))
		assert.True(t, w.UpdatedAt.Equal(tx.UpdatedAt))
	}
}
