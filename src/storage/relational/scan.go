package relational

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/username/easyledger/backend/src/models"
	"github.com/username/easyledger/backend/src/storage"
)

type rowScanner interface {
	Scan(dest ...any) error
}

// timeField pairs a stored time column with its destination.
type timeField struct {
	Name   string
	Raw    string
	Target *time.Time
}

func parseTimes(dst []*timeField) error {
	for _, f := range dst {
		t, err := models.ParseTime(f.Raw)
		if err != nil {
			return fmt.Errorf("parse %s %q: %w", f.Name, f.Raw, err)
		}
		*f.Target = t
	}
	return nil
}

func scanAccount(r rowScanner) (models.Account, error) {
	var (
		a                    models.Account
		isDefault            int
		createdAt, updatedAt string
	)
	if err := r.Scan(&a.ID, &a.Name, &a.Currency, &a.InitialBalance, &isDefault, &createdAt, &updatedAt); err != nil {
		return models.Account{}, err
	}
	a.IsDefault = isDefault != 0
	err := parseTimes([]*timeField{
		{Name: "createdAt", Raw: createdAt, Target: &a.CreatedAt},
		{Name: "updatedAt", Raw: updatedAt, Target: &a.UpdatedAt},
	})
	return a, err
}

func scanCategory(r rowScanner) (models.Category, error) {
	var (
		c         models.Category
		typ       string
		isSystem  int
		createdAt string
	)
	if err := r.Scan(&c.ID, &c.Name, &c.Icon, &c.Color, &typ, &isSystem, &createdAt); err != nil {
		return models.Category{}, err
	}
	c.Type = models.TransactionType(typ)
	c.IsSystem = isSystem != 0
	err := parseTimes([]*timeField{{Name: "createdAt", Raw: createdAt, Target: &c.CreatedAt}})
	return c, err
}

func scanTransaction(r rowScanner) (models.Transaction, error) {
	var (
		t                          models.Transaction
		typ                        string
		date, createdAt, updatedAt string
		receipt                    sql.NullString
	)
	if err := r.Scan(&t.ID, &t.AccountID, &t.CategoryID, &t.Amount, &typ, &t.Description,
		&date, &receipt, &createdAt, &updatedAt); err != nil {
		return models.Transaction{}, err
	}
	t.Type = models.TransactionType(typ)
	if receipt.Valid {
		s := receipt.String
		t.ReceiptImage = &s
	}
	err := parseTimes([]*timeField{
		{Name: "date", Raw: date, Target: &t.Date},
		{Name: "createdAt", Raw: createdAt, Target: &t.CreatedAt},
		{Name: "updatedAt", Raw: updatedAt, Target: &t.UpdatedAt},
	})
	return t, err
}

// collect drains rows through scan. The result is never nil.
func collect[T any](rows *sql.Rows, scan func(rowScanner) (T, error)) ([]T, error) {
	defer rows.Close()
	out := []T{}
	for rows.Next() {
		item, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

func queryAccounts(ctx context.Context, q queryer) ([]models.Account, error) {
	rows, err := q.QueryContext(ctx, `SELECT `+accountColumns+` FROM accounts ORDER BY rowid`)
	if err != nil {
		return nil, storage.BackendError("query accounts", err)
	}
	accounts, err := collect(rows, scanAccount)
	if err != nil {
		return nil, storage.BackendError("scan accounts", err)
	}
	return accounts, nil
}

func queryCategories(ctx context.Context, q queryer) ([]models.Category, error) {
	rows, err := q.QueryContext(ctx, `SELECT `+categoryColumns+` FROM categories ORDER BY rowid`)
	if err != nil {
		return nil, storage.BackendError("query categories", err)
	}
	categories, err := collect(rows, scanCategory)
	if err != nil {
		return nil, storage.BackendError("scan categories", err)
	}
	return categories, nil
}

func queryTransactions(ctx context.Context, q queryer, query string, args ...any) ([]models.Transaction, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storage.BackendError("query transactions", err)
	}
	transactions, err := collect(rows, scanTransaction)
	if err != nil {
		return nil, storage.BackendError("scan transactions", err)
	}
	return transactions, nil
}
