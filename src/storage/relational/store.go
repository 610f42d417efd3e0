// Package relational implements the ledger backend on an embedded SQLite
// engine with declared foreign keys.
package relational

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/username/easyledger/backend/src/database"
	"github.com/username/easyledger/backend/src/logger"
	"github.com/username/easyledger/backend/src/models"
	"github.com/username/easyledger/backend/src/storage"
)

const (
	accountColumns     = "id, name, currency, initialBalance, isDefault, createdAt, updatedAt"
	categoryColumns    = "id, name, icon, color, type, isSystem, createdAt"
	transactionColumns = "id, accountId, categoryId, amount, type, description, date, receiptImage, createdAt, updatedAt"

	insertAccountSQL     = `INSERT INTO accounts (` + accountColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?)`
	insertCategorySQL    = `INSERT INTO categories (` + categoryColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?)`
	insertTransactionSQL = `INSERT INTO transactions (` + transactionColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
)

// Store is the relational backend. All statements are parameterized.
type Store struct {
	db   *sql.DB
	name string

	newID func() string
	now   func() time.Time
}

// New wraps an open connection. name identifies the database in migration
// bookkeeping and logs.
func New(db *sql.DB, name string) *Store {
	return &Store{
		db:    db,
		name:  name,
		newID: func() string { return uuid.New().String() },
		now:   models.Now,
	}
}

// Open connects to the SQLite file at path and wraps it in a Store.
func Open(path string) (*Store, error) {
	db, err := database.Open(path)
	if err != nil {
		return nil, storage.BackendError("open database", err)
	}
	return New(db, path), nil
}

var _ storage.Adapter = (*Store)(nil)

func (s *Store) Kind() string { return "relational" }

func (s *Store) Close() error {
	return s.db.Close()
}

// queryer is satisfied by *sql.DB and *sql.Tx.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// withTx runs fn inside a database transaction, committing on success.
func (s *Store) withTx(ctx context.Context, op string, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storage.BackendError(op+": begin", err)
	}
	committed := false
	defer func() {
		if !committed {
			if rbErr := tx.Rollback(); rbErr != nil && rbErr != sql.ErrTxDone {
				logger.L.Error("Error rolling back DB transaction", "op", op, "rollbackError", rbErr)
			}
		}
	}()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return storage.BackendError(op+": commit", err)
	}
	committed = true
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullableString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

// Initialize applies the schema and seeds the system categories on an empty
// categories table.
func (s *Store) Initialize(ctx context.Context) error {
	if err := database.RunMigrations(s.db, s.name); err != nil {
		logger.FromContext(ctx).Error("Failed to initialize SQLite database", "error", err)
		return storage.BackendError("initialize schema", err)
	}

	return s.withTx(ctx, "seed categories", func(tx *sql.Tx) error {
		var count int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM categories`).Scan(&count); err != nil {
			return storage.BackendError("count categories", err)
		}
		if count > 0 {
			return nil
		}
		now := s.now()
		for _, seed := range storage.SystemCategories() {
			if err := insertCategory(ctx, tx, seed.Build(s.newID(), now)); err != nil {
				return err
			}
		}
		logger.FromContext(ctx).Info("Seeded system categories", "backend", s.Kind(), "count", len(storage.SystemCategories()))
		return nil
	})
}

func insertAccount(ctx context.Context, q queryer, a models.Account) error {
	_, err := q.ExecContext(ctx, insertAccountSQL,
		a.ID, a.Name, a.Currency, a.InitialBalance.InexactFloat64(), boolToInt(a.IsDefault),
		models.FormatTime(a.CreatedAt), models.FormatTime(a.UpdatedAt))
	return storage.BackendError("insert account", err)
}

func insertCategory(ctx context.Context, q queryer, c models.Category) error {
	_, err := q.ExecContext(ctx, insertCategorySQL,
		c.ID, c.Name, c.Icon, c.Color, string(c.Type), boolToInt(c.IsSystem), models.FormatTime(c.CreatedAt))
	return storage.BackendError("insert category", err)
}

func insertTransaction(ctx context.Context, q queryer, t models.Transaction) error {
	_, err := q.ExecContext(ctx, insertTransactionSQL,
		t.ID, t.AccountID, t.CategoryID, t.Amount.InexactFloat64(), string(t.Type), t.Description,
		models.FormatTime(t.Date), nullableString(t.ReceiptImage),
		models.FormatTime(t.CreatedAt), models.FormatTime(t.UpdatedAt))
	return storage.BackendError("insert transaction", err)
}

func (s *Store) CreateAccount(ctx context.Context, in models.NewAccount) (models.Account, error) {
	account := in.Build(s.newID(), s.now())
	if err := insertAccount(ctx, s.db, account); err != nil {
		return models.Account{}, err
	}
	logger.FromContext(ctx).Debug("Account created", "backend", s.Kind(), "accountID", account.ID)
	return account, nil
}

func (s *Store) GetAccounts(ctx context.Context) ([]models.Account, error) {
	return queryAccounts(ctx, s.db)
}

func (s *Store) UpdateAccount(ctx context.Context, a models.Account) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE accounts SET name = ?, currency = ?, initialBalance = ?, isDefault = ?, updatedAt = ? WHERE id = ?`,
		a.Name, a.Currency, a.InitialBalance.InexactFloat64(), boolToInt(a.IsDefault), models.FormatTime(s.now()), a.ID)
	return storage.BackendError("update account", err)
}

// DeleteAccount relies on the ON DELETE CASCADE foreign key to remove the
// account's transactions in the same statement.
func (s *Store) DeleteAccount(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM accounts WHERE id = ?`, id)
	if err != nil {
		return storage.BackendError("delete account", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		logger.FromContext(ctx).Debug("Account deleted", "backend", s.Kind(), "accountID", id)
	}
	return nil
}

// checkReferences reports ErrInvalidReference instead of leaving the
// failure to the engine's foreign key error, so both backends agree.
func checkReferences(ctx context.Context, q queryer, accountID, categoryID string) error {
	var accountFound, categoryFound bool
	err := q.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM accounts WHERE id = ?), EXISTS(SELECT 1 FROM categories WHERE id = ?)`,
		accountID, categoryID).Scan(&accountFound, &categoryFound)
	if err != nil {
		return storage.BackendError("check references", err)
	}
	if !accountFound || !categoryFound {
		return fmt.Errorf("%w: account %q (found=%t), category %q (found=%t)",
			storage.ErrInvalidReference, accountID, accountFound, categoryID, categoryFound)
	}
	return nil
}

func (s *Store) CreateTransaction(ctx context.Context, in models.NewTransaction) (models.Transaction, error) {
	created := in.Build(s.newID(), s.now())
	err := s.withTx(ctx, "create transaction", func(tx *sql.Tx) error {
		if err := checkReferences(ctx, tx, created.AccountID, created.CategoryID); err != nil {
			return err
		}
		return insertTransaction(ctx, tx, created)
	})
	if err != nil {
		return models.Transaction{}, err
	}
	logger.FromContext(ctx).Debug("Transaction created", "backend", s.Kind(), "transactionID", created.ID, "accountID", created.AccountID)
	return created, nil
}

// buildTransactionQuery pushes every filter, the ordering and the page into
// SQL. Values only ever travel as bind parameters.
func buildTransactionQuery(accountID string, opts *models.QueryOptions) (string, []any) {
	var b strings.Builder
	b.WriteString(`SELECT ` + transactionColumns + ` FROM transactions WHERE accountId = ?`)
	args := []any{accountID}

	if opts != nil {
		if opts.StartDate != nil {
			b.WriteString(` AND date >= ?`)
			args = append(args, models.FormatTime(*opts.StartDate))
		}
		if opts.EndDate != nil {
			b.WriteString(` AND date <= ?`)
			args = append(args, models.FormatTime(*opts.EndDate))
		}
		if opts.Type != "" {
			b.WriteString(` AND type = ?`)
			args = append(args, string(opts.Type))
		}
		if opts.CategoryID != "" {
			b.WriteString(` AND categoryId = ?`)
			args = append(args, opts.CategoryID)
		}
	}

	b.WriteString(` ORDER BY date DESC, createdAt DESC, id DESC`)

	if opts != nil && opts.Limit > 0 {
		b.WriteString(` LIMIT ?`)
		args = append(args, opts.Limit)
		if opts.Offset > 0 {
			b.WriteString(` OFFSET ?`)
			args = append(args, opts.Offset)
		}
	}
	return b.String(), args
}

func (s *Store) GetTransactions(ctx context.Context, accountID string, opts *models.QueryOptions) ([]models.Transaction, error) {
	query, args := buildTransactionQuery(accountID, opts)
	return queryTransactions(ctx, s.db, query, args...)
}

func (s *Store) UpdateTransaction(ctx context.Context, t models.Transaction) error {
	t = t.Normalized()
	return s.withTx(ctx, "update transaction", func(tx *sql.Tx) error {
		var exists bool
		if err := tx.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM transactions WHERE id = ?)`, t.ID).Scan(&exists); err != nil {
			return storage.BackendError("lookup transaction", err)
		}
		if !exists {
			logger.FromContext(ctx).Debug("UpdateTransaction: unknown id, nothing to do", "transactionID", t.ID)
			return nil
		}
		if err := checkReferences(ctx, tx, t.AccountID, t.CategoryID); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx,
			`UPDATE transactions SET accountId = ?, categoryId = ?, amount = ?, type = ?, description = ?, date = ?, receiptImage = ?, updatedAt = ? WHERE id = ?`,
			t.AccountID, t.CategoryID, t.Amount.InexactFloat64(), string(t.Type), t.Description,
			models.FormatTime(t.Date), nullableString(t.ReceiptImage), models.FormatTime(s.now()), t.ID)
		return storage.BackendError("update transaction", err)
	})
}

func (s *Store) DeleteTransaction(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM transactions WHERE id = ?`, id)
	return storage.BackendError("delete transaction", err)
}

func (s *Store) CreateCategory(ctx context.Context, in models.NewCategory) (models.Category, error) {
	category := in.Build(s.newID(), s.now())
	err := s.withTx(ctx, "create category", func(tx *sql.Tx) error {
		var exists bool
		if err := tx.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM categories WHERE id = ?)`, category.ID).Scan(&exists); err != nil {
			return storage.BackendError("lookup category", err)
		}
		if exists {
			return fmt.Errorf("%w: category %q", storage.ErrConflict, category.ID)
		}
		return insertCategory(ctx, tx, category)
	})
	if err != nil {
		return models.Category{}, err
	}
	return category, nil
}

func (s *Store) GetCategories(ctx context.Context) ([]models.Category, error) {
	return queryCategories(ctx, s.db)
}

// ExportData reads the three tables inside one read transaction so the
// snapshot is consistent.
func (s *Store) ExportData(ctx context.Context) (models.BackupData, error) {
	var backup models.BackupData
	err := s.withTx(ctx, "export data", func(tx *sql.Tx) error {
		accounts, err := queryAccounts(ctx, tx)
		if err != nil {
			return err
		}
		categories, err := queryCategories(ctx, tx)
		if err != nil {
			return err
		}
		transactions, err := queryTransactions(ctx, tx, `SELECT `+transactionColumns+` FROM transactions ORDER BY rowid`)
		if err != nil {
			return err
		}
		backup = models.NewBackup(accounts, categories, transactions, s.now())
		return nil
	})
	return backup, err
}

func clearTables(ctx context.Context, q queryer) error {
	for _, stmt := range []string{
		`DELETE FROM transactions`,
		`DELETE FROM accounts`,
		`DELETE FROM categories`,
	} {
		if _, err := q.ExecContext(ctx, stmt); err != nil {
			return storage.BackendError("clear tables", err)
		}
	}
	return nil
}

// ImportData replaces the dataset atomically: clear and insert happen in one
// database transaction.
func (s *Store) ImportData(ctx context.Context, data models.BackupData) error {
	if err := data.Validate(); err != nil {
		return err
	}
	data = data.Normalized()

	err := s.withTx(ctx, "import data", func(tx *sql.Tx) error {
		if err := clearTables(ctx, tx); err != nil {
			return err
		}
		for _, a := range data.Accounts {
			if err := insertAccount(ctx, tx, a); err != nil {
				return err
			}
		}
		for _, c := range data.Categories {
			if err := insertCategory(ctx, tx, c); err != nil {
				return err
			}
		}
		for _, t := range data.Transactions {
			if err := insertTransaction(ctx, tx, t); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	logger.FromContext(ctx).Info("Backup imported", "backend", s.Kind(),
		"accounts", len(data.Accounts), "categories", len(data.Categories), "transactions", len(data.Transactions))
	return nil
}

func (s *Store) ClearData(ctx context.Context) error {
	if err := s.withTx(ctx, "clear data", func(tx *sql.Tx) error { return clearTables(ctx, tx) }); err != nil {
		return err
	}
	logger.FromContext(ctx).Info("All data cleared", "backend", s.Kind())
	return nil
}
