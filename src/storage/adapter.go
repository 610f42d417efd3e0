// Package storage defines the contract every ledger backend implements.
package storage

import (
	"context"

	"github.com/username/easyledger/backend/src/models"
)

// Adapter is the capability set shared by the blob and relational backends.
//
// Update and delete calls referencing an unknown id are no-ops, not errors.
// DeleteAccount removes the account's transactions on every backend.
// ImportData replaces the entire dataset.
type Adapter interface {
	// Initialize prepares storage and seeds SystemCategories when no
	// category exists. Calling it again has no further effect.
	Initialize(ctx context.Context) error

	CreateAccount(ctx context.Context, account models.NewAccount) (models.Account, error)
	GetAccounts(ctx context.Context) ([]models.Account, error)
	UpdateAccount(ctx context.Context, account models.Account) error
	DeleteAccount(ctx context.Context, id string) error

	CreateTransaction(ctx context.Context, tx models.NewTransaction) (models.Transaction, error)
	GetTransactions(ctx context.Context, accountID string, opts *models.QueryOptions) ([]models.Transaction, error)
	UpdateTransaction(ctx context.Context, tx models.Transaction) error
	DeleteTransaction(ctx context.Context, id string) error

	CreateCategory(ctx context.Context, category models.NewCategory) (models.Category, error)
	GetCategories(ctx context.Context) ([]models.Category, error)

	ExportData(ctx context.Context) (models.BackupData, error)
	ImportData(ctx context.Context, data models.BackupData) error
	ClearData(ctx context.Context) error

	// Kind names the backend, for logs and diagnostics.
	Kind() string
	Close() error
}
