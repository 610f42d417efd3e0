// Package blob implements the ledger backend that keeps each collection as a
// single serialized document in a key-value blob store.
package blob

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/username/easyledger/backend/src/logger"
	"github.com/username/easyledger/backend/src/models"
	"github.com/username/easyledger/backend/src/storage"
)

const (
	accountsKey     = "easyledger_accounts"
	transactionsKey = "easyledger_transactions"
	categoriesKey   = "easyledger_categories"
)

// Store is the blob backend. Every read loads a whole document and every
// write rewrites it. Each collection has its own mutex around the
// read-modify-write cycle; operations spanning several collections lock them
// in the order accounts, categories, transactions.
type Store struct {
	kv KV

	accountsMu     sync.Mutex
	categoriesMu   sync.Mutex
	transactionsMu sync.Mutex

	newID func() string
	now   func() time.Time
}

// New returns a blob store persisting through kv.
func New(kv KV) *Store {
	return &Store{
		kv:    kv,
		newID: func() string { return uuid.New().String() },
		now:   models.Now,
	}
}

var _ storage.Adapter = (*Store)(nil)

func (s *Store) Kind() string { return "blob" }

// Close releases the KV when it supports it.
func (s *Store) Close() error {
	if c, ok := s.kv.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

func load[T any](kv KV, key string) ([]T, error) {
	raw, found, err := kv.Get(key)
	if err != nil {
		return nil, storage.BackendError("read "+key, err)
	}
	items := []T{}
	if !found || len(raw) == 0 {
		return items, nil
	}
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, storage.BackendError("decode "+key, err)
	}
	if items == nil {
		items = []T{}
	}
	return items, nil
}

func encode[T any](key string, items []T) (docWrite, error) {
	if items == nil {
		items = []T{}
	}
	raw, err := json.Marshal(items)
	if err != nil {
		return docWrite{}, storage.BackendError("encode "+key, err)
	}
	return docWrite{key: key, value: raw}, nil
}

func save[T any](kv KV, key string, items []T) error {
	w, err := encode(key, items)
	if err != nil {
		return err
	}
	return storage.BackendError("write "+key, kv.Set(w.key, w.value))
}

// docWrite replaces one document; a nil value removes the key.
type docWrite struct {
	key   string
	value []byte
}

// commit applies writes in order. When one fails the documents already
// written are put back to their previous contents before the error is
// returned.
func (s *Store) commit(writes ...docWrite) error {
	type previous struct {
		value []byte
		found bool
	}
	prev := make([]previous, len(writes))
	for i, w := range writes {
		v, found, err := s.kv.Get(w.key)
		if err != nil {
			return storage.BackendError("read "+w.key, err)
		}
		prev[i] = previous{value: v, found: found}
	}

	for i, w := range writes {
		var err error
		if w.value == nil {
			err = s.kv.Remove(w.key)
		} else {
			err = s.kv.Set(w.key, w.value)
		}
		if err == nil {
			continue
		}
		for j := i - 1; j >= 0; j-- {
			var rbErr error
			if prev[j].found {
				rbErr = s.kv.Set(writes[j].key, prev[j].value)
			} else {
				rbErr = s.kv.Remove(writes[j].key)
			}
			if rbErr != nil {
				logger.L.Error("Failed to restore blob document after partial write", "key", writes[j].key, "error", rbErr)
			}
		}
		return storage.BackendError("write "+w.key, err)
	}
	return nil
}

func (s *Store) Initialize(ctx context.Context) error {
	s.categoriesMu.Lock()
	defer s.categoriesMu.Unlock()

	categories, err := load[models.Category](s.kv, categoriesKey)
	if err != nil {
		return err
	}
	if len(categories) > 0 {
		return nil
	}

	now := s.now()
	for _, seed := range storage.SystemCategories() {
		categories = append(categories, seed.Build(s.newID(), now))
	}
	if err := save(s.kv, categoriesKey, categories); err != nil {
		return err
	}
	logger.FromContext(ctx).Info("Seeded system categories", "backend", s.Kind(), "count", len(categories))
	return nil
}

func (s *Store) CreateAccount(ctx context.Context, in models.NewAccount) (models.Account, error) {
	s.accountsMu.Lock()
	defer s.accountsMu.Unlock()

	accounts, err := load[models.Account](s.kv, accountsKey)
	if err != nil {
		return models.Account{}, err
	}
	account := in.Build(s.newID(), s.now())
	accounts = append(accounts, account)
	if err := save(s.kv, accountsKey, accounts); err != nil {
		return models.Account{}, err
	}
	logger.FromContext(ctx).Debug("Account created", "backend", s.Kind(), "accountID", account.ID)
	return account, nil
}

func (s *Store) GetAccounts(ctx context.Context) ([]models.Account, error) {
	s.accountsMu.Lock()
	defer s.accountsMu.Unlock()
	return load[models.Account](s.kv, accountsKey)
}

func (s *Store) UpdateAccount(ctx context.Context, account models.Account) error {
	s.accountsMu.Lock()
	defer s.accountsMu.Unlock()

	accounts, err := load[models.Account](s.kv, accountsKey)
	if err != nil {
		return err
	}
	for i := range accounts {
		if accounts[i].ID != account.ID {
			continue
		}
		updated := account.Normalized()
		updated.CreatedAt = accounts[i].CreatedAt
		updated.UpdatedAt = s.now()
		accounts[i] = updated
		return save(s.kv, accountsKey, accounts)
	}
	logger.FromContext(ctx).Debug("UpdateAccount: unknown id, nothing to do", "accountID", account.ID)
	return nil
}

// DeleteAccount removes the account and, in the same commit, every
// transaction it owns.
func (s *Store) DeleteAccount(ctx context.Context, id string) error {
	s.accountsMu.Lock()
	defer s.accountsMu.Unlock()
	s.transactionsMu.Lock()
	defer s.transactionsMu.Unlock()

	accounts, err := load[models.Account](s.kv, accountsKey)
	if err != nil {
		return err
	}
	transactions, err := load[models.Transaction](s.kv, transactionsKey)
	if err != nil {
		return err
	}

	keptAccounts := accounts[:0:0]
	for _, a := range accounts {
		if a.ID != id {
			keptAccounts = append(keptAccounts, a)
		}
	}
	keptTransactions := transactions[:0:0]
	for _, tx := range transactions {
		if tx.AccountID != id {
			keptTransactions = append(keptTransactions, tx)
		}
	}
	if len(keptAccounts) == len(accounts) && len(keptTransactions) == len(transactions) {
		return nil
	}

	accountsDoc, err := encode(accountsKey, keptAccounts)
	if err != nil {
		return err
	}
	transactionsDoc, err := encode(transactionsKey, keptTransactions)
	if err != nil {
		return err
	}
	if err := s.commit(accountsDoc, transactionsDoc); err != nil {
		return err
	}
	logger.FromContext(ctx).Debug("Account deleted", "backend", s.Kind(), "accountID", id,
		"cascadedTransactions", len(transactions)-len(keptTransactions))
	return nil
}

// checkReferences must run with accountsMu and categoriesMu held.
func (s *Store) checkReferences(accountID, categoryID string) error {
	accounts, err := load[models.Account](s.kv, accountsKey)
	if err != nil {
		return err
	}
	categories, err := load[models.Category](s.kv, categoriesKey)
	if err != nil {
		return err
	}
	accountFound, categoryFound := false, false
	for _, a := range accounts {
		if a.ID == accountID {
			accountFound = true
			break
		}
	}
	for _, c := range categories {
		if c.ID == categoryID {
			categoryFound = true
			break
		}
	}
	if !accountFound || !categoryFound {
		return fmt.Errorf("%w: account %q (found=%t), category %q (found=%t)",
			storage.ErrInvalidReference, accountID, accountFound, categoryID, categoryFound)
	}
	return nil
}

func (s *Store) CreateTransaction(ctx context.Context, in models.NewTransaction) (models.Transaction, error) {
	s.accountsMu.Lock()
	defer s.accountsMu.Unlock()
	s.categoriesMu.Lock()
	defer s.categoriesMu.Unlock()
	s.transactionsMu.Lock()
	defer s.transactionsMu.Unlock()

	if err := s.checkReferences(in.AccountID, in.CategoryID); err != nil {
		return models.Transaction{}, err
	}
	transactions, err := load[models.Transaction](s.kv, transactionsKey)
	if err != nil {
		return models.Transaction{}, err
	}
	tx := in.Build(s.newID(), s.now())
	transactions = append(transactions, tx)
	if err := save(s.kv, transactionsKey, transactions); err != nil {
		return models.Transaction{}, err
	}
	logger.FromContext(ctx).Debug("Transaction created", "backend", s.Kind(), "transactionID", tx.ID, "accountID", tx.AccountID)
	return tx, nil
}

// GetTransactions filters, sorts and paginates in memory after loading the
// whole transactions document.
func (s *Store) GetTransactions(ctx context.Context, accountID string, opts *models.QueryOptions) ([]models.Transaction, error) {
	s.transactionsMu.Lock()
	defer s.transactionsMu.Unlock()

	transactions, err := load[models.Transaction](s.kv, transactionsKey)
	if err != nil {
		return nil, err
	}
	return opts.Apply(transactions, accountID), nil
}

func (s *Store) UpdateTransaction(ctx context.Context, tx models.Transaction) error {
	s.accountsMu.Lock()
	defer s.accountsMu.Unlock()
	s.categoriesMu.Lock()
	defer s.categoriesMu.Unlock()
	s.transactionsMu.Lock()
	defer s.transactionsMu.Unlock()

	transactions, err := load[models.Transaction](s.kv, transactionsKey)
	if err != nil {
		return err
	}
	for i := range transactions {
		if transactions[i].ID != tx.ID {
			continue
		}
		if err := s.checkReferences(tx.AccountID, tx.CategoryID); err != nil {
			return err
		}
		updated := tx.Normalized()
		updated.CreatedAt = transactions[i].CreatedAt
		updated.UpdatedAt = s.now()
		transactions[i] = updated
		return save(s.kv, transactionsKey, transactions)
	}
	logger.FromContext(ctx).Debug("UpdateTransaction: unknown id, nothing to do", "transactionID", tx.ID)
	return nil
}

func (s *Store) DeleteTransaction(ctx context.Context, id string) error {
	s.transactionsMu.Lock()
	defer s.transactionsMu.Unlock()

	transactions, err := load[models.Transaction](s.kv, transactionsKey)
	if err != nil {
		return err
	}
	kept := transactions[:0:0]
	for _, tx := range transactions {
		if tx.ID != id {
			kept = append(kept, tx)
		}
	}
	if len(kept) == len(transactions) {
		return nil
	}
	return save(s.kv, transactionsKey, kept)
}

func (s *Store) CreateCategory(ctx context.Context, in models.NewCategory) (models.Category, error) {
	s.categoriesMu.Lock()
	defer s.categoriesMu.Unlock()

	categories, err := load[models.Category](s.kv, categoriesKey)
	if err != nil {
		return models.Category{}, err
	}
	category := in.Build(s.newID(), s.now())
	for _, c := range categories {
		if c.ID == category.ID {
			return models.Category{}, fmt.Errorf("%w: category %q", storage.ErrConflict, category.ID)
		}
	}
	categories = append(categories, category)
	if err := save(s.kv, categoriesKey, categories); err != nil {
		return models.Category{}, err
	}
	return category, nil
}

func (s *Store) GetCategories(ctx context.Context) ([]models.Category, error) {
	s.categoriesMu.Lock()
	defer s.categoriesMu.Unlock()
	return load[models.Category](s.kv, categoriesKey)
}

func (s *Store) lockAll() func() {
	s.accountsMu.Lock()
	s.categoriesMu.Lock()
	s.transactionsMu.Lock()
	return func() {
		s.transactionsMu.Unlock()
		s.categoriesMu.Unlock()
		s.accountsMu.Unlock()
	}
}

func (s *Store) ExportData(ctx context.Context) (models.BackupData, error) {
	defer s.lockAll()()

	accounts, err := load[models.Account](s.kv, accountsKey)
	if err != nil {
		return models.BackupData{}, err
	}
	categories, err := load[models.Category](s.kv, categoriesKey)
	if err != nil {
		return models.BackupData{}, err
	}
	transactions, err := load[models.Transaction](s.kv, transactionsKey)
	if err != nil {
		return models.BackupData{}, err
	}
	return models.NewBackup(accounts, categories, transactions, s.now()), nil
}

// ImportData validates the snapshot and then replaces all three documents.
func (s *Store) ImportData(ctx context.Context, data models.BackupData) error {
	if err := data.Validate(); err != nil {
		return err
	}
	data = data.Normalized()

	defer s.lockAll()()

	categoriesDoc, err := encode(categoriesKey, data.Categories)
	if err != nil {
		return err
	}
	accountsDoc, err := encode(accountsKey, data.Accounts)
	if err != nil {
		return err
	}
	transactionsDoc, err := encode(transactionsKey, data.Transactions)
	if err != nil {
		return err
	}
	if err := s.commit(categoriesDoc, accountsDoc, transactionsDoc); err != nil {
		return err
	}
	logger.FromContext(ctx).Info("Backup imported", "backend", s.Kind(),
		"accounts", len(data.Accounts), "categories", len(data.Categories), "transactions", len(data.Transactions))
	return nil
}

func (s *Store) ClearData(ctx context.Context) error {
	defer s.lockAll()()

	if err := s.commit(
		docWrite{key: transactionsKey},
		docWrite{key: accountsKey},
		docWrite{key: categoriesKey},
	); err != nil {
		return err
	}
	logger.FromContext(ctx).Info("All data cleared", "backend", s.Kind())
	return nil
}
