// Package state holds the single in-memory view of the ledger that the
// presentation layer reads, and the actions that keep it in step with the
// storage backend.
package state

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/username/easyledger/backend/src/logger"
	"github.com/username/easyledger/backend/src/models"
	"github.com/username/easyledger/backend/src/storage"
)

// DefaultPageSize bounds the transaction window loaded by Init and
// SetCurrentAccount.
const DefaultPageSize = 50

var ErrUnknownAccount = errors.New("account is not loaded")

// Phase is the coordinator lifecycle: uninitialized, then loading and ready
// alternating for every round-trip after the first Init.
type Phase string

const (
	PhaseUninitialized Phase = "uninitialized"
	PhaseLoading       Phase = "loading"
	PhaseReady         Phase = "ready"
)

// AdapterSource hands out the process-wide backend. *selector.Selector
// satisfies it.
type AdapterSource interface {
	Adapter(ctx context.Context) (storage.Adapter, error)
}

// State is the read-only view exposed to callers. Transactions is the
// window for CurrentAccount, newest first.
type State struct {
	Accounts       []models.Account     `json:"accounts"`
	Categories     []models.Category    `json:"categories"`
	Transactions   []models.Transaction `json:"transactions"`
	CurrentAccount *models.Account      `json:"currentAccount"`
	IsLoading      bool                 `json:"isLoading"`
	Error          string               `json:"error,omitempty"` // Last failure; cleared when Init starts
	Phase          Phase                `json:"phase"`
}

func (s State) clone() State {
	out := s
	out.Accounts = append([]models.Account{}, s.Accounts...)
	out.Categories = append([]models.Category{}, s.Categories...)
	out.Transactions = append([]models.Transaction{}, s.Transactions...)
	if s.CurrentAccount != nil {
		a := *s.CurrentAccount
		out.CurrentAccount = &a
	}
	return out
}

// Coordinator owns State. Actions run one at a time; a failed action records
// its error and leaves the entities exactly as they were.
type Coordinator struct {
	source   AdapterSource
	pageSize int

	// actionMu serialises actions. mu guards state and subscribers so
	// Snapshot never waits on storage I/O.
	actionMu sync.Mutex
	mu       sync.RWMutex

	state       State
	initialized bool
	subscribers map[int]func(State)
	nextSubID   int
}

// New returns an uninitialized coordinator. A non-positive pageSize selects
// DefaultPageSize.
func New(source AdapterSource, pageSize int) *Coordinator {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &Coordinator{
		source:   source,
		pageSize: pageSize,
		state: State{
			Accounts:     []models.Account{},
			Categories:   []models.Category{},
			Transactions: []models.Transaction{},
			Phase:        PhaseUninitialized,
		},
		subscribers: make(map[int]func(State)),
	}
}

// PageSize reports the transaction window bound.
func (c *Coordinator) PageSize() int { return c.pageSize }

// Snapshot returns a copy of the current state.
func (c *Coordinator) Snapshot() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state.clone()
}

// Subscribe registers fn to receive a snapshot after every state change and
// returns a function that removes it. fn runs on the acting goroutine and
// must not call back into the coordinator's actions.
func (c *Coordinator) Subscribe(fn func(State)) (unsubscribe func()) {
	c.mu.Lock()
	id := c.nextSubID
	c.nextSubID++
	c.subscribers[id] = fn
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.subscribers, id)
		c.mu.Unlock()
	}
}

// update applies fn to the state and notifies subscribers.
func (c *Coordinator) update(fn func(s *State)) {
	c.mu.Lock()
	fn(&c.state)
	snapshot := c.state.clone()
	subs := make([]func(State), 0, len(c.subscribers))
	for _, sub := range c.subscribers {
		subs = append(subs, sub)
	}
	c.mu.Unlock()

	for _, sub := range subs {
		sub(snapshot)
	}
}

func (c *Coordinator) settledPhase() Phase {
	if c.initialized {
		return PhaseReady
	}
	return PhaseUninitialized
}

// runLocked wraps one backend round-trip with the loading flag and error
// bookkeeping. The caller holds actionMu.
func (c *Coordinator) runLocked(ctx context.Context, action string, fn func(adapter storage.Adapter) error) error {
	c.update(func(s *State) {
		s.IsLoading = true
		s.Phase = PhaseLoading
	})

	adapter, err := c.source.Adapter(ctx)
	if err == nil {
		err = fn(adapter)
	}

	c.update(func(s *State) {
		s.IsLoading = false
		s.Phase = c.settledPhase()
		if err != nil {
			s.Error = err.Error()
		}
	})
	if err != nil {
		logger.FromContext(ctx).Error("State action failed", "action", action, "error", err)
		return fmt.Errorf("%s: %w", action, err)
	}
	return nil
}

func (c *Coordinator) run(ctx context.Context, action string, fn func(adapter storage.Adapter) error) error {
	c.actionMu.Lock()
	defer c.actionMu.Unlock()
	return c.runLocked(ctx, action, fn)
}

func (c *Coordinator) windowOptions() *models.QueryOptions {
	return &models.QueryOptions{Limit: c.pageSize}
}

// Init loads accounts and categories, picks the current account and loads
// its transaction window. It clears any previous error first.
func (c *Coordinator) Init(ctx context.Context) error {
	c.actionMu.Lock()
	defer c.actionMu.Unlock()
	return c.initLocked(ctx)
}

func (c *Coordinator) initLocked(ctx context.Context) error {
	c.update(func(s *State) { s.Error = "" })

	return c.runLocked(ctx, "init", func(adapter storage.Adapter) error {
		accounts, err := adapter.GetAccounts(ctx)
		if err != nil {
			return err
		}
		categories, err := adapter.GetCategories(ctx)
		if err != nil {
			return err
		}
		current := models.PickCurrent(accounts)
		window := []models.Transaction{}
		if current != nil {
			if window, err = adapter.GetTransactions(ctx, current.ID, c.windowOptions()); err != nil {
				return err
			}
		}

		c.initialized = true
		c.update(func(s *State) {
			s.Accounts = accounts
			s.Categories = categories
			s.CurrentAccount = current
			s.Transactions = window
		})
		logger.FromContext(ctx).Debug("State initialized", "accounts", len(accounts), "categories", len(categories), "window", len(window))
		return nil
	})
}

// FetchAccounts reloads the account list and refreshes the current account
// record from it.
func (c *Coordinator) FetchAccounts(ctx context.Context) error {
	return c.run(ctx, "fetchAccounts", func(adapter storage.Adapter) error {
		accounts, err := adapter.GetAccounts(ctx)
		if err != nil {
			return err
		}
		c.update(func(s *State) {
			s.Accounts = accounts
			if s.CurrentAccount == nil {
				return
			}
			if a := findAccount(accounts, s.CurrentAccount.ID); a != nil {
				s.CurrentAccount = a
			}
		})
		return nil
	})
}

func (c *Coordinator) FetchCategories(ctx context.Context) error {
	return c.run(ctx, "fetchCategories", func(adapter storage.Adapter) error {
		categories, err := adapter.GetCategories(ctx)
		if err != nil {
			return err
		}
		c.update(func(s *State) { s.Categories = categories })
		return nil
	})
}

// FetchTransactions replaces the window with the current account's
// transactions matching opts. A nil opts loads the default bounded window.
// Without a current account it does nothing.
func (c *Coordinator) FetchTransactions(ctx context.Context, opts *models.QueryOptions) error {
	c.actionMu.Lock()
	defer c.actionMu.Unlock()

	if c.state.CurrentAccount == nil {
		return nil
	}
	accountID := c.state.CurrentAccount.ID
	if opts == nil {
		opts = c.windowOptions()
	}
	return c.runLocked(ctx, "fetchTransactions", func(adapter storage.Adapter) error {
		txs, err := adapter.GetTransactions(ctx, accountID, opts)
		if err != nil {
			return err
		}
		c.update(func(s *State) { s.Transactions = txs })
		return nil
	})
}

// SetCurrentAccount switches to the loaded account with account.ID and
// replaces the window with that account's most recent transactions.
func (c *Coordinator) SetCurrentAccount(ctx context.Context, account models.Account) error {
	c.actionMu.Lock()
	defer c.actionMu.Unlock()

	return c.runLocked(ctx, "setCurrentAccount", func(adapter storage.Adapter) error {
		target := findAccount(c.state.Accounts, account.ID)
		if target == nil {
			return fmt.Errorf("%w: %q", ErrUnknownAccount, account.ID)
		}
		txs, err := adapter.GetTransactions(ctx, target.ID, c.windowOptions())
		if err != nil {
			return err
		}
		c.update(func(s *State) {
			s.CurrentAccount = target
			s.Transactions = txs
		})
		return nil
	})
}

func (c *Coordinator) CreateAccount(ctx context.Context, in models.NewAccount) (models.Account, error) {
	var created models.Account
	err := c.run(ctx, "createAccount", func(adapter storage.Adapter) error {
		var err error
		if created, err = adapter.CreateAccount(ctx, in); err != nil {
			return err
		}
		c.update(func(s *State) {
			s.Accounts = append(s.Accounts, created)
			if s.CurrentAccount == nil {
				a := created
				s.CurrentAccount = &a
				s.Transactions = []models.Transaction{}
			}
		})
		return nil
	})
	return created, err
}

func (c *Coordinator) UpdateAccount(ctx context.Context, account models.Account) error {
	return c.run(ctx, "updateAccount", func(adapter storage.Adapter) error {
		if err := adapter.UpdateAccount(ctx, account); err != nil {
			return err
		}
		c.update(func(s *State) {
			for i := range s.Accounts {
				if s.Accounts[i].ID != account.ID {
					continue
				}
				updated := account.Normalized()
				updated.CreatedAt = s.Accounts[i].CreatedAt
				updated.UpdatedAt = models.Now()
				s.Accounts[i] = updated
				if s.CurrentAccount != nil && s.CurrentAccount.ID == account.ID {
					a := updated
					s.CurrentAccount = &a
				}
				return
			}
		})
		return nil
	})
}

// DeleteAccount removes the account and its transactions. When it was the
// current account a new one is derived from the remaining accounts and its
// window loaded. Once the backend delete succeeds the call succeeds; a failed
// window load only sets State.Error and leaves the window empty.
func (c *Coordinator) DeleteAccount(ctx context.Context, id string) error {
	return c.run(ctx, "deleteAccount", func(adapter storage.Adapter) error {
		if err := adapter.DeleteAccount(ctx, id); err != nil {
			return err
		}

		remaining := make([]models.Account, 0, len(c.state.Accounts))
		for _, a := range c.state.Accounts {
			if a.ID != id {
				remaining = append(remaining, a)
			}
		}
		wasCurrent := c.state.CurrentAccount != nil && c.state.CurrentAccount.ID == id

		if !wasCurrent {
			c.update(func(s *State) {
				s.Accounts = remaining
				s.Transactions = withoutAccount(s.Transactions, id)
			})
			return nil
		}

		next := models.PickCurrent(remaining)
		c.update(func(s *State) {
			s.Accounts = remaining
			s.CurrentAccount = next
			s.Transactions = []models.Transaction{}
		})
		if next == nil {
			return nil
		}
		txs, err := adapter.GetTransactions(ctx, next.ID, c.windowOptions())
		if err != nil {
			// The account is already gone from the backend.
			logger.FromContext(ctx).Warn("Window reload after account delete failed", "accountID", next.ID, "error", err)
			c.update(func(s *State) {
				s.Error = fmt.Sprintf("deleteAccount: load window for %s: %v", next.ID, err)
			})
			return nil
		}
		c.update(func(s *State) { s.Transactions = txs })
		return nil
	})
}

// checkReferences rejects transactions naming an account or category that
// is not loaded.
func (c *Coordinator) checkReferences(accountID, categoryID string) error {
	if findAccount(c.state.Accounts, accountID) == nil {
		return fmt.Errorf("%w: account %q", storage.ErrInvalidReference, accountID)
	}
	for _, cat := range c.state.Categories {
		if cat.ID == categoryID {
			return nil
		}
	}
	return fmt.Errorf("%w: category %q", storage.ErrInvalidReference, categoryID)
}

func (c *Coordinator) CreateTransaction(ctx context.Context, in models.NewTransaction) (models.Transaction, error) {
	var created models.Transaction
	err := c.run(ctx, "createTransaction", func(adapter storage.Adapter) error {
		if err := c.checkReferences(in.AccountID, in.CategoryID); err != nil {
			return err
		}
		var err error
		if created, err = adapter.CreateTransaction(ctx, in); err != nil {
			return err
		}
		c.update(func(s *State) {
			if s.CurrentAccount == nil || s.CurrentAccount.ID != created.AccountID {
				return
			}
			// A full window may be truncated, so it keeps its size and drops
			// whatever now sorts last.
			size := len(s.Transactions)
			full := size >= c.pageSize
			s.Transactions = append(s.Transactions, created)
			models.SortNewestFirst(s.Transactions)
			if full {
				s.Transactions = s.Transactions[:size]
			}
		})
		return nil
	})
	return created, err
}

func (c *Coordinator) UpdateTransaction(ctx context.Context, tx models.Transaction) error {
	return c.run(ctx, "updateTransaction", func(adapter storage.Adapter) error {
		if err := c.checkReferences(tx.AccountID, tx.CategoryID); err != nil {
			return err
		}
		if err := adapter.UpdateTransaction(ctx, tx); err != nil {
			return err
		}
		c.update(func(s *State) {
			for i := range s.Transactions {
				if s.Transactions[i].ID != tx.ID {
					continue
				}
				if s.CurrentAccount == nil || tx.AccountID != s.CurrentAccount.ID {
					s.Transactions = append(s.Transactions[:i:i], s.Transactions[i+1:]...)
					return
				}
				updated := tx.Normalized()
				updated.CreatedAt = s.Transactions[i].CreatedAt
				updated.UpdatedAt = models.Now()
				s.Transactions[i] = updated
				models.SortNewestFirst(s.Transactions)
				return
			}
		})
		return nil
	})
}

func (c *Coordinator) DeleteTransaction(ctx context.Context, id string) error {
	return c.run(ctx, "deleteTransaction", func(adapter storage.Adapter) error {
		if err := adapter.DeleteTransaction(ctx, id); err != nil {
			return err
		}
		c.update(func(s *State) {
			kept := make([]models.Transaction, 0, len(s.Transactions))
			for _, tx := range s.Transactions {
				if tx.ID != id {
					kept = append(kept, tx)
				}
			}
			s.Transactions = kept
		})
		return nil
	})
}

func (c *Coordinator) CreateCategory(ctx context.Context, in models.NewCategory) (models.Category, error) {
	var created models.Category
	err := c.run(ctx, "createCategory", func(adapter storage.Adapter) error {
		var err error
		if created, err = adapter.CreateCategory(ctx, in); err != nil {
			return err
		}
		c.update(func(s *State) { s.Categories = append(s.Categories, created) })
		return nil
	})
	return created, err
}

func (c *Coordinator) ExportData(ctx context.Context) (models.BackupData, error) {
	var backup models.BackupData
	err := c.run(ctx, "exportData", func(adapter storage.Adapter) error {
		var err error
		backup, err = adapter.ExportData(ctx)
		return err
	})
	return backup, err
}

// ImportData replaces the persisted dataset and rebuilds the view from it.
func (c *Coordinator) ImportData(ctx context.Context, data models.BackupData) error {
	c.actionMu.Lock()
	defer c.actionMu.Unlock()

	if err := c.runLocked(ctx, "importData", func(adapter storage.Adapter) error {
		return adapter.ImportData(ctx, data)
	}); err != nil {
		return err
	}
	return c.initLocked(ctx)
}

// ClearData empties the store, re-seeds the system categories and rebuilds
// the view.
func (c *Coordinator) ClearData(ctx context.Context) error {
	c.actionMu.Lock()
	defer c.actionMu.Unlock()

	if err := c.runLocked(ctx, "clearData", func(adapter storage.Adapter) error {
		if err := adapter.ClearData(ctx); err != nil {
			return err
		}
		return adapter.Initialize(ctx)
	}); err != nil {
		return err
	}
	return c.initLocked(ctx)
}

// QueryTransactions reads an account's transactions straight from the
// backend without touching the window. An empty accountID means the current
// account.
func (c *Coordinator) QueryTransactions(ctx context.Context, accountID string, opts *models.QueryOptions) (models.Account, []models.Transaction, error) {
	c.actionMu.Lock()
	defer c.actionMu.Unlock()
	return c.queryLocked(ctx, accountID, opts)
}

func (c *Coordinator) queryLocked(ctx context.Context, accountID string, opts *models.QueryOptions) (models.Account, []models.Transaction, error) {
	var account *models.Account
	if accountID == "" {
		account = c.state.CurrentAccount
	} else {
		account = findAccount(c.state.Accounts, accountID)
	}
	if account == nil {
		return models.Account{}, nil, fmt.Errorf("%w: %q", ErrUnknownAccount, accountID)
	}

	adapter, err := c.source.Adapter(ctx)
	if err != nil {
		return models.Account{}, nil, err
	}
	txs, err := adapter.GetTransactions(ctx, account.ID, opts)
	if err != nil {
		logger.FromContext(ctx).Error("State query failed", "accountID", account.ID, "error", err)
		return models.Account{}, nil, err
	}
	return *account, txs, nil
}

// Report summarises an account's transactions between start and end, both
// inclusive and both optional. An empty accountID means the current account.
// It reads through the backend and leaves State alone.
func (c *Coordinator) Report(ctx context.Context, accountID string, start, end *time.Time) (models.Summary, error) {
	c.actionMu.Lock()
	defer c.actionMu.Unlock()

	account, txs, err := c.queryLocked(ctx, accountID, &models.QueryOptions{StartDate: start, EndDate: end})
	if err != nil {
		return models.Summary{}, fmt.Errorf("report: %w", err)
	}
	return models.Summarize(account, txs), nil
}

func findAccount(accounts []models.Account, id string) *models.Account {
	for i := range accounts {
		if accounts[i].ID == id {
			a := accounts[i]
			return &a
		}
	}
	return nil
}

func withoutAccount(txs []models.Transaction, accountID string) []models.Transaction {
	kept := make([]models.Transaction, 0, len(txs))
	for _, tx := range txs {
		if tx.AccountID != accountID {
			kept = append(kept, tx)
		}
	}
	return kept
}
