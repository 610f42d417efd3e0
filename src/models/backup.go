package models

import (
	"errors"
	"fmt"
	"time"
)

// BackupVersion is the only snapshot format this build reads and writes.
const BackupVersion = "1.0"

var (
	ErrInvalidBackup      = errors.New("invalid backup data")
	ErrUnsupportedVersion = errors.New("unsupported backup version")
)

// BackupData is a full snapshot of the ledger and the only unit of bulk transfer.
type BackupData struct {
	Accounts     []Account     `json:"accounts"`
	Categories   []Category    `json:"categories"`
	Transactions []Transaction `json:"transactions"`
	Version      string        `json:"version"`
	ExportedAt   time.Time     `json:"exportedAt"`
}

// NewBackup assembles a version-tagged snapshot stamped with now.
func NewBackup(accounts []Account, categories []Category, transactions []Transaction, now time.Time) BackupData {
	if accounts == nil {
		accounts = []Account{}
	}
	if categories == nil {
		categories = []Category{}
	}
	if transactions == nil {
		transactions = []Transaction{}
	}
	return BackupData{
		Accounts:     accounts,
		Categories:   categories,
		Transactions: transactions,
		Version:      BackupVersion,
		ExportedAt:   now,
	}
}

// Validate checks the snapshot can be imported as a whole: known version,
// non-empty unique ids, and every transaction reference resolvable inside
// the snapshot itself.
func (b BackupData) Validate() error {
	if b.Version != BackupVersion {
		return fmt.Errorf("%w: %q", ErrUnsupportedVersion, b.Version)
	}

	accounts := make(map[string]bool, len(b.Accounts))
	for _, a := range b.Accounts {
		if a.ID == "" || accounts[a.ID] {
			return fmt.Errorf("%w: empty or duplicate account id %q", ErrInvalidBackup, a.ID)
		}
		accounts[a.ID] = true
	}
	categories := make(map[string]bool, len(b.Categories))
	for _, c := range b.Categories {
		if c.ID == "" || categories[c.ID] {
			return fmt.Errorf("%w: empty or duplicate category id %q", ErrInvalidBackup, c.ID)
		}
		categories[c.ID] = true
	}
	seen := make(map[string]bool, len(b.Transactions))
	for _, tx := range b.Transactions {
		if tx.ID == "" || seen[tx.ID] {
			return fmt.Errorf("%w: empty or duplicate transaction id %q", ErrInvalidBackup, tx.ID)
		}
		seen[tx.ID] = true
		if !accounts[tx.AccountID] {
			return fmt.Errorf("%w: transaction %s references unknown account %q", ErrInvalidBackup, tx.ID, tx.AccountID)
		}
		if !categories[tx.CategoryID] {
			return fmt.Errorf("%w: transaction %s references unknown category %q", ErrInvalidBackup, tx.ID, tx.CategoryID)
		}
	}
	return nil
}

// Normalized returns a copy with every time value in storage precision.
func (b BackupData) Normalized() BackupData {
	out := BackupData{
		Accounts:     make([]Account, len(b.Accounts)),
		Categories:   make([]Category, len(b.Categories)),
		Transactions: make([]Transaction, len(b.Transactions)),
		Version:      b.Version,
		ExportedAt:   b.ExportedAt,
	}
	for i, a := range b.Accounts {
		out.Accounts[i] = a.Normalized()
	}
	for i, c := range b.Categories {
		out.Categories[i] = c.Normalized()
	}
	for i, tx := range b.Transactions {
		out.Transactions[i] = tx.Normalized()
	}
	return out
}
