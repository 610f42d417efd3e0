package models

import (
	"sort"
	"time"
)

// QueryOptions filters and paginates a transaction read.
// Zero values mean "absent". Offset only applies when Limit > 0.
type QueryOptions struct {
	StartDate  *time.Time      `json:"startDate,omitempty"` // Inclusive
	EndDate    *time.Time      `json:"endDate,omitempty"`   // Inclusive
	Type       TransactionType `json:"type,omitempty"`
	CategoryID string          `json:"categoryId,omitempty"`
	Limit      int             `json:"limit,omitempty"`
	Offset     int             `json:"offset,omitempty"`
}

// Matches reports whether tx passes every present filter. Pagination is not
// considered here.
func (o *QueryOptions) Matches(tx Transaction) bool {
	if o == nil {
		return true
	}
	if o.StartDate != nil && tx.Date.Before(NormalizeTime(*o.StartDate)) {
		return false
	}
	if o.EndDate != nil && tx.Date.After(NormalizeTime(*o.EndDate)) {
		return false
	}
	if o.Type != "" && tx.Type != o.Type {
		return false
	}
	if o.CategoryID != "" && tx.CategoryID != o.CategoryID {
		return false
	}
	return true
}

// Apply runs the in-memory query pipeline: filter on accountID and options,
// sort newest first, then slice offset/limit.
func (o *QueryOptions) Apply(all []Transaction, accountID string) []Transaction {
	out := make([]Transaction, 0)
	for _, tx := range all {
		if tx.AccountID == accountID && o.Matches(tx) {
			out = append(out, tx)
		}
	}
	SortNewestFirst(out)
	if o == nil || o.Limit <= 0 {
		return out
	}
	offset := o.Offset
	if offset < 0 {
		offset = 0
	}
	if offset >= len(out) {
		return []Transaction{}
	}
	end := offset + o.Limit
	if end > len(out) {
		end = len(out)
	}
	return out[offset:end]
}

// SortNewestFirst sorts txs in place using NewerFirst.
func SortNewestFirst(txs []Transaction) {
	sort.SliceStable(txs, func(i, j int) bool { return NewerFirst(txs[i], txs[j]) })
}
