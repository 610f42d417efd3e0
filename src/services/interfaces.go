// backend/src/services/interfaces.go
package services

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/username/easyledger/backend/src/models"
	"github.com/username/easyledger/backend/src/state"
)

var (
	ErrBackupTooLarge    = errors.New("backup exceeds the maximum import size")
	ErrBackupDecode      = errors.New("backup is not valid JSON")
	ErrUnsupportedFormat = errors.New("unsupported export format")
)

// Ledger is the slice of the state coordinator the services drive.
// *state.Coordinator implements it.
type Ledger interface {
	Snapshot() state.State
	Subscribe(fn func(state.State)) (unsubscribe func())
	ExportData(ctx context.Context) (models.BackupData, error)
	ImportData(ctx context.Context, data models.BackupData) error
	QueryTransactions(ctx context.Context, accountID string, opts *models.QueryOptions) (models.Account, []models.Transaction, error)
	Report(ctx context.Context, accountID string, start, end *time.Time) (models.Summary, error)
}

// BackupService moves whole-ledger snapshots in and out as JSON documents.
type BackupService interface {
	Export(ctx context.Context, w io.Writer) (models.BackupData, error)
	Import(ctx context.Context, r io.Reader) (models.BackupData, error)
}

// ReportService serves account summaries.
type ReportService interface {
	GetSummary(ctx context.Context, accountID string, start, end *time.Time) (models.Summary, error)
	InvalidateCache()
}

// ExportFormat names a transaction export file type.
type ExportFormat string

const (
	FormatXLSX ExportFormat = "xlsx"
	FormatCSV  ExportFormat = "csv"
)

// ExportService writes an account's transactions as a spreadsheet.
type ExportService interface {
	WriteTransactions(ctx context.Context, w io.Writer, format ExportFormat, accountID string, opts *models.QueryOptions) error
}
