package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/username/easyledger/backend/src/logger"
	"github.com/username/easyledger/backend/src/models"
)

type backupServiceImpl struct {
	ledger   Ledger
	maxBytes int64
}

// NewBackupService returns a BackupService. maxBytes caps imports; zero or
// less disables the cap.
func NewBackupService(ledger Ledger, maxBytes int64) BackupService {
	return &backupServiceImpl{ledger: ledger, maxBytes: maxBytes}
}

// Export writes the indented JSON snapshot to w and returns it.
func (s *backupServiceImpl) Export(ctx context.Context, w io.Writer) (models.BackupData, error) {
	backup, err := s.ledger.ExportData(ctx)
	if err != nil {
		return models.BackupData{}, err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(backup); err != nil {
		return models.BackupData{}, fmt.Errorf("write backup: %w", err)
	}
	logger.FromContext(ctx).Info("Backup exported",
		"accounts", len(backup.Accounts), "categories", len(backup.Categories), "transactions", len(backup.Transactions))
	return backup, nil
}

// DecodeBackup reads one JSON snapshot from r. Unknown fields are rejected
// so a file from another application is not mistaken for a ledger backup.
func DecodeBackup(r io.Reader, maxBytes int64) (models.BackupData, error) {
	if maxBytes > 0 {
		r = io.LimitReader(r, maxBytes+1)
	}
	counter := &countingReader{r: r}
	dec := json.NewDecoder(counter)
	dec.DisallowUnknownFields()

	var backup models.BackupData
	err := dec.Decode(&backup)
	if maxBytes > 0 && counter.n > maxBytes {
		return models.BackupData{}, fmt.Errorf("%w (%d bytes)", ErrBackupTooLarge, maxBytes)
	}
	if err != nil {
		return models.BackupData{}, fmt.Errorf("%w: %v", ErrBackupDecode, err)
	}
	if dec.More() {
		return models.BackupData{}, fmt.Errorf("%w: trailing data after the snapshot", ErrBackupDecode)
	}
	return backup, nil
}

// Import decodes a snapshot and replaces the ledger with it.
func (s *backupServiceImpl) Import(ctx context.Context, r io.Reader) (models.BackupData, error) {
	backup, err := DecodeBackup(r, s.maxBytes)
	if err != nil {
		logger.FromContext(ctx).Warn("Backup rejected before import", "error", err)
		return models.BackupData{}, err
	}
	if err := s.ledger.ImportData(ctx, backup); err != nil {
		return models.BackupData{}, err
	}
	return backup, nil
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

// IsClientError reports whether err describes a bad upload rather than a
// storage fault.
func IsClientError(err error) bool {
	return errors.Is(err, ErrBackupTooLarge) || errors.Is(err, ErrBackupDecode)
}
