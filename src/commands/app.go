// Package commands implements the easyledger command line.
package commands

import (
	"context"
	"fmt"

	"github.com/google/subcommands"
	"github.com/username/easyledger/backend/src/config"
	"github.com/username/easyledger/backend/src/state"
	"github.com/username/easyledger/backend/src/storage/selector"
)

// Register the subcommands.
func Register(c *subcommands.Commander) {
	c.Register(&serveCmd{}, "")

	c.Register(&exportCmd{}, "data")
	c.Register(&importCmd{}, "data")
	c.Register(&clearCmd{}, "data")

	c.Register(&accountsCmd{}, "reports")
	c.Register(&balanceCmd{}, "reports")
}

// ledgerSession is one opened backend plus the coordinator driving it.
type ledgerSession struct {
	selector *selector.Selector
	ledger   *state.Coordinator
}

// openLedger selects the backend for the configured runtime and loads the
// initial state.
func openLedger(ctx context.Context, cfg *config.AppConfig) (*ledgerSession, error) {
	env, err := selector.ParseEnvironment(cfg.Runtime)
	if err != nil {
		return nil, err
	}
	sel := selector.NewSelector(env, selector.Options{
		DatabasePath:     cfg.DatabasePath,
		BlobSnapshotPath: cfg.BlobSnapshotPath,
	})
	ledger := state.New(sel, cfg.TransactionPageSize)
	if err := ledger.Init(ctx); err != nil {
		sel.Close()
		return nil, fmt.Errorf("open %s ledger: %w", env, err)
	}
	return &ledgerSession{selector: sel, ledger: ledger}, nil
}

func (s *ledgerSession) Close() error {
	return s.selector.Close()
}

// currentConfig returns the loaded configuration, loading it on first use.
func currentConfig() *config.AppConfig {
	if config.Cfg == nil {
		return config.LoadConfig()
	}
	return config.Cfg
}
