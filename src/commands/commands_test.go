package commands

import (
	"bytes"
	"context"
	"flag"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/subcommands"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/username/easyledger/backend/src/config"
	"github.com/username/easyledger/backend/src/models"
	"github.com/username/easyledger/backend/src/storage/storagetest"
)

func testConfig(t *testing.T, runtime string) *config.AppConfig {
	t.Helper()
	dir := t.TempDir()
	return &config.AppConfig{
		Runtime:             runtime,
		DatabasePath:        filepath.Join(dir, "ledger.db"),
		BlobSnapshotPath:    filepath.Join(dir, "ledger.json"),
		TransactionPageSize: 10,
		MaxImportSizeBytes:  1 << 20,
	}
}

func TestOpenLedgerRejectsUnknownRuntime(t *testing.T) {
	_, err := openLedger(context.Background(), testConfig(t, "mainframe"))
	assert.Error(t, err)
}

func TestOpenLedgerPersistsAcrossSessions(t *testing.T) {
	for _, runtime := range []string{"native", "browser"} {
		t.Run(runtime, func(t *testing.T) {
			ctx := context.Background()
			cfg := testConfig(t, runtime)

			session, err := openLedger(ctx, cfg)
			require.NoError(t, err)
			adapter, err := session.selector.Adapter(ctx)
			require.NoError(t, err)
			acc := storagetest.MustCreateAccount(t, ctx, adapter, "Cash", true)
			storagetest.MustCreateTransaction(t, ctx, adapter, acc.ID, models.TransactionTypeIncome, "100", storagetest.Day(1))
			require.NoError(t, session.Close())

			session, err = openLedger(ctx, cfg)
			require.NoError(t, err)
			defer session.Close()

			var out bytes.Buffer
			require.NoError(t, printAccounts(ctx, &out, session.ledger))
			assert.Contains(t, out.String(), "* "+acc.ID)
			assert.Contains(t, out.String(), "Cash")
			assert.Contains(t, out.String(), "$200.00")
		})
	}
}

func TestPrintAccountsEmpty(t *testing.T) {
	ctx := context.Background()
	session, err := openLedger(ctx, testConfig(t, "browser"))
	require.NoError(t, err)
	defer session.Close()

	var out bytes.Buffer
	require.NoError(t, printAccounts(ctx, &out, session.ledger))
	assert.Equal(t, "No accounts.\n", out.String())
}

func TestPrintSummary(t *testing.T) {
	ctx := context.Background()
	session, err := openLedger(ctx, testConfig(t, "browser"))
	require.NoError(t, err)
	defer session.Close()

	adapter, err := session.selector.Adapter(ctx)
	require.NoError(t, err)
	acc := storagetest.MustCreateAccount(t, ctx, adapter, "Cash", true)
	storagetest.MustCreateTransaction(t, ctx, adapter, acc.ID, models.TransactionTypeExpense, "40", storagetest.Day(3))
	require.NoError(t, session.ledger.Init(ctx))

	summary, err := session.ledger.Report(ctx, "", nil, nil)
	require.NoError(t, err)

	var out bytes.Buffer
	printSummary(&out, summary, categoryNames(session.ledger.Snapshot().Categories))
	assert.Contains(t, out.String(), "Balance")
	assert.Contains(t, out.String(), "$60.00")
	assert.Contains(t, out.String(), "Food")
	assert.Contains(t, out.String(), "1 transactions")
}

func TestExportImportCommands(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t, "native")
	config.Cfg = cfg
	t.Cleanup(func() { config.Cfg = nil })

	session, err := openLedger(ctx, cfg)
	require.NoError(t, err)
	adapter, err := session.selector.Adapter(ctx)
	require.NoError(t, err)
	storagetest.MustCreateAccount(t, ctx, adapter, "Cash", true)
	require.NoError(t, session.Close())

	backupPath := filepath.Join(t.TempDir(), "backup.json")
	export := &exportCmd{}
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	export.SetFlags(fs)
	require.NoError(t, fs.Parse([]string{"-o", backupPath}))
	require.Equal(t, subcommands.ExitSuccess, export.Execute(ctx, fs))

	raw, err := os.ReadFile(backupPath)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"name": "Cash"`)

	clr := &clearCmd{}
	fs = flag.NewFlagSet("clear", flag.ContinueOnError)
	clr.SetFlags(fs)
	require.NoError(t, fs.Parse(nil))
	assert.Equal(t, subcommands.ExitUsageError, clr.Execute(ctx, fs), "clear needs -yes")
	require.NoError(t, fs.Parse([]string{"-yes"}))
	require.Equal(t, subcommands.ExitSuccess, clr.Execute(ctx, fs))

	imp := &importCmd{}
	fs = flag.NewFlagSet("import", flag.ContinueOnError)
	imp.SetFlags(fs)
	require.NoError(t, fs.Parse([]string{backupPath}))
	require.Equal(t, subcommands.ExitSuccess, imp.Execute(ctx, fs))

	session, err = openLedger(ctx, cfg)
	require.NoError(t, err)
	defer session.Close()
	accounts := session.ledger.Snapshot().Accounts
	require.Len(t, accounts, 1)
	assert.Equal(t, "Cash", accounts[0].Name)
}
