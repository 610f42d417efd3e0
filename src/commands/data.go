package commands

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/google/subcommands"
	"github.com/username/easyledger/backend/src/security/validation"
	"github.com/username/easyledger/backend/src/services"
)

type exportCmd struct {
	outputFile string
	format     string
	accountID  string
	from, to   string
}

func (*exportCmd) Name() string { return "export" }
func (*exportCmd) Synopsis() string {
	return "writes a JSON backup of the ledger, or an account's transactions as xlsx/csv"
}
func (*exportCmd) Usage() string {
	return `easyledger export [-o <file>] [-format json|xlsx|csv] [-account <id>] [-from <date>] [-to <date>]

  With the default json format, writes the whole ledger as a versioned backup
  that "easyledger import" reads back. With xlsx or csv, writes one account's
  transactions (the current account unless -account is given), optionally
  limited to a date range.

Usage Examples:
$ easyledger export -o backup.json
$ easyledger export -format xlsx -from 2025-01-01 -o january.xlsx

`
}

func (p *exportCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&p.outputFile, "o", "", "Output file. Defaults to stdout.")
	f.StringVar(&p.format, "format", "json", "Output format: json, xlsx or csv.")
	f.StringVar(&p.accountID, "account", "", "Account to export transactions from (xlsx/csv only).")
	f.StringVar(&p.from, "from", "", "First day to include, YYYY-MM-DD (xlsx/csv only).")
	f.StringVar(&p.to, "to", "", "Last day to include, YYYY-MM-DD (xlsx/csv only).")
}

func (p *exportCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	format := strings.ToLower(p.format)
	if services.ExportFormat(format) == services.FormatXLSX && p.outputFile == "" {
		fmt.Fprintf(os.Stderr, "Error: -o is required for xlsx output\n")
		return subcommands.ExitUsageError
	}

	session, err := openLedger(ctx, currentConfig())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	defer session.Close()

	var w io.Writer = os.Stdout
	if p.outputFile != "" {
		f, err := os.Create(p.outputFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: could not create %s: %v\n", p.outputFile, err)
			return subcommands.ExitFailure
		}
		defer f.Close()
		w = f
	}

	if format == "json" {
		backup, err := services.NewBackupService(session.ledger, 0).Export(ctx, w)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: export failed: %v\n", err)
			return subcommands.ExitFailure
		}
		fmt.Fprintf(os.Stderr, "Exported %d accounts, %d categories and %d transactions.\n",
			len(backup.Accounts), len(backup.Categories), len(backup.Transactions))
		return subcommands.ExitSuccess
	}

	opts, err := validation.QueryInput{StartDate: p.from, EndDate: p.to}.Validate()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitUsageError
	}
	exporter := services.NewExportService(session.ledger)
	if err := exporter.WriteTransactions(ctx, w, services.ExportFormat(format), p.accountID, opts); err != nil {
		fmt.Fprintf(os.Stderr, "Error: export failed: %v\n", err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

type importCmd struct {
	maxBytes int64
}

func (*importCmd) Name() string     { return "import" }
func (*importCmd) Synopsis() string { return "replaces the ledger with a JSON backup" }
func (*importCmd) Usage() string {
	return `easyledger import [-max-bytes <n>] <backup.json>

  Validates the backup and, only if it is consistent, replaces every account,
  category and transaction with its contents. Use "-" to read stdin.

`
}

func (p *importCmd) SetFlags(f *flag.FlagSet) {
	f.Int64Var(&p.maxBytes, "max-bytes", 0, "Reject backups larger than this. Defaults to MAX_IMPORT_SIZE_BYTES.")
}

func (p *importCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		fmt.Fprintf(os.Stderr, "Error: import takes exactly one backup file\n")
		return subcommands.ExitUsageError
	}
	cfg := currentConfig()
	maxBytes := p.maxBytes
	if maxBytes == 0 {
		maxBytes = cfg.MaxImportSizeBytes
	}

	var r io.Reader = os.Stdin
	if path := f.Arg(0); path != "-" {
		file, err := os.Open(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: could not open %s: %v\n", path, err)
			return subcommands.ExitFailure
		}
		defer file.Close()
		if err := validation.ValidateBackupContent(file); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return subcommands.ExitFailure
		}
		r = file
	}

	session, err := openLedger(ctx, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	defer session.Close()

	backup, err := services.NewBackupService(session.ledger, maxBytes).Import(ctx, r)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: import failed, ledger left unchanged: %v\n", err)
		return subcommands.ExitFailure
	}
	fmt.Fprintf(os.Stderr, "Imported %d accounts, %d categories and %d transactions.\n",
		len(backup.Accounts), len(backup.Categories), len(backup.Transactions))
	return subcommands.ExitSuccess
}

type clearCmd struct {
	yes bool
}

func (*clearCmd) Name() string     { return "clear" }
func (*clearCmd) Synopsis() string { return "deletes every account, category and transaction" }
func (*clearCmd) Usage() string {
	return `easyledger clear -yes

  Empties the ledger and seeds the system categories again. Requires -yes.

`
}

func (p *clearCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&p.yes, "yes", false, "Confirm the deletion.")
}

func (p *clearCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if !p.yes {
		fmt.Fprintf(os.Stderr, "Refusing to clear the ledger without -yes\n")
		return subcommands.ExitUsageError
	}
	session, err := openLedger(ctx, currentConfig())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	defer session.Close()

	if err := session.ledger.ClearData(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: clear failed: %v\n", err)
		return subcommands.ExitFailure
	}
	fmt.Fprintf(os.Stderr, "Ledger cleared.\n")
	return subcommands.ExitSuccess
}
