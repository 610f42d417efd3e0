package commands

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/google/subcommands"
	"github.com/username/easyledger/backend/src/models"
	"github.com/username/easyledger/backend/src/security/validation"
	"github.com/username/easyledger/backend/src/state"
)

type accountsCmd struct{}

func (*accountsCmd) Name() string     { return "accounts" }
func (*accountsCmd) Synopsis() string { return "lists accounts with their current balance" }
func (*accountsCmd) Usage() string {
	return `easyledger accounts

  Prints every account, marking the current one with '*'.

`
}

func (*accountsCmd) SetFlags(*flag.FlagSet) {}

func (*accountsCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	session, err := openLedger(ctx, currentConfig())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	defer session.Close()

	if err := printAccounts(ctx, os.Stdout, session.ledger); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

func printAccounts(ctx context.Context, w io.Writer, ledger *state.Coordinator) error {
	snapshot := ledger.Snapshot()
	if len(snapshot.Accounts) == 0 {
		fmt.Fprintln(w, "No accounts.")
		return nil
	}
	for _, a := range snapshot.Accounts {
		summary, err := ledger.Report(ctx, a.ID, nil, nil)
		if err != nil {
			return err
		}
		marker := " "
		if snapshot.CurrentAccount != nil && snapshot.CurrentAccount.ID == a.ID {
			marker = "*"
		}
		fmt.Fprintf(w, "%s %-36s  %-24s %16s\n", marker, a.ID, a.Name, summary.BalanceDisplay)
	}
	return nil
}

type balanceCmd struct {
	accountID string
	from, to  string
}

func (*balanceCmd) Name() string     { return "balance" }
func (*balanceCmd) Synopsis() string { return "summarises an account over a period" }
func (*balanceCmd) Usage() string {
	return `easyledger balance [-account <id>] [-from <date>] [-to <date>]

  Prints income, expense and net totals with a per-category breakdown, plus
  the balance at the end of the period. Defaults to the current account and
  all time.

Usage Examples:
$ easyledger balance -from 2025-01-01 -to 2025-01-31

`
}

func (p *balanceCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&p.accountID, "account", "", "Account id. Defaults to the current account.")
	f.StringVar(&p.from, "from", "", "First day, YYYY-MM-DD.")
	f.StringVar(&p.to, "to", "", "Last day, YYYY-MM-DD.")
}

func (p *balanceCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	start, err := validation.ParseOptionalDate(p.from, "from")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitUsageError
	}
	end, err := validation.ParseOptionalDate(p.to, "to")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitUsageError
	}

	session, err := openLedger(ctx, currentConfig())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	defer session.Close()

	summary, err := session.ledger.Report(ctx, p.accountID, start, end)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	printSummary(os.Stdout, summary, categoryNames(session.ledger.Snapshot().Categories))
	return subcommands.ExitSuccess
}

func categoryNames(categories []models.Category) map[string]string {
	names := make(map[string]string, len(categories))
	for _, c := range categories {
		names[c.ID] = c.Name
	}
	return names
}

func printSummary(w io.Writer, s models.Summary, names map[string]string) {
	fmt.Fprintf(w, "Income   %16s\n", models.FormatMoney(s.Income, s.Currency))
	fmt.Fprintf(w, "Expense  %16s\n", models.FormatMoney(s.Expense, s.Currency))
	fmt.Fprintf(w, "Net      %16s\n", models.FormatMoney(s.Net, s.Currency))
	fmt.Fprintf(w, "Balance  %16s\n", s.BalanceDisplay)
	if len(s.ByCategory) == 0 {
		return
	}
	fmt.Fprintf(w, "\n%d transactions\n", s.Count)
	for _, ct := range s.ByCategory {
		name := names[ct.CategoryID]
		if name == "" {
			name = ct.CategoryID
		}
		fmt.Fprintf(w, "  %-8s %-24s %16s  (%d)\n", ct.Type, name, models.FormatMoney(ct.Total, s.Currency), ct.Count)
	}
}
