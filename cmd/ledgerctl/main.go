package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/shopspring/decimal"

	"moneymanager/internal/backend"
	"moneymanager/internal/cli"
	"moneymanager/internal/core"
	"moneymanager/internal/log"
	"moneymanager/internal/services"
	"moneymanager/internal/trace"
)

type command struct {
	usage string
	run   func(ctx context.Context, svc *services.Services, args []string) error
}

var commands = map[string]command{
	"accounts":        {"-owner ID [-page N] [-limit N]", listAccounts},
	"account-create":  {"-owner ID -name NAME [-balance 0.00] [-primary]", createAccount},
	"account-primary": {"-owner ID -id ACCOUNT", setPrimary},
	"account-delete":  {"-owner ID -id ACCOUNT", deleteAccount},
	"tx-add":          {"-owner ID -type Income|Expense -amount 12.34 -category C -division Personal|Office [-account ID] [-description D] [-tags a,b]", addTransaction},
	"tx-list":         {"-owner ID [-page N] [-limit N]", listTransactions},
	"tx-delete":       {"-owner ID -id TRANSACTION", deleteTransaction},
	"transfer":        {"-owner ID -from ACCOUNT -to ACCOUNT -amount 12.34 [-description D]", transfer},
	"budgets":         {"-owner ID", listBudgets},
	"budget-create":   {"-owner ID -category C -division Personal|Office -amount 100 -period weekly|monthly|yearly", createBudget},
	"summary":         {"-owner ID [-period weekly|monthly|yearly]", summary},
	"report":          {"-owner ID [-type T] [-division D] [-category C] [-from YYYY-MM-DD] [-to YYYY-MM-DD]", report},
	"audit":           {"[-batch N]", audit},
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: ledgerctl <command> [flags]")
	fmt.Fprintln(os.Stderr, "\ncommands:")
	fmt.Fprintln(os.Stderr, "  migrate")
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(os.Stderr, "  %s %s\n", name, commands[name].usage)
	}
}

func main() {
	cli.LoadEnvFile()

	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"))
	cfg := cli.LoadAndValidateConfig(logger)
	ctx := log.WithLogger(context.Background(), logger)

	name, args := os.Args[1], os.Args[2:]
	if name == "migrate" {
		// opening the repository applies pending migrations
		repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
		if err := repo.Close(); err != nil {
			logger.Warn("Failed to close SQLite repository", "error", err)
		}
		fmt.Println("migrations applied")
		return
	}

	cmd, ok := commands[name]
	if !ok {
		usage()
		os.Exit(2)
	}

	backendConfig, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", "error", err)
		os.Exit(1)
	}
	result, err := backend.NewFactory(logger).CreateBackend(ctx, backendConfig)
	if err != nil {
		logger.Error("Failed to initialize backend", "error", err)
		os.Exit(1)
	}

	tracer := trace.New(log.ComponentCLI)
	runErr := tracer.Run(ctx, name, func(ctx context.Context) error {
		return cmd.run(ctx, result.Services, args)
	})
	if err := result.Cleanup(); err != nil {
		logger.Warn("Cleanup failed", "error", err)
	}
	if runErr != nil {
		fmt.Fprintf(os.Stderr, "%s: %v (%s)\n", name, runErr, core.Kind(runErr))
		os.Exit(1)
	}
}

func newFlags(name string) (*flag.FlagSet, *string) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	owner := fs.String("owner", os.Getenv("LEDGER_OWNER"), "owner id")
	return fs, owner
}

func parse(fs *flag.FlagSet, args []string, owner *string) error {
	if err := fs.Parse(args); err != nil {
		return err
	}
	if owner != nil && *owner == "" {
		return fmt.Errorf("%w: -owner", core.ErrMissingField)
	}
	return nil
}

func table() *tabwriter.Writer {
	return tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
}

func parseSignedMoney(s string) (core.Money, error) {
	d, err := decimal.NewFromString(strings.ReplaceAll(strings.TrimSpace(s), ",", "."))
	if err != nil {
		return core.Money{}, core.ErrInvalidAmount
	}
	return core.MoneyFromDecimal(d)
}

func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.ParseInLocation(time.DateOnly, s, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: date %q", core.ErrInvalidInput, s)
	}
	return t, nil
}

func listAccounts(ctx context.Context, svc *services.Services, args []string) error {
	fs, owner := newFlags("accounts")
	page := fs.Int("page", core.DefaultPage, "page")
	limit := fs.Int("limit", core.DefaultLimit, "page size")
	if err := parse(fs, args, owner); err != nil {
		return err
	}

	res, err := svc.Accounts.List(ctx, *owner, core.PageRequest{Page: *page, Limit: *limit})
	if err != nil {
		return err
	}
	w := table()
	fmt.Fprintln(w, "ID\tNAME\tBALANCE\tPRIMARY")
	for _, a := range res.Items {
		fmt.Fprintf(w, "%s\t%s\t%s\t%t\n", a.ID, a.Name, a.Balance, a.IsPrimary)
	}
	fmt.Fprintf(w, "page %d/%d (%d accounts)\n", res.Page, res.TotalPages, res.TotalItems)
	return w.Flush()
}

func createAccount(ctx context.Context, svc *services.Services, args []string) error {
	fs, owner := newFlags("account-create")
	name := fs.String("name", "", "account name")
	balance := fs.String("balance", "0", "initial balance")
	primary := fs.Bool("primary", false, "make it the primary account")
	if err := parse(fs, args, owner); err != nil {
		return err
	}
	initial, err := parseSignedMoney(*balance)
	if err != nil {
		return err
	}

	a, err := svc.Accounts.Create(ctx, *owner, services.CreateAccountInput{Name: *name, InitialBalance: initial, IsPrimary: *primary})
	if err != nil {
		return err
	}
	fmt.Println(a.ID)
	return nil
}

func setPrimary(ctx context.Context, svc *services.Services, args []string) error {
	fs, owner := newFlags("account-primary")
	id := fs.String("id", "", "account id")
	if err := parse(fs, args, owner); err != nil {
		return err
	}
	_, err := svc.Accounts.SetPrimary(ctx, *owner, *id)
	return err
}

func deleteAccount(ctx context.Context, svc *services.Services, args []string) error {
	fs, owner := newFlags("account-delete")
	id := fs.String("id", "", "account id")
	if err := parse(fs, args, owner); err != nil {
		return err
	}
	return svc.Accounts.Delete(ctx, *owner, *id)
}

func addTransaction(ctx context.Context, svc *services.Services, args []string) error {
	fs, owner := newFlags("tx-add")
	account := fs.String("account", "", "account id (default: primary account)")
	typ := fs.String("type", "", "Income or Expense")
	amount := fs.String("amount", "", "positive amount")
	category := fs.String("category", "", "category")
	division := fs.String("division", string(core.Personal), "Personal or Office")
	description := fs.String("description", "", "description")
	tags := fs.String("tags", "", "comma separated tags")
	if err := parse(fs, args, owner); err != nil {
		return err
	}
	money, err := core.ParseMoney(*amount)
	if err != nil {
		return err
	}
	if *account == "" {
		primary, err := svc.Accounts.EnsurePrimary(ctx, *owner)
		if err != nil {
			return err
		}
		*account = primary.ID
	}

	t, err := svc.Ledger.Create(ctx, *owner, core.NewTransaction{
		AccountID:   *account,
		Type:        core.TransactionType(*typ),
		Amount:      money,
		Category:    *category,
		Division:    core.Division(*division),
		Description: *description,
		Tags:        strings.Split(*tags, ","),
	})
	if err != nil {
		return err
	}
	fmt.Println(t.ID)
	return nil
}

func listTransactions(ctx context.Context, svc *services.Services, args []string) error {
	fs, owner := newFlags("tx-list")
	page := fs.Int("page", core.DefaultPage, "page")
	limit := fs.Int("limit", core.DefaultLimit, "page size")
	if err := parse(fs, args, owner); err != nil {
		return err
	}

	res, err := svc.Ledger.List(ctx, *owner, core.PageRequest{Page: *page, Limit: *limit})
	if err != nil {
		return err
	}
	printTransactions(res.Items)
	fmt.Printf("page %d/%d (%d transactions)\n", res.Page, res.TotalPages, res.TotalItems)
	return nil
}

func printTransactions(items []core.Transaction) {
	w := table()
	fmt.Fprintln(w, "ID\tDATE\tACCOUNT\tTYPE\tAMOUNT\tCATEGORY\tDIVISION\tDESCRIPTION")
	for _, t := range items {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			t.ID, t.CreatedAt.Local().Format(time.DateTime), t.AccountName, t.Type, t.Amount, t.Category, t.Division, t.Description)
	}
	w.Flush()
}

func deleteTransaction(ctx context.Context, svc *services.Services, args []string) error {
	fs, owner := newFlags("tx-delete")
	id := fs.String("id", "", "transaction id")
	if err := parse(fs, args, owner); err != nil {
		return err
	}
	return svc.Ledger.Delete(ctx, *owner, *id)
}

func transfer(ctx context.Context, svc *services.Services, args []string) error {
	fs, owner := newFlags("transfer")
	from := fs.String("from", "", "source account id")
	to := fs.String("to", "", "destination account id")
	amount := fs.String("amount", "", "positive amount")
	description := fs.String("description", "", "description")
	if err := parse(fs, args, owner); err != nil {
		return err
	}
	money, err := core.ParseMoney(*amount)
	if err != nil {
		return err
	}

	res, err := svc.Transfers.Transfer(ctx, *owner, services.TransferRequest{
		FromAccountID: *from,
		ToAccountID:   *to,
		Amount:        money,
		Description:   *description,
	})
	if err != nil {
		return err
	}
	fmt.Printf("transfer %s: %s -> %s, balances %s / %s\n",
		res.TransferID, res.Debit.AccountName, res.Credit.AccountName, res.FromBalance, res.ToBalance)
	return nil
}

func listBudgets(ctx context.Context, svc *services.Services, args []string) error {
	fs, owner := newFlags("budgets")
	if err := parse(fs, args, owner); err != nil {
		return err
	}

	statuses, err := svc.Budgets.List(ctx, *owner)
	if err != nil {
		return err
	}
	w := table()
	fmt.Fprintln(w, "ID\tCATEGORY\tDIVISION\tPERIOD\tALLOCATED\tSPENT\tREMAINING")
	for _, s := range statuses {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			s.Budget.ID, s.Budget.Category, s.Budget.Division, s.Budget.Period, s.Budget.Allocated, s.Spent, s.Remaining)
	}
	return w.Flush()
}

func createBudget(ctx context.Context, svc *services.Services, args []string) error {
	fs, owner := newFlags("budget-create")
	category := fs.String("category", "", "category")
	division := fs.String("division", string(core.Personal), "Personal or Office")
	amount := fs.String("amount", "", "allocated amount")
	period := fs.String("period", string(core.Monthly), "weekly, monthly or yearly")
	if err := parse(fs, args, owner); err != nil {
		return err
	}
	allocated, err := core.ParseMoney(*amount)
	if err != nil {
		return err
	}

	b, err := svc.Budgets.Create(ctx, *owner, services.CreateBudgetInput{
		Category:  *category,
		Division:  core.Division(*division),
		Allocated: allocated,
		Period:    core.Period(*period),
	})
	if err != nil {
		return err
	}
	fmt.Println(b.ID)
	return nil
}

func summary(ctx context.Context, svc *services.Services, args []string) error {
	fs, owner := newFlags("summary")
	period := fs.String("period", string(core.Monthly), "weekly, monthly or yearly")
	if err := parse(fs, args, owner); err != nil {
		return err
	}
	if err := core.Period(*period).Validate(); err != nil {
		return err
	}

	s, err := svc.Dashboard.Summary(ctx, *owner, core.Period(*period))
	if err != nil {
		return err
	}
	fmt.Printf("since %s: income %s, expense %s, net %s, %d transactions\n",
		s.Period.Start.Format(time.DateOnly), s.TotalIncome, s.TotalExpense, s.Net(), s.TransactionCount)
	return nil
}

func report(ctx context.Context, svc *services.Services, args []string) error {
	fs, owner := newFlags("report")
	typ := fs.String("type", "", "Income or Expense")
	division := fs.String("division", "", "Personal or Office")
	category := fs.String("category", "", "category")
	from := fs.String("from", "", "first day (YYYY-MM-DD)")
	to := fs.String("to", "", "last day (YYYY-MM-DD)")
	if err := parse(fs, args, owner); err != nil {
		return err
	}
	fromDate, err := parseDate(*from)
	if err != nil {
		return err
	}
	toDate, err := parseDate(*to)
	if err != nil {
		return err
	}
	if !toDate.IsZero() {
		toDate = core.EndOfDay(toDate)
	}

	r, err := svc.Dashboard.Report(ctx, *owner, core.ReportFilter{
		Type:     core.TransactionType(*typ),
		Division: core.Division(*division),
		Category: *category,
		From:     fromDate,
		To:       toDate,
	})
	if err != nil {
		return err
	}
	printTransactions(r.Transactions)
	fmt.Printf("income %s, expense %s, net %s, %d transactions\n",
		r.Summary.TotalIncome, r.Summary.TotalExpense, r.Summary.Net(), r.Summary.TransactionCount)
	return nil
}

func audit(ctx context.Context, svc *services.Services, args []string) error {
	fs := flag.NewFlagSet("audit", flag.ContinueOnError)
	batch := fs.Int("batch", 100, "accounts per page")
	if err := parse(fs, args, nil); err != nil {
		return err
	}

	res, err := svc.Auditor.AuditAll(ctx, *batch)
	if err != nil {
		return err
	}
	for _, m := range res.Mismatches {
		fmt.Printf("MISMATCH %s (owner %s): stored %s, expected %s\n", m.AccountID, m.OwnerID, m.Stored, m.Expected)
	}
	fmt.Printf("%d accounts checked, %d mismatches\n", res.Checked, len(res.Mismatches))
	if len(res.Mismatches) > 0 {
		return errors.New("inconsistent balances")
	}
	return nil
}
