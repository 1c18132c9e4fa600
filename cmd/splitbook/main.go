package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"text/tabwriter"

	"splitbook/internal/api"
	"splitbook/internal/config"
	"splitbook/internal/credstore"
	"splitbook/internal/models"
	"splitbook/internal/session"
	"splitbook/internal/split"
	"splitbook/internal/store"

	"github.com/shopspring/decimal"
	"golang.org/x/term"
)

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

const usageText = `Usage: splitbook <command> [flags]

Commands:
  signup    Create an account
  login     Log in and store the session tokens
  logout    Revoke and clear the session tokens
  whoami    Show session state
  profile   Show or update the student profile
  friends   List, add or remove friends
  expenses  List or delete expenses
  split     Create an expense and split it among friends
  shares    List the shares of one expense
  shared    List all shared-expense records
`

type app struct {
	sess   *session.Store
	client *api.Client

	expenses *store.Collection[models.Expense, models.ExpenseCreate]
	friends  *store.Friends
	shared   *store.Collection[models.Share, models.ShareCreate]
	profile  *store.ProfileStore

	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	if len(args) == 0 {
		fmt.Fprint(stdout, usageText)
		return fmt.Errorf("missing command")
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	level := slog.LevelWarn
	if cfg.Debug {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	if err := os.MkdirAll(filepath.Dir(cfg.CredentialsPath), 0o700); err != nil {
		return fmt.Errorf("create credentials dir: %w", err)
	}
	creds, err := credstore.Open(cfg.CredentialsPath)
	if err != nil {
		return fmt.Errorf("open credential store: %w", err)
	}
	defer creds.Close()

	sess, err := session.New(creds, log)
	if err != nil {
		return err
	}
	client, err := api.New(cfg.BaseURL, sess,
		api.WithLogger(log),
		api.WithHTTPClient(&http.Client{Timeout: cfg.RequestTimeout}))
	if err != nil {
		return err
	}
	sess.SetClient(client)

	a := &app{
		sess:     sess,
		client:   client,
		expenses: store.NewExpenses(client),
		friends:  store.NewFriends(client),
		shared:   store.NewSharedExpenses(client),
		profile:  store.NewProfile(client),
		stdin:    stdin,
		stdout:   stdout,
		stderr:   stderr,
	}

	ctx := context.Background()
	command, rest := args[0], args[1:]

	switch command {
	case "signup":
		return a.signup(ctx, rest)
	case "login":
		return a.login(ctx, rest)
	case "logout":
		return a.logout(ctx)
	case "whoami":
		return a.whoami()
	case "profile":
		return a.profileCmd(ctx, rest)
	case "friends":
		return a.friendsCmd(ctx, rest)
	case "expenses":
		return a.expensesCmd(ctx, rest)
	case "split":
		return a.splitCmd(ctx, rest)
	case "shares":
		return a.sharesCmd(ctx, rest)
	case "shared":
		return a.sharedCmd(ctx)
	case "help", "-h", "--help":
		fmt.Fprint(stdout, usageText)
		return nil
	default:
		fmt.Fprint(stdout, usageText)
		return fmt.Errorf("unknown command %q", command)
	}
}

func (a *app) requireLogin() error {
	if !a.sess.IsLoggedIn() {
		return fmt.Errorf("not logged in; run: splitbook login -user <username>")
	}
	return nil
}

func (a *app) signup(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("signup", flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	username := fs.String("user", "", "Username")
	email := fs.String("email", "", "Email address")
	passwordFlag := fs.String("password", "", "Password (optional, will prompt if omitted)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *username == "" || *email == "" {
		return fmt.Errorf("missing required flags: user, email")
	}

	password, err := a.password(*passwordFlag)
	if err != nil {
		return err
	}

	user, err := a.sess.Signup(ctx, *username, *email, password)
	if err != nil {
		return err
	}

	fmt.Fprintf(a.stdout, "Account %s created. Log in with: splitbook login -user %s\n", user.Username, user.Username)
	return nil
}

func (a *app) login(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("login", flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	username := fs.String("user", "", "Username")
	passwordFlag := fs.String("password", "", "Password (optional, will prompt if omitted)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *username == "" {
		return fmt.Errorf("missing required flags: user")
	}

	password, err := a.password(*passwordFlag)
	if err != nil {
		return err
	}

	if err := a.sess.Login(ctx, *username, password); err != nil {
		return err
	}

	fmt.Fprintf(a.stdout, "Logged in as %s\n", *username)
	return nil
}

func (a *app) logout(ctx context.Context) error {
	err := a.sess.Logout(ctx)
	// Tokens are cleared even when the revoke call failed; say so rather
	// than leaving the outcome ambiguous.
	if err != nil {
		fmt.Fprintf(a.stdout, "Logged out locally (revoke failed: %v)\n", err)
		return nil
	}
	fmt.Fprintln(a.stdout, "Logged out")
	return nil
}

func (a *app) whoami() error {
	if !a.sess.IsLoggedIn() {
		fmt.Fprintln(a.stdout, "Not logged in")
		return nil
	}
	if id, ok := a.sess.CurrentUserID(); ok {
		fmt.Fprintf(a.stdout, "Logged in (user id %d)\n", id)
	} else {
		fmt.Fprintln(a.stdout, "Logged in")
	}
	return nil
}

func (a *app) profileCmd(ctx context.Context, args []string) error {
	if err := a.requireLogin(); err != nil {
		return err
	}

	if len(args) > 0 && args[0] == "update" {
		fs := flag.NewFlagSet("profile update", flag.ContinueOnError)
		fs.SetOutput(a.stderr)
		department := fs.String("department", "", "Department")
		first := fs.String("first", "", "First name")
		last := fs.String("last", "", "Last name")
		if err := fs.Parse(args[1:]); err != nil {
			return err
		}
		if *department == "" && *first == "" && *last == "" {
			return fmt.Errorf("nothing to update: pass -department, -first or -last")
		}

		if err := a.profile.Update(ctx, models.ProfileUpdate{
			Department: *department,
			FirstName:  *first,
			LastName:   *last,
		}); err != nil {
			return err
		}
		fmt.Fprintln(a.stdout, "Profile updated")
		return a.printProfile()
	}

	if err := a.profile.Fetch(ctx); err != nil {
		return err
	}
	return a.printProfile()
}

func (a *app) printProfile() error {
	p := a.profile.Current()
	if p == nil {
		return fmt.Errorf("no profile loaded")
	}
	fmt.Fprintf(a.stdout, "Username:   %s\n", p.User.Username)
	fmt.Fprintf(a.stdout, "Email:      %s\n", p.User.Email)
	fmt.Fprintf(a.stdout, "Name:       %s %s\n", p.User.FirstName, p.User.LastName)
	fmt.Fprintf(a.stdout, "Department: %s\n", p.Department)
	fmt.Fprintf(a.stdout, "Wallet:     %s\n", p.WalletBalance.StringFixed(2))
	return nil
}

func (a *app) friendsCmd(ctx context.Context, args []string) error {
	if err := a.requireLogin(); err != nil {
		return err
	}

	if len(args) > 0 {
		switch args[0] {
		case "add":
			fs := flag.NewFlagSet("friends add", flag.ContinueOnError)
			fs.SetOutput(a.stderr)
			username := fs.String("user", "", "Username to add")
			if err := fs.Parse(args[1:]); err != nil {
				return err
			}
			if *username == "" {
				return fmt.Errorf("missing required flags: user")
			}
			if err := a.friends.Add(ctx, *username); err != nil {
				// The server alone distinguishes unknown users from
				// existing friendships; either way it is one warning.
				return fmt.Errorf("could not add %s: %w", *username, err)
			}
			fmt.Fprintf(a.stdout, "%s added as friend\n", *username)
			return nil
		case "remove":
			fs := flag.NewFlagSet("friends remove", flag.ContinueOnError)
			fs.SetOutput(a.stderr)
			id := fs.Int64("id", 0, "Friend id to remove")
			if err := fs.Parse(args[1:]); err != nil {
				return err
			}
			if *id == 0 {
				return fmt.Errorf("missing required flags: id")
			}
			if err := a.friends.Delete(ctx, *id); err != nil {
				return err
			}
			fmt.Fprintf(a.stdout, "Friend %d removed\n", *id)
			return nil
		}
	}

	if err := a.friends.Fetch(ctx); err != nil {
		return err
	}
	list := a.friends.Items()
	if len(list) == 0 {
		fmt.Fprintln(a.stdout, "No friends yet")
		return nil
	}
	w := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tUSERNAME")
	for _, f := range list {
		fmt.Fprintf(w, "%d\t%s\n", f.ID, f.User.Username)
	}
	return w.Flush()
}

func (a *app) expensesCmd(ctx context.Context, args []string) error {
	if err := a.requireLogin(); err != nil {
		return err
	}

	if len(args) > 0 && args[0] == "delete" {
		fs := flag.NewFlagSet("expenses delete", flag.ContinueOnError)
		fs.SetOutput(a.stderr)
		id := fs.Int64("id", 0, "Expense id to delete")
		if err := fs.Parse(args[1:]); err != nil {
			return err
		}
		if *id == 0 {
			return fmt.Errorf("missing required flags: id")
		}
		if err := a.expenses.Delete(ctx, *id); err != nil {
			return err
		}
		fmt.Fprintf(a.stdout, "Expense %d deleted\n", *id)
		return nil
	}

	if err := a.expenses.Fetch(ctx); err != nil {
		return err
	}
	list := a.expenses.Items()
	if len(list) == 0 {
		fmt.Fprintln(a.stdout, "No expenses yet")
		return nil
	}
	w := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTITLE\tAMOUNT\tDATE\tPAID BY")
	for _, e := range list {
		paidBy := ""
		if e.Student != nil {
			paidBy = e.Student.User.Username
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n",
			e.ID, e.Title, e.Amount.StringFixed(2), e.Date.Format("2006-01-02"), paidBy)
	}
	return w.Flush()
}

func (a *app) splitCmd(ctx context.Context, args []string) error {
	if err := a.requireLogin(); err != nil {
		return err
	}

	fs := flag.NewFlagSet("split", flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	title := fs.String("title", "", "Expense title")
	amountFlag := fs.String("amount", "", "Total amount, e.g. 42.50")
	payeesFlag := fs.String("payees", "", "Comma-separated friend ids to split with")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *title == "" || *amountFlag == "" || *payeesFlag == "" {
		return fmt.Errorf("missing required flags: title, amount, payees")
	}

	amount, err := decimal.NewFromString(*amountFlag)
	if err != nil {
		return fmt.Errorf("invalid amount %q: %w", *amountFlag, err)
	}
	payeeIDs, err := parseIDs(*payeesFlag)
	if err != nil {
		return err
	}

	result, err := split.Submit(ctx, a.client, *title, amount, payeeIDs)
	if err != nil {
		if result.Expense.ID != 0 {
			// The expense and any prefix of shares stay persisted;
			// there is no rollback.
			return fmt.Errorf("expense %d created but only %d of %d shares persisted: %w",
				result.Expense.ID, len(result.Shares), len(payeeIDs), err)
		}
		return err
	}

	share, _ := split.ShareAmount(amount, len(payeeIDs))
	fmt.Fprintf(a.stdout, "Expense %d created: %s, %s split %d ways, each owes %s\n",
		result.Expense.ID, *title, amount.StringFixed(2), len(payeeIDs)+1, share.StringFixed(2))
	return nil
}

func (a *app) sharesCmd(ctx context.Context, args []string) error {
	if err := a.requireLogin(); err != nil {
		return err
	}

	fs := flag.NewFlagSet("shares", flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	expenseID := fs.Int64("expense", 0, "Expense id")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *expenseID == 0 {
		return fmt.Errorf("missing required flags: expense")
	}

	shares, err := a.client.Shares(ctx, *expenseID)
	if err != nil {
		return err
	}
	if len(shares) == 0 {
		fmt.Fprintln(a.stdout, "No shares recorded")
		return nil
	}
	w := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tPAYEE\tOWES")
	for _, s := range shares {
		fmt.Fprintf(w, "%d\t%s\t%s\n", s.ID, s.PayeeUsername, s.Amount.StringFixed(2))
	}
	return w.Flush()
}

func (a *app) sharedCmd(ctx context.Context) error {
	if err := a.requireLogin(); err != nil {
		return err
	}

	if err := a.shared.Fetch(ctx); err != nil {
		return err
	}
	list := a.shared.Items()
	if len(list) == 0 {
		fmt.Fprintln(a.stdout, "No shared expenses")
		return nil
	}
	w := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tEXPENSE\tPAYEE\tOWES")
	for _, s := range list {
		fmt.Fprintf(w, "%d\t%d\t%s\t%s\n", s.ID, s.ExpenseID, s.PayeeUsername, s.Amount.StringFixed(2))
	}
	return w.Flush()
}

func parseIDs(s string) ([]int64, error) {
	parts := strings.Split(s, ",")
	ids := make([]int64, 0, len(parts))
	seen := make(map[int64]bool)
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid id %q", part)
		}
		if seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("no payee ids given")
	}
	return ids, nil
}

func (a *app) password(fromFlag string) (string, error) {
	password := fromFlag
	if password == "" {
		fmt.Fprint(a.stdout, "Password: ")
		var err error
		password, err = readPassword(a.stdin)
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		fmt.Fprintln(a.stdout) // Print newline after password input
	}
	if strings.TrimSpace(password) == "" {
		return "", fmt.Errorf("password cannot be empty")
	}
	return password, nil
}

func readPassword(stdin io.Reader) (string, error) {
	// Check if stdin is a terminal
	if f, ok := stdin.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		bytePassword, err := term.ReadPassword(int(f.Fd()))
		if err != nil {
			return "", err
		}
		return string(bytePassword), nil
	}

	// Fallback for non-terminal (e.g. tests, pipes)
	scanner := bufio.NewScanner(stdin)
	if scanner.Scan() {
		return scanner.Text(), nil
	}
	if err := scanner.Err(); err != nil {
		return "", err
	}
	return "", io.EOF
}
