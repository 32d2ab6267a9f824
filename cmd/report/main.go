package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"expenseflow/internal/client"
	"expenseflow/internal/models"
	"expenseflow/internal/stats"

	"github.com/charmbracelet/lipgloss"
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

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("report", flag.ContinueOnError)
	fs.SetOutput(stderr)

	serverURL := fs.String("url", envOr("EXPENSEFLOW_URL", "http://localhost:8080"), "Server base URL")
	email := fs.String("email", "", "Email address")
	passwordFlag := fs.String("password", "", "Password (optional, will prompt if omitted)")
	view := fs.String("view", string(stats.ViewDaily), "View: daily, monthly or annual")
	month := fs.String("month", "", "Month for the monthly view (YYYY-MM)")
	category := fs.String("category", stats.All, "Category filter")
	card := fs.String("card", stats.All, "Card id filter")
	limit := fs.Int("limit", 10, "Number of expenses to list")

	if err := fs.Parse(args); err != nil {
		return err
	}
	if *email == "" {
		fmt.Fprintln(stdout, "Usage: report -email <email> [-url <server>] [-view daily|monthly|annual] [-month YYYY-MM] [-category <name>] [-card <id>]")
		fs.PrintDefaults()
		return fmt.Errorf("missing required flags: email")
	}

	move, err := selection(*view, *month, *category, *card)
	if err != nil {
		return err
	}

	password := *passwordFlag
	if password == "" {
		fmt.Fprint(stdout, "Password: ")
		password, err = readPassword(stdin)
		if err != nil {
			return fmt.Errorf("failed to read password: %w", err)
		}
		fmt.Fprintln(stdout)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	c, err := client.New(*serverURL)
	if err != nil {
		return err
	}
	user, err := c.Login(ctx, *email, password)
	if err != nil {
		return fmt.Errorf("login: %w", err)
	}
	defer c.Logout(context.Background())

	ledger := client.NewLedger(c)
	if err := ledger.Load(ctx); err != nil {
		return err
	}
	ledger.Navigate(move)

	render(stdout, user, ledger, *limit)
	return nil
}

// selection turns the view flags into a query transition.
func selection(view, month, category, card string) (func(stats.Query) stats.Query, error) {
	v, ok := stats.ParseView(view)
	if !ok {
		return nil, fmt.Errorf("unknown view %q", view)
	}
	if v == stats.ViewMonthly {
		if _, err := time.Parse("2006-01", month); err != nil {
			return nil, fmt.Errorf("monthly view needs -month YYYY-MM")
		}
	}
	if category != stats.All {
		if _, ok := models.ParseCategory(category); !ok {
			return nil, fmt.Errorf("unknown category %q", category)
		}
	}
	return func(q stats.Query) stats.Query {
		switch v {
		case stats.ViewMonthly:
			q = q.SelectMonth(month)
		case stats.ViewAnnual:
			q = q.SelectAnnual()
		default:
			q = q.SelectDaily()
		}
		return q.SelectCategory(category).SelectCard(card)
	}, nil
}

// palette maps the named colors of categories and cards to terminal colors.
var palette = map[string]lipgloss.Color{
	"blue":   "#89b4fa",
	"purple": "#cba6f7",
	"green":  "#a6e3a1",
	"red":    "#f38ba8",
	"indigo": "#b4befe",
	"pink":   "#f5c2e7",
	"yellow": "#f9e2af",
	"teal":   "#94e2d5",
	"orange": "#fab387",
	"cyan":   "#89dceb",
	"gray":   "#7f849c",
}

func render(w io.Writer, user client.User, ledger *client.Ledger, limit int) {
	r := lipgloss.NewRenderer(w)
	title := r.NewStyle().Bold(true).Foreground(lipgloss.Color("#cdd6f4"))
	heading := r.NewStyle().Bold(true).Underline(true)
	muted := r.NewStyle().Foreground(palette["gray"])
	tint := func(name, s string) string {
		return r.NewStyle().Foreground(palette[name]).Render(s)
	}

	d := ledger.Dashboard()
	q := d.Query

	fmt.Fprintln(w, title.Render(fmt.Sprintf("Expenses of %s", user.DisplayName)))
	fmt.Fprintln(w, muted.Render(describe(q, ledger)))
	fmt.Fprintln(w)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Total\t%s\n", money(d.Total))
	fmt.Fprintf(tw, "Today\t%s\n", money(d.Today))
	fmt.Fprintf(tw, "Last 7 days\t%s\n", money(d.Week))
	tw.Flush()

	switch q.View {
	case stats.ViewAnnual:
		fmt.Fprintln(w)
		fmt.Fprintln(w, heading.Render("By year"))
		tw = tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		for _, y := range d.Years {
			fmt.Fprintf(tw, "%d\t%s\t%d expenses\n", y.Year, money(y.Total), y.Count)
		}
		tw.Flush()
	case stats.ViewDaily:
		fmt.Fprintln(w)
		fmt.Fprintln(w, heading.Render("By month"))
		tw = tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		for _, m := range d.Months {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%d expenses\n", m.MonthKey, m.Label, money(m.Total), m.Count)
		}
		tw.Flush()
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, heading.Render("By category"))
	tw = tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, c := range d.Categories {
		if c.Count == 0 {
			continue
		}
		fmt.Fprintf(tw, "%s\t%s\t%5.1f%%\n", tint(c.Color, string(c.Category)), money(c.Total), c.Percentage)
	}
	tw.Flush()

	if cards := ledger.Cards(); len(cards) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, heading.Render("Cards"))
		tw = tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		for _, c := range cards {
			s := d.Cards[c.ID]
			fmt.Fprintf(tw, "%s\t•••• %s\t%s\t%s this month\n",
				tint(string(c.Color), c.Name), c.LastFourDigits, money(s.Total), money(s.ThisMonth))
		}
		tw.Flush()
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, heading.Render("Recent expenses"))
	if len(d.Expenses) == 0 {
		fmt.Fprintln(w, muted.Render("No expenses"))
		return
	}
	tw = tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for i, e := range d.Expenses {
		if limit > 0 && i == limit {
			fmt.Fprintf(tw, "\t%s\n", muted.Render(fmt.Sprintf("and %d more", len(d.Expenses)-limit)))
			break
		}
		paid := ""
		if c, ok := ledger.Card(e.CreditCardID); ok {
			paid = c.Name
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", e.Date, e.Description, e.Category, money(e.Amount), paid)
	}
	tw.Flush()
}

// describe names the current selection.
func describe(q stats.Query, ledger *client.Ledger) string {
	parts := []string{string(q.View)}
	if q.View == stats.ViewMonthly {
		parts[0] += " " + q.MonthKey
	}
	if q.Category != stats.All {
		parts = append(parts, "category "+q.Category)
	}
	if q.CardID != stats.All {
		name := q.CardID
		if c, ok := ledger.Card(q.CardID); ok {
			name = c.Name
		}
		parts = append(parts, "card "+name)
	}
	return strings.Join(parts, ", ")
}

func money(v float64) string {
	if v < 0 {
		return fmt.Sprintf("-$%.2f", -v)
	}
	return fmt.Sprintf("$%.2f", v)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func readPassword(stdin io.Reader) (string, error) {
	if f, ok := stdin.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		b, err := term.ReadPassword(int(f.Fd()))
		if err != nil {
			return "", err
		}
		return string(b), nil
	}

	scanner := bufio.NewScanner(stdin)
	if scanner.Scan() {
		return scanner.Text(), nil
	}
	if err := scanner.Err(); err != nil {
		return "", err
	}
	return "", io.EOF
}
