package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/kiwari-pos/orderledger/internal/apperr"
	"github.com/kiwari-pos/orderledger/internal/dashboard"
	"github.com/kiwari-pos/orderledger/internal/ledger"
	"github.com/kiwari-pos/orderledger/internal/service"
	"github.com/olekukonko/tablewriter"
)

// itemsFlag collects repeated -item name=qty flags.
type itemsFlag []service.CheckoutItem

func (f *itemsFlag) String() string {
	parts := make([]string, len(*f))
	for i, it := range *f {
		parts[i] = fmt.Sprintf("%s=%d", it.Name, it.Quantity)
	}
	return strings.Join(parts, ",")
}

func (f *itemsFlag) Set(v string) error {
	name, qty, ok := strings.Cut(v, "=")
	if !ok {
		return fmt.Errorf("want name=qty, got %q", v)
	}
	n, err := strconv.Atoi(strings.TrimSpace(qty))
	if err != nil {
		return fmt.Errorf("quantity for %q: %w", name, err)
	}
	*f = append(*f, service.CheckoutItem{Name: name, Quantity: n})
	return nil
}

func newFlagSet(name string, out io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(out)
	return fs
}

func (a *app) runCheckout(ctx context.Context, args []string) error {
	fs := newFlagSet("checkout", a.out)
	customer := fs.String("customer", "", "customer id")
	var items itemsFlag
	fs.Var(&items, "item", "item as name=qty (repeatable)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	o, err := a.checkout.Checkout(ctx, service.CheckoutRequest{CustomerID: *customer, Items: items})
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "placed order %s for %s: %s, total %s\n", o.ID, o.CustomerID, formatContents(o.Contents), o.Total.StringFixed(2))
	return nil
}

func (a *app) runPending(ctx context.Context, args []string) error {
	fs := newFlagSet("pending", a.out)
	if err := fs.Parse(args); err != nil {
		return err
	}

	orders, err := a.ledger.ReadPending(ctx)
	if err != nil {
		return err
	}
	return printOrders(a.out, orders)
}

func (a *app) runHistory(ctx context.Context, args []string) error {
	fs := newFlagSet("history", a.out)
	term := fs.String("q", "", "search order id, customer or item")
	customer := fs.String("customer", "", "read one customer's ledger")
	page := fs.Int("page", 1, "page number")
	perPage := fs.Int("per-page", dashboard.DefaultPerPage, "orders per page")
	if err := fs.Parse(args); err != nil {
		return err
	}

	store := ledger.Global
	if *customer != "" {
		store = ledger.CustomerStore(*customer)
	}
	res, err := a.ledger.Scan(ctx, store)
	if err != nil {
		return err
	}

	p := dashboard.Paginate(dashboard.MostRecentFirst(dashboard.Search(res.Orders, *term)), *page, *perPage)
	if err := printOrders(a.out, p.Orders); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "page %d of %d (%d orders)\n", p.Page, p.Pages, p.Total)
	if len(res.Skipped) > 0 {
		fmt.Fprintf(a.out, "%d unreadable rows skipped in the %s\n", len(res.Skipped), store)
	}
	return nil
}

func (a *app) runStatus(ctx context.Context, args []string) error {
	fs := newFlagSet("status", a.out)
	id := fs.String("id", "", "order id")
	status := fs.String("status", "", "new status")
	customer := fs.String("customer", "", "owning customer (looked up when empty)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *id == "" {
		return fmt.Errorf("%w: -id is required", apperr.ErrInvalidInput)
	}

	st, err := ledger.ParseStatus(*status)
	if err != nil {
		return err
	}
	if *customer == "" {
		o, err := a.ledger.Find(ctx, *id)
		if err != nil {
			return err
		}
		*customer = o.CustomerID
	}

	if err := a.ledger.UpdateStatus(ctx, *id, *customer, st); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "order %s is now %s\n", *id, st)
	return nil
}

func (a *app) runWatch(ctx context.Context, args []string) error {
	fs := newFlagSet("watch", a.out)
	interval := fs.Duration("interval", a.cfg.PollInterval, "refresh interval")
	if err := fs.Parse(args); err != nil {
		return err
	}

	p := &dashboard.Poller{
		Interval: *interval,
		Fetch:    a.ledger.ReadPending,
		OnRefresh: func(orders []ledger.Order) {
			fmt.Fprintf(a.out, "\n%s: %d pending\n", time.Now().Format("15:04:05"), len(orders))
			printOrders(a.out, orders)
		},
		OnError: func(err error) {
			fmt.Fprintf(a.out, "refresh failed: %s\n", apperr.Message(err))
		},
	}
	h := p.Start(ctx)
	<-ctx.Done()
	h.Stop()
	return nil
}

func (a *app) runAudit(ctx context.Context, args []string) error {
	fs := newFlagSet("audit", a.out)
	repair := fs.Bool("repair", false, "rewrite customer ledgers from the global ledger")
	if err := fs.Parse(args); err != nil {
		return err
	}

	rep, err := a.ledger.Audit(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%d orders, %d customers, %d discrepancies\n", rep.Orders, rep.Customers, len(rep.Discrepancies))
	if rep.Consistent() {
		return nil
	}

	table := tablewriter.NewWriter(a.out)
	table.Header("Customer", "Order", "Problem", "Global", "Customer Copy")
	rows := make([][]string, len(rep.Discrepancies))
	for i, d := range rep.Discrepancies {
		rows[i] = []string{d.CustomerID, d.OrderID, string(d.Problem), describe(d.Global), describe(d.Customer)}
	}
	if err := table.Bulk(rows); err != nil {
		return err
	}
	if err := table.Render(); err != nil {
		return err
	}

	if !*repair {
		return nil
	}
	n, err := a.ledger.Repair(ctx, rep)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "repaired %d orders\n", n)
	return nil
}

func (a *app) runMenu(ctx context.Context, args []string) error {
	fs := newFlagSet("menu", a.out)
	if err := fs.Parse(args); err != nil {
		return err
	}

	items, err := a.menu.Items(ctx)
	if err != nil {
		return err
	}
	table := tablewriter.NewWriter(a.out)
	table.Header("Category", "Name", "Price", "Type", "Description")
	rows := make([][]string, len(items))
	for i, it := range items {
		rows[i] = []string{it.Category, it.Name, it.Price.StringFixed(2), it.Type, it.Description}
	}
	if err := table.Bulk(rows); err != nil {
		return err
	}
	return table.Render()
}

// printOrders renders orders as a table.
func printOrders(w io.Writer, orders []ledger.Order) error {
	table := tablewriter.NewWriter(w)
	table.Header("Order", "Customer", "Items", "Total", "Status")
	rows := make([][]string, len(orders))
	for i, o := range orders {
		rows[i] = []string{o.ID, o.CustomerID, formatContents(o.Contents), o.Total.StringFixed(2), string(o.Status)}
	}
	if err := table.Bulk(rows); err != nil {
		return err
	}
	return table.Render()
}

func formatContents(c ledger.Contents) string {
	parts := make([]string, 0, len(c))
	for _, name := range c.Names() {
		parts = append(parts, fmt.Sprintf("%s x%d", name, c[name]))
	}
	return strings.Join(parts, ", ")
}

func describe(o *ledger.Order) string {
	if o == nil {
		return "-"
	}
	return fmt.Sprintf("%s %s", o.Status, o.Total.StringFixed(2))
}
