// Command ledgerctl works on a ledger data directory from the terminal:
// placing orders, moving them through the kitchen, and reconciling stores.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/kiwari-pos/orderledger/internal/apperr"
	"github.com/kiwari-pos/orderledger/internal/config"
	"github.com/kiwari-pos/orderledger/internal/ledger"
	"github.com/kiwari-pos/orderledger/internal/menu"
	"github.com/kiwari-pos/orderledger/internal/service"
)

const usage = `usage: ledgerctl [-data dir] <command> [flags]

commands:
  checkout -customer id -item name=qty [-item name=qty ...]
  pending
  history [-q term] [-customer id] [-page n] [-per-page n]
  status -id order -status Pending|Preparing|Delivered [-customer id]
  watch [-interval 10s]
  audit [-repair]
  menu
`

// app holds the stores a command runs against.
type app struct {
	ledger   *ledger.Ledger
	menu     *menu.Catalog
	checkout *service.CheckoutService
	out      io.Writer
	cfg      *config.Config
}

func main() {
	_ = godotenv.Load()
	log.SetFlags(0)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(2)
		}
		log.Printf("ERROR: %s (%s)", apperr.Message(err), err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, out io.Writer) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	fs := flag.NewFlagSet("ledgerctl", flag.ContinueOnError)
	fs.SetOutput(out)
	fs.Usage = func() { fmt.Fprint(out, usage) }
	dataDir := fs.String("data", cfg.DataDir, "ledger data directory")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return flag.ErrHelp
	}

	l, err := ledger.New(*dataDir, ledger.WithRetry(cfg.StoreRetries, cfg.StoreRetryWait))
	if err != nil {
		return err
	}
	catalog := menu.NewCatalog(*dataDir, log.Default())
	a := &app{
		ledger:   l,
		menu:     catalog,
		checkout: service.NewCheckoutService(l, catalog),
		out:      out,
		cfg:      cfg,
	}

	cmd, rest := fs.Arg(0), fs.Args()[1:]
	switch cmd {
	case "checkout":
		return a.runCheckout(ctx, rest)
	case "pending":
		return a.runPending(ctx, rest)
	case "history":
		return a.runHistory(ctx, rest)
	case "status":
		return a.runStatus(ctx, rest)
	case "watch":
		return a.runWatch(ctx, rest)
	case "audit":
		return a.runAudit(ctx, rest)
	case "menu":
		return a.runMenu(ctx, rest)
	default:
		fs.Usage()
		return fmt.Errorf("%w: unknown command %q", apperr.ErrInvalidInput, cmd)
	}
}
