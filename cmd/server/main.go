package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/kiwari-pos/orderledger/internal/config"
	"github.com/kiwari-pos/orderledger/internal/dashboard"
	"github.com/kiwari-pos/orderledger/internal/enum"
	"github.com/kiwari-pos/orderledger/internal/handler"
	"github.com/kiwari-pos/orderledger/internal/ledger"
	"github.com/kiwari-pos/orderledger/internal/menu"
	"github.com/kiwari-pos/orderledger/internal/router"
	"github.com/kiwari-pos/orderledger/internal/service"
	"github.com/kiwari-pos/orderledger/internal/users"
	"github.com/kiwari-pos/orderledger/internal/ws"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Stores
	l, err := ledger.New(cfg.DataDir, ledger.WithRetry(cfg.StoreRetries, cfg.StoreRetryWait))
	if err != nil {
		log.Fatalf("open ledger: %v", err)
	}
	catalog := menu.NewCatalog(cfg.DataDir, log.Default())
	directory := users.NewDirectory(cfg.DataDir)
	checkout := service.NewCheckoutService(l, catalog)

	// Realtime hub
	hub := ws.NewHub()
	go hub.Run(ctx)

	// Pending-order snapshots for the staff dashboards. Polling pauses while
	// nobody is watching.
	poller := &dashboard.Poller{
		Interval: cfg.PollInterval,
		Paused:   func() bool { return hub.ClientCount(ws.StaffRoom) == 0 },
		Fetch:    l.ReadPending,
		OnRefresh: func(orders []ledger.Order) {
			event, err := ws.NewEvent(enum.EventPendingSnapshot, handler.ToOrderResponses(orders))
			if err != nil {
				log.Printf("ERROR: build pending snapshot: %v", err)
				return
			}
			hub.Broadcast(ws.StaffRoom, event)
		},
		OnError: func(err error) {
			log.Printf("ERROR: refresh pending orders: %v", err)
		},
	}
	polling := poller.Start(ctx)

	r := router.New(cfg, router.Deps{
		Ledger:   l,
		Menu:     catalog,
		Users:    directory,
		Checkout: checkout,
		Hub:      hub,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("Starting server on :%s (data dir %s)", cfg.Port, l.Dir())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("ERROR: listen: %v", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Println("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("ERROR: shutdown: %v", err)
	}
	polling.Stop()
	if cfg.AuditOnExit {
		auditOnExit(l)
	}
}

// auditOnExit logs any divergence between the ledgers left by partial writes.
func auditOnExit(l *ledger.Ledger) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	rep, err := l.Audit(ctx)
	if err != nil {
		log.Printf("ERROR: audit: %v", err)
		return
	}
	if rep.Consistent() {
		log.Printf("audit: %d orders across %d customers are consistent", rep.Orders, rep.Customers)
		return
	}
	log.Printf("WARN: audit found %d discrepancies; run `ledgerctl audit -repair`", len(rep.Discrepancies))
}
