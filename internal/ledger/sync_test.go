package ledger

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/kiwari-pos/orderledger/internal/apperr"
	"github.com/kiwari-pos/orderledger/internal/csvstore"
)

func TestUpdateStatusRemovesOrderFromPending(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()
	first := mustCheckout(t, l, "bob", Contents{"Pizza": 2}, "300")
	second := mustCheckout(t, l, "bob", Contents{"Soda": 1}, "40")

	if err := l.UpdateStatus(ctx, first.ID, "bob", StatusPreparing); err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}

	pending, err := l.ReadPending(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 1 || pending[0].ID != second.ID {
		t.Errorf("pending: got %+v, want only %s", pending, second.ID)
	}

	for _, s := range []Store{Global, CustomerStore("bob")} {
		orders, err := l.ReadAll(ctx, s)
		if err != nil {
			t.Fatal(err)
		}
		if orders[0].Status != StatusPreparing {
			t.Errorf("%s: status %s, want Preparing", s, orders[0].Status)
		}
		if orders[1].Status != StatusPending {
			t.Errorf("%s: untouched order changed to %s", s, orders[1].Status)
		}
	}
}

func TestUpdateStatusAllowsAnyTransition(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()
	o := mustCheckout(t, l, "bob", Contents{"Pizza": 1}, "100")

	for _, st := range []Status{StatusDelivered, StatusPending, StatusPreparing, StatusPreparing} {
		if err := l.UpdateStatus(ctx, o.ID, "bob", st); err != nil {
			t.Fatalf("UpdateStatus(%s): %v", st, err)
		}
		got, err := l.Find(ctx, o.ID)
		if err != nil {
			t.Fatal(err)
		}
		if got.Status != st {
			t.Errorf("status: got %s, want %s", got.Status, st)
		}
	}
}

func TestUpdateStatusUnknownOrderLeavesStoresUntouched(t *testing.T) {
	l := newTestLedger(t)
	mustCheckout(t, l, "bob", Contents{"Pizza": 1}, "100")
	globalBefore := readFile(t, l.Path(Global))
	custBefore := readFile(t, l.Path(CustomerStore("bob")))

	err := l.UpdateStatus(context.Background(), "010124bob99", "bob", StatusDelivered)
	if !errors.Is(err, apperr.ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound, got %v", err)
	}
	if readFile(t, l.Path(Global)) != globalBefore {
		t.Error("global store modified")
	}
	if readFile(t, l.Path(CustomerStore("bob"))) != custBefore {
		t.Error("customer store modified")
	}
}

func TestUpdateStatusMissingFromCustomerStoreWritesNothing(t *testing.T) {
	l := newTestLedger(t)
	writeFile(t, l.Path(Global), csvHeader+"010124bob1,bob,\"[{'Pizza': 1}]\",100.00,Pending\n")
	writeFile(t, l.Path(CustomerStore("bob")), csvHeader)
	before := readFile(t, l.Path(Global))

	err := l.UpdateStatus(context.Background(), "010124bob1", "bob", StatusPreparing)
	if !errors.Is(err, apperr.ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound, got %v", err)
	}
	if readFile(t, l.Path(Global)) != before {
		t.Error("global store modified although the customer store lacked the order")
	}
}

func TestUpdateStatusKeepsUnrelatedRowsVerbatim(t *testing.T) {
	l := newTestLedger(t)
	malformedRow := "010124bob1,bob,not contents,abc,Pending\n"
	writeFile(t, l.Path(Global), csvHeader+malformedRow+"010124bob2,bob,\"[{'Soda': 1}]\",40,Pending\n")
	writeFile(t, l.Path(CustomerStore("bob")), csvHeader+"010124bob2,bob,\"[{'Soda': 1}]\",40,Pending\n")

	if err := l.UpdateStatus(context.Background(), "010124bob2", "bob", StatusDelivered); err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}

	got := readFile(t, l.Path(Global))
	if !strings.Contains(got, malformedRow) {
		t.Errorf("malformed row lost or altered:\n%s", got)
	}
	if !strings.Contains(got, "010124bob2,bob,[{'Soda': 1}],40,Delivered\n") {
		t.Errorf("updated row not rewritten in place:\n%s", got)
	}
}

func TestUpdateStatusRefusesStoreWithUnparsedLines(t *testing.T) {
	l := newTestLedger(t)
	raw := csvHeader + "010124bob1,bob,[],1,Pending\nbad\"quote,bob,[],1,Pending\n"
	writeFile(t, l.Path(Global), raw)
	writeFile(t, l.Path(CustomerStore("bob")), csvHeader+"010124bob1,bob,[],1,Pending\n")

	err := l.UpdateStatus(context.Background(), "010124bob1", "bob", StatusDelivered)
	if !errors.Is(err, apperr.ErrMalformedRecord) {
		t.Fatalf("expected ErrMalformedRecord, got %v", err)
	}
	if readFile(t, l.Path(Global)) != raw {
		t.Error("store with unparsed lines was rewritten")
	}
}

func TestUpdateStatusPartialConsistency(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()
	o := mustCheckout(t, l, "bob", Contents{"Pizza": 1}, "100")

	custPath := l.Path(CustomerStore("bob"))
	l.writeTable = func(path string, tbl *csvstore.Table) error {
		if path == custPath {
			return errors.New("read-only file system")
		}
		return csvstore.WriteAtomic(path, tbl)
	}

	err := l.UpdateStatus(ctx, o.ID, "bob", StatusDelivered)
	if !errors.Is(err, apperr.ErrPartialConsistency) {
		t.Fatalf("expected ErrPartialConsistency, got %v", err)
	}

	// Running the same update again once the store is writable converges.
	l.writeTable = csvstore.WriteAtomic
	if err := l.UpdateStatus(ctx, o.ID, "bob", StatusDelivered); err != nil {
		t.Fatalf("retry UpdateStatus: %v", err)
	}
	cust, err := l.ReadAll(ctx, CustomerStore("bob"))
	if err != nil {
		t.Fatal(err)
	}
	if cust[0].Status != StatusDelivered {
		t.Errorf("customer status: got %s, want Delivered", cust[0].Status)
	}
}

func TestUpdateStatusRejectsUnknownStatus(t *testing.T) {
	l := newTestLedger(t)
	o := mustCheckout(t, l, "bob", Contents{"Pizza": 1}, "100")
	if err := l.UpdateStatus(context.Background(), o.ID, "bob", Status("Cancelled")); !errors.Is(err, apperr.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}
