package handler_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/kiwari-pos/orderledger/internal/handler"
	"github.com/kiwari-pos/orderledger/internal/ledger"
	"github.com/kiwari-pos/orderledger/internal/middleware"
)

// --- Mock Auditor ---

type mockAuditor struct {
	auditFn  func(ctx context.Context) (*ledger.AuditReport, error)
	repairFn func(ctx context.Context, report *ledger.AuditReport) (int, error)
}

func (m *mockAuditor) Audit(ctx context.Context) (*ledger.AuditReport, error) {
	return m.auditFn(ctx)
}

func (m *mockAuditor) Repair(ctx context.Context, report *ledger.AuditReport) (int, error) {
	return m.repairFn(ctx, report)
}

func setupAdminRouter(a *mockAuditor) *chi.Mux {
	h := handler.NewAdminHandler(a)
	r := chi.NewRouter()
	r.Use(middleware.Authenticate(testJWTSecret))
	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireRole("ADMIN"))
		r.Route("/admin", h.RegisterRoutes)
	})
	return r
}

func divergentReport() *ledger.AuditReport {
	global := testOrder("010124bob2", "bob", ledger.StatusPreparing)
	customer := testOrder("010124bob2", "bob", ledger.StatusPending)
	missing := testOrder("010124bob3", "bob", ledger.StatusPending)
	return &ledger.AuditReport{
		Customers: 1,
		Orders:    3,
		Discrepancies: []ledger.Discrepancy{
			{CustomerID: "bob", OrderID: "010124bob2", Problem: ledger.Mismatch, Global: &global, Customer: &customer},
			{CustomerID: "bob", OrderID: "010124bob3", Problem: ledger.MissingInCustomer, Global: &missing},
		},
	}
}

func TestAudit(t *testing.T) {
	a := &mockAuditor{auditFn: func(ctx context.Context) (*ledger.AuditReport, error) {
		return divergentReport(), nil
	}}
	r := setupAdminRouter(a)

	rr := doAuthRequest(t, r, "GET", "/admin/audit", nil, adminClaims())
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusOK)
	}

	resp := decodeResponse(t, rr)
	if resp["consistent"] != false || resp["orders"] != float64(3) {
		t.Errorf("report: %v", resp)
	}
	ds := resp["discrepancies"].([]interface{})
	if len(ds) != 2 {
		t.Fatalf("discrepancies: got %d, want 2", len(ds))
	}
	first := ds[0].(map[string]interface{})
	if first["problem"] != "mismatch" || first["global"].(map[string]interface{})["status"] != "Preparing" {
		t.Errorf("first discrepancy: %v", first)
	}
	if second := ds[1].(map[string]interface{}); second["customer"] != nil {
		t.Errorf("missing row should have no customer copy: %v", second)
	}
}

func TestRepair(t *testing.T) {
	audits := 0
	a := &mockAuditor{
		auditFn: func(ctx context.Context) (*ledger.AuditReport, error) {
			audits++
			if audits == 1 {
				return divergentReport(), nil
			}
			return &ledger.AuditReport{Customers: 1, Orders: 3}, nil
		},
		repairFn: func(ctx context.Context, report *ledger.AuditReport) (int, error) {
			return len(report.Discrepancies), nil
		},
	}
	r := setupAdminRouter(a)

	rr := doAuthRequest(t, r, "POST", "/admin/repair", nil, adminClaims())
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}

	resp := decodeResponse(t, rr)
	if resp["repaired"] != float64(2) {
		t.Errorf("repaired: got %v, want 2", resp["repaired"])
	}
	if after := resp["after"].(map[string]interface{}); after["consistent"] != true {
		t.Errorf("after: %v", after)
	}
}

func TestAdminRoutes_RequireAdmin(t *testing.T) {
	a := &mockAuditor{auditFn: func(ctx context.Context) (*ledger.AuditReport, error) {
		t.Fatal("audit should not run")
		return nil, nil
	}}
	r := setupAdminRouter(a)

	rr := doAuthRequest(t, r, "GET", "/admin/audit", nil, staffClaims())
	if rr.Code != http.StatusForbidden {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusForbidden)
	}
}
