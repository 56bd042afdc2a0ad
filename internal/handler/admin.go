package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/kiwari-pos/orderledger/internal/ledger"
)

// Auditor defines the reconciliation methods needed by admin handlers.
// Satisfied by *ledger.Ledger; narrow interface for testability.
type Auditor interface {
	Audit(ctx context.Context) (*ledger.AuditReport, error)
	Repair(ctx context.Context, report *ledger.AuditReport) (int, error)
}

// AdminHandler handles ledger maintenance endpoints.
type AdminHandler struct {
	auditor Auditor
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(auditor Auditor) *AdminHandler {
	return &AdminHandler{auditor: auditor}
}

// RegisterRoutes registers admin endpoints on the given Chi router.
// Expected to be mounted at /admin behind RequireRole("ADMIN").
func (h *AdminHandler) RegisterRoutes(r chi.Router) {
	r.Get("/audit", h.Audit)
	r.Post("/repair", h.Repair)
}

// --- Response types ---

type discrepancyResponse struct {
	CustomerID string         `json:"customer_id"`
	OrderID    string         `json:"order_id"`
	Problem    string         `json:"problem"`
	Global     *OrderResponse `json:"global"`
	Customer   *OrderResponse `json:"customer"`
}

type auditResponse struct {
	Consistent    bool                  `json:"consistent"`
	Customers     int                   `json:"customers"`
	Orders        int                   `json:"orders"`
	Discrepancies []discrepancyResponse `json:"discrepancies"`
}

type repairResponse struct {
	Repaired int           `json:"repaired"`
	Before   auditResponse `json:"before"`
	After    auditResponse `json:"after"`
}

func toAuditResponse(rep *ledger.AuditReport) auditResponse {
	resp := auditResponse{
		Consistent:    rep.Consistent(),
		Customers:     rep.Customers,
		Orders:        rep.Orders,
		Discrepancies: make([]discrepancyResponse, len(rep.Discrepancies)),
	}
	for i, d := range rep.Discrepancies {
		dr := discrepancyResponse{CustomerID: d.CustomerID, OrderID: d.OrderID, Problem: string(d.Problem)}
		if d.Global != nil {
			o := ToOrderResponse(*d.Global)
			dr.Global = &o
		}
		if d.Customer != nil {
			o := ToOrderResponse(*d.Customer)
			dr.Customer = &o
		}
		resp.Discrepancies[i] = dr
	}
	return resp
}

// --- Handlers ---

// Audit compares every customer ledger against the global ledger.
func (h *AdminHandler) Audit(w http.ResponseWriter, r *http.Request) {
	rep, err := h.auditor.Audit(r.Context())
	if err != nil {
		writeError(w, "audit", err)
		return
	}
	writeJSON(w, http.StatusOK, toAuditResponse(rep))
}

// Repair audits, fixes customer ledgers from the global ledger, then audits
// again so the caller can see what is left.
func (h *AdminHandler) Repair(w http.ResponseWriter, r *http.Request) {
	before, err := h.auditor.Audit(r.Context())
	if err != nil {
		writeError(w, "repair", err)
		return
	}

	n, err := h.auditor.Repair(r.Context(), before)
	if err != nil {
		writeError(w, "repair", err)
		return
	}

	after, err := h.auditor.Audit(r.Context())
	if err != nil {
		writeError(w, "repair", err)
		return
	}

	writeJSON(w, http.StatusOK, repairResponse{
		Repaired: n,
		Before:   toAuditResponse(before),
		After:    toAuditResponse(after),
	})
}
