package handler

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/kiwari-pos/orderledger/internal/dashboard"
	"github.com/kiwari-pos/orderledger/internal/enum"
	"github.com/kiwari-pos/orderledger/internal/ledger"
	"github.com/kiwari-pos/orderledger/internal/middleware"
	"github.com/kiwari-pos/orderledger/internal/service"
	"github.com/kiwari-pos/orderledger/internal/ws"
)

// OrderPlacer defines the checkout method needed by the create handler.
// Satisfied by *service.CheckoutService; narrow interface for testability.
type OrderPlacer interface {
	Checkout(ctx context.Context, req service.CheckoutRequest) (ledger.Order, error)
}

// OrderStore defines the ledger methods needed by order read/update handlers.
// Satisfied by *ledger.Ledger; narrow interface for testability.
type OrderStore interface {
	ReadAll(ctx context.Context, s ledger.Store) ([]ledger.Order, error)
	ReadPending(ctx context.Context) ([]ledger.Order, error)
	Find(ctx context.Context, orderID string) (ledger.Order, error)
	UpdateStatus(ctx context.Context, orderID, customerID string, status ledger.Status) error
}

// Notifier pushes realtime events. Satisfied by *ws.Hub.
type Notifier interface {
	Broadcast(room string, event ws.Event)
}

// OrderHandler handles order endpoints.
type OrderHandler struct {
	svc    OrderPlacer
	store  OrderStore
	notify Notifier
}

// NewOrderHandler creates a new OrderHandler. notify may be nil.
func NewOrderHandler(svc OrderPlacer, store OrderStore, notify Notifier) *OrderHandler {
	return &OrderHandler{svc: svc, store: store, notify: notify}
}

// RegisterRoutes registers order endpoints on the given Chi router.
// Expected to be mounted behind Authenticate at /orders.
func (h *OrderHandler) RegisterRoutes(r chi.Router) {
	staff := middleware.RequireRole(enum.UserRoleStaff, enum.UserRoleAdmin)

	r.With(middleware.RequireRole(enum.UserRoleCustomer)).Post("/", h.Create)
	r.With(middleware.RequireRole(enum.UserRoleAdmin)).Get("/", h.List)
	r.With(staff).Get("/pending", h.Pending)
	r.With(staff).Get("/{id}", h.Get)
	r.With(staff).Patch("/{id}/status", h.UpdateStatus)
}

// RegisterCustomerRoutes registers the per-customer history endpoint.
// Expected to be mounted at /customers/{cid}/orders behind RequireCustomer.
func (h *OrderHandler) RegisterCustomerRoutes(r chi.Router) {
	r.Get("/", h.CustomerHistory)
}

// --- Request / Response types ---

type createOrderRequest struct {
	Items []createOrderItemRequest `json:"items"`
}

type createOrderItemRequest struct {
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
}

type updateStatusRequest struct {
	Status     string `json:"status"`
	CustomerID string `json:"customer_id"`
}

// OrderResponse is the JSON shape of an order in responses and events.
type OrderResponse struct {
	ID         string              `json:"id"`
	CustomerID string              `json:"customer_id"`
	Items      []orderItemResponse `json:"items"`
	Total      string              `json:"total"`
	Status     string              `json:"status"`
}

type orderItemResponse struct {
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
}

type orderListResponse struct {
	Orders  []OrderResponse `json:"orders"`
	Page    int             `json:"page"`
	PerPage int             `json:"per_page"`
	Total   int             `json:"total"`
	Pages   int             `json:"pages"`
}

// ToOrderResponse converts an order to its JSON shape.
func ToOrderResponse(o ledger.Order) OrderResponse {
	items := make([]orderItemResponse, 0, len(o.Contents))
	for _, name := range o.Contents.Names() {
		items = append(items, orderItemResponse{Name: name, Quantity: o.Contents[name]})
	}
	return OrderResponse{
		ID:         o.ID,
		CustomerID: o.CustomerID,
		Items:      items,
		Total:      o.Total.StringFixed(2),
		Status:     string(o.Status),
	}
}

// ToOrderResponses converts orders, keeping their order.
func ToOrderResponses(orders []ledger.Order) []OrderResponse {
	resp := make([]OrderResponse, len(orders))
	for i, o := range orders {
		resp[i] = ToOrderResponse(o)
	}
	return resp
}

// --- Handlers ---

// Create places an order for the authenticated customer.
func (h *OrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	items := make([]service.CheckoutItem, len(req.Items))
	for i, it := range req.Items {
		items[i] = service.CheckoutItem{Name: it.Name, Quantity: it.Quantity}
	}

	order, err := h.svc.Checkout(r.Context(), service.CheckoutRequest{
		CustomerID: claims.Username,
		Items:      items,
	})
	if err != nil {
		writeError(w, "create order", err)
		return
	}

	resp := ToOrderResponse(order)
	h.publish(enum.EventOrderCreated, resp, ws.StaffRoom, ws.CustomerRoom(order.CustomerID))
	writeJSON(w, http.StatusCreated, resp)
}

// List returns the order history from the global ledger, most recent first.
// Query params: q (search), status, page, per_page.
func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	page, err := intParam(q.Get("page"), 1)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid page"})
		return
	}
	perPage, err := intParam(q.Get("per_page"), dashboard.DefaultPerPage)
	if err != nil || perPage > 100 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid per_page"})
		return
	}

	orders, err := h.store.ReadAll(r.Context(), ledger.Global)
	if err != nil {
		writeError(w, "list orders", err)
		return
	}

	if v := q.Get("status"); v != "" {
		status, err := ledger.ParseStatus(v)
		if err != nil {
			writeError(w, "list orders", err)
			return
		}
		orders = dashboard.FilterStatus(orders, status)
	}
	orders = dashboard.MostRecentFirst(dashboard.Search(orders, q.Get("q")))

	p := dashboard.Paginate(orders, page, perPage)
	writeJSON(w, http.StatusOK, orderListResponse{
		Orders:  ToOrderResponses(p.Orders),
		Page:    p.Page,
		PerPage: p.PerPage,
		Total:   p.Total,
		Pages:   p.Pages,
	})
}

// Pending returns the orders the kitchen still has to start.
func (h *OrderHandler) Pending(w http.ResponseWriter, r *http.Request) {
	orders, err := h.store.ReadPending(r.Context())
	if err != nil {
		writeError(w, "list pending orders", err)
		return
	}
	writeJSON(w, http.StatusOK, ToOrderResponses(orders))
}

// Get returns a single order from the global ledger.
func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	order, err := h.store.Find(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, "get order", err)
		return
	}
	writeJSON(w, http.StatusOK, ToOrderResponse(order))
}

// UpdateStatus moves an order to a new status in both ledgers. When the body
// has no customer_id the owner is looked up in the global ledger.
func (h *OrderHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")

	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	status, err := ledger.ParseStatus(req.Status)
	if err != nil {
		writeError(w, "update order status", err)
		return
	}

	customerID := req.CustomerID
	if customerID == "" {
		order, err := h.store.Find(r.Context(), orderID)
		if err != nil {
			writeError(w, "update order status", err)
			return
		}
		customerID = order.CustomerID
	}

	if err := h.store.UpdateStatus(r.Context(), orderID, customerID, status); err != nil {
		writeError(w, "update order status", err)
		return
	}

	order, err := h.store.Find(r.Context(), orderID)
	if err != nil {
		writeError(w, "update order status", err)
		return
	}

	resp := ToOrderResponse(order)
	h.publish(enum.EventOrderStatusChanged, resp, ws.StaffRoom, ws.CustomerRoom(order.CustomerID))
	writeJSON(w, http.StatusOK, resp)
}

// CustomerHistory returns one customer's own ledger, most recent first.
func (h *OrderHandler) CustomerHistory(w http.ResponseWriter, r *http.Request) {
	cid := chi.URLParam(r, "cid")
	if err := ledger.ValidateCustomerID(cid); err != nil {
		writeError(w, "customer history", err)
		return
	}

	orders, err := h.store.ReadAll(r.Context(), ledger.CustomerStore(cid))
	if err != nil {
		writeError(w, "customer history", err)
		return
	}
	writeJSON(w, http.StatusOK, ToOrderResponses(dashboard.MostRecentFirst(orders)))
}

// --- Helpers ---

func (h *OrderHandler) publish(eventType string, payload interface{}, rooms ...string) {
	if h.notify == nil {
		return
	}
	event, err := ws.NewEvent(eventType, payload)
	if err != nil {
		log.Printf("ERROR: build %s event: %v", eventType, err)
		return
	}
	for _, room := range rooms {
		h.notify.Broadcast(room, event)
	}
}

func intParam(v string, fallback int) (int, error) {
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		return 0, strconv.ErrSyntax
	}
	return n, nil
}
