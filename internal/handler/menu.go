package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/kiwari-pos/orderledger/internal/enum"
	"github.com/kiwari-pos/orderledger/internal/menu"
	"github.com/kiwari-pos/orderledger/internal/middleware"
	"github.com/shopspring/decimal"
)

// MenuStore defines the catalog methods needed by menu handlers.
// Satisfied by *menu.Catalog; narrow interface for testability.
type MenuStore interface {
	Categories(ctx context.Context) ([]menu.Category, error)
	Add(ctx context.Context, item menu.Item) error
	Update(ctx context.Context, category, name string, item menu.Item) error
	Delete(ctx context.Context, category, name string) error
}

// MenuHandler handles menu endpoints.
type MenuHandler struct {
	store MenuStore
}

// NewMenuHandler creates a new MenuHandler.
func NewMenuHandler(store MenuStore) *MenuHandler {
	return &MenuHandler{store: store}
}

// RegisterRoutes registers menu endpoints on the given Chi router.
// Expected to be mounted behind Authenticate at /menu. Reads are open to every
// role; edits are ADMIN only.
func (h *MenuHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireRole(enum.UserRoleAdmin))
		r.Post("/", h.Create)
		r.Put("/{category}/{name}", h.Update)
		r.Delete("/{category}/{name}", h.Delete)
	})
}

// --- Request / Response types ---

type menuItemRequest struct {
	Category    string `json:"category"`
	Name        string `json:"name"`
	Price       string `json:"price"`
	Description string `json:"description"`
	Type        string `json:"type"`
}

type menuItemResponse struct {
	Category    string `json:"category"`
	Name        string `json:"name"`
	Price       string `json:"price"`
	Description string `json:"description"`
	Type        string `json:"type"`
}

type menuCategoryResponse struct {
	Name  string             `json:"name"`
	Items []menuItemResponse `json:"items"`
}

func toMenuItemResponse(it menu.Item) menuItemResponse {
	return menuItemResponse{
		Category:    it.Category,
		Name:        it.Name,
		Price:       it.Price.StringFixed(2),
		Description: it.Description,
		Type:        it.Type,
	}
}

// decodeMenuItem reads the body into an Item. ok is false once a 400 has been
// written.
func decodeMenuItem(w http.ResponseWriter, r *http.Request) (menu.Item, bool) {
	var req menuItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return menu.Item{}, false
	}

	price, err := decimal.NewFromString(req.Price)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid price"})
		return menu.Item{}, false
	}

	return menu.Item{
		Category:    req.Category,
		Name:        req.Name,
		Price:       price,
		Description: req.Description,
		Type:        req.Type,
	}, true
}

// --- Handlers ---

// List returns the menu grouped by category, in file order.
func (h *MenuHandler) List(w http.ResponseWriter, r *http.Request) {
	categories, err := h.store.Categories(r.Context())
	if err != nil {
		writeError(w, "list menu", err)
		return
	}

	resp := make([]menuCategoryResponse, len(categories))
	for i, c := range categories {
		items := make([]menuItemResponse, len(c.Items))
		for j, it := range c.Items {
			items[j] = toMenuItemResponse(it)
		}
		resp[i] = menuCategoryResponse{Name: c.Name, Items: items}
	}

	writeJSON(w, http.StatusOK, resp)
}

// Create adds a menu item.
func (h *MenuHandler) Create(w http.ResponseWriter, r *http.Request) {
	item, ok := decodeMenuItem(w, r)
	if !ok {
		return
	}

	if err := h.store.Add(r.Context(), item); err != nil {
		writeError(w, "create menu item", err)
		return
	}

	writeJSON(w, http.StatusCreated, toMenuItemResponse(item))
}

// Update replaces the item filed under {category}/{name}.
func (h *MenuHandler) Update(w http.ResponseWriter, r *http.Request) {
	item, ok := decodeMenuItem(w, r)
	if !ok {
		return
	}

	if err := h.store.Update(r.Context(), chi.URLParam(r, "category"), chi.URLParam(r, "name"), item); err != nil {
		writeError(w, "update menu item", err)
		return
	}

	writeJSON(w, http.StatusOK, toMenuItemResponse(item))
}

// Delete removes the item filed under {category}/{name}.
func (h *MenuHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Delete(r.Context(), chi.URLParam(r, "category"), chi.URLParam(r, "name")); err != nil {
		writeError(w, "delete menu item", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
