package router

import (
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/kiwari-pos/orderledger/internal/config"
	"github.com/kiwari-pos/orderledger/internal/enum"
	"github.com/kiwari-pos/orderledger/internal/handler"
	"github.com/kiwari-pos/orderledger/internal/ledger"
	"github.com/kiwari-pos/orderledger/internal/menu"
	mw "github.com/kiwari-pos/orderledger/internal/middleware"
	"github.com/kiwari-pos/orderledger/internal/service"
	"github.com/kiwari-pos/orderledger/internal/users"
	"github.com/kiwari-pos/orderledger/internal/ws"
)

// Deps are the stores and services the routes are wired to.
type Deps struct {
	Ledger   *ledger.Ledger
	Menu     *menu.Catalog
	Users    *users.Directory
	Checkout *service.CheckoutService
	Hub      *ws.Hub
}

// New creates a Chi router with all application routes wired up.
// Applies authentication, customer scoping, and role-based middleware as needed.
func New(cfg *config.Config, d Deps) chi.Router {
	r := chi.NewRouter()

	// Standard middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// CORS configuration
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300, // 5 minutes
	}))

	// Public routes
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","version":"1.0.0"}`))
	})

	// Auth routes (public)
	authHandler := handler.NewAuthHandler(d.Users, cfg.JWTSecret)
	authHandler.RegisterRoutes(r)

	// WebSocket route (handles auth internally via query param)
	r.Get("/ws/orders", func(w http.ResponseWriter, r *http.Request) {
		ws.ServeWS(d.Hub, cfg.JWTSecret, w, r)
	})

	// Protected routes (require authentication)
	r.Group(func(r chi.Router) {
		r.Use(mw.Authenticate(cfg.JWTSecret))

		// Menu (read for everyone, edits ADMIN only)
		menuHandler := handler.NewMenuHandler(d.Menu)
		r.Route("/menu", menuHandler.RegisterRoutes)

		// Orders (roles are checked per route)
		orderHandler := handler.NewOrderHandler(d.Checkout, d.Ledger, d.Hub)
		r.Route("/orders", orderHandler.RegisterRoutes)

		// Customer-scoped history
		r.Route("/customers/{cid}/orders", func(r chi.Router) {
			r.Use(mw.RequireCustomer)
			orderHandler.RegisterCustomerRoutes(r)
		})

		// Ledger maintenance (ADMIN only)
		r.Group(func(r chi.Router) {
			r.Use(mw.RequireRole(enum.UserRoleAdmin))
			adminHandler := handler.NewAdminHandler(d.Ledger)
			r.Route("/admin", adminHandler.RegisterRoutes)
		})
	})

	log.Println("Router initialized with all handlers")
	return r
}
