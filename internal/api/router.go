package api

import (
	"net/http"

	"github.com/example/ec-storefront/internal/api/middleware"
	"github.com/example/ec-storefront/internal/domain/user"
	"github.com/gorilla/mux"
	"github.com/rs/cors"
)

// NewRouter wires every route. allowedOrigins must list the storefront origins
// explicitly because the session cookie is sent with credentials.
func NewRouter(handlers *Handlers, validator middleware.TokenValidator, allowedOrigins []string) http.Handler {
	r := mux.NewRouter()
	r.Use(middleware.Logging)

	// Public
	r.HandleFunc("/healthz", Health).Methods(http.MethodGet)
	r.HandleFunc("/products", handlers.ListProducts).Methods(http.MethodGet)

	// Authenticated
	authed := r.NewRoute().Subrouter()
	authed.Use(middleware.AuthMiddleware(validator))
	authed.HandleFunc("/me", handlers.Me).Methods(http.MethodGet)
	authed.HandleFunc("/basket", handlers.GetBasket).Methods(http.MethodGet)
	authed.HandleFunc("/basket", handlers.AddToBasket).Methods(http.MethodPost)
	authed.HandleFunc("/basket/{productId}", handlers.UpdateBasketItem).Methods(http.MethodPut)
	authed.HandleFunc("/basket/{productId}", handlers.RemoveFromBasket).Methods(http.MethodDelete)
	authed.HandleFunc("/checkout", handlers.Checkout).Methods(http.MethodPost)

	// Admin
	admin := r.NewRoute().Subrouter()
	admin.Use(middleware.AuthMiddleware(validator), middleware.RequireRole(user.RoleAdmin))
	admin.HandleFunc("/orders", handlers.ListOrders).Methods(http.MethodGet)
	admin.HandleFunc("/orders/{id}", handlers.DeleteOrder).Methods(http.MethodDelete)

	c := cors.New(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	})
	return c.Handler(r)
}
