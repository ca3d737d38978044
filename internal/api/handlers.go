package api

import (
	"encoding/json"
	"net/http"

	"github.com/example/ec-storefront/internal/api/middleware"
	"github.com/example/ec-storefront/internal/command"
	"github.com/example/ec-storefront/internal/domain/checkout"
	"github.com/example/ec-storefront/internal/query"
	"github.com/gorilla/mux"
)

type Handlers struct {
	cmdHandler   *command.Handler
	queryHandler *query.Handler
}

func NewHandlers(cmdHandler *command.Handler, queryHandler *query.Handler) *Handlers {
	return &Handlers{
		cmdHandler:   cmdHandler,
		queryHandler: queryHandler,
	}
}

// Basket Handlers

func (h *Handlers) GetBasket(w http.ResponseWriter, r *http.Request) {
	lines, err := h.queryHandler.GetBasket(r.Context(), getUserID(r))
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, lines)
}

func (h *Handlers) AddToBasket(w http.ResponseWriter, r *http.Request) {
	var cmd command.AddToBasket
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		respondError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	cmd.UserID = getUserID(r)

	lines, err := h.cmdHandler.AddToBasket(r.Context(), cmd)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, lines)
}

func (h *Handlers) UpdateBasketItem(w http.ResponseWriter, r *http.Request) {
	var cmd command.SetBasketQuantity
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		respondError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	cmd.UserID = getUserID(r)
	cmd.ProductID = mux.Vars(r)["productId"]

	lines, err := h.cmdHandler.SetBasketQuantity(r.Context(), cmd)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, lines)
}

func (h *Handlers) RemoveFromBasket(w http.ResponseWriter, r *http.Request) {
	cmd := command.RemoveFromBasket{
		UserID:    getUserID(r),
		ProductID: mux.Vars(r)["productId"],
	}
	lines, err := h.cmdHandler.RemoveFromBasket(r.Context(), cmd)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, lines)
}

// Checkout

func (h *Handlers) Checkout(w http.ResponseWriter, r *http.Request) {
	var req checkout.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	o, err := h.cmdHandler.PlaceOrder(r.Context(), command.PlaceOrder{UserID: getUserID(r), Request: req})
	if err != nil {
		respondCheckoutError(w, r, err)
		return
	}

	respondJSON(w, http.StatusCreated, map[string]string{
		"message": "Order placed",
		"orderId": o.ID,
	})
}

// Order Handlers (admin)

func (h *Handlers) ListOrders(w http.ResponseWriter, r *http.Request) {
	views, err := h.queryHandler.ListOrders(r.Context())
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, views)
}

// DeleteOrder responds with the remaining orders.
func (h *Handlers) DeleteOrder(w http.ResponseWriter, r *http.Request) {
	cmd := command.DeleteOrder{OrderID: mux.Vars(r)["id"]}
	if err := h.cmdHandler.DeleteOrder(r.Context(), cmd); err != nil {
		respondDomainError(w, r, err)
		return
	}
	h.ListOrders(w, r)
}

// Catalog

func (h *Handlers) ListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.queryHandler.ListProducts(r.Context())
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, products)
}

// Session

func (h *Handlers) Me(w http.ResponseWriter, r *http.Request) {
	claims, _ := middleware.GetUserFromContext(r.Context())
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"user": map[string]string{
			"id":   claims.UserID,
			"role": claims.Role,
		},
	})
}

func Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Helper functions

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, message string, status int) {
	respondJSON(w, status, map[string]string{"message": message})
}

func getUserID(r *http.Request) string {
	return middleware.GetUserID(r.Context())
}
