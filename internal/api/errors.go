package api

import (
	"errors"
	"log"
	"net/http"

	"github.com/example/ec-storefront/internal/domain/basket"
	"github.com/example/ec-storefront/internal/domain/checkout"
	"github.com/example/ec-storefront/internal/domain/order"
	"github.com/example/ec-storefront/internal/domain/product"
	"github.com/example/ec-storefront/internal/domain/user"
)

const msgInternal = "internal server error"

// statusFor classifies a domain error. ok is false for errors that must be reported as 500.
func statusFor(err error) (status int, message string, ok bool) {
	var verr *checkout.ValidationError
	var stockErr *product.OutOfStockError

	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest, verr.Error(), true
	case errors.As(err, &stockErr):
		return http.StatusBadRequest, stockErr.Error(), true
	case errors.Is(err, product.ErrOutOfStock),
		errors.Is(err, basket.ErrInvalidProduct),
		errors.Is(err, basket.ErrInvalidQuantity),
		errors.Is(err, checkout.ErrEmptyBasket):
		return http.StatusBadRequest, err.Error(), true
	case errors.Is(err, user.ErrUserNotFound),
		errors.Is(err, product.ErrProductNotFound),
		errors.Is(err, basket.ErrItemNotInBasket),
		errors.Is(err, order.ErrOrderNotFound):
		return http.StatusNotFound, err.Error(), true
	}
	return http.StatusInternalServerError, msgInternal, false
}

func respondDomainError(w http.ResponseWriter, r *http.Request, err error) {
	status, message, ok := statusFor(err)
	if !ok {
		log.Printf("[API] %s %s: %v", r.Method, r.URL.Path, err)
	}
	respondError(w, message, status)
}

// respondCheckoutError differs from respondDomainError in one case: a product that
// disappears between basket and checkout is a server-side failure, not a 404.
func respondCheckoutError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, product.ErrProductNotFound) {
		log.Printf("[API] %s %s: %v", r.Method, r.URL.Path, err)
		respondError(w, msgInternal, http.StatusInternalServerError)
		return
	}
	respondDomainError(w, r, err)
}
