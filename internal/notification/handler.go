package notification

import (
	"context"
	"encoding/json"
	"errors"
	"log"

	"github.com/example/ec-storefront/internal/domain/order"
	"github.com/example/ec-storefront/internal/domain/user"
	"github.com/example/ec-storefront/internal/email"
	"github.com/example/ec-storefront/internal/events"
)

type Sender interface {
	SendOrderConfirmation(to string, c email.Confirmation) error
}

type UserLookup interface {
	GetUser(ctx context.Context, id string) (*user.User, error)
}

// Handler sends order confirmation mail for OrderPlaced events.
type Handler struct {
	sender Sender
	users  UserLookup
}

// NewHandler creates a handler. users may be nil, in which case orders without a
// shipping e-mail are skipped.
func NewHandler(sender Sender, users UserLookup) *Handler {
	return &Handler{sender: sender, users: users}
}

// HandleEvent processes one serialized event envelope. It matches kafka.MessageHandler.
func (h *Handler) HandleEvent(ctx context.Context, key, value []byte) error {
	var event events.Event
	if err := json.Unmarshal(value, &event); err != nil {
		log.Printf("[Notifier] Failed to unmarshal event: %v", err)
		return err
	}
	return h.Handle(ctx, event)
}

// Handle ignores every event type except OrderPlaced.
func (h *Handler) Handle(ctx context.Context, event events.Event) error {
	if event.EventType != order.EventOrderPlaced {
		return nil
	}

	var e order.OrderPlaced
	if err := json.Unmarshal(event.Data, &e); err != nil {
		log.Printf("[Notifier] Failed to unmarshal OrderPlaced event: %v", err)
		return err
	}

	log.Printf("[Notifier] Processing OrderPlaced event for order %s, user %s", e.OrderID, e.UserID)

	to, err := h.recipient(ctx, e)
	if err != nil {
		return err
	}
	if to == "" {
		log.Printf("[Notifier] No e-mail address for order %s, skipping", e.OrderID)
		return nil
	}

	items := make([]email.Item, 0, len(e.Items))
	for _, item := range e.Items {
		items = append(items, email.Item{
			ProductID: item.ProductID,
			Name:      item.Name,
			Quantity:  item.Quantity,
			Price:     item.Price,
		})
	}

	err = h.sender.SendOrderConfirmation(to, email.Confirmation{
		OrderID:       e.OrderID,
		FirstName:     e.FirstName,
		PaymentMethod: string(e.PaymentMethod),
		Items:         items,
		Total:         e.Total,
	})
	if err != nil {
		log.Printf("[Notifier] Failed to send email to %s: %v", to, err)
		return err
	}

	log.Printf("[Notifier] Order confirmation email sent to %s for order %s", to, e.OrderID)
	return nil
}

// recipient prefers the shipping address e-mail and falls back to the account e-mail.
func (h *Handler) recipient(ctx context.Context, e order.OrderPlaced) (string, error) {
	if e.Email != "" {
		return e.Email, nil
	}
	if h.users == nil {
		return "", nil
	}

	u, err := h.users.GetUser(ctx, e.UserID)
	if errors.Is(err, user.ErrUserNotFound) {
		log.Printf("[Notifier] User not found: %s", e.UserID)
		return "", nil
	}
	if err != nil {
		log.Printf("[Notifier] Error getting user %s: %v", e.UserID, err)
		return "", err
	}
	return u.Email, nil
}
