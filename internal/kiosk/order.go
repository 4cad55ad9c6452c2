package kiosk

import (
	"context"
	"errors"
	"time"

	"github.com/appetiteclub/apt"
)

// Ticket is the kitchen record of a submitted order. It is never modified after
// creation; its progress lives in VerificationStatus.
type Ticket struct {
	ID        string    `json:"id"`
	Items     []string  `json:"items"`
	Profile   string    `json:"profile"`
	CreatedAt time.Time `json:"created_at"`
}

type OrderRequest struct {
	Profile string   `json:"profile"`
	Items   []string `json:"items"`
}

// OrderBackend places orders. Non-success responses come back as *OrderRejectedError,
// network and decoding failures as *TransportError.
type OrderBackend interface {
	SubmitOrder(ctx context.Context, req OrderRequest) (Ticket, error)
}

// CartClearer is the part of the cart owner the submitter needs after a successful order.
type CartClearer interface {
	Clear() Cart
}

type OrderSubmitter struct {
	backend OrderBackend
	cart    CartClearer
	logger  apt.Logger
	now     func() time.Time
}

func NewOrderSubmitter(backend OrderBackend, cart CartClearer, logger apt.Logger) *OrderSubmitter {
	if logger == nil {
		logger = apt.NewNoopLogger()
	}
	return &OrderSubmitter{
		backend: backend,
		cart:    cart,
		logger:  logger,
		now:     time.Now,
	}
}

// Submit turns the cart snapshot into a ticket. The cart is cleared only when the
// backend accepted the order.
func (s *OrderSubmitter) Submit(ctx context.Context, cart Cart, session Session) (Ticket, error) {
	if cart.Len() == 0 {
		return Ticket{}, ErrEmptyCart
	}

	req := OrderRequest{
		Profile: session.Profile,
		Items:   cart.IDs(),
	}

	ticket, err := s.backend.SubmitOrder(ctx, req)
	if err != nil {
		s.logger.Error("order submission failed", "items", len(req.Items), "error", err)
		return Ticket{}, err
	}
	if ticket.ID == "" {
		err := &TransportError{Op: "submit order", Err: errors.New("response has no ticket id")}
		s.logger.Error("order submission failed", "error", err)
		return Ticket{}, err
	}

	if len(ticket.Items) == 0 {
		ticket.Items = req.Items
	}
	if ticket.Profile == "" {
		ticket.Profile = req.Profile
	}
	if ticket.CreatedAt.IsZero() {
		ticket.CreatedAt = s.now().UTC()
	}

	if s.cart != nil {
		s.cart.Clear()
	}

	s.logger.Info("order submitted", "ticket_id", ticket.ID, "items", len(ticket.Items))
	return ticket, nil
}
