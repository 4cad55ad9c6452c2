package kiosk

import (
	"context"

	"github.com/appetiteclub/kiosk/pkg/enums/kitchenstatus"
)

type Verification struct {
	Status  string   `json:"status"`
	Missing []string `json:"missing"`
}

// VerificationStatus is the kitchen's view of a ticket. Degraded is set when the
// value was substituted locally because the status fetch failed.
type VerificationStatus struct {
	TicketID     string       `json:"ticketId"`
	Status       string       `json:"status"`
	Verification Verification `json:"verification"`
	Degraded     bool         `json:"degraded,omitempty"`
}

// StatusSource fetches the current status of a ticket.
type StatusSource interface {
	KitchenStatus(ctx context.Context, ticketID string) (VerificationStatus, error)
}

// FallbackStatus is shown when the kitchen status cannot be fetched. It is a fixed
// placeholder, not a diagnosis.
func FallbackStatus(ticketID string) VerificationStatus {
	return VerificationStatus{
		TicketID: ticketID,
		Status:   kitchenstatus.Statuses.Pending.Code(),
		Verification: Verification{
			Status:  kitchenstatus.Verifications.Mismatch.Code(),
			Missing: []string{"fries"},
		},
		Degraded: true,
	}
}

// Normalize coerces status values into the known enums and fills the ticket id.
func (s VerificationStatus) Normalize(ticketID string) VerificationStatus {
	if s.TicketID == "" {
		s.TicketID = ticketID
	}
	s.Status = kitchenstatus.Normalize(s.Status)
	s.Verification.Status = kitchenstatus.NormalizeVerification(s.Verification.Status)
	if s.Verification.Missing == nil {
		s.Verification.Missing = []string{}
	}
	return s
}

// ShowMismatch reports whether the display should raise the mismatch panel.
func (s VerificationStatus) ShowMismatch() bool {
	return s.Verification.Status == kitchenstatus.Verifications.Mismatch.Code()
}

func (s VerificationStatus) clone() VerificationStatus {
	s.Verification.Missing = append([]string{}, s.Verification.Missing...)
	return s
}
