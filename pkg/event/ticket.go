package event

import "time"

const (
	KioskTicketsTopic             = "kiosk.tickets"
	EventKioskTicketCreated       = "kiosk.ticket.created"
	EventKioskTicketStatusChanged = "kiosk.ticket.status_changed"
)

type KioskEventMetadata struct {
	EventID       string    `json:"event_id"`
	EventType     string    `json:"event_type"`
	OccurredAt    time.Time `json:"occurred_at"`
	CorrelationID string    `json:"correlation_id,omitempty"`
}

type TicketCreatedEvent struct {
	KioskEventMetadata
	TicketID string   `json:"ticket_id"`
	Profile  string   `json:"profile"`
	Items    []string `json:"items"`
}

// TicketStatusChangedEvent is emitted when a polled status differs from the previous one.
// Degraded marks a locally substituted status rather than a backend report.
type TicketStatusChangedEvent struct {
	KioskEventMetadata
	TicketID       string   `json:"ticket_id"`
	NewStatus      string   `json:"new_status"`
	PreviousStatus string   `json:"previous_status,omitempty"`
	Verification   string   `json:"verification"`
	Missing        []string `json:"missing,omitempty"`
	Degraded       bool     `json:"degraded,omitempty"`
}
