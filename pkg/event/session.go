package event

const (
	KioskSessionsTopic       = "kiosk.sessions"
	EventKioskSessionStarted = "kiosk.session.started"
	EventKioskSessionEnded   = "kiosk.session.ended"
)

// SessionEvent announces a customer signing in to or out of the kiosk.
type SessionEvent struct {
	KioskEventMetadata
	Phone   string `json:"phone"`
	Profile string `json:"profile,omitempty"`
	New     bool   `json:"new,omitempty"`
}
