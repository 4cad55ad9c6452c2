package kiosk

import (
	"context"
	"strings"

	"github.com/appetiteclub/kiosk/pkg/enums/profile"
)

// Session is the authenticated customer for the current kiosk use.
type Session struct {
	Phone   string  `json:"phone"`
	Name    *string `json:"name"`
	Profile string  `json:"profile"`
}

// NewSession builds a session with a trimmed phone, a nil name when blank and
// a profile that is always one of the known codes.
func NewSession(phone string, name *string, profileName string) Session {
	s := Session{
		Phone:   strings.TrimSpace(phone),
		Profile: profile.Normalize(profileName),
	}
	if name != nil {
		if trimmed := strings.TrimSpace(*name); trimmed != "" {
			s.Name = &trimmed
		}
	}
	return s
}

func (s Session) DisplayName() string {
	if s.Name != nil {
		return *s.Name
	}
	return s.Phone
}

// SessionStore persists the session and the kiosk correlation id across restarts.
// Load returns nil without error when nothing is stored.
type SessionStore interface {
	Load(ctx context.Context) (*Session, error)
	Save(ctx context.Context, s Session) error
	Clear(ctx context.Context) error
	CorrelationID(ctx context.Context) (string, error)
}

type LoginResult struct {
	Exists  bool
	Session *Session
}

type RegisterRequest struct {
	Phone   string  `json:"phone"`
	Name    *string `json:"name,omitempty"`
	Profile string  `json:"profile,omitempty"`
}

// AuthBackend is the phone based authentication collaborator.
type AuthBackend interface {
	Login(ctx context.Context, phone string) (LoginResult, error)
	Register(ctx context.Context, req RegisterRequest) (Session, error)
}
