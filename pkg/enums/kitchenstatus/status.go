package kitchenstatus

import (
	"strings"
)

type Status struct {
	Name string
}

func (s Status) Code() string {
	return s.Name
}

func (s Status) Label() string {
	parts := strings.Split(s.Name, "-")
	for i := range parts {
		if len(parts[i]) > 0 {
			parts[i] = strings.ToUpper(parts[i][:1]) + parts[i][1:]
		}
	}
	return strings.Join(parts, " ")
}

// Enum lists the ticket statuses reported by the kitchen display endpoint.
type Enum struct {
	Pending  Status
	Verified Status
	Mismatch Status
	Unknown  Status
}

var Statuses = Enum{
	Pending:  Status{Name: "pending"},
	Verified: Status{Name: "verified"},
	Mismatch: Status{Name: "mismatch"},
	Unknown:  Status{Name: "unknown"},
}

var All = []Status{
	Statuses.Pending,
	Statuses.Verified,
	Statuses.Mismatch,
	Statuses.Unknown,
}

// VerificationEnum lists the outcomes of the camera check on a prepared ticket.
type VerificationEnum struct {
	OK       Status
	Mismatch Status
	Unknown  Status
}

var Verifications = VerificationEnum{
	OK:       Status{Name: "ok"},
	Mismatch: Status{Name: "mismatch"},
	Unknown:  Status{Name: "unknown"},
}

var AllVerifications = []Status{
	Verifications.OK,
	Verifications.Mismatch,
	Verifications.Unknown,
}

// ByName returns the status for a given name, or nil if not found
func ByName(name string) *Status {
	for _, s := range All {
		if s.Name == name {
			return &s
		}
	}
	return nil
}

// VerificationByName returns the verification outcome for a given name, or nil if not found
func VerificationByName(name string) *Status {
	for _, s := range AllVerifications {
		if s.Name == name {
			return &s
		}
	}
	return nil
}

// aliases maps backend ticket states that precede verification onto Pending.
var aliases = map[string]Status{
	"created":    Statuses.Pending,
	"in_kitchen": Statuses.Pending,
}

// Normalize returns the status code for name or "unknown".
func Normalize(name string) string {
	key := strings.ToLower(strings.TrimSpace(name))
	if s := ByName(key); s != nil {
		return s.Code()
	}
	if s, ok := aliases[key]; ok {
		return s.Code()
	}
	return Statuses.Unknown.Code()
}

// NormalizeVerification returns the verification code for name or "unknown".
func NormalizeVerification(name string) string {
	if s := VerificationByName(strings.ToLower(strings.TrimSpace(name))); s != nil {
		return s.Code()
	}
	return Verifications.Unknown.Code()
}
