package profile

import "strings"

type Profile struct {
	Name string
}

func (p Profile) Code() string {
	return p.Name
}

func (p Profile) Label() string {
	parts := strings.Split(p.Name, "_")
	for i := range parts {
		if len(parts[i]) > 0 {
			parts[i] = strings.ToUpper(parts[i][:1]) + parts[i][1:]
		}
	}
	return strings.Join(parts, " ")
}

type Enum struct {
	InStore     Profile
	Returning   Profile
	HealthFocus Profile
	KidFriendly Profile
}

var Profiles = Enum{
	InStore:     Profile{Name: "in_store"},
	Returning:   Profile{Name: "returning"},
	HealthFocus: Profile{Name: "health_focus"},
	KidFriendly: Profile{Name: "kid_friendly"},
}

var All = []Profile{
	Profiles.InStore,
	Profiles.Returning,
	Profiles.HealthFocus,
	Profiles.KidFriendly,
}

// Default is assigned to accounts the backend created without a profile.
var Default = Profiles.InStore

// ByName returns the profile for a given name, or nil if not found
func ByName(name string) *Profile {
	for _, p := range All {
		if p.Name == name {
			return &p
		}
	}
	return nil
}

// Normalize maps name to a known profile code, falling back to Default.
func Normalize(name string) string {
	if p := ByName(strings.ToLower(strings.TrimSpace(name))); p != nil {
		return p.Code()
	}
	return Default.Code()
}
