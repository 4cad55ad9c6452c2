package app

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/appetiteclub/apt"

	"github.com/appetiteclub/kiosk/internal/backend"
	"github.com/appetiteclub/kiosk/internal/kiosk"
	"github.com/appetiteclub/kiosk/internal/sqlite"
)

func TestLoadSettingsDefaults(t *testing.T) {
	s := LoadSettings(apt.NewConfig())

	if s.APIURL != backend.DefaultBaseURL {
		t.Errorf("APIURL = %s, want %s", s.APIURL, backend.DefaultBaseURL)
	}
	if s.PollInterval != 3*time.Second {
		t.Errorf("PollInterval = %s, want 3s", s.PollInterval)
	}
	if s.Fallback != kiosk.FallbackSynthetic {
		t.Errorf("Fallback = %s, want synthetic", s.Fallback)
	}
	if s.MenuCacheTTL != kiosk.DefaultMenuCacheTTL {
		t.Errorf("MenuCacheTTL = %s", s.MenuCacheTTL)
	}
	if s.SessionDBPath != DefaultSessionDBPath {
		t.Errorf("SessionDBPath = %s", s.SessionDBPath)
	}
	if s.NATSEnabled {
		t.Error("NATSEnabled = true by default")
	}
}

func TestOpenSessionStore(t *testing.T) {
	ctx := context.Background()

	store, closeStore, err := OpenSessionStore(MemorySessionStore, nil)
	if err != nil {
		t.Fatalf("OpenSessionStore(memory) error = %v", err)
	}
	if _, ok := store.(*kiosk.MemorySessionStore); !ok {
		t.Errorf("store = %T, want *kiosk.MemorySessionStore", store)
	}
	if err := closeStore(ctx); err != nil {
		t.Errorf("close error = %v", err)
	}

	path := filepath.Join(t.TempDir(), "kiosk.db")
	store, closeStore, err = OpenSessionStore(path, apt.NewNoopLogger())
	if err != nil {
		t.Fatalf("OpenSessionStore(%s) error = %v", path, err)
	}
	defer closeStore(ctx)
	if _, ok := store.(*sqlite.SessionStore); !ok {
		t.Errorf("store = %T, want *sqlite.SessionStore", store)
	}
	if cid, err := store.CorrelationID(ctx); err != nil || cid == "" {
		t.Errorf("CorrelationID() = %q, %v", cid, err)
	}
}

func TestNewRequiresConfig(t *testing.T) {
	if _, err := New(nil, nil); err == nil {
		t.Error("New(nil) error = nil, want error")
	}
	a, err := New(apt.NewConfig(), nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if a.settings.APITimeout != backend.DefaultTimeout {
		t.Errorf("APITimeout = %s, want %s", a.settings.APITimeout, backend.DefaultTimeout)
	}
}
