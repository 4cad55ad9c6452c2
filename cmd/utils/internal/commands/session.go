package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/appetiteclub/apt"

	"github.com/appetiteclub/kiosk/internal/app"
	"github.com/appetiteclub/kiosk/internal/kiosk"
	"github.com/appetiteclub/kiosk/internal/sqlite"
)

const (
	demoPhone   = "555-0100"
	demoProfile = "kid_friendly"
)

func openStore(config *apt.Config, logger apt.Logger) (*sqlite.SessionStore, error) {
	path := config.GetStringOrDef("session.db.path", app.DefaultSessionDBPath)
	store, err := sqlite.Open(path, logger)
	if err != nil {
		return nil, fmt.Errorf("open session store %s: %w", path, err)
	}
	return store, nil
}

// ShowSession prints the stored session and correlation id.
func ShowSession(ctx context.Context, config *apt.Config, logger apt.Logger, out io.Writer) error {
	store, err := openStore(config, logger)
	if err != nil {
		return err
	}
	defer store.Close()
	return showSession(ctx, store, out)
}

func showSession(ctx context.Context, store kiosk.SessionStore, out io.Writer) error {
	cid, err := store.CorrelationID(ctx)
	if err != nil {
		return err
	}
	session, err := store.Load(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "correlation id: %s\n", cid)
	if session == nil {
		fmt.Fprintln(out, "no stored session")
		return nil
	}

	data, err := json.MarshalIndent(session, "", "  ")
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	fmt.Fprintf(out, "session:\n%s\n", data)
	return nil
}

// SeedSession stores a demo customer so the kiosk starts on the ordering screen.
func SeedSession(ctx context.Context, config *apt.Config, logger apt.Logger) error {
	store, err := openStore(config, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	phone := config.GetStringOrDef("seed.phone", demoPhone)
	profileName := config.GetStringOrDef("seed.profile", demoProfile)
	return seedSession(ctx, store, phone, profileName, logger)
}

func seedSession(ctx context.Context, store kiosk.SessionStore, phone, profileName string, logger apt.Logger) error {
	existing, err := store.Load(ctx)
	if err != nil {
		return err
	}
	if existing != nil {
		logger.Info("Session already stored, skipping", "phone", existing.Phone)
		return nil
	}

	session := kiosk.NewSession(phone, nil, profileName)
	if err := store.Save(ctx, session); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	logger.Info("Demo session stored", "phone", session.Phone, "profile", session.Profile)
	return nil
}

// ClearSession removes the stored session, logging the kiosk out on next start.
func ClearSession(ctx context.Context, config *apt.Config, logger apt.Logger) error {
	store, err := openStore(config, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.Clear(ctx); err != nil {
		return err
	}
	logger.Info("Stored session cleared")
	return nil
}

// ResetState deletes the kiosk state database, correlation id included - USE WITH CAUTION
func ResetState(ctx context.Context, config *apt.Config, logger apt.Logger) error {
	path := config.GetStringOrDef("session.db.path", app.DefaultSessionDBPath)
	logger.Infof("⚠️  This will delete %s and the kiosk correlation id", path)
	return resetState(path, logger)
}

func resetState(path string, logger apt.Logger) error {
	for _, p := range []string{path, path + "-wal", path + "-shm"} {
		err := os.Remove(p)
		if err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove %s: %w", p, err)
		}
		if err == nil {
			logger.Info("Removed state file", "path", p)
		}
	}
	return nil
}
