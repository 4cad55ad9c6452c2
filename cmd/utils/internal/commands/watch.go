package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/appetiteclub/apt"
	"github.com/appetiteclub/apt/events"

	"github.com/appetiteclub/kiosk/internal/app"
	"github.com/appetiteclub/kiosk/pkg"
	"github.com/appetiteclub/kiosk/pkg/event"
)

// WatchEvents prints kiosk events from NATS until ctx is cancelled.
func WatchEvents(ctx context.Context, config *apt.Config, logger apt.Logger, out io.Writer) error {
	natsURL := config.GetStringOrDef("nats.url", app.DefaultNATSURL)

	sub, err := pkg.NewNATSSubscriber(natsURL, "kiosk-utils")
	if err != nil {
		return err
	}
	defer sub.Close()

	sub.OnError(func(topic string, err error) {
		logger.Error("cannot print event", "topic", topic, "error", err)
	})

	handler := eventPrinter(out)
	for _, topic := range []string{event.KioskTicketsTopic, event.KioskSessionsTopic} {
		if err := sub.Subscribe(ctx, topic, handler); err != nil {
			return fmt.Errorf("subscribe %s: %w", topic, err)
		}
	}

	logger.Info("Watching kiosk events", "nats_url", natsURL)
	<-ctx.Done()
	return nil
}

func eventPrinter(out io.Writer) events.HandlerFunc {
	var mu sync.Mutex
	return func(ctx context.Context, data []byte) error {
		var meta event.KioskEventMetadata
		if err := json.Unmarshal(data, &meta); err != nil {
			return fmt.Errorf("decode event: %w", err)
		}

		line := fmt.Sprintf("%s %s", meta.OccurredAt.Format("15:04:05.000"), meta.EventType)
		switch meta.EventType {
		case event.EventKioskTicketCreated:
			var evt event.TicketCreatedEvent
			if err := json.Unmarshal(data, &evt); err == nil {
				line += fmt.Sprintf(" ticket=%s profile=%s items=%v", evt.TicketID, evt.Profile, evt.Items)
			}
		case event.EventKioskTicketStatusChanged:
			var evt event.TicketStatusChangedEvent
			if err := json.Unmarshal(data, &evt); err == nil {
				line += fmt.Sprintf(" ticket=%s status=%s verification=%s", evt.TicketID, evt.NewStatus, evt.Verification)
				if len(evt.Missing) > 0 {
					line += fmt.Sprintf(" missing=%v", evt.Missing)
				}
				if evt.Degraded {
					line += " degraded"
				}
			}
		case event.EventKioskSessionStarted, event.EventKioskSessionEnded:
			var evt event.SessionEvent
			if err := json.Unmarshal(data, &evt); err == nil {
				line += fmt.Sprintf(" phone=%s", evt.Phone)
				if evt.Profile != "" {
					line += " profile=" + evt.Profile
				}
			}
		}

		mu.Lock()
		defer mu.Unlock()
		_, err := fmt.Fprintln(out, line)
		return err
	}
}
