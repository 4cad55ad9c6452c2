package kiosk

import (
	"context"
	"sync"
	"time"

	"github.com/appetiteclub/apt"
)

const DefaultPollInterval = 3 * time.Second

type PollerState int

const (
	PollerIdle PollerState = iota
	PollerPolling
	PollerStopped
)

func (s PollerState) String() string {
	switch s {
	case PollerPolling:
		return "polling"
	case PollerStopped:
		return "stopped"
	default:
		return "idle"
	}
}

// FallbackPolicy decides what the poller shows when a fetch fails.
type FallbackPolicy string

const (
	// FallbackSynthetic always substitutes FallbackStatus.
	FallbackSynthetic FallbackPolicy = "synthetic"
	// FallbackLastKnown keeps the last status the backend reported, marked degraded,
	// and only uses FallbackStatus before anything was observed.
	FallbackLastKnown FallbackPolicy = "last_known"
)

func ParseFallbackPolicy(name string) FallbackPolicy {
	if FallbackPolicy(name) == FallbackLastKnown {
		return FallbackLastKnown
	}
	return FallbackSynthetic
}

// StatusListener is called from the polling goroutine after each applied status.
// It must not call Bind or Stop.
type StatusListener func(prev *VerificationStatus, next VerificationStatus)

type PollerConfig struct {
	Interval time.Duration
	Fallback FallbackPolicy
}

// KitchenStatusPoller polls the status of one ticket at a time. Binding a new
// ticket stops the previous loop, and waits for it to exit, before the new one starts.
type KitchenStatusPoller struct {
	source   StatusSource
	interval time.Duration
	policy   FallbackPolicy
	logger   apt.Logger

	bindMu sync.Mutex

	mu          sync.RWMutex
	state       PollerState
	ticketID    string
	generation  uint64
	status      *VerificationStatus
	lastGenuine *VerificationStatus
	listener    StatusListener
	cancel      context.CancelFunc
	done        chan struct{}
}

func NewKitchenStatusPoller(source StatusSource, cfg PollerConfig, logger apt.Logger) *KitchenStatusPoller {
	if logger == nil {
		logger = apt.NewNoopLogger()
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultPollInterval
	}
	if cfg.Fallback == "" {
		cfg.Fallback = FallbackSynthetic
	}
	return &KitchenStatusPoller{
		source:   source,
		interval: cfg.Interval,
		policy:   cfg.Fallback,
		logger:   logger,
	}
}

func (p *KitchenStatusPoller) OnStatus(listener StatusListener) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.listener = listener
}

// Bind starts polling ticketID: one fetch right away, then one per interval.
// An empty ticketID only stops the current loop.
func (p *KitchenStatusPoller) Bind(ticketID string) {
	p.bindMu.Lock()
	defer p.bindMu.Unlock()

	p.stopLocked()
	if ticketID == "" {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	p.mu.Lock()
	p.generation++
	gen := p.generation
	p.state = PollerPolling
	p.ticketID = ticketID
	p.status = nil
	p.lastGenuine = nil
	p.cancel = cancel
	p.done = done
	p.mu.Unlock()

	p.logger.Info("kitchen status polling started", "ticket_id", ticketID, "interval", p.interval.String())
	go p.run(ctx, gen, ticketID, done)
}

// Stop cancels the timer and any in-flight fetch. When it returns no further
// status is applied and the listener is not called again.
func (p *KitchenStatusPoller) Stop() {
	p.bindMu.Lock()
	defer p.bindMu.Unlock()
	p.stopLocked()
}

// stopLocked must be called with bindMu held.
func (p *KitchenStatusPoller) stopLocked() {
	p.mu.Lock()
	cancel, done, ticketID := p.cancel, p.done, p.ticketID
	p.cancel, p.done = nil, nil
	if cancel != nil {
		p.state = PollerStopped
		p.generation++
	}
	p.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	p.logger.Info("kitchen status polling stopped", "ticket_id", ticketID)
}

func (p *KitchenStatusPoller) State() PollerState {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state
}

func (p *KitchenStatusPoller) TicketID() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.ticketID
}

// Status returns the last applied status for the bound ticket.
func (p *KitchenStatusPoller) Status() (VerificationStatus, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.status == nil {
		return VerificationStatus{}, false
	}
	return p.status.clone(), true
}

func (p *KitchenStatusPoller) run(ctx context.Context, gen uint64, ticketID string, done chan struct{}) {
	defer close(done)

	p.poll(ctx, gen, ticketID)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.poll(ctx, gen, ticketID)
		}
	}
}

// poll runs one fetch. A fetch never outlives one interval, so a stalled request
// cannot hold back the next tick.
func (p *KitchenStatusPoller) poll(ctx context.Context, gen uint64, ticketID string) {
	fetchCtx, cancel := context.WithTimeout(ctx, p.interval)
	status, err := p.source.KitchenStatus(fetchCtx, ticketID)
	cancel()

	if ctx.Err() != nil {
		return
	}

	genuine := err == nil
	if err != nil {
		p.logger.Error("kitchen status fetch failed, showing fallback", "ticket_id", ticketID, "error", err)
		status = p.fallback(ticketID)
	} else {
		status = status.Normalize(ticketID)
	}

	p.apply(gen, status, genuine)
}

func (p *KitchenStatusPoller) fallback(ticketID string) VerificationStatus {
	if p.policy == FallbackLastKnown {
		p.mu.RLock()
		last := p.lastGenuine
		p.mu.RUnlock()
		if last != nil {
			status := last.clone()
			status.Degraded = true
			return status
		}
	}
	return FallbackStatus(ticketID)
}

func (p *KitchenStatusPoller) apply(gen uint64, status VerificationStatus, genuine bool) {
	p.mu.Lock()
	if gen != p.generation {
		p.mu.Unlock()
		return
	}
	prev := p.status
	p.status = &status
	if genuine {
		observed := status.clone()
		p.lastGenuine = &observed
	}
	listener := p.listener
	p.mu.Unlock()

	if listener != nil {
		listener(prev, status.clone())
	}
}
