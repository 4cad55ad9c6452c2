package kiosk

import (
	"context"
	"sync"
	"time"

	"github.com/appetiteclub/apt"
)

const DefaultRecommendSettle = 250 * time.Millisecond

type Recommendation struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

type RecommendRequest struct {
	User     string  `json:"user"`
	Profile  string  `json:"profile"`
	TicketID *string `json:"ticketId"`
}

type RecommendationSource interface {
	Recommend(ctx context.Context, req RecommendRequest) ([]Recommendation, error)
}

// RecommendationClient asks the backend for suggestions. It is best effort:
// failures are logged and produce an empty list.
type RecommendationClient struct {
	source RecommendationSource
	logger apt.Logger
}

func NewRecommendationClient(source RecommendationSource, logger apt.Logger) *RecommendationClient {
	if logger == nil {
		logger = apt.NewNoopLogger()
	}
	return &RecommendationClient{source: source, logger: logger}
}

// Refresh returns suggestions for the given state. Without a session it returns
// an empty list and does not call the backend.
func (c *RecommendationClient) Refresh(ctx context.Context, session *Session, cart Cart, ticketID string) []Recommendation {
	if session == nil || c.source == nil {
		return []Recommendation{}
	}

	req := RecommendRequest{
		User:    session.Phone,
		Profile: session.Profile,
	}
	if ticketID != "" {
		id := ticketID
		req.TicketID = &id
	}

	recs, err := c.source.Recommend(ctx, req)
	if err != nil {
		c.logger.Error("recommendation fetch failed", "user", session.Phone, "ticket_id", ticketID, "cart_size", cart.Len(), "error", err)
		return []Recommendation{}
	}
	if recs == nil {
		recs = []Recommendation{}
	}

	c.logger.Debug("recommendations refreshed", "user", session.Phone, "count", len(recs), "cart_size", cart.Len())
	return recs
}

// recommendationState reads the inputs a refresh depends on.
type recommendationState func() (*Session, Cart, string)

// recommendationRefresher keeps the suggestion list in step with the latest
// session, cart and ticket. Triggers coalesce: a burst of changes inside the
// settle window produces one refresh that reads the state as it is then.
type recommendationRefresher struct {
	client *RecommendationClient
	state  recommendationState
	settle time.Duration
	logger apt.Logger

	trigger chan struct{}

	mu     sync.RWMutex
	recs   []Recommendation
	epoch  uint64
	cancel context.CancelFunc
	done   chan struct{}
}

func newRecommendationRefresher(client *RecommendationClient, state recommendationState, settle time.Duration, logger apt.Logger) *recommendationRefresher {
	if settle < 0 {
		settle = 0
	}
	if logger == nil {
		logger = apt.NewNoopLogger()
	}
	return &recommendationRefresher{
		client:  client,
		state:   state,
		settle:  settle,
		logger:  logger,
		trigger: make(chan struct{}, 1),
		recs:    []Recommendation{},
	}
}

func (r *recommendationRefresher) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel != nil {
		return nil
	}

	loopCtx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel
	r.done = make(chan struct{})
	go r.loop(loopCtx, r.done)
	return nil
}

func (r *recommendationRefresher) Stop(ctx context.Context) error {
	r.mu.Lock()
	cancel, done := r.cancel, r.done
	r.cancel, r.done = nil, nil
	r.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Trigger marks the suggestions stale. It never blocks.
func (r *recommendationRefresher) Trigger() {
	select {
	case r.trigger <- struct{}{}:
	default:
	}
}

// Reset drops the current list and discards any refresh already in flight.
func (r *recommendationRefresher) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.epoch++
	r.recs = []Recommendation{}
}

func (r *recommendationRefresher) Latest() []Recommendation {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Recommendation, len(r.recs))
	copy(out, r.recs)
	return out
}

func (r *recommendationRefresher) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	for {
		select {
		case <-ctx.Done():
			return
		case <-r.trigger:
		}

		if !r.waitSettle(ctx) {
			return
		}
		r.refresh(ctx)
	}
}

// waitSettle absorbs further triggers until the settle window passes quietly.
func (r *recommendationRefresher) waitSettle(ctx context.Context) bool {
	if r.settle == 0 {
		return true
	}

	timer := time.NewTimer(r.settle)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return false
		case <-r.trigger:
			if !timer.Stop() {
				<-timer.C
			}
			timer.Reset(r.settle)
		case <-timer.C:
			return true
		}
	}
}

func (r *recommendationRefresher) refresh(ctx context.Context) {
	r.mu.RLock()
	epoch := r.epoch
	r.mu.RUnlock()

	session, cart, ticketID := r.state()
	recs := r.client.Refresh(ctx, session, cart, ticketID)

	r.mu.Lock()
	defer r.mu.Unlock()
	if epoch != r.epoch {
		r.logger.Debug("discarding recommendations from previous session", "count", len(recs))
		return
	}
	r.recs = recs
}
