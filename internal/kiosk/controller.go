package kiosk

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/appetiteclub/apt"
	"github.com/appetiteclub/apt/events"
	"github.com/google/uuid"

	"github.com/appetiteclub/kiosk/pkg"
	"github.com/appetiteclub/kiosk/pkg/event"
)

type Screen string

const (
	ScreenUnauthenticated Screen = "unauthenticated"
	ScreenRegistering     Screen = "registering"
	ScreenOrdering        Screen = "ordering"
	ScreenKitchenDisplay  Screen = "kitchen_display"
)

// TicketSource loads the ordered items of a ticket for the kitchen display.
type TicketSource interface {
	TicketItems(ctx context.Context, ticketID string) ([]string, error)
}

// DiagnosticSink forwards front end diagnostics to the backend log collector.
type DiagnosticSink interface {
	SendLog(ctx context.Context, level, message string, extra map[string]interface{}) error
}

type ControllerDeps struct {
	Auth            AuthBackend
	Store           SessionStore
	Catalog         *MenuCatalog
	Orders          OrderBackend
	Status          StatusSource
	Tickets         TicketSource
	Recommendations RecommendationSource
	Publisher       events.Publisher
	Diagnostics     DiagnosticSink
}

type ControllerConfig struct {
	PollInterval    time.Duration
	Fallback        FallbackPolicy
	RecommendSettle time.Duration
	CorrelationID   string
}

// View is what the kiosk screen renders.
type View struct {
	Screen          Screen           `json:"screen"`
	Session         *Session         `json:"session,omitempty"`
	DisplayName     string           `json:"display_name,omitempty"`
	PendingPhone    string           `json:"pending_phone,omitempty"`
	Cart            Cart             `json:"cart"`
	CartTotal       float64          `json:"cart_total"`
	Ticket          *Ticket          `json:"ticket,omitempty"`
	Submitting      bool             `json:"submitting"`
	Recommendations []Recommendation `json:"recommendations"`
}

// KitchenView is what the kitchen display renders for the current ticket.
type KitchenView struct {
	TicketID     string              `json:"ticket_id,omitempty"`
	Items        []string            `json:"items"`
	Status       *VerificationStatus `json:"status,omitempty"`
	PollerState  string              `json:"poller_state"`
	ShowMismatch bool                `json:"show_mismatch"`
	Missing      []string            `json:"missing"`
	Degraded     bool                `json:"degraded"`
}

// Controller is the kiosk state machine. User actions that change the screen or
// the cart run one at a time; reads never wait on I/O.
type Controller struct {
	opMu    sync.Mutex
	stopped bool

	mu           sync.RWMutex
	screen       Screen
	session      *Session
	sessionEpoch uint64
	pendingPhone string
	ticket       *Ticket
	ticketItems  []string
	submitting   bool

	cart      *CartManager
	submitter *OrderSubmitter
	poller    *KitchenStatusPoller
	recs      *recommendationRefresher

	auth          AuthBackend
	store         SessionStore
	catalog       *MenuCatalog
	tickets       TicketSource
	publisher     events.Publisher
	diagnostics   DiagnosticSink
	correlationID string
	logger        apt.Logger
}

func NewController(deps ControllerDeps, cfg ControllerConfig, logger apt.Logger) *Controller {
	if logger == nil {
		logger = apt.NewNoopLogger()
	}
	if deps.Store == nil {
		deps.Store = NewMemorySessionStore()
	}
	if deps.Catalog == nil {
		deps.Catalog = NewMenuCatalog(nil, 0, logger)
	}

	c := &Controller{
		screen:        ScreenUnauthenticated,
		auth:          deps.Auth,
		store:         deps.Store,
		catalog:       deps.Catalog,
		tickets:       deps.Tickets,
		publisher:     deps.Publisher,
		diagnostics:   deps.Diagnostics,
		correlationID: cfg.CorrelationID,
		logger:        logger,
	}

	c.recs = newRecommendationRefresher(
		NewRecommendationClient(deps.Recommendations, logger),
		c.recommendationInputs,
		cfg.RecommendSettle,
		logger,
	)
	c.cart = NewCartManager(c.onCartChanged)
	c.submitter = NewOrderSubmitter(deps.Orders, c.cart, logger)
	c.poller = NewKitchenStatusPoller(deps.Status, PollerConfig{
		Interval: cfg.PollInterval,
		Fallback: cfg.Fallback,
	}, logger)
	c.poller.OnStatus(c.onStatusChanged)

	return c
}

// Start restores a persisted session and starts the recommendation refresher.
func (c *Controller) Start(ctx context.Context) error {
	if err := c.recs.Start(ctx); err != nil {
		return err
	}
	if err := c.Restore(ctx); err != nil {
		c.logger.Error("cannot restore session", "error", err)
	}
	return nil
}

// Stop tears down polling and background refreshes. It waits for an order in
// flight, and no ticket is bound after it returns.
func (c *Controller) Stop(ctx context.Context) error {
	c.opMu.Lock()
	c.stopped = true
	c.poller.Stop()
	c.opMu.Unlock()
	return c.recs.Stop(ctx)
}

// Restore moves straight to ordering when a session was persisted earlier.
func (c *Controller) Restore(ctx context.Context) error {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	session, err := c.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("load session: %w", err)
	}
	if session == nil {
		return nil
	}

	c.mu.Lock()
	if c.screen != ScreenUnauthenticated {
		c.mu.Unlock()
		return nil
	}
	restored := NewSession(session.Phone, session.Name, session.Profile)
	c.session = &restored
	c.sessionEpoch++
	c.screen = ScreenOrdering
	c.mu.Unlock()

	c.logger.Info("session restored", "phone", restored.Phone, "profile", restored.Profile)
	c.recs.Trigger()
	return nil
}

// Login authenticates phone. A known customer lands on ordering, a new one on registration.
func (c *Controller) Login(ctx context.Context, phone string) (Screen, error) {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return c.Screen(), ErrPhoneRequired
	}

	c.opMu.Lock()
	defer c.opMu.Unlock()

	if screen := c.Screen(); screen != ScreenUnauthenticated && screen != ScreenRegistering {
		return screen, ErrInvalidTransition
	}

	result, err := c.auth.Login(ctx, phone)
	if err != nil {
		c.logger.Error("login failed", "phone", phone, "error", err)
		return c.Screen(), err
	}

	if !result.Exists || result.Session == nil {
		c.mu.Lock()
		c.pendingPhone = phone
		c.screen = ScreenRegistering
		c.mu.Unlock()
		c.logger.Info("phone not registered, starting registration", "phone", phone)
		return ScreenRegistering, nil
	}

	session := NewSession(result.Session.Phone, result.Session.Name, result.Session.Profile)
	if session.Phone == "" {
		session.Phone = phone
	}
	c.beginSession(ctx, session, false)
	return ScreenOrdering, nil
}

// Register completes registration for the phone captured at login.
func (c *Controller) Register(ctx context.Context, name *string, profileName string) (Session, error) {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	c.mu.RLock()
	screen, phone := c.screen, c.pendingPhone
	c.mu.RUnlock()
	if screen != ScreenRegistering {
		return Session{}, ErrInvalidTransition
	}

	registered, err := c.auth.Register(ctx, RegisterRequest{
		Phone:   phone,
		Name:    name,
		Profile: profileName,
	})
	if err != nil {
		c.logger.Error("registration failed", "phone", phone, "error", err)
		return Session{}, err
	}

	if registered.Phone == "" {
		registered.Phone = phone
	}
	if registered.Name == nil {
		registered.Name = name
	}
	session := NewSession(registered.Phone, registered.Name, registered.Profile)
	c.beginSession(ctx, session, true)
	return session, nil
}

func (c *Controller) beginSession(ctx context.Context, session Session, isNew bool) {
	if err := c.store.Save(ctx, session); err != nil {
		c.logger.Error("cannot persist session", "phone", session.Phone, "error", err)
	}

	c.mu.Lock()
	c.session = &session
	c.sessionEpoch++
	c.pendingPhone = ""
	c.screen = ScreenOrdering
	c.mu.Unlock()

	c.logger.Info("session started", "phone", session.Phone, "name", session.DisplayName(), "profile", session.Profile, "new", isNew)
	c.publish(ctx, event.KioskSessionsTopic, event.SessionEvent{
		KioskEventMetadata: c.metadata(event.EventKioskSessionStarted),
		Phone:              session.Phone,
		Profile:            session.Profile,
		New:                isNew,
	})
	c.recs.Trigger()
}

// Logout ends the session: the cart is cleared, polling stops and the stored
// session is removed.
func (c *Controller) Logout(ctx context.Context) error {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	c.mu.RLock()
	screen, session := c.screen, c.session
	c.mu.RUnlock()
	if screen == ScreenUnauthenticated {
		return ErrInvalidTransition
	}

	c.poller.Stop()

	c.mu.Lock()
	c.session = nil
	c.sessionEpoch++
	c.pendingPhone = ""
	c.ticket = nil
	c.ticketItems = nil
	c.screen = ScreenUnauthenticated
	c.mu.Unlock()

	c.cart.Clear()
	c.recs.Reset()

	if session != nil {
		c.logger.Info("session ended", "phone", session.Phone)
		c.publish(ctx, event.KioskSessionsTopic, event.SessionEvent{
			KioskEventMetadata: c.metadata(event.EventKioskSessionEnded),
			Phone:              session.Phone,
		})
	}

	if err := c.store.Clear(ctx); err != nil {
		return fmt.Errorf("clear stored session: %w", err)
	}
	return nil
}

func (c *Controller) Menu(ctx context.Context) []MenuItem {
	return c.catalog.Load(ctx)
}

// ReloadMenu drops the cached menu and fetches it again.
func (c *Controller) ReloadMenu(ctx context.Context) []MenuItem {
	c.catalog.Invalidate()
	return c.catalog.Load(ctx)
}

// AddItem appends the menu item with id itemID to the cart. The item is added
// only if the session that asked for it is still the active one, and it waits
// for an order in flight so it lands in the cart that remains after it.
func (c *Controller) AddItem(ctx context.Context, itemID string) (Cart, error) {
	screen, epoch := c.screenEpoch()
	if screen != ScreenOrdering {
		return c.cart.Snapshot(), ErrInvalidTransition
	}
	item, ok := c.catalog.Find(ctx, itemID)
	if !ok {
		return c.cart.Snapshot(), fmt.Errorf("%w: %s", ErrUnknownMenuItem, itemID)
	}

	c.opMu.Lock()
	defer c.opMu.Unlock()

	if screen, current := c.screenEpoch(); screen != ScreenOrdering || current != epoch {
		return c.cart.Snapshot(), ErrInvalidTransition
	}
	return c.cart.Add(item), nil
}

func (c *Controller) RemoveItem(index int) (Cart, error) {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	if screen, _ := c.screenEpoch(); screen != ScreenOrdering {
		return c.cart.Snapshot(), ErrInvalidTransition
	}
	return c.cart.Remove(index)
}

func (c *Controller) screenEpoch() (Screen, uint64) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.screen, c.sessionEpoch
}

func (c *Controller) Cart() Cart {
	return c.cart.Snapshot()
}

// SubmitOrder places the current cart. A second call while one is in flight
// fails with ErrSubmitInFlight. The new ticket supersedes the previous one and
// the poller is rebound to it.
func (c *Controller) SubmitOrder(ctx context.Context) (Ticket, error) {
	c.mu.Lock()
	if c.screen != ScreenOrdering || c.session == nil {
		c.mu.Unlock()
		return Ticket{}, ErrInvalidTransition
	}
	if c.submitting {
		c.mu.Unlock()
		return Ticket{}, ErrSubmitInFlight
	}
	c.submitting = true
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.submitting = false
		c.mu.Unlock()
	}()

	c.opMu.Lock()
	defer c.opMu.Unlock()

	if c.stopped {
		return Ticket{}, ErrControllerStopped
	}

	c.mu.RLock()
	current, screen := c.session, c.screen
	c.mu.RUnlock()
	if current == nil || screen != ScreenOrdering {
		return Ticket{}, ErrInvalidTransition
	}
	session := *current

	ticket, err := c.submitter.Submit(ctx, c.cart.Snapshot(), session)
	if err != nil {
		if !errors.Is(err, ErrEmptyCart) {
			c.report("error", "order failed", map[string]interface{}{
				"phone": session.Phone,
				"error": err.Error(),
			})
		}
		return Ticket{}, err
	}

	c.mu.Lock()
	c.ticket = &ticket
	c.ticketItems = append([]string(nil), ticket.Items...)
	c.mu.Unlock()

	c.poller.Bind(ticket.ID)

	c.publish(ctx, event.KioskTicketsTopic, event.TicketCreatedEvent{
		KioskEventMetadata: c.metadata(event.EventKioskTicketCreated),
		TicketID:           ticket.ID,
		Profile:            ticket.Profile,
		Items:              ticket.Items,
	})
	c.recs.Trigger()

	return ticket, nil
}

// ShowKitchen switches to the kitchen display and loads the ticket detail.
func (c *Controller) ShowKitchen(ctx context.Context) error {
	c.mu.Lock()
	if c.screen != ScreenOrdering && c.screen != ScreenKitchenDisplay {
		c.mu.Unlock()
		return ErrInvalidTransition
	}
	c.screen = ScreenKitchenDisplay
	var ticketID string
	if c.ticket != nil {
		ticketID = c.ticket.ID
	}
	c.mu.Unlock()

	if ticketID != "" {
		c.loadTicketItems(ctx, ticketID)
	}
	return nil
}

func (c *Controller) ShowOrdering() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.screen != ScreenOrdering && c.screen != ScreenKitchenDisplay {
		return ErrInvalidTransition
	}
	c.screen = ScreenOrdering
	return nil
}

func (c *Controller) loadTicketItems(ctx context.Context, ticketID string) {
	if c.tickets == nil {
		return
	}
	items, err := c.tickets.TicketItems(ctx, ticketID)
	if err != nil {
		c.logger.Error("cannot load ticket detail", "ticket_id", ticketID, "error", err)
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ticket != nil && c.ticket.ID == ticketID && len(items) > 0 {
		c.ticketItems = items
	}
}

func (c *Controller) Screen() Screen {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.screen
}

func (c *Controller) Session() *Session {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.session == nil {
		return nil
	}
	s := *c.session
	return &s
}

func (c *Controller) Recommendations() []Recommendation {
	return c.recs.Latest()
}

// RefreshRecommendations asks for a refresh with the current state.
func (c *Controller) RefreshRecommendations() {
	c.recs.Trigger()
}

func (c *Controller) View() View {
	cart := c.cart.Snapshot()

	c.mu.RLock()
	view := View{
		Screen:       c.screen,
		PendingPhone: c.pendingPhone,
		Submitting:   c.submitting,
	}
	if c.session != nil {
		s := *c.session
		view.Session = &s
		view.DisplayName = s.DisplayName()
	}
	if c.ticket != nil {
		t := *c.ticket
		view.Ticket = &t
	}
	c.mu.RUnlock()

	view.Cart = cart
	view.CartTotal = cart.Total()
	view.Recommendations = c.recs.Latest()
	return view
}

func (c *Controller) KitchenView() KitchenView {
	view := KitchenView{
		Items:       []string{},
		Missing:     []string{},
		PollerState: c.poller.State().String(),
	}

	c.mu.RLock()
	if c.ticket != nil {
		view.TicketID = c.ticket.ID
		view.Items = append(view.Items, c.ticketItems...)
	}
	c.mu.RUnlock()

	if view.TicketID == "" {
		return view
	}

	if status, ok := c.poller.Status(); ok && status.TicketID == view.TicketID {
		view.Status = &status
		view.ShowMismatch = status.ShowMismatch()
		view.Missing = append(view.Missing, status.Verification.Missing...)
		view.Degraded = status.Degraded
	}
	return view
}

// PollerState exposes the poller lifecycle for the kitchen display and tests.
func (c *Controller) PollerState() PollerState {
	return c.poller.State()
}

func (c *Controller) recommendationInputs() (*Session, Cart, string) {
	cart := c.cart.Snapshot()

	c.mu.RLock()
	defer c.mu.RUnlock()

	var session *Session
	if c.session != nil {
		s := *c.session
		session = &s
	}
	var ticketID string
	if c.ticket != nil {
		ticketID = c.ticket.ID
	}
	return session, cart, ticketID
}

// onCartChanged runs under the cart lock; it only marks suggestions stale.
func (c *Controller) onCartChanged(Cart) {
	c.recs.Trigger()
}

// onStatusChanged runs on the polling goroutine.
func (c *Controller) onStatusChanged(prev *VerificationStatus, next VerificationStatus) {
	if prev != nil && prev.Status == next.Status &&
		prev.Verification.Status == next.Verification.Status &&
		prev.Degraded == next.Degraded {
		return
	}

	var previous string
	if prev != nil {
		previous = prev.Status
	}
	c.logger.Info("ticket status changed", "ticket_id", next.TicketID, "status", next.Status,
		"verification", next.Verification.Status, "degraded", next.Degraded)

	c.publish(context.Background(), event.KioskTicketsTopic, event.TicketStatusChangedEvent{
		KioskEventMetadata: c.metadata(event.EventKioskTicketStatusChanged),
		TicketID:           next.TicketID,
		NewStatus:          next.Status,
		PreviousStatus:     previous,
		Verification:       next.Verification.Status,
		Missing:            next.Verification.Missing,
		Degraded:           next.Degraded,
	})
}

func (c *Controller) metadata(eventType string) event.KioskEventMetadata {
	return event.KioskEventMetadata{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		OccurredAt:    time.Now().UTC(),
		CorrelationID: c.correlationID,
	}
}

func (c *Controller) publish(ctx context.Context, topic string, evt interface{}) {
	if err := pkg.PublishJSON(ctx, c.publisher, topic, evt); err != nil {
		c.logger.Error("cannot publish kiosk event", "topic", topic, "error", err)
	}
}

// report ships a diagnostic to the backend without holding up the caller.
func (c *Controller) report(level, message string, extra map[string]interface{}) {
	if c.diagnostics == nil {
		return
	}
	go func() {
		sendCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := c.diagnostics.SendLog(sendCtx, level, message, extra); err != nil {
			c.logger.Debug("cannot ship diagnostic", "message", message, "error", err)
		}
	}()
}
