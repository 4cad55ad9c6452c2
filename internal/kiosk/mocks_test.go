package kiosk

import (
	"context"
	"errors"
	"strconv"
	"sync"
)

// MockAuthBackend is a test mock for AuthBackend
type MockAuthBackend struct {
	LoginFunc    func(ctx context.Context, phone string) (LoginResult, error)
	RegisterFunc func(ctx context.Context, req RegisterRequest) (Session, error)

	mu         sync.Mutex
	registered []RegisterRequest
}

func NewMockAuthBackend() *MockAuthBackend {
	return &MockAuthBackend{}
}

func (m *MockAuthBackend) Login(ctx context.Context, phone string) (LoginResult, error) {
	if m.LoginFunc != nil {
		return m.LoginFunc(ctx, phone)
	}
	return LoginResult{Exists: false}, nil
}

func (m *MockAuthBackend) Register(ctx context.Context, req RegisterRequest) (Session, error) {
	m.mu.Lock()
	m.registered = append(m.registered, req)
	m.mu.Unlock()
	if m.RegisterFunc != nil {
		return m.RegisterFunc(ctx, req)
	}
	return NewSession(req.Phone, req.Name, req.Profile), nil
}

func (m *MockAuthBackend) Registered() []RegisterRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]RegisterRequest(nil), m.registered...)
}

// MockMenuSource is a test mock for MenuSource
type MockMenuSource struct {
	Items    []MenuItem
	MenuFunc func(ctx context.Context) ([]MenuItem, error)

	mu    sync.Mutex
	calls int
}

func NewMockMenuSource(items ...MenuItem) *MockMenuSource {
	return &MockMenuSource{Items: items}
}

func (m *MockMenuSource) Menu(ctx context.Context) ([]MenuItem, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	if m.MenuFunc != nil {
		return m.MenuFunc(ctx)
	}
	return m.Items, nil
}

func (m *MockMenuSource) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// MockOrderBackend is a test mock for OrderBackend
type MockOrderBackend struct {
	SubmitOrderFunc func(ctx context.Context, req OrderRequest) (Ticket, error)

	mu       sync.Mutex
	requests []OrderRequest
	nextID   int
}

func NewMockOrderBackend() *MockOrderBackend {
	return &MockOrderBackend{}
}

func (m *MockOrderBackend) SubmitOrder(ctx context.Context, req OrderRequest) (Ticket, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	m.nextID++
	id := m.nextID
	m.mu.Unlock()

	if m.SubmitOrderFunc != nil {
		return m.SubmitOrderFunc(ctx, req)
	}
	return Ticket{ID: ticketIDFor(id), Items: append([]string(nil), req.Items...), Profile: req.Profile}, nil
}

func (m *MockOrderBackend) Requests() []OrderRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]OrderRequest(nil), m.requests...)
}

func ticketIDFor(n int) string {
	return "T" + strconv.Itoa(n)
}

// MockStatusSource is a test mock for StatusSource
type MockStatusSource struct {
	KitchenStatusFunc func(ctx context.Context, ticketID string) (VerificationStatus, error)

	mu    sync.Mutex
	calls map[string]int
}

func NewMockStatusSource() *MockStatusSource {
	return &MockStatusSource{calls: make(map[string]int)}
}

func (m *MockStatusSource) KitchenStatus(ctx context.Context, ticketID string) (VerificationStatus, error) {
	m.mu.Lock()
	m.calls[ticketID]++
	m.mu.Unlock()
	if m.KitchenStatusFunc != nil {
		return m.KitchenStatusFunc(ctx, ticketID)
	}
	return VerificationStatus{
		TicketID:     ticketID,
		Status:       "verified",
		Verification: Verification{Status: "ok", Missing: []string{}},
	}, nil
}

func (m *MockStatusSource) Calls(ticketID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[ticketID]
}

// MockTicketSource is a test mock for TicketSource
type MockTicketSource struct {
	TicketItemsFunc func(ctx context.Context, ticketID string) ([]string, error)
}

func (m *MockTicketSource) TicketItems(ctx context.Context, ticketID string) ([]string, error) {
	if m.TicketItemsFunc != nil {
		return m.TicketItemsFunc(ctx, ticketID)
	}
	return nil, errors.New("ticket not found")
}

// MockRecommendationSource is a test mock for RecommendationSource
type MockRecommendationSource struct {
	RecommendFunc func(ctx context.Context, req RecommendRequest) ([]Recommendation, error)

	mu       sync.Mutex
	requests []RecommendRequest
}

func NewMockRecommendationSource() *MockRecommendationSource {
	return &MockRecommendationSource{}
}

func (m *MockRecommendationSource) Recommend(ctx context.Context, req RecommendRequest) ([]Recommendation, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	m.mu.Unlock()
	if m.RecommendFunc != nil {
		return m.RecommendFunc(ctx, req)
	}
	return []Recommendation{{ID: "water", Name: "Water", Reason: "pairs well"}}, nil
}

func (m *MockRecommendationSource) Requests() []RecommendRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]RecommendRequest(nil), m.requests...)
}

// MockPublisher is a test mock for events.Publisher
type MockPublisher struct {
	PublishFunc func(ctx context.Context, topic string, data []byte) error

	mu              sync.Mutex
	PublishedEvents []PublishedEvent
}

type PublishedEvent struct {
	Topic string
	Data  []byte
}

func NewMockPublisher() *MockPublisher {
	return &MockPublisher{
		PublishedEvents: make([]PublishedEvent, 0),
	}
}

func (m *MockPublisher) Publish(ctx context.Context, topic string, data []byte) error {
	if m.PublishFunc != nil {
		return m.PublishFunc(ctx, topic, data)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.PublishedEvents = append(m.PublishedEvents, PublishedEvent{Topic: topic, Data: data})
	return nil
}

func (m *MockPublisher) Events() []PublishedEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]PublishedEvent(nil), m.PublishedEvents...)
}

// MockDiagnosticSink is a test mock for DiagnosticSink
type MockDiagnosticSink struct {
	messages chan string
}

func NewMockDiagnosticSink() *MockDiagnosticSink {
	return &MockDiagnosticSink{messages: make(chan string, 16)}
}

func (m *MockDiagnosticSink) SendLog(ctx context.Context, level, message string, extra map[string]interface{}) error {
	m.messages <- level + ":" + message
	return nil
}
