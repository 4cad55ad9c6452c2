package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/appetiteclub/kiosk/internal/kiosk"
)

const (
	DefaultBaseURL = "http://127.0.0.1:8000"
	DefaultTimeout = 10 * time.Second

	CorrelationHeader = "X-Correlation-ID"

	maxErrorBody = 4 << 10
)

var (
	_ kiosk.AuthBackend          = (*HTTPClient)(nil)
	_ kiosk.MenuSource           = (*HTTPClient)(nil)
	_ kiosk.OrderBackend         = (*HTTPClient)(nil)
	_ kiosk.StatusSource         = (*HTTPClient)(nil)
	_ kiosk.TicketSource         = (*HTTPClient)(nil)
	_ kiosk.RecommendationSource = (*HTTPClient)(nil)
	_ kiosk.DiagnosticSink       = (*HTTPClient)(nil)
)

// StatusError is a non-success answer from any endpoint other than order submission.
type StatusError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: backend returned status %d", e.Op, e.StatusCode)
}

// HTTPClient talks to the ordering backend over JSON.
type HTTPClient struct {
	baseURL       string
	httpClient    *http.Client
	correlationID string
}

// NewHTTPClient creates a backend client. Every request carries correlationID.
func NewHTTPClient(baseURL string, timeout time.Duration, correlationID string) *HTTPClient {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &HTTPClient{
		baseURL:       strings.TrimRight(baseURL, "/"),
		httpClient:    &http.Client{Timeout: timeout},
		correlationID: correlationID,
	}
}

func (c *HTTPClient) BaseURL() string {
	return c.baseURL
}

// wireID accepts ticket ids sent as JSON numbers or strings.
type wireID string

func (id *wireID) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*id = ""
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*id = wireID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("invalid id %s", string(data))
	}
	*id = wireID(n.String())
	return nil
}

type wireUser struct {
	ID      wireID  `json:"id"`
	Phone   string  `json:"phone"`
	Name    *string `json:"name"`
	Profile string  `json:"profile"`
}

type loginResponse struct {
	Exists  bool      `json:"exists"`
	User    *wireUser `json:"user"`
	Profile string    `json:"profile"`
}

func (c *HTTPClient) Login(ctx context.Context, phone string) (kiosk.LoginResult, error) {
	var resp loginResponse
	if err := c.do(ctx, "login", http.MethodPost, "/auth/login", map[string]string{"phone": phone}, &resp); err != nil {
		return kiosk.LoginResult{}, err
	}
	if !resp.Exists || resp.User == nil {
		return kiosk.LoginResult{Exists: resp.Exists}, nil
	}

	profileName := resp.User.Profile
	if profileName == "" {
		profileName = resp.Profile
	}
	userPhone := resp.User.Phone
	if userPhone == "" {
		userPhone = phone
	}
	session := kiosk.NewSession(userPhone, resp.User.Name, profileName)
	return kiosk.LoginResult{Exists: true, Session: &session}, nil
}

type registerResponse struct {
	Status  string `json:"status"`
	Phone   string `json:"phone"`
	Profile string `json:"profile"`
}

// Register creates the customer. An already registered phone is not an error.
func (c *HTTPClient) Register(ctx context.Context, req kiosk.RegisterRequest) (kiosk.Session, error) {
	var resp registerResponse
	if err := c.do(ctx, "register", http.MethodPost, "/auth/register", req, &resp); err != nil {
		return kiosk.Session{}, err
	}

	switch resp.Status {
	case "created", "exists":
	default:
		return kiosk.Session{}, fmt.Errorf("%w: unexpected status %q", kiosk.ErrRegistrationFailed, resp.Status)
	}

	profileName := req.Profile
	if profileName == "" {
		profileName = resp.Profile
	}
	phone := resp.Phone
	if phone == "" {
		phone = req.Phone
	}
	return kiosk.NewSession(phone, req.Name, profileName), nil
}

func (c *HTTPClient) Menu(ctx context.Context) ([]kiosk.MenuItem, error) {
	var items []kiosk.MenuItem
	if err := c.do(ctx, "load menu", http.MethodGet, "/menu", nil, &items); err != nil {
		return nil, err
	}
	return items, nil
}

type orderResponse struct {
	ID        wireID   `json:"id"`
	Status    string   `json:"status"`
	Items     []string `json:"items"`
	Profile   string   `json:"profile"`
	CreatedAt string   `json:"created_at"`
}

// SubmitOrder posts the order. Non-success answers become *kiosk.OrderRejectedError.
func (c *HTTPClient) SubmitOrder(ctx context.Context, req kiosk.OrderRequest) (kiosk.Ticket, error) {
	var resp orderResponse
	err := c.do(ctx, "submit order", http.MethodPost, "/order", req, &resp)
	if err != nil {
		var statusErr *StatusError
		if errors.As(err, &statusErr) {
			return kiosk.Ticket{}, &kiosk.OrderRejectedError{StatusCode: statusErr.StatusCode, Body: statusErr.Body}
		}
		return kiosk.Ticket{}, err
	}

	ticket := kiosk.Ticket{
		ID:      string(resp.ID),
		Items:   resp.Items,
		Profile: resp.Profile,
	}
	if resp.CreatedAt != "" {
		if ts, err := time.Parse(time.RFC3339Nano, resp.CreatedAt); err == nil {
			ticket.CreatedAt = ts.UTC()
		}
	}
	return ticket, nil
}

type statusResponse struct {
	TicketID     wireID `json:"ticketId"`
	Status       string `json:"status"`
	Verification struct {
		Status  string   `json:"status"`
		Missing []string `json:"missing"`
	} `json:"verification"`
}

func (c *HTTPClient) KitchenStatus(ctx context.Context, ticketID string) (kiosk.VerificationStatus, error) {
	var resp statusResponse
	if err := c.do(ctx, "kitchen status", http.MethodGet, "/kds/"+url.PathEscape(ticketID), nil, &resp); err != nil {
		return kiosk.VerificationStatus{}, err
	}
	return kiosk.VerificationStatus{
		TicketID: string(resp.TicketID),
		Status:   resp.Status,
		Verification: kiosk.Verification{
			Status:  resp.Verification.Status,
			Missing: resp.Verification.Missing,
		},
	}, nil
}

type ticketResponse struct {
	Ticket struct {
		Items []string `json:"items"`
	} `json:"ticket"`
}

func (c *HTTPClient) TicketItems(ctx context.Context, ticketID string) ([]string, error) {
	var resp ticketResponse
	if err := c.do(ctx, "ticket detail", http.MethodGet, "/ticket/"+url.PathEscape(ticketID), nil, &resp); err != nil {
		return nil, err
	}
	return resp.Ticket.Items, nil
}

type recommendResponse struct {
	Recommendations []kiosk.Recommendation `json:"recommendations"`
}

func (c *HTTPClient) Recommend(ctx context.Context, req kiosk.RecommendRequest) ([]kiosk.Recommendation, error) {
	var resp recommendResponse
	if err := c.do(ctx, "recommend", http.MethodPost, "/recommend", req, &resp); err != nil {
		return nil, err
	}
	return resp.Recommendations, nil
}

type logEntry struct {
	Level     string                 `json:"level"`
	Message   string                 `json:"message"`
	Extra     map[string]interface{} `json:"extra,omitempty"`
	Timestamp string                 `json:"timestamp"`
}

// SendLog ships a diagnostic entry to the backend log collector.
func (c *HTTPClient) SendLog(ctx context.Context, level, message string, extra map[string]interface{}) error {
	entry := logEntry{
		Level:     level,
		Message:   message,
		Extra:     extra,
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
	}
	return c.do(ctx, "send log", http.MethodPost, "/fe-log", entry, nil)
}

func (c *HTTPClient) do(ctx context.Context, op, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: encode request: %w", op, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("%s: create request failed: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.correlationID != "" {
		req.Header.Set(CorrelationHeader, c.correlationID)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &kiosk.TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &StatusError{Op: op, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &kiosk.TransportError{Op: op, Err: fmt.Errorf("failed to decode response: %w", err)}
	}
	return nil
}
