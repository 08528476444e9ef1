// Package gateway is the typed client for the ordering API. Every request
// carries the CSRF token and the XMLHttpRequest marker; responses use the
// {status, data, message, code} envelope with domain failures mapped back to
// sentinel errors.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"

	"github.com/denizrest/selforder/internal/domain"
)

type Client struct {
	baseURL   string
	http      *http.Client
	csrfToken string

	// mu guards orderKey, the Idempotency-Key of the in-flight order
	// submission. It survives retries of a failed submission and is
	// regenerated once the server accepts, so resubmitting an identical
	// cart later creates a new order instead of replaying the old one.
	mu       sync.Mutex
	orderKey string
}

func New(baseURL, csrfToken string) *Client {
	return &Client{
		baseURL:   baseURL,
		http:      &http.Client{Timeout: 15 * time.Second},
		csrfToken: csrfToken,
	}
}

type envelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message,omitempty"`
	Code    string          `json:"code,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (c *Client) do(ctx context.Context, method, path string, body interface{}, out interface{}) error {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Requested-With", "XMLHttpRequest")
	if c.csrfToken != "" {
		req.Header.Set("X-CSRFToken", c.csrfToken)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrap(err, "request failed")
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return errors.Wrapf(err, "malformed response from %s", path)
	}

	if env.Status != "success" {
		if sentinel := domain.FromCode(env.Code); sentinel != nil {
			return errors.Wrap(sentinel, env.Message)
		}
		return errors.Newf("%s: %s", path, env.Message)
	}

	if out != nil && env.Data != nil {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return errors.Wrapf(err, "malformed data from %s", path)
		}
	}
	return nil
}

type MenuParams struct {
	Language   string
	CategoryID string
	Search     string
}

type Menu struct {
	Categories []MenuCategory `json:"categories"`
	Dishes     []MenuDish     `json:"dishes"`
}

type MenuCategory struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	Count int       `json:"count"`
}

type MenuDish struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Price       float64   `json:"price"`
	ImageURL    string    `json:"image_url"`
	CategoryID  uuid.UUID `json:"category_id"`
	Available   bool      `json:"available"`
}

func (c *Client) GetMenu(ctx context.Context, p MenuParams) (*Menu, error) {
	q := url.Values{}
	if p.Language != "" {
		q.Set("lang", p.Language)
	}
	if p.CategoryID != "" {
		q.Set("category_id", p.CategoryID)
	}
	if p.Search != "" {
		q.Set("search", p.Search)
	}
	path := "/client/api/menu"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var menu Menu
	if err := c.do(ctx, http.MethodGet, path, nil, &menu); err != nil {
		return nil, err
	}
	return &menu, nil
}

type tableDTO struct {
	ID          uuid.UUID `json:"id"`
	TableNumber int       `json:"table_number"`
	Seats       int       `json:"seats"`
	Status      string    `json:"status"`
	IsAvailable bool      `json:"is_available"`
}

func (c *Client) Tables(ctx context.Context) ([]domain.Table, error) {
	var data struct {
		Tables []tableDTO `json:"tables"`
	}
	if err := c.do(ctx, http.MethodGet, "/client/api/tables", nil, &data); err != nil {
		return nil, err
	}

	tables := make([]domain.Table, 0, len(data.Tables))
	for _, t := range data.Tables {
		status, err := domain.ParseTableStatus(t.Status)
		if err != nil {
			return nil, err
		}
		tables = append(tables, domain.Table{
			ID:          t.ID,
			TableNumber: t.TableNumber,
			Seats:       t.Seats,
			Status:      status,
		})
	}
	return tables, nil
}

func (c *Client) VerifyTablePIN(ctx context.Context, tableNumber int, pin string) error {
	body := map[string]interface{}{"table_number": tableNumber, "pin": pin}
	return c.do(ctx, http.MethodPost, "/client/api/verify-table-pin", body, nil)
}

type Settings struct {
	ServiceChargePercent float64  `json:"service_charge_percent"`
	OrderCancelTimeout   int      `json:"order_cancel_timeout"`
	Languages            []string `json:"languages"`
	DefaultLanguage      string   `json:"default_language"`
	TablePINEnabled      bool     `json:"table_pin_enabled"`
	Currency             string   `json:"currency"`
}

func (c *Client) GetSettings(ctx context.Context) (*Settings, error) {
	var s Settings
	if err := c.do(ctx, http.MethodGet, "/client/api/settings", nil, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// CreateOrder submits the cart payload. Retries of a failed submission
// reuse the same idempotency key and replay server-side; a fresh key is
// issued after each accepted order.
func (c *Client) CreateOrder(ctx context.Context, req domain.OrderRequest) (uuid.UUID, error) {
	var data struct {
		OrderID uuid.UUID `json:"order_id"`
	}
	if err := c.doIdempotent(ctx, "/client/api/orders", req, &data); err != nil {
		return uuid.Nil, err
	}
	return data.OrderID, nil
}

func (c *Client) submissionKey() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.orderKey == "" {
		c.orderKey = uuid.New().String()
	}
	return c.orderKey
}

func (c *Client) resetSubmissionKey() {
	c.mu.Lock()
	c.orderKey = ""
	c.mu.Unlock()
}

func (c *Client) doIdempotent(ctx context.Context, path string, body, out interface{}) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Requested-With", "XMLHttpRequest")
	req.Header.Set("Idempotency-Key", c.submissionKey())
	if c.csrfToken != "" {
		req.Header.Set("X-CSRFToken", c.csrfToken)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrap(err, "request failed")
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return errors.Wrapf(err, "malformed response from %s", path)
	}
	if env.Status != "success" {
		if sentinel := domain.FromCode(env.Code); sentinel != nil {
			return errors.Wrap(sentinel, env.Message)
		}
		return errors.Newf("%s: %s", path, env.Message)
	}

	c.resetSubmissionKey()
	if out != nil && env.Data != nil {
		return json.Unmarshal(env.Data, out)
	}
	return nil
}

func (c *Client) CancelOrder(ctx context.Context, orderID uuid.UUID) error {
	return c.do(ctx, http.MethodPost, "/client/api/orders/"+orderID.String()+"/cancel", nil, nil)
}

// ConfirmOrder sends the order to the kitchen printer. The client-side
// "confirm" action reuses the waiter print route.
func (c *Client) ConfirmOrder(ctx context.Context, orderID uuid.UUID) error {
	return c.do(ctx, http.MethodPost, "/waiter/api/orders/"+orderID.String()+"/print", nil, nil)
}

func (c *Client) CheckBonusCard(ctx context.Context, cardNumber string) (*domain.BonusCard, error) {
	var data struct {
		CardNumber      string  `json:"card_number"`
		DiscountPercent float64 `json:"discount_percent"`
		IsActive        bool    `json:"is_active"`
	}
	err := c.do(ctx, http.MethodPost, "/api/bonus-cards/check", map[string]string{"card_number": cardNumber}, &data)
	if err != nil {
		return nil, err
	}
	return &domain.BonusCard{
		CardNumber:      data.CardNumber,
		DiscountPercent: data.DiscountPercent,
		IsActive:        data.IsActive,
	}, nil
}

func (c *Client) CallWaiter(ctx context.Context, tableNumber int) error {
	return c.do(ctx, http.MethodPost, "/client/api/call-waiter", map[string]int{"table_number": tableNumber}, nil)
}
