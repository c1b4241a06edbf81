package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/vanityline/vanityline/services/numbers-service/internal/models"
)

const (
	budPayInitializeEndpoint = "/transaction/initialize"
	budPayVerifyEndpoint     = "/transaction/verify/"
	defaultGatewayTimeout    = 10 * time.Second
)

// PaymentGateway is the hosted checkout provider.
type PaymentGateway interface {
	Initialize(ctx context.Context, req InitializeRequest) (*InitializeResponse, error)
	Verify(ctx context.Context, reference string) (*GatewayTransaction, error)
}

type InitializeRequest struct {
	Email       string
	Amount      float64
	Currency    string
	Reference   string
	CallbackURL string
}

type InitializeResponse struct {
	AuthorizationURL string
	AccessCode       string
	Reference        string
}

// GatewayTransaction is a validated verify response.
type GatewayTransaction struct {
	Reference string
	Amount    float64
	Currency  string
	Status    string
	Channel   string
	PaidAt    time.Time
	Customer  models.Customer
	Raw       string
}

type BudPayClient struct {
	client    *http.Client
	baseURL   string
	secretKey string
	timeout   time.Duration
	validate  *validator.Validate
	metrics   *Metrics
}

func NewBudPayClient(baseURL, secretKey string, timeout time.Duration, metrics *Metrics) *BudPayClient {
	if timeout <= 0 {
		timeout = defaultGatewayTimeout
	}
	return &BudPayClient{
		client:    &http.Client{Timeout: timeout},
		baseURL:   strings.TrimRight(baseURL, "/"),
		secretKey: secretKey,
		timeout:   timeout,
		validate:  validator.New(),
		metrics:   metrics,
	}
}

// flexString accepts both "5000.00" and 5000 for amounts; the gateway sends either.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = flexString(n.String())
	return nil
}

type budPayEnvelope struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type budPayInitializeData struct {
	AuthorizationURL string `json:"authorization_url" validate:"required,url"`
	AccessCode       string `json:"access_code"`
	Reference        string `json:"reference" validate:"required"`
}

type budPayVerifyData struct {
	Reference string     `json:"reference" validate:"required"`
	Amount    flexString `json:"amount" validate:"required,numeric"`
	Currency  string     `json:"currency" validate:"required"`
	Status    string     `json:"status" validate:"required"`
	Channel   string     `json:"channel"`
	CreatedAt string     `json:"created_at"`
	Customer  struct {
		Email     string `json:"email" validate:"required,email"`
		FirstName string `json:"first_name"`
		LastName  string `json:"last_name"`
		Phone     string `json:"phone"`
	} `json:"customer"`
}

func (c *BudPayClient) Initialize(ctx context.Context, req InitializeRequest) (*InitializeResponse, error) {
	payload, err := json.Marshal(map[string]string{
		"email":     req.Email,
		"amount":    strconv.FormatFloat(req.Amount, 'f', 2, 64),
		"currency":  req.Currency,
		"reference": req.Reference,
		"callback":  req.CallbackURL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode initialize request: %w", err)
	}

	env, err := c.do(ctx, "initialize", http.MethodPost, budPayInitializeEndpoint, payload)
	if err != nil {
		return nil, err
	}

	var data budPayInitializeData
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return nil, fmt.Errorf("%w: malformed initialize response: %v", models.ErrGateway, err)
	}
	if err := c.validate.Struct(data); err != nil {
		return nil, fmt.Errorf("%w: invalid initialize response: %v", models.ErrGateway, err)
	}

	return &InitializeResponse{
		AuthorizationURL: data.AuthorizationURL,
		AccessCode:       data.AccessCode,
		Reference:        data.Reference,
	}, nil
}

func (c *BudPayClient) Verify(ctx context.Context, reference string) (*GatewayTransaction, error) {
	env, err := c.do(ctx, "verify", http.MethodGet, budPayVerifyEndpoint+url.PathEscape(reference), nil)
	if err != nil {
		return nil, err
	}

	var data budPayVerifyData
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return nil, fmt.Errorf("%w: malformed verify response: %v", models.ErrGateway, err)
	}
	if err := c.validate.Struct(data); err != nil {
		return nil, fmt.Errorf("%w: invalid verify response: %v", models.ErrGateway, err)
	}
	if data.Reference != reference {
		return nil, fmt.Errorf("%w: verify response is for reference %q", models.ErrGateway, data.Reference)
	}

	amount, err := strconv.ParseFloat(string(data.Amount), 64)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid amount %q", models.ErrGateway, data.Amount)
	}

	paidAt, err := time.Parse(time.RFC3339, data.CreatedAt)
	if err != nil {
		paidAt = time.Now()
	}

	return &GatewayTransaction{
		Reference: data.Reference,
		Amount:    amount,
		Currency:  data.Currency,
		Status:    strings.ToLower(data.Status),
		Channel:   data.Channel,
		PaidAt:    paidAt,
		Customer: models.Customer{
			Email:     data.Customer.Email,
			FirstName: data.Customer.FirstName,
			LastName:  data.Customer.LastName,
			Phone:     data.Customer.Phone,
		},
		Raw: string(env.Data),
	}, nil
}

// do performs one request without retries. Deadline errors map to ErrGatewayTimeout, every
// other failure to ErrGateway.
func (c *BudPayClient) do(ctx context.Context, operation, method, path string, body []byte) (*budPayEnvelope, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	outcome := "error"
	defer func() {
		c.metrics.GatewayRequests.WithLabelValues(operation, outcome).Inc()
		c.metrics.GatewayDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	}()

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create request: %v", models.ErrGateway, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		if isTimeout(err) {
			outcome = "timeout"
			return nil, models.ErrGatewayTimeout
		}
		return nil, fmt.Errorf("%w: %v", models.ErrGateway, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		if isTimeout(err) {
			outcome = "timeout"
			return nil, models.ErrGatewayTimeout
		}
		return nil, fmt.Errorf("%w: failed to read response: %v", models.ErrGateway, err)
	}

	var env budPayEnvelope
	_ = json.Unmarshal(raw, &env)

	if resp.StatusCode == http.StatusNotFound && operation == "verify" {
		outcome = "not_found"
		return nil, fmt.Errorf("%w: gateway has no such reference", models.ErrPaymentNotFound)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 || !env.Status {
		msg := env.Message
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return nil, fmt.Errorf("%w: %s (status %d)", models.ErrGateway, msg, resp.StatusCode)
	}

	outcome = "ok"
	return &env, nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
