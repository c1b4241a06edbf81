package testutil

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"
)

// MockBudPayServer imitates the gateway's initialize and verify endpoints.
type MockBudPayServer struct {
	Server       *httptest.Server
	SecretKey    string
	Transactions map[string]*MockTransaction
	RequestLog   []MockRequest
	// Delay is applied before every response; set it above the client timeout to exercise 504s.
	Delay      time.Duration
	ShouldFail bool
	mu         sync.RWMutex
}

type MockTransaction struct {
	Reference string
	Amount    string
	Currency  string
	Status    string
	Channel   string
	Email     string
	FirstName string
	LastName  string
	Phone     string
	CreatedAt time.Time
}

type MockRequest struct {
	Method    string
	Path      string
	Body      string
	Timestamp time.Time
}

func NewMockBudPayServer(secretKey string) *MockBudPayServer {
	m := &MockBudPayServer{
		SecretKey:    secretKey,
		Transactions: make(map[string]*MockTransaction),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/transaction/initialize", m.handleInitialize)
	mux.HandleFunc("/transaction/verify/", m.handleVerify)

	m.Server = httptest.NewServer(m.withLogging(mux))
	return m
}

func (m *MockBudPayServer) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body []byte
		if r.Body != nil {
			body, _ = io.ReadAll(r.Body)
		}

		m.mu.Lock()
		m.RequestLog = append(m.RequestLog, MockRequest{
			Method:    r.Method,
			Path:      r.URL.Path,
			Body:      string(body),
			Timestamp: time.Now(),
		})
		delay, fail := m.Delay, m.ShouldFail
		m.mu.Unlock()

		if delay > 0 {
			select {
			case <-time.After(delay):
			case <-r.Context().Done():
				return
			}
		}

		if r.Header.Get("Authorization") != "Bearer "+m.SecretKey {
			writeJSON(w, http.StatusUnauthorized, map[string]interface{}{"status": false, "message": "Unauthorized"})
			return
		}
		if fail {
			writeJSON(w, http.StatusInternalServerError, map[string]interface{}{"status": false, "message": "gateway failure"})
			return
		}

		r.Body = io.NopCloser(bytes.NewReader(body))
		next.ServeHTTP(w, r)
	})
}

func (m *MockBudPayServer) handleInitialize(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		Email     string `json:"email"`
		Amount    string `json:"amount"`
		Currency  string `json:"currency"`
		Reference string `json:"reference"`
		Callback  string `json:"callback"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Reference == "" || req.Email == "" {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{"status": false, "message": "invalid request"})
		return
	}

	m.mu.Lock()
	m.Transactions[req.Reference] = &MockTransaction{
		Reference: req.Reference,
		Amount:    req.Amount,
		Currency:  req.Currency,
		Status:    "pending",
		Channel:   "card",
		Email:     req.Email,
		CreatedAt: time.Now(),
	}
	m.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  true,
		"message": "Authorization URL created",
		"data": map[string]string{
			"authorization_url": m.Server.URL + "/checkout/" + req.Reference,
			"access_code":       "ac_" + req.Reference,
			"reference":         req.Reference,
		},
	})
}

func (m *MockBudPayServer) handleVerify(w http.ResponseWriter, r *http.Request) {
	reference := strings.TrimPrefix(r.URL.Path, "/transaction/verify/")

	m.mu.RLock()
	tx, ok := m.Transactions[reference]
	m.mu.RUnlock()

	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]interface{}{"status": false, "message": "Transaction not found"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  true,
		"message": "Verification successful",
		"data": map[string]interface{}{
			"reference":  tx.Reference,
			"amount":     tx.Amount,
			"currency":   tx.Currency,
			"status":     tx.Status,
			"channel":    tx.Channel,
			"created_at": tx.CreatedAt.Format(time.RFC3339),
			"customer": map[string]string{
				"email":      tx.Email,
				"first_name": tx.FirstName,
				"last_name":  tx.LastName,
				"phone":      tx.Phone,
			},
		},
	})
}

// AddTransaction seeds or replaces a transaction the verify endpoint will report.
func (m *MockBudPayServer) AddTransaction(tx MockTransaction) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = time.Now()
	}
	m.Transactions[tx.Reference] = &tx
}

func (m *MockBudPayServer) Complete(reference string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if tx, ok := m.Transactions[reference]; ok {
		tx.Status = "success"
	}
}

func (m *MockBudPayServer) SetDelay(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Delay = d
}

func (m *MockBudPayServer) SetShouldFail(fail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ShouldFail = fail
}

func (m *MockBudPayServer) Requests(path string) []MockRequest {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []MockRequest
	for _, req := range m.RequestLog {
		if strings.HasPrefix(req.Path, path) {
			out = append(out, req)
		}
	}
	return out
}

func (m *MockBudPayServer) URL() string {
	return m.Server.URL
}

func (m *MockBudPayServer) Close() {
	m.Server.Close()
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
