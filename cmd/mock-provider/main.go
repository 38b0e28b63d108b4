// mock-provider is a local-dev stand-in for the three external collaborators:
// the WhatsApp-style messaging provider, the transactional e-mail API, and
// the commerce store's customer data API. It can emit delivery callbacks to
// a configured webhook URL so the full receipt pipeline runs locally.
package main

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"os"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/mux"
	"github.com/kelseyhightower/envconfig"

	"campaignd/internal/logging"
)

type config struct {
	Port          string        `envconfig:"PORT" default:"9100"`
	Token         string        `envconfig:"MOCK_TOKEN" default:"mock_token"`
	SuccessRate   float64       `envconfig:"MOCK_SUCCESS_RATE" default:"0.95"`
	Delay         time.Duration `envconfig:"MOCK_DELAY" default:"0"`
	Customers     int           `envconfig:"MOCK_CUSTOMERS" default:"50"`
	WebhookURL    string        `envconfig:"MOCK_WEBHOOK_URL" default:""`
	WebhookSecret string        `envconfig:"MOCK_WEBHOOK_SECRET" default:"mock_secret"`
	WebhookDelay  time.Duration `envconfig:"MOCK_WEBHOOK_DELAY" default:"500ms"`
	LogFormat     string        `envconfig:"LOG_FORMAT" default:"text"`
}

type server struct {
	cfg    config
	seq    uint64
	rngMu  sync.Mutex
	rng    *rand.Rand
	client *http.Client
}

func main() {
	var cfg config
	if err := envconfig.Process("", &cfg); err != nil {
		panic(err)
	}
	logging.Init("mock-provider", cfg.LogFormat)

	s := &server{
		cfg:    cfg,
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
		client: &http.Client{Timeout: 5 * time.Second},
	}

	r := mux.NewRouter()
	r.HandleFunc("/v1/messages", s.handleSendMessage).Methods(http.MethodPost)
	r.HandleFunc("/v1/emails", s.handleSendEmail).Methods(http.MethodPost)
	r.HandleFunc("/api/customers", s.handleCustomers).Methods(http.MethodGet)
	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })

	slog.Info("mock-provider listening", "port", cfg.Port)
	if err := http.ListenAndServe(":"+cfg.Port, r); err != nil {
		slog.Error("mock-provider failed", "err", err)
		os.Exit(1)
	}
}

func (s *server) authorized(r *http.Request) bool {
	return r.Header.Get("Authorization") == "Bearer "+s.cfg.Token
}

func (s *server) roll() bool {
	s.rngMu.Lock()
	defer s.rngMu.Unlock()
	return s.rng.Float64() < s.cfg.SuccessRate
}

func (s *server) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(r) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid token"})
		return
	}
	var req struct {
		Recipient string `json:"recipient"`
		Type      string `json:"type"`
		Body      string `json:"body"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Recipient == "" || req.Body == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "recipient and body required"})
		return
	}
	time.Sleep(s.cfg.Delay)

	if !s.roll() {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": "recipient unreachable"})
		return
	}

	msgID := fmt.Sprintf("wamid_%06d", atomic.AddUint64(&s.seq, 1))
	writeJSON(w, http.StatusCreated, map[string]string{"message_id": msgID, "status": "accepted"})

	if s.cfg.WebhookURL != "" {
		go s.emitReceipt(msgID)
	}
}

// emitReceipt posts a signed delivery callback after a short delay, the way
// the real provider reports asynchronously.
func (s *server) emitReceipt(msgID string) {
	time.Sleep(s.cfg.WebhookDelay)

	status := "delivered"
	if !s.roll() {
		status = "undelivered"
	}
	body, _ := json.Marshal(map[string]string{"message_id": msgID, "status": status})

	mac := hmac.New(sha256.New, []byte(s.cfg.WebhookSecret))
	mac.Write(body)
	sig := hex.EncodeToString(mac.Sum(nil))

	req, err := http.NewRequest(http.MethodPost, s.cfg.WebhookURL, bytes.NewReader(body))
	if err != nil {
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Signature", sig)

	resp, err := s.client.Do(req)
	if err != nil {
		slog.Warn("mock receipt delivery failed", "err", err, "message_id", msgID)
		return
	}
	resp.Body.Close()
	slog.Info("mock receipt delivered", "message_id", msgID, "status", status, "http_status", resp.StatusCode)
}

func (s *server) handleSendEmail(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(r) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "invalid token"})
		return
	}
	var req struct {
		To      string `json:"to"`
		Subject string `json:"subject"`
		HTML    string `json:"html"`
		Text    string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.To == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "to required"})
		return
	}
	time.Sleep(s.cfg.Delay)

	if !s.roll() {
		writeJSON(w, http.StatusBadGateway, map[string]string{"message": "smtp upstream unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": fmt.Sprintf("em_%06d", atomic.AddUint64(&s.seq, 1))})
}

// handleCustomers serves a deterministic synthetic customer book, paginated
// the way the store-data client expects.
func (s *server) handleCustomers(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(r) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid token"})
		return
	}
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit < 1 || limit > 250 {
		limit = 50
	}

	start := (page - 1) * limit
	end := start + limit
	if end > s.cfg.Customers {
		end = s.cfg.Customers
	}

	customers := make([]map[string]any, 0, limit)
	for i := start; i < end; i++ {
		customers = append(customers, map[string]any{
			"id":          fmt.Sprintf("cust_%04d", i+1),
			"first_name":  fmt.Sprintf("Test%d", i+1),
			"last_name":   "Customer",
			"email":       fmt.Sprintf("test%d@example.com", i+1),
			"phone":       fmt.Sprintf("1555%07d", i+1),
			"total_spent": float64((i * 37) % 1200),
			"tags":        []string{"mock", fmt.Sprintf("bucket-%d", i%3)},
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"customers": customers,
		"has_more":  end < s.cfg.Customers,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
