package waba

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestSendText(t *testing.T) {
	var got SendRequest
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/messages" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(SendResponse{MessageID: "wamid_42", Status: "accepted"})
	}))
	defer srv.Close()

	c := &Client{BaseURL: srv.URL, Token: "tok", HTTP: srv.Client()}
	resp, status, _, err := c.SendText(context.Background(), "15558675309", "Hi Ada")
	if err != nil {
		t.Fatalf("SendText: %v", err)
	}
	if status != http.StatusCreated || resp.MessageID != "wamid_42" {
		t.Errorf("status = %d, resp = %+v", status, resp)
	}
	if gotAuth != "Bearer tok" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if got.Recipient != "15558675309" || got.Body != "Hi Ada" || got.Type != "text" {
		t.Errorf("request payload = %+v", got)
	}
}

func TestSendTextProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "recipient unreachable"})
	}))
	defer srv.Close()

	c := &Client{BaseURL: srv.URL, HTTP: srv.Client()}
	_, status, _, err := c.SendText(context.Background(), "15558675309", "Hi")
	if err == nil || err.Error() != "recipient unreachable" {
		t.Fatalf("err = %v, want provider error text", err)
	}
	if status != http.StatusUnprocessableEntity {
		t.Errorf("status = %d", status)
	}
}

func TestSendTextMissingMessageID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"accepted"}`))
	}))
	defer srv.Close()

	c := &Client{BaseURL: srv.URL, HTTP: srv.Client()}
	if _, _, _, err := c.SendText(context.Background(), "15558675309", "Hi"); err == nil {
		t.Fatal("2xx without a message id must be an error")
	}
}
