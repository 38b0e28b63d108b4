package httpserver

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"campaignd/internal/providers/waba"
	sqsqueue "campaignd/internal/queue/sqs"
)

type fakeEventQueue struct {
	events []sqsqueue.DeliveryEvent
	err    error
}

func (f *fakeEventQueue) Enqueue(_ context.Context, ev sqsqueue.DeliveryEvent) error {
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, ev)
	return nil
}

func signBody(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func newWebhookServer(q *fakeEventQueue) *httptest.Server {
	wh := &Webhook{Queue: q, VerifySignature: waba.VerifySignature, Secret: "hooksecret"}
	s := New()
	wh.Register(s.Mux)
	return httptest.NewServer(s.Mux)
}

func postStatus(t *testing.T, url string, body []byte, sig string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, url+"/v1/webhooks/messaging/status", bytes.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	if sig != "" {
		req.Header.Set("X-Signature", sig)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	return resp
}

func TestWebhookAcceptsSignedReceipt(t *testing.T) {
	q := &fakeEventQueue{}
	srv := newWebhookServer(q)
	defer srv.Close()

	body := []byte(`{"message_id":"wamid_9","status":"delivered"}`)
	resp := postStatus(t, srv.URL, body, signBody("hooksecret", body))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if len(q.events) != 1 {
		t.Fatalf("events = %d", len(q.events))
	}
	ev := q.events[0]
	if ev.ProviderMsgID != "wamid_9" || ev.Status != "delivered" || ev.Provider != "messaging" {
		t.Fatalf("event = %+v", ev)
	}
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	q := &fakeEventQueue{}
	srv := newWebhookServer(q)
	defer srv.Close()

	body := []byte(`{"message_id":"wamid_9","status":"delivered"}`)

	if resp := postStatus(t, srv.URL, body, signBody("wrongsecret", body)); resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("wrong key: status = %d", resp.StatusCode)
	}
	if resp := postStatus(t, srv.URL, body, ""); resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("missing signature: status = %d", resp.StatusCode)
	}
	if len(q.events) != 0 {
		t.Fatal("unverified receipts must not enqueue")
	}
}

func TestWebhookRejectsBadPayload(t *testing.T) {
	srv := newWebhookServer(&fakeEventQueue{})
	defer srv.Close()

	body := []byte(`{"status":"delivered"}`)
	if resp := postStatus(t, srv.URL, body, signBody("hooksecret", body)); resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("missing message_id: status = %d", resp.StatusCode)
	}

	body = []byte(`not json`)
	if resp := postStatus(t, srv.URL, body, signBody("hooksecret", body)); resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("garbage body: status = %d", resp.StatusCode)
	}
}

func TestWebhookEnqueueFailure(t *testing.T) {
	srv := newWebhookServer(&fakeEventQueue{err: errors.New("sqs down")})
	defer srv.Close()

	body := []byte(`{"message_id":"wamid_9","status":"delivered"}`)
	if resp := postStatus(t, srv.URL, body, signBody("hooksecret", body)); resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("status = %d, provider must retry on 5xx", resp.StatusCode)
	}
}
