package httpserver

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"campaignd/internal/observability"
	sqsqueue "campaignd/internal/queue/sqs"
	"campaignd/internal/util"
)

type DeliveryEventQueue interface {
	Enqueue(ctx context.Context, ev sqsqueue.DeliveryEvent) error
}

// Webhook receives messaging-provider delivery receipts. It only verifies
// and enqueues; the webhook-processor owns the database writes, so a burst
// of receipts cannot stall the provider's callback timeout.
type Webhook struct {
	Queue           DeliveryEventQueue
	VerifySignature func(secret string, body []byte, provided string) bool
	Secret          string
}

type statusCallback struct {
	MessageID string `json:"message_id"`
	Status    string `json:"status"`
	ErrorCode string `json:"error_code,omitempty"`
}

func (wh *Webhook) Register(router *mux.Router) {
	router.HandleFunc("/v1/webhooks/messaging/status", wh.handleStatus).Methods(http.MethodPost)
}

func (wh *Webhook) handleStatus(rw http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(rw, ErrBadPayload, http.StatusBadRequest)
		return
	}
	if wh.VerifySignature == nil || !wh.VerifySignature(wh.Secret, body, r.Header.Get("X-Signature")) {
		http.Error(rw, ErrInvalidSignature, http.StatusUnauthorized)
		return
	}

	var cb statusCallback
	if err := json.Unmarshal(body, &cb); err != nil || cb.MessageID == "" {
		http.Error(rw, ErrBadPayload, http.StatusBadRequest)
		return
	}

	observability.WebhookEvents.WithLabelValues(cb.Status).Inc()

	err = wh.Queue.Enqueue(r.Context(), sqsqueue.DeliveryEvent{
		Provider:      "messaging",
		ProviderMsgID: cb.MessageID,
		Status:        cb.Status,
		ErrorCode:     cb.ErrorCode,
		ReceivedAt:    util.NowUTC(),
	})
	if err != nil {
		slog.Error("webhook enqueue failed", "err", err, "message_id", cb.MessageID, "status", cb.Status)
		http.Error(rw, ErrDependency, http.StatusInternalServerError)
		return
	}
	rw.WriteHeader(http.StatusOK)
}
