package waba

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
)

// Client talks to a WhatsApp-style messaging provider: bearer-token auth,
// JSON request, success indicated by a message id in the response body.
type Client struct {
	BaseURL string
	Token   string
	HTTP    *http.Client
}

type SendRequest struct {
	Recipient string `json:"recipient"`
	Type      string `json:"type"`
	Body      string `json:"body"`
}

type SendResponse struct {
	MessageID string `json:"message_id"`
	Status    string `json:"status"`
	Error     string `json:"error,omitempty"`
}

// SendText posts one text message. Any non-2xx response, or a 2xx without a
// message id, is a failure carrying the provider's error text.
func (c *Client) SendText(ctx context.Context, recipient, body string) (SendResponse, int, []byte, error) {
	payload, _ := json.Marshal(SendRequest{Recipient: recipient, Type: "text", Body: body})

	endpoint := strings.TrimRight(c.BaseURL, "/") + "/v1/messages"
	httpReq, _ := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.Token)

	resp, err := c.HTTP.Do(httpReq)
	if err != nil {
		return SendResponse{}, 0, nil, err
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)

	var out SendResponse
	_ = json.Unmarshal(raw, &out)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if out.Error != "" {
			return out, resp.StatusCode, raw, errors.New(out.Error)
		}
		return out, resp.StatusCode, raw, errors.New("messaging provider send failed")
	}
	if out.MessageID == "" {
		return out, resp.StatusCode, raw, errors.New("messaging provider returned no message id")
	}
	return out, resp.StatusCode, raw, nil
}
