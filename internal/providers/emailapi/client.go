package emailapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
)

// Client is a thin transactional e-mail API client. The exact provider
// protocol is a collaborator concern; this wraps the common shape: JSON in,
// an id out on success.
type Client struct {
	BaseURL   string
	APIKey    string
	FromEmail string
	HTTP      *http.Client
}

type SendRequest struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Subject string `json:"subject,omitempty"`
	HTML    string `json:"html,omitempty"`
	Text    string `json:"text,omitempty"`
}

type SendResponse struct {
	ID      string `json:"id"`
	Message string `json:"message,omitempty"`
}

func (c *Client) SendEmail(ctx context.Context, req SendRequest) (SendResponse, int, error) {
	if req.From == "" {
		req.From = c.FromEmail
	}
	payload, _ := json.Marshal(req)

	endpoint := strings.TrimRight(c.BaseURL, "/") + "/v1/emails"
	httpReq, _ := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.APIKey)

	resp, err := c.HTTP.Do(httpReq)
	if err != nil {
		return SendResponse{}, 0, err
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)

	var out SendResponse
	_ = json.Unmarshal(raw, &out)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if out.Message != "" {
			return out, resp.StatusCode, errors.New(out.Message)
		}
		return out, resp.StatusCode, errors.New("email send failed")
	}
	if out.ID == "" {
		return out, resp.StatusCode, errors.New("email provider returned no id")
	}
	return out, resp.StatusCode, nil
}
