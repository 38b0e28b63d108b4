package storedata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"campaignd/internal/domain"
)

// Client fetches customer records from the commerce store's data API. The
// API paginates; FetchCustomers walks all pages and returns a flat
// collection, which is what the audience resolver wants.
type Client struct {
	HTTP     *http.Client
	PageSize int
}

type customersPage struct {
	Customers []map[string]any `json:"customers"`
	HasMore   bool             `json:"has_more"`
}

const (
	defaultPageSize = 250

	// maxPages bounds the pagination walk so a store that keeps answering
	// has_more=true cannot pin the worker forever. 1000 pages at the default
	// size covers 250k customers, far past any store this serves.
	maxPages = 1000
)

func (c *Client) FetchCustomers(ctx context.Context, creds domain.StoreCredentials) ([]domain.Customer, error) {
	if creds.AccessToken == "" {
		return nil, errors.New("store access token missing")
	}
	pageSize := c.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}

	base := strings.TrimRight(creds.StorefrontURL, "/")
	var out []domain.Customer
	for page := 1; page <= maxPages; page++ {
		endpoint := fmt.Sprintf("%s/api/customers?page=%d&limit=%d", base, page, pageSize)
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+creds.AccessToken)
		req.Header.Set("Accept", "application/json")

		resp, err := c.HTTP.Do(req)
		if err != nil {
			return nil, fmt.Errorf("fetch customers page %d: %w", page, err)
		}
		raw, _ := io.ReadAll(resp.Body)
		resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, fmt.Errorf("fetch customers page %d: store returned %d", page, resp.StatusCode)
		}

		var body customersPage
		if err := json.Unmarshal(raw, &body); err != nil {
			return nil, fmt.Errorf("fetch customers page %d: %w", page, err)
		}
		for _, fields := range body.Customers {
			out = append(out, domain.Customer{ID: customerID(fields), Fields: fields})
		}
		if !body.HasMore || len(body.Customers) == 0 {
			return out, nil
		}
	}
	return nil, fmt.Errorf("fetch customers: store still reports more after %d pages", maxPages)
}

func customerID(fields map[string]any) string {
	if v, ok := fields["id"]; ok {
		switch t := v.(type) {
		case string:
			return t
		case float64:
			return fmt.Sprintf("%d", int64(t))
		}
	}
	return ""
}
