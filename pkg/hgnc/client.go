// Package hgnc is a minimal client for the HUGO Gene Nomenclature
// Committee REST API, used to validate and normalize gene symbols during
// population.
package hgnc

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/compath-server/internal/domain"
)

// Client queries the HGNC REST API with client-side rate limiting. HGNC
// recommends at most a few requests per second.
type Client struct {
	baseURL    string
	httpClient *http.Client
	rateLimit  *rate.Limiter
}

// response is the subset of the HGNC fetch response we consume.
type response struct {
	Response struct {
		NumFound int `json:"numFound"`
		Docs     []struct {
			Symbol          string   `json:"symbol"`
			Status          string   `json:"status"`
			PreviousSymbols []string `json:"prev_symbol"`
			AliasSymbols    []string `json:"alias_symbol"`
		} `json:"docs"`
	} `json:"response"`
}

// NewClient creates an HGNC client.
func NewClient(cfg domain.HGNCConfig) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://rest.genenames.org"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.RateLimit == 0 {
		cfg.RateLimit = 3
	}

	return &Client{
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		rateLimit: rate.NewLimiter(rate.Limit(cfg.RateLimit), 1),
	}
}

// ValidateSymbol checks a gene symbol against HGNC. It returns the
// approved symbol (which may differ from the input when the input is a
// previous or alias symbol), ok=false when HGNC does not know the symbol,
// and an error only for transport or decoding failures.
func (c *Client) ValidateSymbol(ctx context.Context, symbol string) (string, bool, error) {
	trimmed := strings.TrimSpace(symbol)
	if trimmed == "" {
		return "", false, nil
	}

	if err := c.rateLimit.Wait(ctx); err != nil {
		return "", false, fmt.Errorf("rate limit wait failed: %w", err)
	}

	data, err := c.fetch(ctx, "symbol", trimmed)
	if err != nil {
		return "", false, err
	}
	if data.Response.NumFound > 0 {
		return data.Response.Docs[0].Symbol, true, nil
	}

	// Fall back to previous-symbol lookup so renamed genes normalize to
	// their current approved symbol.
	data, err = c.fetch(ctx, "prev_symbol", trimmed)
	if err != nil {
		return "", false, err
	}
	if data.Response.NumFound > 0 {
		return data.Response.Docs[0].Symbol, true, nil
	}

	return "", false, nil
}

func (c *Client) fetch(ctx context.Context, field, value string) (*response, error) {
	endpoint := fmt.Sprintf("%s/fetch/%s/%s", c.baseURL, field, url.PathEscape(value))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("creating HGNC request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("querying HGNC: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("HGNC returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var data response
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, fmt.Errorf("decoding HGNC response: %w", err)
	}
	return &data, nil
}
