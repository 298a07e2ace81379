package openei

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/levenlabs/go-lflag"
	"github.com/tariffscope/tariffscope/pkg/common"
	"github.com/tariffscope/tariffscope/pkg/log"
	"github.com/tariffscope/tariffscope/pkg/types"
	"github.com/tariffscope/tariffscope/pkg/urdb"
)

// Client fetches tariffs from the OpenEI utility rate database API.
type Client struct {
	apiURL string
	apiKey string
	client *http.Client
}

// NewClient returns a client for the given endpoint. Configured is the
// flag-driven path; NewClient exists for tests and tools.
func NewClient(apiURL, apiKey string) *Client {
	return &Client{
		apiURL: apiURL,
		apiKey: apiKey,
		client: common.HTTPClient(30 * time.Second),
	}
}

// Configured sets up flags for the OpenEI client and returns the instance.
func Configured() *Client {
	c := &Client{
		client: common.HTTPClient(30 * time.Second),
	}
	apiURL := lflag.String("openei-api-url", "https://api.openei.org/utility_rates", "URL for the OpenEI utility rates API")
	apiKey := lflag.String("openei-api-key", "", "API key for OpenEI (optional, import endpoint fails without it)")

	lflag.Do(func() {
		c.apiURL = *apiURL
		c.apiKey = *apiKey
	})

	return c
}

// Validate ensures the configuration is valid.
func (c *Client) Validate() error {
	if c.apiURL == "" {
		return fmt.Errorf("openei-api-url is required")
	}
	if _, err := url.Parse(c.apiURL); err != nil {
		return fmt.Errorf("failed to parse openei url (%s): %w", c.apiURL, err)
	}
	return nil
}

// HasKey reports whether an API key was configured.
func (c *Client) HasKey() bool {
	return c.apiKey != ""
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type apiResponse struct {
	Error *apiError        `json:"error,omitempty"`
	Items []map[string]any `json:"items"`
}

// GetTariff fetches a single tariff by its URDB label and decodes it into
// the canonical model. The response record is normalized first since the
// API occasionally serves hybrid records with nested tier wrappers.
func (c *Client) GetTariff(ctx context.Context, label string) (types.Tariff, error) {
	if label == "" {
		return types.Tariff{}, fmt.Errorf("label cannot be empty")
	}
	if c.apiKey == "" {
		return types.Tariff{}, fmt.Errorf("openei-api-key is required")
	}

	u, err := url.Parse(c.apiURL)
	if err != nil {
		return types.Tariff{}, fmt.Errorf("invalid api url: %w", err)
	}
	params := url.Values{}
	params.Set("version", "7")
	params.Set("format", "json")
	params.Set("detail", "full")
	params.Set("getpage", label)
	params.Set("api_key", c.apiKey)
	u.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, "GET", u.String(), nil)
	if err != nil {
		return types.Tariff{}, fmt.Errorf("failed to create request: %w", err)
	}
	log.Ctx(ctx).DebugContext(ctx, "fetching tariff from openei", "label", label)

	resp, err := c.client.Do(req)
	if err != nil {
		return types.Tariff{}, fmt.Errorf("failed to fetch tariff: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return types.Tariff{}, fmt.Errorf("openei api returned status: %d", resp.StatusCode)
	}

	var data apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return types.Tariff{}, fmt.Errorf("failed to decode response: %w", err)
	}
	if data.Error != nil {
		return types.Tariff{}, fmt.Errorf("openei api error: %s (%s)", data.Error.Message, data.Error.Code)
	}
	if len(data.Items) == 0 {
		return types.Tariff{}, fmt.Errorf("no tariff found for label %s", label)
	}

	record, err := urdb.ToAPIFormat(data.Items[0])
	if err != nil {
		return types.Tariff{}, fmt.Errorf("failed to normalize tariff %s: %w", label, err)
	}
	t, err := urdb.ParseTariff(record)
	if err != nil {
		return types.Tariff{}, fmt.Errorf("failed to decode tariff %s: %w", label, err)
	}
	if t.Label == "" {
		t.Label = label
	}
	return t, nil
}
