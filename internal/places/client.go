// Package places finds nearby points of interest through a
// Nominatim-compatible geocoding service.
package places

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/adavila/ada/internal/httpkit"
)

// Config selects the geocoding endpoint. Nominatim's usage policy
// wants a contact email on every request.
type Config struct {
	BaseURL string
	Email   string
}

// Place is one search hit.
type Place struct {
	Name        string
	DisplayName string
	Category    string
	Lat, Lon    string
}

// Client queries the geocoding service.
type Client struct {
	cfg        Config
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a places client.
func NewClient(cfg Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		cfg:        cfg,
		httpClient: httpkit.NewClient(),
		logger:     logger,
	}
}

// nominatimResult mirrors the fields we use from the search response.
type nominatimResult struct {
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
	Type        string `json:"type"`
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
}

// Search returns up to limit places matching the query. A non-empty
// near string is folded into the query ("farmacia near Malasaña").
func (c *Client) Search(ctx context.Context, query, near string, limit int) ([]Place, error) {
	if limit <= 0 {
		limit = 5
	}
	if near != "" {
		query = query + " " + near
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("format", "jsonv2")
	params.Set("limit", strconv.Itoa(limit))
	if c.cfg.Email != "" {
		params.Set("email", c.cfg.Email)
	}

	endpoint := strings.TrimSuffix(c.cfg.BaseURL, "/") + "/search?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search places: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("places search status %d: %s",
			resp.StatusCode, httpkit.ReadErrorBody(resp.Body, 2048))
	}

	var results []nominatimResult
	err = json.NewDecoder(resp.Body).Decode(&results)
	httpkit.DrainAndClose(resp.Body, 4096)
	if err != nil {
		return nil, fmt.Errorf("decode places response: %w", err)
	}

	places := make([]Place, 0, len(results))
	for _, r := range results {
		places = append(places, Place{
			Name:        r.Name,
			DisplayName: r.DisplayName,
			Category:    r.Type,
			Lat:         r.Lat,
			Lon:         r.Lon,
		})
	}
	c.logger.Debug("places search", "query", query, "results", len(places))
	return places, nil
}
