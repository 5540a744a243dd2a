// Package imagegen generates images from text prompts through an
// OpenAI-compatible images endpoint and delivers them straight to the
// conversation's transport.
package imagegen

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/adavila/ada/internal/httpkit"
)

// Config selects the generation endpoint and model.
type Config struct {
	URL    string // e.g. https://api.example.com/v1/images/generations
	APIKey string
	Model  string
}

// Client calls the image generation API.
type Client struct {
	cfg        Config
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates an image generation client. Generation is slow, so
// the client timeout is left to the per-call context.
func NewClient(cfg Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		cfg:        cfg,
		httpClient: httpkit.NewClient(httpkit.WithTimeout(0)),
		logger:     logger,
	}
}

type generateRequest struct {
	Model          string `json:"model,omitempty"`
	Prompt         string `json:"prompt"`
	N              int    `json:"n"`
	Size           string `json:"size,omitempty"`
	ResponseFormat string `json:"response_format"`
}

type generateResponse struct {
	Data []struct {
		B64JSON string `json:"b64_json"`
	} `json:"data"`
}

// Generate produces one PNG for the prompt.
func (c *Client) Generate(ctx context.Context, prompt string) ([]byte, error) {
	body, err := json.Marshal(generateRequest{
		Model:          c.cfg.Model,
		Prompt:         prompt,
		N:              1,
		ResponseFormat: "b64_json",
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("generate image: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("image generation status %d: %s",
			resp.StatusCode, httpkit.ReadErrorBody(resp.Body, 2048))
	}

	var decoded generateResponse
	err = json.NewDecoder(resp.Body).Decode(&decoded)
	httpkit.DrainAndClose(resp.Body, 4096)
	if err != nil {
		return nil, fmt.Errorf("decode image response: %w", err)
	}
	if len(decoded.Data) == 0 || decoded.Data[0].B64JSON == "" {
		return nil, fmt.Errorf("image generation returned no data")
	}

	img, err := base64.StdEncoding.DecodeString(decoded.Data[0].B64JSON)
	if err != nil {
		return nil, fmt.Errorf("decode image payload: %w", err)
	}

	c.logger.Debug("image generated", "prompt_len", len(prompt), "bytes", len(img))
	return img, nil
}
