package pdf

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Notice is the structured content submitted to the external renderer.
type Notice struct {
	Title        string   `json:"title"`
	Body         string   `json:"body"`
	Jurisdiction string   `json:"jurisdiction"`
	Language     string   `json:"language"`
	Recipient    string   `json:"recipient"`
	Attachments  []string `json:"attachments,omitempty"`
}

// Client calls the external PDF rendering service. The renderer is
// opaque: structured notice in, binary artifact out.
type Client struct {
	url  string
	http *http.Client
}

func NewClient(url string, timeout time.Duration) *Client {
	return &Client{
		url:  url,
		http: &http.Client{Timeout: timeout},
	}
}

// Render submits a notice and returns the rendered PDF bytes.
func (c *Client) Render(ctx context.Context, notice Notice) ([]byte, error) {
	payload, err := json.Marshal(notice)
	if err != nil {
		return nil, fmt.Errorf("failed to encode notice: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create render request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/pdf")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("renderer unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("renderer returned status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read rendered artifact: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("renderer returned empty artifact")
	}
	return data, nil
}
