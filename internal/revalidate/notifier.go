package revalidate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// HTTPNotifier calls the storefront's revalidation hook, which marks the given paths stale.
type HTTPNotifier struct {
	URL    string
	Secret string
	Client *http.Client
}

func NewHTTPNotifier(url, secret string) *HTTPNotifier {
	return &HTTPNotifier{URL: url, Secret: secret, Client: &http.Client{Timeout: 5 * time.Second}}
}

type revalidateRequest struct {
	Paths  []string `json:"paths"`
	Secret string   `json:"secret,omitempty"`
}

func (n *HTTPNotifier) Revalidate(ctx context.Context, paths []string) error {
	body, err := json.Marshal(revalidateRequest{Paths: paths, Secret: n.Secret})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.URL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.Client.Do(req)
	if err != nil {
		return fmt.Errorf("revalidate: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("revalidate: status %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
