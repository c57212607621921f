package events

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	feederTimeout = 3 * time.Second
	feederOpened  = "BOX_OPENED"
)

// Feeder asks the feeding box to open when a visit starts.
type Feeder struct {
	url    string
	client *http.Client
}

func NewFeeder(url string) *Feeder {
	return &Feeder{url: url, client: &http.Client{Timeout: feederTimeout}}
}

// Trigger opens the box. Only a BOX_OPENED reply counts as success.
func (f *Feeder) Trigger(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return fmt.Errorf("failed to build feeder request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return fmt.Errorf("feeder trigger failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 256))
	if err != nil {
		return fmt.Errorf("failed to read feeder response: %w", err)
	}
	if reply := strings.TrimSpace(string(body)); reply != feederOpened {
		return fmt.Errorf("unexpected feeder response %q", reply)
	}
	return nil
}
