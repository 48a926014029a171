package hubspot

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/jamesdouglasskirk96/Nerava-sub005/internal/breaker"
)

const eventsURL = "https://api.hubapi.com/events/v3/send"

// Sender is the outbox dispatcher's view of the CRM.
type Sender interface {
	SendEvent(ctx context.Context, eventName string, properties map[string]any) error
}

// Client pushes behavioral events into HubSpot. Everything flows through the
// outbox table first, so a CRM outage never loses an event.
type Client struct {
	accessToken string
	url         string
	httpClient  *http.Client
	breaker     *breaker.Breaker
}

func New(accessToken string) *Client {
	return &Client{
		accessToken: accessToken,
		url:         eventsURL,
		httpClient:  &http.Client{Timeout: 10 * time.Second},
		breaker:     breaker.New("hubspot", 5, time.Minute),
	}
}

func (c *Client) SendEvent(ctx context.Context, eventName string, properties map[string]any) error {
	payload := map[string]any{
		"eventName":  eventName,
		"properties": properties,
		"occurredAt": time.Now().UTC().Format(time.RFC3339),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	return c.breaker.Do(func() error {
		var lastErr error
		for attempt := 0; attempt < 3; attempt++ {
			if attempt > 0 {
				time.Sleep(time.Duration(attempt) * 500 * time.Millisecond)
			}

			req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
			if err != nil {
				return err
			}
			req.Header.Set("Authorization", "Bearer "+c.accessToken)
			req.Header.Set("Content-Type", "application/json")

			resp, err := c.httpClient.Do(req)
			if err != nil {
				lastErr = err
				continue
			}
			resp.Body.Close()

			if resp.StatusCode >= 300 {
				lastErr = fmt.Errorf("hubspot api returned status %d", resp.StatusCode)
				continue
			}

			return nil
		}
		return lastErr
	})
}
