package twilio

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jamesdouglasskirk96/Nerava-sub005/internal/breaker"
)

// Messenger is what the notify worker depends on; tests swap in a fake.
type Messenger interface {
	SendSMS(ctx context.Context, to, body string) error
}

// Client sends outbound SMS through the Twilio messages API. Inbound replies
// come back through the /webhooks/twilio/sms endpoint.
type Client struct {
	accountSid string
	authToken  string
	from       string
	httpClient *http.Client
	breaker    *breaker.Breaker
}

func New(accountSid, authToken, from string) *Client {
	return &Client{
		accountSid: accountSid,
		authToken:  authToken,
		from:       from,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		breaker:    breaker.New("twilio", 5, 30*time.Second),
	}
}

func (c *Client) SendSMS(ctx context.Context, to, body string) error {
	endpoint := fmt.Sprintf("https://api.twilio.com/2010-04-01/Accounts/%s/Messages.json", c.accountSid)

	form := url.Values{}
	form.Set("To", to)
	form.Set("From", c.from)
	form.Set("Body", body)

	return c.breaker.Do(func() error {
		var lastErr error
		for attempt := 0; attempt < 3; attempt++ {
			if attempt > 0 {
				time.Sleep(time.Duration(attempt) * time.Second)
			}

			req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
			if err != nil {
				return err
			}
			req.SetBasicAuth(c.accountSid, c.authToken)
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

			resp, err := c.httpClient.Do(req)
			if err != nil {
				lastErr = err
				continue
			}
			resp.Body.Close()

			if resp.StatusCode >= 300 {
				lastErr = fmt.Errorf("twilio api returned status %d", resp.StatusCode)
				continue
			}

			return nil
		}
		return lastErr
	})
}
