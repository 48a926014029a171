package smartcar

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/jamesdouglasskirk96/Nerava-sub005/internal/breaker"
)

const baseURL = "https://api.smartcar.com/v2.0"

// ChargingState is what the vehicle reports about its plug.
const (
	ChargingStateCharging     = "CHARGING"
	ChargingStateFullyCharged = "FULLY_CHARGED"
	ChargingStateNotCharging  = "NOT_CHARGING"
)

// Client wraps the two Smartcar reads we care about: is the car plugged in,
// and where is it. A CHARGING report from a vehicle positioned at the
// charger upgrades a session to tier A regardless of where the phone is.
type Client struct {
	baseURL    string
	httpClient *http.Client
	breaker    *breaker.Breaker
}

type ChargeStatus struct {
	State       string `json:"state"`
	IsPluggedIn bool   `json:"isPluggedIn"`
}

type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

func New() *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		breaker:    breaker.New("smartcar", 5, 30*time.Second),
	}
}

// ChargeStatus reads the vehicle's charge state using the driver's OAuth
// access token obtained out of band.
func (c *Client) ChargeStatus(ctx context.Context, vehicleID, accessToken string) (*ChargeStatus, error) {
	var status ChargeStatus

	err := c.get(ctx, fmt.Sprintf("%s/vehicles/%s/charge", c.baseURL, vehicleID), accessToken, &status)
	if err != nil {
		return nil, err
	}

	return &status, nil
}

// Location reads the vehicle's last reported position.
func (c *Client) Location(ctx context.Context, vehicleID, accessToken string) (*Location, error) {
	var location Location

	err := c.get(ctx, fmt.Sprintf("%s/vehicles/%s/location", c.baseURL, vehicleID), accessToken, &location)
	if err != nil {
		return nil, err
	}

	return &location, nil
}

func (c *Client) get(ctx context.Context, url, accessToken string, dst any) error {
	return c.breaker.Do(func() error {
		var lastErr error
		for attempt := 0; attempt < 3; attempt++ {
			if attempt > 0 {
				time.Sleep(time.Duration(attempt) * 500 * time.Millisecond)
			}

			req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
			if err != nil {
				return err
			}
			req.Header.Set("Authorization", "Bearer "+accessToken)

			resp, err := c.httpClient.Do(req)
			if err != nil {
				lastErr = err
				continue
			}

			if resp.StatusCode != http.StatusOK {
				resp.Body.Close()
				lastErr = fmt.Errorf("smartcar api returned status %d", resp.StatusCode)
				continue
			}

			err = json.NewDecoder(resp.Body).Decode(dst)
			resp.Body.Close()
			if err != nil {
				lastErr = err
				continue
			}

			return nil
		}
		return lastErr
	})
}
