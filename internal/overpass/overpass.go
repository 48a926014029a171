package overpass

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jamesdouglasskirk96/Nerava-sub005/internal/breaker"
)

// Client queries the OpenStreetMap Overpass API for charging stations. Used
// as a fallback charger source in regions NREL doesn't cover.
type Client struct {
	baseURL    string
	httpClient *http.Client
	breaker    *breaker.Breaker
}

type Element struct {
	ID   int64             `json:"id"`
	Lat  float64           `json:"lat"`
	Lon  float64           `json:"lon"`
	Tags map[string]string `json:"tags"`
}

type overpassResponse struct {
	Elements []Element `json:"elements"`
}

func New(baseURL string) *Client {
	if baseURL == "" {
		baseURL = "https://overpass-api.de/api/interpreter"
	}

	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 25 * time.Second},
		breaker:    breaker.New("overpass", 3, 2*time.Minute),
	}
}

// ChargingStations returns charging_station nodes around a point.
func (c *Client) ChargingStations(ctx context.Context, lat, lng, radiusM float64) ([]Element, error) {
	query := fmt.Sprintf(
		`[out:json][timeout:20];node["amenity"="charging_station"](around:%.0f,%f,%f);out body;`,
		radiusM, lat, lng,
	)

	form := url.Values{}
	form.Set("data", query)

	var result overpassResponse

	err := c.breaker.Do(func() error {
		var lastErr error
		for attempt := 0; attempt < 3; attempt++ {
			if attempt > 0 {
				time.Sleep(time.Duration(attempt) * 500 * time.Millisecond)
			}

			req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, strings.NewReader(form.Encode()))
			if err != nil {
				return err
			}
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

			resp, err := c.httpClient.Do(req)
			if err != nil {
				lastErr = err
				continue
			}

			if resp.StatusCode != http.StatusOK {
				resp.Body.Close()
				lastErr = fmt.Errorf("overpass api returned status %d", resp.StatusCode)
				continue
			}

			err = json.NewDecoder(resp.Body).Decode(&result)
			resp.Body.Close()
			if err != nil {
				lastErr = err
				continue
			}

			return nil
		}
		return lastErr
	})
	if err != nil {
		return nil, err
	}

	return result.Elements, nil
}
