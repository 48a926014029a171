package places

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/jamesdouglasskirk96/Nerava-sub005/internal/breaker"
)

const baseURL = "https://maps.googleapis.com/maps/api/place/nearbysearch/json"

// Client is a thin wrapper around the Google Places nearby search. Results
// feed merchant discovery when a charger has no curated partners around it.
type Client struct {
	apiKey     string
	httpClient *http.Client
	breaker    *breaker.Breaker
}

type Place struct {
	PlaceID  string   `json:"place_id"`
	Name     string   `json:"name"`
	Vicinity string   `json:"vicinity"`
	Types    []string `json:"types"`
	Rating   float64  `json:"rating"`
	Geometry struct {
		Location struct {
			Lat float64 `json:"lat"`
			Lng float64 `json:"lng"`
		} `json:"location"`
	} `json:"geometry"`
}

type searchResponse struct {
	Results []Place `json:"results"`
	Status  string  `json:"status"`
}

func New(apiKey string) *Client {
	return &Client{
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		breaker:    breaker.New("google-places", 5, 30*time.Second),
	}
}

// NearbySearch returns places of the given type around a point.
func (c *Client) NearbySearch(ctx context.Context, lat, lng, radiusM float64, placeType string) ([]Place, error) {
	params := url.Values{}
	params.Set("location", fmt.Sprintf("%f,%f", lat, lng))
	params.Set("radius", fmt.Sprintf("%.0f", radiusM))
	params.Set("type", placeType)
	params.Set("key", c.apiKey)

	var result searchResponse

	err := c.breaker.Do(func() error {
		var lastErr error
		for attempt := 0; attempt < 3; attempt++ {
			if attempt > 0 {
				time.Sleep(time.Duration(attempt) * 500 * time.Millisecond)
			}

			req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"?"+params.Encode(), nil)
			if err != nil {
				return err
			}

			resp, err := c.httpClient.Do(req)
			if err != nil {
				lastErr = err
				continue
			}

			if resp.StatusCode != http.StatusOK {
				resp.Body.Close()
				lastErr = fmt.Errorf("places api returned status %d", resp.StatusCode)
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

	if result.Status != "OK" && result.Status != "ZERO_RESULTS" {
		return nil, fmt.Errorf("places api status: %s", result.Status)
	}

	return result.Results, nil
}
