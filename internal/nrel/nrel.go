package nrel

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/jamesdouglasskirk96/Nerava-sub005/internal/breaker"
)

const baseURL = "https://developer.nrel.gov/api/alt-fuel-stations/v1/nearest.json"

// Client queries the NREL alternative-fuel-station dataset, the primary
// source the charger seeder pulls from.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	breaker    *breaker.Breaker
}

type Station struct {
	ID               int      `json:"id"`
	StationName      string   `json:"station_name"`
	Latitude         float64  `json:"latitude"`
	Longitude        float64  `json:"longitude"`
	EvNetwork        string   `json:"ev_network"`
	EvConnectorTypes []string `json:"ev_connector_types"`
	StatusCode       string   `json:"status_code"`
}

type nearestResponse struct {
	FuelStations []Station `json:"fuel_stations"`
}

func New(apiKey string) *Client {
	return &Client{
		apiKey:     apiKey,
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		breaker:    breaker.New("nrel", 5, time.Minute),
	}
}

// NearestStations returns electric stations around a point, radius in miles
// per the NREL API contract.
func (c *Client) NearestStations(ctx context.Context, lat, lng, radiusMiles float64, limit int) ([]Station, error) {
	params := url.Values{}
	params.Set("latitude", fmt.Sprintf("%f", lat))
	params.Set("longitude", fmt.Sprintf("%f", lng))
	params.Set("radius", fmt.Sprintf("%.1f", radiusMiles))
	params.Set("fuel_type", "ELEC")
	params.Set("limit", fmt.Sprintf("%d", limit))
	params.Set("api_key", c.apiKey)

	var result nearestResponse

	err := c.breaker.Do(func() error {
		var lastErr error
		for attempt := 0; attempt < 3; attempt++ {
			if attempt > 0 {
				time.Sleep(time.Duration(attempt) * 500 * time.Millisecond)
			}

			req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
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
				lastErr = fmt.Errorf("nrel api returned status %d", resp.StatusCode)
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

	return result.FuelStations, nil
}
