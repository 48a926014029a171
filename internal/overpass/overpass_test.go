package overpass

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestChargingStations_RetriesTransientFailure(t *testing.T) {
	var calls atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}

		w.Write([]byte(`{"elements":[{"id":1,"lat":30.4,"lon":-97.7,"tags":{"amenity":"charging_station"}}]}`))
	}))
	defer server.Close()

	c := New(server.URL)

	elements, err := c.ChargingStations(context.Background(), 30.4, -97.7, 1000)
	require.NoError(t, err)
	require.Len(t, elements, 1)
	require.EqualValues(t, 2, calls.Load())
}

func TestChargingStations_GivesUpAfterThreeAttempts(t *testing.T) {
	var calls atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	c := New(server.URL)

	_, err := c.ChargingStations(context.Background(), 30.4, -97.7, 1000)
	require.ErrorContains(t, err, "overpass api returned status 502")
	require.EqualValues(t, 3, calls.Load())
}
