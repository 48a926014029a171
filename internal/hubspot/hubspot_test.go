package hubspot

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSendEvent_RetriesTransientFailure(t *testing.T) {
	var calls atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	c := New("token")
	c.url = server.URL

	err := c.SendEvent(context.Background(), "crm.driver_signed_up", map[string]any{"driver_id": "driver-1"})
	require.NoError(t, err)
	require.EqualValues(t, 2, calls.Load())
}
