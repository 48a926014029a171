package handler

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/jamesdouglasskirk96/Nerava-sub005/internal/config"
	internalContext "github.com/jamesdouglasskirk96/Nerava-sub005/internal/context"
	"github.com/jamesdouglasskirk96/Nerava-sub005/internal/errHandler"
	"github.com/jamesdouglasskirk96/Nerava-sub005/internal/geo"
	"github.com/jamesdouglasskirk96/Nerava-sub005/internal/helper"
	"github.com/jamesdouglasskirk96/Nerava-sub005/internal/models"
	"github.com/jamesdouglasskirk96/Nerava-sub005/internal/repository"
	"github.com/jamesdouglasskirk96/Nerava-sub005/internal/smartcar"
	"github.com/jamesdouglasskirk96/Nerava-sub005/internal/stream"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newTestArrivalHandler(t *testing.T, db *mockDB) *arrivalHandler {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(bytes.NewBuffer(nil), nil))
	errH := errHandler.New("", "http://localhost", nil, logger)

	var baseURL = "http://localhost"
	var wg sync.WaitGroup
	helperRepo := helper.New(&baseURL, &wg, errH)

	cfg := &config.Config{BaseURL: "http://localhost"}
	cfg.Geofence.SessionTTL = 2 * time.Hour
	cfg.Geofence.PingTimeout = 90 * time.Second

	zones := geo.Zones{ChargerInnerM: 75, ChargerOuterM: 250, ApproachM: 1000, MerchantZoneM: 150}

	return NewArrivalHandler(db, errH, helperRepo, stream.New("localhost:9092"), smartcar.New(), zones, cfg)
}

func arrivalRequest(t *testing.T, target string, body map[string]any) *http.Request {
	t.Helper()

	requestBody, err := json.Marshal(body)
	require.NoError(t, err)

	req, err := http.NewRequest("POST", target, bytes.NewBuffer(requestBody))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	driver := &models.Driver{ID: "driver-1", Status: repository.DriverAccountActiveStatus}
	return internalContext.ContextSetAuthenticatedDriver(req, driver)
}

func TestHandleStartArrival_CreatesPendingSession(t *testing.T) {
	mockMerchantRepo := new(MockMerchantRepo)
	mockArrivalRepo := new(MockArrivalRepo)
	mockActivityRepo := new(MockActivityRepo)

	mockMerchantRepo.On("GetOne", "merchant-1").Return(&models.Merchant{
		ID:     "merchant-1",
		Name:   "Flat Track Coffee",
		Status: repository.MerchantActiveStatus,
	}, true, nil)
	mockArrivalRepo.On("HasActive", "driver-1").Return(false, nil)
	mockArrivalRepo.On("Insert", mock.Anything).Return("session-1", nil)
	mockActivityRepo.On("Insert", mock.Anything).Return(&models.ActivityLog{}, nil)

	h := newTestArrivalHandler(t, &mockDB{
		merchant: mockMerchantRepo,
		arrival:  mockArrivalRepo,
		activity: mockActivityRepo,
	})

	rr := httptest.NewRecorder()
	h.HandleStartArrival(rr, arrivalRequest(t, "/v1/arrivals", map[string]any{
		"merchant_id": "merchant-1",
	}))

	require.Equal(t, http.StatusCreated, rr.Code)

	var response map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &response))

	data, ok := response["data"].(map[string]any)
	require.True(t, ok)
	require.Equal(t, "session-1", data["id"])
	require.Equal(t, repository.ArrivalPendingStatus, data["status"])

	inserted := mockArrivalRepo.Calls[1].Arguments.Get(0).(*models.ArrivalSession)
	require.Regexp(t, regexp.MustCompile(`^[A-F0-9]{6}$`), inserted.ReplyCode)
	require.False(t, inserted.ExpiresAt.IsZero())
}

func TestHandleStartArrival_RejectsSecondActiveSession(t *testing.T) {
	mockMerchantRepo := new(MockMerchantRepo)
	mockArrivalRepo := new(MockArrivalRepo)

	mockMerchantRepo.On("GetOne", "merchant-1").Return(&models.Merchant{
		ID:     "merchant-1",
		Status: repository.MerchantActiveStatus,
	}, true, nil)
	mockArrivalRepo.On("HasActive", "driver-1").Return(true, nil)

	h := newTestArrivalHandler(t, &mockDB{
		merchant: mockMerchantRepo,
		arrival:  mockArrivalRepo,
	})

	rr := httptest.NewRecorder()
	h.HandleStartArrival(rr, arrivalRequest(t, "/v1/arrivals", map[string]any{
		"merchant_id": "merchant-1",
	}))

	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Contains(t, rr.Body.String(), "already have an arrival session")

	mockArrivalRepo.AssertNotCalled(t, "Insert", mock.Anything)
}

func TestHandleStartArrival_PausedMerchant(t *testing.T) {
	mockMerchantRepo := new(MockMerchantRepo)

	mockMerchantRepo.On("GetOne", "merchant-1").Return(&models.Merchant{
		ID:     "merchant-1",
		Status: repository.MerchantPausedStatus,
	}, true, nil)

	h := newTestArrivalHandler(t, &mockDB{merchant: mockMerchantRepo})

	rr := httptest.NewRecorder()
	h.HandleStartArrival(rr, arrivalRequest(t, "/v1/arrivals", map[string]any{
		"merchant_id": "merchant-1",
	}))

	require.Equal(t, http.StatusBadRequest, rr.Code)
}

// Test geometry: the charger and merchant sit at a real Austin intersection;
// lngDegreesEast converts meter offsets at that latitude.
const (
	testSiteLat = 30.4015
	testSiteLng = -97.7265
)

func lngDegreesEast(meters float64) float64 {
	return meters / 96000
}

func pingSession(status string) *models.ArrivalSession {
	return &models.ArrivalSession{
		ID:         "session-1",
		DriverID:   "driver-1",
		MerchantID: "merchant-1",
		ChargerID:  sql.NullString{String: "charger-1", Valid: true},
		Status:     status,
		ReplyCode:  "A1B2C3",
		ExpiresAt:  time.Now().Add(time.Hour),
	}
}

func pingRequest(t *testing.T, lat, lng float64) *http.Request {
	t.Helper()

	req := arrivalRequest(t, "/v1/arrivals/session-1/pings", map[string]any{
		"lat": lat,
		"lng": lng,
	})
	req.SetPathValue("id", "session-1")
	return req
}

func pingResponseData(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()

	var response map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &response))

	data, ok := response["data"].(map[string]any)
	require.True(t, ok)
	return data
}

func TestHandlePingArrival_QualifyingFixVerifiesSession(t *testing.T) {
	mockArrivalRepo := new(MockArrivalRepo)
	mockMerchantRepo := new(MockMerchantRepo)
	mockChargerRepo := new(MockChargerRepo)
	mockActivityRepo := new(MockActivityRepo)

	mockArrivalRepo.On("GetOne", "session-1").Return(pingSession(repository.ArrivalPendingStatus), true, nil)
	mockMerchantRepo.On("GetOne", "merchant-1").Return(&models.Merchant{
		ID:      "merchant-1",
		Lat:     testSiteLat,
		Lng:     testSiteLng,
		RadiusM: 150,
		Status:  repository.MerchantActiveStatus,
	}, true, nil)
	mockChargerRepo.On("GetOne", "charger-1").Return(&models.Charger{
		ID:  "charger-1",
		Lat: testSiteLat,
		Lng: testSiteLng,
	}, true, nil)

	verified := pingSession(repository.ArrivalArrivedStatus)
	verified.ConfidenceTier = sql.NullString{String: geo.TierA, Valid: true}
	mockArrivalRepo.On("MarkArrived", "session-1", geo.TierA).Return(verified, nil)
	mockArrivalRepo.On("AccrueDwell", "session-1", 0, mock.Anything).Return(nil)
	mockActivityRepo.On("Insert", mock.Anything).Return(&models.ActivityLog{}, nil)

	h := newTestArrivalHandler(t, &mockDB{
		arrival:  mockArrivalRepo,
		merchant: mockMerchantRepo,
		charger:  mockChargerRepo,
		activity: mockActivityRepo,
	})

	rr := httptest.NewRecorder()
	h.HandlePingArrival(rr, pingRequest(t, testSiteLat, testSiteLng+lngDegreesEast(20)))

	require.Equal(t, http.StatusOK, rr.Code)

	data := pingResponseData(t, rr)
	require.Equal(t, repository.ArrivalArrivedStatus, data["status"])
	require.Equal(t, geo.TierA, data["confidence_tier"])
	require.Equal(t, true, data["in_merchant_zone"])

	mockArrivalRepo.AssertCalled(t, "MarkArrived", "session-1", geo.TierA)
}

func TestHandlePingArrival_OutsideMerchantZoneStaysPending(t *testing.T) {
	mockArrivalRepo := new(MockArrivalRepo)
	mockMerchantRepo := new(MockMerchantRepo)
	mockChargerRepo := new(MockChargerRepo)

	mockArrivalRepo.On("GetOne", "session-1").Return(pingSession(repository.ArrivalPendingStatus), true, nil)

	// Merchant roughly 480m east of the charger: a fix at the charger
	// clears the tier check but fails the dual-zone one.
	mockMerchantRepo.On("GetOne", "merchant-1").Return(&models.Merchant{
		ID:      "merchant-1",
		Lat:     testSiteLat,
		Lng:     testSiteLng + lngDegreesEast(480),
		RadiusM: 150,
		Status:  repository.MerchantActiveStatus,
	}, true, nil)
	mockChargerRepo.On("GetOne", "charger-1").Return(&models.Charger{
		ID:  "charger-1",
		Lat: testSiteLat,
		Lng: testSiteLng,
	}, true, nil)

	h := newTestArrivalHandler(t, &mockDB{
		arrival:  mockArrivalRepo,
		merchant: mockMerchantRepo,
		charger:  mockChargerRepo,
	})

	rr := httptest.NewRecorder()
	h.HandlePingArrival(rr, pingRequest(t, testSiteLat, testSiteLng))

	require.Equal(t, http.StatusOK, rr.Code)

	data := pingResponseData(t, rr)
	require.Equal(t, repository.ArrivalPendingStatus, data["status"])
	require.Equal(t, false, data["in_merchant_zone"])

	mockArrivalRepo.AssertNotCalled(t, "MarkArrived", mock.Anything, mock.Anything)
	mockArrivalRepo.AssertNotCalled(t, "AccrueDwell", mock.Anything, mock.Anything, mock.Anything)
}

func TestHandlePingArrival_AccruesDwellSincePreviousPing(t *testing.T) {
	mockArrivalRepo := new(MockArrivalRepo)
	mockMerchantRepo := new(MockMerchantRepo)

	session := pingSession(repository.ArrivalArrivedStatus)
	session.ConfidenceTier = sql.NullString{String: geo.TierB, Valid: true}
	session.DwellSeconds = 10
	session.LastPingAt = sql.NullTime{Time: time.Now().Add(-30 * time.Second), Valid: true}

	mockArrivalRepo.On("GetOne", "session-1").Return(session, true, nil)
	mockMerchantRepo.On("GetOne", "merchant-1").Return(&models.Merchant{
		ID:      "merchant-1",
		Lat:     testSiteLat,
		Lng:     testSiteLng,
		RadiusM: 150,
		Status:  repository.MerchantActiveStatus,
	}, true, nil)
	mockArrivalRepo.On("AccrueDwell", "session-1", 30, mock.Anything).Return(nil)

	h := newTestArrivalHandler(t, &mockDB{
		arrival:  mockArrivalRepo,
		merchant: mockMerchantRepo,
	})

	rr := httptest.NewRecorder()
	h.HandlePingArrival(rr, pingRequest(t, testSiteLat, testSiteLng))

	require.Equal(t, http.StatusOK, rr.Code)

	data := pingResponseData(t, rr)
	require.EqualValues(t, 40, data["dwell_seconds"])

	mockArrivalRepo.AssertExpectations(t)
}

func TestHandlePingArrival_CapsDwellGapAtPingTimeout(t *testing.T) {
	mockArrivalRepo := new(MockArrivalRepo)
	mockMerchantRepo := new(MockMerchantRepo)

	session := pingSession(repository.ArrivalArrivedStatus)
	session.ConfidenceTier = sql.NullString{String: geo.TierB, Valid: true}
	session.LastPingAt = sql.NullTime{Time: time.Now().Add(-10 * time.Minute), Valid: true}

	mockArrivalRepo.On("GetOne", "session-1").Return(session, true, nil)
	mockMerchantRepo.On("GetOne", "merchant-1").Return(&models.Merchant{
		ID:      "merchant-1",
		Lat:     testSiteLat,
		Lng:     testSiteLng,
		RadiusM: 150,
		Status:  repository.MerchantActiveStatus,
	}, true, nil)

	// A ten minute silence only counts for the ping timeout's worth of dwell.
	mockArrivalRepo.On("AccrueDwell", "session-1", 90, mock.Anything).Return(nil)

	h := newTestArrivalHandler(t, &mockDB{
		arrival:  mockArrivalRepo,
		merchant: mockMerchantRepo,
	})

	rr := httptest.NewRecorder()
	h.HandlePingArrival(rr, pingRequest(t, testSiteLat, testSiteLng))

	require.Equal(t, http.StatusOK, rr.Code)
	mockArrivalRepo.AssertExpectations(t)
}

func TestTierSatisfies(t *testing.T) {
	tests := []struct {
		tier    string
		minTier string
		want    bool
	}{
		{geo.TierA, geo.TierA, true},
		{geo.TierA, geo.TierC, true},
		{geo.TierB, geo.TierA, false},
		{geo.TierB, geo.TierB, true},
		{geo.TierC, geo.TierB, false},
		{geo.TierC, geo.TierC, true},
	}

	for _, tt := range tests {
		require.Equal(t, tt.want, tierSatisfies(tt.tier, tt.minTier), "tier %s vs min %s", tt.tier, tt.minTier)
	}
}

func TestNewReplyCode(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		code := newReplyCode()
		require.Regexp(t, regexp.MustCompile(`^[A-F0-9]{6}$`), code)
		seen[code] = true
	}

	// 100 draws over a 16^6 space should never collide down to one value
	require.Greater(t, len(seen), 1)
}
