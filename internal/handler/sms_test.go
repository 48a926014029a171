package handler

import (
	"bytes"
	"database/sql"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jamesdouglasskirk96/Nerava-sub005/internal/errHandler"
	"github.com/jamesdouglasskirk96/Nerava-sub005/internal/geo"
	"github.com/jamesdouglasskirk96/Nerava-sub005/internal/helper"
	"github.com/jamesdouglasskirk96/Nerava-sub005/internal/models"
	"github.com/jamesdouglasskirk96/Nerava-sub005/internal/repository"
	"github.com/jamesdouglasskirk96/Nerava-sub005/internal/stream"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newTestSmsHandler(t *testing.T, db *mockDB) *smsHandler {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(bytes.NewBuffer(nil), nil))
	errH := errHandler.New("", "http://localhost", nil, logger)

	var baseURL = "http://localhost"
	var wg sync.WaitGroup
	helperRepo := helper.New(&baseURL, &wg, errH)

	return NewSmsHandler(db, errH, helperRepo, stream.New("localhost:9092"))
}

func inboundSmsRequest(t *testing.T, body string) *http.Request {
	t.Helper()

	form := url.Values{}
	form.Set("From", "+15125550100")
	form.Set("Body", body)

	req, err := http.NewRequest("POST", "/v1/webhooks/twilio/sms", strings.NewReader(form.Encode()))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	return req
}

func notifiedSession(dwellSeconds int) *models.ArrivalSession {
	return &models.ArrivalSession{
		ID:             "session-1",
		DriverID:       "driver-1",
		MerchantID:     "merchant-1",
		PerkID:         sql.NullString{String: "perk-1", Valid: true},
		Status:         repository.ArrivalMerchantNotifiedStatus,
		ConfidenceTier: sql.NullString{String: geo.TierA, Valid: true},
		ReplyCode:      "A1B2C3",
		DwellSeconds:   dwellSeconds,
		ExpiresAt:      time.Now().Add(time.Hour),
	}
}

func TestHandleInboundSms_ConfirmsBillableVisit(t *testing.T) {
	mockArrivalRepo := new(MockArrivalRepo)
	mockPerkRepo := new(MockPerkRepo)
	mockActivityRepo := new(MockActivityRepo)

	session := notifiedSession(600)
	completed := *session
	completed.Status = repository.ArrivalCompletedStatus

	mockArrivalRepo.On("FindByReplyCode", "A1B2C3").Return(session, true, nil)
	mockArrivalRepo.On("Complete", "session-1", true).Return(&completed, nil)
	mockPerkRepo.On("GetOne", "perk-1").Return(&models.Perk{
		ID:              "perk-1",
		MerchantID:      "merchant-1",
		MinDwellSeconds: 300,
		MinTier:         geo.TierB,
	}, true, nil)
	mockActivityRepo.On("Insert", mock.Anything).Return(&models.ActivityLog{}, nil)

	h := newTestSmsHandler(t, &mockDB{
		arrival:  mockArrivalRepo,
		perk:     mockPerkRepo,
		activity: mockActivityRepo,
	})

	rr := httptest.NewRecorder()
	h.HandleInboundSms(rr, inboundSmsRequest(t, "a1b2c3 all served!"))

	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "text/xml", rr.Header().Get("Content-Type"))
	require.Contains(t, rr.Body.String(), "Visit confirmed")

	mockArrivalRepo.AssertCalled(t, "Complete", "session-1", true)
}

func TestHandleInboundSms_ShortDwellCompletesUnbillable(t *testing.T) {
	mockArrivalRepo := new(MockArrivalRepo)
	mockPerkRepo := new(MockPerkRepo)
	mockActivityRepo := new(MockActivityRepo)

	session := notifiedSession(60)
	completed := *session
	completed.Status = repository.ArrivalCompletedUnbillableStatus

	mockArrivalRepo.On("FindByReplyCode", "A1B2C3").Return(session, true, nil)
	mockArrivalRepo.On("Complete", "session-1", false).Return(&completed, nil)
	mockPerkRepo.On("GetOne", "perk-1").Return(&models.Perk{
		ID:              "perk-1",
		MerchantID:      "merchant-1",
		MinDwellSeconds: 300,
		MinTier:         geo.TierB,
	}, true, nil)
	mockActivityRepo.On("Insert", mock.Anything).Return(&models.ActivityLog{}, nil)

	h := newTestSmsHandler(t, &mockDB{
		arrival:  mockArrivalRepo,
		perk:     mockPerkRepo,
		activity: mockActivityRepo,
	})

	rr := httptest.NewRecorder()
	h.HandleInboundSms(rr, inboundSmsRequest(t, "A1B2C3"))

	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), "won't be charged")

	mockArrivalRepo.AssertCalled(t, "Complete", "session-1", false)
}

func TestHandleInboundSms_UnknownCode(t *testing.T) {
	mockArrivalRepo := new(MockArrivalRepo)
	mockArrivalRepo.On("FindByReplyCode", "FFFFFF").Return(nil, false, nil)

	h := newTestSmsHandler(t, &mockDB{arrival: mockArrivalRepo})

	rr := httptest.NewRecorder()
	h.HandleInboundSms(rr, inboundSmsRequest(t, "ffffff"))

	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), "don't recognize")
}

func TestHandleInboundSms_NoCodeInMessage(t *testing.T) {
	h := newTestSmsHandler(t, &mockDB{})

	rr := httptest.NewRecorder()
	h.HandleInboundSms(rr, inboundSmsRequest(t, "thanks, the driver just left"))

	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), "couldn't find a confirmation code")
}

func TestHandleInboundSms_AlreadyCompleted(t *testing.T) {
	mockArrivalRepo := new(MockArrivalRepo)

	session := notifiedSession(600)
	session.Status = repository.ArrivalCompletedStatus
	mockArrivalRepo.On("FindByReplyCode", "A1B2C3").Return(session, true, nil)

	h := newTestSmsHandler(t, &mockDB{arrival: mockArrivalRepo})

	rr := httptest.NewRecorder()
	h.HandleInboundSms(rr, inboundSmsRequest(t, "A1B2C3"))

	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), "no longer awaiting confirmation")

	mockArrivalRepo.AssertNotCalled(t, "Complete", mock.Anything, mock.Anything)
}
