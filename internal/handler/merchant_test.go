package handler

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/jamesdouglasskirk96/Nerava-sub005/internal/errHandler"
	"github.com/jamesdouglasskirk96/Nerava-sub005/internal/helper"
	"github.com/jamesdouglasskirk96/Nerava-sub005/internal/repository"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newTestMerchantHandler(t *testing.T, db *mockDB) *merchantHandler {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(bytes.NewBuffer(nil), nil))
	errH := errHandler.New("", "http://localhost", nil, logger)

	var baseURL = "http://localhost"
	var wg sync.WaitGroup
	helperRepo := helper.New(&baseURL, &wg, errH)

	return NewMerchantHandler(db, errH, helperRepo, nil)
}

func createMerchantRequest(t *testing.T, body map[string]any) *http.Request {
	t.Helper()

	requestBody, err := json.Marshal(body)
	require.NoError(t, err)

	req, err := http.NewRequest("POST", "/v1/merchants", bytes.NewBuffer(requestBody))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	return req
}

func TestHandleCreateMerchant_OnboardingEventSharesTransaction(t *testing.T) {
	tx := newStubTx(t)

	mockMerchantRepo := new(MockMerchantRepo)
	mockOutboxRepo := new(MockOutboxRepo)

	mockMerchantRepo.On("Insert", mock.Anything, tx).Return("merchant-1", nil)
	mockOutboxRepo.On("Insert", repository.OutboxMerchantOnboardedTopic, mock.Anything, tx).Return("event-1", nil)

	h := newTestMerchantHandler(t, &mockDB{
		merchant: mockMerchantRepo,
		outbox:   mockOutboxRepo,
		tx:       tx,
	})

	rr := httptest.NewRecorder()
	h.HandleCreateMerchant(rr, createMerchantRequest(t, map[string]any{
		"name":     "Flat Track Coffee",
		"category": "coffee",
		"lat":      30.2537,
		"lng":      -97.7221,
	}))

	require.Equal(t, http.StatusCreated, rr.Code)
	mockMerchantRepo.AssertExpectations(t)
	mockOutboxRepo.AssertExpectations(t)

	payload := mockOutboxRepo.Calls[0].Arguments.Get(1).([]byte)

	var event map[string]string
	require.NoError(t, json.Unmarshal(payload, &event))
	require.Equal(t, "merchant-1", event["merchant_id"])
	require.Equal(t, "Flat Track Coffee", event["name"])
}

func TestHandleCreateMerchant_NoInsertWithoutTransaction(t *testing.T) {
	mockMerchantRepo := new(MockMerchantRepo)

	h := newTestMerchantHandler(t, &mockDB{merchant: mockMerchantRepo})

	rr := httptest.NewRecorder()
	h.HandleCreateMerchant(rr, createMerchantRequest(t, map[string]any{
		"name":     "Flat Track Coffee",
		"category": "coffee",
		"lat":      30.2537,
		"lng":      -97.7221,
	}))

	require.Equal(t, http.StatusInternalServerError, rr.Code)
	mockMerchantRepo.AssertNotCalled(t, "Insert", mock.Anything, mock.Anything)
}
