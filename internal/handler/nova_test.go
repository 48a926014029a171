package handler

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	internalContext "github.com/jamesdouglasskirk96/Nerava-sub005/internal/context"
	"github.com/jamesdouglasskirk96/Nerava-sub005/internal/errHandler"
	"github.com/jamesdouglasskirk96/Nerava-sub005/internal/helper"
	"github.com/jamesdouglasskirk96/Nerava-sub005/internal/models"
	"github.com/jamesdouglasskirk96/Nerava-sub005/internal/repository"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newTestNovaHandler(t *testing.T, db *mockDB) *novaHandler {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(bytes.NewBuffer(nil), nil))
	errH := errHandler.New("", "http://localhost", nil, logger)

	var baseURL = "http://localhost"
	var wg sync.WaitGroup
	helperRepo := helper.New(&baseURL, &wg, errH)

	return NewNovaHandler(db, errH, helperRepo)
}

func novaRequest(t *testing.T, body map[string]any) *http.Request {
	t.Helper()

	requestBody, err := json.Marshal(body)
	require.NoError(t, err)

	req, err := http.NewRequest("POST", "/v1/nova/grants", bytes.NewBuffer(requestBody))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	driver := &models.Driver{ID: "driver-1", Status: repository.DriverAccountActiveStatus}
	return internalContext.ContextSetAuthenticatedDriver(req, driver)
}

func TestHandleGrantNova_FirstCallCreatesTransaction(t *testing.T) {
	mockWalletRepo := new(MockWalletRepo)
	mockNovaRepo := new(MockNovaRepo)
	mockActivityRepo := new(MockActivityRepo)

	wallet := &models.Wallet{ID: "wallet-1", DriverID: "driver-1", BalanceCents: 0}
	mockWalletRepo.On("GetByDriverId", "driver-1").Return(wallet, true, nil)
	mockActivityRepo.On("Insert", mock.Anything).Return(&models.ActivityLog{}, nil)

	txn := &models.NovaTransaction{
		ID:             "txn-1",
		WalletID:       "wallet-1",
		Type:           repository.NovaTransactionGrant,
		AmountCents:    500,
		Reference:      "welcome bonus",
		IdempotencyKey: "grant-abc",
		BalanceAfter:   500,
	}
	mockNovaRepo.On("Grant", "wallet-1", int64(500), "welcome bonus", "grant-abc").Return(txn, false, nil)

	h := newTestNovaHandler(t, &mockDB{
		wallet:   mockWalletRepo,
		nova:     mockNovaRepo,
		activity: mockActivityRepo,
	})

	req := novaRequest(t, map[string]any{
		"amount_cents":    500,
		"reference":       "welcome bonus",
		"idempotency_key": "grant-abc",
	})
	rr := httptest.NewRecorder()

	h.HandleGrantNova(rr, req)

	require.Equal(t, http.StatusCreated, rr.Code)

	var response map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &response))

	data, ok := response["data"].(map[string]any)
	require.True(t, ok)
	require.Equal(t, "txn-1", data["id"])
	require.Equal(t, false, data["replayed"])
	require.Equal(t, float64(500), data["balance_after"])
}

func TestHandleGrantNova_ReplayReturnsOriginalTransaction(t *testing.T) {
	mockWalletRepo := new(MockWalletRepo)
	mockNovaRepo := new(MockNovaRepo)
	mockActivityRepo := new(MockActivityRepo)

	wallet := &models.Wallet{ID: "wallet-1", DriverID: "driver-1", BalanceCents: 500}
	mockWalletRepo.On("GetByDriverId", "driver-1").Return(wallet, true, nil)
	mockActivityRepo.On("Insert", mock.Anything).Return(&models.ActivityLog{}, nil)

	original := &models.NovaTransaction{
		ID:             "txn-1",
		WalletID:       "wallet-1",
		Type:           repository.NovaTransactionGrant,
		AmountCents:    500,
		IdempotencyKey: "grant-abc",
		BalanceAfter:   500,
	}
	mockNovaRepo.On("Grant", "wallet-1", int64(500), "welcome bonus", "grant-abc").Return(original, true, nil)

	h := newTestNovaHandler(t, &mockDB{
		wallet:   mockWalletRepo,
		nova:     mockNovaRepo,
		activity: mockActivityRepo,
	})

	req := novaRequest(t, map[string]any{
		"amount_cents":    500,
		"reference":       "welcome bonus",
		"idempotency_key": "grant-abc",
	})
	rr := httptest.NewRecorder()

	h.HandleGrantNova(rr, req)

	// a replay is not a new resource
	require.Equal(t, http.StatusOK, rr.Code)

	var response map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &response))

	data, ok := response["data"].(map[string]any)
	require.True(t, ok)
	require.Equal(t, "txn-1", data["id"])
	require.Equal(t, true, data["replayed"])
}

func TestHandleRedeemNova_InsufficientBalance(t *testing.T) {
	mockWalletRepo := new(MockWalletRepo)
	mockNovaRepo := new(MockNovaRepo)

	wallet := &models.Wallet{ID: "wallet-1", DriverID: "driver-1", BalanceCents: 100}
	mockWalletRepo.On("GetByDriverId", "driver-1").Return(wallet, true, nil)
	mockNovaRepo.On("Redeem", "wallet-1", int64(500), "perk redemption", "redeem-abc").
		Return(nil, false, repository.ErrInsufficientBalance)

	h := newTestNovaHandler(t, &mockDB{
		wallet: mockWalletRepo,
		nova:   mockNovaRepo,
	})

	req := novaRequest(t, map[string]any{
		"amount_cents":    500,
		"reference":       "perk redemption",
		"idempotency_key": "redeem-abc",
	})
	rr := httptest.NewRecorder()

	h.HandleRedeemNova(rr, req)

	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Contains(t, rr.Body.String(), "nova balance")
}

func TestHandleGrantNova_MissingIdempotencyKey(t *testing.T) {
	h := newTestNovaHandler(t, &mockDB{})

	req := novaRequest(t, map[string]any{
		"amount_cents": 500,
		"reference":    "welcome bonus",
	})
	rr := httptest.NewRecorder()

	h.HandleGrantNova(rr, req)

	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	require.Contains(t, rr.Body.String(), "Idempotency key is required")
}
