package handler

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/jamesdouglasskirk96/Nerava-sub005/internal/config"
	"github.com/jamesdouglasskirk96/Nerava-sub005/internal/errHandler"
	"github.com/jamesdouglasskirk96/Nerava-sub005/internal/helper"
	"github.com/jamesdouglasskirk96/Nerava-sub005/internal/models"
	"github.com/jamesdouglasskirk96/Nerava-sub005/internal/repository"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newTestAuthHandler(t *testing.T, db *mockDB, mailer *MockMailer) *authHandler {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(bytes.NewBuffer(nil), nil))
	errH := errHandler.New("", "http://localhost", mailer, logger)

	var baseURL = "http://localhost"
	var wg sync.WaitGroup
	helperRepo := helper.New(&baseURL, &wg, errH)

	cfg := &config.Config{BaseURL: "http://localhost"}
	cfg.Jwt.SecretKey = "test_secret"

	return NewAuthHandler(db, errH, helperRepo, mailer, cfg)
}

func TestHandleAuthLogin_ValidCredentials(t *testing.T) {
	mockDriverRepo := new(MockDriverRepo)
	mockActivityRepo := new(MockActivityRepo)
	mockMailer := new(MockMailer)

	mockMailer.On("Send", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	testDriver := &models.Driver{
		ID:             "123",
		Email:          "test@example.com",
		HashedPassword: "$2a$10$oiIYEECpY/GRNs9Fi7Yh1.o4Dw2fTD26eu5z48KYgXkMuOiWlSvqG",
		Status:         repository.DriverAccountActiveStatus,
	}

	mockDriverRepo.On("GetByEmail", "test@example.com").Return(testDriver, true, nil)
	mockActivityRepo.On("Insert", mock.Anything).Return(&models.ActivityLog{}, nil)

	h := newTestAuthHandler(t, &mockDB{
		driver:   mockDriverRepo,
		activity: mockActivityRepo,
	}, mockMailer)

	requestBody, _ := json.Marshal(map[string]string{
		"email":    "test@example.com",
		"password": "correctpassword",
	})

	req, err := http.NewRequest("POST", "/v1/auth/login", bytes.NewBuffer(requestBody))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	rr := httptest.NewRecorder()

	h.HandleAuthLogin(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)

	var response map[string]any
	err = json.Unmarshal(rr.Body.Bytes(), &response)
	require.NoError(t, err)

	require.Contains(t, response, "data")

	data, ok := response["data"].(map[string]any)
	require.True(t, ok, "Expected response['data'] to be a map")

	require.Contains(t, data, "token")
	require.Contains(t, data, "expiry")
	require.NotEmpty(t, data["token"])
}

func TestHandleAuthLogin_WrongPassword(t *testing.T) {
	mockDriverRepo := new(MockDriverRepo)
	mockActivityRepo := new(MockActivityRepo)
	mockMailer := new(MockMailer)

	testDriver := &models.Driver{
		ID:             "123",
		Email:          "test@example.com",
		HashedPassword: "$2a$10$oiIYEECpY/GRNs9Fi7Yh1.o4Dw2fTD26eu5z48KYgXkMuOiWlSvqG",
		Status:         repository.DriverAccountActiveStatus,
	}

	mockDriverRepo.On("GetByEmail", "test@example.com").Return(testDriver, true, nil)
	mockActivityRepo.On("Insert", mock.Anything).Return(&models.ActivityLog{}, nil)

	h := newTestAuthHandler(t, &mockDB{
		driver:   mockDriverRepo,
		activity: mockActivityRepo,
	}, mockMailer)

	requestBody, _ := json.Marshal(map[string]string{
		"email":    "test@example.com",
		"password": "wrongpassword",
	})

	req, err := http.NewRequest("POST", "/v1/auth/login", bytes.NewBuffer(requestBody))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	rr := httptest.NewRecorder()

	h.HandleAuthLogin(rr, req)

	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	require.Contains(t, rr.Body.String(), "Email or password is incorrect")
}

func TestHandleAuthLogin_LockedAccount(t *testing.T) {
	mockDriverRepo := new(MockDriverRepo)
	mockMailer := new(MockMailer)

	testDriver := &models.Driver{
		ID:             "123",
		Email:          "test@example.com",
		HashedPassword: "$2a$10$oiIYEECpY/GRNs9Fi7Yh1.o4Dw2fTD26eu5z48KYgXkMuOiWlSvqG",
		Status:         repository.DriverAccountLockedStatus,
	}

	mockDriverRepo.On("GetByEmail", "test@example.com").Return(testDriver, true, nil)

	h := newTestAuthHandler(t, &mockDB{driver: mockDriverRepo}, mockMailer)

	requestBody, _ := json.Marshal(map[string]string{
		"email":    "test@example.com",
		"password": "correctpassword",
	})

	req, err := http.NewRequest("POST", "/v1/auth/login", bytes.NewBuffer(requestBody))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	rr := httptest.NewRecorder()

	h.HandleAuthLogin(rr, req)

	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	require.Contains(t, rr.Body.String(), "locked")
}
