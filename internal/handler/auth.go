package handler

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"time"

	"github.com/jamesdouglasskirk96/Nerava-sub005/internal/config"
	icontext "github.com/jamesdouglasskirk96/Nerava-sub005/internal/context"
	"github.com/jamesdouglasskirk96/Nerava-sub005/internal/errHandler"
	"github.com/jamesdouglasskirk96/Nerava-sub005/internal/helper"
	"github.com/jamesdouglasskirk96/Nerava-sub005/internal/models"
	"github.com/jamesdouglasskirk96/Nerava-sub005/internal/repository"
	"github.com/jamesdouglasskirk96/Nerava-sub005/internal/request"
	"github.com/jamesdouglasskirk96/Nerava-sub005/internal/response"
	"github.com/jamesdouglasskirk96/Nerava-sub005/internal/smtp"
	"github.com/jamesdouglasskirk96/Nerava-sub005/internal/validator"

	"github.com/cradoe/gopass"
	"github.com/pascaldekloe/jwt"
)

const failedLoginDescription = "Failed login attempt"

type authHandler struct {
	db         repository.Database
	errHandler *errHandler.ErrorRepository
	helper     *helper.HelperRepository
	mailer     smtp.MailerInterface
	config     *config.Config
}

func NewAuthHandler(db repository.Database, errHandler *errHandler.ErrorRepository, helper *helper.HelperRepository, mailer smtp.MailerInterface, config *config.Config) *authHandler {
	return &authHandler{
		db:         db,
		errHandler: errHandler,
		helper:     helper,
		mailer:     mailer,
		config:     config,
	}
}

// Registration creates the driver record and their Nova wallet inside one
// transaction, queues the CRM signup event on the same transaction, and
// sends the welcome email in the background.
func (h *authHandler) HandleAuthRegister(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Email       string              `json:"email"`
		Password    string              `json:"password"`
		FirstName   string              `json:"first_name"`
		LastName    string              `json:"last_name"`
		PhoneNumber string              `json:"phone_number"`
		Validator   validator.Validator `json:"-"`
	}

	err := request.DecodeJSON(w, r, &input)
	if err != nil {
		h.errHandler.BadRequest(w, r, err)
		return
	}

	// we need to validate the password to make sure it meets the minimum requirements
	_, errs := gopass.Validate(input.Password)
	if errs != nil {
		h.errHandler.FailedValidation(w, r, errs)
		return
	}

	_, found, err := h.db.Driver().GetByEmail(input.Email)
	if err != nil {
		h.errHandler.ServerError(w, r, err)
		return
	}

	input.Validator.Check(validator.NotBlank(input.Email), "Email is required")
	input.Validator.Check(validator.IsEmail(input.Email), "Must be a valid email address")
	input.Validator.Check(!found, "Email is already in use")

	input.Validator.Check(validator.NotBlank(input.FirstName), "First name is required")
	input.Validator.Check(validator.NotBlank(input.LastName), "Last name is required")
	input.Validator.Check(validator.NotBlank(input.PhoneNumber), "Phone number is required")
	input.Validator.Check(validator.Matches(input.PhoneNumber, validator.RgxPhoneNumber), "Must be a valid phone number")

	if input.Validator.HasErrors() {
		h.errHandler.FailedValidation(w, r, input.Validator.Errors)
		return
	}

	phoneExists, err := h.db.Driver().CheckIfPhoneNumberExist(input.PhoneNumber)
	if err != nil {
		h.errHandler.ServerError(w, r, err)
		return
	}
	if phoneExists {
		input.Validator.AddError("Phone number is already in use")
		h.errHandler.FailedValidation(w, r, input.Validator.Errors)
		return
	}

	hashedPassword, err := gopass.Hash(input.Password)
	if err != nil {
		h.errHandler.ServerError(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	tx, err := h.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		h.errHandler.ServerError(w, r, err)
		return
	}
	defer tx.Rollback()

	driver := &models.Driver{
		FirstName:      input.FirstName,
		LastName:       input.LastName,
		PhoneNumber:    input.PhoneNumber,
		Email:          input.Email,
		HashedPassword: hashedPassword,
	}

	driverID, err := h.db.Driver().Insert(driver, tx)
	if err != nil {
		h.errHandler.ServerError(w, r, err)
		return
	}

	_, err = h.db.Wallet().Insert(&models.Wallet{DriverID: driverID}, tx)
	if err != nil {
		h.errHandler.ServerError(w, r, err)
		return
	}

	payload, err := json.Marshal(map[string]string{
		"driver_id": driverID,
		"email":     input.Email,
	})
	if err != nil {
		h.errHandler.ServerError(w, r, err)
		return
	}

	_, err = h.db.Outbox().Insert(repository.OutboxDriverSignedUpTopic, payload, tx)
	if err != nil {
		h.errHandler.ServerError(w, r, err)
		return
	}

	if err = tx.Commit(); err != nil {
		h.errHandler.ServerError(w, r, err)
		return
	}

	activationToken, err := h.signToken(driverID, 72*time.Hour)
	if err != nil {
		h.errHandler.ServerError(w, r, err)
		return
	}

	h.helper.BackgroundTask(r, func() error {
		data := h.helper.NewEmailData()
		data["FirstName"] = input.FirstName
		data["ActivationLink"] = h.config.BaseURL + "/v1/auth/verify?token=" + activationToken

		return h.mailer.Send(input.Email, data, "welcome.tmpl")
	})

	h.helper.BackgroundTask(r, func() error {
		_, err := h.db.Activity().Insert(&models.ActivityLog{
			DriverID:    driverID,
			Entity:      repository.ActivityLogDriverEntity,
			EntityId:    driverID,
			Description: "Account created",
		})
		return err
	})

	message := "Account created successfully"
	data := map[string]any{
		"id": driverID,
	}

	err = response.JSONCreatedResponse(w, data, message)
	if err != nil {
		h.errHandler.ServerError(w, r, err)
	}
}

func (h *authHandler) HandleAuthLogin(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Email     string              `json:"email"`
		Password  string              `json:"password"`
		Validator validator.Validator `json:"-"`
	}

	err := request.DecodeJSON(w, r, &input)
	if err != nil {
		h.errHandler.BadRequest(w, r, err)
		return
	}

	input.Validator.Check(validator.NotBlank(input.Email), "Email is required")
	input.Validator.Check(validator.NotBlank(input.Password), "Password is required")

	if input.Validator.HasErrors() {
		h.errHandler.FailedValidation(w, r, input.Validator.Errors)
		return
	}

	driver, found, err := h.db.Driver().GetByEmail(input.Email)
	if err != nil {
		h.errHandler.ServerError(w, r, err)
		return
	}

	if !found {
		input.Validator.AddError("Email or password is incorrect")
		h.errHandler.FailedValidation(w, r, input.Validator.Errors)
		return
	}

	if driver.Status == repository.DriverAccountLockedStatus {
		input.Validator.AddError("Your account has been locked, contact support")
		h.errHandler.FailedValidation(w, r, input.Validator.Errors)
		return
	}

	passwordMatches, err := gopass.ComparePasswordAndHash(input.Password, driver.HashedPassword)
	if err != nil {
		h.errHandler.ServerError(w, r, err)
		return
	}

	if !passwordMatches {
		// Record the failure. Three consecutive failures lock the account.
		_, err := h.db.Activity().Insert(&models.ActivityLog{
			DriverID:    driver.ID,
			Entity:      repository.ActivityLogDriverEntity,
			EntityId:    driver.ID,
			Description: failedLoginDescription,
		})
		if err != nil {
			h.errHandler.ServerError(w, r, err)
			return
		}

		if h.db.Activity().CountConsecutiveFailedLoginAttempts(driver.ID, failedLoginDescription) >= 3 {
			if err := h.db.Driver().Lock(driver.ID); err != nil {
				h.errHandler.ServerError(w, r, err)
				return
			}

			input.Validator.AddError("Your account has been locked, contact support")
			h.errHandler.FailedValidation(w, r, input.Validator.Errors)
			return
		}

		input.Validator.AddError("Email or password is incorrect")
		h.errHandler.FailedValidation(w, r, input.Validator.Errors)
		return
	}

	expiry := time.Now().Add(24 * time.Hour)

	token, err := h.signToken(driver.ID, 24*time.Hour)
	if err != nil {
		h.errHandler.ServerError(w, r, err)
		return
	}

	h.helper.BackgroundTask(r, func() error {
		_, err := h.db.Activity().Insert(&models.ActivityLog{
			DriverID:    driver.ID,
			Entity:      repository.ActivityLogDriverEntity,
			EntityId:    driver.ID,
			Description: "Successful login",
		})
		return err
	})

	message := "Login successful"
	data := map[string]any{
		"token":  token,
		"expiry": expiry,
	}

	err = response.JSONOkResponse(w, data, message, nil)
	if err != nil {
		h.errHandler.ServerError(w, r, err)
	}
}

// HandleVerifyAccount activates a pending account from the link in the
// welcome email.
func (h *authHandler) HandleVerifyAccount(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		h.errHandler.BadRequest(w, r, ErrInvalidToken)
		return
	}

	claims, err := jwt.HMACCheck([]byte(token), []byte(h.config.Jwt.SecretKey))
	if err != nil || !claims.Valid(time.Now()) {
		h.errHandler.BadRequest(w, r, ErrInvalidToken)
		return
	}

	driver, found, err := h.db.Driver().GetOne(claims.Subject)
	if err != nil {
		h.errHandler.ServerError(w, r, err)
		return
	}
	if !found {
		h.errHandler.NotFound(w, r)
		return
	}

	if driver.Status == repository.DriverAccountPendingStatus {
		if err := h.db.Driver().Verify(driver.ID, nil); err != nil {
			h.errHandler.ServerError(w, r, err)
			return
		}

		h.helper.BackgroundTask(r, func() error {
			_, err := h.db.Activity().Insert(&models.ActivityLog{
				DriverID:    driver.ID,
				Entity:      repository.ActivityLogDriverEntity,
				EntityId:    driver.ID,
				Description: "Account verified",
			})
			return err
		})
	}

	err = response.JSONOkResponse(w, nil, "Account verified successfully", nil)
	if err != nil {
		h.errHandler.ServerError(w, r, err)
	}
}

func (h *authHandler) HandleChangePassword(w http.ResponseWriter, r *http.Request) {
	driver := icontext.ContextGetAuthenticatedDriver(r)

	var input struct {
		CurrentPassword string              `json:"current_password"`
		NewPassword     string              `json:"new_password"`
		Validator       validator.Validator `json:"-"`
	}

	err := request.DecodeJSON(w, r, &input)
	if err != nil {
		h.errHandler.BadRequest(w, r, err)
		return
	}

	_, errs := gopass.Validate(input.NewPassword)
	if errs != nil {
		h.errHandler.FailedValidation(w, r, errs)
		return
	}

	matches, err := gopass.ComparePasswordAndHash(input.CurrentPassword, driver.HashedPassword)
	if err != nil {
		h.errHandler.ServerError(w, r, err)
		return
	}
	if !matches {
		input.Validator.AddError("Current password is incorrect")
		h.errHandler.FailedValidation(w, r, input.Validator.Errors)
		return
	}

	hashedPassword, err := gopass.Hash(input.NewPassword)
	if err != nil {
		h.errHandler.ServerError(w, r, err)
		return
	}

	if err := h.db.Driver().UpdatePassword(driver.ID, hashedPassword); err != nil {
		h.errHandler.ServerError(w, r, err)
		return
	}

	h.helper.BackgroundTask(r, func() error {
		_, err := h.db.Activity().Insert(&models.ActivityLog{
			DriverID:    driver.ID,
			Entity:      repository.ActivityLogDriverEntity,
			EntityId:    driver.ID,
			Description: "Password changed",
		})
		return err
	})

	err = response.JSONOkResponse(w, nil, "Password changed successfully", nil)
	if err != nil {
		h.errHandler.ServerError(w, r, err)
	}
}

func (h *authHandler) signToken(subject string, ttl time.Duration) (string, error) {
	var claims jwt.Claims
	claims.Subject = subject

	claims.Issued = jwt.NewNumericTime(time.Now())
	claims.NotBefore = jwt.NewNumericTime(time.Now())
	claims.Expires = jwt.NewNumericTime(time.Now().Add(ttl))

	claims.Issuer = h.config.BaseURL
	claims.Audiences = []string{h.config.BaseURL}

	jwtBytes, err := claims.HMACSign(jwt.HS256, []byte(h.config.Jwt.SecretKey))
	if err != nil {
		return "", err
	}

	return string(jwtBytes), nil
}
