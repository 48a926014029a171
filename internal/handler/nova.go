package handler

import (
	"errors"
	"net/http"

	"github.com/jamesdouglasskirk96/Nerava-sub005/internal/context"
	"github.com/jamesdouglasskirk96/Nerava-sub005/internal/errHandler"
	"github.com/jamesdouglasskirk96/Nerava-sub005/internal/helper"
	"github.com/jamesdouglasskirk96/Nerava-sub005/internal/models"
	"github.com/jamesdouglasskirk96/Nerava-sub005/internal/repository"
	"github.com/jamesdouglasskirk96/Nerava-sub005/internal/request"
	"github.com/jamesdouglasskirk96/Nerava-sub005/internal/response"
	"github.com/jamesdouglasskirk96/Nerava-sub005/internal/validator"
)

type novaHandler struct {
	db         repository.Database
	errHandler *errHandler.ErrorRepository
	helper     *helper.HelperRepository
}

func NewNovaHandler(db repository.Database, errHandler *errHandler.ErrorRepository, helper *helper.HelperRepository) *novaHandler {
	return &novaHandler{
		db:         db,
		errHandler: errHandler,
		helper:     helper,
	}
}

type novaMovementInput struct {
	AmountCents    int64               `json:"amount_cents"`
	Reference      string              `json:"reference"`
	IdempotencyKey string              `json:"idempotency_key"`
	DriverID       string              `json:"driver_id"`
	Validator      validator.Validator `json:"-"`
}

func (in *novaMovementInput) validate() {
	in.Validator.Check(in.AmountCents > 0, "Amount must be greater than zero")
	in.Validator.Check(validator.NotBlank(in.Reference), "Reference is required")
	in.Validator.Check(validator.NotBlank(in.IdempotencyKey), "Idempotency key is required")
	in.Validator.Check(validator.MaxRunes(in.IdempotencyKey, 128), "Idempotency key is too long")
}

// HandleGrantNova credits a wallet. The route is restricted to operator
// accounts; driver_id in the body names the driver to credit and defaults
// to the caller. Retries with the same idempotency key return the original
// transaction instead of a new credit.
func (h *novaHandler) HandleGrantNova(w http.ResponseWriter, r *http.Request) {
	h.applyMovement(w, r, repository.NovaTransactionGrant)
}

// HandleRedeemNova debits the caller's wallet, typically to claim a perk.
func (h *novaHandler) HandleRedeemNova(w http.ResponseWriter, r *http.Request) {
	h.applyMovement(w, r, repository.NovaTransactionRedeem)
}

// HandleGetMovement looks up an earlier movement by its idempotency key so a
// client that lost a response can learn the outcome before retrying.
func (h *novaHandler) HandleGetMovement(w http.ResponseWriter, r *http.Request) {
	driver := context.ContextGetAuthenticatedDriver(r)

	wallet, found, err := h.db.Wallet().GetByDriverId(driver.ID)
	if err != nil {
		h.errHandler.ServerError(w, r, err)
		return
	}
	if !found {
		h.errHandler.NotFound(w, r)
		return
	}

	txn, found, err := h.db.Nova().FindByIdempotencyKey(wallet.ID, r.PathValue("key"))
	if err != nil {
		h.errHandler.ServerError(w, r, err)
		return
	}
	if !found {
		h.errHandler.NotFound(w, r)
		return
	}

	err = response.JSONOkResponse(w, transactionView(txn), "Transaction fetched successfully", nil)
	if err != nil {
		h.errHandler.ServerError(w, r, err)
	}
}

func (h *novaHandler) applyMovement(w http.ResponseWriter, r *http.Request, movement string) {
	driver := context.ContextGetAuthenticatedDriver(r)

	var input novaMovementInput
	err := request.DecodeJSON(w, r, &input)
	if err != nil {
		h.errHandler.BadRequest(w, r, err)
		return
	}

	input.validate()
	if input.Validator.HasErrors() {
		h.errHandler.FailedValidation(w, r, input.Validator.Errors)
		return
	}

	// Redemptions always act on the caller's own wallet; grants may name
	// another driver.
	targetDriverID := driver.ID
	if movement == repository.NovaTransactionGrant && input.DriverID != "" {
		targetDriverID = input.DriverID
	}

	wallet, found, err := h.db.Wallet().GetByDriverId(targetDriverID)
	if err != nil {
		h.errHandler.ServerError(w, r, err)
		return
	}
	if !found {
		h.errHandler.NotFound(w, r)
		return
	}

	var (
		txn      *models.NovaTransaction
		replayed bool
	)

	switch movement {
	case repository.NovaTransactionGrant:
		txn, replayed, err = h.db.Nova().Grant(wallet.ID, input.AmountCents, input.Reference, input.IdempotencyKey)
	default:
		txn, replayed, err = h.db.Nova().Redeem(wallet.ID, input.AmountCents, input.Reference, input.IdempotencyKey)
	}

	if err != nil {
		switch {
		case errors.Is(err, repository.ErrInsufficientBalance):
			h.errHandler.BadRequest(w, r, err)
		case errors.Is(err, repository.ErrWalletOnHold):
			h.errHandler.BadRequest(w, r, ErrAccountNotActive)
		default:
			h.errHandler.ServerError(w, r, err)
		}
		return
	}

	h.helper.BackgroundTask(r, func() error {
		_, err := h.db.Activity().Insert(&models.ActivityLog{
			DriverID:    driver.ID,
			Entity:      repository.ActivityLogWalletEntity,
			EntityId:    wallet.ID,
			Description: "Nova " + movement + ": " + input.Reference,
		})
		return err
	})

	data := transactionView(txn)
	data["replayed"] = replayed

	if replayed {
		err = response.JSONOkResponse(w, data, "Transaction already processed", nil)
	} else {
		err = response.JSONCreatedResponse(w, data, "Transaction recorded")
	}
	if err != nil {
		h.errHandler.ServerError(w, r, err)
	}
}
