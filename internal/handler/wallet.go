package handler

import (
	"net/http"

	"github.com/jamesdouglasskirk96/Nerava-sub005/internal/context"
	"github.com/jamesdouglasskirk96/Nerava-sub005/internal/errHandler"
	"github.com/jamesdouglasskirk96/Nerava-sub005/internal/helper"
	"github.com/jamesdouglasskirk96/Nerava-sub005/internal/models"
	"github.com/jamesdouglasskirk96/Nerava-sub005/internal/repository"
	"github.com/jamesdouglasskirk96/Nerava-sub005/internal/response"
)

type walletHandler struct {
	db         repository.Database
	errHandler *errHandler.ErrorRepository
	helper     *helper.HelperRepository
}

func NewWalletHandler(db repository.Database, errHandler *errHandler.ErrorRepository, helper *helper.HelperRepository) *walletHandler {
	return &walletHandler{
		db:         db,
		errHandler: errHandler,
		helper:     helper,
	}
}

func (h *walletHandler) HandleMyWallet(w http.ResponseWriter, r *http.Request) {
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

	data := map[string]any{
		"id":            wallet.ID,
		"balance_cents": wallet.BalanceCents,
		"status":        wallet.Status,
		"created_at":    wallet.CreatedAt,
	}

	err = response.JSONOkResponse(w, data, "Wallet fetched successfully", nil)
	if err != nil {
		h.errHandler.ServerError(w, r, err)
	}
}

func (h *walletHandler) HandleMyTransactions(w http.ResponseWriter, r *http.Request) {
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

	filters := retrieveUrlQueryValues(r)
	transactions, err := h.db.Nova().ListByWallet(wallet.ID, filters.Limit, filters.Offset)
	if err != nil {
		h.errHandler.ServerError(w, r, err)
		return
	}

	views := make([]map[string]any, 0, len(transactions))
	for i := range transactions {
		views = append(views, transactionView(&transactions[i]))
	}

	err = response.JSONOkResponse(w, views, "Transactions fetched successfully", nil)
	if err != nil {
		h.errHandler.ServerError(w, r, err)
	}
}

// HandleReconcileWallet recomputes a wallet's balance from its ledger and
// reports any drift against the stored balance. The stored balance is never
// mutated here; a mismatch is something for an operator to look at.
func (h *walletHandler) HandleReconcileWallet(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	wallet, found, err := h.db.Wallet().GetOne(id)
	if err != nil {
		h.errHandler.ServerError(w, r, err)
		return
	}
	if !found {
		h.errHandler.NotFound(w, r)
		return
	}

	ledgerSum, err := h.db.Nova().LedgerSum(wallet.ID)
	if err != nil {
		h.errHandler.ServerError(w, r, err)
		return
	}

	data := map[string]any{
		"wallet_id":        wallet.ID,
		"balance_cents":    wallet.BalanceCents,
		"ledger_sum_cents": ledgerSum,
		"drift_cents":      wallet.BalanceCents - ledgerSum,
		"balanced":         wallet.BalanceCents == ledgerSum,
	}

	err = response.JSONOkResponse(w, data, "Reconciliation complete", nil)
	if err != nil {
		h.errHandler.ServerError(w, r, err)
	}
}

// HandleHoldWallet puts a wallet on hold, blocking grants and redemptions
// until an operator releases it. Reconciliation drift usually ends up here.
func (h *walletHandler) HandleHoldWallet(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	wallet, found, err := h.db.Wallet().GetOne(id)
	if err != nil {
		h.errHandler.ServerError(w, r, err)
		return
	}
	if !found {
		h.errHandler.NotFound(w, r)
		return
	}

	if wallet.Status != repository.WalletOnHoldStatus {
		if err := h.db.Wallet().Lock(wallet.ID); err != nil {
			h.errHandler.ServerError(w, r, err)
			return
		}

		h.helper.BackgroundTask(r, func() error {
			_, err := h.db.Activity().Insert(&models.ActivityLog{
				DriverID:    wallet.DriverID,
				Entity:      repository.ActivityLogWalletEntity,
				EntityId:    wallet.ID,
				Description: "Wallet placed on hold",
			})
			return err
		})
	}

	data := map[string]any{
		"id":     wallet.ID,
		"status": repository.WalletOnHoldStatus,
	}

	err = response.JSONOkResponse(w, data, "Wallet placed on hold", nil)
	if err != nil {
		h.errHandler.ServerError(w, r, err)
	}
}

func transactionView(t *models.NovaTransaction) map[string]any {
	return map[string]any{
		"id":              t.ID,
		"type":            t.Type,
		"amount_cents":    t.AmountCents,
		"reference":       t.Reference,
		"idempotency_key": t.IdempotencyKey,
		"balance_after":   t.BalanceAfter,
		"created_at":      t.CreatedAt,
	}
}
