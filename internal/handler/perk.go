package handler

import (
	"database/sql"
	"net/http"

	"github.com/jamesdouglasskirk96/Nerava-sub005/internal/errHandler"
	"github.com/jamesdouglasskirk96/Nerava-sub005/internal/geo"
	"github.com/jamesdouglasskirk96/Nerava-sub005/internal/models"
	"github.com/jamesdouglasskirk96/Nerava-sub005/internal/repository"
	"github.com/jamesdouglasskirk96/Nerava-sub005/internal/request"
	"github.com/jamesdouglasskirk96/Nerava-sub005/internal/response"
	"github.com/jamesdouglasskirk96/Nerava-sub005/internal/validator"
)

type perkHandler struct {
	db         repository.Database
	errHandler *errHandler.ErrorRepository
}

func NewPerkHandler(db repository.Database, errHandler *errHandler.ErrorRepository) *perkHandler {
	return &perkHandler{
		db:         db,
		errHandler: errHandler,
	}
}

func (h *perkHandler) HandleCreatePerk(w http.ResponseWriter, r *http.Request) {
	merchantID := r.PathValue("id")

	_, found, err := h.db.Merchant().GetOne(merchantID)
	if err != nil {
		h.errHandler.ServerError(w, r, err)
		return
	}
	if !found {
		h.errHandler.NotFound(w, r)
		return
	}

	var input struct {
		Title            string              `json:"title"`
		Description      string              `json:"description"`
		NovaRewardCents  int64               `json:"nova_reward_cents"`
		RedeemPriceCents int64               `json:"redeem_price_cents"`
		MinDwellSeconds  int                 `json:"min_dwell_seconds"`
		MinTier          string              `json:"min_tier"`
		Validator        validator.Validator `json:"-"`
	}

	err = request.DecodeJSON(w, r, &input)
	if err != nil {
		h.errHandler.BadRequest(w, r, err)
		return
	}

	if input.MinTier == "" {
		input.MinTier = geo.TierB
	}
	if input.MinDwellSeconds == 0 {
		input.MinDwellSeconds = 300
	}

	input.Validator.Check(validator.NotBlank(input.Title), "Title is required")
	input.Validator.Check(validator.MaxRunes(input.Title, 120), "Title is too long")
	input.Validator.Check(input.NovaRewardCents >= 0, "Reward must not be negative")
	input.Validator.Check(input.RedeemPriceCents >= 0, "Redeem price must not be negative")
	input.Validator.Check(input.MinDwellSeconds >= 0, "Minimum dwell must not be negative")
	input.Validator.Check(validator.In(input.MinTier, geo.TierA, geo.TierB, geo.TierC), "Minimum tier must be one of A, B or C")

	if input.Validator.HasErrors() {
		h.errHandler.FailedValidation(w, r, input.Validator.Errors)
		return
	}

	perk := &models.Perk{
		MerchantID:       merchantID,
		Title:            input.Title,
		NovaRewardCents:  input.NovaRewardCents,
		RedeemPriceCents: input.RedeemPriceCents,
		MinDwellSeconds:  input.MinDwellSeconds,
		MinTier:          input.MinTier,
	}
	if input.Description != "" {
		perk.Description = sql.NullString{String: input.Description, Valid: true}
	}

	perkID, err := h.db.Perk().Insert(perk)
	if err != nil {
		h.errHandler.ServerError(w, r, err)
		return
	}

	data := map[string]any{
		"id": perkID,
	}

	err = response.JSONCreatedResponse(w, data, "Perk created successfully")
	if err != nil {
		h.errHandler.ServerError(w, r, err)
	}
}

func (h *perkHandler) HandleListMerchantPerks(w http.ResponseWriter, r *http.Request) {
	merchantID := r.PathValue("id")

	_, found, err := h.db.Merchant().GetOne(merchantID)
	if err != nil {
		h.errHandler.ServerError(w, r, err)
		return
	}
	if !found {
		h.errHandler.NotFound(w, r)
		return
	}

	activeOnly := r.URL.Query().Get("include_inactive") != "true"
	perks, err := h.db.Perk().ListByMerchant(merchantID, activeOnly)
	if err != nil {
		h.errHandler.ServerError(w, r, err)
		return
	}

	err = response.JSONOkResponse(w, perkViews(perks), "Perks fetched successfully", nil)
	if err != nil {
		h.errHandler.ServerError(w, r, err)
	}
}

func (h *perkHandler) HandleSetPerkStatus(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	_, found, err := h.db.Perk().GetOne(id)
	if err != nil {
		h.errHandler.ServerError(w, r, err)
		return
	}
	if !found {
		h.errHandler.NotFound(w, r)
		return
	}

	var input struct {
		Status    string              `json:"status"`
		Validator validator.Validator `json:"-"`
	}

	err = request.DecodeJSON(w, r, &input)
	if err != nil {
		h.errHandler.BadRequest(w, r, err)
		return
	}

	input.Validator.Check(validator.In(input.Status, repository.PerkActiveStatus, repository.PerkInactiveStatus), "Invalid status")

	if input.Validator.HasErrors() {
		h.errHandler.FailedValidation(w, r, input.Validator.Errors)
		return
	}

	err = h.db.Perk().SetStatus(id, input.Status)
	if err != nil {
		h.errHandler.ServerError(w, r, err)
		return
	}

	err = response.JSONOkResponse(w, nil, "Perk status updated", nil)
	if err != nil {
		h.errHandler.ServerError(w, r, err)
	}
}
