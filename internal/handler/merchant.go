package handler

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"time"

	"github.com/jamesdouglasskirk96/Nerava-sub005/internal/errHandler"
	"github.com/jamesdouglasskirk96/Nerava-sub005/internal/file"
	"github.com/jamesdouglasskirk96/Nerava-sub005/internal/helper"
	"github.com/jamesdouglasskirk96/Nerava-sub005/internal/models"
	"github.com/jamesdouglasskirk96/Nerava-sub005/internal/repository"
	"github.com/jamesdouglasskirk96/Nerava-sub005/internal/request"
	"github.com/jamesdouglasskirk96/Nerava-sub005/internal/response"
	"github.com/jamesdouglasskirk96/Nerava-sub005/internal/validator"
)

type merchantHandler struct {
	db           repository.Database
	errHandler   *errHandler.ErrorRepository
	helper       *helper.HelperRepository
	fileUploader *file.FileUploader
}

func NewMerchantHandler(db repository.Database, errHandler *errHandler.ErrorRepository, helper *helper.HelperRepository, fileUploader *file.FileUploader) *merchantHandler {
	return &merchantHandler{
		db:           db,
		errHandler:   errHandler,
		helper:       helper,
		fileUploader: fileUploader,
	}
}

func (h *merchantHandler) HandleCreateMerchant(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Name        string              `json:"name"`
		Category    string              `json:"category"`
		PhoneNumber string              `json:"phone_number"`
		Email       string              `json:"email"`
		Lat         float64             `json:"lat"`
		Lng         float64             `json:"lng"`
		RadiusM     int                 `json:"radius_m"`
		PlaceID     string              `json:"place_id"`
		Validator   validator.Validator `json:"-"`
	}

	err := request.DecodeJSON(w, r, &input)
	if err != nil {
		h.errHandler.BadRequest(w, r, err)
		return
	}

	input.Validator.Check(validator.NotBlank(input.Name), "Name is required")
	input.Validator.Check(validator.NotBlank(input.Category), "Category is required")
	input.Validator.Check(validator.IsLatitude(input.Lat), "Latitude is out of range")
	input.Validator.Check(validator.IsLongitude(input.Lng), "Longitude is out of range")
	input.Validator.Check(input.RadiusM >= 0, "Radius must not be negative")
	if input.Email != "" {
		input.Validator.Check(validator.IsEmail(input.Email), "Must be a valid email address")
	}
	if input.PhoneNumber != "" {
		input.Validator.Check(validator.Matches(input.PhoneNumber, validator.RgxPhoneNumber), "Must be a valid phone number")
	}

	if input.Validator.HasErrors() {
		h.errHandler.FailedValidation(w, r, input.Validator.Errors)
		return
	}

	merchant := &models.Merchant{
		Name:     input.Name,
		Category: input.Category,
		Lat:      input.Lat,
		Lng:      input.Lng,
		RadiusM:  input.RadiusM,
	}
	if input.PhoneNumber != "" {
		merchant.PhoneNumber = sql.NullString{String: input.PhoneNumber, Valid: true}
	}
	if input.Email != "" {
		merchant.Email = sql.NullString{String: input.Email, Valid: true}
	}
	if input.PlaceID != "" {
		merchant.PlaceID = sql.NullString{String: input.PlaceID, Valid: true}
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	tx, err := h.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		h.errHandler.ServerError(w, r, err)
		return
	}
	defer tx.Rollback()

	merchantID, err := h.db.Merchant().Insert(merchant, tx)
	if err != nil {
		h.errHandler.ServerError(w, r, err)
		return
	}

	payload, err := json.Marshal(map[string]string{
		"merchant_id": merchantID,
		"name":        input.Name,
	})
	if err != nil {
		h.errHandler.ServerError(w, r, err)
		return
	}

	// The CRM event rides the merchant insert's transaction so neither can
	// land without the other.
	_, err = h.db.Outbox().Insert(repository.OutboxMerchantOnboardedTopic, payload, tx)
	if err != nil {
		h.errHandler.ServerError(w, r, err)
		return
	}

	if err = tx.Commit(); err != nil {
		h.errHandler.ServerError(w, r, err)
		return
	}

	data := map[string]any{
		"id": merchantID,
	}

	err = response.JSONCreatedResponse(w, data, "Merchant created successfully")
	if err != nil {
		h.errHandler.ServerError(w, r, err)
	}
}

func (h *merchantHandler) HandleGetMerchant(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	merchant, found, err := h.db.Merchant().GetOne(id)
	if err != nil {
		h.errHandler.ServerError(w, r, err)
		return
	}
	if !found {
		h.errHandler.NotFound(w, r)
		return
	}

	perks, err := h.db.Perk().ListByMerchant(id, true)
	if err != nil {
		h.errHandler.ServerError(w, r, err)
		return
	}

	data := map[string]any{
		"merchant": merchantView(merchant),
		"perks":    perkViews(perks),
	}

	err = response.JSONOkResponse(w, data, "Merchant fetched successfully", nil)
	if err != nil {
		h.errHandler.ServerError(w, r, err)
	}
}

func (h *merchantHandler) HandleListMerchants(w http.ResponseWriter, r *http.Request) {
	filters := retrieveUrlQueryValues(r)

	merchants, err := h.db.Merchant().List(filters.Limit, filters.Offset)
	if err != nil {
		h.errHandler.ServerError(w, r, err)
		return
	}

	views := make([]map[string]any, 0, len(merchants))
	for i := range merchants {
		views = append(views, merchantView(&merchants[i]))
	}

	err = response.JSONOkResponse(w, views, "Merchants fetched successfully", nil)
	if err != nil {
		h.errHandler.ServerError(w, r, err)
	}
}

func (h *merchantHandler) HandleUpdateMerchant(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	merchant, found, err := h.db.Merchant().GetOne(id)
	if err != nil {
		h.errHandler.ServerError(w, r, err)
		return
	}
	if !found {
		h.errHandler.NotFound(w, r)
		return
	}

	var input struct {
		Name        *string             `json:"name"`
		Category    *string             `json:"category"`
		PhoneNumber *string             `json:"phone_number"`
		Email       *string             `json:"email"`
		Lat         *float64            `json:"lat"`
		Lng         *float64            `json:"lng"`
		RadiusM     *int                `json:"radius_m"`
		Status      *string             `json:"status"`
		Validator   validator.Validator `json:"-"`
	}

	err = request.DecodeJSON(w, r, &input)
	if err != nil {
		h.errHandler.BadRequest(w, r, err)
		return
	}

	if input.Name != nil {
		input.Validator.Check(validator.NotBlank(*input.Name), "Name is required")
		merchant.Name = *input.Name
	}
	if input.Category != nil {
		merchant.Category = *input.Category
	}
	if input.PhoneNumber != nil {
		merchant.PhoneNumber = sql.NullString{String: *input.PhoneNumber, Valid: *input.PhoneNumber != ""}
	}
	if input.Email != nil {
		merchant.Email = sql.NullString{String: *input.Email, Valid: *input.Email != ""}
	}
	if input.Lat != nil {
		input.Validator.Check(validator.IsLatitude(*input.Lat), "Latitude is out of range")
		merchant.Lat = *input.Lat
	}
	if input.Lng != nil {
		input.Validator.Check(validator.IsLongitude(*input.Lng), "Longitude is out of range")
		merchant.Lng = *input.Lng
	}
	if input.RadiusM != nil {
		input.Validator.Check(*input.RadiusM >= 0, "Radius must not be negative")
		merchant.RadiusM = *input.RadiusM
	}
	if input.Status != nil {
		statuses := []string{repository.MerchantActiveStatus, repository.MerchantPausedStatus}
		input.Validator.Check(validator.In(*input.Status, statuses...), "Invalid status")
		merchant.Status = *input.Status
	}

	if input.Validator.HasErrors() {
		h.errHandler.FailedValidation(w, r, input.Validator.Errors)
		return
	}

	err = h.db.Merchant().Update(merchant)
	if err != nil {
		h.errHandler.ServerError(w, r, err)
		return
	}

	err = response.JSONOkResponse(w, merchantView(merchant), "Merchant updated successfully", nil)
	if err != nil {
		h.errHandler.ServerError(w, r, err)
	}
}

// Logos are uploaded as multipart form files and stored on Cloudinary; we
// only keep the resulting URL.
func (h *merchantHandler) HandleUploadMerchantLogo(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	_, found, err := h.db.Merchant().GetOne(id)
	if err != nil {
		h.errHandler.ServerError(w, r, err)
		return
	}
	if !found {
		h.errHandler.NotFound(w, r)
		return
	}

	// uploads are capped at 5MB
	err = r.ParseMultipartForm(5 << 20)
	if err != nil {
		h.errHandler.BadRequest(w, r, err)
		return
	}

	uploaded, _, err := r.FormFile("logo")
	if err != nil {
		h.errHandler.BadRequest(w, r, err)
		return
	}
	defer uploaded.Close()

	logoURL, err := h.fileUploader.UploadFile(r.Context(), uploaded, "logo-"+id)
	if err != nil {
		h.errHandler.ServerError(w, r, err)
		return
	}

	err = h.db.Merchant().UpdateLogo(id, logoURL)
	if err != nil {
		h.errHandler.ServerError(w, r, err)
		return
	}

	data := map[string]any{
		"logo_url": logoURL,
	}

	err = response.JSONOkResponse(w, data, "Logo uploaded successfully", nil)
	if err != nil {
		h.errHandler.ServerError(w, r, err)
	}
}

// HandleMerchantBillingEvents lists the qualified-visit fees a merchant has
// accrued, newest first.
func (h *merchantHandler) HandleMerchantBillingEvents(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	_, found, err := h.db.Merchant().GetOne(id)
	if err != nil {
		h.errHandler.ServerError(w, r, err)
		return
	}
	if !found {
		h.errHandler.NotFound(w, r)
		return
	}

	filters := retrieveUrlQueryValues(r)
	events, err := h.db.Billing().ListByMerchant(id, filters.Limit, filters.Offset)
	if err != nil {
		h.errHandler.ServerError(w, r, err)
		return
	}

	views := make([]map[string]any, 0, len(events))
	for _, e := range events {
		views = append(views, map[string]any{
			"id":                 e.ID,
			"arrival_session_id": e.ArrivalSessionID,
			"kind":               e.Kind,
			"amount_cents":       e.AmountCents,
			"created_at":         e.CreatedAt,
		})
	}

	err = response.JSONOkResponse(w, views, "Billing events fetched successfully", nil)
	if err != nil {
		h.errHandler.ServerError(w, r, err)
	}
}

func merchantView(m *models.Merchant) map[string]any {
	return map[string]any{
		"id":           m.ID,
		"name":         m.Name,
		"category":     m.Category,
		"phone_number": m.PhoneNumber.String,
		"email":        m.Email.String,
		"lat":          m.Lat,
		"lng":          m.Lng,
		"radius_m":     m.RadiusM,
		"logo_url":     m.LogoURL.String,
		"status":       m.Status,
		"created_at":   m.CreatedAt,
	}
}

func perkViews(perks []models.Perk) []map[string]any {
	views := make([]map[string]any, 0, len(perks))
	for _, p := range perks {
		views = append(views, map[string]any{
			"id":                 p.ID,
			"merchant_id":        p.MerchantID,
			"title":              p.Title,
			"description":        p.Description.String,
			"nova_reward_cents":  p.NovaRewardCents,
			"redeem_price_cents": p.RedeemPriceCents,
			"min_dwell_seconds":  p.MinDwellSeconds,
			"min_tier":           p.MinTier,
			"status":             p.Status,
		})
	}
	return views
}
