package handler

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jamesdouglasskirk96/Nerava-sub005/internal/config"
	"github.com/jamesdouglasskirk96/Nerava-sub005/internal/context"
	"github.com/jamesdouglasskirk96/Nerava-sub005/internal/errHandler"
	"github.com/jamesdouglasskirk96/Nerava-sub005/internal/geo"
	"github.com/jamesdouglasskirk96/Nerava-sub005/internal/helper"
	"github.com/jamesdouglasskirk96/Nerava-sub005/internal/models"
	"github.com/jamesdouglasskirk96/Nerava-sub005/internal/repository"
	"github.com/jamesdouglasskirk96/Nerava-sub005/internal/request"
	"github.com/jamesdouglasskirk96/Nerava-sub005/internal/response"
	"github.com/jamesdouglasskirk96/Nerava-sub005/internal/smartcar"
	"github.com/jamesdouglasskirk96/Nerava-sub005/internal/stream"
	"github.com/jamesdouglasskirk96/Nerava-sub005/internal/validator"
)

const (
	// arrivalVerifiedTopic carries sessions that just passed the dual-zone
	// check; the notifier worker picks them up and texts the merchant.
	arrivalVerifiedTopic = "arrival.verified"

	// arrivalCompletedTopic carries confirmed sessions; the billing worker
	// derives the billing event and the Nova reward from them.
	arrivalCompletedTopic = "arrival.completed"
)

// ArrivalEvent is the message produced on both arrival topics. It carries
// everything the workers need so they don't have to re-read the session row.
type ArrivalEvent struct {
	SessionID      string `json:"session_id"`
	DriverID       string `json:"driver_id"`
	MerchantID     string `json:"merchant_id"`
	PerkID         string `json:"perk_id,omitempty"`
	ConfidenceTier string `json:"confidence_tier,omitempty"`
	ReplyCode      string `json:"reply_code"`
	DwellSeconds   int    `json:"dwell_seconds"`
	Billable       bool   `json:"billable"`
}

type arrivalHandler struct {
	db         repository.Database
	errHandler *errHandler.ErrorRepository
	helper     *helper.HelperRepository
	kafka      *stream.KafkaStream
	smartcar   *smartcar.Client
	zones      geo.Zones
	config     *config.Config
}

func NewArrivalHandler(db repository.Database, errHandler *errHandler.ErrorRepository, helper *helper.HelperRepository, kafka *stream.KafkaStream, smartcarClient *smartcar.Client, zones geo.Zones, config *config.Config) *arrivalHandler {
	return &arrivalHandler{
		db:         db,
		errHandler: errHandler,
		helper:     helper,
		kafka:      kafka,
		smartcar:   smartcarClient,
		zones:      zones,
		config:     config,
	}
}

// newReplyCode derives the short code merchants text back to confirm a
// visit. Six hex characters keeps it easy to type while leaving collisions
// to the unique index, which retries would surface.
func newReplyCode() string {
	id := uuid.New()
	return strings.ToUpper(strings.ReplaceAll(id.String(), "-", "")[:6])
}

func (h *arrivalHandler) HandleStartArrival(w http.ResponseWriter, r *http.Request) {
	driver := context.ContextGetAuthenticatedDriver(r)

	if driver.Status == repository.DriverAccountLockedStatus {
		h.errHandler.BadRequest(w, r, ErrAccountNotActive)
		return
	}

	var input struct {
		MerchantID string              `json:"merchant_id"`
		PerkID     string              `json:"perk_id"`
		ChargerID  string              `json:"charger_id"`
		IntentID   string              `json:"intent_id"`
		Validator  validator.Validator `json:"-"`
	}

	err := request.DecodeJSON(w, r, &input)
	if err != nil {
		h.errHandler.BadRequest(w, r, err)
		return
	}

	input.Validator.Check(validator.NotBlank(input.MerchantID), "Merchant is required")

	if input.Validator.HasErrors() {
		h.errHandler.FailedValidation(w, r, input.Validator.Errors)
		return
	}

	merchant, found, err := h.db.Merchant().GetOne(input.MerchantID)
	if err != nil {
		h.errHandler.ServerError(w, r, err)
		return
	}
	if !found {
		h.errHandler.NotFound(w, r)
		return
	}
	if merchant.Status != repository.MerchantActiveStatus {
		h.errHandler.BadRequest(w, r, ErrPerkNotRedeemable)
		return
	}

	if input.PerkID != "" {
		perk, found, err := h.db.Perk().GetOne(input.PerkID)
		if err != nil {
			h.errHandler.ServerError(w, r, err)
			return
		}
		if !found {
			h.errHandler.NotFound(w, r)
			return
		}
		if perk.MerchantID != merchant.ID || perk.Status != repository.PerkActiveStatus {
			h.errHandler.BadRequest(w, r, ErrPerkNotRedeemable)
			return
		}
	}

	if input.IntentID != "" {
		intent, found, err := h.db.Intent().GetOne(input.IntentID)
		if err != nil {
			h.errHandler.ServerError(w, r, err)
			return
		}
		if !found || intent.DriverID != driver.ID {
			h.errHandler.NotFound(w, r)
			return
		}
	}

	// One live session per driver. Finish or cancel before starting another.
	hasActive, err := h.db.Arrival().HasActive(driver.ID)
	if err != nil {
		h.errHandler.ServerError(w, r, err)
		return
	}
	if hasActive {
		h.errHandler.BadRequest(w, r, ErrActiveSessionExists)
		return
	}

	session := &models.ArrivalSession{
		DriverID:   driver.ID,
		MerchantID: merchant.ID,
		ReplyCode:  newReplyCode(),
		ExpiresAt:  time.Now().Add(h.config.Geofence.SessionTTL),
	}
	if input.ChargerID != "" {
		session.ChargerID = sql.NullString{String: input.ChargerID, Valid: true}
	}
	if input.PerkID != "" {
		session.PerkID = sql.NullString{String: input.PerkID, Valid: true}
	}
	if input.IntentID != "" {
		session.IntentID = sql.NullString{String: input.IntentID, Valid: true}
	}

	sessionID, err := h.db.Arrival().Insert(session)
	if err != nil {
		h.errHandler.ServerError(w, r, err)
		return
	}

	h.helper.BackgroundTask(r, func() error {
		_, err := h.db.Activity().Insert(&models.ActivityLog{
			DriverID:    driver.ID,
			Entity:      repository.ActivityLogArrivalEntity,
			EntityId:    sessionID,
			Description: "Arrival session started",
		})
		return err
	})

	data := map[string]any{
		"id":         sessionID,
		"status":     repository.ArrivalPendingStatus,
		"expires_at": session.ExpiresAt,
	}

	err = response.JSONCreatedResponse(w, data, "Arrival session started")
	if err != nil {
		h.errHandler.ServerError(w, r, err)
	}
}

// HandlePingArrival ingests a location fix for a session. A qualifying fix
// moves pending to arrived and notifies the merchant worker; once arrived,
// fixes inside the merchant zone accrue dwell time.
func (h *arrivalHandler) HandlePingArrival(w http.ResponseWriter, r *http.Request) {
	driver := context.ContextGetAuthenticatedDriver(r)

	session, found, err := h.db.Arrival().GetOne(r.PathValue("id"))
	if err != nil {
		h.errHandler.ServerError(w, r, err)
		return
	}
	if !found || session.DriverID != driver.ID {
		h.errHandler.NotFound(w, r)
		return
	}

	var input struct {
		Lat                 float64             `json:"lat"`
		Lng                 float64             `json:"lng"`
		SmartcarVehicleID   string              `json:"smartcar_vehicle_id"`
		SmartcarAccessToken string              `json:"smartcar_access_token"`
		Validator           validator.Validator `json:"-"`
	}

	err = request.DecodeJSON(w, r, &input)
	if err != nil {
		h.errHandler.BadRequest(w, r, err)
		return
	}

	input.Validator.Check(validator.IsLatitude(input.Lat), "Latitude is out of range")
	input.Validator.Check(validator.IsLongitude(input.Lng), "Longitude is out of range")

	if input.Validator.HasErrors() {
		h.errHandler.FailedValidation(w, r, input.Validator.Errors)
		return
	}

	now := time.Now()
	if now.After(session.ExpiresAt) {
		h.errHandler.BadRequest(w, r, ErrSessionExpired)
		return
	}

	switch session.Status {
	case repository.ArrivalPendingStatus, repository.ArrivalArrivedStatus, repository.ArrivalMerchantNotifiedStatus:
	default:
		h.errHandler.BadRequest(w, r, ErrSessionNotConfirmable)
		return
	}

	merchant, found, err := h.db.Merchant().GetOne(session.MerchantID)
	if err != nil {
		h.errHandler.ServerError(w, r, err)
		return
	}
	if !found {
		h.errHandler.ServerError(w, r, ErrMerchantNotFound)
		return
	}

	fix := geo.Point{Lat: input.Lat, Lng: input.Lng}
	merchantPoint := geo.Point{Lat: merchant.Lat, Lng: merchant.Lng}
	inMerchantZone := geo.WithinM(fix, merchantPoint, float64(merchant.RadiusM))
	if merchant.RadiusM <= 0 {
		inMerchantZone = geo.WithinM(fix, merchantPoint, h.zones.MerchantZoneM)
	}

	tier := session.ConfidenceTier.String

	if session.Status == repository.ArrivalPendingStatus {
		chargerPoint, haveCharger := h.sessionChargerPoint(session)

		chargingVerified := false
		if input.SmartcarVehicleID != "" && input.SmartcarAccessToken != "" {
			status, err := h.smartcar.ChargeStatus(r.Context(), input.SmartcarVehicleID, input.SmartcarAccessToken)
			if err != nil {
				h.errHandler.ReportServerError(r, err)
			} else if status.State == smartcar.ChargingStateCharging {
				chargingVerified = true
			}
		}

		// A plug-in report only upgrades the tier when the vehicle itself is
		// at this charger, not one across town. The position read is best
		// effort; if it fails the charge report stands on its own.
		if chargingVerified && haveCharger {
			location, err := h.smartcar.Location(r.Context(), input.SmartcarVehicleID, input.SmartcarAccessToken)
			if err != nil {
				h.errHandler.ReportServerError(r, err)
			} else {
				vehiclePoint := geo.Point{Lat: location.Latitude, Lng: location.Longitude}
				if !geo.WithinM(vehiclePoint, chargerPoint, h.zones.ChargerOuterM) {
					chargingVerified = false
				}
			}
		}

		classified := ""
		ok := false
		if haveCharger {
			classified, ok = h.zones.ClassifyTier(fix, chargerPoint, chargingVerified)
		} else if chargingVerified {
			// No charger on the session: telematics is the only way in.
			classified, ok = geo.TierA, true
		}

		if ok && h.zones.VerifiesArrival(classified, fix, merchantPoint, float64(merchant.RadiusM)) {
			session, err = h.db.Arrival().MarkArrived(session.ID, classified)
			if err != nil {
				// A racing ping may have won the transition; re-read and move on.
				if !errors.Is(err, repository.ErrInvalidTransition) {
					h.errHandler.ServerError(w, r, err)
					return
				}

				session, found, err = h.db.Arrival().GetOne(r.PathValue("id"))
				if err != nil || !found {
					h.errHandler.ServerError(w, r, err)
					return
				}
			} else {
				h.produceArrivalEvent(arrivalVerifiedTopic, session, false)
			}
			tier = session.ConfidenceTier.String

			h.helper.BackgroundTask(r, func() error {
				_, err := h.db.Activity().Insert(&models.ActivityLog{
					DriverID:    driver.ID,
					Entity:      repository.ActivityLogArrivalEntity,
					EntityId:    session.ID,
					Description: "Arrival verified at tier " + classified,
				})
				return err
			})
		}
	}

	// Dwell only accrues for verified sessions while the driver stays in
	// the merchant zone. Gaps longer than the ping timeout don't count.
	if session.Status != repository.ArrivalPendingStatus && inMerchantZone {
		delta := 0
		if session.LastPingAt.Valid {
			gap := now.Sub(session.LastPingAt.Time)
			if gap > h.config.Geofence.PingTimeout {
				gap = h.config.Geofence.PingTimeout
			}
			delta = int(gap.Seconds())
		}

		if err := h.db.Arrival().AccrueDwell(session.ID, delta, now); err != nil {
			h.errHandler.ServerError(w, r, err)
			return
		}
		session.DwellSeconds += delta
	}

	data := map[string]any{
		"id":               session.ID,
		"status":           session.Status,
		"confidence_tier":  tier,
		"dwell_seconds":    session.DwellSeconds,
		"in_merchant_zone": inMerchantZone,
		"expires_at":       session.ExpiresAt,
	}

	err = response.JSONOkResponse(w, data, "Ping recorded", nil)
	if err != nil {
		h.errHandler.ServerError(w, r, err)
	}
}

func (h *arrivalHandler) HandleCancelArrival(w http.ResponseWriter, r *http.Request) {
	driver := context.ContextGetAuthenticatedDriver(r)

	session, found, err := h.db.Arrival().GetOne(r.PathValue("id"))
	if err != nil {
		h.errHandler.ServerError(w, r, err)
		return
	}
	if !found || session.DriverID != driver.ID {
		h.errHandler.NotFound(w, r)
		return
	}

	session, err = h.db.Arrival().Cancel(session.ID)
	if err != nil {
		if errors.Is(err, repository.ErrInvalidTransition) {
			h.errHandler.BadRequest(w, r, err)
			return
		}
		h.errHandler.ServerError(w, r, err)
		return
	}

	err = response.JSONOkResponse(w, sessionView(session), "Arrival session canceled", nil)
	if err != nil {
		h.errHandler.ServerError(w, r, err)
	}
}

func (h *arrivalHandler) HandleGetArrival(w http.ResponseWriter, r *http.Request) {
	driver := context.ContextGetAuthenticatedDriver(r)

	session, found, err := h.db.Arrival().GetOne(r.PathValue("id"))
	if err != nil {
		h.errHandler.ServerError(w, r, err)
		return
	}
	if !found || session.DriverID != driver.ID {
		h.errHandler.NotFound(w, r)
		return
	}

	err = response.JSONOkResponse(w, sessionView(session), "Arrival session fetched", nil)
	if err != nil {
		h.errHandler.ServerError(w, r, err)
	}
}

func (h *arrivalHandler) sessionChargerPoint(session *models.ArrivalSession) (geo.Point, bool) {
	if !session.ChargerID.Valid {
		return geo.Point{}, false
	}

	charger, found, err := h.db.Charger().GetOne(session.ChargerID.String)
	if err != nil || !found {
		return geo.Point{}, false
	}

	return geo.Point{Lat: charger.Lat, Lng: charger.Lng}, true
}

func (h *arrivalHandler) produceArrivalEvent(topic string, session *models.ArrivalSession, billable bool) {
	event := ArrivalEvent{
		SessionID:      session.ID,
		DriverID:       session.DriverID,
		MerchantID:     session.MerchantID,
		PerkID:         session.PerkID.String,
		ConfidenceTier: session.ConfidenceTier.String,
		ReplyCode:      session.ReplyCode,
		DwellSeconds:   session.DwellSeconds,
		Billable:       billable,
	}

	jsonMessage, err := json.Marshal(event)
	if err != nil {
		return
	}

	go h.kafka.ProduceMessage(topic, string(jsonMessage))
}

func sessionView(s *models.ArrivalSession) map[string]any {
	return map[string]any{
		"id":              s.ID,
		"merchant_id":     s.MerchantID,
		"charger_id":      s.ChargerID.String,
		"perk_id":         s.PerkID.String,
		"status":          s.Status,
		"confidence_tier": s.ConfidenceTier.String,
		"dwell_seconds":   s.DwellSeconds,
		"expires_at":      s.ExpiresAt,
		"created_at":      s.CreatedAt,
	}
}
