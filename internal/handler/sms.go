package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/jamesdouglasskirk96/Nerava-sub005/internal/errHandler"
	"github.com/jamesdouglasskirk96/Nerava-sub005/internal/geo"
	"github.com/jamesdouglasskirk96/Nerava-sub005/internal/helper"
	"github.com/jamesdouglasskirk96/Nerava-sub005/internal/models"
	"github.com/jamesdouglasskirk96/Nerava-sub005/internal/repository"
	"github.com/jamesdouglasskirk96/Nerava-sub005/internal/stream"
)

// defaultMinDwellSeconds applies when a session has no perk attached and so
// no merchant-set dwell bar.
const defaultMinDwellSeconds = 300

var rgxReplyCode = regexp.MustCompile(`\b[A-F0-9]{6}\b`)

type smsHandler struct {
	db         repository.Database
	errHandler *errHandler.ErrorRepository
	helper     *helper.HelperRepository
	kafka      *stream.KafkaStream
}

func NewSmsHandler(db repository.Database, errHandler *errHandler.ErrorRepository, helper *helper.HelperRepository, kafka *stream.KafkaStream) *smsHandler {
	return &smsHandler{
		db:         db,
		errHandler: errHandler,
		helper:     helper,
		kafka:      kafka,
	}
}

// HandleInboundSms is the Twilio webhook for merchant confirmations. The
// merchant texts back the reply code from the notification; a valid code
// completes the session. Twilio expects TwiML back, so every path replies
// with a short message rather than a JSON envelope.
func (h *smsHandler) HandleInboundSms(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.errHandler.BadRequest(w, r, err)
		return
	}

	body := strings.ToUpper(r.PostFormValue("Body"))
	code := rgxReplyCode.FindString(body)
	if code == "" {
		writeTwiml(w, "We couldn't find a confirmation code in your message. Reply with the 6-character code from the notification.")
		return
	}

	session, found, err := h.db.Arrival().FindByReplyCode(code)
	if err != nil {
		h.errHandler.ServerError(w, r, err)
		return
	}
	if !found {
		writeTwiml(w, fmt.Sprintf("We don't recognize code %s. Check the notification and try again.", code))
		return
	}

	if session.Status != repository.ArrivalMerchantNotifiedStatus {
		writeTwiml(w, "This visit is no longer awaiting confirmation.")
		return
	}

	if time.Now().After(session.ExpiresAt) {
		writeTwiml(w, "This visit has expired and can no longer be confirmed.")
		return
	}

	billable, err := h.sessionIsBillable(session)
	if err != nil {
		h.errHandler.ServerError(w, r, err)
		return
	}

	session, err = h.db.Arrival().Complete(session.ID, billable)
	if err != nil {
		if errors.Is(err, repository.ErrInvalidTransition) {
			writeTwiml(w, "This visit is no longer awaiting confirmation.")
			return
		}
		h.errHandler.ServerError(w, r, err)
		return
	}

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
	if jsonMessage, err := json.Marshal(event); err == nil {
		go h.kafka.ProduceMessage(arrivalCompletedTopic, string(jsonMessage))
	}

	h.helper.BackgroundTask(r, func() error {
		_, err := h.db.Activity().Insert(&models.ActivityLog{
			DriverID:    session.DriverID,
			Entity:      repository.ActivityLogArrivalEntity,
			EntityId:    session.ID,
			Description: "Visit confirmed by merchant",
		})
		return err
	})

	if billable {
		writeTwiml(w, "Visit confirmed. Thanks for welcoming a Nerava driver!")
	} else {
		writeTwiml(w, "Visit confirmed. This one didn't meet the reward bar, so you won't be charged.")
	}
}

// sessionIsBillable applies the perk's tier and dwell requirements. A session
// with no perk falls back to the defaults: tier A or B and the standard
// minimum dwell.
func (h *smsHandler) sessionIsBillable(session *models.ArrivalSession) (bool, error) {
	tier := session.ConfidenceTier.String
	minTier := geo.TierB
	minDwell := defaultMinDwellSeconds

	if session.PerkID.Valid {
		perk, found, err := h.db.Perk().GetOne(session.PerkID.String)
		if err != nil {
			return false, err
		}
		if found {
			minTier = perk.MinTier
			minDwell = perk.MinDwellSeconds
		}
	}

	return tierSatisfies(tier, minTier) && session.DwellSeconds >= minDwell, nil
}

func writeTwiml(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "text/xml")
	fmt.Fprintf(w, `<?xml version="1.0" encoding="UTF-8"?><Response><Message>%s</Message></Response>`, message)
}
