package worker

import (
	"context"

	"github.com/jamesdouglasskirk96/Nerava-sub005/internal/config"
	"github.com/jamesdouglasskirk96/Nerava-sub005/internal/helper"
	"github.com/jamesdouglasskirk96/Nerava-sub005/internal/hubspot"
	"github.com/jamesdouglasskirk96/Nerava-sub005/internal/repository"
	"github.com/jamesdouglasskirk96/Nerava-sub005/internal/smtp"
	"github.com/jamesdouglasskirk96/Nerava-sub005/internal/stream"
	"github.com/jamesdouglasskirk96/Nerava-sub005/internal/twilio"
)

type Worker struct {
	KafkaStream *stream.KafkaStream
	DB          repository.Database
	Ctx         context.Context
	Helper      *helper.HelperRepository
	Mailer      smtp.MailerInterface
	Messenger   twilio.Messenger
	Crm         hubspot.Sender
	Config      *config.Config
}

const (
	// arrivalNotifyGroupID is used by workers that act when a driver's
	// arrival has been verified and the merchant needs to hear about it.
	arrivalNotifyGroupID = "arrival-notify-group"

	// arrivalBillingGroupID is used by workers that settle a confirmed
	// visit: billing event, Nova reward and the CRM trail.
	arrivalBillingGroupID = "arrival-billing-group"

	// Topics
	// ArrivalVerifiedTopic carries sessions that just passed the dual-zone
	// geofence check.
	ArrivalVerifiedTopic = "arrival.verified"

	// ArrivalCompletedTopic carries sessions the merchant has confirmed.
	ArrivalCompletedTopic = "arrival.completed"
)

// Our workers typically need access to the database and the kafka event
// stream; worker-specific dependencies are carried on the struct too.
func New(wk *Worker) *Worker {
	return &Worker{
		KafkaStream: wk.KafkaStream,
		DB:          wk.DB,
		Ctx:         wk.Ctx,
		Helper:      wk.Helper,
		Mailer:      wk.Mailer,
		Messenger:   wk.Messenger,
		Crm:         wk.Crm,
		Config:      wk.Config,
	}
}
