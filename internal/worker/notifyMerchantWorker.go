package worker

import (
	"encoding/json"
	"fmt"
	"log"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/jamesdouglasskirk96/Nerava-sub005/internal/handler"
	"github.com/jamesdouglasskirk96/Nerava-sub005/internal/models"
	"github.com/jamesdouglasskirk96/Nerava-sub005/internal/repository"
	"github.com/jamesdouglasskirk96/Nerava-sub005/internal/stream"
)

// NotifyMerchantWorker texts the merchant the reply code whenever an arrival
// is verified, then moves the session to merchant_notified. Confirmation
// happens when the merchant texts the code back.
func (wk *Worker) NotifyMerchantWorker() {
	consumer, err := wk.KafkaStream.CreateConsumer(&stream.StreamConsumer{
		GroupId: arrivalNotifyGroupID,
		Topic:   ArrivalVerifiedTopic,
	})

	if err != nil {
		log.Fatalf("Error creating consumer: %v", err)
	}
	for {
		event := consumer.Poll(100) // Poll every 100ms
		switch e := event.(type) {
		case *kafka.Message:
			log.Printf("Arrival verified message received on %s: %s\n", e.TopicPartition, string(e.Value))

			var arrival handler.ArrivalEvent
			json.Unmarshal(e.Value, &arrival)

			wk.notifyMerchant(&arrival)
		case kafka.Error:
			log.Printf("Error: %v\n", e)
		default:
			// Handle other events if needed
		}
	}
}

func (wk *Worker) notifyMerchant(arrival *handler.ArrivalEvent) bool {
	merchant, found, err := wk.DB.Merchant().GetOne(arrival.MerchantID)
	if err != nil || !found {
		log.Printf("Error loading merchant %s for arrival %s: %v", arrival.MerchantID, arrival.SessionID, err)
		return false
	}

	session, found, err := wk.DB.Arrival().GetOne(arrival.SessionID)
	if err != nil || !found {
		log.Printf("Error loading arrival session %s: %v", arrival.SessionID, err)
		return false
	}
	if session.Status != repository.ArrivalArrivedStatus {
		// Already notified, canceled or expired; nothing to send.
		return false
	}

	if merchant.PhoneNumber.Valid {
		body := fmt.Sprintf(
			"A Nerava driver just arrived at %s. Reply %s when you've served them to confirm the visit.",
			merchant.Name, arrival.ReplyCode,
		)

		if err := wk.Messenger.SendSMS(wk.Ctx, merchant.PhoneNumber.String, body); err != nil {
			log.Printf("Error sending arrival SMS for session %s: %v", arrival.SessionID, err)
			return false
		}
	}

	if merchant.Email.Valid {
		go func() {
			data := wk.Helper.NewEmailData()
			data["MerchantName"] = merchant.Name
			data["ReplyCode"] = arrival.ReplyCode
			data["ExpiresAt"] = session.ExpiresAt

			if err := wk.Mailer.Send(merchant.Email.String, data, "merchant-arrival-notification.tmpl"); err != nil {
				log.Printf("Error sending arrival email for session %s: %v", arrival.SessionID, err)
			}
		}()
	}

	if _, err := wk.DB.Arrival().MarkNotified(arrival.SessionID); err != nil {
		log.Printf("Error marking session %s notified: %v", arrival.SessionID, err)
		return false
	}

	// log operation
	go func() {
		_, err := wk.DB.Activity().Insert(&models.ActivityLog{
			DriverID:    arrival.DriverID,
			Entity:      repository.ActivityLogArrivalEntity,
			EntityId:    arrival.SessionID,
			Description: "Merchant notified of arrival",
		})
		if err != nil {
			log.Printf("Error logging merchant notification: %v", err)
		}
	}()

	return true
}
