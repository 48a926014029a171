package worker

import (
	"encoding/json"
	"log"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/jamesdouglasskirk96/Nerava-sub005/internal/handler"
	"github.com/jamesdouglasskirk96/Nerava-sub005/internal/models"
	"github.com/jamesdouglasskirk96/Nerava-sub005/internal/repository"
	"github.com/jamesdouglasskirk96/Nerava-sub005/internal/stream"
)

// BillingWorker settles confirmed visits: it derives the billing event for
// billable sessions, grants the perk's Nova reward to the driver and queues
// the CRM event. Every write here is idempotent, so replaying a message is
// harmless.
func (wk *Worker) BillingWorker() {
	consumer, err := wk.KafkaStream.CreateConsumer(&stream.StreamConsumer{
		GroupId: arrivalBillingGroupID,
		Topic:   ArrivalCompletedTopic,
	})

	if err != nil {
		log.Fatalf("Error creating consumer: %v", err)
	}
	for {
		event := consumer.Poll(100) // Poll every 100ms
		switch e := event.(type) {
		case *kafka.Message:
			log.Printf("Arrival completed message received on %s: %s\n", e.TopicPartition, string(e.Value))

			var arrival handler.ArrivalEvent
			json.Unmarshal(e.Value, &arrival)

			wk.settleVisit(&arrival)
		case kafka.Error:
			log.Printf("Error: %v\n", e)
		default:
			// Handle other events if needed
		}
	}
}

func (wk *Worker) settleVisit(arrival *handler.ArrivalEvent) bool {
	if arrival.Billable {
		event := &models.BillingEvent{
			ArrivalSessionID: arrival.SessionID,
			MerchantID:       arrival.MerchantID,
			Kind:             repository.BillingQualifiedVisitKind,
			AmountCents:      wk.Config.Geofence.QualifiedVisitFeeCents,
		}

		if _, _, err := wk.DB.Billing().Insert(event); err != nil {
			log.Printf("Error inserting billing event for session %s: %v", arrival.SessionID, err)
			return false
		}

		if !wk.grantReward(arrival) {
			return false
		}
	}

	payload, err := json.Marshal(map[string]any{
		"session_id":  arrival.SessionID,
		"driver_id":   arrival.DriverID,
		"merchant_id": arrival.MerchantID,
		"billable":    arrival.Billable,
	})
	if err != nil {
		log.Printf("Error encoding CRM payload for session %s: %v", arrival.SessionID, err)
		return false
	}

	if _, err := wk.DB.Outbox().Insert(repository.OutboxArrivalCompletedTopic, payload, nil); err != nil {
		log.Printf("Error queueing CRM event for session %s: %v", arrival.SessionID, err)
		return false
	}

	return true
}

// grantReward credits the perk's Nova reward. The idempotency key is derived
// from the session, so a redelivered message can't double-pay.
func (wk *Worker) grantReward(arrival *handler.ArrivalEvent) bool {
	if arrival.PerkID == "" {
		return true
	}

	perk, found, err := wk.DB.Perk().GetOne(arrival.PerkID)
	if err != nil || !found {
		log.Printf("Error loading perk %s for session %s: %v", arrival.PerkID, arrival.SessionID, err)
		return false
	}
	if perk.NovaRewardCents <= 0 {
		return true
	}

	wallet, found, err := wk.DB.Wallet().GetByDriverId(arrival.DriverID)
	if err != nil || !found {
		log.Printf("Error loading wallet for driver %s: %v", arrival.DriverID, err)
		return false
	}

	_, replayed, err := wk.DB.Nova().Grant(wallet.ID, perk.NovaRewardCents, "Perk reward: "+perk.Title, "arrival:"+arrival.SessionID)
	if err != nil {
		log.Printf("Error granting reward for session %s: %v", arrival.SessionID, err)
		return false
	}
	if replayed {
		log.Printf("Reward for session %s already granted, skipping", arrival.SessionID)
	}

	return true
}
