package worker

import (
	"encoding/json"
	"log"
	"time"

	"github.com/jamesdouglasskirk96/Nerava-sub005/internal/models"
)

const (
	outboxPollInterval = 5 * time.Second
	outboxBatchSize    = 20

	// outboxMaxAttempts is how many deliveries we try before parking an
	// event as failed for an operator to look at.
	outboxMaxAttempts = 8
)

// OutboxDispatcher drains the outbox into HubSpot. It runs as a single
// goroutine per deployment; failures back off exponentially per event rather
// than stalling the whole queue.
func (wk *Worker) OutboxDispatcher() {
	ticker := time.NewTicker(outboxPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-wk.Ctx.Done():
			return
		case <-ticker.C:
			wk.dispatchOutboxBatch()
		}
	}
}

func (wk *Worker) dispatchOutboxBatch() {
	events, err := wk.DB.Outbox().ClaimPending(outboxBatchSize, time.Now())
	if err != nil {
		log.Printf("Error claiming outbox events: %v", err)
		return
	}

	for i := range events {
		wk.deliverOutboxEvent(&events[i])
	}
}

func (wk *Worker) deliverOutboxEvent(event *models.OutboxEvent) {
	var properties map[string]any
	if err := json.Unmarshal(event.Payload, &properties); err != nil {
		// Bad payloads can never succeed; park them immediately.
		if markErr := wk.DB.Outbox().MarkFailed(event.ID, err.Error(), time.Now(), true); markErr != nil {
			log.Printf("Error marking outbox event %s failed: %v", event.ID, markErr)
		}
		return
	}

	if err := wk.Crm.SendEvent(wk.Ctx, event.Topic, properties); err != nil {
		attempts := event.Attempts + 1
		final := attempts >= outboxMaxAttempts
		nextAttempt := time.Now().Add(outboxBackoff(attempts))

		if markErr := wk.DB.Outbox().MarkFailed(event.ID, err.Error(), nextAttempt, final); markErr != nil {
			log.Printf("Error marking outbox event %s failed: %v", event.ID, markErr)
		}
		if final {
			log.Printf("Outbox event %s exhausted %d attempts: %v", event.ID, attempts, err)
		}
		return
	}

	if err := wk.DB.Outbox().MarkDelivered(event.ID); err != nil {
		log.Printf("Error marking outbox event %s delivered: %v", event.ID, err)
	}
}

// outboxBackoff doubles the wait per attempt, starting at 30 seconds and
// capping at an hour.
func outboxBackoff(attempts int) time.Duration {
	backoff := 30 * time.Second
	for i := 1; i < attempts; i++ {
		backoff *= 2
		if backoff >= time.Hour {
			return time.Hour
		}
	}
	return backoff
}
