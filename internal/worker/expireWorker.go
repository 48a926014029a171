package worker

import (
	"log"
	"time"
)

const expireSweepInterval = time.Minute

// ExpireSessionsWorker sweeps arrival sessions past their deadline into the
// expired state so drivers can start a new one and merchants stop getting
// confirmable codes.
func (wk *Worker) ExpireSessionsWorker() {
	ticker := time.NewTicker(expireSweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-wk.Ctx.Done():
			return
		case <-ticker.C:
			expired, err := wk.DB.Arrival().ExpireStale(time.Now())
			if err != nil {
				log.Printf("Error expiring stale arrival sessions: %v", err)
				continue
			}
			if expired > 0 {
				log.Printf("Expired %d stale arrival sessions", expired)
			}
		}
	}
}
