// services/scheduler.go
package services

import (
	"log"
	"time"

	"github.com/go-co-op/gocron/v2"
)

// StartConnectionSweeper pings every live subscriber on an interval so dead
// connections get evicted instead of accumulating in the broadcast set.
func (h *LiveHub) StartConnectionSweeper(interval time.Duration) {
	sched, err := gocron.NewScheduler()
	if err != nil {
		log.Printf("❌ [LIVE] Failed to create sweeper scheduler: %v", err)
		return
	}
	sched.Start()

	_, err = sched.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			h.PingSweep()
		}),
	)
	if err != nil {
		log.Printf("❌ [LIVE] Failed to schedule connection sweep: %v", err)
		return
	}

	log.Printf("🧹 [LIVE] Connection sweeper running (every %s)", interval)
}
