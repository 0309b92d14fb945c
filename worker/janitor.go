package worker

import (
	"context"
	"log"
	"time"

	"github.com/mzharov/sketchroom/room"
)

// Janitor periodically evicts rooms that have been empty past the grace
// period, so an abandoned room id does not hold its history in memory for
// the life of the process.
type Janitor struct {
	registry *room.Registry
	interval time.Duration
	grace    time.Duration
}

func NewJanitor(registry *room.Registry, interval time.Duration, grace time.Duration) *Janitor {
	return &Janitor{
		registry: registry,
		interval: interval,
		grace:    grace,
	}
}

func (j *Janitor) Run(shutdownCtx context.Context) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if n := j.registry.EvictIdle(j.grace); n > 0 {
				log.Printf("Janitor evicted %d idle room(s), %d remaining", n, j.registry.Len())
			}

		case <-shutdownCtx.Done():
			return
		}
	}
}
