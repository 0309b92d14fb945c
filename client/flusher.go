package client

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/mzharov/sketchroom/models"
)

// LiveFlusher coalesces pointer samples into periodic live-stroke messages
// so the outgoing rate is bounded by the flush interval, not by the input
// sampling rate. The pen adds points as they arrive; the run loop flushes
// the pending delta on each tick, and the pen flushes explicitly at stroke
// end.
type LiveFlusher struct {
	emitter  Emitter
	interval time.Duration

	mu      sync.Mutex
	pending []models.Point
	color   string
	size    float64
}

func NewLiveFlusher(emitter Emitter, interval time.Duration) *LiveFlusher {
	return &LiveFlusher{
		emitter:  emitter,
		interval: interval,
	}
}

func (f *LiveFlusher) Run(ctx context.Context) {
	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			f.Flush()

		case <-ctx.Done():
			f.Flush()
			return
		}
	}
}

func (f *LiveFlusher) Add(points []models.Point, color string, size float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pending = append(f.pending, points...)
	f.color = color
	f.size = size
}

// Flush sends the pending delta, if any, and resets the buffer.
func (f *LiveFlusher) Flush() {
	f.mu.Lock()
	if len(f.pending) == 0 {
		f.mu.Unlock()
		return
	}
	points := f.pending
	color, size := f.color, f.size
	f.pending = nil
	f.mu.Unlock()

	if err := f.emitter.EmitLiveStroke(points, color, size); err != nil {
		log.Printf("Failed to send live stroke delta: %v", err)
	}
}
