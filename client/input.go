package client

import (
	"log"
	"sync"

	"github.com/mzharov/sketchroom/models"
	"golang.org/x/time/rate"
)

// Emitter is the outgoing half of the transport as the pen sees it.
type Emitter interface {
	EmitCursor(pos models.Point) error
	EmitLiveStroke(points []models.Point, color string, size float64) error
	EmitDraw(points []models.Point, color string, size float64, tool models.Tool) error
}

const (
	// Cursor broadcasts are advisory; cap their rate independently of the
	// pointer sampling rate.
	cursorUpdatesPerSecond = 30
	cursorBurst            = 5
)

// Pen captures local pointer input. Every sample lands in the local stroke
// buffer and the prediction layer synchronously; the network only sees the
// coalesced live deltas and, on release, one commit request with the full
// point sequence.
type Pen struct {
	rec     *Reconciler
	emitter Emitter
	flusher *LiveFlusher

	cursorLimiter *rate.Limiter

	mu     sync.Mutex
	active bool
	points []models.Point
	color  string
	size   float64
	tool   models.Tool
}

func NewPen(rec *Reconciler, emitter Emitter, flusher *LiveFlusher) *Pen {
	return &Pen{
		rec:           rec,
		emitter:       emitter,
		flusher:       flusher,
		cursorLimiter: rate.NewLimiter(rate.Limit(cursorUpdatesPerSecond), cursorBurst),
		color:         "#000000",
		size:          5,
		tool:          models.ToolBrush,
	}
}

func (p *Pen) SetColor(color string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.color = color
}

func (p *Pen) SetSize(size float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.size = size
}

func (p *Pen) SetTool(tool models.Tool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tool = tool
}

func (p *Pen) Down(pos models.Point) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.active = true
	p.points = []models.Point{pos}
	p.rec.PredictionStart(pos, p.color, p.size, p.tool)
	p.flusher.Add([]models.Point{pos}, p.color, p.size)
}

// Move records the sample under the lock but performs the cursor write
// outside it, so a stalled transport cannot stall pointer handling.
func (p *Pen) Move(pos models.Point) {
	p.mu.Lock()
	emitCursor := p.cursorLimiter.Allow()
	if p.active {
		p.points = append(p.points, pos)
		p.rec.PredictionAppend(pos)
		p.flusher.Add([]models.Point{pos}, p.color, p.size)
	}
	p.mu.Unlock()

	if emitCursor {
		if err := p.emitter.EmitCursor(pos); err != nil {
			log.Printf("Failed to send cursor update: %v", err)
		}
	}
}

// Up finalizes the current stroke: the remaining live delta is flushed and
// the full point sequence goes out as one commit request. The prediction
// stays visible until the server echoes the committed operation back.
func (p *Pen) Up() {
	p.mu.Lock()
	if !p.active {
		p.mu.Unlock()
		return
	}
	p.active = false
	points := p.points
	p.points = nil
	color, size, tool := p.color, p.size, p.tool
	p.mu.Unlock()

	p.flusher.Flush()
	if len(points) > 0 {
		if err := p.emitter.EmitDraw(points, color, size, tool); err != nil {
			log.Printf("Failed to send draw commit: %v", err)
		}
	}
}

// LeaveSurface treats the pointer leaving the drawing surface mid-stroke as
// a release: the stroke finalizes, it is not discarded.
func (p *Pen) LeaveSurface() {
	p.Up()
}
