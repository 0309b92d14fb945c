package client

import (
	"image"
	"image/png"
	"io"
	"sync"

	"github.com/fogleman/gg"
	"github.com/mzharov/sketchroom/models"
)

// Reconciler merges the three layers of canvas state into rendered frames:
// the committed history (cached as a raster, rebuilt only when dirty), the
// ephemeral live strokes and cursors of other sessions, and the local
// session's own optimistic prediction. Network events and render ticks may
// come from different goroutines; a mutex serializes them.
type Reconciler struct {
	mu sync.Mutex

	myId   string
	width  int
	height int

	history []models.Operation
	undone  map[string]struct{}

	userColors  map[string]string
	cursors     map[string]models.Point
	liveStrokes map[string]*models.LiveStroke

	prediction     *models.LiveStroke
	predictionTool models.Tool

	dirty bool
	cache *gg.Context
}

func NewReconciler(width int, height int) *Reconciler {
	return &Reconciler{
		width:       width,
		height:      height,
		undone:      make(map[string]struct{}),
		userColors:  make(map[string]string),
		cursors:     make(map[string]models.Point),
		liveStrokes: make(map[string]*models.LiveStroke),
		dirty:       true,
	}
}

func (r *Reconciler) MyId() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.myId
}

// ApplySnapshot replaces all committed state with the server's snapshot and
// rebuilds the undone set from the history itself.
func (r *Reconciler) ApplySnapshot(s models.Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.myId = s.MyId
	r.history = make([]models.Operation, len(s.History))
	copy(r.history, s.History)

	r.undone = make(map[string]struct{})
	for _, op := range r.history {
		if op.Type == models.OpUndo && op.Undo != nil {
			r.undone[op.Undo.TargetOperationId] = struct{}{}
		}
	}

	r.userColors = make(map[string]string)
	r.cursors = make(map[string]models.Point)
	for _, u := range s.Users {
		r.userColors[u.Id] = u.Color
		if u.Id != s.MyId && u.Cursor != nil {
			r.cursors[u.Id] = *u.Cursor
		}
	}

	r.dirty = true
}

// ApplyCommitted appends a confirmed operation. A committed DRAW supersedes
// its author's live buffer and, when this session authored it, the local
// prediction, so the stroke renders exactly once from the cache. UNDO and
// CLEAR commits leave in-flight previews alone — the author may still be
// mid-stroke.
func (r *Reconciler) ApplyCommitted(op models.Operation) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.history = append(r.history, op)
	if op.Type == models.OpUndo && op.Undo != nil {
		r.undone[op.Undo.TargetOperationId] = struct{}{}
	}

	if op.Type == models.OpDraw {
		delete(r.liveStrokes, op.AuthorId)
		if op.AuthorId == r.myId {
			r.prediction = nil
		}
	}

	r.dirty = true
}

// ApplyUndoCommitted marks a draw as retracted by id. Idempotent with the
// ApplyCommitted of the UNDO operation itself.
func (r *Reconciler) ApplyUndoCommitted(targetOperationId string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.undone[targetOperationId] = struct{}{}
	r.dirty = true
}

func (r *Reconciler) ApplyUserJoined(u models.User) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.userColors[u.Id] = u.Color
}

func (r *Reconciler) ApplyUserLeft(sessionId string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.userColors, sessionId)
	delete(r.cursors, sessionId)
	delete(r.liveStrokes, sessionId)
}

func (r *Reconciler) ApplyCursor(sessionId string, pos models.Point) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cursors[sessionId] = pos
}

func (r *Reconciler) ApplyStrokePart(sessionId string, points []models.Point, color string, size float64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stroke, ok := r.liveStrokes[sessionId]
	if !ok {
		stroke = &models.LiveStroke{Color: color, Size: size}
		r.liveStrokes[sessionId] = stroke
	}
	stroke.Points = append(stroke.Points, points...)
}

func (r *Reconciler) Resize(width int, height int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.width = width
	r.height = height
	r.dirty = true
}

// Local prediction, fed by the pen before any server round trip.

func (r *Reconciler) PredictionStart(p models.Point, color string, size float64, tool models.Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.prediction = &models.LiveStroke{Points: []models.Point{p}, Color: color, Size: size}
	r.predictionTool = tool
}

func (r *Reconciler) PredictionAppend(p models.Point) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.prediction == nil {
		return
	}
	r.prediction.Points = append(r.prediction.Points, p)
}

// RenderFrame composites one frame: committed cache, then remote live
// strokes, then the local prediction, then cursors topmost.
func (r *Reconciler) RenderFrame() image.Image {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.rebuildIfDirty()

	frame := gg.NewContext(r.width, r.height)
	frame.DrawImage(r.cache.Image(), 0, 0)

	for _, stroke := range r.liveStrokes {
		strokeToContext(frame, stroke.Points, stroke.Color, stroke.Size, models.ToolBrush)
	}

	if r.prediction != nil {
		strokeToContext(frame, r.prediction.Points, r.prediction.Color, r.prediction.Size, r.predictionTool)
	}

	for sessionId, pos := range r.cursors {
		color, ok := r.userColors[sessionId]
		if !ok {
			color = "#000000"
		}
		cursorToContext(frame, pos, sessionId, color)
	}

	return frame.Image()
}

// ExportPNG writes the committed history raster without overlays.
func (r *Reconciler) ExportPNG(w io.Writer) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rebuildIfDirty()
	return png.Encode(w, r.cache.Image())
}

func (r *Reconciler) rebuildIfDirty() {
	if !r.dirty && r.cache != nil {
		return
	}
	r.cache = rebuildHistory(r.history, r.undone, r.width, r.height)
	r.dirty = false
}
