package room

import "github.com/mzharov/sketchroom/models"

// liveState holds the ephemeral per-session state of one room: last known
// cursor positions and in-flight stroke buffers. Nothing here is logged or
// replayed; it exists so other members can preview a stroke while it is
// being drawn. Access is serialized by the owning room's run loop.
type liveState struct {
	cursors map[string]models.Point
	strokes map[string]*models.LiveStroke
}

func newLiveState() *liveState {
	return &liveState{
		cursors: make(map[string]models.Point),
		strokes: make(map[string]*models.LiveStroke),
	}
}

func (s *liveState) setCursor(sessionId string, pos models.Point) {
	// Last write wins; stale updates are simply overwritten by the next one.
	s.cursors[sessionId] = pos
}

func (s *liveState) appendStroke(sessionId string, points []models.Point, color string, size float64) {
	stroke, ok := s.strokes[sessionId]
	if !ok {
		stroke = &models.LiveStroke{Color: color, Size: size}
		s.strokes[sessionId] = stroke
	}
	stroke.Points = append(stroke.Points, points...)
}

// clearSession drops all ephemeral state for a session. Called when the
// session commits a stroke or disconnects.
func (s *liveState) clearSession(sessionId string) {
	delete(s.cursors, sessionId)
	delete(s.strokes, sessionId)
}

func (s *liveState) strokeLen(sessionId string) int {
	if stroke, ok := s.strokes[sessionId]; ok {
		return len(stroke.Points)
	}
	return 0
}
