package room

import (
	"errors"
	"regexp"

	"github.com/mzharov/sketchroom/models"
)

var hexColorRegex = regexp.MustCompile(`^#[0-9A-Fa-f]{6}$`)

const (
	minStrokeSize   = 1
	maxStrokeSize   = 64
	maxStrokePoints = 2048
)

// ValidateDraw rejects degenerate strokes before they reach the log. The
// log itself accepts anything; this is the single sanitization point for
// client-supplied draw commits.
func ValidateDraw(p models.DrawPayload) error {
	if len(p.Points) == 0 {
		return errors.New("empty point list")
	}
	if len(p.Points) > maxStrokePoints {
		return errors.New("stroke too long")
	}
	if !hexColorRegex.MatchString(p.Color) {
		return errors.New("invalid color")
	}
	if p.Size < minStrokeSize || p.Size > maxStrokeSize {
		return errors.New("invalid size")
	}
	if !p.Tool.Valid() {
		return errors.New("invalid tool")
	}
	return nil
}
