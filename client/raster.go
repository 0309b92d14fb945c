package client

import (
	"github.com/fogleman/gg"
	"github.com/mzharov/sketchroom/models"
	"golang.org/x/image/font/basicfont"
)

// backgroundColor is the blank surface color; eraser strokes paint with it.
const backgroundColor = "#ffffff"

func newBlankContext(width int, height int) *gg.Context {
	dc := gg.NewContext(width, height)
	dc.SetHexColor(backgroundColor)
	dc.Clear()
	return dc
}

// rebuildHistory replays the committed log onto a fresh surface. It is a
// pure function of (history, undone, dimensions): CLEAR blanks the surface,
// undone draws are skipped, UNDO entries are never rasterized.
func rebuildHistory(history []models.Operation, undone map[string]struct{}, width int, height int) *gg.Context {
	dc := newBlankContext(width, height)
	for _, op := range history {
		switch op.Type {
		case models.OpClear:
			dc.SetHexColor(backgroundColor)
			dc.Clear()
		case models.OpDraw:
			if _, ok := undone[op.Id]; ok {
				continue
			}
			if op.Draw == nil {
				continue
			}
			strokeToContext(dc, op.Draw.Points, op.Draw.Color, op.Draw.Size, op.Draw.Tool)
		case models.OpUndo:
			// Expressed through the undone set, nothing to draw.
		}
	}
	return dc
}

func strokeToContext(dc *gg.Context, points []models.Point, color string, size float64, tool models.Tool) {
	if len(points) < 1 {
		return
	}

	dc.SetLineCap(gg.LineCapRound)
	dc.SetLineJoin(gg.LineJoinRound)
	dc.SetLineWidth(size)
	if tool == models.ToolEraser {
		dc.SetHexColor(backgroundColor)
	} else {
		dc.SetHexColor(color)
	}

	if tool == models.ToolRectangle {
		// The box spanned by the first and last point, not the path.
		start := points[0]
		end := points[len(points)-1]
		dc.DrawRectangle(start.X, start.Y, end.X-start.X, end.Y-start.Y)
		dc.Stroke()
		return
	}

	if len(points) == 1 {
		// A tap with no movement still leaves a dot.
		dc.DrawCircle(points[0].X, points[0].Y, size/2)
		dc.Fill()
		return
	}

	dc.MoveTo(points[0].X, points[0].Y)
	for i := 1; i < len(points); i++ {
		dc.LineTo(points[i].X, points[i].Y)
	}
	dc.Stroke()
}

func cursorToContext(dc *gg.Context, pos models.Point, sessionId string, color string) {
	dc.SetHexColor(color)

	label := sessionId
	if len(label) > 4 {
		label = label[:4]
	}
	dc.SetFontFace(basicfont.Face7x13)
	dc.DrawString(label, pos.X+10, pos.Y+10)

	dc.DrawCircle(pos.X, pos.Y, 3)
	dc.Fill()
}
