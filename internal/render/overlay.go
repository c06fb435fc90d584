// Package render draws the debug overlays sent back with every step
// response: the aligned source outline on the live frame, text element
// boxes colored by hit state, and fingertip markers.
package render

import (
	"image"
	"image/color"
	"image/draw"
	"math"

	"watvision-service/internal/geometry"
	"watvision-service/internal/models"
)

var (
	colorAligned = color.RGBA{0, 255, 0, 255}
	colorText    = color.RGBA{255, 0, 0, 255}
	colorHit     = color.RGBA{0, 255, 0, 255}
	colorFinger  = color.RGBA{255, 0, 0, 255}
	colorTarget  = color.RGBA{0, 128, 255, 255}
)

// Overlay describes the annotations to draw onto one step's frames.
type Overlay struct {
	// Homography maps source coordinates to live-frame coordinates.
	Homography models.Homography
	Valid      bool

	SourceBounds image.Rectangle
	TextElements []models.TextElement
	HitIndex     int // index into TextElements, -1 for none

	FingerLive    *models.Point
	FingerSource  *models.Point
	TrackedCenter *models.Point
}

// Annotate returns annotated copies of the live frame and source image.
// The inputs are never mutated. When Valid is false only the fingertip
// marker is drawn on the live frame.
func Annotate(live, source image.Image, ov Overlay) (*image.RGBA, *image.RGBA) {
	liveOut := cloneRGBA(live)
	sourceOut := cloneRGBA(source)

	if ov.Valid {
		// Outline of the source image projected onto the live frame.
		corners := geometry.ApplyQuad(ov.Homography, geometry.RectQuad(
			float64(ov.SourceBounds.Min.X), float64(ov.SourceBounds.Min.Y),
			float64(ov.SourceBounds.Max.X), float64(ov.SourceBounds.Max.Y),
		))
		drawQuad(liveOut, corners, colorAligned)

		for i, el := range ov.TextElements {
			c := colorText
			if i == ov.HitIndex {
				c = colorHit
			}
			drawQuad(sourceOut, el.BoundingBox, c)
			drawQuad(liveOut, geometry.ApplyQuad(ov.Homography, el.BoundingBox), c)
		}
	}

	if ov.FingerLive != nil {
		drawMarker(liveOut, *ov.FingerLive, colorFinger)
	}
	if ov.FingerSource != nil {
		drawMarker(sourceOut, *ov.FingerSource, colorFinger)
	}
	if ov.TrackedCenter != nil {
		drawMarker(sourceOut, *ov.TrackedCenter, colorTarget)
	}

	return liveOut, sourceOut
}

func cloneRGBA(img image.Image) *image.RGBA {
	b := img.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(out, out.Bounds(), img, b.Min, draw.Src)
	return out
}

func drawQuad(img *image.RGBA, q models.Quad, c color.RGBA) {
	for i := range q {
		drawLine(img, q[i], q[(i+1)%len(q)], c)
	}
}

func drawLine(img *image.RGBA, a, b models.Point, c color.RGBA) {
	steps := int(math.Max(math.Abs(b.X-a.X), math.Abs(b.Y-a.Y)))
	if steps < 1 {
		steps = 1
	}
	for i := 0; i <= steps; i++ {
		t := float64(i) / float64(steps)
		x := int(math.Round(a.X + (b.X-a.X)*t))
		y := int(math.Round(a.Y + (b.Y-a.Y)*t))
		setThick(img, x, y, c)
	}
}

func drawMarker(img *image.RGBA, p models.Point, c color.RGBA) {
	const r = 5
	cx, cy := int(math.Round(p.X)), int(math.Round(p.Y))
	for dy := -r; dy <= r; dy++ {
		for dx := -r; dx <= r; dx++ {
			if dx*dx+dy*dy <= r*r {
				set(img, cx+dx, cy+dy, c)
			}
		}
	}
}

func setThick(img *image.RGBA, x, y int, c color.RGBA) {
	for dy := 0; dy < 2; dy++ {
		for dx := 0; dx < 2; dx++ {
			set(img, x+dx, y+dy, c)
		}
	}
}

func set(img *image.RGBA, x, y int, c color.RGBA) {
	if image.Pt(x, y).In(img.Bounds()) {
		img.SetRGBA(x, y, c)
	}
}
