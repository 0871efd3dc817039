// Package eye isolates a single eye from a face frame and runs pupil
// detection on it.
package eye

import (
	"image"
	"image/color"
	"math"

	"gocv.io/x/gocv"

	"GazeTrackGo/calibration"
	iface "GazeTrackGo/interface"
	"GazeTrackGo/pupil"
)

// cropMargin widens the eye bounding box so the crop keeps a little context
// around the polygon mask.
const cropMargin = 5

// Eye is the masked, cropped sub-image of one eye together with its geometry
// and the pupil detected inside it. Eyes are rebuilt from scratch on every
// frame; the calibration passed to New is the only state they share.
type Eye struct {
	// Frame is the grayscale eye crop, everything outside the eye polygon
	// painted white.
	Frame gocv.Mat
	// Origin is the crop's top-left corner in original frame coordinates.
	Origin image.Point
	// CenterX, CenterY are half the crop dimensions, in crop-local
	// coordinates.
	CenterX float64
	CenterY float64
	Pupil   *pupil.Pupil

	blinking   float64
	blinkingOK bool

	points [6]image.Point
}

// New isolates the eye on the given side, feeds the calibration while it is
// still collecting and detects the pupil with the calibrated threshold.
func New(faceFrame gocv.Mat, lm iface.FaceLandmarks, side iface.Side, calib *calibration.Calibration) *Eye {
	e := &Eye{points: lm.EyePoints(side)}
	e.blinking, e.blinkingOK = blinkingRatio(e.points)
	e.isolate(faceFrame)

	if !calib.IsComplete() {
		calib.Evaluate(e.Frame, side)
	}
	e.Pupil = pupil.New(e.Frame, calib.Threshold(side))
	return e
}

// BlinkingRatio returns the width/height ratio of the eye aperture. ok is
// false when the aperture height collapsed to zero.
func (e *Eye) BlinkingRatio() (ratio float64, ok bool) {
	return e.blinking, e.blinkingOK
}

// Points returns the six landmark points outlining this eye, in original
// frame coordinates.
func (e *Eye) Points() [6]image.Point {
	return e.points
}

// Close releases the eye frame and its pupil's mats. Safe on a nil eye.
func (e *Eye) Close() {
	if e == nil {
		return
	}
	e.Frame.Close()
	e.Pupil.Close()
}

// isolate masks everything but the eye polygon and crops the face frame down
// to the polygon's bounding box plus cropMargin on each side. Pixels outside
// the polygon are painted white so they binarize as background. The crop is
// clamped to the frame bounds and its actual corner recorded as Origin.
func (e *Eye) isolate(faceFrame gocv.Mat) {
	rows, cols := faceFrame.Rows(), faceFrame.Cols()

	mask := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(255, 0, 0, 0), rows, cols, gocv.MatTypeCV8UC1)
	defer mask.Close()
	poly := gocv.NewPointsVectorFromPoints([][]image.Point{e.points[:]})
	defer poly.Close()
	gocv.FillPoly(&mask, poly, color.RGBA{})

	masked := faceFrame.Clone()
	defer masked.Close()
	white := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(255, 0, 0, 0), rows, cols, gocv.MatTypeCV8UC1)
	defer white.Close()
	white.CopyToWithMask(&masked, mask)

	minX, minY := cols, rows
	maxX, maxY := 0, 0
	for _, p := range e.points {
		minX = min(minX, p.X)
		maxX = max(maxX, p.X)
		minY = min(minY, p.Y)
		maxY = max(maxY, p.Y)
	}
	rect := image.Rect(minX-cropMargin, minY-cropMargin, maxX+cropMargin, maxY+cropMargin).
		Intersect(image.Rect(0, 0, cols, rows))

	crop := masked.Region(rect)
	defer crop.Close()
	e.Frame = crop.Clone()
	e.Origin = rect.Min
	e.CenterX = float64(e.Frame.Cols()) / 2
	e.CenterY = float64(e.Frame.Rows()) / 2
}

// blinkingRatio divides the corner-to-corner eye width by the lid-to-lid
// height. A closing eye stretches the ratio well above the open-eye
// baseline. ok is false when the lid midpoints coincide.
func blinkingRatio(pts [6]image.Point) (float64, bool) {
	left := pts[0]
	right := pts[3]
	top := middlePoint(pts[1], pts[2])
	bottom := middlePoint(pts[5], pts[4])

	width := math.Hypot(float64(left.X-right.X), float64(left.Y-right.Y))
	height := math.Hypot(float64(top.X-bottom.X), float64(top.Y-bottom.Y))
	if height == 0 {
		return 0, false
	}
	return width / height, true
}

func middlePoint(p1, p2 image.Point) image.Point {
	return image.Pt((p1.X+p2.X)/2, (p1.Y+p2.Y)/2)
}
