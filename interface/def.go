// Package iface holds the contract between the gaze tracking core and the
// external facial landmark model. The core never sees the model itself, only
// an ordered set of keypoints per detected face.
package iface

import (
	"image"

	"gocv.io/x/gocv"
)

// Landmark indices follow the 68-point numbering scheme used by the common
// face alignment models. The gaze core only consumes the two eye outlines.
const (
	NumLandmarks = 68

	leftEyeStart  = 36
	rightEyeStart = 42
	eyePointCount = 6
)

// Side selects one of the two eyes. The zero value is Left.
type Side int

const (
	Left Side = iota
	Right
)

func (s Side) String() string {
	if s == Right {
		return "right"
	}
	return "left"
}

// PointIndices returns the six landmark indices outlining the eye on this
// side, in canonical order: outer corner, two upper lid points, inner corner,
// two lower lid points.
func (s Side) PointIndices() [eyePointCount]int {
	start := leftEyeStart
	if s == Right {
		start = rightEyeStart
	}
	var idx [eyePointCount]int
	for i := range idx {
		idx[i] = start + i
	}
	return idx
}

// FaceLandmarks is one detected face reduced to its 68 keypoints in original
// frame coordinates.
type FaceLandmarks struct {
	Points [NumLandmarks]image.Point
	Score  float64
}

// EyePoints returns the six points outlining the eye on the given side.
func (f FaceLandmarks) EyePoints(side Side) [eyePointCount]image.Point {
	var pts [eyePointCount]image.Point
	for i, idx := range side.PointIndices() {
		pts[i] = f.Points[idx]
	}
	return pts
}

// Detector produces facial landmarks for every face found in a grayscale
// frame, most confident face first. Implementations are black boxes to the
// gaze core; it relies only on the 68-point numbering scheme of the results.
type Detector interface {
	DetectLandmarks(frame gocv.Mat) ([]FaceLandmarks, error)
}

// DetectorFunc adapts a plain function to the Detector interface.
type DetectorFunc func(frame gocv.Mat) ([]FaceLandmarks, error)

func (f DetectorFunc) DetectLandmarks(frame gocv.Mat) ([]FaceLandmarks, error) {
	return f(frame)
}
