// Package calibration learns the binarization threshold that separates the
// iris from the rest of the eye for a particular person and camera.
package calibration

import (
	"fmt"
	"image"
	"math"

	"gocv.io/x/gocv"

	iface "GazeTrackGo/interface"
	"GazeTrackGo/pupil"
)

const (
	// NbFrames is the number of calibration samples collected per eye side
	// before the threshold freezes.
	NbFrames = 20

	// targetIrisSize is the fraction of the eye surface the iris covers on
	// an average well-exposed frame.
	targetIrisSize = 0.48

	// borderTrim discards the edge pixels left unreliable by masking and
	// cropping when measuring iris occupancy.
	borderTrim = 5

	thresholdMin  = 5
	thresholdMax  = 100
	thresholdStep = 5
)

// Calibration accumulates the best threshold of the first NbFrames frames
// per eye side and exposes their truncated mean as the stable threshold.
// One Calibration belongs to exactly one gaze session; it is the only state
// carried across frames.
type Calibration struct {
	thresholdsLeft  []int
	thresholdsRight []int
}

func New() *Calibration {
	return &Calibration{}
}

// IsComplete reports whether both sides collected enough samples.
func (c *Calibration) IsComplete() bool {
	return len(c.thresholdsLeft) >= NbFrames && len(c.thresholdsRight) >= NbFrames
}

// SampleCount returns how many samples were recorded for the given side.
func (c *Calibration) SampleCount(side iface.Side) int {
	return len(c.samples(side))
}

// Threshold returns the learned threshold for the given side: the truncated
// integer mean of its recorded samples. Calling it before any sample was
// recorded for that side is a sequencing bug and panics.
func (c *Calibration) Threshold(side iface.Side) int {
	samples := c.samples(side)
	if len(samples) == 0 {
		panic(fmt.Sprintf("calibration: threshold requested for %s eye before any sample", side))
	}
	sum := 0
	for _, t := range samples {
		sum += t
	}
	return sum / len(samples)
}

// Evaluate refines the calibration with one more eye frame. It is a no-op
// once the side already holds NbFrames samples.
func (c *Calibration) Evaluate(eyeFrame gocv.Mat, side iface.Side) {
	if len(c.samples(side)) >= NbFrames {
		return
	}
	best := FindBestThreshold(eyeFrame)
	if side == iface.Right {
		c.thresholdsRight = append(c.thresholdsRight, best)
	} else {
		c.thresholdsLeft = append(c.thresholdsLeft, best)
	}
}

func (c *Calibration) samples(side iface.Side) []int {
	if side == iface.Right {
		return c.thresholdsRight
	}
	return c.thresholdsLeft
}

// FindBestThreshold sweeps the candidate binarization thresholds and returns
// the one whose iris occupancy lands closest to targetIrisSize. Candidates
// are tried in ascending order, so ties keep the smallest threshold.
func FindBestThreshold(eyeFrame gocv.Mat) int {
	best := thresholdMin
	bestDiff := math.Inf(1)
	for t := thresholdMin; t < thresholdMax; t += thresholdStep {
		irisFrame := pupil.IsolateIris(eyeFrame, t)
		diff := math.Abs(IrisSize(irisFrame) - targetIrisSize)
		irisFrame.Close()
		if diff < bestDiff {
			best, bestDiff = t, diff
		}
	}
	return best
}

// IrisSize returns the fraction of pixels classified as iris (dark) in a
// binarized eye frame, ignoring a borderTrim-wide strip on every edge.
func IrisSize(irisFrame gocv.Mat) float64 {
	rows, cols := irisFrame.Rows(), irisFrame.Cols()
	if rows <= 2*borderTrim || cols <= 2*borderTrim {
		return 0
	}
	trimmed := irisFrame.Region(image.Rect(borderTrim, borderTrim, cols-borderTrim, rows-borderTrim))
	defer trimmed.Close()

	total := trimmed.Rows() * trimmed.Cols()
	blacks := total - gocv.CountNonZero(trimmed)
	return float64(blacks) / float64(total)
}
