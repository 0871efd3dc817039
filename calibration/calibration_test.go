package calibration

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"

	iface "GazeTrackGo/interface"
	"GazeTrackGo/pupil"
)

// irisFrame builds a synthetic eye frame: white background with one dark
// circular iris blob.
func irisFrame() gocv.Mat {
	frame := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(255, 0, 0, 0), 60, 60, gocv.MatTypeCV8UC1)
	gocv.Circle(&frame, image.Pt(30, 30), 14, color.RGBA{}, -1)
	return frame
}

// gradientFrame ramps pixel values from dark to bright, column by column.
func gradientFrame() gocv.Mat {
	frame := gocv.NewMatWithSize(60, 60, gocv.MatTypeCV8UC1)
	for r := 0; r < 60; r++ {
		for c := 0; c < 60; c++ {
			frame.SetUCharAt(r, c, uint8(c*4))
		}
	}
	return frame
}

func TestIrisSize(t *testing.T) {
	t.Run("all black is one", func(t *testing.T) {
		frame := gocv.NewMatWithSize(40, 60, gocv.MatTypeCV8UC1)
		defer frame.Close()
		assert.Equal(t, 1.0, IrisSize(frame))
	})

	t.Run("all white is zero", func(t *testing.T) {
		frame := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(255, 0, 0, 0), 40, 60, gocv.MatTypeCV8UC1)
		defer frame.Close()
		assert.Equal(t, 0.0, IrisSize(frame))
	})

	t.Run("edge strip is ignored", func(t *testing.T) {
		// Black frame with a white interior: every black pixel sits in the
		// trimmed border, so nothing counts as iris.
		frame := gocv.NewMatWithSize(40, 60, gocv.MatTypeCV8UC1)
		defer frame.Close()
		gocv.Rectangle(&frame, image.Rect(5, 5, 55, 35), color.RGBA{R: 255, G: 255, B: 255}, -1)
		assert.Equal(t, 0.0, IrisSize(frame))
	})

	t.Run("degenerate frame is zero", func(t *testing.T) {
		frame := gocv.NewMatWithSize(8, 8, gocv.MatTypeCV8UC1)
		defer frame.Close()
		assert.Equal(t, 0.0, IrisSize(frame))
	})

	t.Run("monotonically non-decreasing in threshold", func(t *testing.T) {
		frame := gradientFrame()
		defer frame.Close()
		prev := -1.0
		for threshold := 5; threshold < 100; threshold += 5 {
			mask := pupil.IsolateIris(frame, threshold)
			size := IrisSize(mask)
			mask.Close()
			assert.GreaterOrEqual(t, size, prev, "threshold %d", threshold)
			prev = size
		}
	})
}

func TestFindBestThreshold(t *testing.T) {
	t.Run("deterministic", func(t *testing.T) {
		frame := gradientFrame()
		defer frame.Close()
		assert.Equal(t, FindBestThreshold(frame), FindBestThreshold(frame))
	})

	t.Run("candidate range", func(t *testing.T) {
		frame := irisFrame()
		defer frame.Close()
		best := FindBestThreshold(frame)
		assert.GreaterOrEqual(t, best, 5)
		assert.Less(t, best, 100)
		assert.Zero(t, best%5)
	})

	t.Run("ties keep the smallest candidate", func(t *testing.T) {
		// An all-black frame scores occupancy 1.0 at every threshold, so the
		// sweep must settle on the first candidate.
		frame := gocv.NewMatWithSize(60, 60, gocv.MatTypeCV8UC1)
		defer frame.Close()
		assert.Equal(t, 5, FindBestThreshold(frame))
	})
}

func TestCalibration(t *testing.T) {
	frame := irisFrame()
	defer frame.Close()
	ramp := gradientFrame()
	defer ramp.Close()

	t.Run("threshold before any sample panics", func(t *testing.T) {
		c := New()
		assert.Panics(t, func() { c.Threshold(iface.Left) })
		assert.Panics(t, func() { c.Threshold(iface.Right) })
	})

	t.Run("freezes after twenty samples per side", func(t *testing.T) {
		c := New()
		for i := 0; i < NbFrames-1; i++ {
			c.Evaluate(frame, iface.Left)
			c.Evaluate(frame, iface.Right)
		}
		assert.False(t, c.IsComplete())

		c.Evaluate(frame, iface.Left)
		assert.False(t, c.IsComplete())
		c.Evaluate(frame, iface.Right)
		assert.True(t, c.IsComplete())

		frozen := c.Threshold(iface.Left)
		// Further samples are a no-op, even with a very different frame.
		for i := 0; i < 5; i++ {
			c.Evaluate(ramp, iface.Left)
			c.Evaluate(ramp, iface.Right)
		}
		assert.Equal(t, NbFrames, c.SampleCount(iface.Left))
		assert.Equal(t, NbFrames, c.SampleCount(iface.Right))
		assert.Equal(t, frozen, c.Threshold(iface.Left))
	})

	t.Run("threshold is the truncated mean of the samples", func(t *testing.T) {
		c := New()
		sum := 0
		for i := 0; i < NbFrames; i++ {
			f := frame
			if i%2 == 1 {
				f = ramp
			}
			sum += FindBestThreshold(f)
			c.Evaluate(f, iface.Right)
		}
		require.Equal(t, NbFrames, c.SampleCount(iface.Right))
		assert.Equal(t, sum/NbFrames, c.Threshold(iface.Right))
	})

	t.Run("sides are independent", func(t *testing.T) {
		c := New()
		c.Evaluate(frame, iface.Left)
		assert.Equal(t, 1, c.SampleCount(iface.Left))
		assert.Equal(t, 0, c.SampleCount(iface.Right))
		assert.NotPanics(t, func() { c.Threshold(iface.Left) })
		assert.Panics(t, func() { c.Threshold(iface.Right) })
	})
}
