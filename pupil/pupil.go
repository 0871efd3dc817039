// Package pupil isolates the iris inside a masked eye frame and estimates
// the pupil position from it.
package pupil

import (
	"image"
	"image/color"
	"sort"

	"gocv.io/x/gocv"
)

// Iris isolation parameters. The bilateral filter smooths the sclera without
// blurring the iris boundary; three erosions with a 3x3 kernel thin out
// eyelash remnants before binarization.
const (
	filterDiameter   = 10
	filterSigmaColor = 15
	filterSigmaSpace = 15
	erodeKernelSize  = 3
	erodeIterations  = 3
	binaryMaxValue   = 255
)

// Pupil holds the binarized iris frame and the estimated pupil position in
// eye-frame coordinates. X and Y are meaningful only when Located is true.
type Pupil struct {
	IrisFrame gocv.Mat
	Threshold int
	X         int
	Y         int
	Located   bool
}

// New isolates the iris in eyeFrame with the given binarization threshold
// and estimates the pupil position from the result.
func New(eyeFrame gocv.Mat, threshold int) *Pupil {
	p := &Pupil{Threshold: threshold}
	p.IrisFrame = IsolateIris(eyeFrame, threshold)
	p.X, p.Y, p.Located = estimateCentroid(p.IrisFrame)
	return p
}

// Close releases the binarized iris frame.
func (p *Pupil) Close() {
	if p == nil {
		return
	}
	p.IrisFrame.Close()
}

// IsolateIris smooths, erodes and binarizes an eye frame so that only the
// iris remains as a dark blob. Pixels brighter than threshold become white
// background, everything else black iris candidate. The caller owns the
// returned Mat.
func IsolateIris(eyeFrame gocv.Mat, threshold int) gocv.Mat {
	filtered := gocv.NewMat()
	defer filtered.Close()
	gocv.BilateralFilter(eyeFrame, &filtered, filterDiameter, filterSigmaColor, filterSigmaSpace)

	kernel := gocv.GetStructuringElement(gocv.MorphRect, image.Pt(erodeKernelSize, erodeKernelSize))
	defer kernel.Close()
	eroded := gocv.NewMat()
	defer eroded.Close()
	gocv.ErodeWithParams(filtered, &eroded, kernel, image.Pt(-1, -1), erodeIterations, int(gocv.BorderConstant))

	binary := gocv.NewMat()
	gocv.Threshold(eroded, &binary, float32(threshold), binaryMaxValue, gocv.ThresholdBinary)
	return binary
}

// estimateCentroid extracts the contours of a binarized iris frame and
// derives the pupil position from the area moments of the second-largest
// one. The largest contour is the white background reaching the frame
// border; the next one down is the iris. Fewer than two contours, or a
// degenerate zero-area candidate, means no pupil.
func estimateCentroid(irisFrame gocv.Mat) (x, y int, ok bool) {
	contours := gocv.FindContours(irisFrame, gocv.RetrievalTree, gocv.ChainApproxNone)
	defer contours.Close()
	if contours.Size() < 2 {
		return 0, 0, false
	}

	order := make([]int, contours.Size())
	areas := make([]float64, contours.Size())
	for i := range order {
		order[i] = i
		areas[i] = gocv.ContourArea(contours.At(i))
	}
	sort.SliceStable(order, func(a, b int) bool { return areas[order[a]] < areas[order[b]] })

	irisIdx := order[len(order)-2]
	if areas[irisIdx] == 0 {
		return 0, 0, false
	}

	// gocv computes moments over an image rather than a point list, so the
	// chosen contour is rasterized into its own mask first.
	mask := gocv.NewMatWithSize(irisFrame.Rows(), irisFrame.Cols(), gocv.MatTypeCV8UC1)
	defer mask.Close()
	single := gocv.NewPointsVectorFromPoints([][]image.Point{contours.At(irisIdx).ToPoints()})
	defer single.Close()
	gocv.FillPoly(&mask, single, color.RGBA{R: 255, G: 255, B: 255, A: 255})

	m := gocv.Moments(mask, true)
	if m["m00"] == 0 {
		return 0, 0, false
	}
	return int(m["m10"] / m["m00"]), int(m["m01"] / m["m00"]), true
}
