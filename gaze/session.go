// Package gaze tracks a user's gaze direction across webcam frames: pupil
// positions, horizontal/vertical gaze ratios and a blink signal.
package gaze

import (
	"image"
	"image/color"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gocv.io/x/gocv"

	"GazeTrackGo/calibration"
	"GazeTrackGo/eye"
	iface "GazeTrackGo/interface"
	"GazeTrackGo/logger"
	"GazeTrackGo/monitor"
)

const (
	// Gaze ratio cutoffs: below rightCutoff the user looks right, above
	// leftCutoff left, in between center.
	rightCutoff = 0.35
	leftCutoff  = 0.65

	// blinkCutoff is the aperture width/height ratio above which the eyes
	// count as closed.
	blinkCutoff = 3.8

	// ratioMarginCorrection compensates for the margin pixels added on each
	// side when the eye frame was isolated.
	ratioMarginCorrection = 10

	markerHalfLength = 5
)

// Session tracks one user's gaze across frames. It owns its calibration for
// its whole lifetime; sessions and their calibrations must never be shared
// between concurrent capture pipelines.
type Session struct {
	ID string

	detector iface.Detector
	calib    *calibration.Calibration
	log      *zap.Logger
	metrics  *monitor.Metrics

	frame    gocv.Mat
	hasFrame bool
	eyeLeft  *eye.Eye
	eyeRight *eye.Eye
}

// Option configures a Session.
type Option func(*Session)

// WithLogger routes session diagnostics to log instead of the package
// logger.
func WithLogger(log *zap.Logger) Option {
	return func(s *Session) { s.log = log }
}

// WithMetrics publishes per-frame counters to m.
func WithMetrics(m *monitor.Metrics) Option {
	return func(s *Session) { s.metrics = m }
}

// NewSession creates a gaze tracking session around a landmark detector.
// The session starts uncalibrated; the threshold stabilizes once the first
// calibration frames have been processed.
func NewSession(detector iface.Detector, opts ...Option) *Session {
	s := &Session{
		ID:       uuid.NewString(),
		detector: detector,
		calib:    calibration.New(),
		log:      logger.Log(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Calibration exposes the session's calibration state.
func (s *Session) Calibration() *calibration.Calibration {
	return s.calib
}

// Eye returns the eye for the given side on the current frame, or nil when
// no face was detected.
func (s *Session) Eye(side iface.Side) *eye.Eye {
	if side == iface.Right {
		return s.eyeRight
	}
	return s.eyeLeft
}

// Refresh analyzes a new frame. Only the first detected face is used; when
// no face is found both eyes are reset and every query reports absence until
// the next frame. The frame is copied, the caller keeps ownership of its
// Mat. A returned error means the detector itself failed, not that the frame
// held no face.
func (s *Session) Refresh(frame gocv.Mat) error {
	if s.metrics != nil {
		s.metrics.FramesTotal.Inc()
	}

	gray := gocv.NewMat()
	defer gray.Close()
	if frame.Channels() > 1 {
		gocv.CvtColor(frame, &gray, gocv.ColorBGRToGray)
	} else {
		frame.CopyTo(&gray)
	}

	s.reset()
	s.frame = frame.Clone()
	s.hasFrame = true

	faces, err := s.detector.DetectLandmarks(gray)
	if err != nil {
		if s.metrics != nil {
			s.metrics.DetectorErrors.Inc()
		}
		s.log.Error("landmark detection failed", zap.String("session", s.ID), zap.Error(err))
		return err
	}
	if len(faces) == 0 {
		if s.metrics != nil {
			s.metrics.FramesNoFace.Inc()
		}
		s.log.Debug("no face detected", zap.String("session", s.ID))
		return nil
	}

	lm := faces[0]
	s.eyeLeft = eye.New(gray, lm, iface.Left, s.calib)
	s.eyeRight = eye.New(gray, lm, iface.Right, s.calib)

	if s.metrics != nil && !s.PupilsLocated() {
		s.metrics.PupilsMissed.Inc()
	}
	s.log.Debug("frame analyzed",
		zap.String("session", s.ID),
		zap.Bool("pupilsLocated", s.PupilsLocated()),
		zap.Bool("calibrated", s.calib.IsComplete()))
	return nil
}

// PupilsLocated reports whether both pupils were found on the current frame.
// Every directional query below reports absence unless this holds.
func (s *Session) PupilsLocated() bool {
	return s.eyeLeft != nil && s.eyeRight != nil &&
		s.eyeLeft.Pupil.Located && s.eyeRight.Pupil.Located
}

// PupilCoords returns the pupil position for the given side in original
// frame coordinates: the eye's origin plus the pupil's crop-local position.
func (s *Session) PupilCoords(side iface.Side) (image.Point, bool) {
	if !s.PupilsLocated() {
		return image.Point{}, false
	}
	e := s.Eye(side)
	return image.Pt(e.Origin.X+e.Pupil.X, e.Origin.Y+e.Pupil.Y), true
}

// HorizontalRatio scores the horizontal gaze direction between 0.0 (extreme
// right) and 1.0 (extreme left), 0.5 being center, averaged over both eyes.
func (s *Session) HorizontalRatio() (float64, bool) {
	if !s.PupilsLocated() {
		return 0, false
	}
	l := float64(s.eyeLeft.Pupil.X) / (s.eyeLeft.CenterX*2 - ratioMarginCorrection)
	r := float64(s.eyeRight.Pupil.X) / (s.eyeRight.CenterX*2 - ratioMarginCorrection)
	return (l + r) / 2, true
}

// VerticalRatio scores the vertical gaze direction between 0.0 (top) and
// 1.0 (bottom), averaged over both eyes.
func (s *Session) VerticalRatio() (float64, bool) {
	if !s.PupilsLocated() {
		return 0, false
	}
	l := float64(s.eyeLeft.Pupil.Y) / (s.eyeLeft.CenterY*2 - ratioMarginCorrection)
	r := float64(s.eyeRight.Pupil.Y) / (s.eyeRight.CenterY*2 - ratioMarginCorrection)
	return (l + r) / 2, true
}

// IsRight reports whether the user is looking to the right.
func (s *Session) IsRight() bool {
	ratio, ok := s.HorizontalRatio()
	return ok && ratio <= rightCutoff
}

// IsLeft reports whether the user is looking to the left.
func (s *Session) IsLeft() bool {
	ratio, ok := s.HorizontalRatio()
	return ok && ratio >= leftCutoff
}

// IsCenter reports whether the gaze is neither clearly left nor right.
func (s *Session) IsCenter() bool {
	_, ok := s.HorizontalRatio()
	return ok && !s.IsRight() && !s.IsLeft()
}

// IsBlinking reports whether the eyes are closed on the current frame. An
// eye whose aperture ratio is undefined because of degenerate landmarks is
// skipped; with no usable ratio at all the answer is false.
func (s *Session) IsBlinking() bool {
	if !s.PupilsLocated() {
		return false
	}
	avg, ok := blinkingRatioAverage(s.eyeLeft, s.eyeRight)
	return ok && avg > blinkCutoff
}

// blinkingRatioAverage averages the defined per-eye aperture ratios. ok is
// false when neither eye produced a usable ratio.
func blinkingRatioAverage(eyes ...*eye.Eye) (float64, bool) {
	var sum float64
	var n int
	for _, e := range eyes {
		if e == nil {
			continue
		}
		if ratio, defined := e.BlinkingRatio(); defined {
			sum += ratio
			n++
		}
	}
	if n == 0 {
		return 0, false
	}
	return sum / float64(n), true
}

// AnnotatedFrame returns a copy of the current frame with a cross marker
// drawn over each located pupil. The caller owns the returned Mat.
func (s *Session) AnnotatedFrame() gocv.Mat {
	if !s.hasFrame {
		return gocv.NewMat()
	}
	out := s.frame.Clone()
	if !s.PupilsLocated() {
		return out
	}
	green := color.RGBA{G: 255}
	for _, side := range []iface.Side{iface.Left, iface.Right} {
		p, _ := s.PupilCoords(side)
		gocv.Line(&out, image.Pt(p.X-markerHalfLength, p.Y), image.Pt(p.X+markerHalfLength, p.Y), green, 1)
		gocv.Line(&out, image.Pt(p.X, p.Y-markerHalfLength), image.Pt(p.X, p.Y+markerHalfLength), green, 1)
	}
	return out
}

// Close releases every Mat held by the session. The session must not be
// used afterwards.
func (s *Session) Close() {
	s.reset()
}

func (s *Session) reset() {
	if s.hasFrame {
		s.frame.Close()
		s.hasFrame = false
	}
	s.eyeLeft.Close()
	s.eyeRight.Close()
	s.eyeLeft, s.eyeRight = nil, nil
}
