// Package monitor carries the gaze pipeline counters. The embedding
// application decides how its registry is exposed; this package never opens
// a listener.
package monitor

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the per-frame counters of one or more gaze sessions.
type Metrics struct {
	FramesTotal    prometheus.Counter
	FramesNoFace   prometheus.Counter
	PupilsMissed   prometheus.Counter
	DetectorErrors prometheus.Counter
}

// New registers the gaze counters on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		FramesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gaze_frames_total",
			Help: "Frames handed to a gaze session",
		}),
		FramesNoFace: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gaze_frames_no_face_total",
			Help: "Frames where the landmark detector found no face",
		}),
		PupilsMissed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gaze_pupils_missed_total",
			Help: "Frames with a face but without both pupils located",
		}),
		DetectorErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gaze_detector_errors_total",
			Help: "Landmark detector transport failures",
		}),
	}
	reg.MustRegister(m.FramesTotal, m.FramesNoFace, m.PupilsMissed, m.DetectorErrors)
	return m
}
