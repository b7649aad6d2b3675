// Package metrics exposes Prometheus counters for the capture pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	FramesProcessedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mudra_frames_processed_total",
		Help: "Frames run through landmark extraction, by session mode",
	}, []string{"mode"})

	DetectionMissesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mudra_detection_misses_total",
		Help: "Frames where no hand was detected, by session mode",
	}, []string{"mode"})

	DetectorErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mudra_detector_errors_total",
		Help: "Landmark extraction calls that returned an error",
	})

	RowsAppendedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mudra_rows_appended_total",
		Help: "Ledger rows durably appended, by label and capture type",
	}, []string{"label", "capture_type"})

	PreprocessFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mudra_preprocess_failures_total",
		Help: "Preprocessing stages skipped after a failure, by stage",
	}, []string{"stage"})

	VideosProcessedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mudra_videos_processed_total",
		Help: "Batch videos processed, by outcome",
	}, []string{"status"})

	FrameProcessingDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "mudra_frame_processing_duration_seconds",
		Help:    "Time spent on one loop iteration after the frame was acquired",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
	}, []string{"mode"})
)
