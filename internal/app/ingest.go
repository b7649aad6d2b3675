package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/ayusman/mudra/internal/capture"
	"github.com/ayusman/mudra/internal/detector"
	"github.com/ayusman/mudra/internal/ledger"
	"github.com/ayusman/mudra/internal/logger"
	"github.com/ayusman/mudra/internal/metrics"
	"github.com/ayusman/mudra/internal/policy"
	"github.com/ayusman/mudra/internal/preprocess"
	"github.com/ayusman/mudra/internal/store"
	"go.uber.org/zap"
	"gocv.io/x/gocv"
)

const modeBatch = "batch"

// DefaultVideoExtensions are the container formats picked up by ingestion.
var DefaultVideoExtensions = []string{".mp4", ".mov", ".mkv", ".avi"}

// IngestConfig holds everything a batch ingestion run needs.
type IngestConfig struct {
	// VideosDir holds one folder per label, each with video files.
	VideosDir string

	// Labels restricts ingestion to these label folders when non-empty.
	Labels []string

	// Extensions overrides DefaultVideoExtensions. Matching ignores case.
	Extensions []string

	FrameStep int
	Hands     policy.HandSelection
	MaxHands  int

	// DebugDir, when set, receives the preprocessed frame of every frame
	// with a detection as <debug>/<label>/<stem>_fNNNNNN.jpg.
	DebugDir string

	// OpenVideo defaults to capture.OpenVideo.
	OpenVideo  func(path string, step int) (capture.Source, error)
	Preprocess *preprocess.Chain
	Detector   detector.Detector
	Dataset    Dataset

	// Optional collaborators.
	Publisher Publisher
	Images    ImageWriter
	Journal   *store.Store
	Logger    *zap.Logger
	Clock     func() time.Time
}

// VideoReport is the outcome of one video.
type VideoReport struct {
	Label    string
	Path     string
	Frames   int
	Appended int
	Err      error
}

// IngestResult summarizes a batch run.
type IngestResult struct {
	SessionID string
	Videos    []VideoReport

	// Labels maps each ingested label to its counters.
	Labels map[string]Counters
}

// Total returns the rows appended across all videos.
func (r IngestResult) Total() int {
	total := 0
	for _, v := range r.Videos {
		total += v.Appended
	}
	return total
}

// Failed returns the number of videos that could not be opened.
func (r IngestResult) Failed() int {
	n := 0
	for _, v := range r.Videos {
		if v.Err != nil {
			n++
		}
	}
	return n
}

// Ingest converts a folder tree of labelled videos into ledger rows.
type Ingest struct {
	config IngestConfig
	logger *zap.Logger
	now    func() time.Time
	exts   map[string]bool
}

// NewIngest creates a batch ingestion run.
func NewIngest(config IngestConfig) *Ingest {
	if config.OpenVideo == nil {
		config.OpenVideo = func(path string, step int) (capture.Source, error) {
			v, err := capture.OpenVideo(path, step)
			if err != nil {
				return nil, err
			}
			return v, nil
		}
	}
	if config.FrameStep < 1 {
		config.FrameStep = 1
	}
	exts := config.Extensions
	if len(exts) == 0 {
		exts = DefaultVideoExtensions
	}
	allowed := make(map[string]bool, len(exts))
	for _, e := range exts {
		allowed[strings.ToLower(e)] = true
	}

	now := config.Clock
	if now == nil {
		now = time.Now
	}

	return &Ingest{
		config: config,
		logger: logger.OrNop(config.Logger),
		now:    now,
		exts:   allowed,
	}
}

// Run ingests every label folder in sorted order. Videos that cannot be
// opened are reported and skipped. A ledger failure stops the run and is
// returned together with the partial result.
func (in *Ingest) Run(ctx context.Context) (IngestResult, error) {
	cfg := in.config
	if cfg.Detector == nil || cfg.Dataset == nil {
		return IngestResult{}, fmt.Errorf("ingestion requires a detector and ledger")
	}

	labels, err := in.labelDirs()
	if err != nil {
		return IngestResult{}, err
	}

	result := IngestResult{Labels: make(map[string]Counters)}

	j := &journal{store: cfg.Journal, logger: in.logger}
	j.start(&store.Session{
		Label:    strings.Join(labels, ","),
		Mode:     store.SessionModeBatch,
		Strategy: policy.Unconditional.String(),
	})
	result.SessionID = j.id

	var runErr error
	for _, label := range labels {
		if ctx.Err() != nil {
			in.logger.Info("ingestion cancelled")
			break
		}
		if runErr = in.ingestLabel(ctx, label, &result, j); runErr != nil {
			break
		}
	}

	j.finish(result.Total(), runErr)

	in.logger.Info("ingestion finished",
		zap.Int("videos", len(result.Videos)),
		zap.Int("failed", result.Failed()),
		zap.Int("appended", result.Total()),
	)
	return result, runErr
}

// labelDirs returns the sorted label folder names to ingest.
func (in *Ingest) labelDirs() ([]string, error) {
	entries, err := os.ReadDir(in.config.VideosDir)
	if err != nil {
		return nil, fmt.Errorf("read videos dir: %w", err)
	}

	wanted := make(map[string]bool, len(in.config.Labels))
	for _, l := range in.config.Labels {
		wanted[l] = true
	}

	var labels []string
	for _, e := range entries {
		if !e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		if len(wanted) > 0 && !wanted[e.Name()] {
			continue
		}
		labels = append(labels, e.Name())
	}
	if len(labels) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoVideos, in.config.VideosDir)
	}
	sort.Strings(labels)
	return labels, nil
}

// videoFiles returns the sorted video files of a label folder.
func (in *Ingest) videoFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() || !in.exts[strings.ToLower(filepath.Ext(e.Name()))] {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	sort.Strings(files)
	return files, nil
}

func (in *Ingest) ingestLabel(ctx context.Context, label string, result *IngestResult, j *journal) error {
	log := in.logger.With(zap.String("label", label))

	if err := ledger.ValidateLabel(label); err != nil {
		log.Warn("skipping folder", zap.Error(err))
		return nil
	}

	files, err := in.videoFiles(filepath.Join(in.config.VideosDir, label))
	if err != nil {
		log.Warn("cannot list videos", zap.Error(err))
		return nil
	}
	if len(files) == 0 {
		log.Info("no videos found")
		return nil
	}

	lf, err := in.config.Dataset.Open(label)
	if err != nil {
		return fmt.Errorf("open ledger %s: %w", label, err)
	}
	defer lf.Close()

	counters := Counters{Existing: lf.Rows()}
	defer func() { result.Labels[label] = counters }()

	log.Info("ingesting label", zap.Int("videos", len(files)), zap.Int("existing", counters.Existing))

	for _, path := range files {
		if ctx.Err() != nil {
			return nil
		}

		report, err := in.ingestVideo(ctx, label, path, lf, &counters)
		result.Videos = append(result.Videos, report)

		status := store.VideoOK
		msg := ""
		if report.Err != nil {
			status = store.VideoFailed
			msg = report.Err.Error()
		}
		if err != nil {
			status = store.VideoFailed
			msg = err.Error()
		}
		metrics.VideosProcessedTotal.WithLabelValues(string(status)).Inc()
		j.video(&store.VideoResult{
			Label:    label,
			Path:     path,
			Frames:   report.Frames,
			Appended: report.Appended,
			Status:   status,
			Error:    msg,
		})

		if err != nil {
			return err
		}
	}
	return nil
}

// ingestVideo processes one file. report.Err is set when the video could not
// be opened; the returned error is reserved for ledger failures.
func (in *Ingest) ingestVideo(ctx context.Context, label, path string, lf Writer, counters *Counters) (VideoReport, error) {
	cfg := in.config
	report := VideoReport{Label: label, Path: path}
	log := in.logger.With(zap.String("label", label), zap.String("video", filepath.Base(path)))

	src, err := cfg.OpenVideo(path, cfg.FrameStep)
	if err != nil {
		log.Warn("cannot open video, skipping", zap.Error(err))
		report.Err = err
		return report, nil
	}
	defer src.Close()

	pcfg := policy.Config{Label: label, Strategy: policy.Unconditional, Hands: cfg.Hands}
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))

	for ctx.Err() == nil {
		frame, err := src.Next()
		if err != nil {
			if !capture.IsEnd(err) {
				log.Warn("stopped reading video", zap.Error(err))
			}
			break
		}

		appended, err := in.processFrame(frame, label, stem, pcfg, lf, log)
		frame.Close()
		report.Frames++
		report.Appended += appended
		counters.Session += appended
		if err != nil {
			return report, err
		}

		if cfg.Publisher != nil {
			cfg.Publisher.Publish(Status{
				Mode:      store.SessionModeBatch,
				State:     StateIngesting,
				Label:     label,
				Counters:  *counters,
				Total:     counters.Total(),
				Video:     filepath.Base(path),
				UpdatedAt: in.now(),
			})
		}
	}

	log.Info("video ingested", zap.Int("frames", report.Frames), zap.Int("appended", report.Appended))
	return report, nil
}

func (in *Ingest) processFrame(frame *capture.Frame, label, stem string, pcfg policy.Config, lf Writer, log *zap.Logger) (int, error) {
	cfg := in.config
	started := time.Now()
	defer func() {
		metrics.FrameProcessingDuration.WithLabelValues(modeBatch).Observe(time.Since(started).Seconds())
	}()
	metrics.FramesProcessedTotal.WithLabelValues(modeBatch).Inc()

	img := frame.Mat
	if cfg.Preprocess != nil {
		processed := cfg.Preprocess.Apply(frame.Mat)
		defer processed.Close()
		img = processed
	}

	hands, err := cfg.Detector.Detect(&img, cfg.MaxHands)
	if err != nil {
		metrics.DetectorErrorsTotal.Inc()
		log.Warn("hand detection failed", zap.Int("frame", frame.Index), zap.Error(err))
		return 0, nil
	}
	if len(hands) == 0 {
		metrics.DetectionMissesTotal.WithLabelValues(modeBatch).Inc()
		log.Debug("no hand detected", zap.Int("frame", frame.Index))
		return 0, nil
	}

	_, out := pcfg.Step(policy.State{}, policy.Tick{Now: in.now(), Hands: hands, Position: frame.Position})
	for i, e := range out.Events {
		if err := lf.Append(e); err != nil {
			return i, fmt.Errorf("append row for %s frame %d: %w", stem, frame.Index, err)
		}
		metrics.RowsAppendedTotal.WithLabelValues(label, string(e.Type)).Inc()
	}

	in.saveDebugFrame(label, stem, frame.Index, img, log)
	return len(out.Events), nil
}

func (in *Ingest) saveDebugFrame(label, stem string, index int, img gocv.Mat, log *zap.Logger) {
	if in.config.DebugDir == "" || in.config.Images == nil {
		return
	}
	path := DebugFramePath(in.config.DebugDir, label, stem, index)
	if err := in.config.Images.WriteJPEG(path, img); err != nil {
		log.Warn("failed to save debug frame", zap.String("path", path), zap.Error(err))
	}
}

// DebugFramePath returns <debug>/<label>/<stem>_fNNNNNN.jpg.
func DebugFramePath(debugDir, label, stem string, index int) string {
	return filepath.Join(debugDir, label, fmt.Sprintf("%s_f%06d.jpg", stem, index))
}

// IsSourceError reports whether err came from a video or camera that could
// not be opened.
func IsSourceError(err error) bool {
	return errors.Is(err, capture.ErrSourceUnavailable)
}
