package app

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/ayusman/mudra/internal/capture"
	"github.com/ayusman/mudra/internal/detector"
	"github.com/ayusman/mudra/internal/ledger"
	"github.com/ayusman/mudra/internal/logger"
	"github.com/ayusman/mudra/internal/metrics"
	"github.com/ayusman/mudra/internal/policy"
	"github.com/ayusman/mudra/internal/store"
	"go.uber.org/zap"
)

const modeLive = "live"

// LiveConfig holds everything an interactive capture session needs.
type LiveConfig struct {
	Label    string
	Strategy policy.Strategy
	Interval time.Duration
	Hands    policy.HandSelection
	MaxHands int

	// MaxSession bounds recording time. Zero means unbounded.
	MaxSession time.Duration

	// RequireStart starts the session idle until SignalStartRecording.
	RequireStart bool

	// SaveManualImages writes a JPEG of every manual capture under
	// <dataset>/<label>_imgs/.
	SaveManualImages bool

	OpenSource func() (capture.Source, error)
	Detector   detector.Detector
	Dataset    Dataset

	// Optional collaborators.
	Display   Display
	Signals   Signals
	Publisher Publisher
	Images    ImageWriter
	Journal   *store.Store
	Logger    *zap.Logger
	Clock     func() time.Time
}

// LiveResult summarizes a finished live session.
type LiveResult struct {
	SessionID string
	Counters  Counters
	Manual    int
	Auto      int
	Reason    StopReason
}

// Live is an interactive capture session for one label.
type Live struct {
	config LiveConfig
	logger *zap.Logger
	now    func() time.Time
}

// NewLive creates a live session.
func NewLive(config LiveConfig) *Live {
	now := config.Clock
	if now == nil {
		now = time.Now
	}
	return &Live{
		config: config,
		logger: logger.OrNop(config.Logger).With(zap.String("label", config.Label)),
		now:    now,
	}
}

// liveState is the loop state carried between frames.
type liveState struct {
	recording bool
	started   time.Time
	policy    policy.State
	counters  Counters
	images    int
	result    LiveResult
}

// Run captures until a stop signal, context cancellation, end of input or
// the session ceiling. The source is opened before the ledger so a missing
// camera never touches the dataset. A ledger write failure ends the session
// and is returned.
func (l *Live) Run(ctx context.Context) (LiveResult, error) {
	cfg := l.config
	if err := ledger.ValidateLabel(cfg.Label); err != nil {
		return LiveResult{}, err
	}
	if cfg.OpenSource == nil || cfg.Detector == nil || cfg.Dataset == nil {
		return LiveResult{}, fmt.Errorf("live session requires a source, detector and ledger")
	}

	src, err := cfg.OpenSource()
	if err != nil {
		return LiveResult{}, fmt.Errorf("open camera: %w", err)
	}
	defer src.Close()

	lf, err := cfg.Dataset.Open(cfg.Label)
	if err != nil {
		return LiveResult{}, fmt.Errorf("open ledger: %w", err)
	}
	defer lf.Close()

	pcfg := policy.Config{
		Label:    cfg.Label,
		Strategy: cfg.Strategy,
		Interval: cfg.Interval,
		Hands:    cfg.Hands,
	}

	st := &liveState{counters: Counters{Existing: lf.Rows()}}
	st.images = st.counters.Existing
	if !cfg.RequireStart {
		l.startRecording(st, l.now())
	}

	j := &journal{store: cfg.Journal, logger: l.logger}
	j.start(&store.Session{
		Label:    cfg.Label,
		Mode:     store.SessionModeLive,
		Strategy: cfg.Strategy.String(),
		Existing: st.counters.Existing,
	})
	st.result.SessionID = j.id

	l.logger.Info("capture session started",
		zap.String("strategy", cfg.Strategy.String()),
		zap.Int("existing", st.counters.Existing),
		zap.Bool("recording", st.recording),
	)

	reason, runErr := l.loop(ctx, src, lf, pcfg, st)

	st.result.Counters = st.counters
	st.result.Reason = reason
	j.finish(st.counters.Session, runErr)
	l.publish(st, pcfg, StateStopped, nil)

	l.logger.Info("capture session ended",
		zap.String("reason", string(reason)),
		zap.Int("session", st.counters.Session),
		zap.Int("total", st.counters.Total()),
	)
	return st.result, runErr
}

func (l *Live) loop(ctx context.Context, src capture.Source, lf Writer, pcfg policy.Config, st *liveState) (StopReason, error) {
	cfg := l.config
	for {
		if ctx.Err() != nil {
			return StopCancelled, nil
		}

		frame, err := src.Next()
		if err != nil {
			if capture.IsEnd(err) {
				l.logger.Info("camera stopped delivering frames", zap.Error(err))
				return StopEndOfInput, nil
			}
			return StopEndOfInput, fmt.Errorf("read frame: %w", err)
		}
		now := l.now()

		if st.recording && cfg.MaxSession > 0 && now.Sub(st.started) >= cfg.MaxSession {
			frame.Close()
			l.logger.Info("session time limit reached", zap.Duration("limit", cfg.MaxSession))
			return StopMaxSession, nil
		}

		reason, stop, err := l.step(frame, now, lf, pcfg, st)
		frame.Close()
		if err != nil {
			return StopEndOfInput, err
		}
		if stop {
			return reason, nil
		}
	}
}

// step processes one frame. It reports whether the session should stop.
func (l *Live) step(frame *capture.Frame, now time.Time, lf Writer, pcfg policy.Config, st *liveState) (StopReason, bool, error) {
	cfg := l.config
	started := time.Now()
	defer func() {
		metrics.FrameProcessingDuration.WithLabelValues(modeLive).Observe(time.Since(started).Seconds())
	}()
	metrics.FramesProcessedTotal.WithLabelValues(modeLive).Inc()

	hands, err := cfg.Detector.Detect(&frame.Mat, cfg.MaxHands)
	if err != nil {
		metrics.DetectorErrorsTotal.Inc()
		l.logger.Warn("hand detection failed", zap.Error(err))
		hands = nil
	}
	if len(hands) == 0 {
		metrics.DetectionMissesTotal.WithLabelValues(modeLive).Inc()
	}

	manual, start, stop := l.poll()

	if !st.recording {
		if start {
			l.startRecording(st, now)
			l.logger.Info("recording started")
		} else if manual {
			l.logger.Info("manual capture ignored, recording not started")
		}
	}

	if st.recording {
		var out policy.Outcome
		st.policy, out = pcfg.Step(st.policy, policy.Tick{Now: now, Hands: hands, Manual: manual})
		if out.ManualMissed {
			l.logger.Info("no hand detected for manual capture")
		}

		for _, e := range out.Events {
			if err := lf.Append(e); err != nil {
				return StopEndOfInput, true, fmt.Errorf("append %s row: %w", e.Type, err)
			}
			st.counters.Session++
			metrics.RowsAppendedTotal.WithLabelValues(e.Label, string(e.Type)).Inc()

			switch e.Type {
			case policy.CaptureManual:
				st.result.Manual++
				l.saveManualImage(frame, st)
			case policy.CaptureAuto:
				st.result.Auto++
			}
			l.logger.Debug("row appended",
				zap.String("type", string(e.Type)),
				zap.String("hand", e.Hand.Handedness),
				zap.Int("total", st.counters.Total()),
			)
		}
	}

	state := StateIdle
	if st.recording {
		state = StateRecording
	}

	if cfg.Display != nil {
		overlay := Overlay{
			Label:     cfg.Label,
			Strategy:  cfg.Strategy,
			Recording: st.recording,
			Counters:  st.counters,
			Remaining: pcfg.Remaining(st.policy, now),
			Hands:     hands,
		}
		if err := cfg.Display.Show(frame.Mat, overlay); err != nil {
			l.logger.Debug("display failed", zap.Error(err))
		}
	}

	if cfg.Publisher != nil {
		l.publishAt(st, pcfg, state, hands, now)
		cfg.Publisher.PublishFrame(frame.Mat)
	}

	return StopSignal, stop, nil
}

// poll drains pending signals. Signals after a stop are discarded.
func (l *Live) poll() (manual, start, stop bool) {
	if l.config.Signals == nil {
		return false, false, false
	}
	for _, s := range l.config.Signals.Poll() {
		switch s {
		case SignalManualCapture:
			manual = true
		case SignalStartRecording:
			start = true
		case SignalStopSession:
			return manual, start, true
		}
	}
	return manual, start, false
}

func (l *Live) startRecording(st *liveState, now time.Time) {
	st.recording = true
	st.started = now
	st.policy = policy.Start(now)
}

func (l *Live) saveManualImage(frame *capture.Frame, st *liveState) {
	cfg := l.config
	if !cfg.SaveManualImages || cfg.Images == nil {
		return
	}
	st.images++
	path := ManualImagePath(cfg.Dataset.Dir(), cfg.Label, st.images)
	if err := cfg.Images.WriteJPEG(path, frame.Mat); err != nil {
		l.logger.Warn("failed to save capture image", zap.String("path", path), zap.Error(err))
	}
}

func (l *Live) publish(st *liveState, pcfg policy.Config, state string, hands []detector.HandLandmarks) {
	if l.config.Publisher == nil {
		return
	}
	l.publishAt(st, pcfg, state, hands, l.now())
}

func (l *Live) publishAt(st *liveState, pcfg policy.Config, state string, hands []detector.HandLandmarks, now time.Time) {
	var next float64
	if st.recording && state != StateStopped {
		next = pcfg.Remaining(st.policy, now).Seconds()
	}
	l.config.Publisher.Publish(Status{
		SessionID: st.result.SessionID,
		Mode:      store.SessionModeLive,
		State:     state,
		Label:     l.config.Label,
		Counters:  st.counters,
		Total:     st.counters.Total(),
		NextAuto:  next,
		Hands:     hands,
		UpdatedAt: now,
	})
}

// ManualImagePath returns <dataset>/<label>_imgs/<label>_NNNNN.jpg.
func ManualImagePath(datasetDir, label string, n int) string {
	return filepath.Join(datasetDir, label+"_imgs", fmt.Sprintf("%s_%05d.jpg", label, n))
}
