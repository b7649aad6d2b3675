package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ayusman/mudra/internal/app"
	"github.com/ayusman/mudra/internal/capture"
	"github.com/ayusman/mudra/internal/ledger"
	"github.com/ayusman/mudra/internal/output"
	"github.com/ayusman/mudra/internal/preview"
)

func NewCaptureCmd(deps *Dependencies) *cobra.Command {
	cfg := deps.Config
	var headless bool

	cmd := &cobra.Command{
		Use:   "capture <label>",
		Short: "Record landmarks for one gesture from the camera",
		Long: "Record hand landmarks from a live camera into <dataset-dir>/<label>.csv.\n" +
			"Press SPACE (or type c + Enter) to capture, q or ESC to stop. With the manual+auto\n" +
			"strategy a detection is also saved every --interval seconds.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCapture(cmd, deps, args[0], headless)
		},
	}

	flags := cmd.Flags()
	flags.IntVar(&cfg.CameraID, "camera", cfg.CameraID, "Camera device id")
	flags.StringVar(&cfg.Strategy, "strategy", cfg.Strategy, "Capture strategy: manual or manual+auto")
	flags.Float64Var(&cfg.CaptureInterval, "interval", cfg.CaptureInterval, "Seconds between automatic captures")
	flags.Float64Var(&cfg.MaxSessionSeconds, "max-session", cfg.MaxSessionSeconds, "Stop recording after this many seconds")
	flags.BoolVar(&cfg.RequireStart, "require-start", cfg.RequireStart, "Wait for s before recording")
	flags.BoolVar(&cfg.SaveManualImages, "save-images", cfg.SaveManualImages, "Save a JPEG of every manual capture")
	flags.BoolVar(&headless, "headless", false, "No preview window; read commands from the terminal only")

	return cmd
}

func runCapture(cmd *cobra.Command, deps *Dependencies, label string, headless bool) error {
	cfg := deps.Config
	log := deps.Logger
	formatter := output.NewFormatter(cmd.OutOrStdout())

	if err := ledger.ValidateLabel(label); err != nil {
		return err
	}

	ctx, stop := notifyContext(cmd.Context())
	defer stop()

	rt, err := openRuntime(ctx, deps, formatter)
	if err != nil {
		return err
	}
	defer rt.Close()

	det, err := deps.NewDetector(cfg)
	if err != nil {
		return fmt.Errorf("start detector: %w", err)
	}
	defer det.Close()

	terminal := preview.NewTerminal(ctx, cmd.InOrStdin(), log)
	var (
		display app.Display
		signals app.Signals = terminal
	)
	if !headless {
		var keys app.Signals
		display, keys = deps.NewWindow(label)
		defer display.Close()
		signals = preview.Merge(keys, terminal)
	}

	var images app.ImageWriter
	if cfg.SaveManualImages {
		images = preview.JPEGWriter{}
	}

	live := app.NewLive(app.LiveConfig{
		Label:            label,
		Strategy:         cfg.CaptureStrategy(),
		Interval:         cfg.Interval(),
		Hands:            cfg.Hands(),
		MaxHands:         cfg.MaxNumHands,
		MaxSession:       cfg.MaxSession(),
		RequireStart:     cfg.RequireStart,
		SaveManualImages: cfg.SaveManualImages,
		OpenSource: func() (capture.Source, error) {
			return deps.OpenCamera(cfg.CameraID)
		},
		Detector:  det,
		Dataset:   app.FromLedger(rt.ledger),
		Display:   display,
		Signals:   signals,
		Publisher: rt.publisher(),
		Images:    images,
		Journal:   rt.journal,
		Logger:    log,
	})

	existing, err := rt.ledger.CountRows(label)
	if err != nil {
		return err
	}
	formatter.CaptureStarted(label, existing, !cfg.RequireStart)

	started := time.Now()
	result, err := live.Run(ctx)

	reason := string(result.Reason)
	total := result.Counters.Total()
	if err != nil {
		reason = "failed"
		if total == 0 {
			total = existing
		}
	}
	formatter.CaptureStopped(reason, result.Manual, result.Auto, total, time.Since(started))
	return err
}
