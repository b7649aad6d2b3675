package cli

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"

	"github.com/ayusman/mudra/internal/app"
	"github.com/ayusman/mudra/internal/output"
	"github.com/ayusman/mudra/internal/preprocess"
	"github.com/ayusman/mudra/internal/preview"
)

func NewIngestCmd(deps *Dependencies) *cobra.Command {
	cfg := deps.Config
	var labels []string

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Extract landmarks from labelled video folders",
		Long: "Read <videos-dir>/<LABEL>/*.{mp4,mov,mkv,avi}, sample every --frame-step frames,\n" +
			"preprocess and detect, and append one row per detected hand to <dataset-dir>/<LABEL>.csv.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIngest(cmd, deps, labels)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&cfg.VideosDir, "videos-dir", cfg.VideosDir, "Directory with one folder of videos per label")
	flags.StringSliceVar(&labels, "label", nil, "Only ingest these label folders (repeatable)")
	flags.IntVar(&cfg.FrameStep, "frame-step", cfg.FrameStep, "Process every k-th frame")
	flags.Var(&cfg.TargetSize, "target-size", "Resize frames to WxH before detection")
	flags.BoolVar(&cfg.DenoiseEnabled, "denoise", cfg.DenoiseEnabled, "Apply non-local means denoising")
	flags.BoolVar(&cfg.EqualizeEnabled, "equalize", cfg.EqualizeEnabled, "Equalize the luminance histogram")
	flags.StringVar(&cfg.DebugDir, "debug-dir", cfg.DebugDir, "Save preprocessed frames with a detection here")

	return cmd
}

func runIngest(cmd *cobra.Command, deps *Dependencies, labels []string) error {
	cfg := deps.Config
	log := deps.Logger
	formatter := output.NewFormatter(cmd.OutOrStdout())

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

	var images app.ImageWriter
	if cfg.DebugDir != "" {
		images = preview.JPEGWriter{}
	}

	ingest := app.NewIngest(app.IngestConfig{
		VideosDir: cfg.VideosDir,
		Labels:    labels,
		FrameStep: cfg.FrameStep,
		Hands:     cfg.Hands(),
		MaxHands:  cfg.MaxNumHands,
		DebugDir:  cfg.DebugDir,
		OpenVideo: deps.OpenVideo,
		Preprocess: preprocess.New(preprocess.Config{
			Denoise:  cfg.DenoiseEnabled,
			Equalize: cfg.EqualizeEnabled,
			Width:    cfg.TargetSize.Width,
			Height:   cfg.TargetSize.Height,
		}, log),
		Detector:  det,
		Dataset:   app.FromLedger(rt.ledger),
		Publisher: rt.publisher(),
		Images:    images,
		Journal:   rt.journal,
		Logger:    log,
	})

	result, err := ingest.Run(ctx)
	if errors.Is(err, app.ErrNoVideos) {
		formatter.Warning(err.Error())
		return nil
	}

	for _, v := range result.Videos {
		if v.Err != nil {
			formatter.VideoFailed(v.Label, filepath.Base(v.Path), v.Err)
		} else {
			formatter.VideoDone(v.Label, filepath.Base(v.Path), v.Appended)
		}
	}

	names := make([]string, 0, len(result.Labels))
	for name := range result.Labels {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		c := result.Labels[name]
		formatter.LabelTotal(name, c.Existing, c.Session)
	}
	formatter.IngestSummary(len(result.Videos), result.Failed(), result.Total())
	return err
}
