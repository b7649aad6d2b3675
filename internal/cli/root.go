package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ayusman/mudra/internal/app"
	"github.com/ayusman/mudra/internal/capture"
	"github.com/ayusman/mudra/internal/config"
	"github.com/ayusman/mudra/internal/detector"
	"github.com/ayusman/mudra/internal/logger"
	"github.com/ayusman/mudra/internal/preview"
)

// Version is overridden at build time with -ldflags.
var Version = "dev"

// Dependencies are the collaborators shared by all commands. Fields left nil
// are filled with the production implementations.
type Dependencies struct {
	Config *config.Config
	Logger *zap.Logger

	NewDetector func(cfg *config.Config) (detector.Detector, error)
	OpenCamera  func(id int) (capture.Source, error)
	OpenVideo   func(path string, step int) (capture.Source, error)

	// NewWindow opens the preview for a capture session.
	NewWindow func(label string) (app.Display, app.Signals)

	Stdin  io.Reader
	Stdout io.Writer
}

func (d *Dependencies) defaults() {
	if d.Config == nil {
		d.Config = config.Default()
	}
	if d.NewDetector == nil {
		d.NewDetector = func(cfg *config.Config) (detector.Detector, error) {
			return detector.NewMediaPipeDetector(detector.Config{
				MaxHands:        cfg.MaxNumHands,
				MinConfidence:   cfg.MinDetectionConfidence,
				MinTrackingConf: cfg.MinTrackingConfidence,
			})
		}
	}
	if d.OpenCamera == nil {
		d.OpenCamera = func(id int) (capture.Source, error) {
			cam, err := capture.OpenCamera(id, capture.DefaultCameraOptions())
			if err != nil {
				return nil, err
			}
			return cam, nil
		}
	}
	if d.NewWindow == nil {
		d.NewWindow = func(label string) (app.Display, app.Signals) {
			w := preview.NewWindow(preview.WindowTitle(label))
			return w, w
		}
	}
	if d.Stdin == nil {
		d.Stdin = os.Stdin
	}
	if d.Stdout == nil {
		d.Stdout = os.Stdout
	}
}

func NewRootCmd(deps *Dependencies) *cobra.Command {
	deps.defaults()
	cfg := deps.Config

	rootCmd := &cobra.Command{
		Use:   "mudra",
		Short: "Capture hand landmark datasets",
		Long: "mudra records 21-point hand landmarks from a camera or from labelled video folders\n" +
			"into one CSV per gesture label, ready for classifier training.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.Validate(); err != nil {
				return err
			}
			if deps.Logger == nil {
				log, err := logger.New(cfg.LogLevel)
				if err != nil {
					return err
				}
				deps.Logger = log
			}
			if cfg.Source != "" {
				deps.Logger.Debug("config loaded", zap.String("path", cfg.Source))
			}
			return nil
		},
	}

	rootCmd.Version = Version
	rootCmd.SetVersionTemplate(fmt.Sprintf("mudra %s\n", Version))
	rootCmd.SetIn(deps.Stdin)
	rootCmd.SetOut(deps.Stdout)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfg.DatasetDir, "dataset-dir", cfg.DatasetDir, "Directory holding one <label>.csv per gesture")
	flags.StringVar(&cfg.JournalPath, "journal", cfg.JournalPath, `Session journal database ("off" disables; default <dataset-dir>/mudra.db)`)
	flags.StringVar(&cfg.ListenAddr, "listen", cfg.ListenAddr, "Serve live status, metrics and the dataset API on this address")
	flags.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level: debug, info, warn or error")
	flags.IntVar(&cfg.MaxNumHands, "max-hands", cfg.MaxNumHands, "Maximum hands the detector tracks")
	flags.BoolVar(&cfg.AllHands, "all-hands", cfg.AllHands, "Save every detected hand on automatic and video captures")
	flags.Float64Var(&cfg.MinDetectionConfidence, "min-detection-confidence", cfg.MinDetectionConfidence, "Detector confidence threshold")
	flags.Float64Var(&cfg.MinTrackingConfidence, "min-tracking-confidence", cfg.MinTrackingConfidence, "Detector tracking threshold")

	rootCmd.AddCommand(NewCaptureCmd(deps))
	rootCmd.AddCommand(NewIngestCmd(deps))
	rootCmd.AddCommand(NewCountCmd(deps))
	rootCmd.AddCommand(NewSessionsCmd(deps))
	rootCmd.AddCommand(NewServeCmd(deps))

	return rootCmd
}
