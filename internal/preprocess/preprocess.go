// Package preprocess implements the optional per-frame transform chain used
// by batch ingestion: denoise, brightness equalization, resize.
package preprocess

import (
	"fmt"

	"github.com/ayusman/mudra/internal/logger"
	"github.com/ayusman/mudra/internal/metrics"
	"go.uber.org/zap"
	"gocv.io/x/gocv"
)

// Stage is a single transform. Apply writes its result into dst and must not
// modify src.
type Stage interface {
	Name() string
	Apply(src gocv.Mat, dst *gocv.Mat) error
}

// Config toggles the stages of the default chain.
type Config struct {
	Denoise  bool
	Equalize bool

	// Width and Height set the resize target; resize is skipped when either is zero.
	Width  int
	Height int
}

// DefaultConfig matches the batch defaults: denoise and equalize on, 640x480.
func DefaultConfig() Config {
	return Config{
		Denoise:  true,
		Equalize: true,
		Width:    640,
		Height:   480,
	}
}

// Chain runs stages in order. A stage that fails is skipped and its input
// flows to the next stage unchanged.
type Chain struct {
	stages []Stage
	logger *zap.Logger
}

// New builds the default chain from cfg, in the fixed order
// denoise, equalize, resize.
func New(cfg Config, log *zap.Logger) *Chain {
	var stages []Stage
	if cfg.Denoise {
		stages = append(stages, Denoise())
	}
	if cfg.Equalize {
		stages = append(stages, Equalize())
	}
	if cfg.Width > 0 && cfg.Height > 0 {
		stages = append(stages, Resize(cfg.Width, cfg.Height))
	}
	return NewChain(log, stages...)
}

// NewChain builds a chain from explicit stages.
func NewChain(log *zap.Logger, stages ...Stage) *Chain {
	return &Chain{
		stages: stages,
		logger: logger.OrNop(log),
	}
}

// Stages returns the stage names in execution order.
func (c *Chain) Stages() []string {
	names := make([]string, len(c.stages))
	for i, s := range c.stages {
		names[i] = s.Name()
	}
	return names
}

// Apply runs the chain over src and returns a new Mat owned by the caller.
// src is never modified. Apply does not fail: the worst case is a copy of src.
func (c *Chain) Apply(src gocv.Mat) gocv.Mat {
	cur := src.Clone()

	for _, stage := range c.stages {
		out := gocv.NewMat()
		if err := runStage(stage, cur, &out); err != nil {
			out.Close()
			metrics.PreprocessFailuresTotal.WithLabelValues(stage.Name()).Inc()
			c.logger.Warn("preprocessing stage skipped",
				zap.String("stage", stage.Name()),
				zap.Error(err),
			)
			continue
		}
		cur.Close()
		cur = out
	}

	return cur
}

// runStage converts panics and empty outputs into errors.
func runStage(stage Stage, src gocv.Mat, dst *gocv.Mat) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	if src.Empty() {
		return fmt.Errorf("empty input")
	}
	if err := stage.Apply(src, dst); err != nil {
		return err
	}
	if dst.Empty() {
		return fmt.Errorf("empty output")
	}
	return nil
}
