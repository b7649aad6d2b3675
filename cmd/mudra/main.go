package main

import (
	"context"
	"fmt"
	"os"

	"github.com/ayusman/mudra/internal/cli"
	"github.com/ayusman/mudra/internal/config"
	"github.com/ayusman/mudra/internal/output"
)

func main() {
	if err := run(); err != nil {
		formatter := output.NewFormatter(os.Stderr)
		formatter.Error(err.Error())
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	deps := &cli.Dependencies{Config: cfg}
	defer func() {
		if deps.Logger != nil {
			_ = deps.Logger.Sync()
		}
	}()

	return cli.NewRootCmd(deps).ExecuteContext(context.Background())
}
