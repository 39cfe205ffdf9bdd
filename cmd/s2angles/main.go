package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/airbusgeo/s2angles/cmd"
	"github.com/airbusgeo/s2angles/internal/angles"
	"github.com/airbusgeo/s2angles/internal/log"
	"github.com/airbusgeo/s2angles/internal/metrics"
	"github.com/airbusgeo/s2angles/internal/pipeline"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const (
	exitOK    = 0
	exitError = 1
	exitUsage = 2
)

// usageError is returned when the command line is invalid
type usageError struct {
	error
}

func (e usageError) Unwrap() error {
	return e.error
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	root := newRootCommand(stdout)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	if err == nil {
		return exitOK
	}
	var uerr usageError
	if errors.As(err, &uerr) {
		fmt.Fprintln(stderr, "Error:", uerr.Error())
		fmt.Fprint(stderr, root.UsageString())
		return exitUsage
	}
	fmt.Fprintln(stderr, pipeline.Diagnostic(err))
	return exitError
}

func newRootCommand(stdout io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:   "s2angles <input-path>",
		Short: "Generate the solar and view angle rasters of a Sentinel-2 L2A product",
		Long: `Generate the solar zenith, solar azimuth, view zenith and view azimuth rasters
of a Sentinel-2 L2A product, on the pixel grid of its red band (B04).

<input-path> is a .SAFE folder, a .zip archive (local or gs://), a folder containing
the metadata and the band files, or a tile metadata file (MTD_TL.xml).

The command is configured with the S2ANGLES_* environment variables.`,
		Args: func(c *cobra.Command, args []string) error {
			if err := cobra.ExactArgs(1)(c, args); err != nil {
				return usageError{err}
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(c *cobra.Command, args []string) error {
			return generate(c.Context(), args[0], stdout)
		},
	}
	root.SetFlagErrorFunc(func(c *cobra.Command, err error) error {
		return usageError{err}
	})
	return root
}

func generate(ctx context.Context, arg string, stdout io.Writer) error {
	cfg, err := LoadConfig()
	if err != nil {
		return err
	}
	if err := log.Init(log.Config{Format: log.Format(cfg.Log.Format), Level: cfg.Log.Level}); err != nil {
		return angles.NewConfigurationError("%v", err)
	}
	defer log.Sync()

	if err := cmd.InitGDAL(cfg.GDAL); err != nil {
		return angles.NewConfigurationError("%v", err)
	}
	pcfg, err := cfg.Pipeline()
	if err != nil {
		return err
	}

	input := resolveInput(arg, cfg.InputDir)
	outputDir := resolveOutput(cfg.OutputDir, cfg.InputDir)
	log.Logger(ctx).Sugar().Infof("generating the angle rasters of %s (%s)", input, cfg)

	collector := metrics.NewCollector()
	p, err := pipeline.New(pcfg, collector)
	if err != nil {
		return err
	}
	outputs, err := p.Generate(ctx, input, outputDir)
	if cfg.MetricsFile != "" {
		if merr := collector.WriteToTextfile(cfg.MetricsFile); merr != nil {
			log.Logger(ctx).Error("failed to write metrics", zap.String("file", cfg.MetricsFile), zap.Error(merr))
		}
	}
	if err != nil {
		log.Logger(ctx).Error("generation failed", zap.Error(err))
		return err
	}

	for _, path := range outputs.Paths() {
		fmt.Fprintln(stdout, path)
	}
	log.Logger(ctx).Info("done", zap.Strings("outputs", outputs.Paths()))
	return nil
}
