package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/wb-go/wbf/retry"
	"github.com/wb-go/wbf/zlog"

	"github.com/aliskhannn/thumbnailer/internal/config"
	"github.com/aliskhannn/thumbnailer/internal/processor"
	"github.com/aliskhannn/thumbnailer/internal/storage/file"
	"github.com/aliskhannn/thumbnailer/internal/walker"
	"github.com/aliskhannn/thumbnailer/internal/watch"
)

func main() {
	// Context & signals: used for graceful shutdown on system interrupts.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize logger; every line of one run carries the same run_id.
	zlog.Init()
	zlog.Logger = zlog.Logger.With().Str("run_id", uuid.NewString()).Logger()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		zlog.Logger.Error().Err(err).Msg("thumbnailer failed")
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "thumbnailer [flags] DIRECTORY",
		Short: "Create JPEG thumbnails for every image in a directory",
		Long: "thumbnailer writes NAME_thumb.jpg next to every image in DIRECTORY.\n" +
			"Images wider than --width are scaled down and re-encoded; narrower\n" +
			"images get a symbolic link to the original instead.",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.BindFlags(v, cmd.Flags()); err != nil {
				return err
			}
			v.Set("directory", args[0])

			cfg, err := config.Load(v)
			if err != nil {
				return err
			}

			return run(cmd.Context(), cfg)
		},
	}

	config.RegisterFlags(cmd.Flags())

	return cmd
}

func run(ctx context.Context, cfg *config.Config) error {
	if cfg.Verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	if err := walker.CheckDirectory(cfg.Directory); err != nil {
		return err
	}

	// Retry strategy for filesystem writes.
	strategy := retry.Strategy{
		Attempts: cfg.Retry.Attempts,
		Delay:    cfg.Retry.Delay,
		Backoff:  cfg.Retry.Backoff,
	}

	// Initialize storage, processor and walker.
	storage := file.NewStorage(cfg.Directory, strategy)
	p := processor.New(storage)
	w := walker.New(*cfg, p)

	sum, err := w.Walk(ctx)
	if err != nil {
		return err
	}
	if n := len(sum.Errors()); n > 0 {
		zlog.Logger.Warn().Int("failed", n).Msg("some files could not be processed")
	}

	if !cfg.Watch || ctx.Err() != nil {
		return nil
	}

	// Block until context is canceled (SIGINT/SIGTERM).
	return watch.New(cfg.Directory, cfg.Debounce, w).Run(ctx)
}
