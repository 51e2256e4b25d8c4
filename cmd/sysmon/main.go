package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"codeberg.org/mutker/sysmon/internal/bootstrap"
	"codeberg.org/mutker/sysmon/internal/collector"
	"codeberg.org/mutker/sysmon/internal/config"
	"codeberg.org/mutker/sysmon/internal/errors"
	"codeberg.org/mutker/sysmon/internal/gpu"
	"codeberg.org/mutker/sysmon/internal/host"
	"codeberg.org/mutker/sysmon/internal/logger"
	"codeberg.org/mutker/sysmon/internal/pid"
	"codeberg.org/mutker/sysmon/internal/provider"
	"codeberg.org/mutker/sysmon/internal/render"
	"codeberg.org/mutker/sysmon/internal/runstate"
	"codeberg.org/mutker/sysmon/internal/scheduler"
	"codeberg.org/mutker/sysmon/internal/sink"
	"codeberg.org/mutker/sysmon/internal/telemetry"
	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/spf13/pflag"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		return 1
	}

	logger.Init(cfg.Debug, cfg.Verbose, logger.IsService())
	logger.Debug().Str("config", cfg.ConfigFile).Msg("Config loaded")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	identity, err := host.NewIdentifier().Identify(ctx)
	if identity == nil {
		logger.Error().Err(err).Msg("failed to identify host")
		return 1
	}
	if err != nil {
		logger.Warn().Err(err).Msg("host identity is incomplete")
	}

	console := sink.NewConsole(os.Stdout, cfg.Verbose)
	if cfg.Console {
		if err := console.PrintHost(identity); err != nil {
			logger.Warn().Err(err).Msg("failed to print host info")
		}
	}

	gpus := gpu.NewSampler(gpu.NewNVMLLibrary(), logger.Default())
	defer func() {
		if err := gpus.Shutdown(); err != nil {
			logger.Error().Err(err).Msg("failed to shut down NVML")
		}
	}()

	metrics := scheduler.NewMetrics()
	var lock *pid.File

	initialize := func(ctx context.Context) (*scheduler.Pipeline, error) {
		if _, err := bootstrap.New(cfg.Bootstrap, bootstrap.NewRunner(), logger.Default()).Run(ctx, identity); err != nil {
			return nil, err
		}
		if cfg.Console {
			fmt.Println(render.Separator)
		}

		l, err := pid.Acquire(cfg.LogDir)
		if err != nil {
			return nil, err
		}
		lock = l

		providers, err := provider.FromConfig(cfg, provider.NewSystem(), gpus)
		if err != nil {
			return nil, err
		}

		assembler := collector.New(identity, providers, cfg.CollectBudget(), collector.WithLogger(logger.Default()))
		assembler.OnFailure = metrics.ProviderFailed

		sinks, err := buildSinks(ctx, cfg, identity, console, metrics)
		if err != nil {
			return nil, err
		}

		dispatcher := sink.NewDispatcher(cfg.SinkTimeoutDuration(), logger.Default(), sinks...)
		dispatcher.OnFailure = metrics.SinkFailed

		return &scheduler.Pipeline{Assembler: assembler, Dispatcher: dispatcher}, nil
	}

	s := scheduler.New(initialize, cfg.IntervalDuration(),
		scheduler.WithLogger(logger.Default()),
		scheduler.WithMetrics(metrics),
	)
	s.OnStateChange = notifySystemd

	err = s.Run(ctx)

	if lock != nil {
		if err := lock.Release(); err != nil {
			logger.Error().Err(err).Msg("failed to remove pid file")
		}
	}

	if err != nil {
		logFatal(err)
		return 1
	}

	logger.Info().Msg("Exiting...")
	return 0
}

// buildSinks returns the enabled sinks in dispatch order: console, file,
// remote. Already opened sinks are closed when a later one fails.
func buildSinks(
	ctx context.Context, cfg *config.Config, identity *telemetry.HostIdentity,
	console *sink.Console, metrics *scheduler.Metrics,
) ([]sink.Sink, error) {
	var sinks []sink.Sink
	fail := func(err error) ([]sink.Sink, error) {
		for _, s := range sinks {
			s.Close()
		}
		return nil, err
	}

	if cfg.Console {
		sinks = append(sinks, console)
	}

	if path := cfg.LogPath(); path != "" {
		f, err := sink.NewFile(path)
		if err != nil {
			return fail(err)
		}
		logger.Info().Str("path", f.Path()).Msg("Appending samples to log file")
		sinks = append(sinks, f)
	}

	if !cfg.Remote.Enabled {
		logger.Debug().Msg("Remote reporting disabled")
		return sinks, nil
	}

	store, err := runstate.Open(ctx, cfg.RemoteStatePath(), logger.Default())
	if err != nil {
		return fail(errors.New().Wrap(errors.ErrInitSinks, err))
	}

	remote, err := sink.NewRemote(ctx, cfg.Remote, identity, store, logger.Default(), sink.WithGatherer(metrics.Registry))
	if err != nil {
		store.Close()
		return fail(err)
	}

	return append(sinks, remote), nil
}

func notifySystemd(state scheduler.State) {
	var msg string
	switch state {
	case scheduler.Running:
		msg = daemon.SdNotifyReady
	case scheduler.Terminating:
		msg = daemon.SdNotifyStopping
	default:
		return
	}

	if _, err := daemon.SdNotify(false, msg); err != nil {
		logger.Debug().Err(err).Msg("systemd notification failed")
	}
}

func logFatal(err error) {
	var appErr errors.Error
	if errors.As(err, &appErr) {
		logger.ErrorWithCode(appErr).Bool("fatal", errors.IsFatal(err)).Msg("sysmon stopped")
		return
	}
	logger.Error().Err(err).Msg("sysmon stopped")
}
