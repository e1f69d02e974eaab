package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/ajitpratap0/harvest/internal/host"
	"github.com/ajitpratap0/harvest/pkg/compression"
	"github.com/ajitpratap0/harvest/pkg/config"
	"github.com/ajitpratap0/harvest/pkg/errors"
	"github.com/ajitpratap0/harvest/pkg/harvest"
	"github.com/ajitpratap0/harvest/pkg/logger"
	"github.com/ajitpratap0/harvest/pkg/observability"
	"github.com/ajitpratap0/harvest/pkg/refiners"
	"github.com/ajitpratap0/harvest/pkg/scope"
)

// loadConfig reads the configuration file and applies flag and environment
// overrides.
func loadConfig(v *viper.Viper) (*config.Config, error) {
	cfg := config.Default()
	if err := config.Load(v.GetString("config"), cfg); err != nil {
		return nil, err
	}
	if events := v.GetString("events"); events != "" {
		cfg.Input.Events = events
	}
	if n := v.GetInt("max-events"); n > 0 {
		cfg.Input.MaxEvents = n
	}
	if out := v.GetString("output"); out != "" {
		cfg.Output.Path = out
	}
	if level := v.GetString("log-level"); level != "" {
		cfg.Logging.Level = level
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func run(ctx context.Context, v *viper.Viper, stdout io.Writer) error {
	cfg, err := loadConfig(v)
	if err != nil {
		return err
	}

	if err := logger.Init(logger.Config{
		Level:       cfg.Logging.Level,
		Encoding:    cfg.Logging.Encoding,
		Development: cfg.Logging.Development,
	}); err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, "failed to initialize logger")
	}
	defer func() { _ = logger.Sync() }()

	if err := observability.Initialize(cfg.Tracing); err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, "failed to initialize tracing")
	}
	defer func() { _ = observability.Shutdown(context.Background()) }()

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	runID := uuid.NewString()
	ctx = context.WithValue(ctx, logger.RunIDKey, runID)
	log := logger.WithContext(ctx).With(zap.String("component", "harvest-cli"))

	events, closeEvents, err := openEvents(cfg.Input.Events)
	if err != nil {
		return err
	}
	defer closeEvents()

	out, err := openOutput(ctx, cfg.Output)
	if err != nil {
		return err
	}
	if out != nil {
		defer func() {
			if err := out.Close(); err != nil {
				log.Warn("failed to close output", zap.Error(err))
			}
		}()
	}

	runner := host.NewRunner(events, host.Config{
		Module:           cfg.Module.Name,
		Collections:      cfg.Input.Collections,
		MaxEvents:        cfg.Input.MaxEvents,
		ReportEvery:      v.GetInt("report-every"),
		TerminateTimeout: cfg.Output.Timeout,
	}, log)

	m, err := buildModule(cfg, runner, out, stdout, log)
	if err != nil {
		return err
	}

	log.Info("starting harvest",
		zap.String("module", m.Name()),
		zap.String("foreach", m.Foreach()),
		zap.String("events", cfg.Input.Events),
		zap.Strings("refiners", m.Refiners()))

	sum, err := runner.Run(ctx, m)
	if err != nil {
		return err
	}

	st := m.Stats()
	log.Info("harvest completed",
		zap.String("stopped", sum.Stopped),
		zap.Duration("duration", sum.Duration),
		zap.Int("events", sum.Events),
		zap.Int("malformed", sum.Malformed),
		zap.Int("objects", st.Objects),
		zap.Int("crops", st.Crops),
		zap.Int("refiner_failures", st.RefinerFailures),
		zap.Float64("events_per_second", sum.Throughput))
	return nil
}

// buildModule assembles the harvesting module declared by cfg.
func buildModule(cfg *config.Config, src harvest.Source[host.Object], out scope.Scope, stdout io.Writer, log *zap.Logger) (*harvest.Module[host.Object], error) {
	level := cfg.Module.ExpertLevel
	opts := []harvest.Option[host.Object]{harvest.WithLogger[host.Object](log)}
	if cfg.Module.Pick != "" {
		opts = append(opts, harvest.WithPick(host.Truthy(cfg.Module.Pick)))
	}
	for i, rc := range cfg.Refiners {
		r, err := refiners.Build(rc, refiners.WithPrintTo(stdout))
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeConfig, "invalid refiner").
				WithDetail("index", i)
		}
		opts = append(opts, harvest.WithRefiner[host.Object](refinerName(i, rc), r))
	}

	return harvest.New(harvest.Options{
		Name:        cfg.Module.Name,
		Foreach:     cfg.Module.Foreach,
		ID:          cfg.Module.ID,
		Title:       cfg.Module.Title,
		Contact:     cfg.Module.Contact,
		ExpertLevel: &level,
		Output:      out,
	}, src, host.FieldPeeler(cfg.Module.Fields...), opts...)
}

func refinerName(i int, rc refiners.RefinerConfig) string {
	if rc.Name != "" {
		return rc.Name
	}
	return rc.Kind + "_" + strconv.Itoa(i)
}

func openEvents(name string) (io.Reader, func(), error) {
	if name == "" || name == "-" {
		return os.Stdin, func() {}, nil
	}
	f, err := os.Open(name) //nolint:gosec // G304: path comes from the operator
	if err != nil {
		return nil, nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to open events").
			WithDetail("path", name)
	}
	return f, func() { _ = f.Close() }, nil
}

// openOutput opens the root scope of the artifacts. The none kind returns a
// nil scope, which refiners treat as write nothing.
func openOutput(ctx context.Context, cfg config.OutputConfig) (scope.Scope, error) {
	var root scope.Scope
	switch cfg.Kind {
	case config.OutputNone:
		return nil, nil
	case config.OutputLocal:
		local, err := scope.NewLocal(cfg.Path)
		if err != nil {
			return nil, err
		}
		root = local
	case config.OutputS3:
		up, err := scope.NewS3Uploader(ctx, cfg.S3)
		if err != nil {
			return nil, err
		}
		root = scope.NewBucket(ctx, up, cfg.Path)
	case config.OutputGCS:
		up, err := scope.NewGCSUploader(ctx, cfg.GCS)
		if err != nil {
			return nil, err
		}
		root = closing{Scope: scope.NewBucket(ctx, up, cfg.Path), after: up.Close}
	default:
		return nil, errors.Newf(errors.ErrorTypeConfig, "unknown output kind %q", cfg.Kind)
	}

	codec, err := compression.NewCodec(&cfg.Compression)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "invalid output compression")
	}
	return scope.WithCompression(root, codec), nil
}

// closing releases a client after its scope.
type closing struct {
	scope.Scope
	after func() error
}

func (c closing) Close() error {
	err := c.Scope.Close()
	if aerr := c.after(); err == nil {
		err = aerr
	}
	return err
}
