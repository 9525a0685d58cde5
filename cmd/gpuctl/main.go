// Package main wires the gpuctl CLI entrypoint.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"oci-gpu-toolkit/internal/buildinfo"
	"oci-gpu-toolkit/pkg/imds"
	"oci-gpu-toolkit/pkg/oci"
)

const (
	defaultLogLevel = "warn"
	envDebug        = "DEBUG"

	logFileMaxSizeMB  = 20
	logFileMaxBackups = 5

	exitCodeSuccess      = 0
	exitCodeRuntimeError = 1
	exitCodeParseError   = 2
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], defaultRunDeps(), os.Stdout, os.Stderr)

	stop()

	if code != 0 {
		exitProcess(code)
	}
}

var exitProcess = os.Exit //nolint:gochecknoglobals // replaceable for tests

type runDeps struct {
	newLogger        func(level, logFile string) (*zap.Logger, func(), error)
	newAPI           func(cfg Context, logger *zap.Logger, observer oci.Observer) (cloudAPI, error)
	newMetadata      func(logger *zap.Logger) metadataSource
	currentBuildInfo func() buildinfo.Info
	now              func() time.Time
	isTerminal       func(w io.Writer) bool
}

var (
	errInvalidLogLevel = errors.New("invalid log level")
	errUsage           = errors.New("usage")
)

// usageError marks command line mistakes; they exit with exitCodeParseError.
type usageError struct {
	err error
}

func (e *usageError) Error() string { return e.err.Error() }

func (e *usageError) Unwrap() []error { return []error{errUsage, e.err} }

func usagef(format string, args ...any) error {
	return &usageError{err: fmt.Errorf(format, args...)}
}

func defaultRunDeps() runDeps {
	return runDeps{
		newLogger:        newLogger,
		newAPI:           newCloudAPI,
		newMetadata:      newMetadataSource,
		currentBuildInfo: buildinfo.Current,
		now:              time.Now,
		isTerminal:       isTerminal,
	}
}

func run(ctx context.Context, args []string, deps runDeps, stdout, stderr io.Writer) int {
	application := newApp(deps, stdout, stderr)
	defer application.close()

	root := newRootCommand(application)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	if err != nil {
		if !application.started || errors.Is(err, errUsage) {
			return writeError(stderr, err, exitCodeParseError)
		}

		if application.logger != nil {
			application.logger.Debug("command failed", zap.Error(err))
		}

		return writeError(stderr, err, exitCodeRuntimeError)
	}

	return exitCodeSuccess
}

func writeError(dst io.Writer, err error, code int) int {
	if err == nil {
		return code
	}

	_, _ = fmt.Fprintf(dst, "ERROR: %v\n", err)

	return code
}

// newLogger builds the production zap logger on stderr. A non-empty logFile also appends
// every entry to a rotated file.
func newLogger(level, logFile string) (*zap.Logger, func(), error) {
	if level == "" {
		level = defaultLogLevel
	}

	cfg := zap.NewProductionConfig()

	err := cfg.Level.UnmarshalText([]byte(level))
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", errInvalidLogLevel, err)
	}

	cfg.EncoderConfig.TimeKey = "timestamp"
	cfg.EncoderConfig.MessageKey = "message"
	cfg.EncoderConfig.LevelKey = "level"
	cfg.EncoderConfig.CallerKey = "caller"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	var buildOpts []zap.Option

	closeFile := func() {}

	if path := strings.TrimSpace(logFile); path != "" {
		rotator := &lumberjack.Logger{
			Filename:   path,
			MaxSize:    logFileMaxSizeMB,
			MaxBackups: logFileMaxBackups,
		}
		fileCore := zapcore.NewCore(zapcore.NewJSONEncoder(cfg.EncoderConfig), zapcore.AddSync(rotator), cfg.Level)

		buildOpts = append(buildOpts, zap.WrapCore(func(core zapcore.Core) zapcore.Core {
			return zapcore.NewTee(core, fileCore)
		}))
		closeFile = func() { _ = rotator.Close() }
	}

	logger, err := cfg.Build(buildOpts...)
	if err != nil {
		closeFile()

		return nil, nil, fmt.Errorf("build zap logger: %w", err)
	}

	return logger, func() {
		_ = logger.Sync()

		closeFile()
	}, nil
}

// logLevelFor lets DEBUG=1 in the environment force debug logging.
func logLevelFor(requested string, debugFlag bool) string {
	if debugFlag || envBool(envDebug) {
		return "debug"
	}

	return strings.TrimSpace(requested)
}

//nolint:ireturn // the command layer depends on the interface
func newCloudAPI(cfg Context, logger *zap.Logger, observer oci.Observer) (cloudAPI, error) {
	provider, err := oci.NewConfigurationProvider(cfg.Auth, cfg.OCIConfigPath, cfg.Profile)
	if err != nil {
		return nil, fmt.Errorf("configure authentication: %w", err)
	}

	client, err := oci.New(oci.Config{
		Provider:          provider,
		Region:            cfg.Region,
		RequestsPerSecond: cfg.RequestsPerSecond,
		Burst:             cfg.Concurrency,
		Observer:          observer,
		Logger:            logger,
	})
	if err != nil {
		return nil, fmt.Errorf("create OCI client: %w", err)
	}

	return client, nil
}

//nolint:ireturn // substitutable in tests
func newMetadataSource(logger *zap.Logger) metadataSource {
	var opts []imds.Option

	if endpoint := envString(envPrefix+"IMDS_ENDPOINT", ""); endpoint != "" {
		opts = append(opts, imds.WithEndpoint(endpoint))
	}

	opts = append(opts, imds.WithLogger(logger))

	return imds.New(nil, opts...)
}

func isTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}

	info, err := file.Stat()
	if err != nil {
		return false
	}

	return info.Mode()&os.ModeCharDevice != 0
}

// commandContext returns the context cobra carries, falling back to Background.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}

	return context.Background()
}
