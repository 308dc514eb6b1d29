// Package logging builds the process loggers used by the binaries.
package logging

import (
	"os"
	"strings"

	authgate "github.com/goliatone/go-auth-gate"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-logger/glog"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config selects the backend and level.
type Config struct {
	Name   string
	Format string
	Level  string
}

// Provider hands out named loggers and flushes on Sync.
type Provider interface {
	authgate.LoggerProvider
	Sync() error
}

// New returns a zap backed provider for the json format and a pretty glog
// provider otherwise.
func New(cfg Config) (Provider, error) {
	if cfg.Name == "" {
		cfg.Name = "authgate"
	}
	if strings.EqualFold(cfg.Format, "json") {
		return NewZap(cfg)
	}
	return NewGlog(cfg), nil
}

type glogProvider struct {
	base *glog.BaseLogger
}

// NewGlog creates a pretty console provider.
func NewGlog(cfg Config) Provider {
	level := glog.Info
	if verbose(cfg.Level) {
		level = glog.Trace
	}

	lgr := glog.NewLogger(
		glog.WithLoggerTypePretty(),
		glog.WithLevel(level),
		glog.WithName(cfg.Name),
		glog.WithAddSource(false),
		glog.WithRichErrorHandler(goerrors.ToSlogAttributes),
	)
	return glogProvider{base: lgr}
}

func (p glogProvider) GetLogger(name string) authgate.Logger {
	return p.base.GetLogger(name)
}

func (p glogProvider) Sync() error {
	return nil
}

func verbose(level string) bool {
	level = strings.ToLower(level)
	return level == "trace" || level == "debug"
}

type zapProvider struct {
	base *zap.Logger
}

// NewZap creates a JSON provider writing to stdout.
func NewZap(cfg Config) (Provider, error) {
	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewCore(zapcore.NewJSONEncoder(encoderCfg), zapcore.AddSync(os.Stdout), zapLevel(cfg.Level))

	base := zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1), zap.AddStacktrace(zapcore.ErrorLevel)).
		Named(cfg.Name)
	return zapProvider{base: base}, nil
}

// NewZapFromLogger wraps an existing zap logger.
func NewZapFromLogger(base *zap.Logger) Provider {
	return zapProvider{base: base}
}

func (p zapProvider) GetLogger(name string) authgate.Logger {
	return zapLogger{s: p.base.Named(name).Sugar()}
}

func (p zapProvider) Sync() error {
	return p.base.Sync()
}

func zapLevel(level string) zapcore.Level {
	if verbose(level) {
		return zapcore.DebugLevel
	}
	switch strings.ToLower(level) {
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

type zapLogger struct {
	s *zap.SugaredLogger
}

func (l zapLogger) Debug(msg string, args ...any) { l.s.Debugw(msg, args...) }
func (l zapLogger) Info(msg string, args ...any)  { l.s.Infow(msg, args...) }
func (l zapLogger) Warn(msg string, args ...any)  { l.s.Warnw(msg, args...) }
func (l zapLogger) Error(msg string, args ...any) { l.s.Errorw(msg, args...) }
