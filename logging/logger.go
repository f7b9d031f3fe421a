package logging

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/simon020286/go-autopilot/models"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config contains the logger configuration
type Config struct {
	Debug  bool   // Enable debug level logging
	Format string // "json" or "human"
	File   string // Optional log file, in addition to stderr
}

// DefaultConfig returns a human readable, info level configuration
func DefaultConfig() Config {
	return Config{Format: "human"}
}

// New builds a zap logger for cfg
func New(cfg Config) (*zap.Logger, error) {
	var zapConfig zap.Config

	if cfg.Format == "json" {
		zapConfig = zap.NewProductionConfig()
	} else {
		zapConfig = zap.NewDevelopmentConfig()
		zapConfig.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		zapConfig.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}

	outputPaths := []string{"stderr"}
	if cfg.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		outputPaths = append(outputPaths, cfg.File)
	}
	zapConfig.OutputPaths = outputPaths

	if cfg.Debug {
		zapConfig.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}

	logger, err := zapConfig.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return logger, nil
}

type ctxKey struct{}

// WithLogger stores logger in ctx
func WithLogger(ctx context.Context, logger *zap.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, logger)
}

// FromContext returns the logger stored in ctx, or a no-op logger
func FromContext(ctx context.Context) *zap.Logger {
	if ctx != nil {
		if l, ok := ctx.Value(ctxKey{}).(*zap.Logger); ok && l != nil {
			return l
		}
	}
	return zap.NewNop()
}

// ErrorFields describes err with the fields of its taxonomy class
func ErrorFields(err error) []zap.Field {
	if err == nil {
		return nil
	}
	fields := []zap.Field{zap.Error(err), zap.String("kind", models.ErrorKind(err))}

	var se *models.StepError
	if errors.As(err, &se) {
		fields = append(fields, zap.Int("step", se.Index+1), zap.String("step_type", se.Type))
		if se.ID != "" {
			fields = append(fields, zap.String("step_id", se.ID))
		}
	}
	var de *models.DomainError
	if errors.As(err, &de) {
		fields = append(fields, zap.String("operation", de.Operation), zap.String("code", de.Code))
	}
	var te *models.TransportError
	if errors.As(err, &te) && te.Operation != "" {
		fields = append(fields, zap.String("operation", te.Operation))
	}
	var ce *models.CapabilityError
	if errors.As(err, &ce) {
		fields = append(fields, zap.String("operation", ce.Operation))
	}
	return fields
}
