package logger

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewProductionLogger creates a JSON logger at info level writing to stderr.
// Sampling is off so every per-segment failure is reported.
func NewProductionLogger() (*zap.Logger, error) {
	config := zap.NewProductionConfig()
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	config.Sampling = nil
	return build(config, "production")
}

// NewDevelopmentLogger creates a console logger at debug level with caller
// information, writing to stderr
func NewDevelopmentLogger() (*zap.Logger, error) {
	return build(zap.NewDevelopmentConfig(), "development")
}

// NewCLILogger creates the logger used by the command line tool. Both variants
// write to stderr so stdout stays free for the run summary.
func NewCLILogger(debug bool) (*zap.Logger, error) {
	if debug {
		return NewDevelopmentLogger()
	}
	return NewProductionLogger()
}

func build(config zap.Config, name string) (*zap.Logger, error) {
	config.OutputPaths = []string{"stderr"}
	config.ErrorOutputPaths = []string{"stderr"}
	logger, err := config.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build %s logger: %w", name, err)
	}
	return logger, nil
}
