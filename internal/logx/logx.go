package logx

import (
	"errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"log"
	"syscall"
)

// Init builds the process logger, installs it as zap's global and returns a
// flush func for main to defer.
func Init(service, level string, development bool) (*zap.Logger, func()) {
	cfg := zap.NewProductionConfig()
	if development {
		cfg = zap.NewDevelopmentConfig()
	}
	if lvl, err := zapcore.ParseLevel(level); err == nil {
		cfg.Level = zap.NewAtomicLevelAt(lvl)
	}

	logger, err := cfg.Build(zap.Fields(zap.String("service", service)))
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	zap.ReplaceGlobals(logger)

	return logger, func() {
		if err := logger.Sync(); err != nil && !isIgnorableSyncError(err) {
			log.Printf("sync logger: %v", err)
		}
	}
}

// stdout/stderr on a terminal or in a container can't be fsynced.
func isIgnorableSyncError(err error) bool {
	return errors.Is(err, syscall.EINVAL) || errors.Is(err, syscall.ENOTTY) || errors.Is(err, syscall.EBADF)
}
