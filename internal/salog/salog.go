// Package salog is the process-wide structured logger shared by the
// monitor, admission tracker, gossip announcer, and the salusctl CLI. It
// promotes go.uber.org/zap — already resolved transitively through the
// libp2p/ipfs stack pulled in by the gossip package — to a first-party,
// directly-imported logging choice.
package salog

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds a production-style zap logger at the given level ("debug",
// "info", "warn", or "error"). An unrecognized level falls back to "info".
func New(level string) *zap.Logger {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(parseLevel(level))
	logger, err := cfg.Build()
	if err != nil {
		// zap.NewProductionConfig().Build() only fails on a broken sink
		// configuration, which cannot happen with the defaults above.
		panic(fmt.Sprintf("salog: building logger: %v", err))
	}
	return logger
}

// Noop returns a logger that discards everything, for tests and for
// components constructed without an explicit logger.
func Noop() *zap.Logger { return zap.NewNop() }

func parseLevel(level string) zapcore.Level {
	switch level {
	case "debug":
		return zapcore.DebugLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}
