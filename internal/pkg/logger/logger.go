// Package logger holds the notifier's process-wide zap logger.
//
// The level lives in a zap.AtomicLevel shared with the admin endpoint, so
// operators can switch to debug on a running instance. Field helpers keep
// the keys used for recipients, notifications and channels identical in
// every component, which is what log queries filter on.
package logger

import (
	"fmt"
	"net/http"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Field keys shared by every component.
const (
	KeyRecipient      = "recipient"
	KeyNotificationID = "notification_id"
	KeyChannel        = "channel"
	KeyType           = "type"
)

var (
	global      *zap.Logger
	atomicLevel = zap.NewAtomicLevel()
	once        sync.Once
)

// Init builds the global logger once; later calls are no-ops.
// format is "json" (default) or "console".
func Init(level, format string) error {
	var initErr error
	once.Do(func() {
		if err := atomicLevel.UnmarshalText([]byte(level)); err != nil {
			initErr = fmt.Errorf("parse log level %q: %w", level, err)
			return
		}

		cfg := zap.NewProductionConfig()
		cfg.EncoderConfig.TimeKey = "ts"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		if format == "console" {
			cfg = zap.NewDevelopmentConfig()
			cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		}
		cfg.Level = atomicLevel

		l, err := cfg.Build(zap.AddCallerSkip(1), zap.Fields(zap.String("service", "notifier")))
		if err != nil {
			initErr = fmt.Errorf("build logger: %w", err)
			return
		}
		global = l
	})
	return initErr
}

// GetLevel returns the current level.
func GetLevel() zapcore.Level {
	return atomicLevel.Level()
}

// L returns the global logger. Panics if Init has not been called.
func L() *zap.Logger {
	if global == nil {
		panic("logger.Init() must be called before logger.L()")
	}
	return global
}

func Debug(msg string, fields ...zap.Field) { L().Debug(msg, fields...) }

func Info(msg string, fields ...zap.Field) { L().Info(msg, fields...) }

func Warn(msg string, fields ...zap.Field) { L().Warn(msg, fields...) }

func Error(msg string, fields ...zap.Field) { L().Error(msg, fields...) }

// Recipient tags the user a notification is addressed to.
func Recipient(userID string) zap.Field { return zap.String(KeyRecipient, userID) }

// NotificationID tags one inbox row.
func NotificationID(id string) zap.Field { return zap.String(KeyNotificationID, id) }

// Channel tags a delivery channel (in_app, email, push).
func Channel(channel string) zap.Field { return zap.String(KeyChannel, channel) }

// Type tags a notification type.
func Type(t string) zap.Field { return zap.String(KeyType, t) }

// LevelHandler serves the level over HTTP:
//
//	GET /api/v1/admin/log/level                        → {"level":"info"}
//	PUT /api/v1/admin/log/level -d '{"level":"debug"}' → changes level
func LevelHandler() http.Handler {
	return atomicLevel
}

// Sync flushes buffered entries. Safe before Init.
func Sync() error {
	if global == nil {
		return nil
	}
	return global.Sync()
}
