package gormzerologger

import (
	"context"
	"errors"
	"littlefolio/internal/models/cllog"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// GormZerologger branche les traces gorm sur zerolog
type GormZerologger struct {
	Logger                    zerolog.Logger
	LogLevel                  logger.LogLevel
	SlowThreshold             time.Duration
	IgnoreRecordNotFoundError bool
}

func New(base zerolog.Logger, level string, slow time.Duration) *GormZerologger {
	if slow <= 0 {
		slow = 200 * time.Millisecond
	}
	return &GormZerologger{
		Logger:                    base.With().Str("component", "gorm").Logger(),
		LogLevel:                  gormLevel(level),
		SlowThreshold:             slow,
		IgnoreRecordNotFoundError: true,
	}
}

// en info on ne trace que les requêtes lentes, debug trace tout
func gormLevel(level string) logger.LogLevel {
	switch level {
	case "debug", "trace":
		return logger.Info
	case "error":
		return logger.Error
	case "silent":
		return logger.Silent
	default:
		return logger.Warn
	}
}

func (l *GormZerologger) LogMode(level logger.LogLevel) logger.Interface {
	clone := *l
	clone.LogLevel = level
	return &clone
}

func (l *GormZerologger) event(ctx context.Context, ev *zerolog.Event) *zerolog.Event {
	if id := cllog.RequestID(ctx); id != "" {
		ev = ev.Str("request_id", id)
	}
	return ev
}

func (l *GormZerologger) Info(ctx context.Context, msg string, data ...interface{}) {
	if l.LogLevel >= logger.Info {
		l.event(ctx, l.Logger.Info()).Msgf(msg, data...)
	}
}

func (l *GormZerologger) Warn(ctx context.Context, msg string, data ...interface{}) {
	if l.LogLevel >= logger.Warn {
		l.event(ctx, l.Logger.Warn()).Msgf(msg, data...)
	}
}

func (l *GormZerologger) Error(ctx context.Context, msg string, data ...interface{}) {
	if l.LogLevel >= logger.Error {
		l.event(ctx, l.Logger.Error()).Msgf(msg, data...)
	}
}

func (l *GormZerologger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.LogLevel <= logger.Silent {
		return
	}

	elapsed := time.Since(begin)

	switch {
	case err != nil && l.LogLevel >= logger.Error && (!errors.Is(err, gorm.ErrRecordNotFound) || !l.IgnoreRecordNotFoundError):
		sql, rows := fc()
		l.event(ctx, l.Logger.Error()).
			Err(err).
			Dur("elapsed", elapsed).
			Int64("rows", rows).
			Str("sql", sql).
			Msg("erreur requête")

	case l.SlowThreshold != 0 && elapsed > l.SlowThreshold && l.LogLevel >= logger.Warn:
		sql, rows := fc()
		l.event(ctx, l.Logger.Warn()).
			Dur("elapsed", elapsed).
			Dur("threshold", l.SlowThreshold).
			Int64("rows", rows).
			Str("sql", sql).
			Msg("requête lente")

	case l.LogLevel >= logger.Info:
		sql, rows := fc()
		l.event(ctx, l.Logger.Debug()).
			Dur("elapsed", elapsed).
			Int64("rows", rows).
			Str("sql", sql).
			Msg("requête")
	}
}
