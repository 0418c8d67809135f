package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// gormLogger adapts zerolog to GORM's logger interface. Queries are logged at
// debug level, slow queries at warn, and failures other than "record not
// found" at error.
type gormLogger struct {
	log           zerolog.Logger
	slowThreshold time.Duration
}

func newGormLogger(log zerolog.Logger, slowThreshold time.Duration) gormlogger.Interface {
	return &gormLogger{
		log:           log.With().Str("component", "gorm").Logger(),
		slowThreshold: slowThreshold,
	}
}

func (l *gormLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	cp := *l
	switch level {
	case gormlogger.Silent:
		cp.log = cp.log.Level(zerolog.Disabled)
	case gormlogger.Error:
		cp.log = cp.log.Level(zerolog.ErrorLevel)
	case gormlogger.Warn:
		cp.log = cp.log.Level(zerolog.WarnLevel)
	case gormlogger.Info:
		cp.log = cp.log.Level(zerolog.DebugLevel)
	}
	return &cp
}

func (l *gormLogger) Info(ctx context.Context, msg string, args ...any) {
	l.log.Info().Msgf(msg, args...)
}

func (l *gormLogger) Warn(ctx context.Context, msg string, args ...any) {
	l.log.Warn().Msgf(msg, args...)
}

func (l *gormLogger) Error(ctx context.Context, msg string, args ...any) {
	l.log.Error().Msgf(msg, args...)
}

func (l *gormLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	elapsed := time.Since(begin)
	switch {
	case err != nil && !errors.Is(err, gorm.ErrRecordNotFound):
		sql, rows := fc()
		l.log.Error().Err(err).Dur("elapsed", elapsed).Int64("rows", rows).Str("sql", sql).Msg("query failed")
	case l.slowThreshold > 0 && elapsed > l.slowThreshold:
		sql, rows := fc()
		l.log.Warn().Dur("elapsed", elapsed).Int64("rows", rows).Str("sql", sql).Msg("slow query")
	default:
		if e := l.log.Debug(); e.Enabled() {
			sql, rows := fc()
			e.Dur("elapsed", elapsed).Int64("rows", rows).Str("sql", sql).Msg("query")
		}
	}
}
