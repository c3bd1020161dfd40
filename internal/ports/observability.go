package ports

import (
	"context"
	"time"
)

type Logger interface {
	Info(ctx context.Context, msg string, args ...any)
	Error(ctx context.Context, msg string, args ...any)
	Warn(ctx context.Context, msg string, args ...any)
	Debug(ctx context.Context, msg string, args ...any)
}

type Metrics interface {
	ObserveTransition(outcome string, d time.Duration)
	IncStatsCache(result string)
}

type NopLogger struct{}

func (NopLogger) Info(context.Context, string, ...any)  {}
func (NopLogger) Error(context.Context, string, ...any) {}
func (NopLogger) Warn(context.Context, string, ...any)  {}
func (NopLogger) Debug(context.Context, string, ...any) {}

type NopMetrics struct{}

func (NopMetrics) ObserveTransition(string, time.Duration) {}
func (NopMetrics) IncStatsCache(string)                    {}
