package logging

import (
	"context"

	"github.com/rs/zerolog"
)

type contextKey int

const (
	loggerKey contextKey = iota
	requestIDKey
)

// WithLogger returns ctx carrying logger. A nil logger stores the default.
func WithLogger(ctx context.Context, logger *zerolog.Logger) context.Context {
	if logger == nil {
		logger = Default()
	}
	return context.WithValue(ctx, loggerKey, logger)
}

// FromContext returns the logger carried by ctx, or the default logger.
func FromContext(ctx context.Context) *zerolog.Logger {
	if ctx == nil {
		return Default()
	}
	if logger, ok := ctx.Value(loggerKey).(*zerolog.Logger); ok && logger != nil {
		return logger
	}
	return Default()
}

// Attach returns ctx carrying fallback unless ctx already has a logger.
// Components call it before adding fields so the fields land on their
// configured logger rather than on the default.
func Attach(ctx context.Context, fallback *zerolog.Logger) context.Context {
	if _, ok := ctx.Value(loggerKey).(*zerolog.Logger); ok || fallback == nil {
		return ctx
	}
	return WithLogger(ctx, fallback)
}

// WithRequestID stores the HTTP request id and tags the context logger
// with it.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	ctx = context.WithValue(ctx, requestIDKey, requestID)
	return with(ctx, func(c zerolog.Context) zerolog.Context {
		return c.Str("request_id", requestID)
	})
}

// RequestID returns the request id stored by WithRequestID.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// WithVIN tags the context logger with a vehicle.
func WithVIN(ctx context.Context, vin string) context.Context {
	return with(ctx, func(c zerolog.Context) zerolog.Context {
		return c.Str("vin", vin)
	})
}

// WithDocument tags the context logger with an extraction.
func WithDocument(ctx context.Context, documentID, documentType string) context.Context {
	return with(ctx, func(c zerolog.Context) zerolog.Context {
		return c.Str("document_id", documentID).Str("document_type", documentType)
	})
}

// WithBatch tags log lines emitted while processing a fleet batch.
func WithBatch(ctx context.Context, batchID string, size int) context.Context {
	return with(ctx, func(c zerolog.Context) zerolog.Context {
		return c.Str("batch_id", batchID).Int("batch_size", size)
	})
}

// WithOperation tags the context logger with the running operation.
func WithOperation(ctx context.Context, operation string) context.Context {
	return with(ctx, func(c zerolog.Context) zerolog.Context {
		return c.Str("operation", operation)
	})
}

func with(ctx context.Context, fields func(zerolog.Context) zerolog.Context) context.Context {
	logger := fields(FromContext(ctx).With()).Logger()
	return WithLogger(ctx, &logger)
}
