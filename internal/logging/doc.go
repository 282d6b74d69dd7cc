// Package logging builds the zap loggers used by quotecheck.
//
// Logs are written to stderr, leaving stdout to command output, and can be
// mirrored to an OpenTelemetry log provider. Debug, info and warn entries are
// sampled; errors never are.
//
// Context-aware methods add correlation fields to every entry:
//
//	ctx = logging.WithRequestID(ctx, id)
//	logger.Info(ctx, "verified quote", zap.String("source", src))
//
// produces trace_id and span_id when an OpenTelemetry span is active, and
// request.id when one was attached.
//
// Packages below cmd take a plain *zap.Logger; pass Logger.Underlying().
package logging
