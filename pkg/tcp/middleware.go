package tcp

import (
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/fluxorio/exchanger/pkg/tcp"

// ConnRecorder receives per-connection outcomes
type ConnRecorder interface {
	ObserveConnection(elapsed time.Duration, err error)
}

// LoggingMiddleware logs every connection with its duration
func LoggingMiddleware() Middleware {
	return func(next ConnectionHandler) ConnectionHandler {
		return func(ctx *ConnContext) error {
			start := time.Now()
			err := next(ctx)
			if err != nil {
				ctx.Logger.Warnf("connection failed after %s: %v", time.Since(start), err)
				return err
			}
			ctx.Logger.Debugf("connection served in %s", time.Since(start))
			return nil
		}
	}
}

// TracingMiddleware starts a server span per connection and stores it in ctx.Context
func TracingMiddleware() Middleware {
	tracer := otel.Tracer(tracerName)
	return func(next ConnectionHandler) ConnectionHandler {
		return func(ctx *ConnContext) error {
			spanCtx, span := tracer.Start(ctx.Context, "tcp.connection",
				trace.WithSpanKind(trace.SpanKindServer),
				trace.WithAttributes(
					attribute.String("request.id", ctx.RequestID),
					attribute.String("net.peer.addr", addrString(ctx.RemoteAddr)),
				),
			)
			defer span.End()

			ctx.Context = spanCtx
			err := next(ctx)
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
			}
			return err
		}
	}
}

// MetricsMiddleware reports each connection to rec
func MetricsMiddleware(rec ConnRecorder) Middleware {
	if rec == nil {
		panic("tcp metrics recorder cannot be nil")
	}
	return func(next ConnectionHandler) ConnectionHandler {
		return func(ctx *ConnContext) error {
			start := time.Now()
			err := next(ctx)
			rec.ObserveConnection(time.Since(start), err)
			return err
		}
	}
}

func addrString(a interface{ String() string }) string {
	if a == nil {
		return ""
	}
	return a.String()
}
