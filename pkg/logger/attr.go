package logger

import (
	"log/slog"
	"time"
)

// Error records err under "error". Nil errors produce an empty Attr.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.Any("error", err)
}

// Component names the emitting package or subsystem.
func Component(name string) slog.Attr {
	return slog.String("component", name)
}

// TenantID records a tenant id. Zero values produce an empty Attr.
func TenantID(id interface{ String() string }) slog.Attr {
	if id == nil {
		return slog.Attr{}
	}
	s := id.String()
	if s == "" || s == "00000000-0000-0000-0000-000000000000" {
		return slog.Attr{}
	}
	return slog.String("tenant_id", s)
}

// RunID records the reconciliation run id.
func RunID(id string) slog.Attr {
	if id == "" {
		return slog.Attr{}
	}
	return slog.String("run_id", id)
}

// EventID records an external billing event id.
func EventID(id string) slog.Attr {
	if id == "" {
		return slog.Attr{}
	}
	return slog.String("event_id", id)
}

// EventType records a billing event type.
func EventType(t string) slog.Attr {
	return slog.String("event_type", t)
}

// Provider records the billing provider name.
func Provider(name string) slog.Attr {
	return slog.String("provider", name)
}

// Bytes records a byte count under key.
func Bytes(key string, n int64) slog.Attr {
	return slog.Int64(key, n)
}

// Duration records an elapsed time in milliseconds.
func Duration(d time.Duration) slog.Attr {
	return slog.Int64("duration_ms", d.Milliseconds())
}
