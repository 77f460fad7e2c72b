// Package logging supplies the structured-logging handler the library
// installs itself: a redacting wrapper around whatever slog.Handler the
// caller configured, grounded on the original source's sensitive-key
// obfuscation list.
package logging

import (
	"context"
	"log/slog"
)

// SensitiveKeys lists the attribute keys whose values are masked before a
// log record reaches its sink, matching the original source's
// sensitiveKeys/redactSecretKeys set.
var SensitiveKeys = map[string]struct{}{
	"secretKey":    {},
	"serverSecret": {},
	"ApiKey":       {},
	"apiKey":       {},
	"secret":       {},
	"token":        {},
	"X-RTT-SECRET": {},
}

const redacted = "[REDACTED]"

// Redactor wraps an slog.Handler and masks the value of any attribute whose
// key is in SensitiveKeys, at any nesting depth (including inside grouped
// attrs), before delegating to the wrapped handler.
type Redactor struct {
	next slog.Handler
}

// NewRedactor wraps next.
func NewRedactor(next slog.Handler) *Redactor {
	return &Redactor{next: next}
}

// Enabled implements slog.Handler.
func (r *Redactor) Enabled(ctx context.Context, level slog.Level) bool {
	return r.next.Enabled(ctx, level)
}

// Handle implements slog.Handler.
func (r *Redactor) Handle(ctx context.Context, rec slog.Record) error {
	newRec := slog.NewRecord(rec.Time, rec.Level, rec.Message, rec.PC)
	rec.Attrs(func(a slog.Attr) bool {
		newRec.AddAttrs(redactAttr(a))
		return true
	})
	return r.next.Handle(ctx, newRec)
}

// WithAttrs implements slog.Handler.
func (r *Redactor) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		out[i] = redactAttr(a)
	}
	return &Redactor{next: r.next.WithAttrs(out)}
}

// WithGroup implements slog.Handler.
func (r *Redactor) WithGroup(name string) slog.Handler {
	return &Redactor{next: r.next.WithGroup(name)}
}

func redactAttr(a slog.Attr) slog.Attr {
	if _, sensitive := SensitiveKeys[a.Key]; sensitive {
		return slog.String(a.Key, redacted)
	}
	if a.Value.Kind() == slog.KindGroup {
		group := a.Value.Group()
		out := make([]slog.Attr, len(group))
		for i, ga := range group {
			out[i] = redactAttr(ga)
		}
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(out...)}
	}
	return a
}
