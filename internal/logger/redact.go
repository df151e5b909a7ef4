package logger

import (
	"regexp"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Redactor masks substrings matching any of its patterns with asterisks of equal length.
type Redactor struct {
	pattern *regexp.Regexp
}

// DefaultRedactor masks OAuth-like tokens and long hex identifiers (request and resume ids).
func DefaultRedactor() *Redactor {
	return NewRedactor(
		`\b[A-Z0-9]{64,}\b`,
		`\b[a-fA-F0-9]{32,}\b`,
	)
}

func NewRedactor(patterns ...string) *Redactor {
	if len(patterns) == 0 {
		return &Redactor{}
	}
	return &Redactor{pattern: regexp.MustCompile("(" + strings.Join(patterns, "|") + ")")}
}

func (r *Redactor) Redact(s string) string {
	if r == nil || r.pattern == nil || s == "" {
		return s
	}
	return r.pattern.ReplaceAllStringFunc(s, func(m string) string {
		return strings.Repeat("*", len(m))
	})
}

func (r *Redactor) fields(fields []zapcore.Field) []zapcore.Field {
	if r == nil || r.pattern == nil || len(fields) == 0 {
		return fields
	}

	out := make([]zapcore.Field, len(fields))
	for i, f := range fields {
		switch f.Type {
		case zapcore.StringType:
			f.String = r.Redact(f.String)
		case zapcore.ErrorType:
			if err, ok := f.Interface.(error); ok && err != nil {
				f = zap.String(f.Key, r.Redact(err.Error()))
			}
		}
		out[i] = f
	}
	return out
}

type redactingCore struct {
	zapcore.Core
	redactor *Redactor
}

// NewRedactingCore wraps core so that messages and string fields pass through redactor.
func NewRedactingCore(core zapcore.Core, redactor *Redactor) zapcore.Core {
	return &redactingCore{Core: core, redactor: redactor}
}

func (c *redactingCore) With(fields []zapcore.Field) zapcore.Core {
	return &redactingCore{Core: c.Core.With(c.redactor.fields(fields)), redactor: c.redactor}
}

func (c *redactingCore) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(ent.Level) {
		return ce.AddCore(ent, c)
	}
	return ce
}

func (c *redactingCore) Write(ent zapcore.Entry, fields []zapcore.Field) error {
	ent.Message = c.redactor.Redact(ent.Message)
	return c.Core.Write(ent, c.redactor.fields(fields))
}
