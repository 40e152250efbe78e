package logging

import (
	"context"
	"log/slog"
	"strings"
)

// CapturingHandler records every log line of one stage in a LogCollector
// and forwards it to the wrapped handler. Capture ignores the wrapped
// handler's level so history keeps debug lines the console filters out.
type CapturingHandler struct {
	next      slog.Handler
	collector *LogCollector
	stage     string
	attrs     map[string]any
	prefix    string
}

// NewCapturingHandler wraps next so records are stored under stage.
func NewCapturingHandler(next slog.Handler, collector *LogCollector, stage string) *CapturingHandler {
	return &CapturingHandler{
		next:      next,
		collector: collector,
		stage:     stage,
	}
}

// Enabled always reports true; Handle applies the wrapped handler's level.
func (h *CapturingHandler) Enabled(context.Context, slog.Level) bool {
	return true
}

// Handle stores r and passes it on when the wrapped handler wants it.
func (h *CapturingHandler) Handle(ctx context.Context, r slog.Record) error {
	attrs := make(map[string]any, len(h.attrs)+r.NumAttrs())
	for k, v := range h.attrs {
		attrs[k] = v
	}
	r.Attrs(func(a slog.Attr) bool {
		addAttr(attrs, h.prefix, a)
		return true
	})
	h.collector.AddLog(h.stage, LogEntry{
		Time:       r.Time,
		Level:      r.Level.String(),
		Message:    r.Message,
		Attributes: attrs,
	})

	if !h.next.Enabled(ctx, r.Level) {
		return nil
	}
	return h.next.Handle(ctx, r)
}

// WithAttrs keeps capturing on loggers derived with With.
func (h *CapturingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := make(map[string]any, len(h.attrs)+len(attrs))
	for k, v := range h.attrs {
		merged[k] = v
	}
	for _, a := range attrs {
		addAttr(merged, h.prefix, a)
	}
	c := *h
	c.next = h.next.WithAttrs(attrs)
	c.attrs = merged
	return &c
}

// WithGroup qualifies later attribute keys with name, e.g. "openai.model".
func (h *CapturingHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	c := *h
	c.next = h.next.WithGroup(name)
	c.prefix = h.prefix + name + "."
	return &c
}

func addAttr(dst map[string]any, prefix string, a slog.Attr) {
	v := a.Value.Resolve()
	if a.Key == "" {
		// Inline group.
		if v.Kind() == slog.KindGroup {
			for _, ga := range v.Group() {
				addAttr(dst, prefix, ga)
			}
		}
		return
	}
	dst[prefix+a.Key] = valueOf(v)
}

// valueOf converts v into something encoding/json can write.
func valueOf(v slog.Value) any {
	v = v.Resolve()
	switch v.Kind() {
	case slog.KindString:
		return v.String()
	case slog.KindInt64:
		return v.Int64()
	case slog.KindUint64:
		return v.Uint64()
	case slog.KindFloat64:
		return v.Float64()
	case slog.KindBool:
		return v.Bool()
	case slog.KindDuration:
		return v.Duration().String()
	case slog.KindTime:
		return v.Time()
	case slog.KindGroup:
		group := make(map[string]any, len(v.Group()))
		for _, a := range v.Group() {
			group[a.Key] = valueOf(a.Value)
		}
		return group
	}
	switch x := v.Any().(type) {
	case error:
		return x.Error()
	case []byte:
		return strings.ToValidUTF8(string(x), "?")
	default:
		return x
	}
}
