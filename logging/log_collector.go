package logging

import (
	"log/slog"
	"sync"
	"time"
)

// LogEntry is one captured log record.
type LogEntry struct {
	Time       time.Time      `json:"time"`
	Level      string         `json:"level"`
	Message    string         `json:"message"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

type stageLogs struct {
	entries []LogEntry
	dropped int
}

// LogCollector stores captured log entries per stage. It is safe for
// concurrent use and implements LoggerHook.
type LogCollector struct {
	maxPerStage int

	mu     sync.RWMutex
	stages map[string]*stageLogs
	order  []string
}

// CollectorOption configures a LogCollector.
type CollectorOption func(*LogCollector)

// WithMaxEntriesPerStage keeps at most n entries per stage. Later entries
// are counted but not stored. Zero means no limit.
func WithMaxEntriesPerStage(n int) CollectorOption {
	return func(c *LogCollector) {
		c.maxPerStage = n
	}
}

// NewLogCollector creates an empty collector.
func NewLogCollector(opts ...CollectorOption) *LogCollector {
	c := &LogCollector{stages: make(map[string]*stageLogs)}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// LoggerForStage returns a logger that captures into c under stage.
func (c *LogCollector) LoggerForStage(base *slog.Logger, stage string) *slog.Logger {
	return slog.New(NewCapturingHandler(base.Handler(), c, stage))
}

// AddLog appends entry to stage.
func (c *LogCollector) AddLog(stage string, entry LogEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, ok := c.stages[stage]
	if !ok {
		s = &stageLogs{}
		c.stages[stage] = s
		c.order = append(c.order, stage)
	}
	if c.maxPerStage > 0 && len(s.entries) >= c.maxPerStage {
		s.dropped++
		return
	}
	s.entries = append(s.entries, entry)
}

// Stages returns the stages that logged, in the order they first logged.
func (c *LogCollector) Stages() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]string(nil), c.order...)
}

// GetLogs returns a copy of the entries stored for stage, or nil.
func (c *LogCollector) GetLogs(stage string) []LogEntry {
	c.mu.RLock()
	defer c.mu.RUnlock()

	s, ok := c.stages[stage]
	if !ok || len(s.entries) == 0 {
		return nil
	}
	return append([]LogEntry(nil), s.entries...)
}

// Dropped returns how many entries for stage exceeded the limit.
func (c *LogCollector) Dropped(stage string) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if s, ok := c.stages[stage]; ok {
		return s.dropped
	}
	return 0
}

// Clear removes every stored entry.
func (c *LogCollector) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stages = make(map[string]*stageLogs)
	c.order = nil
}
