package goSession

import (
	"io"
	"log/slog"

	"github.com/MrEthical07/goSession/internal/audit"
)

// AuditEvent is one audit record delivered to an [AuditSink].
type AuditEvent = audit.Event

// AuditSink receives audit events from the engine's async dispatcher.
type AuditSink = audit.Sink

// NoOpSink discards audit events.
type NoOpSink = audit.NoOpSink

// ChannelSink buffers audit events in a channel, mostly for tests.
type ChannelSink = audit.ChannelSink

// JSONWriterSink writes one JSON object per event.
type JSONWriterSink = audit.JSONWriterSink

// SlogSink logs audit events through a slog.Logger.
type SlogSink = audit.SlogSink

// NewChannelSink returns a ChannelSink with the given buffer.
func NewChannelSink(buffer int) *ChannelSink { return audit.NewChannelSink(buffer) }

// NewJSONWriterSink returns a sink writing JSON lines to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink { return audit.NewJSONWriterSink(w) }

// NewSlogSink returns a sink logging through logger, or slog.Default when nil.
func NewSlogSink(logger *slog.Logger) *SlogSink { return audit.NewSlogSink(logger) }

// Audit event types.
const (
	AuditLoginSuccess         = audit.EventLoginSuccess
	AuditLoginFailure         = audit.EventLoginFailure
	AuditRefreshSuccess       = audit.EventRefreshSuccess
	AuditRefreshFailure       = audit.EventRefreshFailure
	AuditRefreshReuseDetected = audit.EventRefreshReuseDetected
	AuditLogout               = audit.EventLogout
	AuditRateLimited          = audit.EventRateLimited
	AuditRoleChanged          = audit.EventRoleChanged
)
