// Package trace publishes execution spans (LLM turns, tool calls) to an
// external sink for offline analysis. Publishing is fire-and-forget: a
// slow or absent broker never stalls the turn loop.
package trace

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
)

// Span kinds.
const (
	KindLLM  = "llm"
	KindTool = "tool"
)

// Span is one timed unit of scope execution.
type Span struct {
	ScopeID    string `json:"scope_id"`
	Kind       string `json:"kind"`
	Name       string `json:"name"`
	Turn       int    `json:"turn,omitempty"`
	Status     string `json:"status,omitempty"`
	DurationMs int64  `json:"duration_ms"`
	Timestamp  int64  `json:"timestamp_ms"`
}

// Sink receives spans. Implementations must not block indefinitely.
type Sink interface {
	Publish(ctx context.Context, span Span)
	Close() error
}

// KafkaSink writes spans to a Kafka topic using segmentio/kafka-go.
type KafkaSink struct {
	writer  *kafka.Writer
	timeout time.Duration
}

// NewKafkaSink creates a sink for the given brokers (comma-separated) and
// topic.
func NewKafkaSink(brokers, topic string) *KafkaSink {
	return &KafkaSink{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(strings.Split(brokers, ",")...),
			Topic:        topic,
			Balancer:     &kafka.LeastBytes{},
			RequiredAcks: kafka.RequireOne,
			Async:        false,
		},
		timeout: 5 * time.Second,
	}
}

// Publish writes one span. Failures are logged and dropped.
func (s *KafkaSink) Publish(ctx context.Context, span Span) {
	data, err := json.Marshal(span)
	if err != nil {
		slog.Warn("Trace span marshal failed", "kind", span.Kind, "error", err)
		return
	}
	writeCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	msg := kafka.Message{
		Key:   []byte(span.ScopeID),
		Value: data,
	}
	if err := s.writer.WriteMessages(writeCtx, msg); err != nil {
		slog.Warn("Trace span publish failed", "kind", span.Kind, "scope", span.ScopeID, "error", err)
	}
}

// Close flushes and closes the underlying writer.
func (s *KafkaSink) Close() error {
	return s.writer.Close()
}

// ChannelSink is an in-process Sink backed by a Go channel, used in tests
// and when no broker is configured.
type ChannelSink struct {
	ch chan Span
}

// NewChannelSink creates an in-process sink.
func NewChannelSink() *ChannelSink {
	return &ChannelSink{ch: make(chan Span, 100)}
}

// Publish pushes the span, dropping it when the buffer is full.
func (s *ChannelSink) Publish(_ context.Context, span Span) {
	select {
	case s.ch <- span:
	default:
	}
}

// Spans returns the channel of published spans.
func (s *ChannelSink) Spans() <-chan Span { return s.ch }

// Close closes the channel.
func (s *ChannelSink) Close() error {
	close(s.ch)
	return nil
}
