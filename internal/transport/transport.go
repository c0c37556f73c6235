// Package transport connects telemetry sources to the stream session. Every
// source reports a new connection with Start before submitting its messages.
package transport

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"
)

// Sink receives session lifecycle events and raw messages, in order
type Sink interface {
	Start(ctx context.Context, feed string) error
	Submit(ctx context.Context, payload []byte) error
}

// maxLineBytes bounds one line-delimited message
const maxLineBytes = 1 << 20

// Live sources retry with exponential backoff: 1s, 2s, 4s ... capped at 30s
const (
	retryMinDelay = time.Second
	retryMaxDelay = 30 * time.Second
)

func nextDelay(d, max time.Duration) time.Duration {
	d *= 2
	if d > max {
		return max
	}
	return d
}

// sleepCtx waits for d and reports false if ctx ended first
func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// LineSource reads one JSON message per line from an io.Reader. It is used for
// recorded surveys and, wrapped around a port, for serial-attached units.
type LineSource struct {
	r      io.Reader
	feed   string
	sink   Sink
	logger *slog.Logger
}

// NewLineSource creates a line source that reports its data as feed
func NewLineSource(r io.Reader, feed string, sink Sink, logger *slog.Logger) *LineSource {
	if logger == nil {
		logger = slog.Default()
	}
	return &LineSource{r: r, feed: feed, sink: sink, logger: logger}
}

// Run starts a session and submits every non-blank line until EOF or ctx is done.
// It returns the number of submitted lines.
func (s *LineSource) Run(ctx context.Context) (int, error) {
	if err := s.sink.Start(ctx, s.feed); err != nil {
		return 0, fmt.Errorf("failed to start session for %q: %w", s.feed, err)
	}

	scan := bufio.NewScanner(s.r)
	scan.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	n := 0
	for scan.Scan() {
		line := strings.TrimSpace(scan.Text())
		if line == "" {
			continue
		}
		if err := s.sink.Submit(ctx, []byte(line)); err != nil {
			return n, err
		}
		n++
	}
	if err := scan.Err(); err != nil {
		if ctx.Err() != nil {
			return n, ctx.Err()
		}
		if errors.Is(err, bufio.ErrTooLong) {
			return n, fmt.Errorf("message exceeds %d bytes: %w", maxLineBytes, err)
		}
		return n, err
	}

	s.logger.Info("line source drained", "feed", s.feed, "messages", n)
	return n, nil
}
