package transport

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"go.bug.st/serial"

	"github.com/jengzang/roadsurvey-backend-go/internal/config"
)

// Serial reads line-delimited telemetry from a survey unit on a serial port
type Serial struct {
	cfg    config.SerialConfig
	feed   string
	sink   Sink
	logger *slog.Logger

	open     func(name string, mode *serial.Mode) (io.ReadCloser, error)
	minDelay time.Duration
	maxDelay time.Duration
}

// NewSerial creates a serial transport
func NewSerial(cfg config.SerialConfig, feed string, sink Sink, logger *slog.Logger) *Serial {
	if logger == nil {
		logger = slog.Default()
	}
	return &Serial{
		cfg:    cfg,
		feed:   feed,
		sink:   sink,
		logger: logger,
		open: func(name string, mode *serial.Mode) (io.ReadCloser, error) {
			return serial.Open(name, mode)
		},
		minDelay: retryMinDelay,
		maxDelay: retryMaxDelay,
	}
}

// Run streams the port until ctx is done. A failed open, read error or closed
// port is logged and the port is reopened with backoff; every successful open
// counts as a new connection.
func (s *Serial) Run(ctx context.Context) error {
	mode := &serial.Mode{
		BaudRate: s.cfg.BaudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	delay := s.minDelay
	for {
		opened, err := s.session(ctx, mode)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if opened {
			delay = s.minDelay
		}
		if err != nil {
			s.logger.Error("serial port failed", "port", s.cfg.Port, "err", err, "retry_in", delay)
		} else {
			s.logger.Warn("serial port closed", "port", s.cfg.Port, "retry_in", delay)
		}

		if !sleepCtx(ctx, delay) {
			return ctx.Err()
		}
		delay = nextDelay(delay, s.maxDelay)
	}
}

// session opens the port once and streams it until it fails or closes
func (s *Serial) session(ctx context.Context, mode *serial.Mode) (bool, error) {
	port, err := s.open(s.cfg.Port, mode)
	if err != nil {
		return false, fmt.Errorf("failed to open serial port: %w", err)
	}
	s.logger.Info("serial port opened", "port", s.cfg.Port, "baud", s.cfg.BaudRate)

	// closing the port unblocks the pending read
	stop := context.AfterFunc(ctx, func() { port.Close() })
	defer func() {
		if stop() {
			port.Close()
		}
	}()

	_, err = NewLineSource(port, s.feed, s.sink, s.logger).Run(ctx)
	return true, err
}
