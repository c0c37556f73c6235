// Package session sequences inbound telemetry into the lane aggregator. A
// Session owns the aggregator for the lifetime of one transport connection and
// processes exactly one event at a time from a single consumer goroutine.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jengzang/roadsurvey-backend-go/internal/analysis"
	"github.com/jengzang/roadsurvey-backend-go/internal/models"
)

// ErrUnknownFeed is returned when a session is started for a feed that is not configured
var ErrUnknownFeed = errors.New("unknown feed")

// ThresholdSource supplies the thresholds valid at the moment of the call
type ThresholdSource interface {
	Current() models.ThresholdSnapshot
}

// StaticThresholds is a ThresholdSource that never changes
type StaticThresholds models.ThresholdSnapshot

// Current returns the fixed snapshot
func (s StaticThresholds) Current() models.ThresholdSnapshot {
	return models.ThresholdSnapshot(s)
}

// Result describes one processed message
type Result struct {
	Seq        int64
	Thresholds models.ThresholdSnapshot
	Segments   []models.Segment
}

// Observer is notified after each committed state change. Calls happen on the
// consumer goroutine and must not block.
type Observer interface {
	SessionStarted(info models.SessionInfo)
	MessageProcessed(res Result)
	MessageDropped(err error)
}

// Config holds session options
type Config struct {
	Feeds     []string              // accepted feed identifiers; empty accepts any non-empty feed
	Presence  analysis.PresenceMode // coordinate presence policy
	QueueSize int                   // buffered events between transport and consumer
}

// Session is the stream session. All mutation goes through OnSessionStart and
// OnMessage; readers get deep copies.
type Session struct {
	mu   sync.RWMutex
	agg  *analysis.LaneAggregator
	info models.SessionInfo

	schema     models.LaneSchema
	presence   analysis.PresenceMode
	feeds      map[string]struct{}
	thresholds ThresholdSource
	observer   Observer
	logger     *slog.Logger
	now        func() time.Time

	events chan event
}

type eventKind int

const (
	eventStart eventKind = iota
	eventMessage
)

type event struct {
	kind    eventKind
	feed    string
	payload []byte
}

// Option customizes a Session
type Option func(*Session)

// WithObserver registers an observer for committed changes
func WithObserver(o Observer) Option {
	return func(s *Session) { s.observer = o }
}

// WithLogger sets the logger used for dropped messages and lifecycle events
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) { s.logger = l }
}

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

// New creates a session with empty state
func New(cfg Config, thresholds ThresholdSource, opts ...Option) *Session {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}
	if cfg.Presence == "" {
		cfg.Presence = analysis.PresenceTruthy
	}
	if thresholds == nil {
		thresholds = StaticThresholds(models.DefaultThresholds())
	}

	s := &Session{
		agg:        analysis.NewLaneAggregator(),
		schema:     models.Schema(),
		presence:   cfg.Presence,
		feeds:      make(map[string]struct{}, len(cfg.Feeds)),
		thresholds: thresholds,
		logger:     slog.Default(),
		now:        time.Now,
		events:     make(chan event, cfg.QueueSize),
	}
	for _, f := range cfg.Feeds {
		if f = strings.TrimSpace(f); f != "" {
			s.feeds[f] = struct{}{}
		}
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ValidateFeed checks a feed identifier against the configured feeds
func (s *Session) ValidateFeed(feed string) error {
	if strings.TrimSpace(feed) == "" {
		return fmt.Errorf("%w: empty feed identifier", ErrUnknownFeed)
	}
	if len(s.feeds) == 0 {
		return nil
	}
	if _, ok := s.feeds[feed]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownFeed, feed)
	}
	return nil
}

// OnSessionStart clears all state for a new connection to feed. An unknown
// feed is rejected without touching state.
func (s *Session) OnSessionStart(feed string) error {
	if err := s.ValidateFeed(feed); err != nil {
		return err
	}

	s.mu.Lock()
	s.agg.Clear()
	s.info = models.SessionInfo{
		ID:        uuid.NewString(),
		Feed:      feed,
		StartedAt: s.now().UTC(),
	}
	info := s.info
	s.mu.Unlock()

	s.logger.Info("session started", "session_id", info.ID, "feed", feed)
	if s.observer != nil {
		s.observer.SessionStarted(info)
	}
	return nil
}

// OnMessage decodes and applies one raw message using the given thresholds.
// A malformed payload is counted and dropped without touching lane state.
func (s *Session) OnMessage(raw []byte, thresholds models.ThresholdSnapshot) (Result, error) {
	msg, err := analysis.DecodeMessage(raw)
	if err != nil {
		s.mu.Lock()
		s.info.MalformedMessages++
		s.mu.Unlock()

		s.logger.Warn("dropping malformed message", "err", err, "bytes", len(raw))
		if s.observer != nil {
			s.observer.MessageDropped(err)
		}
		return Result{}, err
	}

	built := analysis.BuildSegments(msg, s.schema, s.presence)

	s.mu.Lock()
	res := Result{
		Seq:        s.agg.MarkReceived(),
		Thresholds: thresholds,
		Segments:   make([]models.Segment, 0, len(built)),
	}
	for _, ls := range built {
		ls.Segment.MessageSeq = res.Seq
		stored, err := s.agg.Ingest(ls.Lane, ls.Segment, thresholds)
		if err != nil {
			// BuildSegments only yields schema lanes
			s.logger.Error("ingest failed", "lane", ls.Lane, "err", err)
			continue
		}
		res.Segments = append(res.Segments, stored)
	}
	s.info.TotalSegmentsReceived = s.agg.Received()
	s.mu.Unlock()

	if s.observer != nil {
		s.observer.MessageProcessed(res)
	}
	return res, nil
}

// Start queues a session start for feed. The feed is validated immediately so
// the caller can report an unknown feed.
func (s *Session) Start(ctx context.Context, feed string) error {
	if err := s.ValidateFeed(feed); err != nil {
		return err
	}
	return s.enqueue(ctx, event{kind: eventStart, feed: feed})
}

// Submit queues a raw message. It blocks while the queue is full.
func (s *Session) Submit(ctx context.Context, payload []byte) error {
	buf := make([]byte, len(payload))
	copy(buf, payload)
	return s.enqueue(ctx, event{kind: eventMessage, payload: buf})
}

func (s *Session) enqueue(ctx context.Context, ev event) error {
	select {
	case s.events <- ev:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run consumes queued events until ctx is cancelled. Only one Run may be active.
func (s *Session) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-s.events:
			s.handle(ev)
		}
	}
}

func (s *Session) handle(ev event) {
	switch ev.kind {
	case eventStart:
		if err := s.OnSessionStart(ev.feed); err != nil {
			s.logger.Error("session start rejected", "feed", ev.feed, "err", err)
		}
	case eventMessage:
		// thresholds are read once, before any of the message is applied
		_, _ = s.OnMessage(ev.payload, s.thresholds.Current())
	}
}

// Snapshot returns a deep copy of the committed state
func (s *Session) Snapshot() models.SessionSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var snap models.SessionSnapshot
	s.agg.Snapshot(&snap)
	received := snap.Session.TotalSegmentsReceived
	snap.Session = s.info
	snap.Session.TotalSegmentsReceived = received
	return snap
}

// Info returns the current session description
func (s *Session) Info() models.SessionInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.info
}

// LaneStats returns the counters of every lane
func (s *Session) LaneStats() [models.LaneCount]models.LaneStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out [models.LaneCount]models.LaneStats
	for i := range out {
		out[i] = s.agg.Stats(models.LaneID(i))
	}
	return out
}

// Lane returns the counters and a copy of the segments of one lane
func (s *Session) Lane(lane models.LaneID) (models.LaneStats, models.Polyline, error) {
	if !lane.Valid() {
		return models.LaneStats{}, nil, fmt.Errorf("%w: %d", models.ErrInvalidLane, int(lane))
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.agg.Stats(lane), s.agg.Polyline(lane), nil
}
