package service

import (
	"github.com/jengzang/roadsurvey-backend-go/internal/models"
	"github.com/jengzang/roadsurvey-backend-go/internal/spatial"
	"github.com/jengzang/roadsurvey-backend-go/internal/stats"
)

// SessionReader is the read-only view of the stream session
type SessionReader interface {
	Snapshot() models.SessionSnapshot
	Info() models.SessionInfo
	LaneStats() [models.LaneCount]models.LaneStats
	Lane(lane models.LaneID) (models.LaneStats, models.Polyline, error)
}

// LaneService handles read-side queries over the live lane state
type LaneService struct {
	session SessionReader
}

// NewLaneService creates a new lane service
func NewLaneService(session SessionReader) *LaneService {
	return &LaneService{session: session}
}

// GetSession returns the current session description
func (s *LaneService) GetSession() models.SessionInfo {
	return s.session.Info()
}

// GetLaneStats returns the counters of all eight lanes in schema order
func (s *LaneService) GetLaneStats() []models.LaneStats {
	all := s.session.LaneStats()
	return all[:]
}

// GetSegments returns one lane's counters and the filtered, paged segments
func (s *LaneService) GetSegments(lane models.LaneID, filter models.SegmentFilter) (models.LaneStats, []models.Segment, int, error) {
	st, poly, err := s.session.Lane(lane)
	if err != nil {
		return models.LaneStats{}, nil, 0, err
	}

	filter.Normalize()
	matched := make([]models.Segment, 0, len(poly))
	for _, seg := range poly {
		if filter.Breaches && seg.WithinThreshold {
			continue
		}
		if seg.MessageSeq <= filter.SinceSeq {
			continue
		}
		matched = append(matched, seg)
	}

	total := len(matched)
	start := (filter.Page - 1) * filter.PageSize
	if start > total {
		start = total
	}
	end := start + filter.PageSize
	if end > total {
		end = total
	}

	return st, matched[start:end], total, nil
}

// GetPath returns the lane as a map path
func (s *LaneService) GetPath(lane models.LaneID) ([]models.Coordinate, error) {
	_, poly, err := s.session.Lane(lane)
	if err != nil {
		return nil, err
	}
	return poly.Path(), nil
}

// GetSummary aggregates one lane's metrics and surveyed length
func (s *LaneService) GetSummary(lane models.LaneID) (models.LaneSummary, error) {
	st, poly, err := s.session.Lane(lane)
	if err != nil {
		return models.LaneSummary{}, err
	}

	return models.LaneSummary{
		Stats:        st,
		LengthMeters: spatial.SegmentLength(poly),
		Roughness: stats.Summarize(stats.MetricValues(poly, func(m models.MetricSet) *float64 {
			return m.RoughnessBI
		})),
		RutDepth: stats.Summarize(stats.MetricValues(poly, func(m models.MetricSet) *float64 {
			return m.RutDepth
		})),
		CrackArea: stats.Summarize(stats.MetricValues(poly, func(m models.MetricSet) *float64 {
			return m.CrackArea
		})),
		RavellingArea: stats.Summarize(stats.MetricValues(poly, func(m models.MetricSet) *float64 {
			return m.RavellingArea
		})),
	}, nil
}
