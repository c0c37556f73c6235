package service

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/jengzang/roadsurvey-backend-go/internal/models"
	"github.com/jengzang/roadsurvey-backend-go/internal/repository"
)

// ErrNoProfileStore is returned by profile operations when no repository is configured
var ErrNoProfileStore = errors.New("threshold profiles are not available")

// ThresholdService holds the active threshold snapshot and manages stored profiles.
// Current is safe to call from the session consumer while updates arrive from HTTP
// or the config watcher.
type ThresholdService struct {
	mu      sync.RWMutex
	current models.ThresholdSnapshot
	source  string

	repo *repository.ThresholdRepository
}

// NewThresholdService creates a threshold service starting from initial.
// repo may be nil, in which case only the in-memory snapshot is available.
func NewThresholdService(initial models.ThresholdSnapshot, repo *repository.ThresholdRepository) *ThresholdService {
	return &ThresholdService{
		current: initial,
		source:  "config",
		repo:    repo,
	}
}

// Current returns the snapshot valid right now
func (s *ThresholdService) Current() models.ThresholdSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Source describes where the current snapshot came from
func (s *ThresholdService) Source() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.source
}

// Set replaces the current snapshot
func (s *ThresholdService) Set(t models.ThresholdSnapshot, source string) error {
	if err := t.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	s.current = t
	s.source = source
	s.mu.Unlock()

	slog.Info("thresholds updated",
		"source", source,
		"roughness", t.RoughnessThreshold,
		"rut_depth", t.RutDepthThreshold,
		"cracking", t.CrackingThreshold,
		"ravelling", t.RavellingThreshold,
	)
	return nil
}

// LoadDefaultProfile makes the stored default profile current
func (s *ThresholdService) LoadDefaultProfile() error {
	if s.repo == nil {
		return ErrNoProfileStore
	}

	p, err := s.repo.GetDefault()
	if err != nil {
		return fmt.Errorf("failed to load default profile: %w", err)
	}
	return s.Set(p.Thresholds, "profile:"+p.Name)
}

// ListProfiles returns all stored profiles
func (s *ThresholdService) ListProfiles() ([]models.ThresholdProfile, error) {
	if s.repo == nil {
		return nil, ErrNoProfileStore
	}
	return s.repo.List()
}

// CreateProfile validates and stores a new profile
func (s *ThresholdService) CreateProfile(p *models.ThresholdProfile) error {
	if s.repo == nil {
		return ErrNoProfileStore
	}
	p.Name = strings.TrimSpace(p.Name)
	if p.Name == "" {
		return fmt.Errorf("%w: profile name is required", models.ErrInvalidThresholds)
	}
	return s.repo.Create(p)
}

// ActivateProfile marks a profile as default and makes it current
func (s *ThresholdService) ActivateProfile(id int64) (*models.ThresholdProfile, error) {
	if s.repo == nil {
		return nil, ErrNoProfileStore
	}

	p, err := s.repo.SetDefault(id)
	if err != nil {
		return nil, err
	}
	if err := s.Set(p.Thresholds, "profile:"+p.Name); err != nil {
		return nil, err
	}
	return p, nil
}
