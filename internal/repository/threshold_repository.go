package repository

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jengzang/roadsurvey-backend-go/internal/database"
	"github.com/jengzang/roadsurvey-backend-go/internal/models"
)

// ErrProfileNotFound is returned when a threshold profile does not exist
var ErrProfileNotFound = errors.New("threshold profile not found")

// ErrDuplicateProfile is returned when a profile name is already taken
var ErrDuplicateProfile = errors.New("threshold profile name already exists")

const profileColumns = `id, name, description, is_default,
		roughness_threshold, rut_depth_threshold, cracking_threshold, ravelling_threshold,
		created_by, created_at, updated_at`

// ThresholdRepository handles database operations for threshold profiles
type ThresholdRepository struct {
	db *sql.DB
}

// NewThresholdRepository creates a new threshold repository
func NewThresholdRepository(db *sql.DB) *ThresholdRepository {
	return &ThresholdRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProfile(row rowScanner) (*models.ThresholdProfile, error) {
	var p models.ThresholdProfile
	err := row.Scan(
		&p.ID, &p.Name, &p.Description, &p.IsDefault,
		&p.Thresholds.RoughnessThreshold, &p.Thresholds.RutDepthThreshold,
		&p.Thresholds.CrackingThreshold, &p.Thresholds.RavellingThreshold,
		&p.CreatedBy, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// List retrieves all profiles ordered by name
func (r *ThresholdRepository) List() ([]models.ThresholdProfile, error) {
	rows, err := r.db.Query(`SELECT ` + profileColumns + ` FROM threshold_profiles ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to query threshold profiles: %w", err)
	}
	defer rows.Close()

	profiles := []models.ThresholdProfile{}
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan threshold profile: %w", err)
		}
		profiles = append(profiles, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate threshold profiles: %w", err)
	}

	return profiles, nil
}

// GetByID retrieves a single profile
func (r *ThresholdRepository) GetByID(id int64) (*models.ThresholdProfile, error) {
	p, err := scanProfile(r.db.QueryRow(`SELECT `+profileColumns+` FROM threshold_profiles WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: id %d", ErrProfileNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get threshold profile: %w", err)
	}
	return p, nil
}

// GetDefault retrieves the profile marked as default
func (r *ThresholdRepository) GetDefault() (*models.ThresholdProfile, error) {
	p, err := scanProfile(r.db.QueryRow(`SELECT ` + profileColumns + ` FROM threshold_profiles WHERE is_default = 1`))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: no default profile", ErrProfileNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get default threshold profile: %w", err)
	}
	return p, nil
}

// Create inserts a new, non-default profile and fills in its ID and timestamps
func (r *ThresholdRepository) Create(p *models.ThresholdProfile) error {
	if err := p.Thresholds.Validate(); err != nil {
		return err
	}

	res, err := r.db.Exec(`INSERT INTO threshold_profiles
		(name, description, is_default, roughness_threshold, rut_depth_threshold, cracking_threshold, ravelling_threshold, created_by)
		VALUES (?, ?, 0, ?, ?, ?, ?, ?)`,
		p.Name, p.Description,
		p.Thresholds.RoughnessThreshold, p.Thresholds.RutDepthThreshold,
		p.Thresholds.CrackingThreshold, p.Thresholds.RavellingThreshold,
		p.CreatedBy,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return fmt.Errorf("%w: %q", ErrDuplicateProfile, p.Name)
		}
		return fmt.Errorf("failed to insert threshold profile: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read profile id: %w", err)
	}

	stored, err := r.GetByID(id)
	if err != nil {
		return err
	}
	*p = *stored
	return nil
}

// SetDefault marks the given profile as the only default and returns it
func (r *ThresholdRepository) SetDefault(id int64) (*models.ThresholdProfile, error) {
	err := database.Transaction(r.db, func(tx *sql.Tx) error {
		if _, err := tx.Exec(`UPDATE threshold_profiles SET is_default = 0, updated_at = CURRENT_TIMESTAMP
			WHERE is_default = 1 AND id != ?`, id); err != nil {
			return fmt.Errorf("failed to clear default profile: %w", err)
		}

		res, err := tx.Exec(`UPDATE threshold_profiles SET is_default = 1, updated_at = CURRENT_TIMESTAMP
			WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("failed to set default profile: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to read affected rows: %w", err)
		}
		if n == 0 {
			return fmt.Errorf("%w: id %d", ErrProfileNotFound, id)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return r.GetByID(id)
}
