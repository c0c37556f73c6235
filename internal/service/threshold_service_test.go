package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jengzang/roadsurvey-backend-go/internal/database"
	"github.com/jengzang/roadsurvey-backend-go/internal/models"
	"github.com/jengzang/roadsurvey-backend-go/internal/repository"
)

func newProfileRepo(t *testing.T) *repository.ThresholdRepository {
	t.Helper()
	conn, err := database.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, database.NewMigrationManager(conn).RunMigrations())
	return repository.NewThresholdRepository(conn)
}

func TestThresholdServiceSet(t *testing.T) {
	svc := NewThresholdService(models.DefaultThresholds(), nil)
	assert.Equal(t, models.DefaultThresholds(), svc.Current())
	assert.Equal(t, "config", svc.Source())

	next := models.ThresholdSnapshot{RoughnessThreshold: 1800, RutDepthThreshold: 4, CrackingThreshold: 2, RavellingThreshold: 0.5}
	require.NoError(t, svc.Set(next, "api"))
	assert.Equal(t, next, svc.Current())
	assert.Equal(t, "api", svc.Source())

	bad := next
	bad.CrackingThreshold = -3
	assert.ErrorIs(t, svc.Set(bad, "api"), models.ErrInvalidThresholds)
	assert.Equal(t, next, svc.Current(), "rejected update leaves the snapshot")
}

func TestThresholdServiceWithoutStore(t *testing.T) {
	svc := NewThresholdService(models.DefaultThresholds(), nil)

	_, err := svc.ListProfiles()
	assert.ErrorIs(t, err, ErrNoProfileStore)
	assert.ErrorIs(t, svc.LoadDefaultProfile(), ErrNoProfileStore)
	_, err = svc.ActivateProfile(1)
	assert.ErrorIs(t, err, ErrNoProfileStore)
}

func TestThresholdServiceProfiles(t *testing.T) {
	initial := models.ThresholdSnapshot{RoughnessThreshold: 1, RutDepthThreshold: 1, CrackingThreshold: 1, RavellingThreshold: 1}
	svc := NewThresholdService(initial, newProfileRepo(t))

	require.NoError(t, svc.LoadDefaultProfile())
	assert.Equal(t, models.DefaultThresholds(), svc.Current())
	assert.Equal(t, "profile:default", svc.Source())

	strict := &models.ThresholdProfile{
		Name:       " strict ",
		Thresholds: models.ThresholdSnapshot{RoughnessThreshold: 1500, RutDepthThreshold: 3, CrackingThreshold: 2, RavellingThreshold: 0.5},
	}
	require.NoError(t, svc.CreateProfile(strict))
	assert.Equal(t, "strict", strict.Name)
	assert.Equal(t, models.DefaultThresholds(), svc.Current(), "creating does not activate")

	activated, err := svc.ActivateProfile(strict.ID)
	require.NoError(t, err)
	assert.True(t, activated.IsDefault)
	assert.Equal(t, strict.Thresholds, svc.Current())

	assert.ErrorIs(t, svc.CreateProfile(&models.ThresholdProfile{Name: "  "}), models.ErrInvalidThresholds)

	profiles, err := svc.ListProfiles()
	require.NoError(t, err)
	assert.Len(t, profiles, 2)
}
