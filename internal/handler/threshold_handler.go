package handler

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/jengzang/roadsurvey-backend-go/internal/middleware"
	"github.com/jengzang/roadsurvey-backend-go/internal/models"
	"github.com/jengzang/roadsurvey-backend-go/internal/repository"
	"github.com/jengzang/roadsurvey-backend-go/internal/service"
	"github.com/jengzang/roadsurvey-backend-go/pkg/response"
)

// ThresholdHandler handles HTTP requests for thresholds and stored profiles
type ThresholdHandler struct {
	thresholdService *service.ThresholdService
}

// NewThresholdHandler creates a new threshold handler
func NewThresholdHandler(thresholdService *service.ThresholdService) *ThresholdHandler {
	return &ThresholdHandler{
		thresholdService: thresholdService,
	}
}

// ThresholdsRequest carries all four limits; a missing field is rejected
// rather than read as zero
type ThresholdsRequest struct {
	RoughnessThreshold *float64 `json:"roughnessThreshold" binding:"required"`
	RutDepthThreshold  *float64 `json:"rutDepthThreshold" binding:"required"`
	CrackingThreshold  *float64 `json:"crackingThreshold" binding:"required"`
	RavellingThreshold *float64 `json:"ravellingThreshold" binding:"required"`
}

// Snapshot converts a bound request
func (r ThresholdsRequest) Snapshot() models.ThresholdSnapshot {
	return models.ThresholdSnapshot{
		RoughnessThreshold: *r.RoughnessThreshold,
		RutDepthThreshold:  *r.RutDepthThreshold,
		CrackingThreshold:  *r.CrackingThreshold,
		RavellingThreshold: *r.RavellingThreshold,
	}
}

// CreateProfileRequest is the body of POST /api/v1/thresholds/profiles
type CreateProfileRequest struct {
	Name        string            `json:"name" binding:"required"`
	Description string            `json:"description"`
	Thresholds  ThresholdsRequest `json:"thresholds" binding:"required"`
}

// GetThresholds handles GET /api/v1/thresholds
func (h *ThresholdHandler) GetThresholds(c *gin.Context) {
	response.Success(c, gin.H{
		"thresholds": h.thresholdService.Current(),
		"source":     h.thresholdService.Source(),
	})
}

// UpdateThresholds handles PUT /api/v1/thresholds
// Segments already classified keep their verdict; the new values apply from the next message.
func (h *ThresholdHandler) UpdateThresholds(c *gin.Context) {
	var req ThresholdsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "All four thresholds are required")
		return
	}

	if err := h.thresholdService.Set(req.Snapshot(), "api:"+middleware.Subject(c)); err != nil {
		writeThresholdError(c, err)
		return
	}

	h.GetThresholds(c)
}

// ListProfiles handles GET /api/v1/thresholds/profiles
func (h *ThresholdHandler) ListProfiles(c *gin.Context) {
	profiles, err := h.thresholdService.ListProfiles()
	if err != nil {
		writeThresholdError(c, err)
		return
	}

	response.Success(c, gin.H{
		"profiles": profiles,
		"count":    len(profiles),
	})
}

// CreateProfile handles POST /api/v1/thresholds/profiles
func (h *ThresholdHandler) CreateProfile(c *gin.Context) {
	var req CreateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Profile name and all four thresholds are required")
		return
	}

	profile := &models.ThresholdProfile{
		Name:        req.Name,
		Description: req.Description,
		Thresholds:  req.Thresholds.Snapshot(),
		CreatedBy:   middleware.Subject(c),
	}
	if err := h.thresholdService.CreateProfile(profile); err != nil {
		writeThresholdError(c, err)
		return
	}

	response.Success(c, profile)
}

// ActivateProfile handles POST /api/v1/thresholds/profiles/:id/activate
func (h *ThresholdHandler) ActivateProfile(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.BadRequest(c, "Invalid profile ID")
		return
	}

	profile, err := h.thresholdService.ActivateProfile(id)
	if err != nil {
		writeThresholdError(c, err)
		return
	}

	response.Success(c, profile)
}

func writeThresholdError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, models.ErrInvalidThresholds):
		response.BadRequest(c, err.Error())
	case errors.Is(err, repository.ErrProfileNotFound):
		response.NotFound(c, "Threshold profile not found")
	case errors.Is(err, repository.ErrDuplicateProfile):
		response.Conflict(c, err.Error())
	case errors.Is(err, service.ErrNoProfileStore):
		response.ServiceUnavailable(c, err.Error())
	default:
		response.InternalError(c, err.Error())
	}
}
