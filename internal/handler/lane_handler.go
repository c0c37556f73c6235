package handler

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/jengzang/roadsurvey-backend-go/internal/models"
	"github.com/jengzang/roadsurvey-backend-go/internal/service"
	"github.com/jengzang/roadsurvey-backend-go/internal/spatial"
	"github.com/jengzang/roadsurvey-backend-go/pkg/response"
)

// LaneHandler handles HTTP requests for live lane state
type LaneHandler struct {
	laneService *service.LaneService
}

// NewLaneHandler creates a new lane handler
func NewLaneHandler(laneService *service.LaneService) *LaneHandler {
	return &LaneHandler{
		laneService: laneService,
	}
}

// GetSession handles GET /api/v1/session
func (h *LaneHandler) GetSession(c *gin.Context) {
	response.Success(c, h.laneService.GetSession())
}

// GetLanes handles GET /api/v1/lanes
func (h *LaneHandler) GetLanes(c *gin.Context) {
	response.Success(c, gin.H{
		"session": h.laneService.GetSession(),
		"lanes":   h.laneService.GetLaneStats(),
	})
}

// GetLane handles GET /api/v1/lanes/:lane
func (h *LaneHandler) GetLane(c *gin.Context) {
	lane, ok := parseLaneParam(c)
	if !ok {
		return
	}

	var filter models.SegmentFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		response.BadRequest(c, "Invalid query parameters")
		return
	}
	filter.Normalize()

	stats, segments, total, err := h.laneService.GetSegments(lane, filter)
	if err != nil {
		response.InternalError(c, err.Error())
		return
	}

	response.Success(c, gin.H{
		"stats":     stats,
		"segments":  segments,
		"total":     total,
		"page":      filter.Page,
		"page_size": filter.PageSize,
	})
}

// GetLanePath handles GET /api/v1/lanes/:lane/path
func (h *LaneHandler) GetLanePath(c *gin.Context) {
	lane, ok := parseLaneParam(c)
	if !ok {
		return
	}

	path, err := h.laneService.GetPath(lane)
	if err != nil {
		response.InternalError(c, err.Error())
		return
	}

	response.Success(c, gin.H{
		"lane":          lane.String(),
		"path":          path,
		"count":         len(path),
		"length_meters": spatial.PathLength(path),
	})
}

// GetLaneSummary handles GET /api/v1/lanes/:lane/summary
func (h *LaneHandler) GetLaneSummary(c *gin.Context) {
	lane, ok := parseLaneParam(c)
	if !ok {
		return
	}

	summary, err := h.laneService.GetSummary(lane)
	if err != nil {
		response.InternalError(c, err.Error())
		return
	}

	response.Success(c, summary)
}

// GetGeoJSON handles GET /api/v1/geojson
// The body is a bare FeatureCollection so map clients can load it directly.
func (h *LaneHandler) GetGeoJSON(c *gin.Context) {
	var filter models.GeoJSONFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		response.BadRequest(c, "Invalid query parameters")
		return
	}

	var lanes []models.LaneID
	if filter.Lane != "" {
		for _, part := range strings.Split(filter.Lane, ",") {
			lane, err := models.ParseLane(part)
			if err != nil {
				response.BadRequest(c, err.Error())
				return
			}
			lanes = append(lanes, lane)
		}
	}

	c.Header("Content-Type", "application/geo+json")
	c.JSON(200, h.laneService.GetGeoJSON(lanes, filter.Breaches))
}

// GetLaneChart handles GET /api/v1/charts/lanes
func (h *LaneHandler) GetLaneChart(c *gin.Context) {
	var buf bytes.Buffer
	if err := h.laneService.RenderLaneChart(&buf); err != nil {
		response.InternalError(c, fmt.Sprintf("render error: %v", err))
		return
	}

	c.Data(200, "text/html; charset=utf-8", buf.Bytes())
}

func parseLaneParam(c *gin.Context) (models.LaneID, bool) {
	lane, err := models.ParseLane(c.Param("lane"))
	if err != nil {
		response.BadRequest(c, "Invalid lane, expected one of L1-L4, R1-R4 or 0-7")
		return 0, false
	}
	return lane, true
}
