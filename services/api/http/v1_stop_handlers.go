package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/busgeo/route-geocoder/internal/geo"
	"github.com/busgeo/route-geocoder/internal/metrics"
	"github.com/busgeo/route-geocoder/internal/models"
)

// handleV1LookupStop resolves one stop name against the reference index
// GET /api/v1/stops/:name
func (s *Server) handleV1LookupStop(c *gin.Context) {
	name := models.NormalizeName(c.Param("name"))
	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "stop name is required"})
		return
	}

	coord, ok := s.index.Lookup(name)
	if !ok {
		metrics.LookupsTotal.WithLabelValues("miss").Inc()
		c.JSON(http.StatusNotFound, gin.H{"error": "stop not found", "name": name})
		return
	}
	metrics.LookupsTotal.WithLabelValues("hit").Inc()

	c.JSON(http.StatusOK, gin.H{
		"data": models.EnrichedStop{Name: name, Lat: coord.Lat, Lon: coord.Lon},
	})
}

type previewRequest struct {
	Names []*string `json:"names" binding:"required,max=5000"`
}

// handleV1Preview enriches a list of stop names without storing anything
// POST /api/v1/preview
func (s *Server) handleV1Preview(c *gin.Context) {
	var req previewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	names := make([]string, len(req.Names))
	for i, n := range req.Names {
		if n != nil {
			names[i] = *n
		}
	}

	var diag geo.Diagnostics
	stops := geo.Enrich(names, s.index, diag.ForRecord(0))
	metrics.LookupsTotal.WithLabelValues("miss").Add(float64(diag.Len()))
	metrics.LookupsTotal.WithLabelValues("hit").Add(float64(len(stops) - diag.Len()))

	misses := make([]gin.H, 0, diag.Len())
	for _, m := range diag.Misses() {
		misses = append(misses, gin.H{"position": m.Position, "name": m.Name})
	}

	c.JSON(http.StatusOK, gin.H{
		"data": stops,
		"meta": gin.H{
			"count":  len(stops),
			"misses": misses,
		},
	})
}
