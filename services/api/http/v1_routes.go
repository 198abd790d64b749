package http

import "github.com/gin-gonic/gin"

// registerV1Routes sets up the v1 API structure
// Groups: /api/v1/stops, /api/v1/preview, /api/v1/records
func (s *Server) registerV1Routes(v1 *gin.RouterGroup) {
	v1.Use(apiVersionMiddleware())

	// Reference lookups, no database access
	v1.GET("/stops/:name", s.handleV1LookupStop)
	v1.POST("/preview", s.handleV1Preview)

	// Stored records
	records := v1.Group("/records")
	{
		records.GET("", s.handleV1ListRecords)
		records.GET("/:id", s.handleV1GetRecord)
	}
}

func apiVersionMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-API-Version", "v1")
		c.Next()
	}
}
