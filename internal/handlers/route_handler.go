package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/tourforge/backend/internal/services"
)

type RouteHandler struct {
	routeService *services.RouteService
}

func NewRouteHandler(routeService *services.RouteService) *RouteHandler {
	return &RouteHandler{routeService: routeService}
}

// Directions proxies a waypoint list to the routing engine and returns the
// road-following path as an encoded polyline
func (h *RouteHandler) Directions(c *gin.Context) {
	var req struct {
		Locations [][2]float64 `json:"locations" binding:"required,min=2"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	path, err := h.routeService.Directions(c.Request.Context(), req.Locations)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "Routing request failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"path": path})
}
