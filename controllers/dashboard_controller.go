package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kendall-kelly/triloka-construction-api/config"
	"github.com/kendall-kelly/triloka-construction-api/services"
)

// GetDashboardSummary handles GET /api/v1/dashboard/summary and GET /api/v1/admin/dashboard
func GetDashboardSummary(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	summary, err := services.NewDashboardService(config.GetDB(), services.GetDashboardCache()).Summary(c.Request.Context(), user)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, summary)
}
