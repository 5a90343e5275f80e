package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kendall-kelly/triloka-construction-api/config"
	"github.com/kendall-kelly/triloka-construction-api/middleware"
	"github.com/kendall-kelly/triloka-construction-api/models"
	"github.com/kendall-kelly/triloka-construction-api/services"
)

// Services are built per request on the shared database and storage

func tokenService() *services.TokenService {
	cfg := config.GetConfig()
	return services.NewTokenService(config.GetDB(), cfg.JWTSecret, cfg.TokenTTL)
}

func authService() *services.AuthService {
	return services.NewAuthService(config.GetDB(), tokenService())
}

func invoiceService() *services.InvoiceService {
	cfg := config.GetConfig()
	return services.NewInvoiceService(config.GetDB(), services.InvoiceOptions{
		SurveyFee: cfg.SurveyFee,
		VABank:    cfg.VABank,
	})
}

func paymentService() *services.PaymentService {
	return services.NewPaymentService(config.GetDB(), services.GetFileStorage())
}

func documentService() *services.DocumentService {
	return services.NewDocumentService(config.GetDB(), services.GetFileStorage())
}

func projectRequestService() *services.ProjectRequestService {
	return services.NewProjectRequestService(config.GetDB(), services.GetFileStorage())
}

// currentUser returns the authenticated user or writes a 401
func currentUser(c *gin.Context) (*models.User, bool) {
	user, err := middleware.CurrentUser(c)
	if err != nil {
		respondErrorCode(c, http.StatusUnauthorized, "UNAUTHORIZED", "Could not identify the current user", nil)
		return nil, false
	}
	return user, true
}

// invalidateDashboard drops cached dashboard summaries after a successful write
func invalidateDashboard(c *gin.Context) {
	services.InvalidateDashboard(c.Request.Context())
}
