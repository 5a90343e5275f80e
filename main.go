package main

import (
	"log"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/kendall-kelly/triloka-construction-api/config"
	"github.com/kendall-kelly/triloka-construction-api/controllers"
	"github.com/kendall-kelly/triloka-construction-api/middleware"
	"github.com/kendall-kelly/triloka-construction-api/models"
	"github.com/kendall-kelly/triloka-construction-api/services"
)

func main() {
	log.Println("Starting Triloka Construction API server...")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if err := config.ConnectDatabase(cfg); err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	if err := config.RunMigrations(config.GetDB()); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}
	log.Println("Database migration completed successfully")

	redisClient, err := config.ConnectRedis(cfg)
	if err != nil {
		// The dashboard still works without a cache
		log.Printf("warning: %v; dashboard cache disabled", err)
		redisClient = nil
	}
	services.InitDashboardCache(redisClient, cfg.DashboardCacheTTL)

	if _, err := services.InitFileStorage(cfg); err != nil {
		log.Fatalf("Failed to initialize file storage: %v", err)
	}
	log.Printf("File storage initialized (%s)", cfg.StorageDriver)

	if cfg.ExternalLoginEnabled() {
		verifier, err := services.NewJWKSIdentityVerifier(cfg.IdentityIssuer, cfg.IdentityAudience)
		if err != nil {
			log.Fatalf("Failed to set up identity verifier: %v", err)
		}
		services.SetIdentityVerifier(verifier)
		log.Printf("External sign-in enabled (issuer %s)", cfg.IdentityIssuer)
	}

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := setupRouter(cfg)

	port := ":" + cfg.Port
	log.Printf("Server is running on http://localhost%s", port)
	if err := router.Run(port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

// setupRouter builds the engine with middleware and every API route
func setupRouter(cfg *config.Config) *gin.Engine {
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())
	router.Use(middleware.SecureHeaders(cfg))
	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSAllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	registerRoutes(router, cfg)
	return router
}

// registerRoutes mounts the client API and the admin surface under /api/v1
func registerRoutes(router *gin.Engine, cfg *config.Config) {
	loginLimiter := middleware.RateLimitByIP(cfg.LoginRateLimit, time.Minute)
	auth := middleware.Authenticate(cfg)

	v1 := router.Group("/api/v1")
	{
		v1.GET("/health", healthCheck)
		v1.GET("/database/status", databaseStatus)

		v1.POST("/register", loginLimiter, controllers.Register)
		v1.POST("/login", loginLimiter, controllers.Login)
		v1.POST("/auth/external", loginLimiter, controllers.ExternalLogin)
		v1.GET("/files/*key", controllers.ServeFile)
	}

	api := v1.Group("", auth)
	{
		api.POST("/logout", controllers.Logout)
		api.GET("/user", controllers.GetCurrentUser)
		api.PUT("/user/profile", controllers.UpdateProfile)
		api.PUT("/user/password", controllers.ChangePassword)

		api.GET("/dashboard/summary", controllers.GetDashboardSummary)

		api.GET("/project-requests", controllers.ListProjectRequests)
		api.POST("/project-requests", controllers.CreateProjectRequest)
		api.GET("/project-requests/:id", controllers.GetProjectRequest)
		api.PUT("/project-requests/:id", controllers.UpdateProjectRequest)
		api.DELETE("/project-requests/:id", controllers.DeleteProjectRequest)
		api.POST("/project-requests/:id/documents", controllers.UploadDocument)
		api.DELETE("/documents/:id", controllers.DeleteDocument)

		api.GET("/quotations", controllers.ListQuotations)
		api.GET("/quotations/:id", controllers.GetQuotation)
		api.POST("/quotations/:id/approve", controllers.ApproveQuotation)
		api.POST("/quotations/:id/reject", controllers.RejectQuotation)

		api.GET("/negotiations", controllers.ListNegotiations)
		api.POST("/negotiations", controllers.CreateNegotiation)

		api.GET("/invoices", controllers.ListInvoices)
		api.GET("/invoices/status/overdue", controllers.ListOverdueInvoices)
		api.GET("/invoices/:id", controllers.GetInvoice)
		api.GET("/invoices/:id/payments", controllers.GetInvoicePayments)

		api.GET("/payments", controllers.ListPayments)
		api.POST("/payments", controllers.SubmitPayment)
		api.GET("/payments/:id", controllers.GetPayment)

		api.GET("/items", controllers.ListItems)
		api.GET("/items/:id", controllers.GetItem)

		api.GET("/notifications", controllers.ListNotifications)
		api.PUT("/notifications/read-all", controllers.MarkAllNotificationsRead)
		api.GET("/notifications/:id", controllers.GetNotification)
		api.PUT("/notifications/:id/read", controllers.MarkNotificationRead)
		api.DELETE("/notifications/:id", controllers.DeleteNotification)
	}

	v1.POST("/admin/login", loginLimiter, controllers.AdminLogin)

	admin := v1.Group("/admin", auth, middleware.RequireRole(models.RoleAdmin))
	{
		admin.POST("/logout", controllers.AdminLogout)
		admin.GET("/dashboard", controllers.GetDashboardSummary)

		admin.GET("/project-requests", controllers.ListProjectRequests)
		admin.GET("/project-requests/:id", controllers.GetProjectRequest)
		admin.PUT("/project-requests/:id/status", controllers.UpdateProjectRequestStatus)
		admin.GET("/project-requests/:id/survey-status", controllers.GetSurveyFeeStatus)

		admin.GET("/documents", controllers.ListDocuments)
		admin.GET("/documents/:id", controllers.GetDocument)
		admin.PUT("/documents/:id/verification", controllers.VerifyDocument)
		admin.GET("/documents/:id/download", controllers.DownloadDocument)

		admin.GET("/quotations", controllers.ListQuotations)
		admin.POST("/quotations", controllers.CreateQuotation)
		admin.GET("/quotations/:id", controllers.GetQuotation)
		admin.PUT("/quotations/:id", controllers.UpdateQuotationTerms)
		admin.DELETE("/quotations/:id", controllers.DeleteQuotation)
		admin.POST("/quotations/:id/items", controllers.AddQuotationItem)
		admin.PUT("/quotations/:id/items/:itemId", controllers.UpdateQuotationItem)
		admin.DELETE("/quotations/:id/items/:itemId", controllers.DeleteQuotationItem)
		admin.POST("/quotations/:id/send", controllers.SendQuotation)

		admin.GET("/negotiations", controllers.ListNegotiations)
		admin.POST("/negotiations/:id/accept", controllers.AcceptNegotiation)
		admin.POST("/negotiations/:id/reject", controllers.RejectNegotiation)

		admin.GET("/invoices", controllers.ListInvoices)
		admin.POST("/invoices", controllers.CreateInvoice)
		admin.POST("/invoices/from-quotation", controllers.CreateInvoiceFromQuotation)
		admin.POST("/invoices/survey", controllers.CreateSurveyInvoice)
		admin.GET("/invoices/:id", controllers.GetInvoice)
		admin.PUT("/invoices/:id", controllers.UpdateInvoice)
		admin.DELETE("/invoices/:id", controllers.DeleteInvoice)
		admin.POST("/invoices/:id/apply-survey-discount", controllers.ApplySurveyDiscount)

		admin.GET("/payments", controllers.ListPayments)
		admin.GET("/payments/:id", controllers.GetPayment)
		admin.POST("/payments/:id/verify", controllers.VerifyPayment)
		admin.POST("/payments/:id/reject", controllers.RejectPayment)
		admin.DELETE("/payments/:id", controllers.DeletePayment)

		admin.GET("/items", controllers.ListItems)
		admin.GET("/items/low-stock", controllers.ListLowStockItems)
		admin.POST("/items", controllers.CreateItem)
		admin.PUT("/items/:id", controllers.UpdateItem)
		admin.DELETE("/items/:id", controllers.DeleteItem)

		admin.GET("/users", controllers.ListUsers)
		admin.POST("/users", controllers.CreateUser)
		admin.GET("/users/:id", controllers.GetUser)
		admin.PUT("/users/:id", controllers.UpdateUser)
		admin.DELETE("/users/:id", controllers.DeactivateUser)

		admin.GET("/activity-logs", controllers.ListActivityLogs)

		admin.GET("/exports/project-requests.csv", controllers.ExportProjectRequestsCSV)
		admin.GET("/exports/invoices.csv", controllers.ExportInvoicesCSV)
		admin.GET("/exports/invoices.xlsx", controllers.ExportInvoicesXLSX)
		admin.GET("/exports/payments.csv", controllers.ExportPaymentsCSV)
		admin.GET("/exports/invoices/:id/print", controllers.PrintInvoice)
	}
}

// healthCheck handles the health check endpoint
func healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Triloka Construction API is running",
	})
}

// databaseStatus checks database connectivity and returns table information
func databaseStatus(c *gin.Context) {
	db := config.GetDB()

	// Get the underlying SQL database to check connection
	sqlDB, err := db.DB()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "DATABASE_ERROR",
				"message": "Failed to get database instance",
			},
		})
		return
	}

	if err := sqlDB.PingContext(c.Request.Context()); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "DATABASE_CONNECTION_ERROR",
				"message": "Database connection failed",
			},
		})
		return
	}

	tables, err := db.Migrator().GetTables()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "DATABASE_QUERY_ERROR",
				"message": "Failed to query tables",
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Database connected",
		"tables":  tables,
	})
}
