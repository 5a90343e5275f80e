package acceptance

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kendall-kelly/triloka-construction-api/config"
	"github.com/kendall-kelly/triloka-construction-api/controllers"
	"github.com/kendall-kelly/triloka-construction-api/middleware"
	"github.com/kendall-kelly/triloka-construction-api/models"
	"github.com/kendall-kelly/triloka-construction-api/services"
	"github.com/kendall-kelly/triloka-construction-api/tests/testutil"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// newServer starts a real HTTP server over an in-memory database and mock storage
func newServer(t *testing.T) (*httptest.Server, *gorm.DB) {
	t.Helper()
	testutil.RequireTestEnvironment(t)
	gin.SetMode(gin.TestMode)

	cfg := testutil.TestConfig()
	db := testutil.SetupTestDB(t)
	services.NewMockStorage().SetAsMockForTesting()
	services.SetDashboardCache(nil)

	server := httptest.NewServer(createRouter(cfg))
	t.Cleanup(server.Close)
	return server, db
}

// createRouter mounts the routes exercised by the acceptance suites
func createRouter(cfg *config.Config) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), middleware.SecureHeaders(cfg))
	auth := middleware.Authenticate(cfg)

	v1 := router.Group("/api/v1")
	{
		v1.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"success": true, "message": "Triloka Construction API is running"})
		})
		v1.POST("/register", controllers.Register)
		v1.POST("/login", controllers.Login)
		v1.POST("/admin/login", controllers.AdminLogin)
		v1.GET("/files/*key", controllers.ServeFile)
	}

	api := v1.Group("", auth)
	{
		api.POST("/logout", controllers.Logout)
		api.GET("/user", controllers.GetCurrentUser)
		api.PUT("/user/password", controllers.ChangePassword)
		api.GET("/dashboard/summary", controllers.GetDashboardSummary)
		api.POST("/project-requests", controllers.CreateProjectRequest)
		api.GET("/project-requests/:id", controllers.GetProjectRequest)
		api.POST("/quotations/:id/approve", controllers.ApproveQuotation)
		api.GET("/quotations/:id", controllers.GetQuotation)
		api.POST("/negotiations", controllers.CreateNegotiation)
		api.GET("/invoices/:id", controllers.GetInvoice)
		api.GET("/invoices/:id/payments", controllers.GetInvoicePayments)
		api.POST("/payments", controllers.SubmitPayment)
		api.GET("/notifications", controllers.ListNotifications)
		api.PUT("/notifications/read-all", controllers.MarkAllNotificationsRead)
	}

	admin := v1.Group("/admin", auth, middleware.RequireRole(models.RoleAdmin))
	{
		admin.POST("/logout", controllers.AdminLogout)
		admin.GET("/dashboard", controllers.GetDashboardSummary)
		admin.GET("/project-requests/:id/survey-status", controllers.GetSurveyFeeStatus)
		admin.POST("/quotations", controllers.CreateQuotation)
		admin.POST("/quotations/:id/send", controllers.SendQuotation)
		admin.POST("/negotiations/:id/accept", controllers.AcceptNegotiation)
		admin.POST("/invoices/survey", controllers.CreateSurveyInvoice)
		admin.POST("/invoices/from-quotation", controllers.CreateInvoiceFromQuotation)
		admin.POST("/invoices/:id/apply-survey-discount", controllers.ApplySurveyDiscount)
		admin.POST("/payments/:id/verify", controllers.VerifyPayment)
		admin.GET("/exports/invoices/:id/print", controllers.PrintInvoice)
	}

	return router
}

// apiResponse is the common response envelope
type apiResponse struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   struct {
		Code    string            `json:"code"`
		Message string            `json:"message"`
		Details map[string]string `json:"details"`
	} `json:"error"`
}

// apiSession is one browser-like client with its own cookie jar
type apiSession struct {
	t      *testing.T
	base   string
	http   *http.Client
	bearer string
}

func newSession(t *testing.T, server *httptest.Server) *apiSession {
	t.Helper()

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &apiSession{t: t, base: server.URL, http: &http.Client{Jar: jar, Timeout: 10 * time.Second}}
}

// do sends a request and returns the status code and decoded envelope
func (s *apiSession) do(method, path string, body io.Reader, contentType string) (int, apiResponse) {
	s.t.Helper()

	req, err := http.NewRequest(method, s.base+path, body)
	require.NoError(s.t, err)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if s.bearer != "" {
		req.Header.Set("Authorization", testutil.AuthHeader(s.bearer))
	}

	resp, err := s.http.Do(req)
	require.NoError(s.t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(s.t, err)

	var out apiResponse
	if len(raw) > 0 && raw[0] == '{' {
		require.NoError(s.t, json.Unmarshal(raw, &out), "Response body: %s", raw)
	}
	return resp.StatusCode, out
}

func (s *apiSession) json(method, path string, payload interface{}) (int, apiResponse) {
	s.t.Helper()

	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		require.NoError(s.t, err)
		body = bytes.NewReader(raw)
	}
	return s.do(method, path, body, "application/json")
}

// expect sends a JSON request that must return status, decoding data into dest when given
func (s *apiSession) expect(status int, method, path string, payload, dest interface{}) apiResponse {
	s.t.Helper()

	code, response := s.json(method, path, payload)
	require.Equal(s.t, status, code, "%s %s: %+v", method, path, response)
	if dest != nil {
		require.NoError(s.t, json.Unmarshal(response.Data, dest))
	}
	return response
}
