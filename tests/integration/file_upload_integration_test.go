package integration

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kendall-kelly/triloka-construction-api/controllers"
	"github.com/kendall-kelly/triloka-construction-api/middleware"
	"github.com/kendall-kelly/triloka-construction-api/models"
	"github.com/kendall-kelly/triloka-construction-api/services"
	"github.com/kendall-kelly/triloka-construction-api/tests/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
	"gorm.io/gorm"
)

// FileUploadIntegrationTestSuite runs uploads against disk-backed storage
type FileUploadIntegrationTestSuite struct {
	suite.Suite
	db          *gorm.DB
	router      *gin.Engine
	uploadDir   string
	admin       *models.User
	client      *models.User
	clientToken string
	adminToken  string
}

// SetupSuite runs once before all tests
func (suite *FileUploadIntegrationTestSuite) SetupSuite() {
	testutil.RequireTestEnvironment(suite.T())
	gin.SetMode(gin.TestMode)
}

// SetupTest runs before each test
func (suite *FileUploadIntegrationTestSuite) SetupTest() {
	cfg := testutil.TestConfig()
	suite.db = testutil.SetupTestDB(suite.T())
	services.SetDashboardCache(nil)

	suite.uploadDir = suite.T().TempDir()
	services.SetFileStorage(services.NewLocalStorage(suite.uploadDir, "/api/v1/files"))

	suite.client = testutil.CreateClient(suite.T(), suite.db, "client@example.com")
	suite.clientToken = testutil.IssueToken(suite.T(), suite.db, suite.client)
	suite.admin = testutil.CreateAdmin(suite.T(), suite.db)
	suite.adminToken = testutil.IssueToken(suite.T(), suite.db, suite.admin)

	suite.router = gin.New()
	suite.router.Use(gin.Recovery())
	v1 := suite.router.Group("/api/v1")
	v1.GET("/files/*key", controllers.ServeFile)

	api := v1.Group("", middleware.Authenticate(cfg))
	api.POST("/project-requests/:id/documents", controllers.UploadDocument)
	api.DELETE("/documents/:id", controllers.DeleteDocument)
	api.POST("/payments", controllers.SubmitPayment)

	admin := v1.Group("/admin", middleware.Authenticate(cfg), middleware.RequireRole(models.RoleAdmin))
	admin.GET("/documents/:id/download", controllers.DownloadDocument)
	admin.DELETE("/payments/:id", controllers.DeletePayment)
}

func (suite *FileUploadIntegrationTestSuite) upload(path, token string, fields map[string]string, fileField, filename string, content []byte) *httptest.ResponseRecorder {
	body, contentType := testutil.MultipartBody(suite.T(), fields, fileField, filename, content)
	req := httptest.NewRequest(http.MethodPost, path, body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", testutil.AuthHeader(token))
	w := httptest.NewRecorder()
	suite.router.ServeHTTP(w, req)
	return w
}

func (suite *FileUploadIntegrationTestSuite) send(method, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", testutil.AuthHeader(token))
	}
	w := httptest.NewRecorder()
	suite.router.ServeHTTP(w, req)
	return w
}

func (suite *FileUploadIntegrationTestSuite) data(w *httptest.ResponseRecorder, dest interface{}) {
	var response struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
	}
	suite.Require().NoError(json.Unmarshal(w.Body.Bytes(), &response), "Response body: %s", w.Body.String())
	suite.Require().True(response.Success)
	suite.Require().NoError(json.Unmarshal(response.Data, dest))
}

func (suite *FileUploadIntegrationTestSuite) diskPath(key string) string {
	return filepath.Join(suite.uploadDir, filepath.FromSlash(key))
}

func (suite *FileUploadIntegrationTestSuite) createRequest() *models.ProjectRequest {
	req, err := services.NewProjectRequestService(suite.db, services.GetFileStorage()).Create(
		services.Actor{User: suite.client}, services.ProjectRequestInput{Title: "Office fit-out", Type: "renovation"})
	suite.Require().NoError(err)
	return req
}

// TestDocumentUploadLifecycle stores, serves, downloads and removes a document
func (suite *FileUploadIntegrationTestSuite) TestDocumentUploadLifecycle() {
	req := suite.createRequest()
	content := []byte("%PDF-1.4 floor plan")

	w := suite.upload(fmt.Sprintf("/api/v1/project-requests/%d/documents", req.ID), suite.clientToken,
		map[string]string{"document_type": "drawing", "description": "Ground floor"}, "file", "Floor Plan.pdf", content)
	suite.Require().Equal(http.StatusCreated, w.Code, "Response body: %s", w.Body.String())

	var doc models.RequestDocument
	suite.data(w, &doc)
	assert.Equal(suite.T(), "Floor Plan.pdf", doc.FileName)
	assert.Equal(suite.T(), int64(len(content)), doc.FileSize)
	assert.True(suite.T(), strings.HasPrefix(doc.FilePath, services.FolderRequestDocuments+"/"))
	assert.Equal(suite.T(), "/api/v1/files/"+doc.FilePath, doc.FileURL)

	onDisk, err := os.ReadFile(suite.diskPath(doc.FilePath))
	suite.Require().NoError(err)
	assert.Equal(suite.T(), content, onDisk)

	w = suite.send(http.MethodGet, doc.FileURL, "")
	suite.Require().Equal(http.StatusOK, w.Code)
	assert.Equal(suite.T(), "application/pdf", w.Header().Get("Content-Type"))
	assert.Equal(suite.T(), content, w.Body.Bytes())

	w = suite.send(http.MethodGet, fmt.Sprintf("/api/v1/admin/documents/%d/download", doc.ID), suite.adminToken)
	suite.Require().Equal(http.StatusOK, w.Code)
	assert.Contains(suite.T(), w.Header().Get("Content-Disposition"), "Floor%20Plan.pdf")
	assert.Equal(suite.T(), content, w.Body.Bytes())

	w = suite.send(http.MethodGet, fmt.Sprintf("/api/v1/admin/documents/%d/download", doc.ID), suite.clientToken)
	assert.Equal(suite.T(), http.StatusForbidden, w.Code)

	w = suite.send(http.MethodDelete, fmt.Sprintf("/api/v1/documents/%d", doc.ID), suite.clientToken)
	suite.Require().Equal(http.StatusOK, w.Code, "Response body: %s", w.Body.String())
	_, err = os.Stat(suite.diskPath(doc.FilePath))
	assert.True(suite.T(), os.IsNotExist(err))

	assert.Equal(suite.T(), http.StatusNotFound, suite.send(http.MethodGet, doc.FileURL, "").Code)
}

// TestDocumentUploadRejectsBadFiles leaves nothing on disk
func (suite *FileUploadIntegrationTestSuite) TestDocumentUploadRejectsBadFiles() {
	req := suite.createRequest()
	path := fmt.Sprintf("/api/v1/project-requests/%d/documents", req.ID)

	w := suite.upload(path, suite.clientToken, map[string]string{"document_type": "photo"}, "file", "virus.exe", []byte("MZ"))
	assert.Equal(suite.T(), http.StatusUnprocessableEntity, w.Code)

	big := make([]byte, 5*1024*1024+1)
	w = suite.upload(path, suite.clientToken, map[string]string{"document_type": "photo"}, "file", "huge.jpg", big)
	assert.Equal(suite.T(), http.StatusUnprocessableEntity, w.Code)

	entries, err := os.ReadDir(filepath.Join(suite.uploadDir, services.FolderRequestDocuments))
	if err == nil {
		assert.Empty(suite.T(), entries)
	}
}

// TestPaymentProofStoredAndRemoved keeps the proof until the payment is force-deleted
func (suite *FileUploadIntegrationTestSuite) TestPaymentProofStoredAndRemoved() {
	inv, err := services.NewInvoiceService(suite.db, services.InvoiceOptions{VABank: "BCA"}).CreateManual(
		services.Actor{User: suite.admin}, services.ManualInvoiceInput{
			ClientID:    suite.client.ID,
			InvoiceDate: time.Now(),
			DueDate:     time.Now().AddDate(0, 0, 7),
			Items: []services.InvoiceItemInput{{
				ItemLine: services.ItemLine{Quantity: decimal.NewFromInt(1), UnitPrice: decimal.NewFromInt(300000)},
				ItemName: "Site survey",
				Unit:     "service",
			}},
		})
	suite.Require().NoError(err)

	w := suite.upload("/api/v1/payments", suite.clientToken, map[string]string{
		"invoice_id":     fmt.Sprint(inv.ID),
		"amount":         "300000",
		"payment_date":   time.Now().Format("2006-01-02"),
		"payment_method": "transfer",
	}, "proof_image", "receipt.jpg", testutil.PNG)
	suite.Require().Equal(http.StatusCreated, w.Code, "Response body: %s", w.Body.String())

	var payment models.Payment
	suite.data(w, &payment)
	assert.True(suite.T(), strings.HasPrefix(payment.ProofImage, services.FolderPaymentProofs+"/"))
	assert.FileExists(suite.T(), suite.diskPath(payment.ProofImage))

	w = suite.send(http.MethodGet, payment.ProofImageURL, "")
	suite.Require().Equal(http.StatusOK, w.Code)
	assert.Equal(suite.T(), "image/jpeg", w.Header().Get("Content-Type"))
	served, err := io.ReadAll(w.Body)
	suite.Require().NoError(err)
	assert.Equal(suite.T(), testutil.PNG, served)

	w = suite.send(http.MethodDelete, fmt.Sprintf("/api/v1/admin/payments/%d", payment.ID), suite.adminToken)
	suite.Require().Equal(http.StatusOK, w.Code, "Response body: %s", w.Body.String())
	assert.NoFileExists(suite.T(), suite.diskPath(payment.ProofImage))
}

// TestServeFileRejectsTraversal never reads outside the upload folders
func (suite *FileUploadIntegrationTestSuite) TestServeFileRejectsTraversal() {
	suite.Require().NoError(os.WriteFile(filepath.Join(suite.uploadDir, "secret.txt"), []byte("secret"), 0o600))

	for _, path := range []string{
		"/api/v1/files/secret.txt",
		"/api/v1/files/payment-proofs/../secret.txt",
		"/api/v1/files/request-documents/..%2fsecret.txt",
	} {
		w := suite.send(http.MethodGet, path, "")
		assert.NotEqual(suite.T(), http.StatusOK, w.Code, path)
		assert.NotEqual(suite.T(), "secret", w.Body.String(), path)
	}
}

// TestFileUploadIntegrationTestSuite runs the test suite
func TestFileUploadIntegrationTestSuite(t *testing.T) {
	suite.Run(t, new(FileUploadIntegrationTestSuite))
}
