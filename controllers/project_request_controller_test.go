package controllers

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/kendall-kelly/triloka-construction-api/models"
	"github.com/kendall-kelly/triloka-construction-api/services"
	"github.com/kendall-kelly/triloka-construction-api/tests/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateProjectRequest(t *testing.T) {
	db, _ := setupTestEnv(t)
	client := testutil.CreateClient(t, db, "client@example.com")

	router := setupTestRouter()
	router.POST("/project-requests", mockAuthMiddleware(client), CreateProjectRequest)

	tests := []struct {
		name           string
		body           map[string]interface{}
		expectedStatus int
		expectedField  string
	}{
		{
			name:           "Create request successfully",
			body:           map[string]interface{}{"title": "Two-storey house", "type": "construction", "location": "Depok", "expected_budget": "750000000"},
			expectedStatus: http.StatusCreated,
		},
		{
			name:           "Fail with missing title",
			body:           map[string]interface{}{"type": "construction"},
			expectedStatus: http.StatusUnprocessableEntity,
			expectedField:  "title",
		},
		{
			name:           "Fail with unknown type",
			body:           map[string]interface{}{"title": "Pool", "type": "landscaping"},
			expectedStatus: http.StatusUnprocessableEntity,
			expectedField:  "type",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := performJSON(t, router, http.MethodPost, "/project-requests", tt.body)

			assert.Equal(t, tt.expectedStatus, w.Code, "Response body: %s", w.Body.String())
			if tt.expectedField != "" {
				assert.Contains(t, responseError(t, w)["details"], tt.expectedField)
				return
			}

			data := responseData(t, w)
			assert.Regexp(t, `^REQ-\d{8}-\d{3}$`, data["request_number"])
			assert.Equal(t, models.RequestStatusPending, data["status"])
			assert.Equal(t, float64(client.ID), data["client_id"])
		})
	}
}

func TestProjectRequestVisibility(t *testing.T) {
	db, _ := setupTestEnv(t)
	client := testutil.CreateClient(t, db, "client@example.com")
	other := testutil.CreateClient(t, db, "other@example.com")
	admin := testutil.CreateAdmin(t, db)

	req, err := services.NewProjectRequestService(db, services.GetFileStorage()).Create(
		services.Actor{User: client}, services.ProjectRequestInput{Title: "Fence", Type: "renovation"})
	require.NoError(t, err)

	router := setupTestRouter()
	router.GET("/client/project-requests/:id", mockAuthMiddleware(client), GetProjectRequest)
	router.GET("/other/project-requests/:id", mockAuthMiddleware(other), GetProjectRequest)
	router.GET("/other/project-requests", mockAuthMiddleware(other), ListProjectRequests)
	router.GET("/admin/project-requests", mockAuthMiddleware(admin), ListProjectRequests)

	w := performJSON(t, router, http.MethodGet, fmt.Sprintf("/client/project-requests/%d", req.ID), nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = performJSON(t, router, http.MethodGet, fmt.Sprintf("/other/project-requests/%d", req.ID), nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = performJSON(t, router, http.MethodGet, "/other/project-requests", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decodeResponse(t, w)["data"])

	w = performJSON(t, router, http.MethodGet, "/admin/project-requests?type=renovation", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decodeResponse(t, w)["data"], 1)
}

func TestUploadDocument(t *testing.T) {
	db, storage := setupTestEnv(t)
	client := testutil.CreateClient(t, db, "client@example.com")
	other := testutil.CreateClient(t, db, "other@example.com")

	req, err := services.NewProjectRequestService(db, storage).Create(
		services.Actor{User: client}, services.ProjectRequestInput{Title: "Kitchen", Type: "renovation"})
	require.NoError(t, err)
	path := fmt.Sprintf("/project-requests/%d/documents", req.ID)

	router := setupTestRouter()
	router.POST("/project-requests/:id/documents", mockAuthMiddleware(client), UploadDocument)
	otherRouter := setupTestRouter()
	otherRouter.POST("/project-requests/:id/documents", mockAuthMiddleware(other), UploadDocument)

	tests := []struct {
		name           string
		router         http.Handler
		fields         map[string]string
		filename       string
		expectedStatus int
		expectedCode   string
	}{
		{"Upload drawing successfully", router, map[string]string{"document_type": "drawing", "description": "Floor plan"}, "plan.pdf", http.StatusCreated, ""},
		{"Fail with unsupported file", router, map[string]string{"document_type": "drawing"}, "plan.exe", http.StatusUnprocessableEntity, "INVALID_FILE_FORMAT"},
		{"Fail with unknown document type", router, map[string]string{"document_type": "selfie"}, "me.png", http.StatusUnprocessableEntity, "VALIDATION_ERROR"},
		{"Fail without document type", router, map[string]string{}, "plan.pdf", http.StatusUnprocessableEntity, "VALIDATION_ERROR"},
		{"Fail on another client's request", otherRouter, map[string]string{"document_type": "photo"}, "site.jpg", http.StatusForbidden, "FORBIDDEN"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := storage.Count()
			body, contentType := testutil.MultipartBody(t, tt.fields, "file", tt.filename, testutil.PNG)

			w := performRequest(tt.router, http.MethodPost, path, body, contentType)

			assert.Equal(t, tt.expectedStatus, w.Code, "Response body: %s", w.Body.String())
			if tt.expectedCode != "" {
				assert.Equal(t, tt.expectedCode, responseError(t, w)["code"])
				assert.Equal(t, before, storage.Count())
				return
			}

			data := responseData(t, w)
			assert.Equal(t, "drawing", data["document_type"])
			assert.Equal(t, models.VerificationPending, data["verification_status"])
			assert.Equal(t, before+1, storage.Count())
		})
	}

	body, contentType := testutil.MultipartBody(t, map[string]string{"document_type": "photo"}, "", "", nil)
	w := performRequest(router, http.MethodPost, path, body, contentType)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, responseError(t, w)["details"], "file")
}

func TestServeFile(t *testing.T) {
	_, storage := setupTestEnv(t)

	header := multipartFileHeader(t, "receipt.png", testutil.PNG)
	key, err := storage.Save(t.Context(), services.FolderPaymentProofs, header)
	require.NoError(t, err)

	router := setupTestRouter()
	router.GET("/files/*key", ServeFile)

	w := performRequest(router, http.MethodGet, "/files/"+key, nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
	assert.Equal(t, testutil.PNG, w.Body.Bytes())

	tests := []struct {
		name           string
		path           string
		expectedStatus int
	}{
		{"directory traversal", "/files/payment-proofs/../../etc/passwd", http.StatusBadRequest},
		{"encoded traversal", "/files/payment-proofs/%2e%2e/secret", http.StatusBadRequest},
		{"unknown folder", "/files/private/receipt.png", http.StatusNotFound},
		{"missing file", "/files/payment-proofs/missing.png", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := performRequest(router, http.MethodGet, tt.path, nil, "")
			assert.Equal(t, tt.expectedStatus, w.Code, "Response body: %s", w.Body.String())
		})
	}
}
