package controllers

import (
	"io"
	"log"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"
	"github.com/kendall-kelly/triloka-construction-api/middleware"
	"github.com/kendall-kelly/triloka-construction-api/services"
	"github.com/kendall-kelly/triloka-construction-api/utils"
	"github.com/shopspring/decimal"
)

// ProjectRequestRequest represents the request body for creating or editing a project request
type ProjectRequestRequest struct {
	Title            string           `json:"title" binding:"required,max=255"`
	Type             string           `json:"type" binding:"required,oneof=construction renovation supply contractor other"`
	Description      string           `json:"description"`
	Location         string           `json:"location" binding:"max=255"`
	ExpectedBudget   *decimal.Decimal `json:"expected_budget"`
	ExpectedTimeline string           `json:"expected_timeline" binding:"max=255"`
}

func (r ProjectRequestRequest) input() services.ProjectRequestInput {
	in := services.ProjectRequestInput{
		Title:            r.Title,
		Type:             r.Type,
		Description:      r.Description,
		Location:         r.Location,
		ExpectedTimeline: r.ExpectedTimeline,
	}
	if r.ExpectedBudget != nil {
		in.ExpectedBudget = decimal.NewNullDecimal(*r.ExpectedBudget)
	}
	return in
}

// UpdateRequestStatusRequest represents the request body for an admin status change
type UpdateRequestStatusRequest struct {
	Status     string `json:"status" binding:"required"`
	AdminNotes string `json:"admin_notes"`
}

// UploadDocumentRequest holds the form fields sent with a document upload
type UploadDocumentRequest struct {
	DocumentType string `form:"document_type" binding:"required"`
	Description  string `form:"description"`
}

// VerifyDocumentRequest represents the request body for reviewing a document
type VerifyDocumentRequest struct {
	VerificationStatus string `json:"verification_status" binding:"required,oneof=pending verified rejected"`
	VerificationNotes  string `json:"verification_notes"`
}

func requestFilter(c *gin.Context) services.ProjectRequestFilter {
	return services.ProjectRequestFilter{
		Status: c.Query("status"),
		Type:   c.Query("type"),
		Search: c.Query("search"),
	}
}

// ListProjectRequests handles GET /api/v1/project-requests and GET /api/v1/admin/project-requests
func ListProjectRequests(c *gin.Context) {
	requests, err := projectRequestService().List(middleware.ActorFrom(c), requestFilter(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, requests)
}

// GetProjectRequest handles GET /api/v1/project-requests/:id
func GetProjectRequest(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	req, err := projectRequestService().Get(middleware.ActorFrom(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, req)
}

// CreateProjectRequest handles POST /api/v1/project-requests
func CreateProjectRequest(c *gin.Context) {
	var body ProjectRequestRequest
	if !bindJSON(c, &body) {
		return
	}

	req, err := projectRequestService().Create(middleware.ActorFrom(c), body.input())
	if err != nil {
		respondError(c, err)
		return
	}

	invalidateDashboard(c)
	respondOK(c, http.StatusCreated, req)
}

// UpdateProjectRequest handles PUT /api/v1/project-requests/:id
func UpdateProjectRequest(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	var body ProjectRequestRequest
	if !bindJSON(c, &body) {
		return
	}

	req, err := projectRequestService().Update(middleware.ActorFrom(c), id, body.input())
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, req)
}

// DeleteProjectRequest handles DELETE /api/v1/project-requests/:id
func DeleteProjectRequest(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	if err := projectRequestService().Delete(middleware.ActorFrom(c), id); err != nil {
		respondError(c, err)
		return
	}

	invalidateDashboard(c)
	respondMessage(c, "Project request deleted successfully", nil)
}

// UpdateProjectRequestStatus handles PUT /api/v1/admin/project-requests/:id/status
func UpdateProjectRequestStatus(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	var body UpdateRequestStatusRequest
	if !bindJSON(c, &body) {
		return
	}

	req, err := projectRequestService().UpdateStatus(middleware.ActorFrom(c), id, body.Status, body.AdminNotes)
	if err != nil {
		respondError(c, err)
		return
	}

	invalidateDashboard(c)
	respondOK(c, http.StatusOK, req)
}

// UploadDocument handles POST /api/v1/project-requests/:id/documents (multipart: file, document_type, description)
func UploadDocument(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	var form UploadDocumentRequest
	if !bindForm(c, &form) {
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		respondErrorCode(c, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "Invalid request data",
			map[string]string{"file": "is required"})
		return
	}

	doc, err := documentService().Upload(c.Request.Context(), middleware.ActorFrom(c), id, form.DocumentType, form.Description, fileHeader)
	if err != nil {
		respondError(c, err)
		return
	}

	invalidateDashboard(c)
	respondOK(c, http.StatusCreated, doc)
}

// DeleteDocument handles DELETE /api/v1/documents/:id
func DeleteDocument(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	if err := documentService().Delete(c.Request.Context(), middleware.ActorFrom(c), id); err != nil {
		respondError(c, err)
		return
	}

	invalidateDashboard(c)
	respondMessage(c, "Document deleted successfully", nil)
}

// ListDocuments handles GET /api/v1/admin/documents
func ListDocuments(c *gin.Context) {
	docs, err := documentService().List(c.Request.Context(), middleware.ActorFrom(c), services.DocumentFilter{
		ProjectRequestID:   queryUint(c, "project_request_id"),
		DocumentType:       c.Query("document_type"),
		VerificationStatus: c.Query("verification_status"),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, docs)
}

// GetDocument handles GET /api/v1/admin/documents/:id
func GetDocument(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	doc, err := documentService().Get(c.Request.Context(), middleware.ActorFrom(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, doc)
}

// VerifyDocument handles PUT /api/v1/admin/documents/:id/verification
func VerifyDocument(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	var body VerifyDocumentRequest
	if !bindJSON(c, &body) {
		return
	}

	doc, err := documentService().UpdateVerification(c.Request.Context(), middleware.ActorFrom(c), id, body.VerificationStatus, body.VerificationNotes)
	if err != nil {
		respondError(c, err)
		return
	}

	invalidateDashboard(c)
	respondOK(c, http.StatusOK, doc)
}

// DownloadDocument handles GET /api/v1/admin/documents/:id/download
func DownloadDocument(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	reader, doc, err := documentService().Open(c.Request.Context(), middleware.ActorFrom(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	defer reader.Close()

	c.Header("Content-Disposition", "attachment; filename*=UTF-8''"+url.PathEscape(doc.FileName))
	c.Header("Content-Type", utils.ContentType(doc.FileName))
	c.Status(http.StatusOK)
	if _, err := io.Copy(c.Writer, reader); err != nil {
		log.Printf("Failed to stream document %d: %v", doc.ID, err)
	}
}
