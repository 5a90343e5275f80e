package services

import (
	"context"
	"errors"
	"io"
	"log"
	"mime/multipart"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/kendall-kelly/triloka-construction-api/models"
	"github.com/kendall-kelly/triloka-construction-api/utils"
	"gorm.io/gorm"
)

// DocumentFilter narrows the admin document listing
type DocumentFilter struct {
	ProjectRequestID   uint
	DocumentType       string
	VerificationStatus string
}

// DocumentService manages files attached to project requests
type DocumentService struct {
	db      *gorm.DB
	storage FileStorage
}

// NewDocumentService creates a document service
func NewDocumentService(db *gorm.DB, storage FileStorage) *DocumentService {
	return &DocumentService{db: db, storage: storage}
}

// Upload stores a document for a request owned by the actor
func (s *DocumentService) Upload(ctx context.Context, actor Actor, requestID uint, documentType, description string, fileHeader *multipart.FileHeader) (*models.RequestDocument, error) {
	if !slices.Contains(models.DocumentTypes, documentType) {
		return nil, Validation(map[string]string{"document_type": "must be one of: " + strings.Join(models.DocumentTypes, ", ")})
	}

	var req models.ProjectRequest
	if err := s.db.First(&req, requestID).Error; err != nil {
		return nil, notFoundOr(err, "PROJECT_REQUEST_NOT_FOUND", "Project request not found")
	}
	if !actor.Owns(req.ClientID) {
		return nil, Forbidden("You can only upload documents to your own project requests")
	}
	if req.IsLocked() {
		return nil, RuleViolation("REQUEST_LOCKED", "Project request is locked because a linked invoice has been paid")
	}

	if err := utils.DocumentRule.Validate(fileHeader); err != nil {
		var fileErr *utils.FileUploadError
		if errors.As(err, &fileErr) {
			return nil, &ServiceError{Kind: KindValidation, Code: fileErr.Code, Message: fileErr.Message,
				Fields: map[string]string{"file": fileErr.Message}}
		}
		return nil, Internal("Failed to validate document", err)
	}

	key, err := s.storage.Save(ctx, FolderRequestDocuments, fileHeader)
	if err != nil {
		return nil, Internal("Failed to store document", err)
	}

	doc := models.RequestDocument{
		ProjectRequestID:   req.ID,
		DocumentType:       documentType,
		FilePath:           key,
		FileName:           filepath.Base(fileHeader.Filename),
		FileType:           strings.TrimPrefix(strings.ToLower(filepath.Ext(fileHeader.Filename)), "."),
		FileSize:           fileHeader.Size,
		Description:        description,
		VerificationStatus: models.VerificationPending,
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&doc).Error; err != nil {
			return err
		}
		return NewActivityService(tx).Log(actor, "upload_document", "Uploaded "+documentType+" document for "+req.RequestNumber,
			models.Ref(models.EntityRequestDocument, doc.ID), nil)
	})
	if err != nil {
		if delErr := s.storage.Delete(ctx, key); delErr != nil {
			log.Printf("warning: failed to remove orphaned document %s: %v", key, delErr)
		}
		return nil, wrap(err, "Failed to save document")
	}

	doc.FileURL = fileURL(ctx, s.storage, doc.FilePath)
	return &doc, nil
}

// Get returns one document visible to the actor
func (s *DocumentService) Get(ctx context.Context, actor Actor, id uint) (*models.RequestDocument, error) {
	var doc models.RequestDocument
	if err := s.db.Preload("ProjectRequest").Preload("ProjectRequest.Client").First(&doc, id).Error; err != nil {
		return nil, notFoundOr(err, "DOCUMENT_NOT_FOUND", "Document not found")
	}
	if doc.ProjectRequest == nil || !actor.CanView(doc.ProjectRequest.ClientID) {
		return nil, Forbidden("You do not have access to this document")
	}
	doc.FileURL = fileURL(ctx, s.storage, doc.FilePath)
	return &doc, nil
}

// List returns documents for admins, newest first
func (s *DocumentService) List(ctx context.Context, actor Actor, filter DocumentFilter) ([]models.RequestDocument, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}

	query := s.db.Model(&models.RequestDocument{}).Preload("ProjectRequest").Preload("ProjectRequest.Client")
	if filter.ProjectRequestID != 0 {
		query = query.Where("project_request_id = ?", filter.ProjectRequestID)
	}
	if filter.DocumentType != "" {
		query = query.Where("document_type = ?", filter.DocumentType)
	}
	if filter.VerificationStatus != "" {
		query = query.Where("verification_status = ?", filter.VerificationStatus)
	}

	var docs []models.RequestDocument
	if err := query.Order("created_at DESC, id DESC").Find(&docs).Error; err != nil {
		return nil, Internal("Failed to list documents", err)
	}
	for i := range docs {
		docs[i].FileURL = fileURL(ctx, s.storage, docs[i].FilePath)
	}
	return docs, nil
}

// UpdateVerification records an admin's review of a document
func (s *DocumentService) UpdateVerification(ctx context.Context, actor Actor, id uint, status, notes string) (*models.RequestDocument, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	valid := []string{models.VerificationPending, models.VerificationVerified, models.VerificationRejected}
	if !slices.Contains(valid, status) {
		return nil, Validation(map[string]string{"verification_status": "must be one of: pending, verified, rejected"})
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		var doc models.RequestDocument
		if err := tx.First(&doc, id).Error; err != nil {
			return notFoundOr(err, "DOCUMENT_NOT_FOUND", "Document not found")
		}

		updates := map[string]interface{}{
			"verification_status": status,
			"verification_notes":  notes,
			"verified_by":         nil,
			"verified_at":         nil,
		}
		if status == models.VerificationVerified {
			updates["verified_by"] = actor.UserID()
			updates["verified_at"] = time.Now()
		}
		if err := tx.Model(&doc).Updates(updates).Error; err != nil {
			return err
		}

		return NewActivityService(tx).Log(actor, "verify_document", "Marked document as "+status,
			models.Ref(models.EntityRequestDocument, doc.ID), map[string]interface{}{"notes": notes})
	})
	if err != nil {
		return nil, wrap(err, "Failed to update document")
	}

	return s.Get(ctx, actor, id)
}

// Delete removes a document owned by the actor, then its stored file
func (s *DocumentService) Delete(ctx context.Context, actor Actor, id uint) error {
	var key string
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var doc models.RequestDocument
		if err := tx.Preload("ProjectRequest").First(&doc, id).Error; err != nil {
			return notFoundOr(err, "DOCUMENT_NOT_FOUND", "Document not found")
		}
		if doc.ProjectRequest == nil || !actor.Owns(doc.ProjectRequest.ClientID) {
			return Forbidden("You can only delete your own documents")
		}
		if doc.ProjectRequest.IsLocked() {
			return RuleViolation("REQUEST_LOCKED", "Project request is locked because a linked invoice has been paid")
		}

		key = doc.FilePath
		if err := tx.Delete(&doc).Error; err != nil {
			return err
		}
		return NewActivityService(tx).Log(actor, "delete_document", "Deleted document "+doc.FileName,
			models.Ref(models.EntityRequestDocument, doc.ID), nil)
	})
	if err != nil {
		return wrap(err, "Failed to delete document")
	}

	if err := s.storage.Delete(ctx, key); err != nil {
		log.Printf("warning: failed to delete stored document %s: %v", key, err)
	}
	return nil
}

// Open streams a document's stored file
func (s *DocumentService) Open(ctx context.Context, actor Actor, id uint) (io.ReadCloser, *models.RequestDocument, error) {
	doc, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, nil, err
	}
	reader, err := s.storage.Open(ctx, doc.FilePath)
	if err != nil {
		return nil, nil, NotFound("FILE_NOT_FOUND", "Stored file not found")
	}
	return reader, doc, nil
}
