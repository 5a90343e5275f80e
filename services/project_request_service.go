package services

import (
	"context"
	"log"
	"slices"
	"time"

	"github.com/kendall-kelly/triloka-construction-api/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ProjectRequestInput is the client-editable content of a project request
type ProjectRequestInput struct {
	Title            string
	Type             string
	Description      string
	Location         string
	ExpectedBudget   decimal.NullDecimal
	ExpectedTimeline string
}

// ProjectRequestFilter narrows project request listings
type ProjectRequestFilter struct {
	Status string
	Type   string
	Search string
}

// ProjectRequestService manages client project requests
type ProjectRequestService struct {
	db      *gorm.DB
	storage FileStorage
}

// NewProjectRequestService creates a project request service
func NewProjectRequestService(db *gorm.DB, storage FileStorage) *ProjectRequestService {
	return &ProjectRequestService{db: db, storage: storage}
}

func validateRequestInput(in ProjectRequestInput) map[string]string {
	fields := map[string]string{}
	if in.Title == "" {
		fields["title"] = "is required"
	}
	if !slices.Contains(models.RequestTypes, in.Type) {
		fields["type"] = "must be one of: construction, renovation, supply, contractor, other"
	}
	if in.ExpectedBudget.Valid && in.ExpectedBudget.Decimal.IsNegative() {
		fields["expected_budget"] = "must not be negative"
	}
	return fields
}

// loadUnlockedRequest loads a request and checks it has not been locked by a paid invoice
func loadUnlockedRequest(tx *gorm.DB, id uint) (*models.ProjectRequest, error) {
	var req models.ProjectRequest
	if err := tx.First(&req, id).Error; err != nil {
		return nil, notFoundOr(err, "PROJECT_REQUEST_NOT_FOUND", "Project request not found")
	}
	if req.IsLocked() {
		return nil, RuleViolation("REQUEST_LOCKED", "Project request is locked because a linked invoice has been paid")
	}
	return &req, nil
}

// Create submits a new request for the calling client
func (s *ProjectRequestService) Create(actor Actor, in ProjectRequestInput) (*models.ProjectRequest, error) {
	if actor.User == nil || actor.IsAdmin() {
		return nil, Forbidden("Only clients can submit project requests")
	}
	if fields := validateRequestInput(in); len(fields) > 0 {
		return nil, Validation(fields)
	}

	var req models.ProjectRequest
	err := s.db.Transaction(func(tx *gorm.DB) error {
		number, err := NextNumber(tx, &models.ProjectRequest{}, "request_number", PrefixRequest, time.Now())
		if err != nil {
			return err
		}

		req = models.ProjectRequest{
			RequestNumber:    number,
			ClientID:         actor.UserID(),
			Title:            in.Title,
			Type:             in.Type,
			Description:      in.Description,
			Location:         in.Location,
			ExpectedBudget:   in.ExpectedBudget,
			ExpectedTimeline: in.ExpectedTimeline,
			Status:           models.RequestStatusPending,
		}
		if err := tx.Create(&req).Error; err != nil {
			return err
		}

		return NewActivityService(tx).Log(actor, "create_project_request", "Submitted project request "+number,
			models.Ref(models.EntityProjectRequest, req.ID), nil)
	})
	if err != nil {
		return nil, wrap(err, "Failed to create project request")
	}

	return s.Get(actor, req.ID)
}

// List returns requests visible to the actor, newest first
func (s *ProjectRequestService) List(actor Actor, filter ProjectRequestFilter) ([]models.ProjectRequest, error) {
	query := s.db.Model(&models.ProjectRequest{}).Preload("Client")
	if !actor.IsAdmin() {
		query = query.Where("client_id = ?", actor.UserID())
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.Type != "" {
		query = query.Where("type = ?", filter.Type)
	}
	if filter.Search != "" {
		like := "%" + filter.Search + "%"
		query = query.Where("request_number LIKE ? OR title LIKE ? OR location LIKE ?", like, like, like)
	}

	var requests []models.ProjectRequest
	if err := query.Order("created_at DESC, id DESC").Find(&requests).Error; err != nil {
		return nil, Internal("Failed to list project requests", err)
	}
	return requests, nil
}

// Get returns one request with documents and quotations
func (s *ProjectRequestService) Get(actor Actor, id uint) (*models.ProjectRequest, error) {
	var req models.ProjectRequest
	err := s.db.Preload("Client").
		Preload("Documents").
		Preload("Quotations", func(db *gorm.DB) *gorm.DB { return db.Order("version DESC, id DESC") }).
		Preload("Quotations.Items").
		First(&req, id).Error
	if err != nil {
		return nil, notFoundOr(err, "PROJECT_REQUEST_NOT_FOUND", "Project request not found")
	}
	if !actor.CanView(req.ClientID) {
		return nil, Forbidden("You do not have access to this project request")
	}

	ctx := context.Background()
	for i := range req.Documents {
		req.Documents[i].FileURL = fileURL(ctx, s.storage, req.Documents[i].FilePath)
	}
	return &req, nil
}

// Update edits a pending, unlocked request owned by the actor
func (s *ProjectRequestService) Update(actor Actor, id uint, in ProjectRequestInput) (*models.ProjectRequest, error) {
	if fields := validateRequestInput(in); len(fields) > 0 {
		return nil, Validation(fields)
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		req, err := s.loadEditable(tx, actor, id)
		if err != nil {
			return err
		}

		updates := map[string]interface{}{
			"title":             in.Title,
			"type":              in.Type,
			"description":       in.Description,
			"location":          in.Location,
			"expected_budget":   in.ExpectedBudget,
			"expected_timeline": in.ExpectedTimeline,
		}
		if err := tx.Model(req).Updates(updates).Error; err != nil {
			return err
		}

		return NewActivityService(tx).Log(actor, "update_project_request", "Updated project request "+req.RequestNumber,
			models.Ref(models.EntityProjectRequest, req.ID), nil)
	})
	if err != nil {
		return nil, wrap(err, "Failed to update project request")
	}

	return s.Get(actor, id)
}

// Delete removes a pending, unlocked request owned by the actor along with its documents
func (s *ProjectRequestService) Delete(actor Actor, id uint) error {
	var documentKeys []string

	err := s.db.Transaction(func(tx *gorm.DB) error {
		req, err := s.loadEditable(tx, actor, id)
		if err != nil {
			return err
		}

		var quotations int64
		if err := tx.Model(&models.Quotation{}).Where("project_request_id = ?", req.ID).Count(&quotations).Error; err != nil {
			return err
		}
		if quotations > 0 {
			return RuleViolation("REQUEST_HAS_QUOTATIONS", "Project requests with quotations cannot be deleted")
		}

		if err := tx.Model(&models.RequestDocument{}).Where("project_request_id = ?", req.ID).Pluck("file_path", &documentKeys).Error; err != nil {
			return err
		}
		if err := tx.Where("project_request_id = ?", req.ID).Delete(&models.RequestDocument{}).Error; err != nil {
			return err
		}
		if err := tx.Delete(req).Error; err != nil {
			return err
		}

		return NewActivityService(tx).Log(actor, "delete_project_request", "Deleted project request "+req.RequestNumber,
			models.Ref(models.EntityProjectRequest, req.ID), nil)
	})
	if err != nil {
		return wrap(err, "Failed to delete project request")
	}

	s.deleteFiles(documentKeys)
	return nil
}

// UpdateStatus lets an admin move a request to any status while it is unlocked
func (s *ProjectRequestService) UpdateStatus(actor Actor, id uint, status, notes string) (*models.ProjectRequest, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	valid := []string{
		models.RequestStatusPending, models.RequestStatusQuoted, models.RequestStatusNegotiating,
		models.RequestStatusApproved, models.RequestStatusRejected, models.RequestStatusCancelled,
	}
	if !slices.Contains(valid, status) {
		return nil, Validation(map[string]string{"status": "is invalid"})
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		req, err := loadUnlockedRequest(tx, id)
		if err != nil {
			return err
		}

		if err := tx.Model(req).Updates(map[string]interface{}{"status": status, "admin_notes": notes}).Error; err != nil {
			return err
		}

		return NewActivityService(tx).Log(actor, "update_request_status",
			"Changed status of "+req.RequestNumber+" to "+status,
			models.Ref(models.EntityProjectRequest, req.ID),
			map[string]interface{}{"from": req.Status, "to": status})
	})
	if err != nil {
		return nil, wrap(err, "Failed to update project request status")
	}

	return s.Get(actor, id)
}

func (s *ProjectRequestService) loadEditable(tx *gorm.DB, actor Actor, id uint) (*models.ProjectRequest, error) {
	var req models.ProjectRequest
	if err := tx.First(&req, id).Error; err != nil {
		return nil, notFoundOr(err, "PROJECT_REQUEST_NOT_FOUND", "Project request not found")
	}
	if !actor.Owns(req.ClientID) {
		return nil, Forbidden("You can only modify your own project requests")
	}
	if req.IsLocked() {
		return nil, RuleViolation("REQUEST_LOCKED", "Project request is locked because a linked invoice has been paid")
	}
	if req.Status != models.RequestStatusPending {
		return nil, RuleViolation("REQUEST_NOT_PENDING", "Only pending project requests can be modified")
	}
	return &req, nil
}

func (s *ProjectRequestService) deleteFiles(keys []string) {
	if s.storage == nil {
		return
	}
	for _, key := range keys {
		if err := s.storage.Delete(context.Background(), key); err != nil {
			log.Printf("warning: failed to delete stored file %s: %v", key, err)
		}
	}
}
