package services

import (
	"github.com/kendall-kelly/triloka-construction-api/models"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ActivityFilter narrows the activity log listing
type ActivityFilter struct {
	Action     string
	UserID     uint
	EntityKind models.EntityKind
	EntityID   uint
	Limit      int
}

// ActivityService writes and reads the audit trail
type ActivityService struct {
	db *gorm.DB
}

// NewActivityService creates an activity service on db (pass a tx to log inside a transaction)
func NewActivityService(db *gorm.DB) *ActivityService {
	return &ActivityService{db: db}
}

// Log appends one audit entry for the actor
func (s *ActivityService) Log(actor Actor, action, description string, ref models.EntityRef, metadata map[string]interface{}) error {
	entry := models.ActivityLog{
		Action:      action,
		Entity:      ref,
		IPAddress:   actor.IPAddress,
		UserAgent:   actor.UserAgent,
		Description: description,
	}
	if actor.User != nil {
		id := actor.User.ID
		entry.UserID = &id
	}
	if len(metadata) > 0 {
		entry.Metadata = datatypes.JSONMap(metadata)
	}
	return s.db.Create(&entry).Error
}

// List returns audit entries, newest first
func (s *ActivityService) List(actor Actor, filter ActivityFilter) ([]models.ActivityLog, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}

	query := s.db.Model(&models.ActivityLog{}).Preload("User")
	if filter.Action != "" {
		query = query.Where("action = ?", filter.Action)
	}
	if filter.UserID != 0 {
		query = query.Where("user_id = ?", filter.UserID)
	}
	if filter.EntityKind != "" {
		query = query.Where("entity_kind = ?", filter.EntityKind)
	}
	if filter.EntityID != 0 {
		query = query.Where("entity_id = ?", filter.EntityID)
	}

	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	var logs []models.ActivityLog
	if err := query.Order("created_at DESC, id DESC").Limit(limit).Find(&logs).Error; err != nil {
		return nil, Internal("Failed to list activity logs", err)
	}
	return logs, nil
}
