package services

import (
	"time"

	"github.com/kendall-kelly/triloka-construction-api/models"
	"gorm.io/gorm"
)

// NotificationFilter narrows a user's notification listing
type NotificationFilter struct {
	UnreadOnly bool
	Type       string
	Limit      int
}

// NotificationService stores and serves in-app notifications
type NotificationService struct {
	db *gorm.DB
}

// NewNotificationService creates a notification service on db (pass a tx to notify inside a transaction)
func NewNotificationService(db *gorm.DB) *NotificationService {
	return &NotificationService{db: db}
}

// Notify creates a notification for one user
func (s *NotificationService) Notify(userID uint, kind, title, message string, ref models.EntityRef) error {
	if userID == 0 {
		return nil
	}
	n := models.Notification{
		UserID:  userID,
		Type:    kind,
		Title:   title,
		Message: message,
		Entity:  ref,
	}
	return s.db.Create(&n).Error
}

// NotifyAdmins creates the same notification for every active admin
func (s *NotificationService) NotifyAdmins(kind, title, message string, ref models.EntityRef) error {
	var adminIDs []uint
	if err := s.db.Model(&models.User{}).
		Where("role = ? AND is_active = ?", models.RoleAdmin, true).
		Pluck("id", &adminIDs).Error; err != nil {
		return err
	}

	for _, id := range adminIDs {
		if err := s.Notify(id, kind, title, message, ref); err != nil {
			return err
		}
	}
	return nil
}

// List returns the user's notifications and their unread count
func (s *NotificationService) List(user *models.User, filter NotificationFilter) ([]models.Notification, int64, error) {
	query := s.db.Model(&models.Notification{}).Where("user_id = ?", user.ID)
	if filter.UnreadOnly {
		query = query.Where("is_read = ?", false)
	}
	if filter.Type != "" {
		query = query.Where("type = ?", filter.Type)
	}

	limit := filter.Limit
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	var notifications []models.Notification
	if err := query.Order("created_at DESC, id DESC").Limit(limit).Find(&notifications).Error; err != nil {
		return nil, 0, Internal("Failed to list notifications", err)
	}

	unread, err := s.UnreadCount(user.ID)
	if err != nil {
		return nil, 0, Internal("Failed to count notifications", err)
	}
	return notifications, unread, nil
}

// UnreadCount counts the user's unread notifications
func (s *NotificationService) UnreadCount(userID uint) (int64, error) {
	var count int64
	err := s.db.Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Count(&count).Error
	return count, err
}

// Get returns one of the user's notifications
func (s *NotificationService) Get(user *models.User, id uint) (*models.Notification, error) {
	var n models.Notification
	if err := s.db.First(&n, id).Error; err != nil {
		return nil, notFoundOr(err, "NOTIFICATION_NOT_FOUND", "Notification not found")
	}
	if n.UserID != user.ID {
		return nil, Forbidden("You do not have access to this notification")
	}
	return &n, nil
}

// MarkRead marks one notification as read
func (s *NotificationService) MarkRead(user *models.User, id uint) (*models.Notification, error) {
	n, err := s.Get(user, id)
	if err != nil {
		return nil, err
	}
	if n.IsRead {
		return n, nil
	}

	now := time.Now()
	if err := s.db.Model(n).Updates(map[string]interface{}{"is_read": true, "read_at": now}).Error; err != nil {
		return nil, Internal("Failed to update notification", err)
	}
	n.IsRead = true
	n.ReadAt = &now
	return n, nil
}

// MarkAllRead marks every unread notification of the user as read
func (s *NotificationService) MarkAllRead(user *models.User) (int64, error) {
	result := s.db.Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", user.ID, false).
		Updates(map[string]interface{}{"is_read": true, "read_at": time.Now()})
	if result.Error != nil {
		return 0, Internal("Failed to update notifications", result.Error)
	}
	return result.RowsAffected, nil
}

// Delete removes one of the user's notifications
func (s *NotificationService) Delete(user *models.User, id uint) error {
	n, err := s.Get(user, id)
	if err != nil {
		return err
	}
	if err := s.db.Delete(n).Error; err != nil {
		return Internal("Failed to delete notification", err)
	}
	return nil
}
