package services

import (
	"fmt"
	"strings"
	"time"

	"github.com/kendall-kelly/triloka-construction-api/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// NegotiationFilter narrows negotiation listings
type NegotiationFilter struct {
	QuotationID uint
	Status      string
}

// NegotiationService handles counter offers against quotations
type NegotiationService struct {
	db  *gorm.DB
	now func() time.Time
}

// NewNegotiationService creates a negotiation service
func NewNegotiationService(db *gorm.DB) *NegotiationService {
	return &NegotiationService{db: db, now: time.Now}
}

// Submit records a counter offer from the quotation's client or an admin
func (s *NegotiationService) Submit(actor Actor, quotationID uint, message string, counterAmount decimal.Decimal) (*models.Negotiation, error) {
	fields := map[string]string{}
	if strings.TrimSpace(message) == "" {
		fields["message"] = "is required"
	}
	if !counterAmount.IsPositive() {
		fields["counter_amount"] = "must be greater than 0"
	}
	if len(fields) > 0 {
		return nil, Validation(fields)
	}

	var q models.Quotation
	if err := s.db.Preload("ProjectRequest").First(&q, quotationID).Error; err != nil {
		return nil, notFoundOr(err, "QUOTATION_NOT_FOUND", "Quotation not found")
	}
	if q.ProjectRequest == nil || !actor.CanView(q.ProjectRequest.ClientID) {
		return nil, Forbidden("You can only negotiate your own quotations")
	}
	if !q.CanNegotiate(s.now()) {
		return nil, closedQuotation(s.db, &q, "Only sent or revised quotations can be negotiated")
	}
	if q.ProjectRequest.IsLocked() {
		return nil, RuleViolation("REQUEST_LOCKED", "Project request is locked because a linked invoice has been paid")
	}

	senderType := models.RoleClient
	if actor.IsAdmin() {
		senderType = models.RoleAdmin
	}

	n := models.Negotiation{
		QuotationID:   q.ID,
		SenderID:      actor.UserID(),
		SenderType:    senderType,
		Message:       message,
		CounterAmount: counterAmount.Round(2),
		Status:        models.NegotiationStatusPending,
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&n).Error; err != nil {
			return err
		}
		if err := tx.Model(q.ProjectRequest).Update("status", models.RequestStatusNegotiating).Error; err != nil {
			return err
		}

		notifications := NewNotificationService(tx)
		title := "New negotiation"
		body := fmt.Sprintf("Counter offer of %s on quotation %s", n.CounterAmount.StringFixed(2), q.QuotationNumber)
		ref := models.Ref(models.EntityNegotiation, n.ID)
		if senderType == models.RoleClient {
			if err := notifications.NotifyAdmins(models.NotificationNewNegotiation, title, body, ref); err != nil {
				return err
			}
		} else if err := notifications.Notify(q.ProjectRequest.ClientID, models.NotificationNewNegotiation, title, body, ref); err != nil {
			return err
		}

		return NewActivityService(tx).Log(actor, "submit_negotiation", "Submitted counter offer on "+q.QuotationNumber,
			ref, map[string]interface{}{"counter_amount": n.CounterAmount.String()})
	})
	if err != nil {
		return nil, wrap(err, "Failed to submit negotiation")
	}

	return s.get(n.ID)
}

func (s *NegotiationService) loadPending(tx *gorm.DB, id uint) (*models.Negotiation, error) {
	var n models.Negotiation
	if err := tx.Preload("Quotation").Preload("Quotation.ProjectRequest").First(&n, id).Error; err != nil {
		return nil, notFoundOr(err, "NEGOTIATION_NOT_FOUND", "Negotiation not found")
	}
	if n.Status != models.NegotiationStatusPending {
		return nil, RuleViolation("NEGOTIATION_ALREADY_PROCESSED", "This negotiation has already been processed")
	}
	if n.Quotation == nil || n.Quotation.ProjectRequest == nil {
		return nil, Internal("Negotiation is missing its quotation", nil)
	}
	return &n, nil
}

func (s *NegotiationService) markProcessed(tx *gorm.DB, actor Actor, n *models.Negotiation, status, notes string) error {
	return tx.Model(n).Updates(map[string]interface{}{
		"status":       status,
		"admin_notes":  notes,
		"processed_by": actor.UserID(),
		"processed_at": s.now(),
	}).Error
}

// Accept applies the counter amount as the quotation's new total and bumps its version
func (s *NegotiationService) Accept(actor Actor, id uint, notes string) (*models.Negotiation, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		n, err := s.loadPending(tx, id)
		if err != nil {
			return err
		}
		q := n.Quotation
		if !q.IsEditable() {
			return RuleViolation("QUOTATION_NOT_OPEN", "The quotation can no longer be revised")
		}
		if q.ProjectRequest.IsLocked() {
			return RuleViolation("REQUEST_LOCKED", "Project request is locked because a linked invoice has been paid")
		}

		previousTotal := q.Total.String()
		if err := s.markProcessed(tx, actor, n, models.NegotiationStatusAccepted, notes); err != nil {
			return err
		}

		// The agreed price replaces the itemised pricing: no tax or discount on top.
		if err := tx.Model(q).Updates(map[string]interface{}{
			"subtotal": n.CounterAmount,
			"tax_rate": decimal.Zero,
			"tax":      decimal.Zero,
			"discount": decimal.Zero,
			"total":    n.CounterAmount,
			"status":   models.QuotationStatusRevised,
			"version":  gorm.Expr("version + 1"),
		}).Error; err != nil {
			return err
		}
		if err := tx.Model(q.ProjectRequest).Update("status", models.RequestStatusQuoted).Error; err != nil {
			return err
		}

		if err := NewNotificationService(tx).Notify(q.ProjectRequest.ClientID, models.NotificationNegotiationAccepted,
			"Negotiation accepted",
			fmt.Sprintf("Quotation %s was revised to %s", q.QuotationNumber, n.CounterAmount.StringFixed(2)),
			models.Ref(models.EntityQuotation, q.ID)); err != nil {
			return err
		}
		return NewActivityService(tx).Log(actor, "accept_negotiation", "Accepted counter offer on "+q.QuotationNumber,
			models.Ref(models.EntityNegotiation, n.ID),
			map[string]interface{}{"counter_amount": n.CounterAmount.String(), "previous_total": previousTotal})
	})
	if err != nil {
		return nil, wrap(err, "Failed to accept negotiation")
	}
	return s.get(id)
}

// Reject declines a counter offer and leaves the quotation unchanged
func (s *NegotiationService) Reject(actor Actor, id uint, notes string) (*models.Negotiation, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		n, err := s.loadPending(tx, id)
		if err != nil {
			return err
		}
		if err := s.markProcessed(tx, actor, n, models.NegotiationStatusRejected, notes); err != nil {
			return err
		}

		q := n.Quotation
		message := "Your counter offer on quotation " + q.QuotationNumber + " was declined"
		if notes != "" {
			message += ": " + notes
		}
		if err := NewNotificationService(tx).Notify(q.ProjectRequest.ClientID, models.NotificationNegotiationRejected,
			"Negotiation rejected", message, models.Ref(models.EntityQuotation, q.ID)); err != nil {
			return err
		}
		return NewActivityService(tx).Log(actor, "reject_negotiation", "Rejected counter offer on "+q.QuotationNumber,
			models.Ref(models.EntityNegotiation, n.ID), nil)
	})
	if err != nil {
		return nil, wrap(err, "Failed to reject negotiation")
	}
	return s.get(id)
}

// List returns negotiations visible to the actor, newest first
func (s *NegotiationService) List(actor Actor, filter NegotiationFilter) ([]models.Negotiation, error) {
	query := s.db.Model(&models.Negotiation{}).Preload("Quotation").Preload("Sender")
	if !actor.IsAdmin() {
		owned := s.db.Model(&models.Quotation{}).Select("quotations.id").
			Joins("JOIN project_requests ON project_requests.id = quotations.project_request_id").
			Where("project_requests.client_id = ?", actor.UserID())
		query = query.Where("quotation_id IN (?)", owned)
	}
	if filter.QuotationID != 0 {
		query = query.Where("quotation_id = ?", filter.QuotationID)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}

	var negotiations []models.Negotiation
	if err := query.Order("created_at DESC, id DESC").Find(&negotiations).Error; err != nil {
		return nil, Internal("Failed to list negotiations", err)
	}
	return negotiations, nil
}

func (s *NegotiationService) get(id uint) (*models.Negotiation, error) {
	var n models.Negotiation
	if err := s.db.Preload("Quotation").Preload("Sender").First(&n, id).Error; err != nil {
		return nil, notFoundOr(err, "NEGOTIATION_NOT_FOUND", "Negotiation not found")
	}
	return &n, nil
}
