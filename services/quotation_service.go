package services

import (
	"fmt"
	"time"

	"github.com/kendall-kelly/triloka-construction-api/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// DefaultQuotationValidity applies when a quotation is created without valid_until
const DefaultQuotationValidity = 14 * 24 * time.Hour

// QuotationItemInput is one line of a quotation
type QuotationItemInput struct {
	ItemLine
	ItemName    string
	Category    string
	Unit        string
	Description string
}

// QuotationInput creates a quotation for a project request
type QuotationInput struct {
	ProjectRequestID uint
	TaxRate          decimal.Decimal
	Discount         decimal.Decimal
	Notes            string
	ValidUntil       *time.Time
	Items            []QuotationItemInput
}

// QuotationTermsInput changes the commercial terms of a quotation; nil fields are kept
type QuotationTermsInput struct {
	TaxRate    *decimal.Decimal
	Discount   *decimal.Decimal
	Notes      *string
	ValidUntil *time.Time
}

// QuotationFilter narrows quotation listings
type QuotationFilter struct {
	Status           string
	ProjectRequestID uint
	Search           string
}

// QuotationService manages quotations and their items
type QuotationService struct {
	db  *gorm.DB
	now func() time.Time
}

// NewQuotationService creates a quotation service
func NewQuotationService(db *gorm.DB) *QuotationService {
	return &QuotationService{db: db, now: time.Now}
}

func validateQuotationItem(prefix string, in QuotationItemInput, fields map[string]string) {
	if in.ItemName == "" {
		fields[prefix+"item_name"] = "is required"
	}
	if in.Unit == "" {
		fields[prefix+"unit"] = "is required"
	}
	validateLine(prefix, in.ItemLine, fields)
}

func newQuotationItem(quotationID uint, in QuotationItemInput) models.QuotationItem {
	return models.QuotationItem{
		QuotationID: quotationID,
		ItemName:    in.ItemName,
		Category:    in.Category,
		Quantity:    in.Quantity,
		Unit:        in.Unit,
		UnitPrice:   in.UnitPrice,
		Description: in.Description,
	}
}

// RecalculateQuotation recomputes subtotal, tax and total from the stored items
func RecalculateQuotation(tx *gorm.DB, q *models.Quotation) error {
	var subtotals []decimal.Decimal
	if err := tx.Model(&models.QuotationItem{}).Where("quotation_id = ?", q.ID).Pluck("subtotal", &subtotals).Error; err != nil {
		return err
	}

	subtotal := decimal.Zero
	for _, s := range subtotals {
		subtotal = subtotal.Add(s)
	}
	q.Subtotal = subtotal
	q.Tax, q.Total = ComputeTotals(subtotal, q.TaxRate, q.Discount)

	return tx.Model(q).Updates(map[string]interface{}{
		"subtotal": q.Subtotal,
		"tax":      q.Tax,
		"total":    q.Total,
	}).Error
}

// Create drafts a quotation with its items for a project request
func (s *QuotationService) Create(actor Actor, in QuotationInput) (*models.Quotation, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}

	now := s.now()
	fields := map[string]string{}
	if in.ProjectRequestID == 0 {
		fields["project_request_id"] = "is required"
	}
	if len(in.Items) == 0 {
		fields["items"] = "at least one item is required"
	}
	if in.TaxRate.IsNegative() {
		fields["tax_rate"] = "must not be negative"
	}
	if in.Discount.IsNegative() {
		fields["discount"] = "must not be negative"
	}
	if in.ValidUntil != nil && !in.ValidUntil.After(now) {
		fields["valid_until"] = "must be in the future"
	}
	for i, item := range in.Items {
		validateQuotationItem(fmt.Sprintf("items[%d].", i), item, fields)
	}
	if len(fields) > 0 {
		return nil, Validation(fields)
	}

	validUntil := now.Add(DefaultQuotationValidity)
	if in.ValidUntil != nil {
		validUntil = *in.ValidUntil
	}

	var q models.Quotation
	err := s.db.Transaction(func(tx *gorm.DB) error {
		req, err := loadUnlockedRequest(tx, in.ProjectRequestID)
		if err != nil {
			return err
		}

		number, err := NextNumber(tx, &models.Quotation{}, "quotation_number", PrefixQuotation, now)
		if err != nil {
			return err
		}

		q = models.Quotation{
			QuotationNumber:  number,
			ProjectRequestID: req.ID,
			Version:          1,
			TaxRate:          in.TaxRate,
			Discount:         in.Discount,
			Notes:            in.Notes,
			ValidUntil:       validUntil,
			Status:           models.QuotationStatusDraft,
			CreatedBy:        actor.UserID(),
		}
		if err := tx.Create(&q).Error; err != nil {
			return err
		}

		for _, line := range in.Items {
			item := newQuotationItem(q.ID, line)
			if err := tx.Create(&item).Error; err != nil {
				return err
			}
		}

		if err := RecalculateQuotation(tx, &q); err != nil {
			return err
		}
		if q.Total.IsNegative() {
			return Validation(map[string]string{"discount": "must not exceed subtotal plus tax"})
		}

		return NewActivityService(tx).Log(actor, "create_quotation", "Created quotation "+number+" for "+req.RequestNumber,
			models.Ref(models.EntityQuotation, q.ID), map[string]interface{}{"total": q.Total.String()})
	})
	if err != nil {
		return nil, wrap(err, "Failed to create quotation")
	}

	return s.Get(actor, q.ID)
}

// loadEditable loads a quotation whose items and terms may still change
func (s *QuotationService) loadEditable(tx *gorm.DB, id uint) (*models.Quotation, error) {
	var q models.Quotation
	if err := tx.Preload("ProjectRequest").First(&q, id).Error; err != nil {
		return nil, notFoundOr(err, "QUOTATION_NOT_FOUND", "Quotation not found")
	}
	if !q.IsEditable() {
		return nil, RuleViolation("QUOTATION_NOT_EDITABLE", "Only draft, sent or revised quotations can be modified")
	}
	if q.ProjectRequest != nil && q.ProjectRequest.IsLocked() {
		return nil, RuleViolation("REQUEST_LOCKED", "Project request is locked because a linked invoice has been paid")
	}
	return &q, nil
}

// AddItem appends a line and returns the recalculated quotation
func (s *QuotationService) AddItem(actor Actor, quotationID uint, in QuotationItemInput) (*models.Quotation, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	fields := map[string]string{}
	validateQuotationItem("", in, fields)
	if len(fields) > 0 {
		return nil, Validation(fields)
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		q, err := s.loadEditable(tx, quotationID)
		if err != nil {
			return err
		}
		item := newQuotationItem(q.ID, in)
		if err := tx.Create(&item).Error; err != nil {
			return err
		}
		if err := RecalculateQuotation(tx, q); err != nil {
			return err
		}
		return NewActivityService(tx).Log(actor, "add_quotation_item", "Added "+in.ItemName+" to "+q.QuotationNumber,
			models.Ref(models.EntityQuotation, q.ID), nil)
	})
	if err != nil {
		return nil, wrap(err, "Failed to add quotation item")
	}
	return s.Get(actor, quotationID)
}

// UpdateItem replaces one line and returns the recalculated quotation
func (s *QuotationService) UpdateItem(actor Actor, quotationID, itemID uint, in QuotationItemInput) (*models.Quotation, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	fields := map[string]string{}
	validateQuotationItem("", in, fields)
	if len(fields) > 0 {
		return nil, Validation(fields)
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		q, err := s.loadEditable(tx, quotationID)
		if err != nil {
			return err
		}

		var item models.QuotationItem
		if err := tx.Where("quotation_id = ?", q.ID).First(&item, itemID).Error; err != nil {
			return notFoundOr(err, "QUOTATION_ITEM_NOT_FOUND", "Quotation item not found")
		}
		item.ItemName = in.ItemName
		item.Category = in.Category
		item.Quantity = in.Quantity
		item.Unit = in.Unit
		item.UnitPrice = in.UnitPrice
		item.Description = in.Description
		if err := tx.Save(&item).Error; err != nil {
			return err
		}

		if err := RecalculateQuotation(tx, q); err != nil {
			return err
		}
		return NewActivityService(tx).Log(actor, "update_quotation_item", "Updated "+item.ItemName+" on "+q.QuotationNumber,
			models.Ref(models.EntityQuotation, q.ID), nil)
	})
	if err != nil {
		return nil, wrap(err, "Failed to update quotation item")
	}
	return s.Get(actor, quotationID)
}

// DeleteItem removes one line and returns the recalculated quotation
func (s *QuotationService) DeleteItem(actor Actor, quotationID, itemID uint) (*models.Quotation, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		q, err := s.loadEditable(tx, quotationID)
		if err != nil {
			return err
		}

		var item models.QuotationItem
		if err := tx.Where("quotation_id = ?", q.ID).First(&item, itemID).Error; err != nil {
			return notFoundOr(err, "QUOTATION_ITEM_NOT_FOUND", "Quotation item not found")
		}
		if err := tx.Delete(&item).Error; err != nil {
			return err
		}

		if err := RecalculateQuotation(tx, q); err != nil {
			return err
		}
		return NewActivityService(tx).Log(actor, "delete_quotation_item", "Removed "+item.ItemName+" from "+q.QuotationNumber,
			models.Ref(models.EntityQuotation, q.ID), nil)
	})
	if err != nil {
		return nil, wrap(err, "Failed to delete quotation item")
	}
	return s.Get(actor, quotationID)
}

// UpdateTerms changes tax rate, discount, notes or validity and recalculates
func (s *QuotationService) UpdateTerms(actor Actor, id uint, in QuotationTermsInput) (*models.Quotation, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}

	fields := map[string]string{}
	if in.TaxRate != nil && in.TaxRate.IsNegative() {
		fields["tax_rate"] = "must not be negative"
	}
	if in.Discount != nil && in.Discount.IsNegative() {
		fields["discount"] = "must not be negative"
	}
	if in.ValidUntil != nil && !in.ValidUntil.After(s.now()) {
		fields["valid_until"] = "must be in the future"
	}
	if len(fields) > 0 {
		return nil, Validation(fields)
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		q, err := s.loadEditable(tx, id)
		if err != nil {
			return err
		}

		updates := map[string]interface{}{}
		if in.TaxRate != nil {
			q.TaxRate = *in.TaxRate
			updates["tax_rate"] = q.TaxRate
		}
		if in.Discount != nil {
			q.Discount = *in.Discount
			updates["discount"] = q.Discount
		}
		if in.Notes != nil {
			updates["notes"] = *in.Notes
		}
		if in.ValidUntil != nil {
			updates["valid_until"] = *in.ValidUntil
		}
		if len(updates) > 0 {
			if err := tx.Model(q).Updates(updates).Error; err != nil {
				return err
			}
		}

		if err := RecalculateQuotation(tx, q); err != nil {
			return err
		}
		if q.Total.IsNegative() {
			return Validation(map[string]string{"discount": "must not exceed subtotal plus tax"})
		}

		return NewActivityService(tx).Log(actor, "update_quotation_terms", "Updated terms of "+q.QuotationNumber,
			models.Ref(models.EntityQuotation, q.ID), map[string]interface{}{"total": q.Total.String()})
	})
	if err != nil {
		return nil, wrap(err, "Failed to update quotation")
	}
	return s.Get(actor, id)
}

// Send offers a draft or revised quotation to the client
func (s *QuotationService) Send(actor Actor, id uint) (*models.Quotation, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}

	now := s.now()
	err := s.db.Transaction(func(tx *gorm.DB) error {
		q, err := s.loadEditable(tx, id)
		if err != nil {
			return err
		}
		if q.Status != models.QuotationStatusDraft && q.Status != models.QuotationStatusRevised {
			return RuleViolation("QUOTATION_NOT_SENDABLE", "Only draft or revised quotations can be sent")
		}
		if !q.ValidUntil.After(now) {
			return RuleViolation("QUOTATION_EXPIRED", "Extend valid_until before sending this quotation")
		}

		var items int64
		if err := tx.Model(&models.QuotationItem{}).Where("quotation_id = ?", q.ID).Count(&items).Error; err != nil {
			return err
		}
		if items == 0 {
			return RuleViolation("QUOTATION_EMPTY", "Quotations without items cannot be sent")
		}

		if err := tx.Model(q).Updates(map[string]interface{}{"status": models.QuotationStatusSent, "sent_at": now}).Error; err != nil {
			return err
		}
		if err := tx.Model(q.ProjectRequest).Update("status", models.RequestStatusQuoted).Error; err != nil {
			return err
		}

		if err := NewNotificationService(tx).Notify(q.ProjectRequest.ClientID, models.NotificationQuotationSent,
			"New quotation", fmt.Sprintf("Quotation %s for %s is ready for review", q.QuotationNumber, q.ProjectRequest.Title),
			models.Ref(models.EntityQuotation, q.ID)); err != nil {
			return err
		}
		return NewActivityService(tx).Log(actor, "send_quotation", "Sent quotation "+q.QuotationNumber,
			models.Ref(models.EntityQuotation, q.ID), nil)
	})
	if err != nil {
		return nil, wrap(err, "Failed to send quotation")
	}
	return s.Get(actor, id)
}

// closedQuotation explains why the client can no longer act on q. An open
// quotation past valid_until is persisted as expired outside any transaction
// so the status survives the failed call.
func closedQuotation(db *gorm.DB, q *models.Quotation, notOpen string) error {
	if !q.IsOpen() {
		return RuleViolation("QUOTATION_NOT_OPEN", notOpen)
	}
	if err := db.Model(q).Update("status", models.QuotationStatusExpired).Error; err != nil {
		return Internal("Failed to expire quotation", err)
	}
	return RuleViolation("QUOTATION_EXPIRED", "This quotation has expired")
}

// loadForClientDecision loads an open quotation the actor owns and applies lazy expiry
func (s *QuotationService) loadForClientDecision(actor Actor, id uint) (*models.Quotation, error) {
	var q models.Quotation
	if err := s.db.Preload("ProjectRequest").First(&q, id).Error; err != nil {
		return nil, notFoundOr(err, "QUOTATION_NOT_FOUND", "Quotation not found")
	}
	if q.ProjectRequest == nil || !actor.Owns(q.ProjectRequest.ClientID) {
		return nil, Forbidden("You can only respond to your own quotations")
	}
	if !q.CanApprove(s.now()) {
		return nil, closedQuotation(s.db, &q, "Only sent or revised quotations can be approved or rejected")
	}
	if q.ProjectRequest.IsLocked() {
		return nil, RuleViolation("REQUEST_LOCKED", "Project request is locked because a linked invoice has been paid")
	}
	return &q, nil
}

// recordDecision stores the client's answer to q. The update only lands while
// the quotation is still open at the version the client reviewed and the
// request is still unlocked.
func (s *QuotationService) recordDecision(actor Actor, q *models.Quotation, status, requestStatus, action, verb string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		updates := map[string]interface{}{"status": status}
		if status == models.QuotationStatusApproved {
			updates["approved_at"] = s.now()
		}
		res := tx.Model(&models.Quotation{}).
			Where("id = ? AND version = ? AND status IN ?", q.ID, q.Version,
				[]string{models.QuotationStatusSent, models.QuotationStatusRevised}).
			Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return Conflict("QUOTATION_CHANGED", "The quotation changed while it was being reviewed; reload it and try again")
		}

		res = tx.Model(&models.ProjectRequest{}).
			Where("id = ? AND locked_at IS NULL", q.ProjectRequestID).
			Update("status", requestStatus)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return RuleViolation("REQUEST_LOCKED", "Project request is locked because a linked invoice has been paid")
		}

		return NewActivityService(tx).Log(actor, action, verb+" quotation "+q.QuotationNumber,
			models.Ref(models.EntityQuotation, q.ID), map[string]interface{}{"total": q.Total.String(), "version": q.Version})
	})
}

// Approve accepts an open quotation on behalf of its client
func (s *QuotationService) Approve(actor Actor, id uint) (*models.Quotation, error) {
	q, err := s.loadForClientDecision(actor, id)
	if err != nil {
		return nil, err
	}
	if err := s.recordDecision(actor, q, models.QuotationStatusApproved, models.RequestStatusApproved, "approve_quotation", "Approved"); err != nil {
		return nil, wrap(err, "Failed to approve quotation")
	}
	return s.Get(actor, id)
}

// Reject declines an open quotation on behalf of its client
func (s *QuotationService) Reject(actor Actor, id uint) (*models.Quotation, error) {
	q, err := s.loadForClientDecision(actor, id)
	if err != nil {
		return nil, err
	}
	if err := s.recordDecision(actor, q, models.QuotationStatusRejected, models.RequestStatusRejected, "reject_quotation", "Rejected"); err != nil {
		return nil, wrap(err, "Failed to reject quotation")
	}
	return s.Get(actor, id)
}

// List returns quotations visible to the actor; clients never see drafts
func (s *QuotationService) List(actor Actor, filter QuotationFilter) ([]models.Quotation, error) {
	query := s.db.Model(&models.Quotation{}).Preload("ProjectRequest").Preload("ProjectRequest.Client")
	if !actor.IsAdmin() {
		owned := s.db.Model(&models.ProjectRequest{}).Select("id").Where("client_id = ?", actor.UserID())
		query = query.Where("project_request_id IN (?)", owned).Where("status <> ?", models.QuotationStatusDraft)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.ProjectRequestID != 0 {
		query = query.Where("project_request_id = ?", filter.ProjectRequestID)
	}
	if filter.Search != "" {
		query = query.Where("quotation_number LIKE ? OR notes LIKE ?", "%"+filter.Search+"%", "%"+filter.Search+"%")
	}

	var quotations []models.Quotation
	if err := query.Order("created_at DESC, id DESC").Find(&quotations).Error; err != nil {
		return nil, Internal("Failed to list quotations", err)
	}
	return quotations, nil
}

// Get returns one quotation with items and negotiations
func (s *QuotationService) Get(actor Actor, id uint) (*models.Quotation, error) {
	var q models.Quotation
	err := s.db.Preload("ProjectRequest").
		Preload("ProjectRequest.Client").
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		Preload("Negotiations", func(db *gorm.DB) *gorm.DB { return db.Order("created_at DESC, id DESC") }).
		First(&q, id).Error
	if err != nil {
		return nil, notFoundOr(err, "QUOTATION_NOT_FOUND", "Quotation not found")
	}
	if q.ProjectRequest == nil || !actor.CanView(q.ProjectRequest.ClientID) {
		return nil, Forbidden("You do not have access to this quotation")
	}
	if !actor.IsAdmin() && q.Status == models.QuotationStatusDraft {
		return nil, NotFound("QUOTATION_NOT_FOUND", "Quotation not found")
	}
	return &q, nil
}

// Delete removes a quotation that was never approved
func (s *QuotationService) Delete(actor Actor, id uint) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		var q models.Quotation
		if err := tx.Preload("ProjectRequest").First(&q, id).Error; err != nil {
			return notFoundOr(err, "QUOTATION_NOT_FOUND", "Quotation not found")
		}
		if q.Status == models.QuotationStatusApproved {
			return RuleViolation("QUOTATION_APPROVED", "Approved quotations cannot be deleted")
		}
		if q.ProjectRequest != nil && q.ProjectRequest.IsLocked() {
			return RuleViolation("REQUEST_LOCKED", "Project request is locked because a linked invoice has been paid")
		}

		if err := tx.Where("quotation_id = ?", q.ID).Delete(&models.Negotiation{}).Error; err != nil {
			return err
		}
		if err := tx.Where("quotation_id = ?", q.ID).Delete(&models.QuotationItem{}).Error; err != nil {
			return err
		}
		if err := tx.Delete(&q).Error; err != nil {
			return err
		}
		return NewActivityService(tx).Log(actor, "delete_quotation", "Deleted quotation "+q.QuotationNumber,
			models.Ref(models.EntityQuotation, q.ID), nil)
	})
	return wrap(err, "Failed to delete quotation")
}
