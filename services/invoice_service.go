package services

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/kendall-kelly/triloka-construction-api/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	// ProjectInvoiceTerm is the due period of invoices created from quotations
	ProjectInvoiceTerm = 30 * 24 * time.Hour
	// SurveyInvoiceTerm is the due period of survey fee invoices
	SurveyInvoiceTerm = 7 * 24 * time.Hour

	SurveyItemName = "Survey & Consultation Fee"
)

// InvoiceOptions carries the configured billing constants
type InvoiceOptions struct {
	SurveyFee decimal.Decimal
	VABank    string
}

// InvoiceItemInput is one line of a manual invoice
type InvoiceItemInput struct {
	ItemLine
	ItemID      *uint
	ItemName    string
	Description string
	Unit        string
}

// ManualInvoiceInput creates an invoice that is not tied to a quotation
type ManualInvoiceInput struct {
	ClientID         uint
	ProjectRequestID *uint
	InvoiceDate      time.Time
	DueDate          time.Time
	TaxRate          decimal.Decimal
	Discount         decimal.Decimal
	Notes            string
	Items            []InvoiceItemInput
}

// InvoiceUpdateInput changes an unpaid invoice; nil fields are kept
type InvoiceUpdateInput struct {
	InvoiceDate *time.Time
	DueDate     *time.Time
	Notes       *string
	Status      *string
}

// InvoiceFilter narrows invoice listings
type InvoiceFilter struct {
	Status   string
	Type     string
	Search   string
	ClientID uint
	From     *time.Time
	To       *time.Time
}

// SurveyFeeStatus reports the survey invoice state of a project request
type SurveyFeeStatus struct {
	ProjectRequestID uint            `json:"project_request_id"`
	HasSurveyInvoice bool            `json:"has_survey_invoice"`
	IsPaid           bool            `json:"is_paid"`
	IsApplied        bool            `json:"is_applied"`
	Invoice          *models.Invoice `json:"invoice,omitempty"`
}

// InvoiceService issues and maintains invoices
type InvoiceService struct {
	db   *gorm.DB
	opts InvoiceOptions
	now  func() time.Time
}

// NewInvoiceService creates an invoice service
func NewInvoiceService(db *gorm.DB, opts InvoiceOptions) *InvoiceService {
	return &InvoiceService{db: db, opts: opts, now: time.Now}
}

// assignVirtualAccount gives a freshly created invoice its VA number
func (s *InvoiceService) assignVirtualAccount(tx *gorm.DB, inv *models.Invoice, now time.Time) error {
	expires := now.Add(VAValidity)
	inv.VABank = s.opts.VABank
	inv.VANumber = GenerateVANumber(s.opts.VABank, inv.ID)
	inv.VAExpiresAt = &expires
	return tx.Model(inv).Updates(map[string]interface{}{
		"va_bank":       inv.VABank,
		"va_number":     inv.VANumber,
		"va_expires_at": expires,
	}).Error
}

// CreateFromQuotation bills an approved quotation and deducts a paid survey fee of the same request
func (s *InvoiceService) CreateFromQuotation(actor Actor, quotationID uint) (*models.Invoice, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}

	now := s.now()
	var inv models.Invoice
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var q models.Quotation
		if err := tx.Preload("ProjectRequest").Preload("Items").First(&q, quotationID).Error; err != nil {
			return notFoundOr(err, "QUOTATION_NOT_FOUND", "Quotation not found")
		}
		if q.Status != models.QuotationStatusApproved {
			return RuleViolation("QUOTATION_NOT_APPROVED", "Only approved quotations can be invoiced")
		}

		var existing int64
		if err := tx.Model(&models.Invoice{}).Where("quotation_id = ?", q.ID).Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			return Conflict("INVOICE_EXISTS", "An invoice already exists for this quotation")
		}

		number, err := NextNumber(tx, &models.Invoice{}, "invoice_number", PrefixInvoice, now)
		if err != nil {
			return err
		}

		requestID := q.ProjectRequestID
		quotationRef := q.ID
		inv = models.Invoice{
			InvoiceNumber:    number,
			ClientID:         q.ProjectRequest.ClientID,
			CreatedBy:        actor.UserID(),
			QuotationID:      &quotationRef,
			ProjectRequestID: &requestID,
			InvoiceType:      models.InvoiceTypeProject,
			InvoiceDate:      now,
			DueDate:          now.Add(ProjectInvoiceTerm),
			Subtotal:         q.Subtotal,
			Tax:              q.Tax,
			Discount:         q.Discount,
			Total:            q.Total,
			Status:           models.InvoiceStatusUnpaid,
			Notes:            q.Notes,
		}
		if err := tx.Omit("Items", "Payments").Create(&inv).Error; err != nil {
			return err
		}

		for _, qi := range q.Items {
			item := models.InvoiceItem{
				InvoiceID:   inv.ID,
				ItemName:    qi.ItemName,
				Description: qi.Description,
				Quantity:    qi.Quantity,
				Unit:        qi.Unit,
				UnitPrice:   qi.UnitPrice,
			}
			if err := tx.Create(&item).Error; err != nil {
				return err
			}
		}

		if err := s.assignVirtualAccount(tx, &inv, now); err != nil {
			return err
		}

		var survey models.Invoice
		err = tx.Where("project_request_id = ? AND invoice_type = ? AND status = ?",
			requestID, models.InvoiceTypeSurvey, models.InvoiceStatusPaid).
			Order("id ASC").Limit(1).Find(&survey).Error
		if err != nil {
			return err
		}
		if survey.ID != 0 {
			if _, err := ApplySurveyFeeDiscount(tx, &inv, &survey); err != nil {
				return err
			}
		}

		if err := NewNotificationService(tx).Notify(inv.ClientID, models.NotificationInvoiceIssued, "New invoice",
			fmt.Sprintf("Invoice %s of %s is due on %s", inv.InvoiceNumber, inv.Total.StringFixed(2), inv.DueDate.Format("2006-01-02")),
			models.Ref(models.EntityInvoice, inv.ID)); err != nil {
			return err
		}
		return NewActivityService(tx).Log(actor, "create_invoice", "Created invoice "+number+" from quotation "+q.QuotationNumber,
			models.Ref(models.EntityInvoice, inv.ID), map[string]interface{}{"total": inv.Total.String()})
	})
	if err != nil {
		return nil, wrap(err, "Failed to create invoice")
	}
	return s.Get(actor, inv.ID)
}

// CreateManual issues an invoice from free-form lines
func (s *InvoiceService) CreateManual(actor Actor, in ManualInvoiceInput) (*models.Invoice, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}

	fields := map[string]string{}
	if in.ClientID == 0 {
		fields["client_id"] = "is required"
	}
	if in.InvoiceDate.IsZero() {
		fields["invoice_date"] = "is required"
	}
	if in.DueDate.IsZero() {
		fields["due_date"] = "is required"
	} else if in.DueDate.Before(in.InvoiceDate) {
		fields["due_date"] = "must not be before invoice_date"
	}
	if in.TaxRate.IsNegative() {
		fields["tax_rate"] = "must not be negative"
	}
	if in.Discount.IsNegative() {
		fields["discount"] = "must not be negative"
	}
	if len(in.Items) == 0 {
		fields["items"] = "at least one item is required"
	}
	for i, item := range in.Items {
		prefix := fmt.Sprintf("items[%d].", i)
		if item.ItemName == "" && item.ItemID == nil {
			fields[prefix+"item_name"] = "is required"
		}
		validateLine(prefix, item.ItemLine, fields)
	}
	if len(fields) > 0 {
		return nil, Validation(fields)
	}

	now := s.now()
	var inv models.Invoice
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var client models.User
		if err := tx.First(&client, in.ClientID).Error; err != nil {
			return notFoundOr(err, "CLIENT_NOT_FOUND", "Client not found")
		}
		if client.Role != models.RoleClient {
			return Validation(map[string]string{"client_id": "must reference a client account"})
		}
		if in.ProjectRequestID != nil {
			var req models.ProjectRequest
			if err := tx.First(&req, *in.ProjectRequestID).Error; err != nil {
				return notFoundOr(err, "PROJECT_REQUEST_NOT_FOUND", "Project request not found")
			}
			if req.ClientID != client.ID {
				return Validation(map[string]string{"project_request_id": "belongs to a different client"})
			}
		}

		lines := make([]models.InvoiceItem, 0, len(in.Items))
		subtotal := decimal.Zero
		for i, item := range in.Items {
			line := models.InvoiceItem{
				ItemID:      item.ItemID,
				ItemName:    item.ItemName,
				Description: item.Description,
				Quantity:    item.Quantity,
				Unit:        item.Unit,
				UnitPrice:   item.UnitPrice,
			}
			if item.ItemID != nil {
				var stock models.Item
				if err := tx.First(&stock, *item.ItemID).Error; err != nil {
					if errors.Is(err, gorm.ErrRecordNotFound) {
						return Validation(map[string]string{fmt.Sprintf("items[%d].item_id", i): "does not exist"})
					}
					return err
				}
				if line.ItemName == "" {
					line.ItemName = stock.Name
				}
				if line.Unit == "" {
					line.Unit = stock.Unit
				}
			}
			subtotal = subtotal.Add(item.LineSubtotal())
			lines = append(lines, line)
		}

		tax, total := ComputeTotals(subtotal, in.TaxRate, in.Discount)
		if total.IsNegative() {
			return Validation(map[string]string{"discount": "must not exceed subtotal plus tax"})
		}

		number, err := NextNumber(tx, &models.Invoice{}, "invoice_number", PrefixInvoice, now)
		if err != nil {
			return err
		}

		inv = models.Invoice{
			InvoiceNumber:    number,
			ClientID:         client.ID,
			CreatedBy:        actor.UserID(),
			ProjectRequestID: in.ProjectRequestID,
			InvoiceType:      models.InvoiceTypeProject,
			InvoiceDate:      in.InvoiceDate,
			DueDate:          in.DueDate,
			Subtotal:         subtotal,
			Tax:              tax,
			Discount:         in.Discount,
			Total:            total,
			Status:           models.InvoiceStatusUnpaid,
			Notes:            in.Notes,
		}
		if err := tx.Omit("Items", "Payments").Create(&inv).Error; err != nil {
			return err
		}
		for i := range lines {
			lines[i].InvoiceID = inv.ID
			if err := tx.Omit("Item").Create(&lines[i]).Error; err != nil {
				return err
			}
		}

		if err := s.assignVirtualAccount(tx, &inv, now); err != nil {
			return err
		}
		if err := NewNotificationService(tx).Notify(inv.ClientID, models.NotificationInvoiceIssued, "New invoice",
			fmt.Sprintf("Invoice %s of %s is due on %s", inv.InvoiceNumber, inv.Total.StringFixed(2), inv.DueDate.Format("2006-01-02")),
			models.Ref(models.EntityInvoice, inv.ID)); err != nil {
			return err
		}
		return NewActivityService(tx).Log(actor, "create_invoice", "Created invoice "+number,
			models.Ref(models.EntityInvoice, inv.ID), map[string]interface{}{"total": inv.Total.String()})
	})
	if err != nil {
		return nil, wrap(err, "Failed to create invoice")
	}
	return s.Get(actor, inv.ID)
}

// CreateSurveyInvoice bills the fixed survey fee for a project request
func (s *InvoiceService) CreateSurveyInvoice(actor Actor, requestID uint) (*models.Invoice, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}

	now := s.now()
	var inv models.Invoice
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var req models.ProjectRequest
		if err := tx.First(&req, requestID).Error; err != nil {
			return notFoundOr(err, "PROJECT_REQUEST_NOT_FOUND", "Project request not found")
		}

		var existing int64
		if err := tx.Model(&models.Invoice{}).
			Where("project_request_id = ? AND invoice_type = ? AND status <> ?", req.ID, models.InvoiceTypeSurvey, models.InvoiceStatusCancelled).
			Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			return Conflict("SURVEY_INVOICE_EXISTS", "A survey invoice already exists for this project request")
		}

		number, err := NextNumber(tx, &models.Invoice{}, "invoice_number", PrefixInvoice, now)
		if err != nil {
			return err
		}

		fee := s.opts.SurveyFee
		requestRef := req.ID
		inv = models.Invoice{
			InvoiceNumber:    number,
			ClientID:         req.ClientID,
			CreatedBy:        actor.UserID(),
			ProjectRequestID: &requestRef,
			InvoiceType:      models.InvoiceTypeSurvey,
			InvoiceDate:      now,
			DueDate:          now.Add(SurveyInvoiceTerm),
			Subtotal:         fee,
			Tax:              decimal.Zero,
			Discount:         decimal.Zero,
			Total:            fee,
			Status:           models.InvoiceStatusUnpaid,
			Notes:            "Survey fee for " + req.RequestNumber,
		}
		if err := tx.Omit("Items", "Payments").Create(&inv).Error; err != nil {
			return err
		}

		item := models.InvoiceItem{
			InvoiceID: inv.ID,
			ItemName:  SurveyItemName,
			Quantity:  decimal.NewFromInt(1),
			Unit:      "service",
			UnitPrice: fee,
		}
		if err := tx.Create(&item).Error; err != nil {
			return err
		}

		if err := s.assignVirtualAccount(tx, &inv, now); err != nil {
			return err
		}
		if err := NewNotificationService(tx).Notify(inv.ClientID, models.NotificationInvoiceIssued, "Survey fee invoice",
			fmt.Sprintf("Survey invoice %s of %s is due on %s", inv.InvoiceNumber, fee.StringFixed(2), inv.DueDate.Format("2006-01-02")),
			models.Ref(models.EntityInvoice, inv.ID)); err != nil {
			return err
		}
		return NewActivityService(tx).Log(actor, "create_survey_invoice", "Created survey invoice "+number+" for "+req.RequestNumber,
			models.Ref(models.EntityInvoice, inv.ID), nil)
	})
	if err != nil {
		return nil, wrap(err, "Failed to create survey invoice")
	}
	return s.Get(actor, inv.ID)
}

// SurveyFeeStatus reports whether a project request has a paid survey invoice
func (s *InvoiceService) SurveyFeeStatus(actor Actor, requestID uint) (*SurveyFeeStatus, error) {
	var req models.ProjectRequest
	if err := s.db.First(&req, requestID).Error; err != nil {
		return nil, notFoundOr(err, "PROJECT_REQUEST_NOT_FOUND", "Project request not found")
	}
	if !actor.CanView(req.ClientID) {
		return nil, Forbidden("You do not have access to this project request")
	}

	status := &SurveyFeeStatus{ProjectRequestID: req.ID}
	var surveys []models.Invoice
	if err := s.db.Where("project_request_id = ? AND invoice_type = ? AND status <> ?",
		req.ID, models.InvoiceTypeSurvey, models.InvoiceStatusCancelled).
		Order("id ASC").Find(&surveys).Error; err != nil {
		return nil, Internal("Failed to read survey invoices", err)
	}
	if len(surveys) == 0 {
		return status, nil
	}

	survey := surveys[0]
	status.HasSurveyInvoice = true
	status.IsPaid = survey.IsPaid()
	status.Invoice = &survey

	var applied int64
	if err := s.db.Model(&models.Invoice{}).Where("parent_invoice_id = ?", survey.ID).Count(&applied).Error; err != nil {
		return nil, Internal("Failed to read survey invoices", err)
	}
	status.IsApplied = applied > 0
	return status, nil
}

// ApplySurveyFeeDiscount deducts a paid survey invoice from a project invoice once.
// It returns false without changes when the pair does not qualify.
func ApplySurveyFeeDiscount(tx *gorm.DB, target, survey *models.Invoice) (bool, error) {
	if !survey.IsSurvey() || !survey.IsPaid() || target.IsSurvey() || target.SurveyFeeApplied {
		return false, nil
	}
	if target.Status == models.InvoiceStatusCancelled {
		return false, RuleViolation("INVOICE_CANCELLED", "Cancelled invoices cannot be discounted")
	}
	if target.ClientID != survey.ClientID {
		return false, RuleViolation("SURVEY_CLIENT_MISMATCH", "The survey invoice belongs to a different client")
	}

	var used int64
	if err := tx.Model(&models.Invoice{}).Where("parent_invoice_id = ?", survey.ID).Count(&used).Error; err != nil {
		return false, err
	}
	if used > 0 {
		return false, nil
	}

	gross := target.Subtotal.Add(target.Tax).Sub(target.Discount)
	deduction := decimal.Min(survey.Total, decimal.Max(gross, decimal.Zero))

	surveyID := survey.ID
	target.Discount = target.Discount.Add(deduction)
	target.RecomputeTotal()
	target.ParentInvoiceID = &surveyID
	target.SurveyFeeApplied = true

	if err := tx.Model(target).Updates(map[string]interface{}{
		"discount":           target.Discount,
		"total":              target.Total,
		"parent_invoice_id":  surveyID,
		"survey_fee_applied": true,
	}).Error; err != nil {
		return false, err
	}

	reconciled, err := ReconcileInvoice(tx, target.ID)
	if err != nil {
		return false, err
	}
	*target = *reconciled
	return true, nil
}

// ApplySurveyDiscount lets an admin deduct a survey invoice from a project invoice.
// With surveyID 0 the paid survey invoice of the target's project request is used.
func (s *InvoiceService) ApplySurveyDiscount(actor Actor, invoiceID, surveyID uint) (*models.Invoice, bool, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, false, err
	}

	var applied bool
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var target models.Invoice
		if err := tx.First(&target, invoiceID).Error; err != nil {
			return notFoundOr(err, "INVOICE_NOT_FOUND", "Invoice not found")
		}

		var survey models.Invoice
		if surveyID != 0 {
			if err := tx.First(&survey, surveyID).Error; err != nil {
				return notFoundOr(err, "SURVEY_INVOICE_NOT_FOUND", "Survey invoice not found")
			}
		} else {
			if target.ProjectRequestID == nil {
				return RuleViolation("SURVEY_INVOICE_NOT_FOUND", "Invoice is not linked to a project request")
			}
			if err := tx.Where("project_request_id = ? AND invoice_type = ? AND status = ?",
				*target.ProjectRequestID, models.InvoiceTypeSurvey, models.InvoiceStatusPaid).
				Order("id ASC").First(&survey).Error; err != nil {
				return notFoundOr(err, "SURVEY_INVOICE_NOT_FOUND", "No paid survey invoice for this project request")
			}
		}

		var err error
		applied, err = ApplySurveyFeeDiscount(tx, &target, &survey)
		if err != nil || !applied {
			return err
		}
		return NewActivityService(tx).Log(actor, "apply_survey_discount",
			"Deducted survey invoice "+survey.InvoiceNumber+" from "+target.InvoiceNumber,
			models.Ref(models.EntityInvoice, target.ID), map[string]interface{}{"survey_invoice_id": survey.ID})
	})
	if err != nil {
		return nil, false, wrap(err, "Failed to apply survey discount")
	}

	inv, err := s.Get(actor, invoiceID)
	return inv, applied, err
}

// IsRequestLocked reports whether a project invoice of the request has ever been paid
func IsRequestLocked(db *gorm.DB, requestID uint) (bool, error) {
	var req models.ProjectRequest
	if err := db.Select("id", "locked_at").First(&req, requestID).Error; err != nil {
		return false, err
	}
	return req.IsLocked(), nil
}

// Update edits dates, notes or status of an invoice that is not paid
func (s *InvoiceService) Update(actor Actor, id uint, in InvoiceUpdateInput) (*models.Invoice, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if in.Status != nil && !slices.Contains([]string{models.InvoiceStatusDraft, models.InvoiceStatusUnpaid, models.InvoiceStatusCancelled}, *in.Status) {
		return nil, Validation(map[string]string{"status": "must be one of: draft, unpaid, cancelled"})
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		var inv models.Invoice
		if err := tx.First(&inv, id).Error; err != nil {
			return notFoundOr(err, "INVOICE_NOT_FOUND", "Invoice not found")
		}
		if inv.IsPaid() {
			return RuleViolation("INVOICE_PAID", "Paid invoices cannot be modified")
		}

		invoiceDate, dueDate := inv.InvoiceDate, inv.DueDate
		updates := map[string]interface{}{}
		if in.InvoiceDate != nil {
			invoiceDate = *in.InvoiceDate
			updates["invoice_date"] = invoiceDate
		}
		if in.DueDate != nil {
			dueDate = *in.DueDate
			updates["due_date"] = dueDate
			updates["overdue_notified"] = false
		}
		if dueDate.Before(invoiceDate) {
			return Validation(map[string]string{"due_date": "must not be before invoice_date"})
		}
		if in.Notes != nil {
			updates["notes"] = *in.Notes
		}
		if in.Status != nil {
			updates["status"] = *in.Status
		}
		if len(updates) == 0 {
			return nil
		}
		if err := tx.Model(&inv).Updates(updates).Error; err != nil {
			return err
		}

		if inv.Status != models.InvoiceStatusCancelled {
			if _, err := ReconcileInvoice(tx, inv.ID); err != nil {
				return err
			}
		}
		return NewActivityService(tx).Log(actor, "update_invoice", "Updated invoice "+inv.InvoiceNumber,
			models.Ref(models.EntityInvoice, inv.ID), nil)
	})
	if err != nil {
		return nil, wrap(err, "Failed to update invoice")
	}
	return s.Get(actor, id)
}

// Delete removes an invoice that has no payments and was never deducted from another
func (s *InvoiceService) Delete(actor Actor, id uint) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		var inv models.Invoice
		if err := tx.First(&inv, id).Error; err != nil {
			return notFoundOr(err, "INVOICE_NOT_FOUND", "Invoice not found")
		}

		var payments int64
		if err := tx.Model(&models.Payment{}).Where("invoice_id = ?", inv.ID).Count(&payments).Error; err != nil {
			return err
		}
		if payments > 0 {
			return RuleViolation("INVOICE_HAS_PAYMENTS", "Invoices with payments cannot be deleted")
		}

		var children int64
		if err := tx.Model(&models.Invoice{}).Where("parent_invoice_id = ?", inv.ID).Count(&children).Error; err != nil {
			return err
		}
		if children > 0 {
			return RuleViolation("SURVEY_FEE_APPLIED", "This survey invoice has been deducted from another invoice")
		}

		if err := tx.Where("invoice_id = ?", inv.ID).Delete(&models.InvoiceItem{}).Error; err != nil {
			return err
		}
		if err := tx.Delete(&inv).Error; err != nil {
			return err
		}
		return NewActivityService(tx).Log(actor, "delete_invoice", "Deleted invoice "+inv.InvoiceNumber,
			models.Ref(models.EntityInvoice, inv.ID), nil)
	})
	return wrap(err, "Failed to delete invoice")
}

// MarkOverdue moves past-due unpaid invoices to overdue and alerts each client once
func (s *InvoiceService) MarkOverdue() (int, error) {
	now := s.now()
	marked := 0
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Invoice{}).
			Where("status IN ? AND due_date < ?", []string{models.InvoiceStatusUnpaid, models.InvoiceStatusDraft}, now).
			Update("status", models.InvoiceStatusOverdue).Error; err != nil {
			return err
		}

		var pending []models.Invoice
		if err := tx.Where("status = ? AND overdue_notified = ?", models.InvoiceStatusOverdue, false).Find(&pending).Error; err != nil {
			return err
		}

		notifications := NewNotificationService(tx)
		for _, inv := range pending {
			if err := notifications.Notify(inv.ClientID, models.NotificationOverdueAlert, "Invoice overdue",
				fmt.Sprintf("Invoice %s was due on %s", inv.InvoiceNumber, inv.DueDate.Format("2006-01-02")),
				models.Ref(models.EntityInvoice, inv.ID)); err != nil {
				return err
			}
			if err := tx.Model(&inv).Update("overdue_notified", true).Error; err != nil {
				return err
			}
			marked++
		}
		return nil
	})
	if err != nil {
		return 0, Internal("Failed to mark overdue invoices", err)
	}
	return marked, nil
}

// List returns invoices visible to the actor after the overdue sweep
func (s *InvoiceService) List(actor Actor, filter InvoiceFilter) ([]models.Invoice, error) {
	if _, err := s.MarkOverdue(); err != nil {
		return nil, err
	}

	query := s.db.Model(&models.Invoice{}).Preload("Client")
	if !actor.IsAdmin() {
		query = query.Where("client_id = ?", actor.UserID())
	} else if filter.ClientID != 0 {
		query = query.Where("client_id = ?", filter.ClientID)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.Type != "" {
		query = query.Where("invoice_type = ?", filter.Type)
	}
	if filter.Search != "" {
		like := "%" + filter.Search + "%"
		query = query.Where("invoice_number LIKE ? OR notes LIKE ? OR va_number LIKE ?", like, like, like)
	}
	if filter.From != nil {
		query = query.Where("invoice_date >= ?", *filter.From)
	}
	if filter.To != nil {
		query = query.Where("invoice_date < ?", filter.To.AddDate(0, 0, 1))
	}

	var invoices []models.Invoice
	if err := query.Order("invoice_date DESC, id DESC").Find(&invoices).Error; err != nil {
		return nil, Internal("Failed to list invoices", err)
	}
	return invoices, nil
}

// ListOverdue returns the actor's overdue invoices
func (s *InvoiceService) ListOverdue(actor Actor) ([]models.Invoice, error) {
	return s.List(actor, InvoiceFilter{Status: models.InvoiceStatusOverdue})
}

// Get returns one invoice with items and payments
func (s *InvoiceService) Get(actor Actor, id uint) (*models.Invoice, error) {
	var inv models.Invoice
	err := s.db.Preload("Client").
		Preload("Quotation").
		Preload("ProjectRequest").
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		Preload("Payments", func(db *gorm.DB) *gorm.DB { return db.Order("payment_date DESC, id DESC") }).
		First(&inv, id).Error
	if err != nil {
		return nil, notFoundOr(err, "INVOICE_NOT_FOUND", "Invoice not found")
	}
	if !actor.CanView(inv.ClientID) {
		return nil, Forbidden("You do not have access to this invoice")
	}
	return &inv, nil
}
