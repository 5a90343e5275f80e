package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"mime/multipart"
	"slices"
	"strings"
	"time"

	"github.com/kendall-kelly/triloka-construction-api/models"
	"github.com/kendall-kelly/triloka-construction-api/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// PaymentInput is a client's payment submission
type PaymentInput struct {
	InvoiceID     uint
	Amount        decimal.Decimal
	PaymentDate   time.Time
	PaymentMethod string
	Notes         string
}

// PaymentFilter narrows payment listings
type PaymentFilter struct {
	Status        string
	InvoiceID     uint
	PaymentMethod string
}

// InvoicePayments is the payment history and balance of one invoice
type InvoicePayments struct {
	Invoice          *models.Invoice  `json:"invoice"`
	Payments         []models.Payment `json:"payments"`
	TotalPaid        decimal.Decimal  `json:"total_paid"`
	TotalSubmitted   decimal.Decimal  `json:"total_submitted"`
	RemainingBalance decimal.Decimal  `json:"remaining_balance"`
}

// PaymentService records payments and reconciles invoice status
type PaymentService struct {
	db      *gorm.DB
	storage FileStorage
	now     func() time.Time
}

// NewPaymentService creates a payment service
func NewPaymentService(db *gorm.DB, storage FileStorage) *PaymentService {
	return &PaymentService{db: db, storage: storage, now: time.Now}
}

func sumAmounts(tx *gorm.DB, invoiceID uint, statuses ...string) (decimal.Decimal, error) {
	var amounts []decimal.Decimal
	if err := tx.Model(&models.Payment{}).
		Where("invoice_id = ? AND status IN ?", invoiceID, statuses).
		Pluck("amount", &amounts).Error; err != nil {
		return decimal.Zero, err
	}
	sum := decimal.Zero
	for _, a := range amounts {
		sum = sum.Add(a)
	}
	return sum, nil
}

// ReconcileInvoice sets an invoice's paid state from its verified payments.
// Paying a project invoice locks its project request for good.
func ReconcileInvoice(tx *gorm.DB, invoiceID uint) (*models.Invoice, error) {
	var inv models.Invoice
	if err := tx.First(&inv, invoiceID).Error; err != nil {
		return nil, err
	}
	if inv.Status == models.InvoiceStatusCancelled {
		return &inv, nil
	}

	verified, err := sumAmounts(tx, inv.ID, models.PaymentStatusVerified)
	if err != nil {
		return nil, err
	}

	switch {
	case verified.GreaterThanOrEqual(inv.Total) && !inv.IsPaid():
		updates := map[string]interface{}{"status": models.InvoiceStatusPaid}
		if inv.PaidAt == nil {
			updates["paid_at"] = time.Now()
		}
		if err := tx.Model(&inv).Updates(updates).Error; err != nil {
			return nil, err
		}
		if inv.InvoiceType == models.InvoiceTypeProject && inv.ProjectRequestID != nil {
			if err := tx.Model(&models.ProjectRequest{}).
				Where("id = ? AND locked_at IS NULL", *inv.ProjectRequestID).
				Update("locked_at", time.Now()).Error; err != nil {
				return nil, err
			}
		}
	case verified.LessThan(inv.Total) && inv.IsPaid():
		if err := tx.Model(&inv).Updates(map[string]interface{}{
			"status":  models.InvoiceStatusUnpaid,
			"paid_at": nil,
		}).Error; err != nil {
			return nil, err
		}
	}

	return &inv, nil
}

// Submit records a pending payment with an optional proof image
func (s *PaymentService) Submit(ctx context.Context, actor Actor, in PaymentInput, proof *multipart.FileHeader) (*models.Payment, error) {
	fields := map[string]string{}
	if in.InvoiceID == 0 {
		fields["invoice_id"] = "is required"
	}
	if !in.Amount.IsPositive() {
		fields["amount"] = "must be greater than 0"
	}
	if in.PaymentDate.IsZero() {
		fields["payment_date"] = "is required"
	}
	if !slices.Contains(models.PaymentMethods, in.PaymentMethod) {
		fields["payment_method"] = "must be one of: " + strings.Join(models.PaymentMethods, ", ")
	}
	if len(fields) > 0 {
		return nil, Validation(fields)
	}

	var inv models.Invoice
	if err := s.db.First(&inv, in.InvoiceID).Error; err != nil {
		return nil, notFoundOr(err, "INVOICE_NOT_FOUND", "Invoice not found")
	}
	if !actor.Owns(inv.ClientID) {
		return nil, Forbidden("You can only pay your own invoices")
	}
	switch inv.Status {
	case models.InvoiceStatusPaid:
		return nil, RuleViolation("INVOICE_ALREADY_PAID", "This invoice has already been paid")
	case models.InvoiceStatusCancelled:
		return nil, RuleViolation("INVOICE_CANCELLED", "This invoice has been cancelled")
	}

	var key string
	if proof != nil {
		if err := utils.ProofImageRule.Validate(proof); err != nil {
			var fileErr *utils.FileUploadError
			if errors.As(err, &fileErr) {
				return nil, &ServiceError{Kind: KindValidation, Code: fileErr.Code, Message: fileErr.Message,
					Fields: map[string]string{"proof_image": fileErr.Message}}
			}
			return nil, Internal("Failed to validate proof image", err)
		}
		var err error
		if key, err = s.storage.Save(ctx, FolderPaymentProofs, proof); err != nil {
			return nil, Internal("Failed to store proof image", err)
		}
	}

	var payment models.Payment
	err := s.db.Transaction(func(tx *gorm.DB) error {
		submitted, err := sumAmounts(tx, inv.ID, models.PaymentStatusPending, models.PaymentStatusVerified)
		if err != nil {
			return err
		}
		remaining := inv.Total.Sub(submitted)
		if in.Amount.GreaterThan(remaining) {
			return Validation(map[string]string{"amount": "exceeds the remaining balance of " + remaining.StringFixed(2)})
		}

		number, err := NextNumber(tx, &models.Payment{}, "payment_number", PrefixPayment, s.now())
		if err != nil {
			return err
		}
		payment = models.Payment{
			PaymentNumber: number,
			InvoiceID:     inv.ID,
			Amount:        in.Amount.Round(2),
			PaymentDate:   in.PaymentDate,
			PaymentMethod: in.PaymentMethod,
			Notes:         in.Notes,
			ProofImage:    key,
			Status:        models.PaymentStatusPending,
			CreatedBy:     actor.UserID(),
		}
		if err := tx.Create(&payment).Error; err != nil {
			return err
		}

		if err := NewNotificationService(tx).NotifyAdmins(models.NotificationPaymentReceived, "Payment received",
			fmt.Sprintf("Payment %s of %s for invoice %s awaits verification", number, payment.Amount.StringFixed(2), inv.InvoiceNumber),
			models.Ref(models.EntityPayment, payment.ID)); err != nil {
			return err
		}
		return NewActivityService(tx).Log(actor, "submit_payment", "Submitted payment "+number+" for "+inv.InvoiceNumber,
			models.Ref(models.EntityPayment, payment.ID), map[string]interface{}{"amount": payment.Amount.String()})
	})
	if err != nil {
		if key != "" {
			if delErr := s.storage.Delete(ctx, key); delErr != nil {
				log.Printf("warning: failed to remove orphaned proof image %s: %v", key, delErr)
			}
		}
		return nil, wrap(err, "Failed to submit payment")
	}

	return s.Get(ctx, actor, payment.ID)
}

func (s *PaymentService) loadPending(tx *gorm.DB, id uint) (*models.Payment, error) {
	var p models.Payment
	if err := tx.Preload("Invoice").First(&p, id).Error; err != nil {
		return nil, notFoundOr(err, "PAYMENT_NOT_FOUND", "Payment not found")
	}
	if p.Status != models.PaymentStatusPending {
		return nil, RuleViolation("PAYMENT_ALREADY_PROCESSED", "This payment has already been processed")
	}
	if p.Invoice == nil {
		return nil, Internal("Payment is missing its invoice", nil)
	}
	return &p, nil
}

// Verify confirms a pending payment and reconciles its invoice
func (s *PaymentService) Verify(ctx context.Context, actor Actor, id uint) (*models.Payment, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		p, err := s.loadPending(tx, id)
		if err != nil {
			return err
		}
		if err := tx.Model(p).Updates(map[string]interface{}{
			"status":      models.PaymentStatusVerified,
			"verified_by": actor.UserID(),
			"verified_at": s.now(),
		}).Error; err != nil {
			return err
		}

		inv, err := ReconcileInvoice(tx, p.InvoiceID)
		if err != nil {
			return err
		}

		message := fmt.Sprintf("Payment %s of %s was verified", p.PaymentNumber, p.Amount.StringFixed(2))
		if inv.IsPaid() {
			message += "; invoice " + inv.InvoiceNumber + " is now paid in full"
		}
		if err := NewNotificationService(tx).Notify(inv.ClientID, models.NotificationPaymentVerified, "Payment verified",
			message, models.Ref(models.EntityPayment, p.ID)); err != nil {
			return err
		}
		return NewActivityService(tx).Log(actor, "verify_payment", "Verified payment "+p.PaymentNumber,
			models.Ref(models.EntityPayment, p.ID), map[string]interface{}{"invoice_status": inv.Status})
	})
	if err != nil {
		return nil, wrap(err, "Failed to verify payment")
	}
	return s.Get(ctx, actor, id)
}

// Reject declines a pending payment
func (s *PaymentService) Reject(ctx context.Context, actor Actor, id uint, notes string) (*models.Payment, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		p, err := s.loadPending(tx, id)
		if err != nil {
			return err
		}
		if err := tx.Model(p).Updates(map[string]interface{}{
			"status":      models.PaymentStatusRejected,
			"admin_notes": notes,
		}).Error; err != nil {
			return err
		}
		if _, err := ReconcileInvoice(tx, p.InvoiceID); err != nil {
			return err
		}

		message := "Payment " + p.PaymentNumber + " was rejected"
		if notes != "" {
			message += ": " + notes
		}
		if err := NewNotificationService(tx).Notify(p.Invoice.ClientID, models.NotificationPaymentRejected, "Payment rejected",
			message, models.Ref(models.EntityPayment, p.ID)); err != nil {
			return err
		}
		return NewActivityService(tx).Log(actor, "reject_payment", "Rejected payment "+p.PaymentNumber,
			models.Ref(models.EntityPayment, p.ID), map[string]interface{}{"notes": notes})
	})
	if err != nil {
		return nil, wrap(err, "Failed to reject payment")
	}
	return s.Get(ctx, actor, id)
}

// Delete removes a payment and its proof; verified payments need force
func (s *PaymentService) Delete(ctx context.Context, actor Actor, id uint, force bool) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}

	var key string
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var p models.Payment
		if err := tx.First(&p, id).Error; err != nil {
			return notFoundOr(err, "PAYMENT_NOT_FOUND", "Payment not found")
		}
		if p.Status == models.PaymentStatusVerified && !force {
			return RuleViolation("PAYMENT_VERIFIED", "Verified payments can only be deleted with force=true")
		}

		key = p.ProofImage
		if err := tx.Delete(&p).Error; err != nil {
			return err
		}
		inv, err := ReconcileInvoice(tx, p.InvoiceID)
		if err != nil {
			return err
		}
		return NewActivityService(tx).Log(actor, "delete_payment", "Deleted payment "+p.PaymentNumber,
			models.Ref(models.EntityPayment, p.ID),
			map[string]interface{}{"status": p.Status, "forced": force, "invoice_status": inv.Status})
	})
	if err != nil {
		return wrap(err, "Failed to delete payment")
	}

	if key != "" {
		if err := s.storage.Delete(ctx, key); err != nil {
			log.Printf("warning: failed to delete proof image %s: %v", key, err)
		}
	}
	return nil
}

// List returns payments visible to the actor, newest first
func (s *PaymentService) List(ctx context.Context, actor Actor, filter PaymentFilter) ([]models.Payment, error) {
	query := s.db.Model(&models.Payment{}).Preload("Invoice")
	if !actor.IsAdmin() {
		owned := s.db.Model(&models.Invoice{}).Select("id").Where("client_id = ?", actor.UserID())
		query = query.Where("invoice_id IN (?)", owned)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.InvoiceID != 0 {
		query = query.Where("invoice_id = ?", filter.InvoiceID)
	}
	if filter.PaymentMethod != "" {
		query = query.Where("payment_method = ?", filter.PaymentMethod)
	}

	var payments []models.Payment
	if err := query.Order("payment_date DESC, id DESC").Find(&payments).Error; err != nil {
		return nil, Internal("Failed to list payments", err)
	}
	for i := range payments {
		payments[i].ProofImageURL = fileURL(ctx, s.storage, payments[i].ProofImage)
	}
	return payments, nil
}

// Get returns one payment visible to the actor
func (s *PaymentService) Get(ctx context.Context, actor Actor, id uint) (*models.Payment, error) {
	var p models.Payment
	if err := s.db.Preload("Invoice").First(&p, id).Error; err != nil {
		return nil, notFoundOr(err, "PAYMENT_NOT_FOUND", "Payment not found")
	}
	if p.Invoice == nil || !actor.CanView(p.Invoice.ClientID) {
		return nil, Forbidden("You do not have access to this payment")
	}
	p.ProofImageURL = fileURL(ctx, s.storage, p.ProofImage)
	return &p, nil
}

// ByInvoice returns an invoice's payments with paid, submitted and remaining amounts
func (s *PaymentService) ByInvoice(ctx context.Context, actor Actor, invoiceID uint) (*InvoicePayments, error) {
	var inv models.Invoice
	if err := s.db.First(&inv, invoiceID).Error; err != nil {
		return nil, notFoundOr(err, "INVOICE_NOT_FOUND", "Invoice not found")
	}
	if !actor.CanView(inv.ClientID) {
		return nil, Forbidden("You do not have access to this invoice")
	}

	var payments []models.Payment
	if err := s.db.Where("invoice_id = ?", inv.ID).Order("payment_date DESC, id DESC").Find(&payments).Error; err != nil {
		return nil, Internal("Failed to list payments", err)
	}

	result := &InvoicePayments{Invoice: &inv, Payments: payments, TotalPaid: decimal.Zero, TotalSubmitted: decimal.Zero}
	for i := range payments {
		payments[i].ProofImageURL = fileURL(ctx, s.storage, payments[i].ProofImage)
		switch payments[i].Status {
		case models.PaymentStatusVerified:
			result.TotalPaid = result.TotalPaid.Add(payments[i].Amount)
			result.TotalSubmitted = result.TotalSubmitted.Add(payments[i].Amount)
		case models.PaymentStatusPending:
			result.TotalSubmitted = result.TotalSubmitted.Add(payments[i].Amount)
		}
	}
	result.RemainingBalance = inv.Total.Sub(result.TotalSubmitted)
	return result, nil
}
