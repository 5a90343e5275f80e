package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	InvoiceTypeSurvey  = "survey"
	InvoiceTypeProject = "project"

	InvoiceStatusDraft     = "draft"
	InvoiceStatusUnpaid    = "unpaid"
	InvoiceStatusPaid      = "paid"
	InvoiceStatusOverdue   = "overdue"
	InvoiceStatusCancelled = "cancelled"
)

// Invoice is a bill issued to a client
type Invoice struct {
	ID               uint            `gorm:"primaryKey" json:"id"`
	InvoiceNumber    string          `gorm:"uniqueIndex;not null" json:"invoice_number"`
	ClientID         uint            `gorm:"not null;index" json:"client_id"`
	Client           *User           `gorm:"foreignKey:ClientID" json:"client,omitempty"`
	CreatedBy        uint            `gorm:"not null" json:"created_by"`
	QuotationID      *uint           `gorm:"index" json:"quotation_id"`
	Quotation        *Quotation      `gorm:"foreignKey:QuotationID" json:"quotation,omitempty"`
	ProjectRequestID *uint           `gorm:"index" json:"project_request_id"`
	ProjectRequest   *ProjectRequest `gorm:"foreignKey:ProjectRequestID" json:"project_request,omitempty"`
	InvoiceType      string          `gorm:"not null;default:'project';index" json:"invoice_type"`
	InvoiceDate      time.Time       `gorm:"not null" json:"invoice_date"`
	DueDate          time.Time       `gorm:"not null;index" json:"due_date"`
	Subtotal         decimal.Decimal `gorm:"type:decimal(15,2);not null" json:"subtotal"`
	Tax              decimal.Decimal `gorm:"type:decimal(15,2);not null" json:"tax"`
	Discount         decimal.Decimal `gorm:"type:decimal(15,2);not null" json:"discount"`
	Total            decimal.Decimal `gorm:"type:decimal(15,2);not null" json:"total"`
	Status           string          `gorm:"not null;default:'unpaid';index" json:"status"`
	Notes            string          `gorm:"type:text" json:"notes"`
	PaidAt           *time.Time      `json:"paid_at"`
	OverdueNotified  bool            `gorm:"not null" json:"-"`
	VABank           string          `json:"va_bank"`
	VANumber         string          `gorm:"index" json:"va_number"`
	VAExpiresAt      *time.Time      `json:"va_expires_at"`
	ParentInvoiceID  *uint           `gorm:"index" json:"parent_invoice_id"` // survey invoice deducted from this one
	SurveyFeeApplied bool            `gorm:"not null" json:"is_survey_fee_applied"`
	Items            []InvoiceItem   `gorm:"foreignKey:InvoiceID" json:"items,omitempty"`
	Payments         []Payment       `gorm:"foreignKey:InvoiceID" json:"payments,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// TableName specifies the table name for the Invoice model
func (Invoice) TableName() string {
	return "invoices"
}

// IsSurvey reports whether this is a survey fee invoice
func (i *Invoice) IsSurvey() bool {
	return i.InvoiceType == InvoiceTypeSurvey
}

// IsPaid reports whether the invoice is settled
func (i *Invoice) IsPaid() bool {
	return i.Status == InvoiceStatusPaid
}

// RecomputeTotal sets total = subtotal + tax - discount
func (i *Invoice) RecomputeTotal() {
	i.Total = i.Subtotal.Add(i.Tax).Sub(i.Discount)
}

// InvoiceItem is one billed line of an invoice
type InvoiceItem struct {
	ID          uint            `gorm:"primaryKey" json:"id"`
	InvoiceID   uint            `gorm:"not null;index" json:"invoice_id"`
	ItemID      *uint           `gorm:"index" json:"item_id"` // optional inventory link
	Item        *Item           `gorm:"foreignKey:ItemID" json:"item,omitempty"`
	ItemName    string          `gorm:"not null" json:"item_name"`
	Description string          `gorm:"type:text" json:"description"`
	Quantity    decimal.Decimal `gorm:"type:decimal(15,2);not null" json:"quantity"`
	Unit        string          `json:"unit"`
	UnitPrice   decimal.Decimal `gorm:"type:decimal(15,2);not null" json:"unit_price"`
	Subtotal    decimal.Decimal `gorm:"type:decimal(15,2);not null" json:"subtotal"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// TableName specifies the table name for the InvoiceItem model
func (InvoiceItem) TableName() string {
	return "invoice_items"
}

// BeforeSave keeps subtotal equal to quantity x unit price
func (i *InvoiceItem) BeforeSave(tx *gorm.DB) error {
	i.Subtotal = i.Quantity.Mul(i.UnitPrice).Round(2)
	return nil
}
