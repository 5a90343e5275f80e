package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	QuotationStatusDraft    = "draft"
	QuotationStatusSent     = "sent"
	QuotationStatusApproved = "approved"
	QuotationStatusRejected = "rejected"
	QuotationStatusRevised  = "revised"
	QuotationStatusExpired  = "expired"
)

// Quotation is a priced offer for a project request
type Quotation struct {
	ID               uint            `gorm:"primaryKey" json:"id"`
	QuotationNumber  string          `gorm:"uniqueIndex;not null" json:"quotation_number"`
	ProjectRequestID uint            `gorm:"not null;index" json:"project_request_id"`
	ProjectRequest   *ProjectRequest `gorm:"foreignKey:ProjectRequestID" json:"project_request,omitempty"`
	Version          int             `gorm:"not null;default:1" json:"version"`
	TaxRate          decimal.Decimal `gorm:"type:decimal(5,2);not null" json:"tax_rate"` // percent
	Subtotal         decimal.Decimal `gorm:"type:decimal(15,2);not null" json:"subtotal"`
	Tax              decimal.Decimal `gorm:"type:decimal(15,2);not null" json:"tax"`
	Discount         decimal.Decimal `gorm:"type:decimal(15,2);not null" json:"discount"`
	Total            decimal.Decimal `gorm:"type:decimal(15,2);not null" json:"total"`
	Notes            string          `gorm:"type:text" json:"notes"`
	ValidUntil       time.Time       `gorm:"not null" json:"valid_until"`
	Status           string          `gorm:"not null;default:'draft';index" json:"status"`
	CreatedBy        uint            `gorm:"not null" json:"created_by"`
	SentAt           *time.Time      `json:"sent_at"`
	ApprovedAt       *time.Time      `json:"approved_at"`
	Items            []QuotationItem `gorm:"foreignKey:QuotationID" json:"items,omitempty"`
	Negotiations     []Negotiation   `gorm:"foreignKey:QuotationID" json:"negotiations,omitempty"`
	Expired          bool            `gorm:"-" json:"is_expired"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// TableName specifies the table name for the Quotation model
func (Quotation) TableName() string {
	return "quotations"
}

// AfterFind fills the computed expiry flag
func (q *Quotation) AfterFind(tx *gorm.DB) error {
	q.Expired = q.IsExpired(time.Now())
	return nil
}

// IsExpired reports whether valid_until has passed
func (q *Quotation) IsExpired(now time.Time) bool {
	if q.Status == QuotationStatusExpired {
		return true
	}
	return !q.ValidUntil.IsZero() && q.ValidUntil.Before(now)
}

// IsOpen reports whether the client can still act on the quotation
func (q *Quotation) IsOpen() bool {
	return q.Status == QuotationStatusSent || q.Status == QuotationStatusRevised
}

// CanNegotiate reports whether a counter offer may be submitted
func (q *Quotation) CanNegotiate(now time.Time) bool {
	return q.IsOpen() && !q.IsExpired(now)
}

// CanApprove reports whether the client may approve the quotation
func (q *Quotation) CanApprove(now time.Time) bool {
	return q.IsOpen() && !q.IsExpired(now)
}

// IsEditable reports whether items and terms may still change
func (q *Quotation) IsEditable() bool {
	switch q.Status {
	case QuotationStatusDraft, QuotationStatusSent, QuotationStatusRevised:
		return true
	}
	return false
}

// QuotationItem is one priced line of a quotation
type QuotationItem struct {
	ID          uint            `gorm:"primaryKey" json:"id"`
	QuotationID uint            `gorm:"not null;index" json:"quotation_id"`
	ItemName    string          `gorm:"not null" json:"item_name"`
	Category    string          `json:"category"`
	Quantity    decimal.Decimal `gorm:"type:decimal(15,2);not null" json:"quantity"`
	Unit        string          `gorm:"not null" json:"unit"`
	UnitPrice   decimal.Decimal `gorm:"type:decimal(15,2);not null" json:"unit_price"`
	Subtotal    decimal.Decimal `gorm:"type:decimal(15,2);not null" json:"subtotal"`
	Description string          `gorm:"type:text" json:"description"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// TableName specifies the table name for the QuotationItem model
func (QuotationItem) TableName() string {
	return "quotation_items"
}

// BeforeSave keeps subtotal equal to quantity x unit price
func (i *QuotationItem) BeforeSave(tx *gorm.DB) error {
	i.Subtotal = i.Quantity.Mul(i.UnitPrice).Round(2)
	return nil
}

const (
	NegotiationStatusPending  = "pending"
	NegotiationStatusAccepted = "accepted"
	NegotiationStatusRejected = "rejected"
)

// Negotiation is a counter offer against a quotation
type Negotiation struct {
	ID            uint            `gorm:"primaryKey" json:"id"`
	QuotationID   uint            `gorm:"not null;index" json:"quotation_id"`
	Quotation     *Quotation      `gorm:"foreignKey:QuotationID" json:"quotation,omitempty"`
	SenderID      uint            `gorm:"not null" json:"sender_id"`
	Sender        *User           `gorm:"foreignKey:SenderID" json:"sender,omitempty"`
	SenderType    string          `gorm:"not null" json:"sender_type"` // "client" or "admin"
	Message       string          `gorm:"type:text;not null" json:"message"`
	CounterAmount decimal.Decimal `gorm:"type:decimal(15,2);not null" json:"counter_amount"`
	Status        string          `gorm:"not null;default:'pending';index" json:"status"`
	AdminNotes    string          `gorm:"type:text" json:"admin_notes"`
	ProcessedBy   *uint           `json:"processed_by"`
	ProcessedAt   *time.Time      `json:"processed_at"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// TableName specifies the table name for the Negotiation model
func (Negotiation) TableName() string {
	return "negotiations"
}
