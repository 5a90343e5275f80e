package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	PaymentStatusPending  = "pending"
	PaymentStatusVerified = "verified"
	PaymentStatusRejected = "rejected"
)

// PaymentMethods lists the accepted payment methods
var PaymentMethods = []string{"cash", "transfer", "check", "other"}

// Payment is a client's payment toward an invoice, awaiting admin verification
type Payment struct {
	ID            uint            `gorm:"primaryKey" json:"id"`
	PaymentNumber string          `gorm:"uniqueIndex;not null" json:"payment_number"`
	InvoiceID     uint            `gorm:"not null;index" json:"invoice_id"`
	Invoice       *Invoice        `gorm:"foreignKey:InvoiceID" json:"invoice,omitempty"`
	Amount        decimal.Decimal `gorm:"type:decimal(15,2);not null" json:"amount"`
	PaymentDate   time.Time       `gorm:"not null" json:"payment_date"`
	PaymentMethod string          `gorm:"not null" json:"payment_method"`
	Notes         string          `gorm:"type:text" json:"notes"`
	ProofImage    string          `json:"proof_image"` // storage key
	ProofImageURL string          `gorm:"-" json:"proof_image_url,omitempty"`
	Status        string          `gorm:"not null;default:'pending';index" json:"status"`
	AdminNotes    string          `gorm:"type:text" json:"admin_notes"`
	CreatedBy     uint            `gorm:"not null" json:"created_by"`
	VerifiedBy    *uint           `json:"verified_by"`
	VerifiedAt    *time.Time      `json:"verified_at"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// TableName specifies the table name for the Payment model
func (Payment) TableName() string {
	return "payments"
}
