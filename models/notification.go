package models

import (
	"time"

	"gorm.io/datatypes"
)

const (
	NotificationPaymentReminder     = "payment_reminder"
	NotificationOverdueAlert        = "overdue_alert"
	NotificationStockAlert          = "stock_alert"
	NotificationPaymentReceived     = "payment_received"
	NotificationPaymentVerified     = "payment_verified"
	NotificationPaymentRejected     = "payment_rejected"
	NotificationNewNegotiation      = "new_negotiation"
	NotificationNegotiationAccepted = "negotiation_accepted"
	NotificationNegotiationRejected = "negotiation_rejected"
	NotificationQuotationSent       = "quotation_sent"
	NotificationInvoiceIssued       = "invoice_issued"
)

// Notification is an in-app message for one user
type Notification struct {
	ID        uint       `gorm:"primaryKey" json:"id"`
	UserID    uint       `gorm:"not null;index" json:"user_id"`
	Type      string     `gorm:"not null;index" json:"type"`
	Title     string     `gorm:"not null" json:"title"`
	Message   string     `gorm:"type:text;not null" json:"message"`
	Entity    EntityRef  `gorm:"embedded" json:"entity"`
	IsRead    bool       `gorm:"not null;index" json:"is_read"`
	ReadAt    *time.Time `json:"read_at"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// TableName specifies the table name for the Notification model
func (Notification) TableName() string {
	return "notifications"
}

// ActivityLog is an append-only audit record
type ActivityLog struct {
	ID          uint              `gorm:"primaryKey" json:"id"`
	UserID      *uint             `gorm:"index" json:"user_id"`
	User        *User             `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Action      string            `gorm:"not null;index" json:"action"`
	Entity      EntityRef         `gorm:"embedded" json:"entity"`
	IPAddress   string            `json:"ip_address"`
	UserAgent   string            `json:"user_agent"`
	Description string            `gorm:"type:text" json:"description"`
	Metadata    datatypes.JSONMap `json:"metadata,omitempty"`
	CreatedAt   time.Time         `gorm:"index" json:"created_at"`
}

// TableName specifies the table name for the ActivityLog model
func (ActivityLog) TableName() string {
	return "activity_logs"
}
