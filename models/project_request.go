package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	RequestStatusPending     = "pending"
	RequestStatusQuoted      = "quoted"
	RequestStatusNegotiating = "negotiating"
	RequestStatusApproved    = "approved"
	RequestStatusRejected    = "rejected"
	RequestStatusCancelled   = "cancelled"
)

// RequestTypes lists the accepted project request types
var RequestTypes = []string{"construction", "renovation", "supply", "contractor", "other"}

// ProjectRequest is a client's request for construction work
type ProjectRequest struct {
	ID               uint                `gorm:"primaryKey" json:"id"`
	RequestNumber    string              `gorm:"uniqueIndex;not null" json:"request_number"`
	ClientID         uint                `gorm:"not null;index" json:"client_id"`
	Client           *User               `gorm:"foreignKey:ClientID" json:"client,omitempty"`
	Title            string              `gorm:"not null" json:"title"`
	Type             string              `gorm:"not null" json:"type"`
	Description      string              `gorm:"type:text" json:"description"`
	Location         string              `json:"location"`
	ExpectedBudget   decimal.NullDecimal `gorm:"type:decimal(15,2)" json:"expected_budget"`
	ExpectedTimeline string              `json:"expected_timeline"`
	Status           string              `gorm:"not null;default:'pending';index" json:"status"`
	AdminNotes       string              `gorm:"type:text" json:"admin_notes"`
	LockedAt         *time.Time          `json:"locked_at"` // set the first time a linked project invoice is paid
	Locked           bool                `gorm:"-" json:"is_locked"`
	Documents        []RequestDocument   `gorm:"foreignKey:ProjectRequestID" json:"documents,omitempty"`
	Quotations       []Quotation         `gorm:"foreignKey:ProjectRequestID" json:"quotations,omitempty"`
	CreatedAt        time.Time           `json:"created_at"`
	UpdatedAt        time.Time           `json:"updated_at"`
}

// TableName specifies the table name for the ProjectRequest model
func (ProjectRequest) TableName() string {
	return "project_requests"
}

// AfterFind fills the computed lock flag
func (r *ProjectRequest) AfterFind(tx *gorm.DB) error {
	r.Locked = r.IsLocked()
	return nil
}

// IsLocked reports whether a linked invoice has ever been paid
func (r *ProjectRequest) IsLocked() bool {
	return r.LockedAt != nil
}

const (
	VerificationPending  = "pending"
	VerificationVerified = "verified"
	VerificationRejected = "rejected"
)

// DocumentTypes lists the accepted supporting document types
var DocumentTypes = []string{"ktp", "npwp", "drawing", "rab", "permit", "photo", "other"}

// RequestDocument is a file attached to a project request
type RequestDocument struct {
	ID                 uint            `gorm:"primaryKey" json:"id"`
	ProjectRequestID   uint            `gorm:"not null;index" json:"project_request_id"`
	ProjectRequest     *ProjectRequest `gorm:"foreignKey:ProjectRequestID" json:"project_request,omitempty"`
	DocumentType       string          `gorm:"not null" json:"document_type"`
	FilePath           string          `gorm:"not null" json:"file_path"` // storage key
	FileName           string          `gorm:"not null" json:"file_name"`
	FileType           string          `json:"file_type"`
	FileSize           int64           `json:"file_size"`
	Description        string          `json:"description"`
	VerificationStatus string          `gorm:"not null;default:'pending';index" json:"verification_status"`
	VerificationNotes  string          `json:"verification_notes"`
	VerifiedBy         *uint           `json:"verified_by"`
	VerifiedAt         *time.Time      `json:"verified_at"`
	FileURL            string          `gorm:"-" json:"file_url,omitempty"` // computed from storage
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
}

// TableName specifies the table name for the RequestDocument model
func (RequestDocument) TableName() string {
	return "request_documents"
}
