package models

import (
	"time"

	"gorm.io/gorm"
)

const (
	RoleAdmin  = "admin"
	RoleClient = "client"
)

// User represents an account in the system (admin staff or client)
type User struct {
	ID             uint           `gorm:"primaryKey" json:"id"`
	Name           string         `gorm:"not null" json:"name"`
	Email          string         `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash   string         `json:"-"`
	Role           string         `gorm:"not null;default:'client'" json:"role"` // "admin" or "client"
	Phone          string         `json:"phone"`
	Address        string         `json:"address"`
	CompanyName    string         `json:"company_name"`
	IsActive       bool           `gorm:"not null" json:"is_active"`
	ExternalAuthID *string        `gorm:"uniqueIndex" json:"-"` // subject of a third-party identity token
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
	DeletedAt      gorm.DeletedAt `gorm:"index" json:"-"`
}

// TableName specifies the table name for the User model
func (User) TableName() string {
	return "users"
}

// IsAdmin reports whether the user has the admin role
func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}

// AccessToken is an issued bearer token; deleting the row revokes it
type AccessToken struct {
	ID         uint       `gorm:"primaryKey" json:"id"`
	UserID     uint       `gorm:"not null;index" json:"user_id"`
	TokenID    string     `gorm:"uniqueIndex;not null" json:"-"` // jti claim
	Name       string     `gorm:"not null" json:"name"`
	ExpiresAt  time.Time  `gorm:"not null" json:"expires_at"`
	LastUsedAt *time.Time `json:"last_used_at"`
	CreatedAt  time.Time  `json:"created_at"`
}

// TableName specifies the table name for the AccessToken model
func (AccessToken) TableName() string {
	return "access_tokens"
}
