package testutil

import (
	"testing"

	"github.com/kendall-kelly/triloka-construction-api/models"
	"github.com/kendall-kelly/triloka-construction-api/services"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// TestPassword is the password of every user created by CreateUser
const TestPassword = "password123"

// CreateUser inserts an active user with the given role and TestPassword
func CreateUser(t *testing.T, db *gorm.DB, role, email string) *models.User {
	t.Helper()

	hash, err := services.HashPassword(TestPassword)
	require.NoError(t, err)

	user := &models.User{
		Name:         email,
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		IsActive:     true,
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

// CreateAdmin inserts an active admin
func CreateAdmin(t *testing.T, db *gorm.DB) *models.User {
	t.Helper()
	return CreateUser(t, db, models.RoleAdmin, "admin@example.com")
}

// CreateClient inserts an active client
func CreateClient(t *testing.T, db *gorm.DB, email string) *models.User {
	t.Helper()
	return CreateUser(t, db, models.RoleClient, email)
}

// IssueToken returns a valid bearer token for user
func IssueToken(t *testing.T, db *gorm.DB, user *models.User) string {
	t.Helper()

	token, _, err := services.NewTokenService(db, TestJWTSecret, 0).Issue(user, "test")
	require.NoError(t, err)
	return token
}

// AuthHeader formats a bearer Authorization header value
func AuthHeader(token string) string {
	return "Bearer " + token
}
