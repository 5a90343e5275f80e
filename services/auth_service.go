package services

import (
	"context"
	"errors"
	"strings"

	"github.com/kendall-kelly/triloka-construction-api/models"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// RegisterInput is a new client's sign-up data
type RegisterInput struct {
	Name        string
	Email       string
	Password    string
	Phone       string
	Address     string
	CompanyName string
}

// ProfileInput holds the profile fields a user may change; nil means unchanged
type ProfileInput struct {
	Name        *string
	Phone       *string
	Address     *string
	CompanyName *string
}

// AuthService handles sign-up, sign-in and profile maintenance
type AuthService struct {
	db     *gorm.DB
	tokens *TokenService
}

// NewAuthService creates an auth service issuing tokens through tokens
func NewAuthService(db *gorm.DB, tokens *TokenService) *AuthService {
	return &AuthService{db: db, tokens: tokens}
}

// HashPassword hashes a plain-text password with bcrypt
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func checkPassword(hash, password string) bool {
	if hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register creates a client account and signs it in
func (s *AuthService) Register(in RegisterInput) (*models.User, string, error) {
	email := normalizeEmail(in.Email)

	var count int64
	if err := s.db.Unscoped().Model(&models.User{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return nil, "", Internal("Failed to register user", err)
	}
	if count > 0 {
		return nil, "", Conflict("USER_EXISTS", "An account with this email already exists")
	}

	hash, err := HashPassword(in.Password)
	if err != nil {
		return nil, "", Internal("Failed to register user", err)
	}

	user := models.User{
		Name:         in.Name,
		Email:        email,
		PasswordHash: hash,
		Role:         models.RoleClient,
		Phone:        in.Phone,
		Address:      in.Address,
		CompanyName:  in.CompanyName,
		IsActive:     true,
	}
	if err := s.db.Create(&user).Error; err != nil {
		return nil, "", Internal("Failed to register user", err)
	}

	token, _, err := s.tokens.Issue(&user, "auth_token")
	if err != nil {
		return nil, "", Internal("Failed to issue token", err)
	}
	return &user, token, nil
}

// Login checks credentials, revokes earlier tokens and issues a new one.
// With adminOnly set, non-admin accounts are refused.
func (s *AuthService) Login(email, password string, adminOnly bool) (*models.User, string, error) {
	var user models.User
	if err := s.db.Where("email = ?", normalizeEmail(email)).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, "", Unauthorized("INVALID_CREDENTIALS", "The provided credentials are incorrect")
		}
		return nil, "", Internal("Failed to sign in", err)
	}

	if !checkPassword(user.PasswordHash, password) {
		return nil, "", Unauthorized("INVALID_CREDENTIALS", "The provided credentials are incorrect")
	}
	if !user.IsActive {
		return nil, "", &ServiceError{Kind: KindForbidden, Code: "ACCOUNT_INACTIVE", Message: "Your account is inactive"}
	}
	if adminOnly && !user.IsAdmin() {
		return nil, "", Forbidden("Only admins can sign in to the admin panel")
	}

	return s.startSession(&user)
}

// ExternalLogin signs in with a third-party ID token, linking or creating the local account
func (s *AuthService) ExternalLogin(ctx context.Context, verifier IdentityVerifier, rawToken string) (*models.User, string, error) {
	if verifier == nil {
		return nil, "", RuleViolation("EXTERNAL_LOGIN_DISABLED", "External sign-in is not enabled")
	}

	identity, err := verifier.Verify(ctx, rawToken)
	if err != nil {
		return nil, "", Unauthorized("INVALID_TOKEN", "Failed to validate identity token")
	}

	var user models.User
	err = s.db.Where("external_auth_id = ?", identity.Subject).First(&user).Error
	switch {
	case err == nil:
	case errors.Is(err, gorm.ErrRecordNotFound):
		linked, err := s.linkOrCreate(identity)
		if err != nil {
			return nil, "", err
		}
		user = *linked
	default:
		return nil, "", Internal("Failed to sign in", err)
	}

	if !user.IsActive {
		return nil, "", &ServiceError{Kind: KindForbidden, Code: "ACCOUNT_INACTIVE", Message: "Your account is inactive"}
	}

	return s.startSession(&user)
}

func (s *AuthService) linkOrCreate(identity *ExternalIdentity) (*models.User, error) {
	subject := identity.Subject
	email := normalizeEmail(identity.Email)

	var user models.User
	err := s.db.Where("email = ?", email).First(&user).Error
	if err == nil {
		if err := s.db.Model(&user).Update("external_auth_id", subject).Error; err != nil {
			return nil, Internal("Failed to link account", err)
		}
		user.ExternalAuthID = &subject
		return &user, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, Internal("Failed to sign in", err)
	}

	name := identity.Name
	if name == "" {
		name = email
	}
	user = models.User{
		Name:           name,
		Email:          email,
		Role:           models.RoleClient,
		IsActive:       true,
		ExternalAuthID: &subject,
	}
	if err := s.db.Create(&user).Error; err != nil {
		return nil, Internal("Failed to create account", err)
	}
	return &user, nil
}

func (s *AuthService) startSession(user *models.User) (*models.User, string, error) {
	if err := s.tokens.RevokeAll(user.ID); err != nil {
		return nil, "", Internal("Failed to sign in", err)
	}
	token, _, err := s.tokens.Issue(user, "auth_token")
	if err != nil {
		return nil, "", Internal("Failed to issue token", err)
	}
	return user, token, nil
}

// Logout revokes the token used for the current request
func (s *AuthService) Logout(tokenID string) error {
	if err := s.tokens.Revoke(tokenID); err != nil {
		return Internal("Failed to sign out", err)
	}
	return nil
}

// UpdateProfile changes the user's own profile fields
func (s *AuthService) UpdateProfile(user *models.User, in ProfileInput) (*models.User, error) {
	updates := map[string]interface{}{}
	if in.Name != nil {
		updates["name"] = *in.Name
	}
	if in.Phone != nil {
		updates["phone"] = *in.Phone
	}
	if in.Address != nil {
		updates["address"] = *in.Address
	}
	if in.CompanyName != nil {
		updates["company_name"] = *in.CompanyName
	}

	if len(updates) > 0 {
		if err := s.db.Model(&models.User{}).Where("id = ?", user.ID).Updates(updates).Error; err != nil {
			return nil, Internal("Failed to update profile", err)
		}
	}

	var updated models.User
	if err := s.db.First(&updated, user.ID).Error; err != nil {
		return nil, notFoundOr(err, "USER_NOT_FOUND", "User not found")
	}
	return &updated, nil
}

// ChangePassword replaces the password after checking the current one
func (s *AuthService) ChangePassword(user *models.User, current, next string) error {
	if !checkPassword(user.PasswordHash, current) {
		return Validation(map[string]string{"current_password": "is incorrect"})
	}
	hash, err := HashPassword(next)
	if err != nil {
		return Internal("Failed to change password", err)
	}
	if err := s.db.Model(&models.User{}).Where("id = ?", user.ID).Update("password_hash", hash).Error; err != nil {
		return Internal("Failed to change password", err)
	}
	return nil
}
