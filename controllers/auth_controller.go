package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kendall-kelly/triloka-construction-api/config"
	"github.com/kendall-kelly/triloka-construction-api/middleware"
	"github.com/kendall-kelly/triloka-construction-api/models"
	"github.com/kendall-kelly/triloka-construction-api/services"
)

// RegisterRequest represents the request body for client sign-up
type RegisterRequest struct {
	Name                 string `json:"name" binding:"required,max=255"`
	Email                string `json:"email" binding:"required,email,max=255"`
	Password             string `json:"password" binding:"required,min=8"`
	PasswordConfirmation string `json:"password_confirmation" binding:"required,eqfield=Password"`
	Phone                string `json:"phone" binding:"max=20"`
	Address              string `json:"address"`
	CompanyName          string `json:"company_name" binding:"max=255"`
}

// LoginRequest represents the request body for password sign-in
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// ExternalLoginRequest carries an ID token from the identity provider
type ExternalLoginRequest struct {
	IDToken string `json:"id_token" binding:"required"`
}

// UpdateProfileRequest represents the request body for updating the caller's profile
type UpdateProfileRequest struct {
	Name        *string `json:"name" binding:"omitempty,min=1,max=255"`
	Phone       *string `json:"phone" binding:"omitempty,max=20"`
	Address     *string `json:"address"`
	CompanyName *string `json:"company_name" binding:"omitempty,max=255"`
}

// ChangePasswordRequest represents the request body for a password change
type ChangePasswordRequest struct {
	CurrentPassword      string `json:"current_password" binding:"required"`
	Password             string `json:"password" binding:"required,min=8"`
	PasswordConfirmation string `json:"password_confirmation" binding:"required,eqfield=Password"`
}

func sessionResponse(user *models.User, token string) gin.H {
	return gin.H{
		"user":       user,
		"token":      token,
		"token_type": "Bearer",
	}
}

// Register handles POST /api/v1/register
func Register(c *gin.Context) {
	var req RegisterRequest
	if !bindJSON(c, &req) {
		return
	}

	user, token, err := authService().Register(services.RegisterInput{
		Name:        req.Name,
		Email:       req.Email,
		Password:    req.Password,
		Phone:       req.Phone,
		Address:     req.Address,
		CompanyName: req.CompanyName,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	invalidateDashboard(c)
	respondOK(c, http.StatusCreated, sessionResponse(user, token))
}

// Login handles POST /api/v1/login
func Login(c *gin.Context) {
	var req LoginRequest
	if !bindJSON(c, &req) {
		return
	}

	user, token, err := authService().Login(req.Email, req.Password, false)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, sessionResponse(user, token))
}

// ExternalLogin handles POST /api/v1/auth/external
func ExternalLogin(c *gin.Context) {
	var req ExternalLoginRequest
	if !bindJSON(c, &req) {
		return
	}

	user, token, err := authService().ExternalLogin(c.Request.Context(), services.GetIdentityVerifier(), req.IDToken)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, sessionResponse(user, token))
}

// Logout handles POST /api/v1/logout - revokes the token used for this request
func Logout(c *gin.Context) {
	if err := authService().Logout(middleware.CurrentTokenID(c)); err != nil {
		respondError(c, err)
		return
	}
	respondMessage(c, "Logged out successfully", nil)
}

// GetCurrentUser handles GET /api/v1/user
func GetCurrentUser(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	respondOK(c, http.StatusOK, user)
}

// UpdateProfile handles PUT /api/v1/user/profile
func UpdateProfile(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	var req UpdateProfileRequest
	if !bindJSON(c, &req) {
		return
	}

	updated, err := authService().UpdateProfile(user, services.ProfileInput{
		Name:        req.Name,
		Phone:       req.Phone,
		Address:     req.Address,
		CompanyName: req.CompanyName,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, updated)
}

// ChangePassword handles PUT /api/v1/user/password
func ChangePassword(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	var req ChangePasswordRequest
	if !bindJSON(c, &req) {
		return
	}

	if err := authService().ChangePassword(user, req.CurrentPassword, req.Password); err != nil {
		respondError(c, err)
		return
	}
	respondMessage(c, "Password updated successfully", nil)
}

// AdminLogin handles POST /api/v1/admin/login - signs in an admin and sets the session cookie
func AdminLogin(c *gin.Context) {
	var req LoginRequest
	if !bindJSON(c, &req) {
		return
	}

	user, token, err := authService().Login(req.Email, req.Password, true)
	if err != nil {
		respondError(c, err)
		return
	}

	cfg := config.GetConfig()
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(cfg.AdminSessionCookie, token, int(cfg.TokenTTL.Seconds()), "/", "", cfg.IsProduction(), true)
	respondOK(c, http.StatusOK, sessionResponse(user, token))
}

// AdminLogout handles POST /api/v1/admin/logout - revokes the session and clears the cookie
func AdminLogout(c *gin.Context) {
	if err := authService().Logout(middleware.CurrentTokenID(c)); err != nil {
		respondError(c, err)
		return
	}

	cfg := config.GetConfig()
	c.SetCookie(cfg.AdminSessionCookie, "", -1, "/", "", cfg.IsProduction(), true)
	respondMessage(c, "Logged out successfully", nil)
}
