package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kendall-kelly/triloka-construction-api/config"
	"github.com/kendall-kelly/triloka-construction-api/middleware"
	"github.com/kendall-kelly/triloka-construction-api/models"
	"github.com/kendall-kelly/triloka-construction-api/services"
)

// CreateUserRequest represents the request body for an admin-created account
type CreateUserRequest struct {
	Name        string `json:"name" binding:"required,max=255"`
	Email       string `json:"email" binding:"required,email,max=255"`
	Password    string `json:"password" binding:"required,min=8"`
	Role        string `json:"role" binding:"required,oneof=admin client"`
	Phone       string `json:"phone" binding:"max=20"`
	Address     string `json:"address"`
	CompanyName string `json:"company_name" binding:"max=255"`
}

// UpdateUserRequest represents the request body for admin changes to an account
type UpdateUserRequest struct {
	Name        *string `json:"name" binding:"omitempty,min=1,max=255"`
	Phone       *string `json:"phone" binding:"omitempty,max=20"`
	Address     *string `json:"address"`
	CompanyName *string `json:"company_name" binding:"omitempty,max=255"`
	Role        *string `json:"role" binding:"omitempty,oneof=admin client"`
	IsActive    *bool   `json:"is_active"`
}

// ListUsers handles GET /api/v1/admin/users
func ListUsers(c *gin.Context) {
	users, err := services.NewUserService(config.GetDB()).List(middleware.ActorFrom(c), services.UserFilter{
		Role:     c.Query("role"),
		Search:   c.Query("search"),
		IsActive: queryBool(c, "is_active"),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, users)
}

// GetUser handles GET /api/v1/admin/users/:id
func GetUser(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	user, err := services.NewUserService(config.GetDB()).Get(middleware.ActorFrom(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, user)
}

// CreateUser handles POST /api/v1/admin/users
func CreateUser(c *gin.Context) {
	var req CreateUserRequest
	if !bindJSON(c, &req) {
		return
	}

	user, err := services.NewUserService(config.GetDB()).Create(middleware.ActorFrom(c), services.CreateUserInput{
		RegisterInput: services.RegisterInput{
			Name:        req.Name,
			Email:       req.Email,
			Password:    req.Password,
			Phone:       req.Phone,
			Address:     req.Address,
			CompanyName: req.CompanyName,
		},
		Role: req.Role,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	invalidateDashboard(c)
	respondOK(c, http.StatusCreated, user)
}

// UpdateUser handles PUT /api/v1/admin/users/:id
func UpdateUser(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	var req UpdateUserRequest
	if !bindJSON(c, &req) {
		return
	}

	user, err := services.NewUserService(config.GetDB()).Update(middleware.ActorFrom(c), id, services.UpdateUserInput{
		ProfileInput: services.ProfileInput{
			Name:        req.Name,
			Phone:       req.Phone,
			Address:     req.Address,
			CompanyName: req.CompanyName,
		},
		Role:     req.Role,
		IsActive: req.IsActive,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	invalidateDashboard(c)
	respondOK(c, http.StatusOK, user)
}

// DeactivateUser handles DELETE /api/v1/admin/users/:id - accounts are deactivated, never removed
func DeactivateUser(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	inactive := false
	user, err := services.NewUserService(config.GetDB()).Update(middleware.ActorFrom(c), id, services.UpdateUserInput{IsActive: &inactive})
	if err != nil {
		respondError(c, err)
		return
	}

	invalidateDashboard(c)
	respondMessage(c, "User deactivated successfully", user)
}

// ListActivityLogs handles GET /api/v1/admin/activity-logs
func ListActivityLogs(c *gin.Context) {
	logs, err := services.NewActivityService(config.GetDB()).List(middleware.ActorFrom(c), services.ActivityFilter{
		Action:     c.Query("action"),
		UserID:     queryUint(c, "user_id"),
		EntityKind: models.EntityKind(c.Query("entity_type")),
		EntityID:   queryUint(c, "entity_id"),
		Limit:      int(queryUint(c, "limit")),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, logs)
}
