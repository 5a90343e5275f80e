package services

import (
	"github.com/kendall-kelly/triloka-construction-api/models"
	"gorm.io/gorm"
)

// UserFilter narrows the admin user listing
type UserFilter struct {
	Role     string
	Search   string
	IsActive *bool
}

// CreateUserInput is an admin-created account
type CreateUserInput struct {
	RegisterInput
	Role string
}

// UpdateUserInput holds admin-editable account fields; nil means unchanged
type UpdateUserInput struct {
	ProfileInput
	Role     *string
	IsActive *bool
}

// UserService is the admin view of accounts
type UserService struct {
	db *gorm.DB
}

// NewUserService creates a user service
func NewUserService(db *gorm.DB) *UserService {
	return &UserService{db: db}
}

// List returns users matching the filter, newest first
func (s *UserService) List(actor Actor, filter UserFilter) ([]models.User, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}

	query := s.db.Model(&models.User{})
	if filter.Role != "" {
		query = query.Where("role = ?", filter.Role)
	}
	if filter.IsActive != nil {
		query = query.Where("is_active = ?", *filter.IsActive)
	}
	if filter.Search != "" {
		like := "%" + filter.Search + "%"
		query = query.Where("name LIKE ? OR email LIKE ? OR company_name LIKE ?", like, like, like)
	}

	var users []models.User
	if err := query.Order("created_at DESC").Find(&users).Error; err != nil {
		return nil, Internal("Failed to list users", err)
	}
	return users, nil
}

// Get returns one user
func (s *UserService) Get(actor Actor, id uint) (*models.User, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	var user models.User
	if err := s.db.First(&user, id).Error; err != nil {
		return nil, notFoundOr(err, "USER_NOT_FOUND", "User not found")
	}
	return &user, nil
}

// Create adds an account with any role
func (s *UserService) Create(actor Actor, in CreateUserInput) (*models.User, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}

	email := normalizeEmail(in.Email)
	var count int64
	if err := s.db.Unscoped().Model(&models.User{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return nil, Internal("Failed to create user", err)
	}
	if count > 0 {
		return nil, Conflict("USER_EXISTS", "An account with this email already exists")
	}

	hash, err := HashPassword(in.Password)
	if err != nil {
		return nil, Internal("Failed to create user", err)
	}

	role := in.Role
	if role == "" {
		role = models.RoleClient
	}
	user := models.User{
		Name:         in.Name,
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		Phone:        in.Phone,
		Address:      in.Address,
		CompanyName:  in.CompanyName,
		IsActive:     true,
	}
	if err := s.db.Create(&user).Error; err != nil {
		return nil, Internal("Failed to create user", err)
	}

	_ = NewActivityService(s.db).Log(actor, "create_user", "Created user "+user.Email, models.Ref(models.EntityUser, user.ID), nil)
	return &user, nil
}

// Update changes role, status or profile fields; deactivation revokes all tokens
func (s *UserService) Update(actor Actor, id uint, in UpdateUserInput) (*models.User, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}

	var user models.User
	if err := s.db.First(&user, id).Error; err != nil {
		return nil, notFoundOr(err, "USER_NOT_FOUND", "User not found")
	}
	if user.ID == actor.UserID() && in.IsActive != nil && !*in.IsActive {
		return nil, RuleViolation("CANNOT_DEACTIVATE_SELF", "You cannot deactivate your own account")
	}

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
	if in.Role != nil {
		updates["role"] = *in.Role
	}
	if in.IsActive != nil {
		updates["is_active"] = *in.IsActive
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if len(updates) > 0 {
			if err := tx.Model(&user).Updates(updates).Error; err != nil {
				return err
			}
		}
		if in.IsActive != nil && !*in.IsActive {
			if err := tx.Where("user_id = ?", user.ID).Delete(&models.AccessToken{}).Error; err != nil {
				return err
			}
		}
		return NewActivityService(tx).Log(actor, "update_user", "Updated user "+user.Email, models.Ref(models.EntityUser, user.ID), nil)
	})
	if err != nil {
		return nil, wrap(err, "Failed to update user")
	}

	return s.Get(actor, id)
}
