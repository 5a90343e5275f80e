package services

import (
	"errors"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/kendall-kelly/triloka-construction-api/models"
	"gorm.io/gorm"
)

var (
	ErrInvalidToken = errors.New("invalid or expired token")
	ErrInactiveUser = errors.New("user account is inactive")
)

// TokenClaims are the claims carried by an API bearer token
type TokenClaims struct {
	UserID uint   `json:"uid"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// TokenService issues and checks revocable HS256 bearer tokens
type TokenService struct {
	db     *gorm.DB
	secret []byte
	ttl    time.Duration
}

// NewTokenService creates a token service signing with secret
func NewTokenService(db *gorm.DB, secret string, ttl time.Duration) *TokenService {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &TokenService{db: db, secret: []byte(secret), ttl: ttl}
}

// Issue records a new token for the user and returns the signed string
func (s *TokenService) Issue(user *models.User, name string) (string, *models.AccessToken, error) {
	now := time.Now()
	record := models.AccessToken{
		UserID:    user.ID,
		TokenID:   uuid.NewString(),
		Name:      name,
		ExpiresAt: now.Add(s.ttl),
	}
	if err := s.db.Create(&record).Error; err != nil {
		return "", nil, err
	}

	claims := TokenClaims{
		UserID: user.ID,
		Role:   user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        record.TokenID,
			Subject:   strconv.FormatUint(uint64(user.ID), 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(record.ExpiresAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", nil, err
	}
	return signed, &record, nil
}

// Authenticate validates a token string and loads its active owner
func (s *TokenService) Authenticate(raw string) (*models.User, *models.AccessToken, error) {
	token, err := jwt.ParseWithClaims(raw, &TokenClaims{}, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return nil, nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*TokenClaims)
	if !ok || claims.ID == "" {
		return nil, nil, ErrInvalidToken
	}

	var record models.AccessToken
	if err := s.db.Where("token_id = ?", claims.ID).First(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, ErrInvalidToken
		}
		return nil, nil, err
	}

	now := time.Now()
	if record.ExpiresAt.Before(now) {
		return nil, nil, ErrInvalidToken
	}

	var user models.User
	if err := s.db.First(&user, record.UserID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, ErrInvalidToken
		}
		return nil, nil, err
	}
	if !user.IsActive {
		return nil, nil, ErrInactiveUser
	}

	if err := s.db.Model(&record).Update("last_used_at", now).Error; err != nil {
		return nil, nil, err
	}

	return &user, &record, nil
}

// Revoke deletes one token
func (s *TokenService) Revoke(tokenID string) error {
	return s.db.Where("token_id = ?", tokenID).Delete(&models.AccessToken{}).Error
}

// RevokeAll deletes every token of the user
func (s *TokenService) RevokeAll(userID uint) error {
	return s.db.Where("user_id = ?", userID).Delete(&models.AccessToken{}).Error
}
