package services

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/auth0/go-jwt-middleware/v2/jwks"
	"github.com/auth0/go-jwt-middleware/v2/validator"
)

// ExternalIdentity is the caller described by a verified third-party ID token
type ExternalIdentity struct {
	Subject       string
	Email         string
	Name          string
	EmailVerified bool
}

// IdentityVerifier verifies ID tokens issued by an external identity provider
type IdentityVerifier interface {
	Verify(ctx context.Context, rawToken string) (*ExternalIdentity, error)
}

// IdentityClaims contains the profile claims we read from the ID token
type IdentityClaims struct {
	Email         string `json:"email"`
	Name          string `json:"name"`
	EmailVerified bool   `json:"email_verified"`
}

// Validate requires the email claim used to match local accounts
func (c *IdentityClaims) Validate(ctx context.Context) error {
	if c.Email == "" {
		return errors.New("email claim is required")
	}
	return nil
}

// JWKSIdentityVerifier checks RS256 tokens against the issuer's published keys
type JWKSIdentityVerifier struct {
	validator *validator.Validator
}

// NewJWKSIdentityVerifier creates a verifier for the given issuer and audience
func NewJWKSIdentityVerifier(issuer, audience string) (*JWKSIdentityVerifier, error) {
	issuerURL, err := url.Parse(issuer)
	if err != nil {
		return nil, fmt.Errorf("failed to parse the issuer url: %w", err)
	}

	provider := jwks.NewCachingProvider(issuerURL, 5*time.Minute)

	jwtValidator, err := validator.New(
		provider.KeyFunc,
		validator.RS256,
		issuer,
		[]string{audience},
		validator.WithCustomClaims(
			func() validator.CustomClaims {
				return &IdentityClaims{}
			},
		),
		validator.WithAllowedClockSkew(time.Minute),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to set up the jwt validator: %w", err)
	}

	return &JWKSIdentityVerifier{validator: jwtValidator}, nil
}

// Verify validates the token and returns the identity it carries
func (v *JWKSIdentityVerifier) Verify(ctx context.Context, rawToken string) (*ExternalIdentity, error) {
	result, err := v.validator.ValidateToken(ctx, rawToken)
	if err != nil {
		return nil, err
	}

	claims, ok := result.(*validator.ValidatedClaims)
	if !ok {
		return nil, errors.New("claims are not in the expected format")
	}
	custom, ok := claims.CustomClaims.(*IdentityClaims)
	if !ok {
		return nil, errors.New("custom claims are not in the expected format")
	}

	return &ExternalIdentity{
		Subject:       claims.RegisteredClaims.Subject,
		Email:         custom.Email,
		Name:          custom.Name,
		EmailVerified: custom.EmailVerified,
	}, nil
}

var identityVerifierInstance IdentityVerifier

// GetIdentityVerifier returns the configured verifier, or nil when external login is disabled
func GetIdentityVerifier() IdentityVerifier {
	return identityVerifierInstance
}

// SetIdentityVerifier sets the verifier instance
func SetIdentityVerifier(verifier IdentityVerifier) {
	identityVerifierInstance = verifier
}
