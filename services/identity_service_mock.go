package services

import (
	"context"
	"errors"
)

// MockIdentityVerifier resolves tokens from a fixed table
type MockIdentityVerifier struct {
	Identities map[string]*ExternalIdentity
}

// NewMockIdentityVerifier creates an empty mock verifier
func NewMockIdentityVerifier() *MockIdentityVerifier {
	return &MockIdentityVerifier{Identities: make(map[string]*ExternalIdentity)}
}

// Verify returns the identity registered for the token
func (m *MockIdentityVerifier) Verify(ctx context.Context, rawToken string) (*ExternalIdentity, error) {
	identity, ok := m.Identities[rawToken]
	if !ok {
		return nil, errors.New("token is invalid")
	}
	return identity, nil
}
