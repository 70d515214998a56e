package auth

import (
	"golang.org/x/crypto/bcrypt"

	"github.com/defter-erp/defter/internal/shared"
)

// Credentials is the single configured admin credential pair. The password
// is stored as a bcrypt hash, never in clear.
type Credentials struct {
	Username     string
	PasswordHash string
}

// Service checks login attempts against the configured credentials. It
// guards the HTTP surface only; ledger rules never depend on it.
type Service struct {
	credentials Credentials
}

// NewService constructs a Service.
func NewService(credentials Credentials) *Service {
	return &Service{credentials: credentials}
}

// Authenticate validates a username/password pair.
func (s *Service) Authenticate(username, password string) error {
	if username != s.credentials.Username {
		// Burn a comparison anyway so unknown users cost the same.
		bcrypt.CompareHashAndPassword([]byte(s.credentials.PasswordHash), []byte(password))
		return shared.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(s.credentials.PasswordHash), []byte(password)); err != nil {
		return shared.ErrInvalidCredentials
	}
	return nil
}
