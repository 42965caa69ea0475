package services

import (
	"time"

	"go.uber.org/zap"
)

// ManagerTokenIssuer checks the manager secret and signs role tokens.
type ManagerTokenIssuer interface {
	Verify(candidate string) error
	Issue() (string, time.Time, error)
}

// ManagerGrant is a signed manager-role token.
type ManagerGrant struct {
	Token     string
	ExpiresAt time.Time
}

// RoleService unlocks the manager role.
type RoleService interface {
	// VerifyManager checks the secret and issues a manager token. Errors are
	// apperrors.ErrManagerSecretNotConfigured or apperrors.ErrInvalidManagerSecret.
	VerifyManager(secret string) (*ManagerGrant, error)
}

type roleService struct {
	issuer ManagerTokenIssuer
	logger *zap.Logger
}

// NewRoleService creates a role service.
func NewRoleService(issuer ManagerTokenIssuer, logger *zap.Logger) RoleService {
	return &roleService{
		issuer: issuer,
		logger: logger.Named("role"),
	}
}

func (s *roleService) VerifyManager(secret string) (*ManagerGrant, error) {
	if err := s.issuer.Verify(secret); err != nil {
		s.logger.Info("Manager verification rejected", zap.Error(err))
		return nil, err
	}
	token, expires, err := s.issuer.Issue()
	if err != nil {
		return nil, err
	}
	s.logger.Info("Manager role granted", zap.Time("expires_at", expires))
	return &ManagerGrant{Token: token, ExpiresAt: expires}, nil
}

var _ RoleService = (*roleService)(nil)
