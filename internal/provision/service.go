// Package provision creates and deactivates principal accounts.
package provision

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/meridian-crm/meridian/internal/authz"
	"github.com/meridian-crm/meridian/internal/gateway"
	"github.com/meridian-crm/meridian/internal/retry"
)

// Enqueuer hands follow-up work to the job queue.
type Enqueuer interface {
	EnqueueWelcome(ctx context.Context, email, displayName string) error
}

// Service wraps account provisioning business rules.
type Service struct {
	directory gateway.PrincipalDirectory
	enqueuer  Enqueuer
	policy    retry.Policy
	logger    *slog.Logger
}

// NewService constructs the provisioning service.
func NewService(directory gateway.PrincipalDirectory, enqueuer Enqueuer, policy retry.Policy, logger *slog.Logger) *Service {
	return &Service{directory: directory, enqueuer: enqueuer, policy: policy, logger: logger}
}

// CreateAccountInput carries the provisioning request.
type CreateAccountInput struct {
	Email       string
	DisplayName string
	Role        string
	Admin       bool
	Password    string
}

// CreateAccount provisions a new principal. The insert is retried: the
// directory may lag right after backend-side account creation.
func (s *Service) CreateAccount(ctx context.Context, input CreateAccountInput) (authz.Principal, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return authz.Principal{}, fmt.Errorf("provision: hash credential: %w", err)
	}

	principal, err := retry.Value(ctx, s.policy, func(ctx context.Context) (authz.Principal, error) {
		return s.directory.InsertPrincipal(ctx, gateway.PrincipalInput{
			Email:          input.Email,
			DisplayName:    input.DisplayName,
			Role:           input.Role,
			Admin:          input.Admin,
			CredentialHash: string(hash),
		})
	})
	if err != nil {
		return authz.Principal{}, fmt.Errorf("provision: create account: %w", err)
	}

	if s.enqueuer != nil {
		if err := s.enqueuer.EnqueueWelcome(ctx, principal.Email, principal.DisplayName); err != nil {
			// The account exists; a lost welcome mail is not worth failing
			// the provisioning call.
			s.logger.Warn("enqueue welcome mail", slog.Any("error", err))
		}
	}
	return principal, nil
}

// Deactivate flips the principal's active flag. The principal is never hard
// deleted; any live session signs itself out on the next bootstrap.
func (s *Service) Deactivate(ctx context.Context, id uuid.UUID) error {
	if err := s.directory.DeactivatePrincipal(ctx, id); err != nil {
		return fmt.Errorf("provision: deactivate: %w", err)
	}
	s.logger.Info("principal deactivated", slog.String("principal", id.String()))
	return nil
}
