package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/walkinq/queue-service/internal/auth"
	"github.com/walkinq/queue-service/internal/config"
	"github.com/walkinq/queue-service/internal/domain"
	"github.com/walkinq/queue-service/internal/repository"
	apperrors "github.com/walkinq/queue-service/pkg/util/errorutil"
)

var errInvalidCredentials = apperrors.NewUnauthorized("invalid credentials")

// AuthService coordinates login and the initial account bootstrap.
type AuthService struct {
	users      repository.UserRepository
	orgs       repository.OrganizationRepository
	tokenMgr   *auth.TokenManager
	bcryptCost int
	logger     *zap.Logger
}

// AuthDependencies encapsulates repo requirements for auth service.
type AuthDependencies struct {
	UserRepo repository.UserRepository
	OrgRepo  repository.OrganizationRepository
	Logger   *zap.Logger
}

// NewAuthService builds the service.
func NewAuthService(cfg config.Config, deps AuthDependencies) *AuthService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthService{
		users:      deps.UserRepo,
		orgs:       deps.OrgRepo,
		tokenMgr:   auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes),
		bcryptCost: cfg.Auth.BcryptCost,
		logger:     logger,
	}
}

// Login authenticates an operator and issues an access token.
func (s *AuthService) Login(ctx context.Context, email, password string) (*domain.User, string, time.Time, error) {
	user, err := s.users.GetByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, "", time.Time{}, errInvalidCredentials
		}
		return nil, "", time.Time{}, err
	}
	if err := auth.ComparePassword(user.PasswordHash, password); err != nil {
		return nil, "", time.Time{}, errInvalidCredentials
	}
	token, exp, err := s.tokenMgr.GenerateToken(user)
	if err != nil {
		return nil, "", time.Time{}, apperrors.NewInternalError(err)
	}
	return user, token, exp, nil
}

// EnsureBootstrap creates the configured organization and super admin when the
// admin account does not exist yet. It is a no-op without a bootstrap email.
func (s *AuthService) EnsureBootstrap(ctx context.Context, cfg config.BootstrapConfig) error {
	if cfg.Email == "" {
		return nil
	}
	if _, err := s.users.GetByEmail(ctx, cfg.Email); err == nil {
		return nil
	} else if !errors.Is(err, domain.ErrUserNotFound) {
		return err
	}
	if cfg.Password == "" {
		return apperrors.NewValidationError("bootstrap password is required", nil)
	}

	if cfg.OrgName != "" {
		org, err := s.orgs.FindByName(ctx, cfg.OrgName)
		if err != nil {
			return err
		}
		if org == nil {
			org = &domain.Organization{Name: cfg.OrgName}
			if err := s.orgs.Create(ctx, org); err != nil {
				return err
			}
			s.logger.Info("bootstrap organization created", zap.String("org_id", org.ID))
		}
	}

	hash, err := auth.HashPassword(cfg.Password, s.bcryptCost)
	if err != nil {
		return err
	}
	admin := &domain.User{
		Email:        cfg.Email,
		Name:         "Super Admin",
		PasswordHash: hash,
		Role:         domain.RoleSuperAdmin,
	}
	if err := s.users.Create(ctx, admin); err != nil {
		return err
	}
	s.logger.Info("bootstrap super admin created", zap.String("user_id", admin.ID))
	return nil
}

// TokenManager exposes the underlying token manager for middleware usage.
func (s *AuthService) TokenManager() *auth.TokenManager {
	return s.tokenMgr
}
