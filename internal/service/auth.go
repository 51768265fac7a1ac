package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"agroai/internal/apperr"
	"agroai/internal/models"
	"agroai/internal/repository"

	"go.uber.org/zap"
)

var (
	ErrMissingFields      = apperr.New(apperr.ErrValidation, "Missing required fields")
	ErrEmailTaken         = apperr.New(apperr.ErrConflict, "Email already registered")
	ErrEmailInUse         = apperr.New(apperr.ErrConflict, "Email already in use")
	ErrInvalidCredentials = apperr.New(apperr.ErrAuth, "Invalid credentials")
	ErrInvalidToken       = apperr.New(apperr.ErrAuth, "Invalid or expired token")
	ErrUserNotFound       = apperr.New(apperr.ErrNotFound, "User not found")
)

type AuthService interface {
	Register(ctx context.Context, username, email, password string) (*models.PublicUser, error)
	Authenticate(ctx context.Context, email, password string) (*models.Session, error)
	Resolve(ctx context.Context, token string) (*models.User, error)
	UpdateProfile(ctx context.Context, token string, update models.ProfileUpdate) (*models.PublicUser, error)
	Revoke(ctx context.Context, token string) error
}

type authService struct {
	repo     repository.UserRepository
	hasher   *PasswordHasher
	tokens   *TokenManager
	denylist TokenDenylist // nil disables revocation
	logger   *zap.Logger

	// dummyHash is verified against when the email is unknown.
	dummyHash string
}

func NewAuthService(repo repository.UserRepository, hasher *PasswordHasher, tokens *TokenManager, denylist TokenDenylist, logger *zap.Logger) (AuthService, error) {
	dummy, err := hasher.Hash("agroai-timing-parity")
	if err != nil {
		return nil, fmt.Errorf("failed to prepare dummy hash: %w", err)
	}
	return &authService{
		repo:      repo,
		hasher:    hasher,
		tokens:    tokens,
		denylist:  denylist,
		logger:    logger,
		dummyHash: dummy,
	}, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *authService) Register(ctx context.Context, username, email, password string) (*models.PublicUser, error) {
	username = strings.TrimSpace(username)
	email = normalizeEmail(email)
	if username == "" || email == "" || strings.TrimSpace(password) == "" {
		return nil, ErrMissingFields
	}

	if _, err := s.repo.GetUserByEmail(ctx, email); err == nil {
		return nil, ErrEmailTaken
	} else if !errors.Is(err, repository.ErrUserNotFound) {
		s.logger.Error("Failed to look up user by email", zap.Error(err))
		return nil, fmt.Errorf("failed to check existing users: %w", err)
	}

	passwordHash, err := s.hasher.Hash(password)
	if err != nil {
		s.logger.Error("Failed to hash password", zap.Error(err))
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		Username:     username,
		Email:        email,
		PasswordHash: passwordHash,
	}
	if err := s.repo.CreateUser(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, ErrEmailTaken
		}
		s.logger.Error("Failed to create user", zap.Error(err))
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.logger.Info("User registered", zap.Int64("user_id", user.ID))
	return user.Public(), nil
}

func (s *authService) Authenticate(ctx context.Context, email, password string) (*models.Session, error) {
	// Blank input takes the same path as an unknown account.
	user, err := s.repo.GetUserByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			_, _ = s.hasher.Verify(s.dummyHash, password)
			return nil, ErrInvalidCredentials
		}
		s.logger.Error("Failed to get user by email", zap.Error(err))
		return nil, fmt.Errorf("failed to retrieve user: %w", err)
	}

	ok, err := s.hasher.Verify(user.PasswordHash, password)
	if err != nil {
		s.logger.Error("Stored password hash is unreadable", zap.Int64("user_id", user.ID), zap.Error(err))
		return nil, ErrInvalidCredentials
	}
	if !ok {
		return nil, ErrInvalidCredentials
	}

	token, expiresAt, err := s.tokens.Issue(user.Email)
	if err != nil {
		s.logger.Error("Failed to issue token", zap.Error(err))
		return nil, err
	}

	return &models.Session{Token: token, ExpiresAt: expiresAt, User: user.Public()}, nil
}

func (s *authService) Resolve(ctx context.Context, token string) (*models.User, error) {
	claims, err := s.verify(ctx, token)
	if err != nil {
		return nil, err
	}

	user, err := s.repo.GetUserByEmail(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		s.logger.Error("Failed to get user by email", zap.Error(err))
		return nil, fmt.Errorf("failed to retrieve user: %w", err)
	}
	return user, nil
}

// verify checks the token and the denylist. A denylist failure is not treated as "not revoked".
func (s *authService) verify(ctx context.Context, token string) (*models.Claims, error) {
	claims, err := s.tokens.Parse(token)
	if err != nil {
		return nil, apperr.Wrap(apperr.ErrAuth, ErrInvalidToken.Msg, err)
	}

	if s.denylist != nil {
		revoked, err := s.denylist.IsRevoked(ctx, claims.ID)
		if err != nil {
			s.logger.Error("Failed to check token revocation", zap.Error(err))
			return nil, fmt.Errorf("failed to check token revocation: %w", err)
		}
		if revoked {
			return nil, ErrInvalidToken
		}
	}
	return claims, nil
}

func (s *authService) UpdateProfile(ctx context.Context, token string, update models.ProfileUpdate) (*models.PublicUser, error) {
	user, err := s.Resolve(ctx, token)
	if err != nil {
		return nil, err
	}

	updated := *user
	if update.Username != nil {
		if username := strings.TrimSpace(*update.Username); username != "" {
			updated.Username = username
		}
	}

	if update.Email != nil {
		if email := normalizeEmail(*update.Email); email != "" && email != user.Email {
			taken, err := s.repo.EmailTakenByOther(ctx, email, user.ID)
			if err != nil {
				s.logger.Error("Failed to check email availability", zap.Error(err))
				return nil, fmt.Errorf("failed to check email: %w", err)
			}
			if taken {
				return nil, ErrEmailInUse
			}
			updated.Email = email
		}
	}

	if update.Password != nil && *update.Password != "" {
		passwordHash, err := s.hasher.Hash(*update.Password)
		if err != nil {
			s.logger.Error("Failed to hash password", zap.Error(err))
			return nil, fmt.Errorf("failed to hash password: %w", err)
		}
		updated.PasswordHash = passwordHash
	}

	if err := s.repo.UpdateUser(ctx, &updated); err != nil {
		switch {
		case errors.Is(err, repository.ErrDuplicateEmail):
			return nil, ErrEmailInUse
		case errors.Is(err, repository.ErrUserNotFound):
			return nil, ErrUserNotFound
		}
		s.logger.Error("Failed to update user", zap.Int64("user_id", user.ID), zap.Error(err))
		return nil, fmt.Errorf("failed to update user: %w", err)
	}

	stored, err := s.repo.GetUserByID(ctx, user.ID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		s.logger.Error("Failed to reload user", zap.Int64("user_id", user.ID), zap.Error(err))
		return nil, fmt.Errorf("failed to reload user: %w", err)
	}

	s.logger.Info("Profile updated", zap.Int64("user_id", user.ID))
	return stored.Public(), nil
}

func (s *authService) Revoke(ctx context.Context, token string) error {
	claims, err := s.verify(ctx, token)
	if err != nil {
		return err
	}
	if s.denylist == nil {
		return nil
	}

	if err := s.denylist.Revoke(ctx, claims.ID, claims.ExpiresAt.Time); err != nil {
		s.logger.Error("Failed to revoke token", zap.Error(err))
		return fmt.Errorf("failed to revoke token: %w", err)
	}
	s.logger.Info("Token revoked", zap.String("jti", claims.ID))
	return nil
}
