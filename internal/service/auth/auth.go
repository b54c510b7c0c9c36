package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sonht113/recipebook/internal/apperrors"
	"github.com/sonht113/recipebook/internal/models"
	"github.com/sonht113/recipebook/internal/repository"
	"github.com/sonht113/recipebook/internal/service/auth/tokenmanager"
)

const bearerScheme = "Bearer"

type Config struct {
	// Hasher to use during registration or login
	// BcryptHasher is used if not set
	Hasher PasswordHasher
}

// AuthService orchestrates login, registration, refresh rotation, logout
// and password change. Session state lives entirely in the refresh token
// storage, nothing is cached in process.
type AuthService struct {
	// Manager to sign access tokens and mint refresh tokens
	tokens *tokenmanager.TokenManager

	// hasher to hash or compare user passwords
	hasher PasswordHasher

	// Compared against on login for unknown emails so the timing matches
	// the wrong-password path
	dummyHash string

	storage repository.Storage
}

func NewService(cfg Config, tokens *tokenmanager.TokenManager, storage repository.Storage) (*AuthService, error) {
	hasher := cfg.Hasher
	if hasher == nil {
		hasher = BcryptHasher{}
	}

	if tokens == nil {
		return nil, errors.New("token manager must not be nil")
	}
	if storage == nil {
		return nil, errors.New("storage must not be nil")
	}

	dummyHash, err := hasher.Hash(uuid.NewString())
	if err != nil {
		return nil, fmt.Errorf("hasher is not usable. Err: %w", err)
	}

	return &AuthService{
		tokens:    tokens,
		hasher:    hasher,
		dummyHash: dummyHash,
		storage:   storage,
	}, nil
}

func (s *AuthService) Register(ctx context.Context, email string, name string, password string) (models.User, models.TokenPair, error) {
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return models.User{}, models.TokenPair{}, fmt.Errorf("can't use this as password, error=%w", err)
	}

	user, err := s.storage.User().CreateUser(ctx, email, name, hash)
	if err != nil {
		return models.User{}, models.TokenPair{}, err
	}

	pair, err := s.issuePair(ctx, s.storage, user)
	if err != nil {
		return models.User{}, models.TokenPair{}, err
	}

	return user, pair, nil
}

// Login verifies credentials and issues a fresh token pair.
// Unknown email and wrong password both return apperrors.ErrInvalidCredentials.
func (s *AuthService) Login(ctx context.Context, email string, password string) (models.User, models.TokenPair, error) {
	user, err := s.storage.User().GetUserByEmail(ctx, email)

	switch {
	case errors.Is(err, apperrors.ErrUserNotFound):
		// Burn the same bcrypt time as the wrong-password path
		_ = s.hasher.Compare(s.dummyHash, password)
		return models.User{}, models.TokenPair{}, apperrors.ErrInvalidCredentials
	case err != nil:
		return models.User{}, models.TokenPair{}, err
	}

	if err := s.hasher.Compare(user.HashedPassword, password); err != nil {
		return models.User{}, models.TokenPair{}, apperrors.ErrInvalidCredentials
	}

	pair, err := s.issuePair(ctx, s.storage, user)
	if err != nil {
		return models.User{}, models.TokenPair{}, err
	}

	return user, pair, nil
}

// Refresh rotates the refresh token: take the old one, issue and store a new
// pair, all inside one transaction. Any failure terminates the session, the
// caller must drop its local state and log in again.
func (s *AuthService) Refresh(ctx context.Context, refresh string) (models.User, models.TokenPair, error) {
	var user models.User
	var pair models.TokenPair

	err := s.storage.InTx(ctx, func(tx repository.Storage) error {
		token, err := tx.Refresh().Take(ctx, refresh)
		if err != nil {
			return err
		}

		if token.ExpiresAt.Before(time.Now()) {
			return fmt.Errorf("refresh rejected: %w", apperrors.ErrRefreshTokenExpired)
		}

		user, err = tx.User().GetUserByID(ctx, token.UserID)
		if err != nil {
			return err
		}

		pair, err = s.issuePair(ctx, tx, user)
		return err
	})

	// The tx above rolls back on expiry, restoring the row.
	// Delete it for real: expired tokens are swept on first failed use.
	if errors.Is(err, apperrors.ErrRefreshTokenExpired) {
		_ = s.storage.Refresh().Delete(ctx, refresh)
	}

	if err != nil {
		return models.User{}, models.TokenPair{}, err
	}

	return user, pair, nil
}

// Logout revokes the given refresh token, or every token of the user when
// refresh is empty (logout everywhere). Revoking nothing is not an error.
func (s *AuthService) Logout(ctx context.Context, userID uuid.UUID, refresh string) error {
	if refresh != "" {
		return s.storage.Refresh().Delete(ctx, refresh)
	}

	return s.storage.Refresh().DeleteForUser(ctx, userID)
}

// ChangePassword replaces the password hash and revokes every refresh token
// of the user. All devices have to authenticate again.
func (s *AuthService) ChangePassword(ctx context.Context, userID uuid.UUID, current string, newPassword string) error {
	user, err := s.storage.User().GetUserByID(ctx, userID)
	if err != nil {
		return err
	}

	if err := s.hasher.Compare(user.HashedPassword, current); err != nil {
		return apperrors.ErrInvalidCredentials
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("can't use this as password, error=%w", err)
	}

	return s.storage.InTx(ctx, func(tx repository.Storage) error {
		if err := tx.User().UpdatePassword(ctx, userID, hash); err != nil {
			return err
		}
		return tx.Refresh().DeleteForUser(ctx, userID)
	})
}

// Authenticate verifies the Authorization header value and returns the
// principal encoded in the access token. Pure computation, safe on every
// request: the token is never looked up in storage.
func (s *AuthService) Authenticate(ctx context.Context, authorization string) (models.Principal, error) {
	scheme, token, found := strings.Cut(authorization, " ")
	if !found || scheme != bearerScheme || token == "" {
		return models.Principal{}, fmt.Errorf("unauthorized: %w", apperrors.ErrTokenMissing)
	}

	principal, err := s.tokens.ParseAccess(token)
	if err != nil {
		// Keep the expired/malformed distinction for logs, present one
		// generic signal to the caller
		return models.Principal{}, fmt.Errorf("unauthorized: %w", errors.Join(apperrors.ErrTokenInvalid, err))
	}

	return principal, nil
}

// GetUser loads the full user record for an authenticated principal
func (s *AuthService) GetUser(ctx context.Context, userID uuid.UUID) (models.User, error) {
	return s.storage.User().GetUserByID(ctx, userID)
}

func (s *AuthService) issuePair(ctx context.Context, store repository.Storage, user models.User) (models.TokenPair, error) {
	access, err := s.tokens.IssueAccess(user)
	if err != nil {
		return models.TokenPair{}, err
	}

	refresh, err := s.tokens.NewRefresh(user)
	if err != nil {
		return models.TokenPair{}, err
	}

	saved, err := store.Refresh().Save(ctx, refresh)
	if err != nil {
		return models.TokenPair{}, fmt.Errorf("error while saving refresh token. Err: %w", err)
	}

	return models.TokenPair{
		Access:  access,
		Refresh: models.IssuedToken{Value: saved.Token, ExpiresAt: saved.ExpiresAt},
	}, nil
}
