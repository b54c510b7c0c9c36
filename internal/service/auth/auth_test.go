package auth

import (
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sonht113/recipebook/internal/apperrors"
	"github.com/sonht113/recipebook/internal/repository"
	"github.com/sonht113/recipebook/internal/repository/postgres"
	"github.com/sonht113/recipebook/internal/service/auth/tokenmanager"
	"github.com/sonht113/recipebook/internal/testutil"
)

func Test_AuthService(t *testing.T) {
	t.Parallel()

	pg := testutil.StartPostgresContainer(t)
	t.Cleanup(pg.Terminate)

	// Begin new db transaction and create new AuthService over it
	// Rollback transaction when test stops
	withTx := func(dbpool *pgxpool.Pool, accessTTL time.Duration, refreshTTL time.Duration, t *testing.T, fn func(s *AuthService, storage repository.Storage)) {
		testutil.WithTx(dbpool, t, func(tx pgx.Tx) {
			storage := postgres.NewStorage(tx)

			tokenManager, err := tokenmanager.New(tokenmanager.Config{
				SecretKey:  "test-secret-key",
				AccessTTL:  accessTTL,
				RefreshTTL: refreshTTL,
			})
			require.NoError(t, err, "token manager should be created without errors")

			s, err := NewService(Config{}, tokenManager, storage)
			require.NoError(t, err, "auth service couldn't be started")

			fn(s, storage)
		})
	}

	t.Run("new service defaults", func(t *testing.T) {
		tokenManager, err := tokenmanager.New(tokenmanager.Config{SecretKey: "secret"})
		require.NoError(t, err)

		s, err := NewService(Config{}, tokenManager, postgres.NewStorage(pg.Pool))
		require.NoError(t, err, "auth service should be created without errors")

		require.Equal(t, BcryptHasher{}, s.hasher, "default hasher should be set to BcryptHasher")
		require.NotEmpty(t, s.dummyHash, "dummy hash for unknown-email logins should be prepared")
	})

	t.Run("Register", func(t *testing.T) {
		t.Run("new user ok", func(t *testing.T) {
			withTx(pg.Pool, 15*time.Minute, 24*time.Hour, t, func(s *AuthService, _ repository.Storage) {
				user, pair, err := s.Register(t.Context(), "nk@example.com", "nk", "pwd")

				require.NoError(t, err, "registering new user should be ok")
				require.Equal(t, "nk@example.com", user.Email)
				require.Equal(t, "nk", user.Name)
				require.NotEmpty(t, pair.Access.Value, "access token should not be empty")
				require.NotEmpty(t, pair.Refresh.Value, "refresh token should not be empty")
			})
		})

		t.Run("fail if email taken", func(t *testing.T) {
			withTx(pg.Pool, 15*time.Minute, 24*time.Hour, t, func(s *AuthService, _ repository.Storage) {
				_, _, err := s.Register(t.Context(), "nk@example.com", "nk", "pwd")
				require.NoError(t, err, "no error should happen if user not exists")

				_, _, err = s.Register(t.Context(), "nk@example.com", "other", "other-pwd")

				require.Error(t, err)
				require.ErrorIs(t, err, apperrors.ErrUserAlreadyExists)
			})
		})
	})

	t.Run("Login", func(t *testing.T) {
		t.Run("existing user ok", func(t *testing.T) {
			withTx(pg.Pool, 15*time.Minute, 24*time.Hour, t, func(s *AuthService, _ repository.Storage) {
				_, _, err := s.Register(t.Context(), "nk@example.com", "nk", "pwd")
				require.NoError(t, err)

				user, pair, err := s.Login(t.Context(), "nk@example.com", "pwd")

				require.NoError(t, err)
				require.Equal(t, "nk@example.com", user.Email)
				require.NotEmpty(t, pair.Access.Value, "access token should not be empty")
				require.NotEmpty(t, pair.Refresh.Value, "refresh token should not be empty")
			})
		})

		tests := []struct {
			name     string
			email    string
			password string
		}{
			{
				name:     "login fail if wrong password",
				email:    "nk@example.com",
				password: "wrong",
			},
			{
				name:     "login fail if user not exists",
				email:    "nobody@example.com",
				password: "password",
			},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				withTx(pg.Pool, 15*time.Minute, 24*time.Hour, t, func(s *AuthService, _ repository.Storage) {
					_, _, err := s.Register(t.Context(), "nk@example.com", "nk", "pwd")
					require.NoError(t, err)

					_, _, err = s.Login(t.Context(), tt.email, tt.password)

					// Same rejection for unknown email and wrong password
					require.Error(t, err)
					require.ErrorIs(t, err, apperrors.ErrInvalidCredentials)
				})
			})
		}
	})

	t.Run("Refresh", func(t *testing.T) {
		t.Run("refresh once ok", func(t *testing.T) {
			withTx(pg.Pool, 15*time.Minute, 24*time.Hour, t, func(s *AuthService, _ repository.Storage) {
				_, initialPair, err := s.Register(t.Context(), "nk@example.com", "nk", "pwd")
				require.NoError(t, err)

				user, newPair, err := s.Refresh(t.Context(), initialPair.Refresh.Value)

				require.NoError(t, err)
				require.Equal(t, "nk@example.com", user.Email)
				require.NotEqual(t, initialPair.Access.Value, newPair.Access.Value, "new access token should be different")
				require.NotEqual(t, initialPair.Refresh.Value, newPair.Refresh.Value, "new refresh token should be different")
			})
		})

		t.Run("fail if used once", func(t *testing.T) {
			withTx(pg.Pool, 15*time.Minute, 24*time.Hour, t, func(s *AuthService, _ repository.Storage) {
				_, initialPair, err := s.Register(t.Context(), "nk@example.com", "nk", "pwd")
				require.NoError(t, err)

				// Use refresh token once - should work
				_, newPair, err := s.Refresh(t.Context(), initialPair.Refresh.Value)
				require.NoError(t, err)

				// Try to use same refresh token again - should fail
				_, _, err = s.Refresh(t.Context(), initialPair.Refresh.Value)
				require.Error(t, err)
				require.ErrorIs(t, err, apperrors.ErrRefreshTokenNotFound, "rotated token must look revoked-or-unknown")

				// The pair from the first rotation still works
				_, _, err = s.Refresh(t.Context(), newPair.Refresh.Value)
				require.NoError(t, err, "token from first rotation must still be valid")
			})
		})

		t.Run("fail if expired and row is cleaned up", func(t *testing.T) {
			withTx(pg.Pool, 15*time.Minute, -time.Second, t, func(s *AuthService, storage repository.Storage) {
				_, initialPair, err := s.Register(t.Context(), "nk@example.com", "nk", "pwd")
				require.NoError(t, err)

				_, _, err = s.Refresh(t.Context(), initialPair.Refresh.Value)
				require.Error(t, err)
				require.ErrorIs(t, err, apperrors.ErrRefreshTokenExpired, "should return error if token expired")

				// Failed validation lazily deletes the expired row
				_, err = storage.Refresh().Take(t.Context(), initialPair.Refresh.Value)
				require.ErrorIs(t, err, apperrors.ErrRefreshTokenNotFound, "expired token should be deleted on first failed use")
			})
		})
	})

	t.Run("Logout", func(t *testing.T) {
		t.Run("single device", func(t *testing.T) {
			withTx(pg.Pool, 15*time.Minute, 24*time.Hour, t, func(s *AuthService, _ repository.Storage) {
				user, firstPair, err := s.Register(t.Context(), "nk@example.com", "nk", "pwd")
				require.NoError(t, err)
				_, secondPair, err := s.Login(t.Context(), "nk@example.com", "pwd")
				require.NoError(t, err)

				err = s.Logout(t.Context(), user.ID, firstPair.Refresh.Value)
				require.NoError(t, err)

				_, _, err = s.Refresh(t.Context(), firstPair.Refresh.Value)
				require.ErrorIs(t, err, apperrors.ErrRefreshTokenNotFound, "revoked token must be rejected")

				_, _, err = s.Refresh(t.Context(), secondPair.Refresh.Value)
				require.NoError(t, err, "other sessions must stay valid")
			})
		})

		t.Run("everywhere", func(t *testing.T) {
			withTx(pg.Pool, 15*time.Minute, 24*time.Hour, t, func(s *AuthService, _ repository.Storage) {
				user, firstPair, err := s.Register(t.Context(), "nk@example.com", "nk", "pwd")
				require.NoError(t, err)
				_, secondPair, err := s.Login(t.Context(), "nk@example.com", "pwd")
				require.NoError(t, err)

				// Another user should not be affected
				_, otherPair, err := s.Register(t.Context(), "other@example.com", "other", "pwd")
				require.NoError(t, err)

				err = s.Logout(t.Context(), user.ID, "")
				require.NoError(t, err)

				_, _, err = s.Refresh(t.Context(), firstPair.Refresh.Value)
				require.ErrorIs(t, err, apperrors.ErrRefreshTokenNotFound)
				_, _, err = s.Refresh(t.Context(), secondPair.Refresh.Value)
				require.ErrorIs(t, err, apperrors.ErrRefreshTokenNotFound)

				_, _, err = s.Refresh(t.Context(), otherPair.Refresh.Value)
				require.NoError(t, err, "tokens of other users must stay valid")
			})
		})

		t.Run("nothing to revoke is ok", func(t *testing.T) {
			withTx(pg.Pool, 15*time.Minute, 24*time.Hour, t, func(s *AuthService, _ repository.Storage) {
				user, _, err := s.Register(t.Context(), "nk@example.com", "nk", "pwd")
				require.NoError(t, err)

				err = s.Logout(t.Context(), user.ID, "no-such-token")
				require.NoError(t, err, "logout never fails the caller")
			})
		})
	})

	t.Run("ChangePassword", func(t *testing.T) {
		t.Run("rotates hash and revokes sessions", func(t *testing.T) {
			withTx(pg.Pool, 15*time.Minute, 24*time.Hour, t, func(s *AuthService, _ repository.Storage) {
				user, pair, err := s.Register(t.Context(), "nk@example.com", "nk", "old-password")
				require.NoError(t, err)

				err = s.ChangePassword(t.Context(), user.ID, "old-password", "new-password")
				require.NoError(t, err)

				// Every pre-change session is gone
				_, _, err = s.Refresh(t.Context(), pair.Refresh.Value)
				require.ErrorIs(t, err, apperrors.ErrRefreshTokenNotFound, "old sessions must be revoked")

				// Old password no longer works, new one does
				_, _, err = s.Login(t.Context(), "nk@example.com", "old-password")
				require.ErrorIs(t, err, apperrors.ErrInvalidCredentials)
				_, _, err = s.Login(t.Context(), "nk@example.com", "new-password")
				require.NoError(t, err)
			})
		})

		t.Run("fail if current password wrong", func(t *testing.T) {
			withTx(pg.Pool, 15*time.Minute, 24*time.Hour, t, func(s *AuthService, _ repository.Storage) {
				user, pair, err := s.Register(t.Context(), "nk@example.com", "nk", "old-password")
				require.NoError(t, err)

				err = s.ChangePassword(t.Context(), user.ID, "wrong", "new-password")
				require.ErrorIs(t, err, apperrors.ErrInvalidCredentials)

				// Sessions stay intact on rejected change
				_, _, err = s.Refresh(t.Context(), pair.Refresh.Value)
				require.NoError(t, err, "rejected password change must not revoke sessions")
			})
		})
	})

	t.Run("Authenticate", func(t *testing.T) {
		t.Run("valid bearer token", func(t *testing.T) {
			withTx(pg.Pool, 15*time.Minute, 24*time.Hour, t, func(s *AuthService, _ repository.Storage) {
				user, pair, err := s.Register(t.Context(), "nk@example.com", "nk", "pwd")
				require.NoError(t, err)

				principal, err := s.Authenticate(t.Context(), "Bearer "+pair.Access.Value)

				require.NoError(t, err)
				require.Equal(t, user.ID, principal.UserID)
				require.Equal(t, user.Email, principal.Email)
			})
		})

		t.Run("missing or malformed header", func(t *testing.T) {
			withTx(pg.Pool, 15*time.Minute, 24*time.Hour, t, func(s *AuthService, _ repository.Storage) {
				_, pair, err := s.Register(t.Context(), "nk@example.com", "nk", "pwd")
				require.NoError(t, err)

				for _, header := range []string{"", "Bearer", "Bearer ", "Token " + pair.Access.Value} {
					_, err := s.Authenticate(t.Context(), header)
					require.ErrorIs(t, err, apperrors.ErrTokenMissing, "header %q should be treated as no token", header)
				}
			})
		})

		t.Run("expired token", func(t *testing.T) {
			withTx(pg.Pool, -time.Minute, 24*time.Hour, t, func(s *AuthService, _ repository.Storage) {
				_, pair, err := s.Register(t.Context(), "nk@example.com", "nk", "pwd")
				require.NoError(t, err)

				_, err = s.Authenticate(t.Context(), "Bearer "+pair.Access.Value)

				require.ErrorIs(t, err, apperrors.ErrTokenInvalid, "caller sees the generic signal")
				require.ErrorIs(t, err, apperrors.ErrTokenExpired, "logs can still tell it was expiry")
			})
		})

		t.Run("refresh token is not an access token", func(t *testing.T) {
			withTx(pg.Pool, 15*time.Minute, 24*time.Hour, t, func(s *AuthService, _ repository.Storage) {
				_, pair, err := s.Register(t.Context(), "nk@example.com", "nk", "pwd")
				require.NoError(t, err)

				_, err = s.Authenticate(t.Context(), "Bearer "+pair.Refresh.Value)

				require.ErrorIs(t, err, apperrors.ErrTokenInvalid, "opaque refresh string must never authenticate a request")
			})
		})
	})

	// The register/login/refresh walk from the product scenario
	t.Run("alice end to end", func(t *testing.T) {
		withTx(pg.Pool, 15*time.Minute, 24*time.Hour, t, func(s *AuthService, _ repository.Storage) {
			_, registerPair, err := s.Register(t.Context(), "alice@example.com", "alice", "hunter2x")
			require.NoError(t, err)

			_, _, err = s.Login(t.Context(), "alice@example.com", "wrong")
			require.ErrorIs(t, err, apperrors.ErrInvalidCredentials)

			_, loginPair, err := s.Login(t.Context(), "alice@example.com", "hunter2x")
			require.NoError(t, err)
			assert.NotEqual(t, registerPair.Refresh.Value, loginPair.Refresh.Value, "every login issues a fresh refresh token")

			// Registration token wasn't rotated by the login, so it still works once
			_, _, err = s.Refresh(t.Context(), registerPair.Refresh.Value)
			require.NoError(t, err)
			_, _, err = s.Refresh(t.Context(), registerPair.Refresh.Value)
			require.ErrorIs(t, err, apperrors.ErrRefreshTokenNotFound)
		})
	})
}
