package tokenmanager

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/sonht113/recipebook/internal/apperrors"
	"github.com/sonht113/recipebook/internal/models"
)

const (
	defaultAccessTokenTTL  = 15 * time.Minute
	defaultRefreshTokenTTL = 7 * 24 * time.Hour
	defaultSigningMethod   = "HS256"

	// Access token type claim. Anything else is never accepted, so a
	// refresh token can't be replayed as an access token
	accessTokenType = "access"

	// 32 bytes == 256 bits of entropy, hex encoded to 64 chars
	refreshTokenBytesLen = 32
)

type AccessTokenClaims struct {
	jwt.RegisteredClaims
	UserID    uuid.UUID `json:"uid"`
	Email     string    `json:"email"`
	TokenType string    `json:"type"`
}

// Token manager config with sensible defaults
type Config struct {
	// Secret key to sign access token payload
	// Required to be set
	SecretKey string

	// JWT MAC (Message Authentication Code) algorithm
	// If not set then default is used
	Alg string

	// Access and refresh token lifetimes
	// If not set then defaults are used
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// TokenManager signs and verifies access tokens and mints opaque refresh
// tokens. It is a pure codec: it never touches storage.
type TokenManager struct {
	// Secret key to sign access token
	key string

	// JWT MAC (Message Authentication Code) algorithm
	alg jwt.SigningMethod

	// Access and refresh token lifetimes
	accessTTL  time.Duration
	refreshTTL time.Duration
}

func New(cfg Config) (*TokenManager, error) {
	if cfg.SecretKey == "" {
		return nil, errors.New("secret key must not be empty")
	}

	if cfg.Alg == "" {
		cfg.Alg = defaultSigningMethod
	}

	setDefaultDuration := func(field *time.Duration, def time.Duration) {
		if *field == 0 {
			*field = def
		}
	}
	setDefaultDuration(&cfg.AccessTTL, defaultAccessTokenTTL)
	setDefaultDuration(&cfg.RefreshTTL, defaultRefreshTokenTTL)

	return &TokenManager{
		key:        cfg.SecretKey,
		alg:        jwt.GetSigningMethod(cfg.Alg),
		accessTTL:  cfg.AccessTTL,
		refreshTTL: cfg.RefreshTTL,
	}, nil
}

// IssueAccess signs a stateless access token for the user
func (m *TokenManager) IssueAccess(user models.User) (models.IssuedToken, error) {
	now := time.Now().Truncate(time.Second)
	expiresAt := now.Add(m.accessTTL)

	token := jwt.NewWithClaims(
		m.alg,
		AccessTokenClaims{
			RegisteredClaims: jwt.RegisteredClaims{
				ID:        uuid.NewString(),
				IssuedAt:  jwt.NewNumericDate(now),
				ExpiresAt: jwt.NewNumericDate(expiresAt),
			},
			UserID:    user.ID,
			Email:     user.Email,
			TokenType: accessTokenType,
		},
	)

	signed, err := token.SignedString([]byte(m.key))
	if err != nil {
		return models.IssuedToken{}, fmt.Errorf("error while signing access token. Err: %w", err)
	}

	return models.IssuedToken{Value: signed, ExpiresAt: expiresAt}, nil
}

// NewRefresh mints a random refresh token for the user.
// The token carries no claims, it is a capability reference only.
// Caller is responsible for persisting it.
func (m *TokenManager) NewRefresh(user models.User) (models.RefreshToken, error) {
	b := make([]byte, refreshTokenBytesLen)
	_, err := rand.Read(b)
	if err != nil {
		return models.RefreshToken{}, fmt.Errorf("error while generating refresh token. Err: %w", err)
	}

	now := time.Now().Truncate(time.Second)
	return models.RefreshToken{
		Token:     hex.EncodeToString(b),
		UserID:    user.ID,
		CreatedAt: now,
		ExpiresAt: now.Add(m.refreshTTL),
	}, nil
}

// ParseAccess verifies signature, expiry and token type.
// Expired and malformed tokens map to different apperrors sentinels for
// logging, callers must present both identically to the outside.
func (m *TokenManager) ParseAccess(access string) (models.Principal, error) {
	claims := &AccessTokenClaims{}

	_, err := jwt.ParseWithClaims(
		access,
		claims,
		func(t *jwt.Token) (any, error) { return []byte(m.key), nil },
		jwt.WithValidMethods([]string{m.alg.Alg()}),
		jwt.WithExpirationRequired(),
	)

	switch {
	case err == nil && claims.TokenType != accessTokenType:
		return models.Principal{}, fmt.Errorf("unexpected token type %q: %w", claims.TokenType, apperrors.ErrTokenMalformed)
	case errors.Is(err, jwt.ErrTokenExpired):
		return models.Principal{}, fmt.Errorf("%w. Err: %w", apperrors.ErrTokenExpired, err)
	case err != nil:
		return models.Principal{}, fmt.Errorf("%w. Err: %w", apperrors.ErrTokenMalformed, err)
	}

	return models.Principal{UserID: claims.UserID, Email: claims.Email}, nil
}
