package application

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log/slog"
	"strings"

	"golang.org/x/crypto/bcrypt"

	domainerrors "inviter/contexts/event-graph/domain/errors"
	"inviter/contexts/event-graph/domain/items"
	"inviter/contexts/event-graph/ports"
	"inviter/contexts/event-graph/repositories"
)

// TokenService issues and rotates opaque refresh tokens. Current tokens are
// looked up by SHA-256 of their secret; rows left behind by the previous
// scheme hold a bcrypt digest under a token id and verify through the slow
// path until they rotate out.
type TokenService struct {
	Tokens *repositories.TokenRepository
	Clock  ports.Clock
	IDs    ports.IDGenerator
	Logger *slog.Logger
}

const (
	tokenPrefixCurrent = "v2."
	tokenPrefixLegacy  = "v1."
	tokenSecretBytes   = 32
)

// IssuedToken pairs the opaque value handed to the client with its stored
// row. The opaque value is never persisted.
type IssuedToken struct {
	Token string
	Row   items.RefreshToken
}

func (s TokenService) Issue(ctx context.Context, userID, deviceID string) (IssuedToken, error) {
	secret, err := randomSecret()
	if err != nil {
		return IssuedToken{}, err
	}
	row := items.RefreshToken{
		TokenHash:         hashSecret(secret),
		HashSchemeVersion: items.HashSchemeSHA256,
		UserID:            userID,
		DeviceID:          deviceID,
		IssuedAt:          s.Clock.Now().UnixMilli(),
	}
	if err := s.Tokens.Put(ctx, row); err != nil {
		return IssuedToken{}, err
	}
	return IssuedToken{Token: tokenPrefixCurrent + secret, Row: row}, nil
}

// Rotate verifies the presented token and replaces it with a successor in
// one transaction. Presenting an already-rotated token is the reuse signal:
// the whole family is revoked and ErrTokenReused surfaces to force a fresh
// login.
func (s TokenService) Rotate(ctx context.Context, presented string) (IssuedToken, error) {
	lookupKey, row, err := s.verify(ctx, presented)
	if err != nil {
		return IssuedToken{}, err
	}
	secret, err := randomSecret()
	if err != nil {
		return IssuedToken{}, err
	}
	next := items.RefreshToken{
		TokenHash:         hashSecret(secret),
		HashSchemeVersion: items.HashSchemeSHA256,
		UserID:            row.UserID,
		DeviceID:          row.DeviceID,
		IssuedAt:          s.Clock.Now().UnixMilli(),
		RotatedFrom:       lookupKey,
	}
	err = s.Tokens.Rotate(ctx, lookupKey, next)
	if errors.Is(err, domainerrors.ErrTokenReused) {
		serviceLogger(s.Logger, "token_reuse_detected").Warn("refresh token reuse, revoking family",
			"user_id", row.UserID)
		if revokeErr := s.Tokens.RevokeAllForUser(ctx, row.UserID); revokeErr != nil {
			return IssuedToken{}, revokeErr
		}
		return IssuedToken{}, domainerrors.ErrTokenReused
	}
	if err != nil {
		return IssuedToken{}, err
	}
	return IssuedToken{Token: tokenPrefixCurrent + secret, Row: next}, nil
}

// Revoke invalidates one token (logout of one session).
func (s TokenService) Revoke(ctx context.Context, presented string) error {
	lookupKey, _, err := s.verify(ctx, presented)
	if err != nil {
		return err
	}
	return s.Tokens.Delete(ctx, lookupKey)
}

// RevokeAll invalidates every session of one user.
func (s TokenService) RevokeAll(ctx context.Context, userID string) error {
	return s.Tokens.RevokeAllForUser(ctx, userID)
}

// verify resolves a presented token to its stored row, returning the store
// lookup key alongside. Unknown and malformed tokens are both unauthorized;
// the caller cannot probe which.
func (s TokenService) verify(ctx context.Context, presented string) (string, items.RefreshToken, error) {
	switch {
	case strings.HasPrefix(presented, tokenPrefixCurrent):
		secret := strings.TrimPrefix(presented, tokenPrefixCurrent)
		lookupKey := hashSecret(secret)
		row, err := s.Tokens.GetByHash(ctx, lookupKey)
		if errors.Is(err, domainerrors.ErrNotFound) {
			return "", items.RefreshToken{}, domainerrors.ErrUnauthorized
		}
		if err != nil {
			return "", items.RefreshToken{}, err
		}
		return lookupKey, row, nil
	case strings.HasPrefix(presented, tokenPrefixLegacy):
		rest := strings.TrimPrefix(presented, tokenPrefixLegacy)
		parts := strings.SplitN(rest, ".", 2)
		if len(parts) != 2 {
			return "", items.RefreshToken{}, domainerrors.ErrUnauthorized
		}
		tokenID, secret := parts[0], parts[1]
		row, err := s.Tokens.GetByHash(ctx, tokenID)
		if errors.Is(err, domainerrors.ErrNotFound) {
			return "", items.RefreshToken{}, domainerrors.ErrUnauthorized
		}
		if err != nil {
			return "", items.RefreshToken{}, err
		}
		if row.HashSchemeVersion != items.HashSchemeBCrypt {
			return "", items.RefreshToken{}, domainerrors.ErrUnauthorized
		}
		if bcrypt.CompareHashAndPassword([]byte(row.TokenHash), []byte(secret)) != nil {
			return "", items.RefreshToken{}, domainerrors.ErrUnauthorized
		}
		return tokenID, row, nil
	default:
		return "", items.RefreshToken{}, domainerrors.ErrUnauthorized
	}
}

func randomSecret() (string, error) {
	buf := make([]byte, tokenSecretBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", domainerrors.ErrInternal
	}
	return hex.EncodeToString(buf), nil
}

func hashSecret(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}
