package application

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	domainerrors "inviter/contexts/event-graph/domain/errors"
	"inviter/contexts/event-graph/domain/items"
	"inviter/contexts/event-graph/domain/keys"
	"inviter/contexts/event-graph/ports"
)

func TestIssueAndRotate(t *testing.T) {
	env := newTestEnv(t)
	userID := newID()

	issued, err := env.tokenSvc.Issue(context.Background(), userID, "device-1")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(issued.Token, "v2."))
	require.Equal(t, items.HashSchemeSHA256, issued.Row.HashSchemeVersion)
	// the stored row holds a hash, never the secret
	require.NotContains(t, issued.Token, issued.Row.TokenHash)

	rotated, err := env.tokenSvc.Rotate(context.Background(), issued.Token)
	require.NoError(t, err)
	require.NotEqual(t, issued.Token, rotated.Token)
	require.Equal(t, userID, rotated.Row.UserID)
	require.Equal(t, "device-1", rotated.Row.DeviceID)
	require.Equal(t, issued.Row.TokenHash, rotated.Row.RotatedFrom)

	live, err := env.tokens.ListForUser(context.Background(), userID)
	require.NoError(t, err)
	require.Len(t, live, 1)
	require.Equal(t, rotated.Row.TokenHash, live[0].TokenHash)
}

func TestRotateReplayIsUnauthorized(t *testing.T) {
	env := newTestEnv(t)
	userID := newID()

	issued, err := env.tokenSvc.Issue(context.Background(), userID, "phone")
	require.NoError(t, err)
	_, err = env.tokenSvc.Rotate(context.Background(), issued.Token)
	require.NoError(t, err)

	// the consumed token no longer resolves
	_, err = env.tokenSvc.Rotate(context.Background(), issued.Token)
	require.ErrorIs(t, err, domainerrors.ErrUnauthorized)
}

func TestRotateRaceSignalsReuse(t *testing.T) {
	env := newTestEnv(t)
	userID := newID()

	issued, err := env.tokenSvc.Issue(context.Background(), userID, "phone")
	require.NoError(t, err)
	winner, err := env.tokenSvc.Rotate(context.Background(), issued.Token)
	require.NoError(t, err)

	// the losing side of a rotation race verified the old row before the
	// winner consumed it; its transactional delete then fails, which is the
	// reuse signal
	err = env.tokens.Rotate(context.Background(), issued.Row.TokenHash, items.RefreshToken{
		TokenHash:         "0000000000000000000000000000000000000000000000000000000000000000",
		HashSchemeVersion: items.HashSchemeSHA256,
		UserID:            userID,
		IssuedAt:          env.clock.Now().UnixMilli(),
	})
	require.ErrorIs(t, err, domainerrors.ErrTokenReused)

	// the winner's token is untouched
	_, err = env.tokenSvc.Rotate(context.Background(), winner.Token)
	require.NoError(t, err)
}

func TestRevokeAllClearsEverySession(t *testing.T) {
	env := newTestEnv(t)
	userID := newID()

	first, err := env.tokenSvc.Issue(context.Background(), userID, "phone")
	require.NoError(t, err)
	_, err = env.tokenSvc.Issue(context.Background(), userID, "laptop")
	require.NoError(t, err)

	require.NoError(t, env.tokenSvc.RevokeAll(context.Background(), userID))

	live, err := env.tokens.ListForUser(context.Background(), userID)
	require.NoError(t, err)
	require.Empty(t, live)
	_, err = env.tokenSvc.Rotate(context.Background(), first.Token)
	require.ErrorIs(t, err, domainerrors.ErrUnauthorized)
}

func TestLegacyBcryptTokensStillRotate(t *testing.T) {
	env := newTestEnv(t)
	userID := newID()
	tokenID := newID()
	secret := "legacy-secret-value"
	digest, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.MinCost)
	require.NoError(t, err)

	// a row left behind by the previous scheme: keyed by token id, digest
	// in the hash field
	pk, err := keys.RefreshPK(tokenID)
	require.NoError(t, err)
	userPK, err := keys.UserPK(userID)
	require.NoError(t, err)
	require.NoError(t, env.store.Put(context.Background(), items.Item{
		items.AttrPK:                pk,
		items.AttrSK:                keys.Metadata,
		items.AttrGSI1PK:            userPK,
		items.AttrGSI1SK:            pk,
		items.AttrTokenHash:         string(digest),
		items.AttrHashSchemeVersion: items.HashSchemeBCrypt,
		items.AttrUserID:            userID,
		items.AttrDeviceID:          "old-phone",
	}, ports.IfNotExists()))

	presented := "v1." + tokenID + "." + secret
	rotated, err := env.tokenSvc.Rotate(context.Background(), presented)
	require.NoError(t, err)
	// the successor is a current-scheme token
	require.True(t, strings.HasPrefix(rotated.Token, "v2."))
	require.Equal(t, items.HashSchemeSHA256, rotated.Row.HashSchemeVersion)
	require.Equal(t, "old-phone", rotated.Row.DeviceID)

	// the legacy row was consumed
	_, err = env.tokenSvc.Rotate(context.Background(), presented)
	require.ErrorIs(t, err, domainerrors.ErrUnauthorized)

	// a wrong secret against a live legacy row is unauthorized too
	require.NoError(t, env.store.Put(context.Background(), items.Item{
		items.AttrPK:                pk,
		items.AttrSK:                keys.Metadata,
		items.AttrGSI1PK:            userPK,
		items.AttrGSI1SK:            pk,
		items.AttrTokenHash:         string(digest),
		items.AttrHashSchemeVersion: items.HashSchemeBCrypt,
		items.AttrUserID:            userID,
	}, ports.NoCondition()))
	_, err = env.tokenSvc.Rotate(context.Background(), "v1."+tokenID+".wrong")
	require.ErrorIs(t, err, domainerrors.ErrUnauthorized)
}

func TestMalformedTokensAreUnauthorized(t *testing.T) {
	env := newTestEnv(t)
	for _, presented := range []string{"", "v2.doesnotexist", "v1.onlyonepart", "v3.something", "plain"} {
		_, err := env.tokenSvc.Rotate(context.Background(), presented)
		require.ErrorIs(t, err, domainerrors.ErrUnauthorized, "token %q", presented)
	}
}
