package application

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	domainerrors "inviter/contexts/event-graph/domain/errors"
	"inviter/contexts/event-graph/domain/items"
)

func TestGenerateCodeIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	admin, member := newID(), newID()
	group := env.newGroup(t, admin, false)
	env.addMember(t, group.GroupID, member, "Member")

	first, err := env.inviteSvc.GenerateCode(context.Background(), admin, group.GroupID)
	require.NoError(t, err)
	require.Len(t, first.Code, 8)
	require.Equal(t, group.GroupID, first.GroupID)

	second, err := env.inviteSvc.GenerateCode(context.Background(), admin, group.GroupID)
	require.NoError(t, err)
	require.Equal(t, first.Code, second.Code)

	// only admins mint codes
	_, err = env.inviteSvc.GenerateCode(context.Background(), member, group.GroupID)
	require.ErrorIs(t, err, domainerrors.ErrForbidden)
}

func TestPreviewCodeRevealsByVisibility(t *testing.T) {
	env := newTestEnv(t)
	admin := newID()
	private := env.newGroup(t, admin, false)
	public := env.newGroup(t, admin, true)
	privateCode, err := env.inviteSvc.GenerateCode(context.Background(), admin, private.GroupID)
	require.NoError(t, err)
	publicCode, err := env.inviteSvc.GenerateCode(context.Background(), admin, public.GroupID)
	require.NoError(t, err)

	preview, err := env.inviteSvc.PreviewCode(context.Background(), "203.0.113.9", privateCode.Code)
	require.NoError(t, err)
	require.Equal(t, InvitePreview{IsPrivate: true}, preview)

	preview, err = env.inviteSvc.PreviewCode(context.Background(), "203.0.113.9", publicCode.Code)
	require.NoError(t, err)
	require.False(t, preview.IsPrivate)
	require.Equal(t, public.GroupName, preview.GroupName)

	require.Equal(t, []string{
		"invite-preview:203.0.113.9",
		"invite-preview:203.0.113.9",
	}, env.limiter.keys)

	_, err = env.inviteSvc.PreviewCode(context.Background(), "203.0.113.9", "nosuchcd")
	require.ErrorIs(t, err, domainerrors.ErrNotFound)
}

func TestPreviewCodeRateLimited(t *testing.T) {
	env := newTestEnv(t)
	admin := newID()
	group := env.newGroup(t, admin, false)
	code, err := env.inviteSvc.GenerateCode(context.Background(), admin, group.GroupID)
	require.NoError(t, err)

	env.limiter.allowed = false
	_, err = env.inviteSvc.PreviewCode(context.Background(), "203.0.113.9", code.Code)
	require.ErrorIs(t, err, domainerrors.ErrRateLimited)

	// a broken limiter fails open rather than blocking previews
	env.limiter.err = errors.New("redis down")
	_, err = env.inviteSvc.PreviewCode(context.Background(), "203.0.113.9", code.Code)
	require.NoError(t, err)
}

func TestJoinViaCodeIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	admin, joiner := newID(), newID()
	group := env.newGroup(t, admin, false)
	code, err := env.inviteSvc.GenerateCode(context.Background(), admin, group.GroupID)
	require.NoError(t, err)

	membership, err := env.inviteSvc.JoinViaCode(context.Background(), joiner, "Joiner", code.Code)
	require.NoError(t, err)
	require.Equal(t, items.RoleMember, membership.Role)
	require.Equal(t, group.GroupName, membership.GroupName)

	again, err := env.inviteSvc.JoinViaCode(context.Background(), joiner, "Joiner Renamed", code.Code)
	require.NoError(t, err)
	require.Equal(t, membership.UserName, again.UserName)

	// joining never promotes: an admin stays admin
	adminAfter, err := env.inviteSvc.JoinViaCode(context.Background(), admin, "Admin", code.Code)
	require.NoError(t, err)
	require.Equal(t, items.RoleAdmin, adminAfter.Role)
}
