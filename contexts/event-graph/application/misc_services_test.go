package application

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	domainerrors "inviter/contexts/event-graph/domain/errors"
	"inviter/contexts/event-graph/repositories"
)

func (e *testEnv) ideaSvc() IdeaListService {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return IdeaListService{
		Ideas:  &repositories.IdeaListRepository{Store: e.store, Logger: logger},
		Groups: e.groups,
		Clock:  e.clock,
		IDs:    uuidGen{},
		Logger: logger,
	}
}

func (e *testEnv) placeSvc() PlaceService {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return PlaceService{
		Places: &repositories.PlaceRepository{Store: e.store, Logger: logger},
		Groups: e.groups,
		IDs:    uuidGen{},
		Logger: logger,
	}
}

func (e *testEnv) deviceSvc() DeviceService {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return DeviceService{
		Devices: &repositories.DeviceRepository{Store: e.store, Logger: logger},
		Clock:   e.clock,
		Logger:  logger,
	}
}

func TestIdeaListLifecycle(t *testing.T) {
	env := newTestEnv(t)
	svc := env.ideaSvc()
	admin, stranger := newID(), newID()
	group := env.newGroup(t, admin, false)
	ctx := context.Background()

	list, err := svc.CreateList(ctx, admin, group.GroupID, "Summer ideas")
	require.NoError(t, err)
	_, err = svc.CreateList(ctx, stranger, group.GroupID, "Not a member")
	require.ErrorIs(t, err, domainerrors.ErrForbidden)

	first, err := svc.AddIdea(ctx, admin, group.GroupID, list.ListID, "Kayaking")
	require.NoError(t, err)
	second, err := svc.AddIdea(ctx, admin, group.GroupID, list.ListID, "Bouldering")
	require.NoError(t, err)
	// positions are appended sparsely
	require.Equal(t, 0, first.Position)
	require.Equal(t, 1, second.Position)

	require.NoError(t, svc.ReorderIdea(ctx, admin, group.GroupID, list.ListID, second.IdeaID, 0))
	_, ideas, err := svc.GetList(ctx, admin, group.GroupID, list.ListID)
	require.NoError(t, err)
	require.Len(t, ideas, 2)

	require.NoError(t, svc.DeleteIdea(ctx, admin, group.GroupID, list.ListID, first.IdeaID))
	require.NoError(t, svc.DeleteList(ctx, admin, group.GroupID, list.ListID))
	lists, err := svc.ListLists(ctx, admin, group.GroupID)
	require.NoError(t, err)
	require.Empty(t, lists)
}

func TestPlacesScopeToOwner(t *testing.T) {
	env := newTestEnv(t)
	svc := env.placeSvc()
	admin, stranger := newID(), newID()
	group := env.newGroup(t, admin, false)
	ctx := context.Background()

	personal, err := svc.SavePlace(ctx, SavePlaceInput{
		UserID: admin, Name: "Home base", Address: "12 Elm St",
	})
	require.NoError(t, err)
	shared, err := svc.SavePlace(ctx, SavePlaceInput{
		UserID: admin, GroupID: group.GroupID, Name: "Usual bar",
	})
	require.NoError(t, err)
	require.NotEqual(t, personal.OwnerPK, shared.OwnerPK)

	_, err = svc.SavePlace(ctx, SavePlaceInput{
		UserID: stranger, GroupID: group.GroupID, Name: "Crash the group",
	})
	require.ErrorIs(t, err, domainerrors.ErrForbidden)

	mine, err := svc.ListPlaces(ctx, admin, "")
	require.NoError(t, err)
	require.Len(t, mine, 1)
	require.Equal(t, "Home base", mine[0].Name)

	ours, err := svc.ListPlaces(ctx, admin, group.GroupID)
	require.NoError(t, err)
	require.Len(t, ours, 1)

	require.NoError(t, svc.DeletePlace(ctx, admin, group.GroupID, shared.PlaceID))
	ours, err = svc.ListPlaces(ctx, admin, group.GroupID)
	require.NoError(t, err)
	require.Empty(t, ours)
}

func TestDeviceRegistrationOwnership(t *testing.T) {
	env := newTestEnv(t)
	svc := env.deviceSvc()
	owner, other := newID(), newID()
	ctx := context.Background()

	device, err := svc.RegisterDevice(ctx, owner, "push-token-1", "ios")
	require.NoError(t, err)
	require.Equal(t, owner, device.UserID)

	_, err = svc.RegisterDevice(ctx, owner, "  ", "ios")
	require.True(t, domainerrors.IsInvalid(err))

	devices, err := svc.ListDevices(ctx, owner)
	require.NoError(t, err)
	require.Len(t, devices, 1)

	// another user cannot unregister someone else's device
	require.ErrorIs(t, svc.UnregisterDevice(ctx, other, "push-token-1"), domainerrors.ErrForbidden)
	require.NoError(t, svc.UnregisterDevice(ctx, owner, "push-token-1"))
	devices, err = svc.ListDevices(ctx, owner)
	require.NoError(t, err)
	require.Empty(t, devices)
}
