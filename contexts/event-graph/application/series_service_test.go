package application

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	domainerrors "inviter/contexts/event-graph/domain/errors"
	"inviter/contexts/event-graph/domain/items"
)

func (e *testEnv) newSeriesFixture(t *testing.T) (admin string, groupID string, existing items.HangoutMetadata) {
	t.Helper()
	admin = newID()
	group := e.newGroup(t, admin, false)
	existing = e.newHangout(t, CreateHangoutInput{
		UserID: admin, Title: "Game night 1", Time: exactTime("2026-09-04T19:00:00Z"),
		AssociatedGroups: []string{group.GroupID},
	})
	return admin, group.GroupID, existing
}

func nextOccurrence(groupID string) CreateHangoutInput {
	return CreateHangoutInput{
		Title: "Game night 2", Time: exactTime("2026-09-11T19:00:00Z"),
		AssociatedGroups: []string{groupID},
	}
}

func TestConvertToSeriesCreatesNextOccurrence(t *testing.T) {
	env := newTestEnv(t)
	admin, groupID, existing := env.newSeriesFixture(t)
	ctx := context.Background()

	series, created, err := env.seriesSvc.ConvertToSeries(ctx, admin, "Game nights",
		existing.HangoutID, nextOccurrence(groupID))
	require.NoError(t, err)
	require.Equal(t, []string{groupID}, series.GroupIDs)
	require.Equal(t, []string{existing.HangoutID, created.HangoutID}, series.MemberHangoutIDs)

	// the series inherits the earliest member start
	require.Equal(t, existing.StartTimestamp, series.StartTimestamp)

	promoted, err := env.hangouts.GetMetadata(ctx, existing.HangoutID)
	require.NoError(t, err)
	require.Equal(t, series.SeriesID, promoted.SeriesID)

	// the new member is born stamped, hosted by the converter
	member, err := env.hangouts.GetMetadata(ctx, created.HangoutID)
	require.NoError(t, err)
	require.Equal(t, series.SeriesID, member.SeriesID)
	require.Equal(t, []string{admin}, member.Hosts)

	pointers, err := env.groups.ListHangoutPointers(ctx, groupID)
	require.NoError(t, err)
	require.Len(t, pointers, 2)
	for _, pointer := range pointers {
		require.Equal(t, series.SeriesID, pointer.SeriesID)
	}

	stored, err := env.seriesSvc.GetSeries(ctx, series.SeriesID)
	require.NoError(t, err)
	require.Equal(t, "Game nights", stored.SeriesTitle)
}

func TestConvertToSeriesValidation(t *testing.T) {
	env := newTestEnv(t)
	admin, groupID, existing := env.newSeriesFixture(t)
	ctx := context.Background()

	_, _, err := env.seriesSvc.ConvertToSeries(ctx, admin, "  ",
		existing.HangoutID, nextOccurrence(groupID))
	require.True(t, domainerrors.IsInvalid(err))
	_, _, err = env.seriesSvc.ConvertToSeries(ctx, newID(), "Not yours",
		existing.HangoutID, nextOccurrence(groupID))
	require.ErrorIs(t, err, domainerrors.ErrForbidden)

	// a hangout already in a series cannot seed another
	_, _, err = env.seriesSvc.ConvertToSeries(ctx, admin, "Game nights",
		existing.HangoutID, nextOccurrence(groupID))
	require.NoError(t, err)
	_, _, err = env.seriesSvc.ConvertToSeries(ctx, admin, "Second series",
		existing.HangoutID, nextOccurrence(groupID))
	require.ErrorIs(t, err, domainerrors.ErrConflict)
}

func TestAddHangoutExtendsSeries(t *testing.T) {
	env := newTestEnv(t)
	admin, groupID, existing := env.newSeriesFixture(t)
	ctx := context.Background()
	series, _, err := env.seriesSvc.ConvertToSeries(ctx, admin, "Game nights",
		existing.HangoutID, nextOccurrence(groupID))
	require.NoError(t, err)

	// an earlier hangout in a different group pulls both fields forward
	other := env.newGroup(t, admin, false)
	extra := env.newHangout(t, CreateHangoutInput{
		UserID: admin, Title: "Game night 0", Time: exactTime("2026-08-28T19:00:00Z"),
		AssociatedGroups: []string{other.GroupID},
	})

	require.NoError(t, env.seriesSvc.AddHangout(ctx, admin, series.SeriesID, extra.HangoutID))
	require.ErrorIs(t,
		env.seriesSvc.AddHangout(ctx, admin, series.SeriesID, extra.HangoutID),
		domainerrors.ErrConflict)

	updated, err := env.seriesSvc.GetSeries(ctx, series.SeriesID)
	require.NoError(t, err)
	require.Len(t, updated.MemberHangoutIDs, 3)
	require.ElementsMatch(t, []string{groupID, other.GroupID}, updated.GroupIDs)
	require.Equal(t, extra.StartTimestamp, updated.StartTimestamp)

	stamped, err := env.hangouts.GetMetadata(ctx, extra.HangoutID)
	require.NoError(t, err)
	require.Equal(t, series.SeriesID, stamped.SeriesID)
}

func TestRemoveHangoutKeepsTheFloor(t *testing.T) {
	env := newTestEnv(t)
	admin, groupID, existing := env.newSeriesFixture(t)
	ctx := context.Background()
	series, _, err := env.seriesSvc.ConvertToSeries(ctx, admin, "Game nights",
		existing.HangoutID, nextOccurrence(groupID))
	require.NoError(t, err)
	third := env.newHangout(t, CreateHangoutInput{
		UserID: admin, Title: "Game night 3", Time: exactTime("2026-09-18T19:00:00Z"),
		AssociatedGroups: []string{groupID},
	})
	require.NoError(t, env.seriesSvc.AddHangout(ctx, admin, series.SeriesID, third.HangoutID))

	require.NoError(t, env.seriesSvc.RemoveHangout(ctx, admin, series.SeriesID, third.HangoutID))

	unstamped, err := env.hangouts.GetMetadata(ctx, third.HangoutID)
	require.NoError(t, err)
	require.Empty(t, unstamped.SeriesID)

	// two members left: the floor holds
	require.True(t, domainerrors.IsInvalid(
		env.seriesSvc.RemoveHangout(ctx, admin, series.SeriesID, existing.HangoutID)))
}

func TestUpdateSeriesRenames(t *testing.T) {
	env := newTestEnv(t)
	admin, groupID, existing := env.newSeriesFixture(t)
	ctx := context.Background()
	series, _, err := env.seriesSvc.ConvertToSeries(ctx, admin, "Game nights",
		existing.HangoutID, nextOccurrence(groupID))
	require.NoError(t, err)

	renamed, err := env.seriesSvc.UpdateSeries(ctx, admin, series.SeriesID, "Board game nights")
	require.NoError(t, err)
	require.Equal(t, "Board game nights", renamed.SeriesTitle)
	require.Equal(t, series.Version+1, renamed.Version)

	_, err = env.seriesSvc.UpdateSeries(ctx, newID(), series.SeriesID, "Hijack")
	require.ErrorIs(t, err, domainerrors.ErrForbidden)
}

func TestDeleteSeriesLeavesStandaloneHangouts(t *testing.T) {
	env := newTestEnv(t)
	admin, groupID, existing := env.newSeriesFixture(t)
	ctx := context.Background()
	series, created, err := env.seriesSvc.ConvertToSeries(ctx, admin, "Game nights",
		existing.HangoutID, nextOccurrence(groupID))
	require.NoError(t, err)

	require.NoError(t, env.seriesSvc.DeleteSeries(ctx, admin, series.SeriesID))

	_, err = env.seriesSvc.GetSeries(ctx, series.SeriesID)
	require.ErrorIs(t, err, domainerrors.ErrNotFound)
	for _, hangoutID := range []string{existing.HangoutID, created.HangoutID} {
		hangout, err := env.hangouts.GetMetadata(ctx, hangoutID)
		require.NoError(t, err)
		require.Empty(t, hangout.SeriesID)
	}
	pointers, err := env.groups.ListHangoutPointers(ctx, groupID)
	require.NoError(t, err)
	require.Len(t, pointers, 2)
}
