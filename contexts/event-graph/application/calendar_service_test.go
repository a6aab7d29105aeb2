package application

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	domainerrors "inviter/contexts/event-graph/domain/errors"
)

func TestEnsureSubscriptionTokenIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	admin, stranger := newID(), newID()
	group := env.newGroup(t, admin, false)

	token, err := env.calendarSvc.EnsureSubscriptionToken(context.Background(), admin, group.GroupID)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	again, err := env.calendarSvc.EnsureSubscriptionToken(context.Background(), admin, group.GroupID)
	require.NoError(t, err)
	require.Equal(t, token, again)

	_, err = env.calendarSvc.EnsureSubscriptionToken(context.Background(), stranger, group.GroupID)
	require.ErrorIs(t, err, domainerrors.ErrForbidden)
}

func TestCalendarFeedRendersScheduledOnly(t *testing.T) {
	env := newTestEnv(t)
	admin := newID()
	group := env.newGroup(t, admin, false)
	env.newHangout(t, CreateHangoutInput{
		UserID: admin, Title: "Picnic; bring snacks", Time: exactTime("2026-09-05T11:00:00Z"),
		Location:         map[string]string{"name": "Riverside Park"},
		AssociatedGroups: []string{group.GroupID},
	})
	// unscheduled hangouts have no window and stay out of the calendar
	env.newHangout(t, CreateHangoutInput{
		UserID: admin, Title: "Someday", AssociatedGroups: []string{group.GroupID},
	})

	token, err := env.calendarSvc.EnsureSubscriptionToken(context.Background(), admin, group.GroupID)
	require.NoError(t, err)
	feed, err := env.calendarSvc.Feed(context.Background(), group.GroupID, token, "")
	require.NoError(t, err)
	require.NotEmpty(t, feed.ETag)

	require.True(t, strings.HasPrefix(feed.ICS, "BEGIN:VCALENDAR\r\n"))
	require.Contains(t, feed.ICS, "X-WR-CALNAME:Trip Crew\r\n")
	require.Contains(t, feed.ICS, "SUMMARY:Picnic\\; bring snacks\r\n")
	require.Contains(t, feed.ICS, "LOCATION:Riverside Park\r\n")
	require.Contains(t, feed.ICS, "DTSTART:20260905T110000Z\r\n")
	require.Contains(t, feed.ICS, "DTEND:20260905T130000Z\r\n")
	require.Equal(t, 1, strings.Count(feed.ICS, "BEGIN:VEVENT"))
	require.NotContains(t, feed.ICS, "Someday")
}

func TestCalendarFeedAuthorization(t *testing.T) {
	env := newTestEnv(t)
	admin := newID()
	group := env.newGroup(t, admin, false)

	_, err := env.calendarSvc.Feed(context.Background(), group.GroupID, "", "")
	require.ErrorIs(t, err, domainerrors.ErrUnauthorized)
	_, err = env.calendarSvc.Feed(context.Background(), group.GroupID, newID(), "")
	require.ErrorIs(t, err, domainerrors.ErrUnauthorized)
}

func TestCalendarFeedETag(t *testing.T) {
	env := newTestEnv(t)
	admin := newID()
	group := env.newGroup(t, admin, false)
	token, err := env.calendarSvc.EnsureSubscriptionToken(context.Background(), admin, group.GroupID)
	require.NoError(t, err)

	feed, err := env.calendarSvc.Feed(context.Background(), group.GroupID, token, "")
	require.NoError(t, err)

	unchanged, err := env.calendarSvc.Feed(context.Background(), group.GroupID, token, feed.ETag)
	require.ErrorIs(t, err, domainerrors.ErrUnchanged)
	require.Equal(t, feed.ETag, unchanged.ETag)
	require.Empty(t, unchanged.ICS)

	env.newHangout(t, CreateHangoutInput{
		UserID: admin, Title: "New plans", Time: exactTime("2026-09-06T11:00:00Z"),
		AssociatedGroups: []string{group.GroupID},
	})
	fresh, err := env.calendarSvc.Feed(context.Background(), group.GroupID, token, feed.ETag)
	require.NoError(t, err)
	require.NotEqual(t, feed.ETag, fresh.ETag)
	require.Contains(t, fresh.ICS, "SUMMARY:New plans\r\n")
}
