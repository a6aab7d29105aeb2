package application

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	domainerrors "inviter/contexts/event-graph/domain/errors"
	"inviter/contexts/event-graph/domain/items"
)

func TestGroupFeedReturnsTimeOrderedPointers(t *testing.T) {
	env := newTestEnv(t)
	admin := newID()
	group := env.newGroup(t, admin, false)

	env.newHangout(t, CreateHangoutInput{
		UserID: admin, Title: "Later", Time: exactTime("2026-09-10T18:00:00Z"),
		AssociatedGroups: []string{group.GroupID},
	})
	env.newHangout(t, CreateHangoutInput{
		UserID: admin, Title: "Sooner", Time: exactTime("2026-09-02T18:00:00Z"),
		AssociatedGroups: []string{group.GroupID},
	})

	page, err := env.feedSvc.GroupFeed(context.Background(), admin, group.GroupID, "", nil, 0)
	require.NoError(t, err)
	require.Len(t, page.Scheduled, 2)
	require.Equal(t, "Sooner", page.Scheduled[0].Title)
	require.Equal(t, "Later", page.Scheduled[1].Title)
	require.Empty(t, page.NeedsScheduling)
	require.NotEmpty(t, page.ETag)
}

func TestGroupFeedPartitionsByStatus(t *testing.T) {
	env := newTestEnv(t)
	admin := newID()
	group := env.newGroup(t, admin, false)

	env.newHangout(t, CreateHangoutInput{
		UserID: admin, Title: "Dated", Time: exactTime("2026-09-10T18:00:00Z"),
		AssociatedGroups: []string{group.GroupID},
	})
	// no time yet: lands in the needs-scheduling bucket
	env.newHangout(t, CreateHangoutInput{
		UserID: admin, Title: "Someday", AssociatedGroups: []string{group.GroupID},
	})

	page, err := env.feedSvc.GroupFeed(context.Background(), admin, group.GroupID, "", nil, 0)
	require.NoError(t, err)
	require.Len(t, page.Scheduled, 1)
	require.Equal(t, "Dated", page.Scheduled[0].Title)
	require.Len(t, page.NeedsScheduling, 1)
	require.Equal(t, "Someday", page.NeedsScheduling[0].Title)
}

func TestGroupFeedETagShortCircuit(t *testing.T) {
	env := newTestEnv(t)
	admin := newID()
	group := env.newGroup(t, admin, true)
	env.newHangout(t, CreateHangoutInput{
		UserID: admin, Title: "Plans", Time: exactTime("2026-09-02T18:00:00Z"),
		AssociatedGroups: []string{group.GroupID},
	})

	page, err := env.feedSvc.GroupFeed(context.Background(), admin, group.GroupID, "", nil, 0)
	require.NoError(t, err)

	// matching validator: exactly one metadata read, no pointer query
	env.store.ResetOpCounts()
	unchanged, err := env.feedSvc.GroupFeed(context.Background(), admin, group.GroupID, page.ETag, nil, 0)
	require.ErrorIs(t, err, domainerrors.ErrUnchanged)
	require.Equal(t, page.ETag, unchanged.ETag)
	require.Empty(t, unchanged.Scheduled)
	require.Empty(t, unchanged.NeedsScheduling)
	require.Equal(t, 1, env.store.OpCount("get"))
	require.Equal(t, 0, env.store.OpCount("queryIndex"))
	require.Equal(t, 0, env.store.OpCount("query"))

	// any feed-affecting write invalidates the validator
	env.newHangout(t, CreateHangoutInput{
		UserID: admin, Title: "More plans", Time: exactTime("2026-09-03T18:00:00Z"),
		AssociatedGroups: []string{group.GroupID},
	})
	fresh, err := env.feedSvc.GroupFeed(context.Background(), admin, group.GroupID, page.ETag, nil, 0)
	require.NoError(t, err)
	require.NotEqual(t, page.ETag, fresh.ETag)
	require.Len(t, fresh.Scheduled, 2)
}

func TestGroupFeedAfterCursorFilters(t *testing.T) {
	env := newTestEnv(t)
	admin := newID()
	group := env.newGroup(t, admin, false)
	early := env.newHangout(t, CreateHangoutInput{
		UserID: admin, Title: "Early", Time: exactTime("2026-09-02T18:00:00Z"),
		AssociatedGroups: []string{group.GroupID},
	})
	env.newHangout(t, CreateHangoutInput{
		UserID: admin, Title: "Late", Time: exactTime("2026-09-09T18:00:00Z"),
		AssociatedGroups: []string{group.GroupID},
	})

	after := early.StartTimestamp
	page, err := env.feedSvc.GroupFeed(context.Background(), admin, group.GroupID, "", &after, 0)
	require.NoError(t, err)
	require.Len(t, page.Scheduled, 1)
	require.Equal(t, "Late", page.Scheduled[0].Title)
}

func TestSummaryWritesAdvanceFeedValidator(t *testing.T) {
	env := newTestEnv(t)
	admin, rider := newID(), newID()
	group := env.newGroup(t, admin, false)
	env.addMember(t, group.GroupID, rider, "Riley")
	hangout := env.newHangout(t, CreateHangoutInput{
		UserID: admin, Title: "Road trip", Time: exactTime("2026-09-05T09:00:00Z"),
		AssociatedGroups: []string{group.GroupID}, CarpoolEnabled: true,
	})
	ctx := context.Background()

	stamp := func() int64 {
		meta, err := env.groups.GetMetadata(ctx, group.GroupID)
		require.NoError(t, err)
		return meta.LastHangoutModified
	}

	_, err := env.carpoolSvc.OfferCar(ctx, OfferCarInput{
		UserID: admin, UserName: "Alex", HangoutID: hangout.HangoutID, TotalCapacity: 4,
	})
	require.NoError(t, err)
	before := stamp()

	require.NoError(t, env.carpoolSvc.ReserveSeat(ctx, ReserveSeatInput{
		UserID: rider, UserName: "Riley", HangoutID: hangout.HangoutID, DriverID: admin,
	}))
	afterSeat := stamp()
	require.Greater(t, afterSeat, before)

	_, options := env.newPoll(t, admin, hangout.HangoutID, false, "Beach", "Lake")
	require.NoError(t, env.pollSvc.Vote(ctx, VoteInput{
		UserID: rider, HangoutID: hangout.HangoutID,
		PollID: options[0].PollID, OptionID: options[0].OptionID,
	}))
	afterVote := stamp()
	require.Greater(t, afterVote, afterSeat)

	_, err = env.engageSvc.SetParticipation(ctx, ParticipationInput{
		UserID: rider, UserName: "Riley", HangoutID: hangout.HangoutID,
		Type: items.ParticipationTicketNeeded,
	})
	require.NoError(t, err)
	afterParticipation := stamp()
	require.Greater(t, afterParticipation, afterVote)

	_, err = env.engageSvc.SetAttribute(ctx, admin, hangout.HangoutID, "dress_code", "casual")
	require.NoError(t, err)
	require.Greater(t, stamp(), afterParticipation)
}

func TestUserFeedMergesAndDeduplicates(t *testing.T) {
	env := newTestEnv(t)
	admin := newID()
	groupA := env.newGroup(t, admin, false)
	groupB := env.newGroup(t, admin, false)

	// visible through both groups, must appear once
	shared := env.newHangout(t, CreateHangoutInput{
		UserID: admin, Title: "Shared", Time: exactTime("2026-09-05T18:00:00Z"),
		AssociatedGroups: []string{groupA.GroupID, groupB.GroupID},
	})
	// direct invitation lands in the user partition
	invitee := newID()
	direct := env.newHangout(t, CreateHangoutInput{
		UserID: admin, Title: "Direct", Time: exactTime("2026-09-01T18:00:00Z"),
		AssociatedGroups: []string{groupA.GroupID},
		InvitedUsers:     []string{invitee},
	})

	feed, err := env.feedSvc.UserFeed(context.Background(), admin, nil, 0)
	require.NoError(t, err)
	require.Len(t, feed, 2)
	require.Equal(t, direct.HangoutID, feed[0].HangoutID)
	require.Equal(t, shared.HangoutID, feed[1].HangoutID)

	// the invitee is in no group but still sees the direct invitation
	inviteeFeed, err := env.feedSvc.UserFeed(context.Background(), invitee, nil, 0)
	require.NoError(t, err)
	require.Len(t, inviteeFeed, 1)
	require.Equal(t, direct.HangoutID, inviteeFeed[0].HangoutID)
}

func TestUserFeedClampsLimit(t *testing.T) {
	env := newTestEnv(t)
	admin := newID()
	group := env.newGroup(t, admin, false)
	for i := 0; i < 3; i++ {
		env.newHangout(t, CreateHangoutInput{
			UserID: admin,
			Title:  fmt.Sprintf("Hangout %d", i),
			Time:   exactTime(fmt.Sprintf("2026-09-0%dT18:00:00Z", i+1)),
			AssociatedGroups: []string{group.GroupID},
		})
	}

	feed, err := env.feedSvc.UserFeed(context.Background(), admin, nil, 2)
	require.NoError(t, err)
	require.Len(t, feed, 2)
	require.Equal(t, "Hangout 0", feed[0].Title)
	require.Equal(t, "Hangout 1", feed[1].Title)

	// limits beyond the cap fall back to the maximum, not an error
	feed, err = env.feedSvc.UserFeed(context.Background(), admin, nil, 500)
	require.NoError(t, err)
	require.Len(t, feed, 3)
}
