package application

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"inviter/contexts/event-graph/adapters/memory"
	"inviter/contexts/event-graph/domain/items"
	"inviter/contexts/event-graph/domain/timeinfo"
	"inviter/contexts/event-graph/repositories"
)

// fakeClock advances one millisecond per read so consecutive writes get
// distinct timestamps, the way wall time would.
type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.now = c.now.Add(time.Millisecond)
	return c.now
}

type uuidGen struct{}

func (uuidGen) NewID() string { return uuid.NewString() }

type stubLimiter struct {
	allowed bool
	err     error
	keys    []string
}

func (s *stubLimiter) Allow(_ context.Context, key string) (bool, error) {
	s.keys = append(s.keys, key)
	return s.allowed, s.err
}

// testEnv wires every service onto one in-memory store, mirroring the
// production composition.
type testEnv struct {
	store    *memory.Store
	clock    *fakeClock
	limiter  *stubLimiter
	groups   *repositories.GroupRepository
	hangouts *repositories.HangoutRepository
	tokens   *repositories.TokenRepository

	groupSvc    GroupService
	hangoutSvc  HangoutService
	seriesSvc   SeriesService
	pollSvc     PollService
	carpoolSvc  CarpoolService
	engageSvc   EngagementService
	inviteSvc   InviteService
	feedSvc     FeedService
	calendarSvc CalendarService
	tokenSvc    TokenService
	sweeper     Sweeper
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store := memory.NewStore()
	clock := &fakeClock{now: time.Date(2026, time.August, 1, 12, 0, 0, 0, time.UTC)}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ids := uuidGen{}
	limiter := &stubLimiter{allowed: true}

	groups := &repositories.GroupRepository{Store: store, Logger: logger}
	hangouts := &repositories.HangoutRepository{Store: store, Logger: logger}
	series := &repositories.SeriesRepository{Store: store, Logger: logger}
	polls := &repositories.PollRepository{Store: store, Logger: logger}
	carpool := &repositories.CarpoolRepository{Store: store, Logger: logger}
	engage := &repositories.EngagementRepository{Store: store, Logger: logger}
	invites := &repositories.InviteRepository{Store: store, Logger: logger}
	tokens := &repositories.TokenRepository{Store: store, Logger: logger}

	return &testEnv{
		store:    store,
		clock:    clock,
		limiter:  limiter,
		groups:   groups,
		hangouts: hangouts,
		tokens:   tokens,

		groupSvc:    GroupService{Groups: groups, Hangouts: hangouts, Invites: invites, Clock: clock, IDs: ids, Logger: logger},
		hangoutSvc:  HangoutService{Hangouts: hangouts, Groups: groups, Engage: engage, Clock: clock, IDs: ids, Logger: logger},
		seriesSvc:   SeriesService{Series: series, Hangouts: hangouts, Groups: groups, Clock: clock, IDs: ids, Logger: logger},
		pollSvc:     PollService{Polls: polls, Hangouts: hangouts, Groups: groups, Clock: clock, IDs: ids, Logger: logger},
		carpoolSvc:  CarpoolService{Carpool: carpool, Hangouts: hangouts, Groups: groups, Clock: clock, Logger: logger},
		engageSvc:   EngagementService{Engage: engage, Hangouts: hangouts, Groups: groups, Clock: clock, IDs: ids, Logger: logger},
		inviteSvc:   InviteService{Invites: invites, Groups: groups, Clock: clock, Limiter: limiter, Logger: logger},
		feedSvc:     FeedService{Store: store, Groups: groups, FanoutLimit: 4, Logger: logger},
		calendarSvc: CalendarService{Groups: groups, Clock: clock, IDs: ids, Logger: logger},
		tokenSvc:    TokenService{Tokens: tokens, Clock: clock, IDs: ids, Logger: logger},
		sweeper:     Sweeper{Groups: groups, Hangouts: hangouts, Interval: time.Minute, Logger: logger},
	}
}

func (e *testEnv) newGroup(t *testing.T, adminID string, public bool) items.GroupMetadata {
	t.Helper()
	group, err := e.groupSvc.CreateGroup(context.Background(), CreateGroupInput{
		UserID:   adminID,
		UserName: "Admin",
		Name:     "Trip Crew",
		IsPublic: public,
	})
	require.NoError(t, err)
	return group
}

func (e *testEnv) addMember(t *testing.T, groupID, userID, userName string) {
	t.Helper()
	group, err := e.groups.GetMetadata(context.Background(), groupID)
	require.NoError(t, err)
	require.NoError(t, e.groups.PutMembership(context.Background(), items.Membership{
		GroupID:   groupID,
		UserID:    userID,
		UserName:  userName,
		Role:      items.RoleMember,
		GroupName: group.GroupName,
	}))
}

func (e *testEnv) newHangout(t *testing.T, in CreateHangoutInput) items.HangoutMetadata {
	t.Helper()
	hangout, err := e.hangoutSvc.CreateHangout(context.Background(), in)
	require.NoError(t, err)
	return hangout
}

func exactTime(start string) timeinfo.Input {
	return timeinfo.Input{StartTime: start}
}

func newID() string { return uuid.NewString() }
