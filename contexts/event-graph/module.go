// Package eventgraph assembles the event-graph core: the single-table
// store, the aggregate repositories, and the application services.
package eventgraph

import (
	"log/slog"
	"time"

	"inviter/contexts/event-graph/adapters/memory"
	"inviter/contexts/event-graph/application"
	"inviter/contexts/event-graph/ports"
	"inviter/contexts/event-graph/repositories"
)

type Module struct {
	Groups      application.GroupService
	Hangouts    application.HangoutService
	Series      application.SeriesService
	Polls       application.PollService
	Carpool     application.CarpoolService
	Engagement  application.EngagementService
	Invites     application.InviteService
	Feed        application.FeedService
	Calendar    application.CalendarService
	Places      application.PlaceService
	IdeaLists   application.IdeaListService
	Devices     application.DeviceService
	Tokens      application.TokenService
	Sweeper     application.Sweeper
	MemoryStore *memory.Store
}

type Dependencies struct {
	Store         ports.Store
	Clock         ports.Clock
	IDGenerator   ports.IDGenerator
	RateLimiter   ports.RateLimiter
	FeedFanout    int
	SweepInterval time.Duration
	Logger        *slog.Logger
}

func NewModule(deps Dependencies) Module {
	groups := &repositories.GroupRepository{Store: deps.Store, Logger: deps.Logger}
	hangouts := &repositories.HangoutRepository{Store: deps.Store, Logger: deps.Logger}
	series := &repositories.SeriesRepository{Store: deps.Store, Logger: deps.Logger}
	polls := &repositories.PollRepository{Store: deps.Store, Logger: deps.Logger}
	carpool := &repositories.CarpoolRepository{Store: deps.Store, Logger: deps.Logger}
	engage := &repositories.EngagementRepository{Store: deps.Store, Logger: deps.Logger}
	invites := &repositories.InviteRepository{Store: deps.Store, Logger: deps.Logger}
	places := &repositories.PlaceRepository{Store: deps.Store, Logger: deps.Logger}
	ideas := &repositories.IdeaListRepository{Store: deps.Store, Logger: deps.Logger}
	devices := &repositories.DeviceRepository{Store: deps.Store, Logger: deps.Logger}
	tokens := &repositories.TokenRepository{Store: deps.Store, Logger: deps.Logger}

	return Module{
		Groups: application.GroupService{
			Groups:   groups,
			Hangouts: hangouts,
			Invites:  invites,
			Clock:    deps.Clock,
			IDs:      deps.IDGenerator,
			Logger:   deps.Logger,
		},
		Hangouts: application.HangoutService{
			Hangouts: hangouts,
			Groups:   groups,
			Engage:   engage,
			Clock:    deps.Clock,
			IDs:      deps.IDGenerator,
			Logger:   deps.Logger,
		},
		Series: application.SeriesService{
			Series:   series,
			Hangouts: hangouts,
			Groups:   groups,
			Clock:    deps.Clock,
			IDs:      deps.IDGenerator,
			Logger:   deps.Logger,
		},
		Polls: application.PollService{
			Polls:    polls,
			Hangouts: hangouts,
			Groups:   groups,
			Clock:    deps.Clock,
			IDs:      deps.IDGenerator,
			Logger:   deps.Logger,
		},
		Carpool: application.CarpoolService{
			Carpool:  carpool,
			Hangouts: hangouts,
			Groups:   groups,
			Clock:    deps.Clock,
			Logger:   deps.Logger,
		},
		Engagement: application.EngagementService{
			Engage:   engage,
			Hangouts: hangouts,
			Groups:   groups,
			Clock:    deps.Clock,
			IDs:      deps.IDGenerator,
			Logger:   deps.Logger,
		},
		Invites: application.InviteService{
			Invites: invites,
			Groups:  groups,
			Clock:   deps.Clock,
			Limiter: deps.RateLimiter,
			Logger:  deps.Logger,
		},
		Feed: application.FeedService{
			Store:       deps.Store,
			Groups:      groups,
			FanoutLimit: deps.FeedFanout,
			Logger:      deps.Logger,
		},
		Calendar: application.CalendarService{
			Groups: groups,
			Clock:  deps.Clock,
			IDs:    deps.IDGenerator,
			Logger: deps.Logger,
		},
		Places: application.PlaceService{
			Places: places,
			Groups: groups,
			IDs:    deps.IDGenerator,
			Logger: deps.Logger,
		},
		IdeaLists: application.IdeaListService{
			Ideas:  ideas,
			Groups: groups,
			Clock:  deps.Clock,
			IDs:    deps.IDGenerator,
			Logger: deps.Logger,
		},
		Devices: application.DeviceService{
			Devices: devices,
			Clock:   deps.Clock,
			Logger:  deps.Logger,
		},
		Tokens: application.TokenService{
			Tokens: tokens,
			Clock:  deps.Clock,
			IDs:    deps.IDGenerator,
			Logger: deps.Logger,
		},
		Sweeper: application.Sweeper{
			Groups:   groups,
			Hangouts: hangouts,
			Interval: deps.SweepInterval,
			Logger:   deps.Logger,
		},
	}
}

// NewInMemoryModule wires the whole module on the in-memory store; tests
// and local development use it.
func NewInMemoryModule(logger *slog.Logger) Module {
	store := memory.NewStore()
	module := NewModule(Dependencies{
		Store:       store,
		Clock:       memory.SystemClock{},
		IDGenerator: memory.UUIDGenerator{},
		FeedFanout:  8,
		Logger:      logger,
	})
	module.MemoryStore = store
	return module
}
