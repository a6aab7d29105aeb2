package application

import (
	"context"
	"log/slog"
	"strings"
	"time"

	domainerrors "inviter/contexts/event-graph/domain/errors"
	"inviter/contexts/event-graph/domain/items"
	"inviter/contexts/event-graph/ports"
	"inviter/contexts/event-graph/repositories"
)

// CalendarService renders a group's scheduled hangouts as an iCalendar
// feed. Access uses a per-membership subscription token instead of a login
// so calendar apps can poll the URL.
type CalendarService struct {
	Groups *repositories.GroupRepository
	Clock  ports.Clock
	IDs    ports.IDGenerator
	Logger *slog.Logger
}

// EnsureSubscriptionToken returns the caller's feed token for a group,
// minting one on first use.
func (s CalendarService) EnsureSubscriptionToken(ctx context.Context, userID, groupID string) (string, error) {
	membership, err := memberOf(ctx, s.Groups, groupID, userID)
	if err != nil {
		return "", err
	}
	if membership.SubscriptionToken != "" {
		return membership.SubscriptionToken, nil
	}
	membership.SubscriptionToken = s.IDs.NewID()
	if err := s.Groups.PutMembership(ctx, membership); err != nil {
		return "", err
	}
	return membership.SubscriptionToken, nil
}

// CalendarFeed is the rendered ICS document plus the validator the client
// can poll with.
type CalendarFeed struct {
	ICS  string
	ETag string
}

// Feed renders the group's scheduled hangouts. The token authorizes in
// place of a session; an unknown token is indistinguishable from an
// unknown group.
func (s CalendarService) Feed(ctx context.Context, groupID, token, ifNoneMatch string) (CalendarFeed, error) {
	if strings.TrimSpace(token) == "" {
		return CalendarFeed{}, domainerrors.ErrUnauthorized
	}
	group, err := s.Groups.GetMetadata(ctx, groupID)
	if err != nil {
		return CalendarFeed{}, err
	}
	members, err := s.Groups.ListMembers(ctx, groupID)
	if err != nil {
		return CalendarFeed{}, err
	}
	authorized := false
	for _, member := range members {
		if member.SubscriptionToken != "" && member.SubscriptionToken == token {
			authorized = true
			break
		}
	}
	if !authorized {
		return CalendarFeed{}, domainerrors.ErrUnauthorized
	}

	etag := feedETag(group)
	if ifNoneMatch != "" && ifNoneMatch == etag {
		return CalendarFeed{ETag: etag}, domainerrors.ErrUnchanged
	}
	pointers, err := s.Groups.ListHangoutPointers(ctx, groupID)
	if err != nil {
		return CalendarFeed{}, err
	}
	return CalendarFeed{
		ICS:  renderICS(group, pointers, s.Clock.Now()),
		ETag: etag,
	}, nil
}

// renderICS emits a VCALENDAR with one VEVENT per scheduled hangout.
// NEEDS_SCHEDULING entries have no usable window and are skipped.
func renderICS(group items.GroupMetadata, pointers []items.HangoutPointer, now time.Time) string {
	var b strings.Builder
	b.WriteString("BEGIN:VCALENDAR\r\n")
	b.WriteString("VERSION:2.0\r\n")
	b.WriteString("PRODID:-//inviter//event-graph//EN\r\n")
	b.WriteString("CALSCALE:GREGORIAN\r\n")
	b.WriteString("X-WR-CALNAME:" + escapeICS(group.GroupName) + "\r\n")
	stamp := now.UTC().Format("20060102T150405Z")
	for _, pointer := range pointers {
		if pointer.Status != items.StatusScheduled || pointer.StartTimestamp == 0 {
			continue
		}
		b.WriteString("BEGIN:VEVENT\r\n")
		b.WriteString("UID:" + pointer.HangoutID + "@inviter\r\n")
		b.WriteString("DTSTAMP:" + stamp + "\r\n")
		b.WriteString("DTSTART:" + icsTime(pointer.StartTimestamp) + "\r\n")
		if pointer.EndTimestamp > pointer.StartTimestamp {
			b.WriteString("DTEND:" + icsTime(pointer.EndTimestamp) + "\r\n")
		}
		b.WriteString("SUMMARY:" + escapeICS(pointer.Title) + "\r\n")
		if name := pointer.Location["name"]; name != "" {
			b.WriteString("LOCATION:" + escapeICS(name) + "\r\n")
		}
		b.WriteString("END:VEVENT\r\n")
	}
	b.WriteString("END:VCALENDAR\r\n")
	return b.String()
}

func icsTime(unixSeconds int64) string {
	return time.Unix(unixSeconds, 0).UTC().Format("20060102T150405Z")
}

// escapeICS escapes the RFC 5545 text characters.
func escapeICS(s string) string {
	replacer := strings.NewReplacer(
		"\\", "\\\\",
		";", "\\;",
		",", "\\,",
		"\n", "\\n",
	)
	return replacer.Replace(s)
}
