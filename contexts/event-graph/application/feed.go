package application

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	domainerrors "inviter/contexts/event-graph/domain/errors"
	"inviter/contexts/event-graph/domain/items"
	"inviter/contexts/event-graph/domain/keys"
	"inviter/contexts/event-graph/ports"
	"inviter/contexts/event-graph/repositories"
)

const (
	feedDefaultLimit = 20
	feedMaxLimit     = 50
	// feedDefaultFanout bounds concurrent partition queries in the merged
	// user feed.
	feedDefaultFanout = 8
)

type FeedService struct {
	Store       ports.Store
	Groups      *repositories.GroupRepository
	FanoutLimit int
	Logger      *slog.Logger
}

// FeedPage is one page of upcoming hangout pointers, partitioned into the
// dated ones and the ones still being scheduled, plus the validator the
// client echoes back as If-None-Match.
type FeedPage struct {
	Scheduled       []items.HangoutPointer
	NeedsScheduling []items.HangoutPointer
	ETag            string
}

// feedETag is "{gid}-{lastHangoutModified}": any feed-affecting write bumps
// the modified stamp, so equality proves the pointer set is unchanged.
func feedETag(group items.GroupMetadata) string {
	return fmt.Sprintf("%s-%d", group.GroupID, group.LastHangoutModified)
}

// GroupFeed returns the group's upcoming hangouts ordered by start time.
// When the caller's validator still matches, the pointer query is skipped
// entirely and ErrUnchanged is returned: the not-modified path costs one
// metadata read.
func (s FeedService) GroupFeed(ctx context.Context, userID, groupID, ifNoneMatch string, after *int64, limit int) (FeedPage, error) {
	group, err := s.Groups.GetMetadata(ctx, groupID)
	if err != nil {
		return FeedPage{}, err
	}
	if !group.IsPublic {
		if _, err := memberOf(ctx, s.Groups, groupID, userID); err != nil {
			return FeedPage{}, err
		}
	}
	etag := feedETag(group)
	if ifNoneMatch != "" && ifNoneMatch == etag {
		return FeedPage{ETag: etag}, domainerrors.ErrUnchanged
	}
	pk, err := keys.GroupPK(groupID)
	if err != nil {
		return FeedPage{}, domainerrors.Invalid("groupId", err.Error())
	}
	pointers, err := s.queryUpcoming(ctx, pk, after, clampFeedLimit(limit))
	if err != nil {
		return FeedPage{}, err
	}
	page := FeedPage{ETag: etag}
	for _, pointer := range pointers {
		if pointer.Status == items.StatusScheduled {
			page.Scheduled = append(page.Scheduled, pointer)
			continue
		}
		page.NeedsScheduling = append(page.NeedsScheduling, pointer)
	}
	return page, nil
}

// UserFeed merges the caller's group feeds and direct invitations into one
// time-ordered list. Partitions are queried concurrently under a fan-out
// bound and k-way merged by (startTimestamp, hangoutId); a hangout visible
// through several groups appears once.
func (s FeedService) UserFeed(ctx context.Context, userID string, after *int64, limit int) ([]items.HangoutPointer, error) {
	memberships, err := s.Groups.FindGroupsForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	userPK, err := keys.UserPK(userID)
	if err != nil {
		return nil, domainerrors.Invalid("userId", err.Error())
	}
	partitions := make([]string, 0, len(memberships)+1)
	partitions = append(partitions, userPK)
	for _, membership := range memberships {
		pk, err := keys.GroupPK(membership.GroupID)
		if err != nil {
			continue
		}
		partitions = append(partitions, pk)
	}

	limit = clampFeedLimit(limit)
	fanout := s.FanoutLimit
	if fanout <= 0 {
		fanout = feedDefaultFanout
	}

	var mu sync.Mutex
	perPartition := make([][]items.HangoutPointer, 0, len(partitions))
	grp, grpCtx := errgroup.WithContext(ctx)
	grp.SetLimit(fanout)
	for _, partition := range partitions {
		partition := partition
		grp.Go(func() error {
			pointers, err := s.queryUpcoming(grpCtx, partition, after, limit)
			if err != nil {
				return err
			}
			mu.Lock()
			perPartition = append(perPartition, pointers)
			mu.Unlock()
			return nil
		})
	}
	if err := grp.Wait(); err != nil {
		return nil, err
	}
	return mergeFeeds(perPartition, limit), nil
}

func (s FeedService) queryUpcoming(ctx context.Context, partitionPK string, after *int64, limit int) ([]items.HangoutPointer, error) {
	page, err := s.Store.QueryIndex(ctx, ports.IndexQuery{
		Index:          ports.EntityTimeIndex,
		PK:             partitionPK,
		AfterTimestamp: after,
		Limit:          limit,
	})
	if err != nil {
		serviceLogger(s.Logger, "feed_query_failed").Error("feed partition query failed",
			"partition", partitionPK, "error", err.Error())
		return nil, err
	}
	pointers := make([]items.HangoutPointer, 0, len(page.Items))
	for _, item := range page.Items {
		if keys.Classify(item.SK()) != keys.KindHangoutPointer {
			continue
		}
		pointers = append(pointers, items.HangoutPointerFromItem(item))
	}
	return pointers, nil
}

// mergeFeeds flattens per-partition results into one ordered, deduplicated
// list. Each input is already time-ordered; the output orders by
// (startTimestamp, hangoutId) for a stable tiebreak.
func mergeFeeds(perPartition [][]items.HangoutPointer, limit int) []items.HangoutPointer {
	seen := make(map[string]struct{})
	var merged []items.HangoutPointer
	for _, pointers := range perPartition {
		for _, pointer := range pointers {
			if _, dup := seen[pointer.HangoutID]; dup {
				continue
			}
			seen[pointer.HangoutID] = struct{}{}
			merged = append(merged, pointer)
		}
	}
	sort.Slice(merged, func(i, j int) bool {
		if merged[i].StartTimestamp != merged[j].StartTimestamp {
			return merged[i].StartTimestamp < merged[j].StartTimestamp
		}
		return merged[i].HangoutID < merged[j].HangoutID
	})
	if len(merged) > limit {
		merged = merged[:limit]
	}
	return merged
}

func clampFeedLimit(limit int) int {
	if limit <= 0 {
		return feedDefaultLimit
	}
	if limit > feedMaxLimit {
		return feedMaxLimit
	}
	return limit
}
