package application

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"

	domainerrors "inviter/contexts/event-graph/domain/errors"
	"inviter/contexts/event-graph/domain/keys"
	"inviter/contexts/event-graph/repositories"
)

// Sweeper reconciles pointer partitions against their canonical records. A
// crash between a canonical delete and its pointer cleanup leaves orphaned
// pointers; the sweeper deletes them so feeds converge back to truth.
type Sweeper struct {
	Groups   *repositories.GroupRepository
	Hangouts *repositories.HangoutRepository
	Interval time.Duration
	Logger   *slog.Logger
}

// SweepGroup removes every hangout pointer in the group whose canonical is
// gone. Returns the number of orphans removed.
func (s Sweeper) SweepGroup(ctx context.Context, groupID string) (int, error) {
	pointers, err := s.Groups.ListHangoutPointers(ctx, groupID)
	if err != nil {
		return 0, err
	}
	groupPK, err := keys.GroupPK(groupID)
	if err != nil {
		return 0, domainerrors.Invalid("groupId", err.Error())
	}
	removed := 0
	for _, pointer := range pointers {
		_, err := s.Hangouts.GetMetadata(ctx, pointer.HangoutID)
		if err == nil {
			continue
		}
		if !errors.Is(err, domainerrors.ErrNotFound) {
			return removed, err
		}
		if err := s.Hangouts.DeletePointer(ctx, groupPK, pointer.HangoutID); err != nil {
			return removed, err
		}
		removed++
	}
	if removed > 0 {
		serviceLogger(s.Logger, "sweep_removed_orphans").Info("removed orphaned pointers",
			"group_id", groupID, "count", removed)
	}
	return removed, nil
}

// Run sweeps the listed groups on the configured interval until the context
// ends. Store outages back off exponentially instead of hammering.
func (s Sweeper) Run(ctx context.Context, groupIDs func(context.Context) ([]string, error)) error {
	interval := s.Interval
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
		ids, err := groupIDs(ctx)
		if err != nil {
			serviceLogger(s.Logger, "sweep_list_failed").Error("listing groups to sweep failed",
				"error", err.Error())
			continue
		}
		for _, groupID := range ids {
			groupID := groupID
			sweep := func() error {
				_, err := s.SweepGroup(ctx, groupID)
				if err == nil {
					return nil
				}
				if errors.Is(err, domainerrors.ErrStoreUnavailable) {
					return err
				}
				return backoff.Permanent(err)
			}
			policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 4), ctx)
			if err := backoff.Retry(sweep, policy); err != nil {
				serviceLogger(s.Logger, "sweep_group_failed").Error("sweep failed",
					"group_id", groupID, "error", err.Error())
			}
		}
	}
}
