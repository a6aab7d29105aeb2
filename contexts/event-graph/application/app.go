// Package application holds the event-graph use cases. Services compose the
// repositories into the denormalization protocol: every write that changes a
// canonical record also patches the pointer projections and advances the
// owning groups' feed validators in the same transaction.
package application

import (
	"context"
	"log/slog"

	domainerrors "inviter/contexts/event-graph/domain/errors"
	"inviter/contexts/event-graph/domain/items"
	"inviter/contexts/event-graph/repositories"
)

func resolveLogger(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return slog.Default()
	}
	return logger
}

func serviceLogger(logger *slog.Logger, event string) *slog.Logger {
	return resolveLogger(logger).With(
		"event", event,
		"module", "event-graph",
		"layer", "application",
	)
}

// requireHost gates host-only hangout mutations.
func requireHost(hangout items.HangoutMetadata, userID string) error {
	if !hangout.IsHost(userID) {
		return domainerrors.ErrForbidden
	}
	return nil
}

// requireAdmin gates admin-only group mutations.
func requireAdmin(membership items.Membership) error {
	if membership.Role != items.RoleAdmin {
		return domainerrors.ErrForbidden
	}
	return nil
}

// memberOf loads the caller's membership or fails ErrForbidden; group access
// checks all reduce to "is there a membership row".
func memberOf(ctx context.Context, groups *repositories.GroupRepository, groupID, userID string) (items.Membership, error) {
	membership, found, err := groups.GetMembership(ctx, groupID, userID)
	if err != nil {
		return items.Membership{}, err
	}
	if !found {
		return items.Membership{}, domainerrors.ErrForbidden
	}
	return membership, nil
}
