package application

import (
	"context"
	"log/slog"
	"strings"

	domainerrors "inviter/contexts/event-graph/domain/errors"
	"inviter/contexts/event-graph/domain/items"
	"inviter/contexts/event-graph/domain/keys"
	"inviter/contexts/event-graph/ports"
	"inviter/contexts/event-graph/repositories"
)

// PlaceService stores saved locations under the caller's own partition or a
// group they belong to.
type PlaceService struct {
	Places *repositories.PlaceRepository
	Groups *repositories.GroupRepository
	IDs    ports.IDGenerator
	Logger *slog.Logger
}

type SavePlaceInput struct {
	UserID  string
	GroupID string // empty saves under the user partition
	Name    string
	Address string
	Notes   string
}

func (s PlaceService) SavePlace(ctx context.Context, in SavePlaceInput) (items.Place, error) {
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return items.Place{}, domainerrors.Invalid("name", "place name is required")
	}
	ownerPK, err := s.resolveOwner(ctx, in.UserID, in.GroupID)
	if err != nil {
		return items.Place{}, err
	}
	place := items.Place{
		OwnerPK:   ownerPK,
		PlaceID:   s.IDs.NewID(),
		Name:      in.Name,
		Address:   in.Address,
		Notes:     in.Notes,
		CreatedBy: in.UserID,
	}
	if err := s.Places.Put(ctx, place); err != nil {
		return items.Place{}, err
	}
	return place, nil
}

func (s PlaceService) ListPlaces(ctx context.Context, userID, groupID string) ([]items.Place, error) {
	ownerPK, err := s.resolveOwner(ctx, userID, groupID)
	if err != nil {
		return nil, err
	}
	return s.Places.List(ctx, ownerPK)
}

func (s PlaceService) DeletePlace(ctx context.Context, userID, groupID, placeID string) error {
	ownerPK, err := s.resolveOwner(ctx, userID, groupID)
	if err != nil {
		return err
	}
	return s.Places.Delete(ctx, ownerPK, placeID)
}

func (s PlaceService) resolveOwner(ctx context.Context, userID, groupID string) (string, error) {
	if groupID == "" {
		pk, err := keys.UserPK(userID)
		if err != nil {
			return "", domainerrors.Invalid("userId", err.Error())
		}
		return pk, nil
	}
	if _, err := memberOf(ctx, s.Groups, groupID, userID); err != nil {
		return "", err
	}
	pk, err := keys.GroupPK(groupID)
	if err != nil {
		return "", domainerrors.Invalid("groupId", err.Error())
	}
	return pk, nil
}
