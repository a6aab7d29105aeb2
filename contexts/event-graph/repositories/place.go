package repositories

import (
	"context"
	"errors"
	"log/slog"

	domainerrors "inviter/contexts/event-graph/domain/errors"
	"inviter/contexts/event-graph/domain/items"
	"inviter/contexts/event-graph/domain/keys"
	"inviter/contexts/event-graph/ports"
)

// PlaceRepository stores saved locations under a user or group partition.
type PlaceRepository struct {
	Store  ports.Store
	Logger *slog.Logger
}

func (r *PlaceRepository) Put(ctx context.Context, place items.Place) error {
	item, err := place.Item()
	if err != nil {
		return err
	}
	if err := r.Store.Put(ctx, item, ports.NoCondition()); err != nil {
		return logError(r.Logger, "place_repo_put_failed", mapStoreErr(err),
			"owner", place.OwnerPK, "place_id", place.PlaceID)
	}
	return nil
}

func (r *PlaceRepository) Get(ctx context.Context, ownerPK, placeID string) (items.Place, error) {
	sk, err := keys.PlaceSK(placeID)
	if err != nil {
		return items.Place{}, domainerrors.Invalid("placeId", err.Error())
	}
	item, found, err := r.Store.Get(ctx, ownerPK, sk)
	if err != nil {
		return items.Place{}, logError(r.Logger, "place_repo_get_failed", mapStoreErr(err),
			"owner", ownerPK, "place_id", placeID)
	}
	if !found {
		return items.Place{}, domainerrors.ErrNotFound
	}
	return items.PlaceFromItem(item), nil
}

func (r *PlaceRepository) List(ctx context.Context, ownerPK string) ([]items.Place, error) {
	page, err := r.Store.Query(ctx, ports.Query{PK: ownerPK, SortPrefix: keys.PlacePrefix})
	if err != nil {
		return nil, logError(r.Logger, "place_repo_list_failed", mapStoreErr(err), "owner", ownerPK)
	}
	places := make([]items.Place, 0, len(page.Items))
	for _, item := range page.Items {
		places = append(places, items.PlaceFromItem(item))
	}
	return places, nil
}

func (r *PlaceRepository) Delete(ctx context.Context, ownerPK, placeID string) error {
	sk, err := keys.PlaceSK(placeID)
	if err != nil {
		return domainerrors.Invalid("placeId", err.Error())
	}
	err = r.Store.Delete(ctx, ownerPK, sk, ports.IfExists())
	if errors.Is(err, ports.ErrConditionFailed) {
		return domainerrors.ErrNotFound
	}
	if err != nil {
		return logError(r.Logger, "place_repo_delete_failed", mapStoreErr(err),
			"owner", ownerPK, "place_id", placeID)
	}
	return nil
}
