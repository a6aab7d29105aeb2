package repositories

import (
	"context"
	"log/slog"

	domainerrors "inviter/contexts/event-graph/domain/errors"
	"inviter/contexts/event-graph/domain/items"
	"inviter/contexts/event-graph/domain/keys"
	"inviter/contexts/event-graph/ports"
)

// DeviceRepository stores push-notification registrations. Re-registering
// the same token overwrites, which moves the token between users on
// device handoff.
type DeviceRepository struct {
	Store  ports.Store
	Logger *slog.Logger
}

func (r *DeviceRepository) Register(ctx context.Context, device items.Device) error {
	item, err := device.Item()
	if err != nil {
		return err
	}
	if err := r.Store.Put(ctx, item, ports.NoCondition()); err != nil {
		return logError(r.Logger, "device_repo_register_failed", mapStoreErr(err), "user_id", device.UserID)
	}
	return nil
}

func (r *DeviceRepository) Get(ctx context.Context, token string) (items.Device, error) {
	pk, err := keys.DevicePK(token)
	if err != nil {
		return items.Device{}, domainerrors.Invalid("token", err.Error())
	}
	item, found, err := r.Store.Get(ctx, pk, keys.Metadata)
	if err != nil {
		return items.Device{}, logError(r.Logger, "device_repo_get_failed", mapStoreErr(err))
	}
	if !found {
		return items.Device{}, domainerrors.ErrNotFound
	}
	return items.DeviceFromItem(item), nil
}

// ListForUser serves the user's registrations from the UserGroupIndex.
func (r *DeviceRepository) ListForUser(ctx context.Context, userID string) ([]items.Device, error) {
	pk, err := keys.UserPK(userID)
	if err != nil {
		return nil, domainerrors.Invalid("userId", err.Error())
	}
	page, err := r.Store.QueryIndex(ctx, ports.IndexQuery{
		Index:      ports.UserGroupIndex,
		PK:         pk,
		SortPrefix: keys.DevicePKPrefix,
	})
	if err != nil {
		return nil, logError(r.Logger, "device_repo_list_failed", mapStoreErr(err), "user_id", userID)
	}
	devices := make([]items.Device, 0, len(page.Items))
	for _, item := range page.Items {
		devices = append(devices, items.DeviceFromItem(item))
	}
	return devices, nil
}

func (r *DeviceRepository) Unregister(ctx context.Context, token string) error {
	pk, err := keys.DevicePK(token)
	if err != nil {
		return domainerrors.Invalid("token", err.Error())
	}
	if err := r.Store.Delete(ctx, pk, keys.Metadata, ports.NoCondition()); err != nil {
		return logError(r.Logger, "device_repo_unregister_failed", mapStoreErr(err))
	}
	return nil
}
