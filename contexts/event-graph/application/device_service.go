package application

import (
	"context"
	"log/slog"
	"strings"

	domainerrors "inviter/contexts/event-graph/domain/errors"
	"inviter/contexts/event-graph/domain/items"
	"inviter/contexts/event-graph/ports"
	"inviter/contexts/event-graph/repositories"
)

// DeviceService manages push-notification registrations.
type DeviceService struct {
	Devices *repositories.DeviceRepository
	Clock   ports.Clock
	Logger  *slog.Logger
}

func (s DeviceService) RegisterDevice(ctx context.Context, userID, token, platform string) (items.Device, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return items.Device{}, domainerrors.Invalid("token", "device token is required")
	}
	device := items.Device{
		Token:        token,
		UserID:       userID,
		Platform:     platform,
		RegisteredAt: s.Clock.Now().UnixMilli(),
	}
	if err := s.Devices.Register(ctx, device); err != nil {
		return items.Device{}, err
	}
	return device, nil
}

func (s DeviceService) ListDevices(ctx context.Context, userID string) ([]items.Device, error) {
	return s.Devices.ListForUser(ctx, userID)
}

// UnregisterDevice removes a registration; only its current owner may.
func (s DeviceService) UnregisterDevice(ctx context.Context, userID, token string) error {
	device, err := s.Devices.Get(ctx, token)
	if err != nil {
		return err
	}
	if device.UserID != userID {
		return domainerrors.ErrForbidden
	}
	return s.Devices.Unregister(ctx, token)
}
