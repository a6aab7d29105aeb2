// Package repositories encapsulates key construction, pointer fan-out, and
// the conditional writes and item-collection queries each aggregate root
// needs. Repositories speak the Store port and the domain error taxonomy;
// no store-level error type escapes upward.
package repositories

import (
	"errors"
	"log/slog"

	domainerrors "inviter/contexts/event-graph/domain/errors"
	"inviter/contexts/event-graph/ports"
)

func resolveLogger(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return slog.Default()
	}
	return logger
}

func logError(logger *slog.Logger, event string, err error, attrs ...any) error {
	fields := make([]any, 0, len(attrs)+6)
	fields = append(fields,
		"event", event,
		"module", "event-graph",
		"layer", "repository",
		"error", err.Error(),
	)
	fields = append(fields, attrs...)
	resolveLogger(logger).Error("repository operation failed", fields...)
	return err
}

// mapStoreErr translates adapter faults that reach a repository untyped.
func mapStoreErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ports.ErrUnavailable):
		return domainerrors.ErrStoreUnavailable
	default:
		return err
	}
}
