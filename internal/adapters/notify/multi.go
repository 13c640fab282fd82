package notify

import (
	"context"
	"errors"

	"github.com/dkeye/Consult/internal/core"
	"github.com/dkeye/Consult/internal/domain"
)

// Multi fans one notification out to every notifier. A failing notifier does
// not stop the rest.
type Multi []core.Notifier

func (m Multi) NotifyEnd(ctx context.Context, room domain.RoomName, summary *string, durationSeconds int64) error {
	var errs []error
	for _, n := range m {
		if err := n.NotifyEnd(ctx, room, summary, durationSeconds); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
