package events

import (
	"context"
	"errors"
)

// Fanout delivers each entry to every handler. A failure in one handler does
// not stop the others; the entry is retried as a whole, so handlers must
// tolerate duplicates.
type Fanout []DeliveryHandler

func (f Fanout) Handle(ctx context.Context, entry OutboxEntry) error {
	var errs []error
	for _, h := range f {
		if h == nil {
			continue
		}
		if err := h.Handle(ctx, entry); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
