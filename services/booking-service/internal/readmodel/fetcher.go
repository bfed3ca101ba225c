package readmodel

import (
	"context"
	"log/slog"
	"sort"

	"github.com/peeyushmeher/cleanswift/libs/apperr"
)

// Source reads a user's joined booking rows. Implementations mark session failures with
// apperr.KindSessionExpired.
type Source interface {
	BookingRowsForUser(ctx context.Context, userID string) ([]RawBookingRow, error)
}

type Fetcher struct {
	source Source
	logger *slog.Logger
}

func NewFetcher(source Source, logger *slog.Logger) *Fetcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Fetcher{source: source, logger: logger}
}

// FetchForUser returns the user's bookings newest first. It does not retry.
func (f *Fetcher) FetchForUser(ctx context.Context, userID string) ([]BookingHistoryItem, error) {
	rows, err := f.source.BookingRowsForUser(ctx, userID)
	if err != nil {
		return nil, apperr.Fetch(err)
	}

	items := make([]BookingHistoryItem, 0, len(rows))
	for _, row := range rows {
		item, err := Normalize(row)
		if err != nil {
			f.logger.Warn("booking row rejected", "booking_id", row.ID, "err", err)
			return nil, apperr.FetchFailed(err)
		}
		items = append(items, item)
	}
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})
	return items, nil
}
