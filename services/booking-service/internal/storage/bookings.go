package storage

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/peeyushmeher/cleanswift/libs/apperr"
	"github.com/peeyushmeher/cleanswift/services/booking-service/internal/model"
	"github.com/peeyushmeher/cleanswift/services/booking-service/internal/readmodel"
)

// BookingRowsForUser implements readmodel.Source.
func (b *Backend) BookingRowsForUser(ctx context.Context, userID string) ([]readmodel.RawBookingRow, error) {
	var out []readmodel.RawBookingRow
	err := b.inSession(ctx, "bookings.for_user", func(ctx context.Context, tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `
			SELECT b.id::text, COALESCE(b.receipt_id, ''), b.user_id::text,
			       b.service_id::text, b.detailer_id::text, b.car_id::text, b.status::text,
			       b.scheduled_date, b.scheduled_time_start::text, b.scheduled_time_end::text,
			       COALESCE(b.service_price, 0)::float8, COALESCE(b.addons_total, 0)::float8,
			       COALESCE(b.tax_amount, 0)::float8, COALESCE(b.total_amount, 0)::float8,
			       COALESCE(b.address_line1, ''), b.address_line2, COALESCE(b.city, ''),
			       COALESCE(b.province, ''), COALESCE(b.postal_code, ''), b.latitude, b.longitude,
			       b.completed_at, b.created_at,
			       to_jsonb(s), to_jsonb(d), to_jsonb(c)
			FROM bookings b
			LEFT JOIN services s ON s.id = b.service_id
			LEFT JOIN detailers d ON d.id = b.detailer_id
			LEFT JOIN cars c ON c.id = b.car_id
			WHERE b.user_id = $1
			ORDER BY b.created_at DESC
		`, userID)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var r readmodel.RawBookingRow
			if err := rows.Scan(
				&r.ID, &r.ReceiptCode, &r.UserID,
				&r.ServiceID, &r.DetailerID, &r.CarID, &r.Status,
				&r.ScheduledDate, &r.ScheduledTimeStart, &r.ScheduledTimeEnd,
				&r.ServicePrice, &r.AddonsTotal, &r.TaxAmount, &r.TotalAmount,
				&r.AddressLine1, &r.AddressLine2, &r.City,
				&r.Province, &r.PostalCode, &r.Latitude, &r.Longitude,
				&r.CompletedAt, &r.CreatedAt,
				&r.Service, &r.Detailer, &r.Car,
			); err != nil {
				return err
			}
			out = append(out, r)
		}
		return rows.Err()
	})
	return out, err
}

// BookingStatus reads one booking's status as visible to the caller.
func (b *Backend) BookingStatus(ctx context.Context, bookingID string) (model.BookingStatus, error) {
	var status string
	err := b.inSession(ctx, "bookings.status", func(ctx context.Context, tx pgx.Tx) error {
		return tx.QueryRow(ctx, `SELECT status::text FROM bookings WHERE id = $1`, bookingID).Scan(&status)
	})
	if isNoRows(err) {
		return "", apperr.NotFound("booking not found")
	}
	return model.BookingStatus(status), err
}

// BusyBookings lists a detailer's non-cancelled bookings on day. Only times are read.
func (b *Backend) BusyBookings(ctx context.Context, detailerID string, day time.Time) ([]model.Booking, error) {
	var out []model.Booking
	err := b.inService(ctx, "bookings.busy", func(ctx context.Context) error {
		rows, err := b.pool.Query(ctx, `
			SELECT id::text, status::text, scheduled_date, scheduled_time_start::text, scheduled_time_end::text
			FROM bookings
			WHERE detailer_id = $1
			  AND scheduled_date = $2::date
			  AND status NOT IN ('cancelled', 'no_show')
			ORDER BY scheduled_time_start
		`, detailerID, day.Format("2006-01-02"))
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var (
				bk         model.Booking
				status     string
				date       *time.Time
				start, end *string
			)
			if err := rows.Scan(&bk.ID, &status, &date, &start, &end); err != nil {
				return err
			}
			bk.Status = model.BookingStatus(status)
			bk.ScheduledDate = date
			if bk.ScheduledTimeStart, err = optionalTime(start); err != nil {
				return err
			}
			if bk.ScheduledTimeEnd, err = optionalTime(end); err != nil {
				return err
			}
			out = append(out, bk)
		}
		return rows.Err()
	})
	return out, err
}

func optionalTime(s *string) (*model.TimeOfDay, error) {
	if s == nil || *s == "" {
		return nil, nil
	}
	t, err := model.ParseTimeOfDay(*s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
