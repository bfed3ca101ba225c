package storage

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/peeyushmeher/cleanswift/services/booking-service/internal/model"
)

func (b *Backend) Services(ctx context.Context) ([]model.Service, error) {
	var out []model.Service
	err := b.inService(ctx, "services.list", func(ctx context.Context) error {
		rows, err := b.pool.Query(ctx, `
			SELECT id::text, name, COALESCE(description, ''), price::float8,
			       COALESCE(duration_minutes, 0), is_active
			FROM services
			WHERE is_active
			ORDER BY price, name
		`)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var s model.Service
			if err := rows.Scan(&s.ID, &s.Name, &s.Description, &s.Price, &s.DurationMinutes, &s.IsActive); err != nil {
				return err
			}
			out = append(out, s)
		}
		return rows.Err()
	})
	return out, err
}

func (b *Backend) ServiceAddons(ctx context.Context) ([]model.ServiceAddon, error) {
	var out []model.ServiceAddon
	err := b.inService(ctx, "service_addons.list", func(ctx context.Context) error {
		rows, err := b.pool.Query(ctx, `
			SELECT id::text, name, price::float8, is_active
			FROM service_addons
			WHERE is_active
			ORDER BY name
		`)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var a model.ServiceAddon
			if err := rows.Scan(&a.ID, &a.Name, &a.Price, &a.IsActive); err != nil {
				return err
			}
			out = append(out, a)
		}
		return rows.Err()
	})
	return out, err
}

// Detailers lists active detailers for customer browsing.
func (b *Backend) Detailers(ctx context.Context) ([]model.Detailer, error) {
	var out []model.Detailer
	err := b.inService(ctx, "detailers.list", func(ctx context.Context) error {
		rows, err := b.pool.Query(ctx, `
			SELECT id::text, full_name, COALESCE(avatar_url, ''), COALESCE(rating, 0)::float8,
			       COALESCE(review_count, 0), COALESCE(years_experience, 0), is_active,
			       COALESCE(bio, ''), COALESCE(specialties, '{}')
			FROM detailers
			WHERE is_active
			ORDER BY rating DESC NULLS LAST, full_name
		`)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var d model.Detailer
			if err := rows.Scan(&d.ID, &d.FullName, &d.AvatarURL, &d.Rating, &d.ReviewCount, &d.YearsExperience, &d.IsActive, &d.Bio, &d.Specialties); err != nil {
				return err
			}
			out = append(out, d)
		}
		return rows.Err()
	})
	return out, err
}

// AvailabilityWindows reads a detailer's published weekly windows.
func (b *Backend) AvailabilityWindows(ctx context.Context, detailerID string) ([]model.AvailabilityWindow, error) {
	var out []model.AvailabilityWindow
	err := b.inService(ctx, "detailer_availability.list", func(ctx context.Context) error {
		rows, err := b.pool.Query(ctx, `
			SELECT id::text, detailer_id::text, day_of_week, start_time::text, end_time::text, is_active
			FROM detailer_availability
			WHERE detailer_id = $1
			ORDER BY day_of_week, start_time
		`, detailerID)
		if err != nil {
			return err
		}
		defer rows.Close()
		out, err = scanWindows(rows, true)
		return err
	})
	return out, err
}

func (b *Backend) CarsForUser(ctx context.Context, userID string) ([]model.Car, error) {
	var out []model.Car
	err := b.inSession(ctx, "cars.for_user", func(ctx context.Context, tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `
			SELECT id::text, make, model, year, COALESCE(license_plate, ''), COALESCE(color, '')
			FROM cars
			WHERE user_id = $1
			ORDER BY created_at DESC
		`, userID)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var c model.Car
			if err := rows.Scan(&c.ID, &c.Make, &c.Model, &c.Year, &c.LicensePlate, &c.Color); err != nil {
				return err
			}
			out = append(out, c)
		}
		return rows.Err()
	})
	return out, err
}

func scanWindows(rows pgx.Rows, withIDs bool) ([]model.AvailabilityWindow, error) {
	var out []model.AvailabilityWindow
	for rows.Next() {
		var (
			w          model.AvailabilityWindow
			start, end string
			err        error
		)
		if withIDs {
			err = rows.Scan(&w.ID, &w.DetailerID, &w.DayOfWeek, &start, &end, &w.IsActive)
		} else {
			err = rows.Scan(&w.DayOfWeek, &start, &end, &w.IsActive)
		}
		if err != nil {
			return nil, err
		}
		if w.Start, err = model.ParseTimeOfDay(start); err != nil {
			return nil, err
		}
		if w.End, err = model.ParseTimeOfDay(end); err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}
