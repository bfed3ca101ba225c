package storage

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/peeyushmeher/cleanswift/services/booking-service/internal/favorites"
	"github.com/peeyushmeher/cleanswift/services/booking-service/internal/model"
)

var _ favorites.Store = (*Backend)(nil)

func (b *Backend) ListFavorites(ctx context.Context, userID string) ([]model.FavoriteDetailer, error) {
	var out []model.FavoriteDetailer
	err := b.inSession(ctx, "favorite_detailers.list", func(ctx context.Context, tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `
			SELECT f.id::text, f.user_id::text, f.detailer_id::text, f.created_at,
			       d.full_name, COALESCE(d.avatar_url, ''), COALESCE(d.rating, 0)::float8,
			       COALESCE(d.review_count, 0), COALESCE(d.years_experience, 0), d.is_active
			FROM favorite_detailers f
			JOIN detailers d ON d.id = f.detailer_id
			WHERE f.user_id = $1
			ORDER BY f.created_at DESC
		`, userID)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var (
				f       model.FavoriteDetailer
				d       model.Detailer
				created time.Time
			)
			if err := rows.Scan(&f.ID, &f.UserID, &f.DetailerID, &created,
				&d.FullName, &d.AvatarURL, &d.Rating, &d.ReviewCount, &d.YearsExperience, &d.IsActive); err != nil {
				return err
			}
			d.ID = f.DetailerID
			f.CreatedAt = created
			f.Detailer = &d
			out = append(out, f)
		}
		return rows.Err()
	})
	return out, err
}

func (b *Backend) InsertFavorite(ctx context.Context, userID, detailerID string) error {
	err := b.inSession(ctx, "favorite_detailers.insert", func(ctx context.Context, tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO favorite_detailers (user_id, detailer_id)
			VALUES ($1, $2)
		`, userID, detailerID)
		return err
	})
	if isUniqueViolation(err) {
		return favorites.ErrDuplicate
	}
	return err
}

func (b *Backend) DeleteFavorite(ctx context.Context, userID, detailerID string) error {
	return b.inSession(ctx, "favorite_detailers.delete", func(ctx context.Context, tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			DELETE FROM favorite_detailers
			WHERE user_id = $1 AND detailer_id = $2
		`, userID, detailerID)
		return err
	})
}
