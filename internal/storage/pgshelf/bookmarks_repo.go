package pgshelf

import (
	"context"
	"time"

	"github.com/BearBump/TrackShelf/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
)

// ClaimDueUnresolvedBookmarks выбирает пачку незарезолвленных закладок,
// готовых к попытке резолва, и "бронирует" их, чтобы они не попадали в
// повторную выборку, пока воркер их обрабатывает.
// Использует SELECT ... FOR UPDATE SKIP LOCKED.
func (s *Storage) ClaimDueUnresolvedBookmarks(ctx context.Context, now time.Time, limit int, lease time.Duration) ([]*models.Bookmark, error) {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, errors.Wrap(err, "begin tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	rows, err := tx.Query(ctx, `
SELECT id, user_id, track_number, track_number_norm, description, shipment_id, created_at, next_resolve_at, resolve_fail_count
FROM bookmarks
WHERE shipment_id IS NULL
  AND next_resolve_at <= $1
ORDER BY next_resolve_at ASC
LIMIT $2
FOR UPDATE SKIP LOCKED
`, now.UTC(), limit)
	if err != nil {
		return nil, errors.Wrap(err, "select due bookmarks")
	}
	picked, err := scanBookmarks(rows)
	rows.Close()
	if err != nil {
		return nil, err
	}

	leaseUntil := now.UTC().Add(lease)
	for _, b := range picked {
		if _, err := tx.Exec(ctx, `UPDATE bookmarks SET next_resolve_at = $2 WHERE id = $1`, b.ID, leaseUntil); err != nil {
			return nil, errors.Wrap(err, "lease bookmark")
		}
		b.NextResolveAt = leaseUntil
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, errors.Wrap(err, "commit tx")
	}
	return picked, nil
}

// SetBookmarkShipmentID записывает кэш резолва. Повторный вызов с тем же
// shipment_id — no-op, с другим — last-writer-wins: поле производное,
// блокировки не нужны.
func (s *Storage) SetBookmarkShipmentID(ctx context.Context, bookmarkID, shipmentID uint64) error {
	_, err := s.db.Exec(ctx, `
UPDATE bookmarks
SET shipment_id = $2, resolve_fail_count = 0
WHERE id = $1
`, bookmarkID, shipmentID)
	return errors.Wrap(err, "set bookmark shipment id")
}

func (s *Storage) MarkBookmarkResolveFailed(ctx context.Context, bookmarkID uint64, nextResolveAt time.Time) error {
	_, err := s.db.Exec(ctx, `
UPDATE bookmarks
SET resolve_fail_count = resolve_fail_count + 1, next_resolve_at = $2
WHERE id = $1
`, bookmarkID, nextResolveAt.UTC())
	return errors.Wrap(err, "mark bookmark resolve failed")
}
