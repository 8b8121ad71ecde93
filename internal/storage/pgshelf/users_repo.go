package pgshelf

import (
	"context"
	"time"

	"github.com/BearBump/TrackShelf/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
)

func (s *Storage) CreateUser(ctx context.Context, phone string) (*models.User, error) {
	now := time.Now().UTC()

	var u models.User
	err := s.db.QueryRow(ctx, `
INSERT INTO users (phone, created_at)
VALUES ($1, $2)
ON CONFLICT (phone) DO UPDATE SET phone = users.phone
RETURNING id, phone, created_at
`, phone, now).Scan(&u.ID, &u.Phone, &u.CreatedAt)
	if err != nil {
		return nil, errors.Wrap(err, "insert user")
	}
	return &u, nil
}

func (s *Storage) GetUserByID(ctx context.Context, id uint64) (*models.User, error) {
	return s.getUser(ctx, `SELECT id, phone, created_at FROM users WHERE id = $1`, id)
}

func (s *Storage) GetUserByPhone(ctx context.Context, phone string) (*models.User, error) {
	return s.getUser(ctx, `SELECT id, phone, created_at FROM users WHERE phone = $1`, phone)
}

func (s *Storage) getUser(ctx context.Context, q string, arg any) (*models.User, error) {
	var u models.User
	err := s.db.QueryRow(ctx, q, arg).Scan(&u.ID, &u.Phone, &u.CreatedAt)
	if err == pgx.ErrNoRows {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "select user")
	}
	return &u, nil
}

func (s *Storage) AddBookmark(ctx context.Context, userID uint64, in models.BookmarkCreateInput) (*models.Bookmark, error) {
	now := time.Now().UTC()
	norm := models.NormalizeTrackNumber(in.TrackNumber)

	var b models.Bookmark
	// ON CONFLICT DO NOTHING + RETURNING: нет строки в ответе — значит дубль.
	err := s.db.QueryRow(ctx, `
INSERT INTO bookmarks (
  user_id, track_number, track_number_norm, description, created_at, next_resolve_at
)
VALUES ($1,$2,$3,$4,$5,$5)
ON CONFLICT (user_id, track_number_norm) DO NOTHING
RETURNING id, user_id, track_number, description, shipment_id, created_at, next_resolve_at, resolve_fail_count
`, userID, in.TrackNumber, norm, in.Description, now).Scan(
		&b.ID, &b.UserID, &b.TrackNumber, &b.Description, &b.ShipmentID,
		&b.CreatedAt, &b.NextResolveAt, &b.ResolveFailCount,
	)
	if err == pgx.ErrNoRows {
		return nil, models.ErrDuplicate
	}
	if err != nil {
		return nil, errors.Wrap(err, "insert bookmark")
	}
	return &b, nil
}

func (s *Storage) DeleteBookmark(ctx context.Context, userID uint64, trackNumber string) error {
	tag, err := s.db.Exec(ctx, `
DELETE FROM bookmarks WHERE user_id = $1 AND track_number_norm = $2
`, userID, models.NormalizeTrackNumber(trackNumber))
	if err != nil {
		return errors.Wrap(err, "delete bookmark")
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

func (s *Storage) GetBookmarkByTrackNumber(ctx context.Context, userID uint64, trackNumber string) (*models.Bookmark, error) {
	rows, err := s.db.Query(ctx, `
SELECT id, user_id, track_number, track_number_norm, description, shipment_id, created_at, next_resolve_at, resolve_fail_count
FROM bookmarks
WHERE user_id = $1 AND track_number_norm = $2
`, userID, models.NormalizeTrackNumber(trackNumber))
	if err != nil {
		return nil, errors.Wrap(err, "select bookmark")
	}
	defer rows.Close()

	bs, err := scanBookmarks(rows)
	if err != nil {
		return nil, err
	}
	if len(bs) == 0 {
		return nil, models.ErrNotFound
	}
	return bs[0], nil
}

// ListBookmarks возвращает окно списка закладок в порядке добавления
// и общее количество закладок пользователя.
func (s *Storage) ListBookmarks(ctx context.Context, userID uint64, offset, limit int) ([]*models.Bookmark, int, error) {
	var total int
	if err := s.db.QueryRow(ctx, `SELECT count(*) FROM bookmarks WHERE user_id = $1`, userID).Scan(&total); err != nil {
		return nil, 0, errors.Wrap(err, "count bookmarks")
	}

	rows, err := s.db.Query(ctx, `
SELECT id, user_id, track_number, track_number_norm, description, shipment_id, created_at, next_resolve_at, resolve_fail_count
FROM bookmarks
WHERE user_id = $1
ORDER BY id ASC
LIMIT $2 OFFSET $3
`, userID, limit, offset)
	if err != nil {
		return nil, 0, errors.Wrap(err, "select bookmarks")
	}
	defer rows.Close()

	bs, err := scanBookmarks(rows)
	if err != nil {
		return nil, 0, err
	}
	return bs, total, nil
}

func scanBookmarks(rows pgx.Rows) ([]*models.Bookmark, error) {
	var out []*models.Bookmark
	for rows.Next() {
		var b models.Bookmark
		var norm string
		if err := rows.Scan(
			&b.ID, &b.UserID, &b.TrackNumber, &norm, &b.Description,
			&b.ShipmentID, &b.CreatedAt, &b.NextResolveAt, &b.ResolveFailCount,
		); err != nil {
			return nil, errors.Wrap(err, "scan bookmark")
		}
		out = append(out, &b)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return out, nil
}
