package pgshelf

import (
	"context"

	"github.com/BearBump/TrackShelf/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
)

// ArchiveBookmark переносит закладку в архив: вставка архивной записи со
// снимком истории и удаление живой закладки в одной транзакции. Перенос
// либо происходит целиком, либо не происходит вовсе.
func (s *Storage) ArchiveBookmark(ctx context.Context, entry *models.ArchiveEntry, bookmarkID uint64) (uint64, error) {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return 0, errors.Wrap(err, "begin tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var archiveID uint64
	err = tx.QueryRow(ctx, `
INSERT INTO archive_entries (user_id, description, track_number, received_at)
VALUES ($1,$2,$3,$4)
RETURNING id
`, entry.UserID, entry.Description, entry.TrackNumber, entry.ReceivedAt.UTC()).Scan(&archiveID)
	if err != nil {
		return 0, errors.Wrap(err, "insert archive entry")
	}

	for _, h := range entry.History {
		if _, err := tx.Exec(ctx, `
INSERT INTO archive_history (archive_id, status_id, event_date) VALUES ($1,$2,$3)
`, archiveID, h.StatusID, h.Date.UTC()); err != nil {
			return 0, errors.Wrap(err, "insert archive history entry")
		}
	}

	tag, err := tx.Exec(ctx, `DELETE FROM bookmarks WHERE id = $1 AND user_id = $2`, bookmarkID, entry.UserID)
	if err != nil {
		return 0, errors.Wrap(err, "delete bookmark")
	}
	if tag.RowsAffected() == 0 {
		// Закладку уже увели (конкурентное подтверждение) — откатываемся,
		// иначе получим копию вместо переноса.
		return 0, models.ErrNotFound
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, errors.Wrap(err, "commit tx")
	}
	return archiveID, nil
}

// ListArchive возвращает окно архива в порядке добавления и общий размер архива.
func (s *Storage) ListArchive(ctx context.Context, userID uint64, offset, limit int) ([]*models.ArchiveEntry, int, error) {
	var total int
	if err := s.db.QueryRow(ctx, `SELECT count(*) FROM archive_entries WHERE user_id = $1`, userID).Scan(&total); err != nil {
		return nil, 0, errors.Wrap(err, "count archive")
	}

	rows, err := s.db.Query(ctx, `
SELECT id, user_id, description, track_number, received_at
FROM archive_entries
WHERE user_id = $1
ORDER BY id ASC
LIMIT $2 OFFSET $3
`, userID, limit, offset)
	if err != nil {
		return nil, 0, errors.Wrap(err, "select archive")
	}

	var out []*models.ArchiveEntry
	for rows.Next() {
		var e models.ArchiveEntry
		if err := rows.Scan(&e.ID, &e.UserID, &e.Description, &e.TrackNumber, &e.ReceivedAt); err != nil {
			rows.Close()
			return nil, 0, errors.Wrap(err, "scan archive entry")
		}
		out = append(out, &e)
	}
	err = rows.Err()
	rows.Close()
	if err != nil {
		return nil, 0, errors.Wrap(err, "rows")
	}

	for _, e := range out {
		if err := s.loadArchiveHistory(ctx, e); err != nil {
			return nil, 0, err
		}
	}
	return out, total, nil
}

func (s *Storage) loadArchiveHistory(ctx context.Context, e *models.ArchiveEntry) error {
	rows, err := s.db.Query(ctx, `
SELECT status_id, event_date
FROM archive_history
WHERE archive_id = $1
ORDER BY event_date ASC, id ASC
`, e.ID)
	if err != nil {
		return errors.Wrap(err, "select archive history")
	}
	defer rows.Close()

	for rows.Next() {
		var h models.HistoryEntry
		if err := rows.Scan(&h.StatusID, &h.Date); err != nil {
			return errors.Wrap(err, "scan archive history entry")
		}
		e.History = append(e.History, h)
	}
	if rows.Err() != nil {
		return errors.Wrap(rows.Err(), "rows")
	}
	return nil
}
