package pgshelf

import (
	"context"
	"time"

	"github.com/BearBump/TrackShelf/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
)

func (s *Storage) GetShipmentByID(ctx context.Context, id uint64) (*models.Shipment, error) {
	var sh models.Shipment
	err := s.db.QueryRow(ctx, `
SELECT id, track_number, status, contact, price, weight, created_at, updated_at
FROM shipments
WHERE id = $1
`, id).Scan(&sh.ID, &sh.TrackNumber, &sh.Status, &sh.Contact, &sh.Price, &sh.Weight, &sh.CreatedAt, &sh.UpdatedAt)
	if err == pgx.ErrNoRows {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "select shipment")
	}

	if err := s.loadHistory(ctx, &sh); err != nil {
		return nil, err
	}
	return &sh, nil
}

// FindShipmentByTrackNumber ищет по точному совпадению нормализованного
// трек-номера (без пробелов, нижний регистр).
func (s *Storage) FindShipmentByTrackNumber(ctx context.Context, trackNumber string) (*models.Shipment, error) {
	var sh models.Shipment
	err := s.db.QueryRow(ctx, `
SELECT id, track_number, status, contact, price, weight, created_at, updated_at
FROM shipments
WHERE track_number_norm = $1
`, models.NormalizeTrackNumber(trackNumber)).Scan(
		&sh.ID, &sh.TrackNumber, &sh.Status, &sh.Contact, &sh.Price, &sh.Weight, &sh.CreatedAt, &sh.UpdatedAt)
	if err == pgx.ErrNoRows {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "select shipment by track number")
	}

	if err := s.loadHistory(ctx, &sh); err != nil {
		return nil, err
	}
	return &sh, nil
}

func (s *Storage) loadHistory(ctx context.Context, sh *models.Shipment) error {
	rows, err := s.db.Query(ctx, `
SELECT status_id, event_date
FROM shipment_history
WHERE shipment_id = $1
ORDER BY event_date ASC, id ASC
`, sh.ID)
	if err != nil {
		return errors.Wrap(err, "select shipment history")
	}
	defer rows.Close()

	for rows.Next() {
		var h models.HistoryEntry
		if err := rows.Scan(&h.StatusID, &h.Date); err != nil {
			return errors.Wrap(err, "scan history entry")
		}
		sh.History = append(sh.History, h)
	}
	if rows.Err() != nil {
		return errors.Wrap(rows.Err(), "rows")
	}
	return nil
}

// ClaimShipmentContact выставляет контакт последнего востребовавшего
// пользователя (last-writer-wins, контакт — денормализованная строка).
func (s *Storage) ClaimShipmentContact(ctx context.Context, shipmentID uint64, contact string) error {
	_, err := s.db.Exec(ctx, `
UPDATE shipments SET contact = $2, updated_at = now() WHERE id = $1 AND contact <> $2
`, shipmentID, contact)
	return errors.Wrap(err, "claim shipment contact")
}

func (s *Storage) GetStatusesByIDs(ctx context.Context, ids []uint64) (map[uint64]*models.Status, error) {
	out := make(map[uint64]*models.Status, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	rows, err := s.db.Query(ctx, `
SELECT id, code, status_text FROM statuses WHERE id = ANY($1)
`, ids)
	if err != nil {
		return nil, errors.Wrap(err, "select statuses")
	}
	defer rows.Close()

	for rows.Next() {
		var st models.Status
		if err := rows.Scan(&st.ID, &st.Code, &st.StatusText); err != nil {
			return nil, errors.Wrap(err, "scan status")
		}
		out[st.ID] = &st
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return out, nil
}

// CreateShipment используется интеграционными тестами и инструментами
// наполнения каталога; API каталог не пишет.
func (s *Storage) CreateShipment(ctx context.Context, sh *models.Shipment) (uint64, error) {
	now := time.Now().UTC()
	createdAt := sh.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return 0, errors.Wrap(err, "begin tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var id uint64
	err = tx.QueryRow(ctx, `
INSERT INTO shipments (track_number, track_number_norm, status, contact, price, weight, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
ON CONFLICT (track_number_norm) DO UPDATE SET updated_at = now()
RETURNING id
`, sh.TrackNumber, models.NormalizeTrackNumber(sh.TrackNumber), sh.Status, sh.Contact, sh.Price, sh.Weight, createdAt, now).Scan(&id)
	if err != nil {
		return 0, errors.Wrap(err, "insert shipment")
	}

	for _, h := range sh.History {
		if _, err := tx.Exec(ctx, `
INSERT INTO shipment_history (shipment_id, status_id, event_date) VALUES ($1,$2,$3)
`, id, h.StatusID, h.Date.UTC()); err != nil {
			return 0, errors.Wrap(err, "insert history entry")
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, errors.Wrap(err, "commit tx")
	}
	return id, nil
}
