package pgshelf

import (
	"context"

	"github.com/pkg/errors"
)

func (s *Storage) initSchema(ctx context.Context) error {
	stmts := []string{
		`
CREATE TABLE IF NOT EXISTS users (
  id BIGSERIAL PRIMARY KEY,
  phone TEXT NOT NULL,
  created_at TIMESTAMPTZ NOT NULL,
  UNIQUE (phone)
)`,
		`
CREATE TABLE IF NOT EXISTS statuses (
  id BIGSERIAL PRIMARY KEY,
  code TEXT NOT NULL,
  status_text TEXT NOT NULL,
  UNIQUE (code)
)`,
		`
CREATE TABLE IF NOT EXISTS shipments (
  id BIGSERIAL PRIMARY KEY,
  track_number TEXT NOT NULL,
  track_number_norm TEXT NOT NULL,
  status TEXT NOT NULL,
  contact TEXT NOT NULL DEFAULT '',
  price TEXT NULL,
  weight TEXT NULL,
  created_at TIMESTAMPTZ NOT NULL,
  updated_at TIMESTAMPTZ NOT NULL,
  UNIQUE (track_number_norm)
)`,
		// status_id без FK: справочник статусов может чиститься, история
		// при этом должна оставаться читаемой.
		`
CREATE TABLE IF NOT EXISTS shipment_history (
  id BIGSERIAL PRIMARY KEY,
  shipment_id BIGINT NOT NULL REFERENCES shipments(id) ON DELETE CASCADE,
  status_id BIGINT NOT NULL,
  event_date TIMESTAMPTZ NOT NULL
)`,
		`CREATE INDEX IF NOT EXISTS idx_shipment_history_shipment_id ON shipment_history(shipment_id, event_date ASC, id ASC)`,
		`
CREATE TABLE IF NOT EXISTS bookmarks (
  id BIGSERIAL PRIMARY KEY,
  user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
  track_number TEXT NOT NULL,
  track_number_norm TEXT NOT NULL,
  description TEXT NOT NULL DEFAULT '',
  shipment_id BIGINT NULL,
  created_at TIMESTAMPTZ NOT NULL,
  next_resolve_at TIMESTAMPTZ NOT NULL,
  resolve_fail_count INT NOT NULL DEFAULT 0,
  UNIQUE (user_id, track_number_norm)
)`,
		`CREATE INDEX IF NOT EXISTS idx_bookmarks_unresolved ON bookmarks(next_resolve_at) WHERE shipment_id IS NULL`,
		`
CREATE TABLE IF NOT EXISTS archive_entries (
  id BIGSERIAL PRIMARY KEY,
  user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
  description TEXT NOT NULL DEFAULT '',
  track_number TEXT NOT NULL,
  received_at TIMESTAMPTZ NOT NULL
)`,
		`CREATE INDEX IF NOT EXISTS idx_archive_entries_user_id ON archive_entries(user_id, id ASC)`,
		`
CREATE TABLE IF NOT EXISTS archive_history (
  id BIGSERIAL PRIMARY KEY,
  archive_id BIGINT NOT NULL REFERENCES archive_entries(id) ON DELETE CASCADE,
  status_id BIGINT NOT NULL,
  event_date TIMESTAMPTZ NOT NULL
)`,
		`
CREATE TABLE IF NOT EXISTS settings (
  id INT PRIMARY KEY DEFAULT 1 CHECK (id = 1),
  video_link TEXT NOT NULL DEFAULT '',
  warehouse_address TEXT NOT NULL DEFAULT '',
  whatsapp_number TEXT NOT NULL DEFAULT '',
  about_us_text TEXT NOT NULL DEFAULT '',
  prohibited_items_text TEXT NOT NULL DEFAULT '',
  price TEXT NOT NULL DEFAULT '',
  currency TEXT NOT NULL DEFAULT '',
  referral_bonus_percent DOUBLE PRECISION NOT NULL DEFAULT 4,
  cargo_responsibility_text TEXT NOT NULL DEFAULT '',
  delivery_time_text TEXT NOT NULL DEFAULT ''
)`,
		// Справочник статусов (idempotent seed).
		`
INSERT INTO statuses (code, status_text) VALUES
  ('CREATED', 'accepted at warehouse'),
  ('IN_TRANSIT', 'in transit'),
  ('ARRIVED', 'arrived at pickup point'),
  ('READY_FOR_PICKUP', 'ready for pickup'),
  ('DELIVERED', 'delivered')
ON CONFLICT (code) DO NOTHING
`,
	}

	for _, q := range stmts {
		if _, err := s.db.Exec(ctx, q); err != nil {
			return errors.Wrap(err, "init schema")
		}
	}
	return nil
}
