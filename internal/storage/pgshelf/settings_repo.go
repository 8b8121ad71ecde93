package pgshelf

import (
	"context"

	"github.com/BearBump/TrackShelf/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
)

func (s *Storage) GetSettings(ctx context.Context) (*models.Settings, error) {
	var st models.Settings
	err := s.db.QueryRow(ctx, `
SELECT video_link, warehouse_address, whatsapp_number, about_us_text, prohibited_items_text,
       price, currency, referral_bonus_percent, cargo_responsibility_text, delivery_time_text
FROM settings WHERE id = 1
`).Scan(
		&st.VideoLink, &st.WarehouseAddress, &st.WhatsappNumber, &st.AboutUsText, &st.ProhibitedItemsText,
		&st.Price, &st.Currency, &st.ReferralBonusPercent, &st.CargoResponsibilityText, &st.DeliveryTimeText,
	)
	if err == pgx.ErrNoRows {
		// Настройки ещё не сохранялись — отдаём значения по умолчанию.
		return &models.Settings{ReferralBonusPercent: 4}, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "select settings")
	}
	return &st, nil
}

func (s *Storage) UpdateSettings(ctx context.Context, st *models.Settings) error {
	_, err := s.db.Exec(ctx, `
INSERT INTO settings (
  id, video_link, warehouse_address, whatsapp_number, about_us_text, prohibited_items_text,
  price, currency, referral_bonus_percent, cargo_responsibility_text, delivery_time_text
)
VALUES (1,$1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
ON CONFLICT (id) DO UPDATE SET
  video_link = EXCLUDED.video_link,
  warehouse_address = EXCLUDED.warehouse_address,
  whatsapp_number = EXCLUDED.whatsapp_number,
  about_us_text = EXCLUDED.about_us_text,
  prohibited_items_text = EXCLUDED.prohibited_items_text,
  price = EXCLUDED.price,
  currency = EXCLUDED.currency,
  referral_bonus_percent = EXCLUDED.referral_bonus_percent,
  cargo_responsibility_text = EXCLUDED.cargo_responsibility_text,
  delivery_time_text = EXCLUDED.delivery_time_text
`, st.VideoLink, st.WarehouseAddress, st.WhatsappNumber, st.AboutUsText, st.ProhibitedItemsText,
		st.Price, st.Currency, st.ReferralBonusPercent, st.CargoResponsibilityText, st.DeliveryTimeText)
	return errors.Wrap(err, "upsert settings")
}
