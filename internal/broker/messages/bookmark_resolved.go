package messages

import "time"

// BookmarkResolved публикуется воркером после успешного бэкфила закладки.
// API по этому сообщению сбрасывает кэш посылки.
type BookmarkResolved struct {
	BookmarkID  uint64    `json:"bookmark_id"`
	UserID      uint64    `json:"user_id"`
	ShipmentID  uint64    `json:"shipment_id"`
	TrackNumber string    `json:"track_number"`
	ResolvedAt  time.Time `json:"resolved_at"`
}
