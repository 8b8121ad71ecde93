package models

import "time"

// Нормализованные коды статусов (можно расширять).
const (
	StatusCodeCreated        = "CREATED"
	StatusCodeInTransit      = "IN_TRANSIT"
	StatusCodeArrived        = "ARRIVED"
	StatusCodeReadyForPickup = "READY_FOR_PICKUP"
	StatusCodeDelivered      = "DELIVERED"
)

// UnknownStatusText подставляется вместо текста удалённого статуса.
const UnknownStatusText = "unknown status"

type Shipment struct {
	ID          uint64
	TrackNumber string
	Status      string
	Contact     string
	Price       *string
	Weight      *string
	History     []HistoryEntry
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// HistoryEntry ссылается на статус по id. Статус может быть удалён —
// резолв истории обязан это пережить.
type HistoryEntry struct {
	StatusID uint64
	Date     time.Time
}

type Status struct {
	ID         uint64
	Code       string
	StatusText string
}
