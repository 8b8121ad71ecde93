package models

import "time"

type ResolvedHistoryEntry struct {
	StatusID   uint64    `json:"statusId"`
	Date       time.Time `json:"date"`
	StatusText string    `json:"statusText"`
}

// ShipmentDetails заполняется только для зарезолвленных закладок.
type ShipmentDetails struct {
	ShipmentID uint64                 `json:"shipmentId"`
	Status     string                 `json:"status"`
	History    []ResolvedHistoryEntry `json:"history"`
	Price      *string                `json:"price,omitempty"`
	Weight     *string                `json:"weight,omitempty"`
}

// BookmarkView — один элемент выдачи закладок. Details == nil означает
// "посылка не найдена" (unresolved); форма ответа при этом не меняется.
type BookmarkView struct {
	TrackNumber    string           `json:"trackNumber"`
	Description    string           `json:"description"`
	CreatedAt      time.Time        `json:"createdAt"`
	ReadyForPickup bool             `json:"readyForPickup"`
	Details        *ShipmentDetails `json:"details,omitempty"`
}

type BookmarkPage struct {
	Items          []BookmarkView `json:"items"`
	TotalPages     int            `json:"totalPages"`
	TotalBookmarks int            `json:"totalBookmarks"`
}

type ArchiveEntryView struct {
	TrackNumber string                 `json:"trackNumber"`
	Description string                 `json:"description"`
	ReceivedAt  time.Time              `json:"receivedAt"`
	History     []ResolvedHistoryEntry `json:"history,omitempty"`
}

type ArchivePage struct {
	Archive       []ArchiveEntryView `json:"archive"`
	TotalPages    int                `json:"totalPages"`
	TotalArchives int                `json:"totalArchives"`
}

// Settings — административные настройки сервиса (единственная строка в БД).
type Settings struct {
	VideoLink              string  `json:"videoLink"`
	WarehouseAddress       string  `json:"warehouseAddress"`
	WhatsappNumber         string  `json:"whatsappNumber"`
	AboutUsText            string  `json:"aboutUsText"`
	ProhibitedItemsText    string  `json:"prohibitedItemsText"`
	Price                  string  `json:"price"`
	Currency               string  `json:"currency"`
	ReferralBonusPercent   float64 `json:"referralBonusPercent"`
	CargoResponsibilityText string `json:"cargoResponsibilityText"`
	DeliveryTimeText       string  `json:"deliveryTimeText"`
}
