package messages

import "time"

// ShipmentStatusChanged carries one status-check result from the worker
// to the API consumer, which applies it to storage. Key: order id.
type ShipmentStatusChanged struct {
	OrderID   string    `json:"order_id"`
	CheckedAt time.Time `json:"checked_at"`

	Status      string `json:"status,omitempty"`
	StatusRaw   string `json:"status_raw,omitempty"`
	Description string `json:"description,omitempty"`

	NextCheckAt time.Time `json:"next_check_at"`

	Error *string `json:"error,omitempty"`
}
