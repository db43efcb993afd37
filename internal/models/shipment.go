package models

import "time"

// Shipment lifecycle statuses.
const (
	ShipmentStatusCreated   = "created"
	ShipmentStatusInTransit = "in_transit"
	ShipmentStatusDelivered = "delivered"
)

// Shipment is one carrier shipment tied 1:1 to a platform order id.
// Records are upserted by order id, never deleted.
type Shipment struct {
	ID             uint64
	OrderID        string
	ShopDomain     string
	Courier        string
	ReferenceID    string
	TrackingNumber string
	Barcode        string
	LabelURL       string
	Status         string

	LastCheckedAt  *time.Time
	NextCheckAt    time.Time
	CheckFailCount int32
	LastError      *string

	CreatedAt time.Time
	UpdatedAt time.Time
}

type ShipmentUpsertInput struct {
	OrderID        string
	ShopDomain     string
	Courier        string
	ReferenceID    string
	TrackingNumber string
	Barcode        string
	LabelURL       string
	Status         string
}

// Return is a return-shipment record created through the carrier's
// return-order API.
type Return struct {
	ID             uint64
	ReturnID       string
	ShopDomain     string
	Reason         string
	TrackingNumber string
	LabelURL       string
	Status         string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
