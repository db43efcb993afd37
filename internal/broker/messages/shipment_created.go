package messages

import "time"

// ShipmentCreated is published after a carrier shipment is registered
// for a platform order. Key: order id.
type ShipmentCreated struct {
	OrderID        string    `json:"order_id"`
	ShopDomain     string    `json:"shop_domain"`
	Courier        string    `json:"courier"`
	TrackingNumber string    `json:"tracking_number"`
	Barcode        string    `json:"barcode,omitempty"`
	LabelURL       string    `json:"label_url,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}
