package models

// Recipient is a tagged variant: either a carrier-registered customer id
// or a full postal profile. Exactly one side must be set; the request
// builder branches on it and geographic codes are only ever resolved for
// the postal side.
type Recipient struct {
	Customer *CustomerRef
	Postal   *PostalAddress
}

type CustomerRef struct {
	CustomerID    string
	RefCustomerID string
}

type PostalAddress struct {
	FullName     string
	Address      string
	MobilePhone  string
	Email        string
	CityName     string
	DistrictName string
}

// Valid reports whether exactly one recipient mode is populated.
func (r Recipient) Valid() bool {
	return (r.Customer != nil) != (r.Postal != nil)
}

// OrderData is the order shape handed to the shipment orchestrator,
// assembled either from a webhook payload or from the manual /shipments
// endpoint. Zero values fall back to the builder defaults.
type OrderData struct {
	ReferenceID string
	// InternalID is the fallback reference when the caller supplied none
	// (original record id, then a timestamp-derived id).
	InternalID string

	Barcode        string
	BillOfLadingID string

	IsCOD     int
	CODAmount float64

	ShipmentServiceType int
	PackagingType       int
	PaymentType         int
	DeliveryType        int

	Content     string
	Description string

	MarketplaceShortCode string
	MarketplaceSaleCode  string
	PudoID               string

	Recipient Recipient
	Pieces    []Piece
}

// Piece is one shipped parcel. Desi is the carrier's volumetric weight
// unit.
type Piece struct {
	Barcode string
	Desi    int
	Kg      int
	Content string
}
