package carrier

import (
	"context"
	"encoding/json"
	"time"
)

// Credentials is the per-merchant MNG credential set. The identity pair
// authenticates the token endpoint, the order pair the command APIs.
type Credentials struct {
	CustomerNumber string
	Password       string
	IdentityType   int

	ClientID     string
	ClientSecret string

	OrderClientID     string
	OrderClientSecret string
}

// Token is a carrier bearer token with its explicit expiry. A token is
// never used past ExpiresAt.
type Token struct {
	JWT       string
	ExpiresAt time.Time
}

type City struct {
	Code int    `json:"code"`
	Name string `json:"name"`
}

type District struct {
	Code int    `json:"code"`
	Name string `json:"name"`
}

// Order is the order block of createOrder / createReturnOrder requests.
type Order struct {
	ReferenceID          string  `json:"referenceId"`
	Barcode              string  `json:"barcode"`
	BillOfLadingID       string  `json:"billOfLandingId"`
	IsCOD                int     `json:"isCOD"`
	CODAmount            float64 `json:"codAmount"`
	ShipmentServiceType  int     `json:"shipmentServiceType"`
	PackagingType        int     `json:"packagingType"`
	Content              string  `json:"content"`
	SMSPreference1       int     `json:"smsPreference1"`
	SMSPreference2       int     `json:"smsPreference2"`
	SMSPreference3       int     `json:"smsPreference3"`
	PaymentType          int     `json:"paymentType"`
	DeliveryType         int     `json:"deliveryType"`
	Description          string  `json:"description"`
	MarketplaceShortCode string  `json:"marketPlaceShortCode"`
	MarketplaceSaleCode  string  `json:"marketPlaceSaleCode"`
	PudoID               string  `json:"pudoId"`
}

type OrderPiece struct {
	Barcode string `json:"barcode"`
	Desi    int    `json:"desi"`
	Kg      int    `json:"kg"`
	Content string `json:"content"`
}

// Recipient is the carrier-side recipient shape. Either CustomerID /
// RefCustomerID are set and every postal field is empty, or the other
// way around.
type Recipient struct {
	CustomerID    string `json:"customerId"`
	RefCustomerID string `json:"refCustomerId"`

	CityCode     int    `json:"cityCode"`
	CityName     string `json:"cityName"`
	DistrictCode int    `json:"districtCode"`
	DistrictName string `json:"districtName"`
	Address      string `json:"address"`
	FullName     string `json:"fullName"`
	Email        string `json:"email"`
	MobilePhone  string `json:"mobilePhoneNumber"`
	HomePhone    string `json:"homePhoneNumber"`
}

type OrderRequest struct {
	Order          Order        `json:"order"`
	OrderPieceList []OrderPiece `json:"orderPieceList"`
	Recipient      Recipient    `json:"recipient"`
}

// OrderResponse echoes the created order. The carrier does not return the
// tracking number here; that comes from createbarcode.
type OrderResponse struct {
	OrderInvoiceID     string `json:"orderInvoiceId"`
	OrderInvoiceDetail string `json:"orderInvoiceDetailId"`
	ShipperBranchCode  string `json:"shipperBranchCode"`
}

type BarcodeRequest struct {
	ReferenceID    string       `json:"referenceId"`
	BillOfLadingID string       `json:"billOfLandingId"`
	OrderPieceList []OrderPiece `json:"orderPieceList"`
}

type BarcodeValue struct {
	Value string `json:"value"`
}

type BarcodeResponse struct {
	ShipmentID string         `json:"shipmentId"`
	Barcodes   []BarcodeValue `json:"barcodes"`
	LabelURL   string         `json:"labelUrl"`
}

// ReturnOrderRequest ships FROM the end customer back TO the merchant's
// registered carrier customer id (the shipper block).
type ReturnOrderRequest struct {
	Order          Order        `json:"order"`
	OrderPieceList []OrderPiece `json:"orderPieceList"`
	Shipper        Recipient    `json:"shipper"`
}

type ReturnOrderResponse struct {
	OrderInvoiceID      string `json:"orderInvoiceId"`
	ReturnOrderLabelURL string `json:"returnOrderLabelURL"`
}

// StatusResult is a normalized shipment status snapshot from the
// carrier's query API.
type StatusResult struct {
	Status      string
	StatusRaw   string
	Description string
	CheckedAt   time.Time
}

type Client interface {
	GetToken(ctx context.Context, creds Credentials) (Token, error)

	CreateOrder(ctx context.Context, creds Credentials, token string, req OrderRequest) (OrderResponse, error)
	CreateBarcode(ctx context.Context, creds Credentials, token string, req BarcodeRequest) (BarcodeResponse, error)

	CreateReturnOrder(ctx context.Context, creds Credentials, token string, req ReturnOrderRequest) (ReturnOrderResponse, error)
	CheckReturnOrder(ctx context.Context, creds Credentials, token string, criteria json.RawMessage) (json.RawMessage, error)

	GetCities(ctx context.Context) ([]City, error)
	GetDistricts(ctx context.Context, cityCode int) ([]District, error)

	GetShipmentStatus(ctx context.Context, creds Credentials, token, referenceID string) (StatusResult, error)
}
