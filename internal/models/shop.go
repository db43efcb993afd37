package models

import "time"

// Shop is one onboarded merchant: Shopify access on one side, MNG
// credentials on the other. One record per shop domain.
type Shop struct {
	ID          uint64
	ShopDomain  string
	AccessToken string

	// MNG identity-scope credentials.
	CustomerNumber string
	Password       string
	IdentityType   int
	ClientID       string
	ClientSecret   string

	// MNG order-scope credentials (separate client pair on the carrier side).
	OrderClientID     string
	OrderClientSecret string

	// Carrier-registered customer id of the merchant, used as the shipper
	// reference for return shipments.
	CarrierCustomerID string

	InstalledAt time.Time
	UpdatedAt   time.Time
}

type ShopUpsertInput struct {
	ShopDomain        string
	AccessToken       string
	CustomerNumber    string
	Password          string
	IdentityType      int
	ClientID          string
	ClientSecret      string
	OrderClientID     string
	OrderClientSecret string
	CarrierCustomerID string
}
