package shipments

import (
	"github.com/DenizBir/KargoGate/internal/integrations/carrier"
	"github.com/DenizBir/KargoGate/internal/models"
)

// CredentialsFor merges a shop's stored carrier credentials over the
// config-level fallback set, field by field. Shops installed before
// per-merchant credentials existed carry empty fields and keep working
// on the fallback.
func CredentialsFor(shop *models.Shop, fallback carrier.Credentials) carrier.Credentials {
	creds := fallback
	if shop != nil {
		if shop.CustomerNumber != "" {
			creds.CustomerNumber = shop.CustomerNumber
		}
		if shop.Password != "" {
			creds.Password = shop.Password
		}
		if shop.IdentityType != 0 {
			creds.IdentityType = shop.IdentityType
		}
		if shop.ClientID != "" {
			creds.ClientID = shop.ClientID
		}
		if shop.ClientSecret != "" {
			creds.ClientSecret = shop.ClientSecret
		}
		if shop.OrderClientID != "" {
			creds.OrderClientID = shop.OrderClientID
		}
		if shop.OrderClientSecret != "" {
			creds.OrderClientSecret = shop.OrderClientSecret
		}
	}
	if creds.IdentityType == 0 {
		creds.IdentityType = 1
	}
	return creds
}
