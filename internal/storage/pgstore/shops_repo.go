package pgstore

import (
	"context"
	"time"

	"github.com/DenizBir/KargoGate/internal/errs"
	"github.com/DenizBir/KargoGate/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
)

const shopColumns = `
  id, shop_domain, access_token,
  customer_number, password, identity_type,
  client_id, client_secret,
  order_client_id, order_client_secret,
  carrier_customer_id,
  installed_at, updated_at`

// UpsertShop keeps one credential record per shop domain. Empty incoming
// fields do not wipe stored values, so partial updates (token exchange
// alone, carrier credentials alone) are safe.
func (s *Storage) UpsertShop(ctx context.Context, in models.ShopUpsertInput) (*models.Shop, error) {
	now := time.Now().UTC()

	var id uint64
	err := s.db.QueryRow(ctx, `
INSERT INTO shops (
  shop_domain, access_token,
  customer_number, password, identity_type,
  client_id, client_secret,
  order_client_id, order_client_secret,
  carrier_customer_id,
  installed_at, updated_at
)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$11)
ON CONFLICT (shop_domain)
DO UPDATE SET
  access_token        = COALESCE(NULLIF(EXCLUDED.access_token, ''), shops.access_token),
  customer_number     = COALESCE(NULLIF(EXCLUDED.customer_number, ''), shops.customer_number),
  password            = COALESCE(NULLIF(EXCLUDED.password, ''), shops.password),
  identity_type       = CASE WHEN EXCLUDED.identity_type > 0 THEN EXCLUDED.identity_type ELSE shops.identity_type END,
  client_id           = COALESCE(NULLIF(EXCLUDED.client_id, ''), shops.client_id),
  client_secret       = COALESCE(NULLIF(EXCLUDED.client_secret, ''), shops.client_secret),
  order_client_id     = COALESCE(NULLIF(EXCLUDED.order_client_id, ''), shops.order_client_id),
  order_client_secret = COALESCE(NULLIF(EXCLUDED.order_client_secret, ''), shops.order_client_secret),
  carrier_customer_id = COALESCE(NULLIF(EXCLUDED.carrier_customer_id, ''), shops.carrier_customer_id),
  updated_at          = EXCLUDED.updated_at
RETURNING id
`, in.ShopDomain, in.AccessToken,
		in.CustomerNumber, in.Password, in.IdentityType,
		in.ClientID, in.ClientSecret,
		in.OrderClientID, in.OrderClientSecret,
		in.CarrierCustomerID, now).Scan(&id)
	if err != nil {
		return nil, errors.Wrap(err, "upsert shop")
	}

	return s.GetShopByDomain(ctx, in.ShopDomain)
}

func (s *Storage) GetShopByDomain(ctx context.Context, shopDomain string) (*models.Shop, error) {
	row := s.db.QueryRow(ctx, `SELECT `+shopColumns+` FROM shops WHERE shop_domain = $1`, shopDomain)

	var sh models.Shop
	err := row.Scan(
		&sh.ID, &sh.ShopDomain, &sh.AccessToken,
		&sh.CustomerNumber, &sh.Password, &sh.IdentityType,
		&sh.ClientID, &sh.ClientSecret,
		&sh.OrderClientID, &sh.OrderClientSecret,
		&sh.CarrierCustomerID,
		&sh.InstalledAt, &sh.UpdatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, errs.NotFound("shop not found: %s", shopDomain)
	}
	if err != nil {
		return nil, errors.Wrap(err, "select shop")
	}
	return &sh, nil
}
