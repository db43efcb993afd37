package pgstore

import (
	"context"

	"github.com/pkg/errors"
)

func (s *Storage) initSchema(ctx context.Context) error {
	stmts := []string{
		`
CREATE TABLE IF NOT EXISTS shops (
  id BIGSERIAL PRIMARY KEY,
  shop_domain TEXT NOT NULL,
  access_token TEXT NOT NULL DEFAULT '',
  customer_number TEXT NOT NULL DEFAULT '',
  password TEXT NOT NULL DEFAULT '',
  identity_type INT NOT NULL DEFAULT 1,
  client_id TEXT NOT NULL DEFAULT '',
  client_secret TEXT NOT NULL DEFAULT '',
  order_client_id TEXT NOT NULL DEFAULT '',
  order_client_secret TEXT NOT NULL DEFAULT '',
  carrier_customer_id TEXT NOT NULL DEFAULT '',
  installed_at TIMESTAMPTZ NOT NULL,
  updated_at TIMESTAMPTZ NOT NULL,
  UNIQUE (shop_domain)
)`,
		`
CREATE TABLE IF NOT EXISTS shipments (
  id BIGSERIAL PRIMARY KEY,
  order_id TEXT NOT NULL,
  shop_domain TEXT NOT NULL,
  courier TEXT NOT NULL,
  reference_id TEXT NOT NULL DEFAULT '',
  tracking_number TEXT NOT NULL DEFAULT '',
  barcode TEXT NOT NULL DEFAULT '',
  label_url TEXT NOT NULL DEFAULT '',
  status TEXT NOT NULL,
  last_checked_at TIMESTAMPTZ NULL,
  next_check_at TIMESTAMPTZ NOT NULL,
  check_fail_count INT NOT NULL DEFAULT 0,
  last_error TEXT NULL,
  created_at TIMESTAMPTZ NOT NULL,
  updated_at TIMESTAMPTZ NOT NULL,
  UNIQUE (order_id)
)`,
		`CREATE INDEX IF NOT EXISTS idx_shipments_next_check_at ON shipments(next_check_at)`,
		`CREATE INDEX IF NOT EXISTS idx_shipments_shop_domain ON shipments(shop_domain)`,
		`
CREATE TABLE IF NOT EXISTS returns (
  id BIGSERIAL PRIMARY KEY,
  return_id TEXT NOT NULL,
  shop_domain TEXT NOT NULL,
  reason TEXT NOT NULL DEFAULT '',
  tracking_number TEXT NOT NULL DEFAULT '',
  label_url TEXT NOT NULL DEFAULT '',
  status TEXT NOT NULL,
  created_at TIMESTAMPTZ NOT NULL,
  updated_at TIMESTAMPTZ NOT NULL,
  UNIQUE (return_id)
)`,
	}

	for _, q := range stmts {
		if _, err := s.db.Exec(ctx, q); err != nil {
			return errors.Wrap(err, "init schema")
		}
	}
	return nil
}
