package pgstore

import (
	"context"
	"time"

	"github.com/DenizBir/KargoGate/internal/errs"
	"github.com/DenizBir/KargoGate/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
)

const shipmentColumns = `
  id, order_id, shop_domain, courier, reference_id,
  tracking_number, barcode, label_url, status,
  last_checked_at, next_check_at, check_fail_count, last_error,
  created_at, updated_at`

// UpsertShipment is keyed by order id: webhook redeliveries update the
// existing record instead of appending a duplicate.
func (s *Storage) UpsertShipment(ctx context.Context, in models.ShipmentUpsertInput) (*models.Shipment, error) {
	now := time.Now().UTC()
	status := in.Status
	if status == "" {
		status = models.ShipmentStatusCreated
	}

	var id uint64
	err := s.db.QueryRow(ctx, `
INSERT INTO shipments (
  order_id, shop_domain, courier, reference_id,
  tracking_number, barcode, label_url, status,
  next_check_at, created_at, updated_at
)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$10)
ON CONFLICT (order_id)
DO UPDATE SET
  reference_id    = EXCLUDED.reference_id,
  tracking_number = EXCLUDED.tracking_number,
  barcode         = EXCLUDED.barcode,
  label_url       = EXCLUDED.label_url,
  status          = EXCLUDED.status,
  updated_at      = EXCLUDED.updated_at
RETURNING id
`, in.OrderID, in.ShopDomain, in.Courier, in.ReferenceID,
		in.TrackingNumber, in.Barcode, in.LabelURL, status,
		now, now).Scan(&id)
	if err != nil {
		return nil, errors.Wrap(err, "upsert shipment")
	}

	return s.GetShipmentByOrderID(ctx, in.OrderID)
}

func (s *Storage) GetShipmentByOrderID(ctx context.Context, orderID string) (*models.Shipment, error) {
	row := s.db.QueryRow(ctx, `SELECT `+shipmentColumns+` FROM shipments WHERE order_id = $1`, orderID)
	sh, err := scanShipment(row)
	if err == pgx.ErrNoRows {
		return nil, errs.NotFound("shipment not found for order %s", orderID)
	}
	if err != nil {
		return nil, errors.Wrap(err, "select shipment")
	}
	return sh, nil
}

func (s *Storage) ListShipmentsByShop(ctx context.Context, shopDomain string, limit, offset int) ([]*models.Shipment, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := s.db.Query(ctx, `
SELECT `+shipmentColumns+`
FROM shipments
WHERE shop_domain = $1
ORDER BY created_at DESC
LIMIT $2 OFFSET $3
`, shopDomain, limit, offset)
	if err != nil {
		return nil, errors.Wrap(err, "select shipments")
	}
	defer rows.Close()

	var out []*models.Shipment
	for rows.Next() {
		sh, err := scanShipment(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan shipment")
		}
		out = append(out, sh)
	}
	return out, errors.Wrap(rows.Err(), "rows")
}

// ShipmentStatusUpdate is one applied status-check result, either a new
// carrier status or a recorded failure.
type ShipmentStatusUpdate struct {
	OrderID     string
	CheckedAt   time.Time
	Status      string
	NextCheckAt time.Time
	Error       *string
}

func (s *Storage) ApplyShipmentStatus(ctx context.Context, upd ShipmentStatusUpdate) error {
	if upd.Error != nil {
		_, err := s.db.Exec(ctx, `
UPDATE shipments SET
  last_checked_at = $2,
  next_check_at = $3,
  check_fail_count = check_fail_count + 1,
  last_error = $4,
  updated_at = now()
WHERE order_id = $1
`, upd.OrderID, upd.CheckedAt, upd.NextCheckAt, *upd.Error)
		return errors.Wrap(err, "apply shipment check failure")
	}

	_, err := s.db.Exec(ctx, `
UPDATE shipments SET
  status = COALESCE(NULLIF($2, ''), status),
  last_checked_at = $3,
  next_check_at = $4,
  check_fail_count = 0,
  last_error = NULL,
  updated_at = now()
WHERE order_id = $1
`, upd.OrderID, upd.Status, upd.CheckedAt, upd.NextCheckAt)
	return errors.Wrap(err, "apply shipment status")
}

// ClaimDueShipments picks undelivered shipments due for a status check
// and leases them so concurrent workers do not double-poll.
// SELECT ... FOR UPDATE SKIP LOCKED, same trick as any outbox.
func (s *Storage) ClaimDueShipments(ctx context.Context, now time.Time, limit int, lease time.Duration) ([]*models.Shipment, error) {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, errors.Wrap(err, "begin tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	rows, err := tx.Query(ctx, `
SELECT `+shipmentColumns+`
FROM shipments
WHERE next_check_at <= $1
  AND status <> $2
  AND tracking_number <> ''
ORDER BY next_check_at ASC
LIMIT $3
FOR UPDATE SKIP LOCKED
`, now.UTC(), models.ShipmentStatusDelivered, limit)
	if err != nil {
		return nil, errors.Wrap(err, "select due shipments")
	}

	var picked []*models.Shipment
	for rows.Next() {
		sh, err := scanShipment(rows)
		if err != nil {
			rows.Close()
			return nil, errors.Wrap(err, "scan shipment")
		}
		picked = append(picked, sh)
	}
	rows.Close()
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}

	leaseUntil := now.Add(lease).UTC()
	for _, sh := range picked {
		if _, err := tx.Exec(ctx, `UPDATE shipments SET next_check_at = $2 WHERE id = $1`, sh.ID, leaseUntil); err != nil {
			return nil, errors.Wrap(err, "lease shipment")
		}
		sh.NextCheckAt = leaseUntil
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, errors.Wrap(err, "commit tx")
	}
	return picked, nil
}

func scanShipment(row pgx.Row) (*models.Shipment, error) {
	var sh models.Shipment
	var lastCheckedAt *time.Time
	var lastError *string
	err := row.Scan(
		&sh.ID, &sh.OrderID, &sh.ShopDomain, &sh.Courier, &sh.ReferenceID,
		&sh.TrackingNumber, &sh.Barcode, &sh.LabelURL, &sh.Status,
		&lastCheckedAt, &sh.NextCheckAt, &sh.CheckFailCount, &lastError,
		&sh.CreatedAt, &sh.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	sh.LastCheckedAt = lastCheckedAt
	sh.LastError = lastError
	return &sh, nil
}
