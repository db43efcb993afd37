package pgstore

import (
	"context"
	"time"

	"github.com/DenizBir/KargoGate/internal/errs"
	"github.com/DenizBir/KargoGate/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
)

type ReturnUpsertInput struct {
	ReturnID       string
	ShopDomain     string
	Reason         string
	TrackingNumber string
	LabelURL       string
	Status         string
}

func (s *Storage) UpsertReturn(ctx context.Context, in ReturnUpsertInput) (*models.Return, error) {
	now := time.Now().UTC()
	status := in.Status
	if status == "" {
		status = models.ShipmentStatusCreated
	}

	_, err := s.db.Exec(ctx, `
INSERT INTO returns (
  return_id, shop_domain, reason,
  tracking_number, label_url, status,
  created_at, updated_at
)
VALUES ($1,$2,$3,$4,$5,$6,$7,$7)
ON CONFLICT (return_id)
DO UPDATE SET
  tracking_number = EXCLUDED.tracking_number,
  label_url       = EXCLUDED.label_url,
  status          = EXCLUDED.status,
  updated_at      = EXCLUDED.updated_at
`, in.ReturnID, in.ShopDomain, in.Reason,
		in.TrackingNumber, in.LabelURL, status, now)
	if err != nil {
		return nil, errors.Wrap(err, "upsert return")
	}

	return s.GetReturnByID(ctx, in.ReturnID)
}

func (s *Storage) GetReturnByID(ctx context.Context, returnID string) (*models.Return, error) {
	var r models.Return
	err := s.db.QueryRow(ctx, `
SELECT id, return_id, shop_domain, reason, tracking_number, label_url, status, created_at, updated_at
FROM returns
WHERE return_id = $1
`, returnID).Scan(
		&r.ID, &r.ReturnID, &r.ShopDomain, &r.Reason,
		&r.TrackingNumber, &r.LabelURL, &r.Status,
		&r.CreatedAt, &r.UpdatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, errs.NotFound("return not found: %s", returnID)
	}
	if err != nil {
		return nil, errors.Wrap(err, "select return")
	}
	return &r, nil
}
