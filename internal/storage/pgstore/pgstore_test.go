package pgstore

import (
	"context"
	"testing"
	"time"

	"github.com/DenizBir/KargoGate/internal/errs"
	"github.com/DenizBir/KargoGate/internal/models"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func TestPGStore_RepoFlow(t *testing.T) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:15-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "admin",
			"POSTGRES_PASSWORD": "admin",
			"POSTGRES_DB":       "kargogate_test",
		},
		WaitingFor: wait.ForListeningPort("5432/tcp").WithStartupTimeout(60 * time.Second),
	}
	pgC, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = pgC.Terminate(ctx) })

	host, err := pgC.Host(ctx)
	require.NoError(t, err)
	port, err := pgC.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	dsn := "postgres://admin:admin@" + host + ":" + port.Port() + "/kargogate_test?sslmode=disable"
	st, err := New(dsn)
	require.NoError(t, err)
	t.Cleanup(st.Close)

	// shops: install, then partial re-install must not wipe credentials
	shop, err := st.UpsertShop(ctx, models.ShopUpsertInput{
		ShopDomain:     "demo.myshopify.com",
		AccessToken:    "shpat_x",
		CustomerNumber: "100500",
		Password:       "pw",
		ClientID:       "cid",
		ClientSecret:   "csec",
	})
	require.NoError(t, err)
	require.NotZero(t, shop.ID)

	again, err := st.UpsertShop(ctx, models.ShopUpsertInput{
		ShopDomain:  "demo.myshopify.com",
		AccessToken: "shpat_y",
	})
	require.NoError(t, err)
	require.Equal(t, shop.ID, again.ID)
	require.Equal(t, "shpat_y", again.AccessToken)
	require.Equal(t, "100500", again.CustomerNumber)

	_, err = st.GetShopByDomain(ctx, "absent.myshopify.com")
	require.True(t, errs.IsNotFound(err))

	// shipments: upsert is keyed by order id
	sh1, err := st.UpsertShipment(ctx, models.ShipmentUpsertInput{
		OrderID:        "5001",
		ShopDomain:     "demo.myshopify.com",
		Courier:        "MNG",
		TrackingNumber: "TRK-1",
		Barcode:        "BC-5001-abc",
	})
	require.NoError(t, err)
	require.Equal(t, models.ShipmentStatusCreated, sh1.Status)

	sh1b, err := st.UpsertShipment(ctx, models.ShipmentUpsertInput{
		OrderID:        "5001",
		ShopDomain:     "demo.myshopify.com",
		Courier:        "MNG",
		TrackingNumber: "TRK-1-new",
		Barcode:        "BC-5001-abc",
		Status:         models.ShipmentStatusInTransit,
	})
	require.NoError(t, err)
	require.Equal(t, sh1.ID, sh1b.ID)
	require.Equal(t, "TRK-1-new", sh1b.TrackingNumber)

	sh2, err := st.UpsertShipment(ctx, models.ShipmentUpsertInput{
		OrderID:        "5002",
		ShopDomain:     "demo.myshopify.com",
		Courier:        "MNG",
		TrackingNumber: "TRK-2",
	})
	require.NoError(t, err)

	list, err := st.ListShipmentsByShop(ctx, "demo.myshopify.com", 10, 0)
	require.NoError(t, err)
	require.Len(t, list, 2)

	// only sh2 due; claim leases it forward
	_, err = st.db.Exec(ctx, `UPDATE shipments SET next_check_at = now() - interval '1 minute' WHERE id = $1`, sh2.ID)
	require.NoError(t, err)
	_, err = st.db.Exec(ctx, `UPDATE shipments SET next_check_at = now() + interval '1 hour' WHERE id = $1`, sh1.ID)
	require.NoError(t, err)

	now := time.Now().UTC()
	lease := 10 * time.Second
	due, err := st.ClaimDueShipments(ctx, now, 10, lease)
	require.NoError(t, err)
	require.Len(t, due, 1)
	require.Equal(t, sh2.ID, due[0].ID)
	require.WithinDuration(t, now.Add(lease), due[0].NextCheckAt, 2*time.Second)

	err = st.ApplyShipmentStatus(ctx, ShipmentStatusUpdate{
		OrderID:     "5002",
		CheckedAt:   now,
		Status:      models.ShipmentStatusDelivered,
		NextCheckAt: now.Add(30 * time.Minute),
	})
	require.NoError(t, err)

	got, err := st.GetShipmentByOrderID(ctx, "5002")
	require.NoError(t, err)
	require.Equal(t, models.ShipmentStatusDelivered, got.Status)
	require.NotNil(t, got.LastCheckedAt)
	require.Zero(t, got.CheckFailCount)

	// delivered shipments never come back due
	_, err = st.db.Exec(ctx, `UPDATE shipments SET next_check_at = now() - interval '1 minute' WHERE id = $1`, sh2.ID)
	require.NoError(t, err)
	due, err = st.ClaimDueShipments(ctx, time.Now().UTC(), 10, lease)
	require.NoError(t, err)
	require.Empty(t, due)

	// failure path bumps the counter and keeps the status
	msg := "carrier timeout"
	err = st.ApplyShipmentStatus(ctx, ShipmentStatusUpdate{
		OrderID:     "5001",
		CheckedAt:   now,
		NextCheckAt: now.Add(5 * time.Minute),
		Error:       &msg,
	})
	require.NoError(t, err)
	got, err = st.GetShipmentByOrderID(ctx, "5001")
	require.NoError(t, err)
	require.Equal(t, int32(1), got.CheckFailCount)
	require.Equal(t, "in_transit", got.Status)
	require.Equal(t, "carrier timeout", *got.LastError)

	// returns
	ret, err := st.UpsertReturn(ctx, ReturnUpsertInput{
		ReturnID:       "RET-1",
		ShopDomain:     "demo.myshopify.com",
		Reason:         "damaged",
		TrackingNumber: "RTRK-1",
	})
	require.NoError(t, err)
	require.NotZero(t, ret.ID)

	_, err = st.GetReturnByID(ctx, "RET-404")
	require.True(t, errs.IsNotFound(err))
}
