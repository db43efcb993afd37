package shipments

import (
	"context"
	"fmt"
	"time"

	"github.com/DenizBir/KargoGate/internal/errs"
	"github.com/DenizBir/KargoGate/internal/integrations/carrier"
	"github.com/DenizBir/KargoGate/internal/models"
)

// GeoResolver maps normalized Turkish city/district names to MNG codes.
type GeoResolver interface {
	Resolve(ctx context.Context, cityName, districtName string) (cityCode, districtCode int, err error)
}

// orderDefaults enumerates every fallback the carrier request gets when
// the order data leaves a field empty.
type orderDefaults struct {
	BillOfLadingID      string
	Content             string
	Description         string
	ShipmentServiceType int
	PackagingType       int
	PaymentType         int
	DeliveryType        int
	SMSPreference1      int
	PieceDesi           int
	PieceKg             int
}

var defaults = orderDefaults{
	BillOfLadingID:      "İrsaliye 1",
	Content:             "Sipariş",
	Description:         "Sipariş gönderisi",
	ShipmentServiceType: 1,
	PackagingType:       1,
	PaymentType:         1,
	DeliveryType:        1,
	SMSPreference1:      1,
	PieceDesi:           2,
	PieceKg:             1,
}

// Builder turns platform order data into a complete MNG createOrder
// request. It never talks to the carrier except through the geo
// resolver, and only for postal recipients.
type Builder struct {
	geo GeoResolver
}

func NewBuilder(geo GeoResolver) *Builder {
	return &Builder{geo: geo}
}

func (b *Builder) Build(ctx context.Context, data models.OrderData) (carrier.OrderRequest, error) {
	if !data.Recipient.Valid() {
		return carrier.OrderRequest{}, errs.Validation("recipient must be exactly one of customer or postal")
	}

	ref := referenceID(data)

	barcode := data.Barcode
	if barcode == "" {
		barcode = GenerateBarcode(ref)
	}

	order := carrier.Order{
		ReferenceID:          ref,
		Barcode:              barcode,
		BillOfLadingID:       stringOr(data.BillOfLadingID, defaults.BillOfLadingID),
		IsCOD:                data.IsCOD,
		CODAmount:            data.CODAmount,
		ShipmentServiceType:  intOr(data.ShipmentServiceType, defaults.ShipmentServiceType),
		PackagingType:        intOr(data.PackagingType, defaults.PackagingType),
		Content:              stringOr(data.Content, defaults.Content),
		SMSPreference1:       defaults.SMSPreference1,
		PaymentType:          intOr(data.PaymentType, defaults.PaymentType),
		DeliveryType:         intOr(data.DeliveryType, defaults.DeliveryType),
		Description:          stringOr(data.Description, defaults.Description),
		MarketplaceShortCode: data.MarketplaceShortCode,
		MarketplaceSaleCode:  data.MarketplaceSaleCode,
		PudoID:               data.PudoID,
	}

	recipient, err := b.buildRecipient(ctx, data.Recipient)
	if err != nil {
		return carrier.OrderRequest{}, err
	}

	return carrier.OrderRequest{
		Order:          order,
		OrderPieceList: buildPieces(ref, data),
		Recipient:      recipient,
	}, nil
}

func (b *Builder) buildRecipient(ctx context.Context, r models.Recipient) (carrier.Recipient, error) {
	if r.Customer != nil {
		if r.Customer.CustomerID == "" {
			return carrier.Recipient{}, errs.Validation("recipient customerId is required")
		}
		return carrier.Recipient{
			CustomerID:    r.Customer.CustomerID,
			RefCustomerID: r.Customer.RefCustomerID,
		}, nil
	}

	p := r.Postal
	switch {
	case p.FullName == "":
		return carrier.Recipient{}, errs.Validation("recipient fullName is required")
	case p.Address == "":
		return carrier.Recipient{}, errs.Validation("recipient address is required")
	case p.CityName == "":
		return carrier.Recipient{}, errs.Validation("recipient city is required")
	case p.DistrictName == "":
		return carrier.Recipient{}, errs.Validation("recipient district is required")
	}

	cityCode, districtCode, err := b.geo.Resolve(ctx, p.CityName, p.DistrictName)
	if err != nil {
		return carrier.Recipient{}, err
	}

	return carrier.Recipient{
		CityCode:     cityCode,
		CityName:     p.CityName,
		DistrictCode: districtCode,
		DistrictName: p.DistrictName,
		Address:      p.Address,
		FullName:     p.FullName,
		Email:        p.Email,
		MobilePhone:  p.MobilePhone,
	}, nil
}

func buildPieces(referenceID string, data models.OrderData) []carrier.OrderPiece {
	pieces := data.Pieces
	if len(pieces) == 0 {
		pieces = []models.Piece{{}}
	}

	out := make([]carrier.OrderPiece, 0, len(pieces))
	for i, p := range pieces {
		out = append(out, carrier.OrderPiece{
			Barcode: stringOr(p.Barcode, pieceBarcode(referenceID, i)),
			Desi:    intOr(p.Desi, defaults.PieceDesi),
			Kg:      intOr(p.Kg, defaults.PieceKg),
			Content: stringOr(p.Content, stringOr(data.Content, fmt.Sprintf("Parça %d", i+1))),
		})
	}
	return out
}

// referenceID picks the carrier reference: caller-supplied, then the
// platform record id, then a timestamp so the request is never blank.
func referenceID(data models.OrderData) string {
	if data.ReferenceID != "" {
		return data.ReferenceID
	}
	if data.InternalID != "" {
		return data.InternalID
	}
	return fmt.Sprintf("ORD%d", time.Now().UnixNano())
}

func stringOr(v, def string) string {
	if v != "" {
		return v
	}
	return def
}

func intOr(v, def int) int {
	if v != 0 {
		return v
	}
	return def
}
