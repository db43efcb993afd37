package returns

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/DenizBir/KargoGate/internal/errs"
	"github.com/DenizBir/KargoGate/internal/integrations/carrier"
	"github.com/DenizBir/KargoGate/internal/models"
	"github.com/DenizBir/KargoGate/internal/services/shipments"
	"github.com/DenizBir/KargoGate/internal/storage/pgstore"
)

type Repository interface {
	UpsertReturn(ctx context.Context, in pgstore.ReturnUpsertInput) (*models.Return, error)
	GetReturnByID(ctx context.Context, returnID string) (*models.Return, error)
}

// Input describes one return pickup: the parcel ships from the end
// customer back to the merchant's registered carrier customer id.
type Input struct {
	ReturnID string
	Reason   string
	Content  string
	Pieces   []models.Piece
}

type Service struct {
	carrier carrier.Client
	tokens  shipments.TokenSource
	repo    Repository

	// fallback carrier customer id for shops without their own
	fallbackCustomerID string
	fallback           carrier.Credentials
}

func New(c carrier.Client, tokens shipments.TokenSource, repo Repository, fallbackCustomerID string, fallback carrier.Credentials) *Service {
	return &Service{
		carrier:            c,
		tokens:             tokens,
		repo:               repo,
		fallbackCustomerID: fallbackCustomerID,
		fallback:           fallback,
	}
}

// Result carries the created return order back to the caller.
type Result struct {
	ReturnID       string
	OrderInvoiceID string
	LabelURL       string
}

func (s *Service) CreateReturn(ctx context.Context, shop *models.Shop, in Input) (*Result, error) {
	if in.ReturnID == "" {
		return nil, errs.Validation("returnId is required")
	}

	shipperID := s.fallbackCustomerID
	if shop != nil && shop.CarrierCustomerID != "" {
		shipperID = shop.CarrierCustomerID
	}
	if shipperID == "" {
		return nil, errs.Validation("shop has no carrier customer id for returns")
	}

	creds := s.credsFor(shop)
	token, err := s.tokens.Get(ctx, creds)
	if err != nil {
		return nil, err
	}

	pieces := in.Pieces
	if len(pieces) == 0 {
		pieces = []models.Piece{{}}
	}
	pieceList := make([]carrier.OrderPiece, 0, len(pieces))
	for i, p := range pieces {
		barcode := p.Barcode
		if barcode == "" {
			barcode = fmt.Sprintf("%s_PARCA%d", in.ReturnID, i+1)
		}
		desi := p.Desi
		if desi == 0 {
			desi = 2
		}
		kg := p.Kg
		if kg == 0 {
			kg = 1
		}
		pieceList = append(pieceList, carrier.OrderPiece{
			Barcode: barcode,
			Desi:    desi,
			Kg:      kg,
			Content: p.Content,
		})
	}

	resp, err := s.carrier.CreateReturnOrder(ctx, creds, token, carrier.ReturnOrderRequest{
		Order: carrier.Order{
			ReferenceID:         in.ReturnID,
			BillOfLadingID:      "İrsaliye 1",
			ShipmentServiceType: 1,
			PackagingType:       1,
			PaymentType:         1,
			DeliveryType:        1,
			SMSPreference1:      1,
			Content:             in.Content,
			Description:         in.Reason,
		},
		OrderPieceList: pieceList,
		Shipper:        carrier.Recipient{CustomerID: shipperID},
	})
	if err != nil {
		return nil, err
	}

	shopDomain := ""
	if shop != nil {
		shopDomain = shop.ShopDomain
	}
	if _, err := s.repo.UpsertReturn(ctx, pgstore.ReturnUpsertInput{
		ReturnID:   in.ReturnID,
		ShopDomain: shopDomain,
		Reason:     in.Reason,
		LabelURL:   resp.ReturnOrderLabelURL,
		Status:     models.ShipmentStatusCreated,
	}); err != nil {
		return nil, err
	}

	return &Result{
		ReturnID:       in.ReturnID,
		OrderInvoiceID: resp.OrderInvoiceID,
		LabelURL:       resp.ReturnOrderLabelURL,
	}, nil
}

// CheckReturn forwards the merchant's query criteria to the carrier
// unchanged and hands the carrier's answer back raw.
func (s *Service) CheckReturn(ctx context.Context, shop *models.Shop, criteria json.RawMessage) (json.RawMessage, error) {
	if len(criteria) == 0 {
		return nil, errs.Validation("criteria is required")
	}

	creds := s.credsFor(shop)
	token, err := s.tokens.Get(ctx, creds)
	if err != nil {
		return nil, err
	}
	return s.carrier.CheckReturnOrder(ctx, creds, token, criteria)
}

func (s *Service) GetReturn(ctx context.Context, returnID string) (*models.Return, error) {
	if returnID == "" {
		return nil, errs.Validation("returnId is required")
	}
	return s.repo.GetReturnByID(ctx, returnID)
}

func (s *Service) credsFor(shop *models.Shop) carrier.Credentials {
	return shipments.CredentialsFor(shop, s.fallback)
}
