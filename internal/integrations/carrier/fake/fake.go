package fake

import (
	"context"
	"encoding/json"
	"time"

	"github.com/DenizBir/KargoGate/internal/integrations/carrier"
)

// Client is a scriptable in-memory carrier used by service tests. Call
// counters let tests assert how many network round-trips a flow costs.
type Client struct {
	TokenCalls     int
	OrderCalls     int
	BarcodeCalls   int
	ReturnCalls    int
	CitiesCalls    int
	DistrictsCalls int
	StatusCalls    int

	Token     carrier.Token
	TokenErr  error
	LastCreds carrier.Credentials

	Cities    []carrier.City
	CitiesErr error
	Districts map[int][]carrier.District

	OrderResp carrier.OrderResponse
	OrderErr  error
	LastOrder carrier.OrderRequest

	BarcodeResp carrier.BarcodeResponse
	BarcodeErr  error
	LastBarcode carrier.BarcodeRequest

	ReturnResp carrier.ReturnOrderResponse
	ReturnErr  error
	LastReturn carrier.ReturnOrderRequest

	StatusResp carrier.StatusResult
	StatusErr  error
}

func New() *Client {
	return &Client{
		Token:     carrier.Token{JWT: "fake-jwt", ExpiresAt: time.Now().Add(time.Hour).UTC()},
		Districts: map[int][]carrier.District{},
	}
}

func (f *Client) GetToken(ctx context.Context, creds carrier.Credentials) (carrier.Token, error) {
	f.TokenCalls++
	f.LastCreds = creds
	return f.Token, f.TokenErr
}

func (f *Client) CreateOrder(ctx context.Context, creds carrier.Credentials, token string, req carrier.OrderRequest) (carrier.OrderResponse, error) {
	f.OrderCalls++
	f.LastOrder = req
	return f.OrderResp, f.OrderErr
}

func (f *Client) CreateBarcode(ctx context.Context, creds carrier.Credentials, token string, req carrier.BarcodeRequest) (carrier.BarcodeResponse, error) {
	f.BarcodeCalls++
	f.LastBarcode = req
	return f.BarcodeResp, f.BarcodeErr
}

func (f *Client) CreateReturnOrder(ctx context.Context, creds carrier.Credentials, token string, req carrier.ReturnOrderRequest) (carrier.ReturnOrderResponse, error) {
	f.ReturnCalls++
	f.LastReturn = req
	return f.ReturnResp, f.ReturnErr
}

func (f *Client) CheckReturnOrder(ctx context.Context, creds carrier.Credentials, token string, criteria json.RawMessage) (json.RawMessage, error) {
	return json.RawMessage(`{"isReturnable":true}`), nil
}

func (f *Client) GetCities(ctx context.Context) ([]carrier.City, error) {
	f.CitiesCalls++
	return f.Cities, f.CitiesErr
}

func (f *Client) GetDistricts(ctx context.Context, cityCode int) ([]carrier.District, error) {
	f.DistrictsCalls++
	return f.Districts[cityCode], nil
}

func (f *Client) GetShipmentStatus(ctx context.Context, creds carrier.Credentials, token, referenceID string) (carrier.StatusResult, error) {
	f.StatusCalls++
	return f.StatusResp, f.StatusErr
}
