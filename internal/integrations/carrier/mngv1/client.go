package mngv1

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/DenizBir/KargoGate/internal/errs"
	"github.com/DenizBir/KargoGate/internal/integrations/carrier"
	"github.com/DenizBir/KargoGate/internal/metrics"
	"github.com/DenizBir/KargoGate/internal/models"
	"github.com/pkg/errors"
)

const defaultBaseURL = "https://api.mngkargo.com.tr/mngapi/api"

// Client talks to the MNG Kargo REST API. CBS (city/district reference
// data) uses its own client pair taken from config; everything else is
// authenticated with the per-merchant credentials passed per call.
type Client struct {
	baseURL    string
	apiVersion string

	cbsClientID     string
	cbsClientSecret string

	httpc *http.Client
}

func New(baseURL, apiVersion, cbsClientID, cbsClientSecret string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if apiVersion == "" {
		apiVersion = "1.0"
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:         baseURL,
		apiVersion:      apiVersion,
		cbsClientID:     cbsClientID,
		cbsClientSecret: cbsClientSecret,
		httpc: &http.Client{
			Timeout: timeout,
		},
	}
}

type tokenReq struct {
	CustomerNumber string `json:"CustomerNumber"`
	Password       string `json:"Password"`
	IdentityType   int    `json:"IdentityType"`
}

type tokenResp struct {
	JWT           string `json:"jwt"`
	JWTExpireDate string `json:"jwtExpireDate"`
}

func (c *Client) GetToken(ctx context.Context, creds carrier.Credentials) (carrier.Token, error) {
	identityType := creds.IdentityType
	if identityType == 0 {
		identityType = 1
	}

	var r tokenResp
	err := c.do(ctx, "getToken", http.MethodPost, "/token", creds.ClientID, creds.ClientSecret, "",
		tokenReq{CustomerNumber: creds.CustomerNumber, Password: creds.Password, IdentityType: identityType}, &r)
	if err != nil {
		return carrier.Token{}, err
	}
	if r.JWT == "" || r.JWTExpireDate == "" {
		return carrier.Token{}, errs.Auth("mng token response missing jwt or jwtExpireDate")
	}

	exp, err := parseExpiry(r.JWTExpireDate)
	if err != nil {
		return carrier.Token{}, errs.Auth("mng token expiry unparseable: %q", r.JWTExpireDate)
	}
	return carrier.Token{JWT: r.JWT, ExpiresAt: exp}, nil
}

// MNG returns the expiry in a handful of formats depending on gateway
// version.
func parseExpiry(s string) (time.Time, error) {
	layouts := []string{
		time.RFC3339,
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05",
	}
	var lastErr error
	for _, l := range layouts {
		t, err := time.Parse(l, s)
		if err == nil {
			return t.UTC(), nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}

func (c *Client) CreateOrder(ctx context.Context, creds carrier.Credentials, token string, req carrier.OrderRequest) (carrier.OrderResponse, error) {
	var r carrier.OrderResponse
	err := c.do(ctx, "createOrder", http.MethodPost, "/standardcmdapi/createOrder",
		creds.OrderClientID, creds.OrderClientSecret, token, req, &r)
	if err != nil {
		return carrier.OrderResponse{}, err
	}
	return r, nil
}

func (c *Client) CreateBarcode(ctx context.Context, creds carrier.Credentials, token string, req carrier.BarcodeRequest) (carrier.BarcodeResponse, error) {
	var r carrier.BarcodeResponse
	err := c.do(ctx, "createbarcode", http.MethodPost, "/barcodecmdapi/createbarcode",
		creds.OrderClientID, creds.OrderClientSecret, token, req, &r)
	if err != nil {
		return carrier.BarcodeResponse{}, err
	}
	return r, nil
}

func (c *Client) CreateReturnOrder(ctx context.Context, creds carrier.Credentials, token string, req carrier.ReturnOrderRequest) (carrier.ReturnOrderResponse, error) {
	var r carrier.ReturnOrderResponse
	err := c.do(ctx, "createReturnOrder", http.MethodPost, "/standardcmdapi/createReturnOrder",
		creds.OrderClientID, creds.OrderClientSecret, token, req, &r)
	if err != nil {
		return carrier.ReturnOrderResponse{}, err
	}
	return r, nil
}

func (c *Client) CheckReturnOrder(ctx context.Context, creds carrier.Credentials, token string, criteria json.RawMessage) (json.RawMessage, error) {
	var r json.RawMessage
	err := c.do(ctx, "checkReturnOrder", http.MethodPost, "/plusqueryapi/checkReturnOrder",
		creds.OrderClientID, creds.OrderClientSecret, token, criteria, &r)
	if err != nil {
		return nil, err
	}
	return r, nil
}

func (c *Client) GetCities(ctx context.Context) ([]carrier.City, error) {
	var r []carrier.City
	err := c.do(ctx, "getcities", http.MethodGet, "/cbsinfoapi/getcities", c.cbsClientID, c.cbsClientSecret, "", nil, &r)
	if err != nil {
		return nil, err
	}
	return r, nil
}

func (c *Client) GetDistricts(ctx context.Context, cityCode int) ([]carrier.District, error) {
	var r []carrier.District
	path := fmt.Sprintf("/cbsinfoapi/getdistricts/%d", cityCode)
	err := c.do(ctx, "getdistricts", http.MethodGet, path, c.cbsClientID, c.cbsClientSecret, "", nil, &r)
	if err != nil {
		return nil, err
	}
	return r, nil
}

type statusResp struct {
	ReferenceID string `json:"referenceId"`
	StatusCode  int    `json:"shipmentStatusCode"`
	Description string `json:"description"`
}

func (c *Client) GetShipmentStatus(ctx context.Context, creds carrier.Credentials, token, referenceID string) (carrier.StatusResult, error) {
	var r statusResp
	path := "/standardqueryapi/getshipmentstatus/" + referenceID
	err := c.do(ctx, "getshipmentstatus", http.MethodGet, path, creds.OrderClientID, creds.OrderClientSecret, token, nil, &r)
	if err != nil {
		return carrier.StatusResult{}, err
	}
	return carrier.StatusResult{
		Status:      normalizeStatus(r.StatusCode),
		StatusRaw:   fmt.Sprintf("%d", r.StatusCode),
		Description: r.Description,
		CheckedAt:   time.Now().UTC(),
	}, nil
}

// MNG status codes: 1 order accepted, 2..4 on the road, 5 delivered.
func normalizeStatus(code int) string {
	switch {
	case code >= 5:
		return models.ShipmentStatusDelivered
	case code >= 2:
		return models.ShipmentStatusInTransit
	default:
		return models.ShipmentStatusCreated
	}
}

func (c *Client) do(ctx context.Context, op, method, path, clientID, clientSecret, token string, body, result any) (err error) {
	defer func() {
		outcome := "ok"
		if err != nil {
			outcome = "error"
		}
		metrics.CarrierRequests.WithLabelValues(op, outcome).Inc()
	}()

	var reqBody io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return errors.Wrap(err, "marshal request")
		}
		reqBody = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return errors.Wrap(err, "new request")
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-IBM-Client-Id", clientID)
	req.Header.Set("X-IBM-Client-Secret", clientSecret)
	req.Header.Set("x-api-version", c.apiVersion)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return errs.Carrier("mng "+path, nil, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return errs.Carrier("mng "+path+" read body", nil, err)
	}

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return errs.Auth("mng %s http %d", path, resp.StatusCode)
	}
	if resp.StatusCode/100 != 2 {
		return errs.Carrier(fmt.Sprintf("mng %s http %d", path, resp.StatusCode), respBody, nil)
	}

	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return errs.Carrier("mng "+path+" decode", respBody, err)
		}
	}
	return nil
}
