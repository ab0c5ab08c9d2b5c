package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Gateway-reported transaction statuses.
const (
	GatewayStatusSuccessful = "successful"
	GatewayStatusPending    = "pending"
)

// GatewayInitRequest carries everything the gateway needs to open a
// checkout session.
type GatewayInitRequest struct {
	TxRef         string
	Amount        float64
	Currency      string
	CustomerName  string
	CustomerEmail string
	RedirectURL   string
}

// GatewayInitResult is the gateway's answer to an initialize call.
type GatewayInitResult struct {
	CheckoutURL string
}

// GatewayVerifyResult is the gateway's answer to a verify call.
type GatewayVerifyResult struct {
	Status    string
	PaymentID string
	Amount    float64
	Currency  string
	TxRef     string
}

// PaymentGateway abstracts the remote payment provider so the coordinator
// can be exercised against a stub.
type PaymentGateway interface {
	InitializePayment(ctx context.Context, req GatewayInitRequest) (*GatewayInitResult, error)
	VerifyPayment(ctx context.Context, txRef string) (*GatewayVerifyResult, error)
}

// FlutterwaveClient talks to the Flutterwave v3 API.
type FlutterwaveClient struct {
	baseURL    string
	secretKey  string
	httpClient *http.Client
}

// NewFlutterwaveClient creates a gateway client with a bounded timeout on
// every outbound call.
func NewFlutterwaveClient(baseURL, secretKey string) *FlutterwaveClient {
	return &FlutterwaveClient{
		baseURL:    baseURL,
		secretKey:  secretKey,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

type flwPaymentRequest struct {
	TxRef       string      `json:"tx_ref"`
	Amount      string      `json:"amount"`
	Currency    string      `json:"currency"`
	RedirectURL string      `json:"redirect_url"`
	Customer    flwCustomer `json:"customer"`
}

type flwCustomer struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

type flwPaymentResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Data    struct {
		Link string `json:"link"`
	} `json:"data"`
}

type flwVerifyResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Data    struct {
		ID       int64   `json:"id"`
		TxRef    string  `json:"tx_ref"`
		Status   string  `json:"status"`
		Amount   float64 `json:"amount"`
		Currency string  `json:"currency"`
	} `json:"data"`
}

// InitializePayment opens a hosted checkout session and returns its URL.
func (c *FlutterwaveClient) InitializePayment(ctx context.Context, req GatewayInitRequest) (*GatewayInitResult, error) {
	payload, err := json.Marshal(flwPaymentRequest{
		TxRef:       req.TxRef,
		Amount:      strconv.FormatFloat(req.Amount, 'f', 2, 64),
		Currency:    req.Currency,
		RedirectURL: req.RedirectURL,
		Customer: flwCustomer{
			Email: req.CustomerEmail,
			Name:  req.CustomerName,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("flutterwave initialize marshal: %w", err)
	}

	body, err := c.do(ctx, http.MethodPost, "/payments", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}

	var resp flwPaymentResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("flutterwave initialize unmarshal: %w", err)
	}

	if resp.Status != "success" || resp.Data.Link == "" {
		return nil, fmt.Errorf("flutterwave initialize rejected: %s", resp.Message)
	}

	return &GatewayInitResult{CheckoutURL: resp.Data.Link}, nil
}

// VerifyPayment looks up the transaction by its reference.
func (c *FlutterwaveClient) VerifyPayment(ctx context.Context, txRef string) (*GatewayVerifyResult, error) {
	path := "/transactions/verify_by_reference?tx_ref=" + url.QueryEscape(txRef)
	body, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}

	var resp flwVerifyResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("flutterwave verify unmarshal: %w", err)
	}

	if resp.Status != "success" {
		return nil, fmt.Errorf("flutterwave verify rejected: %s", resp.Message)
	}

	return &GatewayVerifyResult{
		Status:    resp.Data.Status,
		PaymentID: strconv.FormatInt(resp.Data.ID, 10),
		Amount:    resp.Data.Amount,
		Currency:  resp.Data.Currency,
		TxRef:     resp.Data.TxRef,
	}, nil
}

func (c *FlutterwaveClient) do(ctx context.Context, method, path string, body io.Reader) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("flutterwave request build: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.secretKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("flutterwave request: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("flutterwave request failed: status %d, body: %s", resp.StatusCode, string(respBody))
	}

	return respBody, nil
}
