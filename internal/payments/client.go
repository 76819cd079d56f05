// Package payments wraps the external payment gateway used to disburse
// approved payouts. The gateway confirms asynchronously; the scheduler
// polls ConfirmPayoutStatus until the transfer settles.
package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

// PayoutStatus is the gateway's view of an initiated transfer.
type PayoutStatus string

const (
	PayoutCompleted PayoutStatus = "completed"
	PayoutPending   PayoutStatus = "pending"
	PayoutFailed    PayoutStatus = "failed"
)

// BankAccount is the destination of a disbursement.
type BankAccount struct {
	AccountName   string
	AccountNumber string
	BankName      string
	BranchCode    string
}

// Channel is the payout side of the payment gateway.
type Channel interface {
	InitiatePayout(ctx context.Context, bank BankAccount, amount float64) (string, error)
	ConfirmPayoutStatus(ctx context.Context, handle string) (PayoutStatus, error)
}

// Client is an HTTP client for the payment gateway's disbursement API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates a payment gateway client.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

type initiateRequest struct {
	Reference     string  `json:"reference"`
	AccountName   string  `json:"account_name"`
	AccountNumber string  `json:"account_number"`
	BankName      string  `json:"bank_name"`
	BranchCode    string  `json:"branch_code,omitempty"`
	Amount        float64 `json:"amount"`
}

type initiateResponse struct {
	Handle string `json:"handle"`
}

type statusResponse struct {
	Status string `json:"status"`
}

// InitiatePayout requests a transfer to the given bank details and returns
// the gateway handle used to poll for completion.
func (c *Client) InitiatePayout(ctx context.Context, bank BankAccount, amount float64) (string, error) {
	if c.baseURL == "" {
		return "", fmt.Errorf("payment gateway base URL is not configured")
	}

	payload := initiateRequest{
		Reference:     uuid.New().String(),
		AccountName:   bank.AccountName,
		AccountNumber: bank.AccountNumber,
		BankName:      bank.BankName,
		BranchCode:    bank.BranchCode,
		Amount:        amount,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal payout request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/payouts", bytes.NewBuffer(body))
	if err != nil {
		return "", fmt.Errorf("failed to create payout request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to reach payment gateway: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("payment gateway returned status %d", resp.StatusCode)
	}

	var parsed initiateResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("failed to decode payout response: %w", err)
	}
	if parsed.Handle == "" {
		return "", fmt.Errorf("payment gateway returned an empty payout handle")
	}
	return parsed.Handle, nil
}

// ConfirmPayoutStatus polls the gateway for the state of an initiated
// transfer.
func (c *Client) ConfirmPayoutStatus(ctx context.Context, handle string) (PayoutStatus, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/payouts/"+handle, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create status request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to reach payment gateway: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("payment gateway returned status %d", resp.StatusCode)
	}

	var parsed statusResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("failed to decode status response: %w", err)
	}

	switch PayoutStatus(parsed.Status) {
	case PayoutCompleted, PayoutPending, PayoutFailed:
		return PayoutStatus(parsed.Status), nil
	default:
		return "", fmt.Errorf("payment gateway returned unknown status %q", parsed.Status)
	}
}
