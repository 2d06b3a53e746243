// Package finance предоставляет клиент для передачи платёжных требований в финансовую систему.
package finance

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/shopspring/decimal"
)

// ErrNotConfigured возвращается, если адрес финансовой системы не задан.
var ErrNotConfigured = errors.New("finance client not configured")

// Client инкапсулирует HTTP-взаимодействие с финансовой системой.
type Client struct {
	baseURL    string
	httpClient *http.Client
	retrying   *retryablehttp.Client
}

// Requisition описывает платёжное требование по одобренному страховому случаю.
type Requisition struct {
	ClaimID          int64           `json:"claim_id"`
	ContractID       string          `json:"contract_id"`
	ClaimantName     string          `json:"claimant_name"`
	ClaimantIDNumber string          `json:"claimant_id_number"`
	BankName         string          `json:"bank_name"`
	AccountNumber    string          `json:"account_number"`
	Amount           decimal.Decimal `json:"amount"`
	ApprovedAt       time.Time       `json:"approved_at"`
}

// NewClient создаёт HTTP-клиент для обращения к финансовой системе по указанному адресу.
func NewClient(baseURL string) *Client {
	httpClient := &http.Client{
		Timeout: 5 * time.Second,
	}

	retrying := retryablehttp.NewClient()
	retrying.HTTPClient = httpClient
	retrying.Logger = nil
	retrying.RetryMax = 1
	retrying.CheckRetry = retryOnRateLimit
	retrying.Backoff = retryablehttp.DefaultBackoff
	retrying.ErrorHandler = retryablehttp.PassthroughErrorHandler

	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		retrying:   retrying,
	}
}

// retryOnRateLimit повторяет запрос только при ответе 429; задержку берёт из Retry-After.
func retryOnRateLimit(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	if err != nil {
		return false, err
	}
	return resp.StatusCode == http.StatusTooManyRequests, nil
}

// Configured сообщает, задан ли адрес финансовой системы.
func (c *Client) Configured() bool {
	return c != nil && c.baseURL != ""
}

func (c *Client) endpoint() string {
	base := c.baseURL
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}
	return base + "/api/requisitions"
}

func accepted(code int) bool {
	return code == http.StatusOK || code == http.StatusCreated || code == http.StatusAccepted
}

// PostRequisition отправляет платёжное требование один раз.
// При ответе 429 возвращает код и время ожидания из заголовка Retry-After.
func (c *Client) PostRequisition(ctx context.Context, req Requisition) (int, time.Duration, error) {
	if !c.Configured() {
		return 0, 0, ErrNotConfigured
	}

	body, err := json.Marshal(req)
	if err != nil {
		return 0, 0, fmt.Errorf("encode requisition: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(), bytes.NewReader(body))
	if err != nil {
		return 0, 0, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return 0, 0, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		retryAfter := time.Duration(0)
		if v := resp.Header.Get("Retry-After"); v != "" {
			if seconds, parseErr := strconv.Atoi(v); parseErr == nil {
				retryAfter = time.Duration(seconds) * time.Second
			}
		}
		return resp.StatusCode, retryAfter, nil
	}

	if !accepted(resp.StatusCode) {
		return resp.StatusCode, 0, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	return resp.StatusCode, 0, nil
}

// SendRequisition отправляет платёжное требование. Если финансовая система
// ограничивает частоту запросов, ждёт Retry-After и повторяет отправку один раз.
func (c *Client) SendRequisition(ctx context.Context, req Requisition) error {
	if !c.Configured() {
		return ErrNotConfigured
	}

	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("encode requisition: %w", err)
	}

	retryReq, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(), body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	retryReq.Header.Set("Content-Type", "application/json")

	resp, err := c.retrying.Do(retryReq)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return errors.New("finance system is rate limiting requisitions")
	case !accepted(resp.StatusCode):
		return fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}
	return nil
}
