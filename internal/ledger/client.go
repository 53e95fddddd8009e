// Package ledger предоставляет клиент внешнего реестра токенов.
// Реестр выпускает и гасит токены наград; локальное состояние сервиса
// он не видит.
package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

// ErrMint возвращается, если реестр не смог выпустить токен.
var (
	ErrMint = errors.New("ledger mint failed")
	// ErrRedeem возвращается, если реестр не смог погасить токен.
	ErrRedeem = errors.New("ledger redeem failed")
	// ErrBalance возвращается, если реестр не смог вернуть баланс адреса.
	ErrBalance = errors.New("ledger balance failed")
)

// Gateway описывает операции реестра, используемые жизненным циклом награды.
type Gateway interface {
	// Mint выпускает токен указанного номинала на адрес владельца
	// и возвращает идентификатор токена, назначенный реестром.
	Mint(ctx context.Context, toAddress string, value int64) (string, error)
	// Redeem гасит ранее выпущенный токен владельца.
	Redeem(ctx context.Context, ownerAddress, tokenID string) error
	// Balance возвращает текущий баланс адреса в реестре.
	Balance(ctx context.Context, address string) (int64, error)
}

// Client инкапсулирует HTTP-взаимодействие с реестром токенов.
// Повторы сетевых запросов — ответственность клиента: вызывающая сторона
// считает каждый вызов однократным.
type Client struct {
	baseURL    string
	httpClient *retryablehttp.Client
}

// NewClient создаёт HTTP-клиент реестра по указанному адресу.
func NewClient(baseURL string) *Client {
	c := retryablehttp.NewClient()
	c.RetryMax = 3
	c.RetryWaitMin = 500 * time.Millisecond
	c.RetryWaitMax = 3 * time.Second
	c.Logger = nil
	c.HTTPClient.Timeout = 5 * time.Second

	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: c,
	}
}

func (c *Client) url(path string) string {
	base := c.baseURL
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}
	return base + path
}

type mintRequest struct {
	To    string `json:"to"`
	Value int64  `json:"value"`
}

type mintResponse struct {
	TokenID string `json:"token_id"`
}

// Mint выпускает токен номиналом value на адрес toAddress.
func (c *Client) Mint(ctx context.Context, toAddress string, value int64) (string, error) {
	if c == nil || c.baseURL == "" {
		return "", fmt.Errorf("%w: ledger client not configured", ErrMint)
	}

	body, err := json.Marshal(mintRequest{To: toAddress, Value: value})
	if err != nil {
		return "", fmt.Errorf("%w: encode request: %w", ErrMint, err)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, c.url("/api/tokens/mint"), body)
	if err != nil {
		return "", fmt.Errorf("%w: create request: %w", ErrMint, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: do request: %w", ErrMint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: unexpected status: %d", ErrMint, resp.StatusCode)
	}

	var result mintResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("%w: decode response: %w", ErrMint, err)
	}

	if result.TokenID == "" {
		return "", fmt.Errorf("%w: empty token id in response", ErrMint)
	}

	return result.TokenID, nil
}

type redeemRequest struct {
	Owner   string `json:"owner"`
	TokenID string `json:"token_id"`
}

type redeemResponse struct {
	Confirmed bool `json:"confirmed"`
}

// Redeem гасит токен tokenID, принадлежащий адресу ownerAddress.
func (c *Client) Redeem(ctx context.Context, ownerAddress, tokenID string) error {
	if c == nil || c.baseURL == "" {
		return fmt.Errorf("%w: ledger client not configured", ErrRedeem)
	}

	body, err := json.Marshal(redeemRequest{Owner: ownerAddress, TokenID: tokenID})
	if err != nil {
		return fmt.Errorf("%w: encode request: %w", ErrRedeem, err)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, c.url("/api/tokens/redeem"), body)
	if err != nil {
		return fmt.Errorf("%w: create request: %w", ErrRedeem, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: do request: %w", ErrRedeem, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: unexpected status: %d", ErrRedeem, resp.StatusCode)
	}

	var result redeemResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("%w: decode response: %w", ErrRedeem, err)
	}

	if !result.Confirmed {
		return fmt.Errorf("%w: redeem not confirmed", ErrRedeem)
	}

	return nil
}

type balanceResponse struct {
	Balance int64 `json:"balance"`
}

// Balance возвращает баланс адреса в реестре.
func (c *Client) Balance(ctx context.Context, address string) (int64, error) {
	if c == nil || c.baseURL == "" {
		return 0, fmt.Errorf("%w: ledger client not configured", ErrBalance)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, c.url("/api/accounts/"+address+"/balance"), nil)
	if err != nil {
		return 0, fmt.Errorf("%w: create request: %w", ErrBalance, err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: do request: %w", ErrBalance, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("%w: unexpected status: %d", ErrBalance, resp.StatusCode)
	}

	var result balanceResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return 0, fmt.Errorf("%w: decode response: %w", ErrBalance, err)
	}

	return result.Balance, nil
}
