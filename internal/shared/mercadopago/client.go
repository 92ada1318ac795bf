package mercadopago

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// APIError representa uma resposta não-2xx da API
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("mercadopago http %d: %s", e.StatusCode, e.Message)
}

type Client struct {
	BaseURL     string
	AccessToken string
	HTTP        *http.Client
}

func New(baseURL, accessToken string) *Client {
	return &Client{
		BaseURL:     strings.TrimSuffix(baseURL, "/"),
		AccessToken: accessToken,
		HTTP:        &http.Client{Timeout: 10 * time.Second},
	}
}

// CreatePreference abre uma sessão de checkout hospedada.
// idempotencyKey deve ser o id da aposta: reenvios devolvem a mesma preferência.
func (c *Client) CreatePreference(ctx context.Context, req PreferenceRequest, idempotencyKey string) (Preference, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return Preference{}, fmt.Errorf("encode preference: %w", err)
	}

	var out Preference
	headers := map[string]string{"X-Idempotency-Key": idempotencyKey}
	if err := c.do(ctx, http.MethodPost, "/checkout/preferences", bytes.NewReader(body), headers, &out); err != nil {
		return Preference{}, err
	}
	return out, nil
}

// GetPayment consulta o status real de um pagamento
func (c *Client) GetPayment(ctx context.Context, id string) (Payment, error) {
	var out Payment
	if err := c.do(ctx, http.MethodGet, "/v1/payments/"+url.PathEscape(id), nil, nil, &out); err != nil {
		return Payment{}, err
	}
	return out, nil
}

func (c *Client) GetMerchantOrder(ctx context.Context, id string) (MerchantOrder, error) {
	var out MerchantOrder
	if err := c.do(ctx, http.MethodGet, "/merchant_orders/"+url.PathEscape(id), nil, nil, &out); err != nil {
		return MerchantOrder{}, err
	}
	return out, nil
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, headers map[string]string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.AccessToken)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		if v != "" {
			req.Header.Set(k, v)
		}
	}

	res, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("mercadopago %s %s: %w", method, path, err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(res.Body, 4<<10))
		return &APIError{StatusCode: res.StatusCode, Message: strings.TrimSpace(string(msg))}
	}

	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("decode mercadopago response: %w", err)
	}
	return nil
}
