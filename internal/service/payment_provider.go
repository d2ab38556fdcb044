package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"checkout-core/config"
	"checkout-core/internal/models"
	"checkout-core/internal/util"

	"go.uber.org/zap"
)

// PaymentProvider is the outbound contract to the payment gateway. Creating
// an intent is a network call with a bounded timeout; its failure is never
// fatal to order creation.
type PaymentProvider interface {
	CreatePaymentIntent(ctx context.Context, amount int64, currency, reference string) (string, error)
}

type providerClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewPaymentProvider creates an HTTP client for the payment gateway
func NewPaymentProvider(cfg config.PaymentConfig) PaymentProvider {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &providerClient{
		baseURL:    cfg.ProviderBaseURL,
		apiKey:     cfg.ProviderAPIKey,
		httpClient: &http.Client{Timeout: timeout},
		logger:     util.GetLogger(),
	}
}

type paymentIntentRequest struct {
	Amount    int64  `json:"amount"`
	Currency  string `json:"currency"`
	Reference string `json:"reference"`
}

type paymentIntentResponse struct {
	ID string `json:"id"`
}

// CreatePaymentIntent requests a provider-side order handle for the amount.
// Any transport or provider error maps to ErrProviderUnavailable so callers
// can degrade instead of failing the order.
func (p *providerClient) CreatePaymentIntent(ctx context.Context, amount int64, currency, reference string) (string, error) {
	body, err := json.Marshal(paymentIntentRequest{
		Amount:    amount,
		Currency:  currency,
		Reference: reference,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		p.baseURL+"/v1/payment_intents", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.SetBasicAuth(p.apiKey, "")
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		p.logger.Warn("Payment provider request failed",
			zap.String("reference", reference),
			zap.Error(err))
		return "", fmt.Errorf("%w: %v", models.ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: %v", models.ErrProviderUnavailable, err)
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		p.logger.Warn("Payment provider returned non-success status",
			zap.String("reference", reference),
			zap.Int("status", resp.StatusCode))
		return "", fmt.Errorf("%w: status %d", models.ErrProviderUnavailable, resp.StatusCode)
	}

	var intent paymentIntentResponse
	if err := json.Unmarshal(respBody, &intent); err != nil {
		return "", fmt.Errorf("%w: %v", models.ErrProviderUnavailable, err)
	}

	p.logger.Info("Payment intent created",
		zap.String("reference", reference),
		zap.String("provider_order_ref", intent.ID))
	return intent.ID, nil
}
