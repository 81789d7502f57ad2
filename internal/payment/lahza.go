package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"
)

const defaultLahzaBaseURL = "https://api.lahza.io"

// LahzaGateway initializes hosted payment pages through the Lahza
// transaction API. Unlike PayPal there is no token-exchange step: the
// secret key authenticates each call directly.
type LahzaGateway struct {
	client *http.Client
}

func NewLahzaGateway(timeout time.Duration) *LahzaGateway {
	return &LahzaGateway{client: newHTTPClient(timeout)}
}

func (g *LahzaGateway) Name() string { return "lahza" }

func (g *LahzaGateway) baseURL(req CheckoutRequest) string {
	if req.Credentials.BaseURL != "" {
		return strings.TrimRight(req.Credentials.BaseURL, "/")
	}
	return defaultLahzaBaseURL
}

type lahzaInitResponse struct {
	Status  bool   `json:"status"`
	Message string `json:"message"`
	Data    struct {
		AuthorizationURL string `json:"authorization_url"`
		AccessCode       string `json:"access_code"`
		Reference        string `json:"reference"`
	} `json:"data"`
}

func (g *LahzaGateway) CreateCheckout(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error) {
	// Amount is sent in minor units (cents).
	initBody := map[string]any{
		"amount":       int64(math.Round(req.Amount * 100)),
		"currency":     req.Currency,
		"email":        req.CustomerEmail,
		"mobile":       req.CustomerPhone,
		"reference":    req.Reference,
		"callback_url": req.SuccessURL,
		"webhook_url":  req.NotifyURL,
		"metadata": map[string]string{
			"description": req.Description,
			"customer":    req.CustomerName,
		},
	}
	payload, err := json.Marshal(initBody)
	if err != nil {
		return nil, gatewayErr(g.Name(), "encode transaction", err)
	}

	status, body, err := sendWithRetry(ctx, g.client, func(ctx context.Context) (*http.Request, error) {
		r, err := http.NewRequestWithContext(ctx, http.MethodPost,
			g.baseURL(req)+"/transaction/initialize", bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		r.Header.Set("Content-Type", "application/json")
		r.Header.Set("Authorization", "Bearer "+req.Credentials.ClientSecret)
		return r, nil
	})
	if err != nil {
		return nil, gatewayErr(g.Name(), "transaction request failed", err)
	}
	if status != http.StatusOK {
		return nil, gatewayErr(g.Name(), fmt.Sprintf("transaction rejected with HTTP %d: %s", status, truncate(body)), nil)
	}

	var initResp lahzaInitResponse
	if err := json.Unmarshal(body, &initResp); err != nil {
		return nil, gatewayErr(g.Name(), "malformed transaction response", err)
	}
	if !initResp.Status {
		return nil, gatewayErr(g.Name(), fmt.Sprintf("transaction declined: %s", initResp.Message), nil)
	}
	if initResp.Data.AuthorizationURL == "" {
		return nil, gatewayErr(g.Name(), "transaction response carries no authorization_url", nil)
	}

	return &CheckoutSession{
		Gateway:     g.Name(),
		Reference:   req.Reference,
		ProviderID:  initResp.Data.AccessCode,
		CheckoutURL: initResp.Data.AuthorizationURL,
	}, nil
}

type lahzaWebhookPayload struct {
	Event string `json:"event"`
	Data  struct {
		ID        int64  `json:"id"`
		Reference string `json:"reference"`
		Status    string `json:"status"`
	} `json:"data"`
}

func (g *LahzaGateway) ParseWebhook(r *http.Request) (*WebhookResult, error) {
	var payload lahzaWebhookPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("%w: invalid lahza payload: %v", ErrUnrecognizedWebhook, err)
	}
	if payload.Data.Reference == "" {
		return nil, fmt.Errorf("%w: lahza payload carries no reference", ErrUnrecognizedWebhook)
	}

	var outcome string
	switch payload.Event {
	case "charge.success":
		outcome = OutcomeSuccess
	case "charge.failed", "charge.abandoned":
		outcome = OutcomeFailure
	default:
		return nil, fmt.Errorf("%w: unhandled lahza event %q", ErrUnrecognizedWebhook, payload.Event)
	}

	return &WebhookResult{
		Gateway:   g.Name(),
		EventID:   fmt.Sprintf("%d", payload.Data.ID),
		Reference: payload.Data.Reference,
		Outcome:   outcome,
	}, nil
}
