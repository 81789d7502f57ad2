package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const defaultPayPalBaseURL = "https://api-m.paypal.com"

// PayPalGateway creates hosted checkout orders through the PayPal
// Orders v2 API. Authentication is a client-credentials token exchange
// performed per checkout with the business's own credentials.
type PayPalGateway struct {
	client *http.Client
}

func NewPayPalGateway(timeout time.Duration) *PayPalGateway {
	return &PayPalGateway{client: newHTTPClient(timeout)}
}

func (g *PayPalGateway) Name() string { return "paypal" }

type paypalTokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

type paypalOrderResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Links  []struct {
		Href string `json:"href"`
		Rel  string `json:"rel"`
	} `json:"links"`
}

func (g *PayPalGateway) baseURL(req CheckoutRequest) string {
	if req.Credentials.BaseURL != "" {
		return strings.TrimRight(req.Credentials.BaseURL, "/")
	}
	return defaultPayPalBaseURL
}

func (g *PayPalGateway) accessToken(ctx context.Context, req CheckoutRequest) (string, error) {
	status, body, err := sendWithRetry(ctx, g.client, func(ctx context.Context) (*http.Request, error) {
		r, err := http.NewRequestWithContext(ctx, http.MethodPost,
			g.baseURL(req)+"/v1/oauth2/token",
			strings.NewReader("grant_type=client_credentials"))
		if err != nil {
			return nil, err
		}
		r.SetBasicAuth(req.Credentials.ClientID, req.Credentials.ClientSecret)
		r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		return r, nil
	})
	if err != nil {
		return "", gatewayErr(g.Name(), "token request failed", err)
	}
	if status != http.StatusOK {
		return "", gatewayErr(g.Name(), fmt.Sprintf("token exchange rejected with HTTP %d, check client id/secret", status), nil)
	}

	var token paypalTokenResponse
	if err := json.Unmarshal(body, &token); err != nil || token.AccessToken == "" {
		return "", gatewayErr(g.Name(), "malformed token response", err)
	}
	return token.AccessToken, nil
}

func (g *PayPalGateway) CreateCheckout(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error) {
	token, err := g.accessToken(ctx, req)
	if err != nil {
		return nil, err
	}

	orderBody := map[string]any{
		"intent": "CAPTURE",
		"purchase_units": []map[string]any{
			{
				"custom_id":   req.Reference,
				"description": req.Description,
				"amount": map[string]string{
					"currency_code": req.Currency,
					"value":         fmt.Sprintf("%.2f", req.Amount),
				},
			},
		},
		"application_context": map[string]string{
			"return_url": req.SuccessURL,
			"cancel_url": req.FailureURL,
		},
	}
	payload, err := json.Marshal(orderBody)
	if err != nil {
		return nil, gatewayErr(g.Name(), "encode order", err)
	}

	status, body, err := sendWithRetry(ctx, g.client, func(ctx context.Context) (*http.Request, error) {
		r, err := http.NewRequestWithContext(ctx, http.MethodPost,
			g.baseURL(req)+"/v2/checkout/orders", bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		r.Header.Set("Content-Type", "application/json")
		r.Header.Set("Authorization", "Bearer "+token)
		return r, nil
	})
	if err != nil {
		return nil, gatewayErr(g.Name(), "order request failed", err)
	}
	if status != http.StatusCreated && status != http.StatusOK {
		return nil, gatewayErr(g.Name(), fmt.Sprintf("order creation rejected with HTTP %d: %s", status, truncate(body)), nil)
	}

	var order paypalOrderResponse
	if err := json.Unmarshal(body, &order); err != nil {
		return nil, gatewayErr(g.Name(), "malformed order response", err)
	}

	for _, link := range order.Links {
		if link.Rel == "approve" && link.Href != "" {
			return &CheckoutSession{
				Gateway:     g.Name(),
				Reference:   req.Reference,
				ProviderID:  order.ID,
				CheckoutURL: link.Href,
			}, nil
		}
	}
	return nil, gatewayErr(g.Name(), "order response carries no approve link", nil)
}

type paypalWebhookPayload struct {
	ID        string `json:"id"`
	EventType string `json:"event_type"`
	Resource  struct {
		CustomID string `json:"custom_id"`
		Status   string `json:"status"`
	} `json:"resource"`
}

// ParseWebhook maps PayPal capture events to the canonical outcome
// vocabulary. Unknown event types are unrecognized, not failures.
func (g *PayPalGateway) ParseWebhook(r *http.Request) (*WebhookResult, error) {
	var payload paypalWebhookPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("%w: invalid paypal payload: %v", ErrUnrecognizedWebhook, err)
	}
	if payload.Resource.CustomID == "" {
		return nil, fmt.Errorf("%w: paypal payload carries no custom_id", ErrUnrecognizedWebhook)
	}

	var outcome string
	switch payload.EventType {
	case "PAYMENT.CAPTURE.COMPLETED", "CHECKOUT.ORDER.COMPLETED":
		outcome = OutcomeSuccess
	case "PAYMENT.CAPTURE.DENIED", "PAYMENT.CAPTURE.DECLINED", "PAYMENT.CAPTURE.REFUNDED":
		outcome = OutcomeFailure
	default:
		return nil, fmt.Errorf("%w: unhandled paypal event type %q", ErrUnrecognizedWebhook, payload.EventType)
	}

	return &WebhookResult{
		Gateway:   g.Name(),
		EventID:   payload.ID,
		Reference: payload.Resource.CustomID,
		Outcome:   outcome,
	}, nil
}

func truncate(body []byte) string {
	const max = 256
	s := string(body)
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}
