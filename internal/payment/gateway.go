// Package payment abstracts hosted-checkout providers behind one
// Gateway interface and reconciles their asynchronous callbacks.
package payment

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"

	"slotify/internal/models"
)

const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

var (
	// ErrUnknownGateway is returned for an unregistered discriminator.
	ErrUnknownGateway = errors.New("unknown payment gateway")

	// ErrUnrecognizedWebhook marks a callback that does not authenticate
	// to a known booking. Fatal to that callback only.
	ErrUnrecognizedWebhook = errors.New("webhook does not match a known booking")
)

// GatewayError wraps any checkout failure - non-2xx status, malformed
// response, missing checkout URL - with a human-readable cause. These
// are deterministic configuration or credential problems, surfaced to
// the caller as actionable 4xx, never as an opaque 5xx.
type GatewayError struct {
	Gateway string
	Reason  string
	Err     error
}

func (e *GatewayError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s gateway: %s: %v", e.Gateway, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s gateway: %s", e.Gateway, e.Reason)
}

func (e *GatewayError) Unwrap() error { return e.Err }

func gatewayErr(gateway, reason string, err error) *GatewayError {
	return &GatewayError{Gateway: gateway, Reason: reason, Err: err}
}

// CheckoutRequest carries everything a variant needs to open a hosted
// checkout session. Credentials are per-business, fetched immediately
// before the call and never logged.
type CheckoutRequest struct {
	Reference     string // correlation id embedded in the session
	Amount        float64
	Currency      string
	Description   string
	CustomerName  string
	CustomerEmail string
	CustomerPhone string
	SuccessURL    string
	FailureURL    string
	NotifyURL     string
	Credentials   models.GatewayCredentials
}

// CheckoutSession is the ephemeral result of opening a hosted checkout.
// Nothing beyond the reference is persisted.
type CheckoutSession struct {
	Gateway     string
	Reference   string
	ProviderID  string
	CheckoutURL string
}

// WebhookResult is a gateway callback normalized to the canonical
// outcome vocabulary.
type WebhookResult struct {
	Gateway   string
	EventID   string
	Reference string
	Outcome   string // success | failure
}

// Gateway is one checkout provider variant. Adding a provider means
// adding a variant, not editing a dispatcher.
type Gateway interface {
	Name() string
	CreateCheckout(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error)
	ParseWebhook(r *http.Request) (*WebhookResult, error)
}

// Registry dispatches on the gateway discriminator.
type Registry struct {
	gateways map[string]Gateway
}

func NewRegistry(gateways ...Gateway) *Registry {
	r := &Registry{gateways: make(map[string]Gateway, len(gateways))}
	for _, g := range gateways {
		r.gateways[g.Name()] = g
	}
	return r
}

func (r *Registry) Get(name string) (Gateway, error) {
	g, ok := r.gateways[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownGateway, name)
	}
	return g, nil
}

func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.gateways))
	for name := range r.gateways {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
