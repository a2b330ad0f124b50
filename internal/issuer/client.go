// Package issuer calls the per-participant identity hub to request
// verifiable credential issuance.
package issuer

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"dataspace/internal/credential/models"
	"dataspace/internal/platform/config"
	dErrors "dataspace/pkg/domain-errors"
)

// Client talks to participant identity hubs. Each participant runs its
// own hub, so the base URL is derived per request from the participant
// name.
type Client struct {
	http   *resty.Client
	cfg    config.Issuer
	hubURL func(participantName string) string
	logger *slog.Logger
}

// Option customizes the client.
type Option func(*Client)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithHubURL overrides how the per-participant hub URL is derived. Tests
// point it at a local server.
func WithHubURL(fn func(participantName string) string) Option {
	return func(c *Client) {
		if fn != nil {
			c.hubURL = fn
		}
	}
}

// New builds an identity hub client from configuration.
func New(cfg config.Issuer, opts ...Option) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	c := &Client{
		http: resty.New().
			SetTimeout(timeout).
			SetHeader("Content-Type", "application/json"),
		cfg: cfg,
		hubURL: func(participantName string) string {
			return fmt.Sprintf("http://identityhub.%s.svc.cluster.local:7081", participantName)
		},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type issuanceRequest struct {
	IssuerDID   string        `json:"issuerDid"`
	HolderPID   string        `json:"holderPid"`
	Credentials []models.Spec `json:"credentials"`
}

// RequestCredentials asks the participant's identity hub to issue the
// given credentials. The returned map carries the raw hub response for
// the audit payload.
func (c *Client) RequestCredentials(ctx context.Context, participantName, did string, specs []models.Spec) (map[string]string, error) {
	if len(specs) == 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "at least one credential must be requested")
	}

	base64DID := base64.StdEncoding.EncodeToString([]byte(did))
	url := c.hubURL(participantName) + strings.ReplaceAll(c.cfg.EndpointTemplate, "{base64Did}", base64DID)

	out := map[string]string{}
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("X-Api-Key", c.cfg.APIKey).
		SetBody(issuanceRequest{
			IssuerDID:   c.cfg.IssuerDID,
			HolderPID:   c.cfg.HolderPID,
			Credentials: specs,
		}).
		SetResult(&out).
		Post(url)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeExternalAPI, "credential issuance request failed")
	}
	if resp.IsError() {
		c.logger.Error("identity hub rejected issuance request",
			"participant", participantName, "status", resp.StatusCode(), "body", resp.String())
		return nil, dErrors.New(dErrors.CodeExternalAPI,
			fmt.Sprintf("identity hub returned status %d", resp.StatusCode()))
	}
	c.logger.Info("credential issuance requested",
		"participant", participantName, "credentials", len(specs))
	return out, nil
}
