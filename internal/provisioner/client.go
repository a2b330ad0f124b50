// Package provisioner calls the external dataspace provisioning API that
// creates and tears down the per-participant runtime.
package provisioner

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"dataspace/internal/platform/config"
	dErrors "dataspace/pkg/domain-errors"
)

// Client talks to the provisioning API.
type Client struct {
	http        *resty.Client
	kubeHost    string
	didTemplate string
	logger      *slog.Logger
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

// New builds a provisioning API client from configuration.
func New(cfg config.Provisioner, opts ...Option) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	c := &Client{
		http: resty.New().
			SetBaseURL(cfg.Endpoint).
			SetTimeout(timeout).
			SetHeader("Content-Type", "application/json").
			SetHeader("Accept", "application/json"),
		kubeHost:    cfg.KubeHost,
		didTemplate: cfg.DIDTemplate,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type provisionRequest struct {
	ParticipantName string `json:"participantName"`
	DID             string `json:"did,omitempty"`
	KubeHost        string `json:"kubeHost"`
}

// BuildDID derives the participant decentralized identifier from the
// configured template.
func (c *Client) BuildDID(participantName string) string {
	return strings.ReplaceAll(c.didTemplate, "{participant}", participantName)
}

// BuildHost returns the host the participant runtime is reachable on.
func (c *Client) BuildHost(participantName string) string {
	return fmt.Sprintf("%s.%s", participantName, c.kubeHost)
}

// Provision requests a new participant runtime. The returned map carries
// the raw provisioner response for the audit payload.
func (c *Client) Provision(ctx context.Context, participantName string) (map[string]string, error) {
	out := map[string]string{}
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(provisionRequest{ParticipantName: participantName, KubeHost: c.kubeHost}).
		SetResult(&out).
		Post("")
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeExternalAPI, "provisioning request failed")
	}
	if resp.IsError() {
		c.logger.Error("provisioner rejected request",
			"participant", participantName, "status", resp.StatusCode(), "body", resp.String())
		return nil, dErrors.New(dErrors.CodeExternalAPI,
			fmt.Sprintf("provisioner returned status %d", resp.StatusCode()))
	}
	c.logger.Info("participant runtime provisioned", "participant", participantName)
	return out, nil
}

// Deprovision tears a participant runtime down.
func (c *Client) Deprovision(ctx context.Context, participantName, did string) (map[string]string, error) {
	out := map[string]string{}
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(provisionRequest{ParticipantName: participantName, DID: did, KubeHost: c.kubeHost}).
		SetResult(&out).
		Delete("")
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeExternalAPI, "deprovisioning request failed")
	}
	if resp.IsError() {
		c.logger.Error("provisioner rejected deprovision request",
			"participant", participantName, "status", resp.StatusCode(), "body", resp.String())
		return nil, dErrors.New(dErrors.CodeExternalAPI,
			fmt.Sprintf("provisioner returned status %d", resp.StatusCode()))
	}
	c.logger.Info("participant runtime deprovisioned", "participant", participantName)
	return out, nil
}
