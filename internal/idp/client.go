// Package idp is the identity-provider admin API adapter. It manages the
// realm users, roles, and clients that back dataspace tenants and
// participants.
package idp

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/go-resty/resty/v2"

	"dataspace/internal/platform/config"
	dErrors "dataspace/pkg/domain-errors"
)

// Client talks to the identity-provider admin API. Every admin call
// carries a cached bearer token obtained with the password grant.
type Client struct {
	http   *resty.Client
	cfg    config.IdP
	tokens *tokenCache
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

// New builds an identity-provider admin client from configuration.
func New(cfg config.IdP, opts ...Option) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	c := &Client{
		http: resty.New().
			SetBaseURL(cfg.BaseURL).
			SetTimeout(timeout),
		cfg:    cfg,
		logger: slog.Default(),
	}
	c.tokens = newTokenCache(c.fetchToken)
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
}

func (c *Client) fetchToken(ctx context.Context) (string, int64, error) {
	var out tokenResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"grant_type": "password",
			"client_id":  "admin-cli",
			"username":   c.cfg.AdminUsername,
			"password":   c.cfg.AdminPassword,
		}).
		SetResult(&out).
		Post("/realms/master/protocol/openid-connect/token")
	if err != nil {
		return "", 0, dErrors.Wrap(err, dErrors.CodeIdentityAdmin, "admin token request failed")
	}
	if resp.IsError() {
		return "", 0, dErrors.New(dErrors.CodeIdentityAdmin,
			fmt.Sprintf("admin token request returned status %d", resp.StatusCode()))
	}
	if out.AccessToken == "" {
		return "", 0, dErrors.New(dErrors.CodeIdentityAdmin, "admin token response missing access_token")
	}
	return out.AccessToken, out.ExpiresIn, nil
}

// do sends an authenticated admin request, retrying once with a fresh
// token when the cached one is rejected.
func (c *Client) do(ctx context.Context, build func(*resty.Request) (*resty.Response, error)) (*resty.Response, error) {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, err
	}
	resp, err := build(c.http.R().SetContext(ctx).SetAuthToken(token))
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeIdentityAdmin, "identity admin request failed")
	}
	if resp.StatusCode() == http.StatusUnauthorized {
		token, err = c.tokens.ForceRefresh(ctx)
		if err != nil {
			return nil, err
		}
		resp, err = build(c.http.R().SetContext(ctx).SetAuthToken(token))
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeIdentityAdmin, "identity admin request failed")
		}
	}
	return resp, nil
}

type userRepresentation struct {
	ID          string                     `json:"id,omitempty"`
	Username    string                     `json:"username"`
	Enabled     bool                       `json:"enabled"`
	Attributes  map[string][]string        `json:"attributes,omitempty"`
	Credentials []credentialRepresentation `json:"credentials,omitempty"`
}

type credentialRepresentation struct {
	Type      string `json:"type"`
	Value     string `json:"value"`
	Temporary bool   `json:"temporary"`
}

type roleRepresentation struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// CreateUserWithClaim creates an enabled realm user carrying the tenant
// claim attribute and grants it the given realm role.
func (c *Client) CreateUserWithClaim(ctx context.Context, username, password, claimValue, roleName string) error {
	user := userRepresentation{
		Username: username,
		Enabled:  true,
		Attributes: map[string][]string{
			c.cfg.TenantClaim: {claimValue},
		},
		Credentials: []credentialRepresentation{{Type: "password", Value: password, Temporary: false}},
	}
	resp, err := c.do(ctx, func(r *resty.Request) (*resty.Response, error) {
		return r.SetBody(user).Post(fmt.Sprintf("/admin/realms/%s/users", c.cfg.RealmName))
	})
	if err != nil {
		return err
	}
	if resp.StatusCode() == http.StatusConflict {
		return dErrors.New(dErrors.CodeConflict, "identity provider user already exists")
	}
	if resp.IsError() {
		return dErrors.New(dErrors.CodeIdentityAdmin,
			fmt.Sprintf("create user returned status %d", resp.StatusCode()))
	}

	id, err := c.findUserID(ctx, username)
	if err != nil {
		return err
	}
	if err := c.grantRealmRole(ctx, id, roleName); err != nil {
		return err
	}
	c.logger.Info("identity provider user created", "username", username, "role", roleName)
	return nil
}

// DeleteUserByUsername removes a realm user. A missing user is not an
// error so deprovisioning stays idempotent.
func (c *Client) DeleteUserByUsername(ctx context.Context, username string) error {
	id, err := c.findUserID(ctx, username)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeNotFound) {
			c.logger.Info("identity provider user already absent", "username", username)
			return nil
		}
		return err
	}
	resp, err := c.do(ctx, func(r *resty.Request) (*resty.Response, error) {
		return r.Delete(fmt.Sprintf("/admin/realms/%s/users/%s", c.cfg.RealmName, id))
	})
	if err != nil {
		return err
	}
	if resp.IsError() && resp.StatusCode() != http.StatusNotFound {
		return dErrors.New(dErrors.CodeIdentityAdmin,
			fmt.Sprintf("delete user returned status %d", resp.StatusCode()))
	}
	c.logger.Info("identity provider user deleted", "username", username)
	return nil
}

func (c *Client) findUserID(ctx context.Context, username string) (string, error) {
	var users []userRepresentation
	resp, err := c.do(ctx, func(r *resty.Request) (*resty.Response, error) {
		return r.SetResult(&users).
			Get(fmt.Sprintf("/admin/realms/%s/users?username=%s&exact=true",
				c.cfg.RealmName, url.QueryEscape(username)))
	})
	if err != nil {
		return "", err
	}
	if resp.IsError() {
		return "", dErrors.New(dErrors.CodeIdentityAdmin,
			fmt.Sprintf("find user returned status %d", resp.StatusCode()))
	}
	for _, u := range users {
		if u.Username == username {
			return u.ID, nil
		}
	}
	return "", dErrors.New(dErrors.CodeNotFound, "identity provider user not found")
}

func (c *Client) grantRealmRole(ctx context.Context, userID, roleName string) error {
	var role roleRepresentation
	resp, err := c.do(ctx, func(r *resty.Request) (*resty.Response, error) {
		return r.SetResult(&role).
			Get(fmt.Sprintf("/admin/realms/%s/roles/%s", c.cfg.RealmName, url.PathEscape(roleName)))
	})
	if err != nil {
		return err
	}
	if resp.IsError() {
		return dErrors.New(dErrors.CodeIdentityAdmin,
			fmt.Sprintf("find role returned status %d", resp.StatusCode()))
	}

	resp, err = c.do(ctx, func(r *resty.Request) (*resty.Response, error) {
		return r.SetBody([]roleRepresentation{role}).
			Post(fmt.Sprintf("/admin/realms/%s/users/%s/role-mappings/realm", c.cfg.RealmName, userID))
	})
	if err != nil {
		return err
	}
	if resp.IsError() {
		return dErrors.New(dErrors.CodeIdentityAdmin,
			fmt.Sprintf("grant role returned status %d", resp.StatusCode()))
	}
	return nil
}
