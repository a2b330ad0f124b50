package idp

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-resty/resty/v2"

	dErrors "dataspace/pkg/domain-errors"
)

type realmRepresentation struct {
	Realm   string `json:"realm"`
	Enabled bool   `json:"enabled"`
}

type clientRepresentation struct {
	ClientID                  string   `json:"clientId"`
	Enabled                   bool     `json:"enabled"`
	PublicClient              bool     `json:"publicClient"`
	StandardFlowEnabled       bool     `json:"standardFlowEnabled"`
	DirectAccessGrantsEnabled bool     `json:"directAccessGrantsEnabled"`
	RootURL                   string   `json:"rootUrl,omitempty"`
	RedirectURIs              []string `json:"redirectUris,omitempty"`
	WebOrigins                []string `json:"webOrigins,omitempty"`
}

type protocolMapperRepresentation struct {
	Name           string            `json:"name"`
	Protocol       string            `json:"protocol"`
	ProtocolMapper string            `json:"protocolMapper"`
	Config         map[string]string `json:"config"`
}

// Bootstrap provisions the realm, its roles, the OIDC client, and the
// tenant claim mapper. Every step tolerates already existing resources so
// it can run on each startup.
func (c *Client) Bootstrap(ctx context.Context, clientID string, roleNames []string) error {
	if err := c.EnsureRealm(ctx); err != nil {
		return err
	}
	for _, role := range roleNames {
		if err := c.EnsureRealmRole(ctx, role); err != nil {
			return err
		}
	}
	if err := c.EnsureClient(ctx, clientID); err != nil {
		return err
	}
	clientUUID, err := c.findClientUUID(ctx, clientID)
	if err != nil {
		return err
	}
	return c.EnsureTenantClaimMapper(ctx, clientUUID)
}

// EnsureRealm creates the configured realm. An already existing realm is
// not an error so startup stays idempotent.
func (c *Client) EnsureRealm(ctx context.Context) error {
	resp, err := c.do(ctx, func(r *resty.Request) (*resty.Response, error) {
		return r.SetBody(realmRepresentation{Realm: c.cfg.RealmName, Enabled: true}).
			Post("/admin/realms")
	})
	if err != nil {
		return err
	}
	if resp.IsError() && resp.StatusCode() != http.StatusConflict {
		return dErrors.New(dErrors.CodeIdentityAdmin,
			fmt.Sprintf("create realm returned status %d", resp.StatusCode()))
	}
	return nil
}

// EnsureClient creates a public OIDC client in the realm with the
// configured redirect URIs and web origins.
func (c *Client) EnsureClient(ctx context.Context, clientID string) error {
	body := clientRepresentation{
		ClientID:                  clientID,
		Enabled:                   true,
		PublicClient:              true,
		StandardFlowEnabled:       true,
		DirectAccessGrantsEnabled: true,
		RootURL:                   c.cfg.ClientRootURL,
		RedirectURIs:              c.cfg.RedirectURIs,
		WebOrigins:                c.cfg.WebOrigins,
	}
	resp, err := c.do(ctx, func(r *resty.Request) (*resty.Response, error) {
		return r.SetBody(body).Post(fmt.Sprintf("/admin/realms/%s/clients", c.cfg.RealmName))
	})
	if err != nil {
		return err
	}
	if resp.IsError() && resp.StatusCode() != http.StatusConflict {
		return dErrors.New(dErrors.CodeIdentityAdmin,
			fmt.Sprintf("create client returned status %d", resp.StatusCode()))
	}
	return nil
}

// EnsureRealmRole creates a realm role if it does not exist yet.
func (c *Client) EnsureRealmRole(ctx context.Context, roleName string) error {
	resp, err := c.do(ctx, func(r *resty.Request) (*resty.Response, error) {
		return r.SetBody(map[string]string{"name": roleName}).
			Post(fmt.Sprintf("/admin/realms/%s/roles", c.cfg.RealmName))
	})
	if err != nil {
		return err
	}
	if resp.IsError() && resp.StatusCode() != http.StatusConflict {
		return dErrors.New(dErrors.CodeIdentityAdmin,
			fmt.Sprintf("create role returned status %d", resp.StatusCode()))
	}
	return nil
}

func (c *Client) findClientUUID(ctx context.Context, clientID string) (string, error) {
	var clients []struct {
		ID       string `json:"id"`
		ClientID string `json:"clientId"`
	}
	resp, err := c.do(ctx, func(r *resty.Request) (*resty.Response, error) {
		return r.SetQueryParam("clientId", clientID).
			SetResult(&clients).
			Get(fmt.Sprintf("/admin/realms/%s/clients", c.cfg.RealmName))
	})
	if err != nil {
		return "", err
	}
	if resp.IsError() {
		return "", dErrors.New(dErrors.CodeIdentityAdmin,
			fmt.Sprintf("find client returned status %d", resp.StatusCode()))
	}
	for _, cl := range clients {
		if cl.ClientID == clientID {
			return cl.ID, nil
		}
	}
	return "", dErrors.New(dErrors.CodeIdentityAdmin, "oidc client not found after create")
}

// EnsureTenantClaimMapper adds a protocol mapper that copies the tenant
// attribute into access tokens under the configured claim name.
func (c *Client) EnsureTenantClaimMapper(ctx context.Context, clientUUID string) error {
	mapper := protocolMapperRepresentation{
		Name:           c.cfg.TenantClaim,
		Protocol:       "openid-connect",
		ProtocolMapper: "oidc-usermodel-attribute-mapper",
		Config: map[string]string{
			"user.attribute":       c.cfg.TenantClaim,
			"claim.name":           c.cfg.TenantClaim,
			"jsonType.label":       "String",
			"access.token.claim":   "true",
			"id.token.claim":       "true",
			"userinfo.token.claim": "true",
		},
	}
	resp, err := c.do(ctx, func(r *resty.Request) (*resty.Response, error) {
		return r.SetBody(mapper).
			Post(fmt.Sprintf("/admin/realms/%s/clients/%s/protocol-mappers/models",
				c.cfg.RealmName, clientUUID))
	})
	if err != nil {
		return err
	}
	if resp.IsError() && resp.StatusCode() != http.StatusConflict {
		return dErrors.New(dErrors.CodeIdentityAdmin,
			fmt.Sprintf("create protocol mapper returned status %d", resp.StatusCode()))
	}
	return nil
}
