package config

import (
	"os"
	"strings"
	"time"
)

// Config captures everything the server needs from the environment so main
// stays lean. External collaborator settings are grouped per adapter.
type Config struct {
	Addr        string
	Environment string

	// DatabaseURL selects the postgres stores; when empty the server runs
	// with in-memory stores (demo and test environments).
	DatabaseURL string

	// JWTSigningKey verifies inbound bearer tokens (HS256).
	JWTSigningKey string

	Provisioner Provisioner
	Issuer      Issuer
	IdP         IdP
}

// Provisioner configures the external provisioning API client.
type Provisioner struct {
	Endpoint    string
	KubeHost    string
	DIDTemplate string // contains the {participant} placeholder
	Timeout     time.Duration
}

// Issuer configures the credential issuance API client.
type Issuer struct {
	// EndpointTemplate contains the {base64Did} placeholder appended to the
	// per-participant identity hub URL.
	EndpointTemplate string
	APIKey           string
	IssuerDID        string
	HolderPID        string
	Timeout          time.Duration

	// MockCredentials short-circuits the external call and marks requested
	// credentials ISSUED immediately.
	MockCredentials bool
}

// IdP configures the identity-provider admin API client.
type IdP struct {
	BaseURL       string
	AdminUsername string
	AdminPassword string
	RealmName     string
	ClientID      string
	TenantClaim   string
	ClientRootURL string
	RedirectURIs  []string
	WebOrigins    []string
	Timeout       time.Duration
}

// FromEnv builds a Config from environment variables with dev defaults.
func FromEnv() Config {
	return Config{
		Addr:          envOr("DATASPACE_ADDR", ":8080"),
		Environment:   envOr("DATASPACE_ENV", "development"),
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		JWTSigningKey: envOr("JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
		Provisioner: Provisioner{
			Endpoint:    envOr("PROVISIONER_ENDPOINT", "http://localhost:9090/provision"),
			KubeHost:    envOr("PROVISIONER_KUBE_HOST", "dataspace.local"),
			DIDTemplate: envOr("PROVISIONER_DID_TEMPLATE", "did:web:{participant}.dataspace.local"),
			Timeout:     durationOr("PROVISIONER_TIMEOUT", 30*time.Second),
		},
		Issuer: Issuer{
			EndpointTemplate: envOr("ISSUER_ENDPOINT_TEMPLATE", "/api/identity/v1alpha/participants/{base64Did}/credentials/request"),
			APIKey:           os.Getenv("ISSUER_API_KEY"),
			IssuerDID:        envOr("ISSUER_DID", "did:web:issuer.dataspace.local"),
			HolderPID:        os.Getenv("ISSUER_HOLDER_PID"),
			Timeout:          durationOr("ISSUER_TIMEOUT", 30*time.Second),
			MockCredentials:  os.Getenv("ISSUER_MOCK_CREDENTIALS") == "true",
		},
		IdP: IdP{
			BaseURL:       envOr("IDP_BASE_URL", "http://localhost:8081"),
			AdminUsername: envOr("IDP_ADMIN_USERNAME", "admin"),
			AdminPassword: os.Getenv("IDP_ADMIN_PASSWORD"),
			RealmName:     envOr("IDP_REALM", "dataspace"),
			ClientID:      envOr("IDP_CLIENT_ID", "dataspace-portal"),
			TenantClaim:   envOr("IDP_TENANT_CLAIM", "tenantName"),
			ClientRootURL: os.Getenv("IDP_CLIENT_ROOT_URL"),
			RedirectURIs:  listOr("IDP_REDIRECT_URIS", []string{"*"}),
			WebOrigins:    listOr("IDP_WEB_ORIGINS", []string{"*"}),
			Timeout:       durationOr("IDP_TIMEOUT", 30*time.Second),
		},
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func durationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func listOr(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parts := strings.Split(v, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
