package provisioner

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"dataspace/internal/platform/config"
	dErrors "dataspace/pkg/domain-errors"
)

func testClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(config.Provisioner{
		Endpoint:    srv.URL,
		KubeHost:    "dataspace.local",
		DIDTemplate: "did:web:{participant}.dataspace.local",
	})
}

func TestProvisionSendsParticipantAndHost(t *testing.T) {
	var got provisionRequest
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Fatalf("unexpected method %s", r.Method)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"message": "ok"})
	})

	out, err := c.Provision(context.Background(), "acmewidgets")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.ParticipantName != "acmewidgets" || got.KubeHost != "dataspace.local" {
		t.Fatalf("unexpected request body: %+v", got)
	}
	if out["message"] != "ok" {
		t.Fatalf("unexpected response: %v", out)
	}
}

func TestProvisionMapsServerErrors(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	})

	_, err := c.Provision(context.Background(), "acmewidgets")
	if !dErrors.HasCode(err, dErrors.CodeExternalAPI) {
		t.Fatalf("expected external API error, got %v", err)
	}
}

func TestProvisionMapsNetworkErrors(t *testing.T) {
	c := New(config.Provisioner{Endpoint: "http://127.0.0.1:1"})
	_, err := c.Provision(context.Background(), "acmewidgets")
	if !dErrors.HasCode(err, dErrors.CodeExternalAPI) {
		t.Fatalf("expected external API error, got %v", err)
	}
}

func TestDeprovisionSendsDID(t *testing.T) {
	var got provisionRequest
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete {
			t.Fatalf("unexpected method %s", r.Method)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"message": "removed"})
	})

	if _, err := c.Deprovision(context.Background(), "acmewidgets", "did:web:acmewidgets.dataspace.local"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.DID != "did:web:acmewidgets.dataspace.local" {
		t.Fatalf("expected did in body, got %+v", got)
	}
}

func TestBuildDIDAndHost(t *testing.T) {
	c := New(config.Provisioner{
		KubeHost:    "dataspace.local",
		DIDTemplate: "did:web:{participant}.dataspace.local",
	})
	if got := c.BuildDID("acmewidgets"); got != "did:web:acmewidgets.dataspace.local" {
		t.Fatalf("unexpected did: %s", got)
	}
	if got := c.BuildHost("acmewidgets"); got != "acmewidgets.dataspace.local" {
		t.Fatalf("unexpected host: %s", got)
	}
}
