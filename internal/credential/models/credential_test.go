package models

import (
	"testing"
	"time"
)

func newTestCredential() *Credential {
	return New("cred-ext-1", "req-1", "did:web:issuer", "holder-1", 7,
		"MembershipCredential", "VC1_0_JWT", StatusRequested, time.Now())
}

func TestComputeHashDeterministic(t *testing.T) {
	a := newTestCredential()
	b := newTestCredential()

	if a.Hash == "" {
		t.Fatalf("expected hash to be populated at construction")
	}
	if a.Hash != b.Hash {
		t.Fatalf("identical inputs produced different hashes: %s vs %s", a.Hash, b.Hash)
	}
	if got := a.ComputeHash(); got != a.Hash {
		t.Fatalf("recomputed hash differs: %s vs %s", got, a.Hash)
	}
	if len(a.Hash) != 64 {
		t.Fatalf("expected 64 hex chars, got %d", len(a.Hash))
	}
}

func TestComputeHashSensitiveToEveryField(t *testing.T) {
	base := newTestCredential()

	mutations := map[string]func(*Credential){
		"external_id": func(c *Credential) { c.ExternalID = "cred-ext-2" },
		"request_id":  func(c *Credential) { c.RequestID = "req-2" },
		"issuer_did":  func(c *Credential) { c.IssuerDID = "did:web:other" },
		"holder_pid":  func(c *Credential) { c.HolderPID = "holder-2" },
		"type":        func(c *Credential) { c.CredentialType = "DataProcessorCredential" },
		"format":      func(c *Credential) { c.Format = "VC2_0_JOSE" },
	}

	for field, mutate := range mutations {
		c := newTestCredential()
		mutate(c)
		if c.ComputeHash() == base.Hash {
			t.Fatalf("changing %s did not change the hash", field)
		}
	}
}
