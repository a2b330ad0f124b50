// A standalone mock of a participant identity hub's credential issuance
// endpoint for local development.
package main

import (
	"encoding/base64"
	"encoding/json"
	"log"
	"net/http"
	"os"
)

const (
	defaultPort   = "7081"
	defaultAPIKey = "identity-hub-secret-key"
)

type issuanceRequest struct {
	IssuerDID   string `json:"issuerDid"`
	HolderPID   string `json:"holderPid"`
	Credentials []struct {
		ID     string `json:"id,omitempty"`
		Type   string `json:"type"`
		Format string `json:"format"`
	} `json:"credentials"`
}

func main() {
	port := getenv("PORT", defaultPort)
	apiKey := getenv("MOCK_API_KEY", defaultAPIKey)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/identity/v1alpha/participants/{base64Did}/credentials/request",
		func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("X-Api-Key") != apiKey {
				writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid api key"})
				return
			}
			did, err := base64.StdEncoding.DecodeString(r.PathValue("base64Did"))
			if err != nil {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed did segment"})
				return
			}
			var req issuanceRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.Credentials) == 0 {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "at least one credential is required"})
				return
			}
			log.Printf("issuance accepted for %s: %d credential(s) from issuer %s",
				did, len(req.Credentials), req.IssuerDID)
			writeJSON(w, http.StatusCreated, map[string]string{"status": "accepted"})
		})
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	log.Printf("mock identity hub listening on :%s", port)
	log.Fatal(http.ListenAndServe(":"+port, mux))
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
