// A standalone mock of the external provisioning API for local
// development. Provisions always succeed unless MOCK_FAIL is set.
package main

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"strconv"
	"time"
)

const (
	defaultPort      = "9090"
	defaultLatencyMs = "100"
)

type provisionRequest struct {
	ParticipantName string `json:"participantName"`
	DID             string `json:"did,omitempty"`
	KubeHost        string `json:"kubeHost"`
}

var (
	latency time.Duration
	fail    bool
)

func main() {
	port := getenv("PORT", defaultPort)
	ms, _ := strconv.Atoi(getenv("MOCK_LATENCY_MS", defaultLatencyMs))
	latency = time.Duration(ms) * time.Millisecond
	fail = os.Getenv("MOCK_FAIL") == "true"

	mux := http.NewServeMux()
	mux.HandleFunc("POST /provision", handleProvision)
	mux.HandleFunc("DELETE /provision", handleDeprovision)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	log.Printf("mock provisioner listening on :%s (latency=%s fail=%v)", port, latency, fail)
	log.Fatal(http.ListenAndServe(":"+port, mux))
}

func handleProvision(w http.ResponseWriter, r *http.Request) {
	time.Sleep(latency)
	var req provisionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ParticipantName == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "participantName is required"})
		return
	}
	if fail {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "simulated provisioning failure"})
		return
	}
	log.Printf("provisioned participant %q on %s", req.ParticipantName, req.KubeHost)
	writeJSON(w, http.StatusOK, map[string]string{
		"cluster":   "mock-cluster",
		"namespace": req.ParticipantName,
		"host":      fmt.Sprintf("%s.%s", req.ParticipantName, req.KubeHost),
	})
}

func handleDeprovision(w http.ResponseWriter, r *http.Request) {
	time.Sleep(latency)
	var req provisionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ParticipantName == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "participantName is required"})
		return
	}
	log.Printf("deprovisioned participant %q (did=%s)", req.ParticipantName, req.DID)
	writeJSON(w, http.StatusOK, map[string]string{"status": "deprovisioned"})
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
