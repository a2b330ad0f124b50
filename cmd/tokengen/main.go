// Package main generates bearer tokens for the dataspace API. The tokens
// use the dev signing key and will NOT work against a production deployment.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"dataspace/internal/visibility"
)

// devSigningKey matches config.go when JWT_SIGNING_KEY is not set.
const devSigningKey = "dev-secret-key-change-in-production"

func main() {
	roles := flag.String("roles", string(visibility.RoleAdmin),
		"comma-separated realm roles (ROLE_ADMIN, ROLE_ADMIN_TENANT, ROLE_USER_PARTICIPANT)")
	tenantName := flag.String("tenant", "", "tenantName claim (required for tenant and participant roles)")
	username := flag.String("username", "tokengen", "preferred_username claim")
	key := flag.String("key", devSigningKey, "HS256 signing key")
	ttl := flag.Duration("ttl", time.Hour, "token time-to-live")
	asJSON := flag.Bool("json", false, "output as JSON")
	flag.Parse()

	roleNames := make([]string, 0)
	for _, r := range strings.Split(*roles, ",") {
		if r = strings.TrimSpace(r); r != "" {
			roleNames = append(roleNames, r)
		}
	}

	now := time.Now()
	claims := jwt.MapClaims{
		"realm_access":       map[string]any{"roles": roleNames},
		"preferred_username": *username,
		"iat":                now.Unix(),
		"exp":                now.Add(*ttl).Unix(),
	}
	if *tenantName != "" {
		claims["tenantName"] = *tenantName
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(*key))
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to sign token:", err)
		os.Exit(1)
	}

	if *asJSON {
		out := map[string]any{
			"token":      token,
			"expires_in": ttl.String(),
			"claims":     claims,
			"usage":      fmt.Sprintf("curl -H 'Authorization: Bearer %s' http://localhost:8080/api/v1/tenants", token),
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(out)
		return
	}
	fmt.Println(token)
}
