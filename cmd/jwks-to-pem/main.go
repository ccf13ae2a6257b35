// Command jwks-to-pem prints the signing key of a Supabase project as a PEM public
// key, suitable for SUPABASE_JWT_SECRET when tokens are signed with ES256 or RS256.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

const localJWKSURL = "http://127.0.0.1:54321/auth/v1/.well-known/jwks.json"

func main() {
	url := flag.String("url", localJWKSURL, "JWKS endpoint")
	kid := flag.String("kid", "", "key ID to export (default: first signing key)")
	flag.Parse()

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Get(*url)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error fetching JWKS: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		fmt.Fprintf(os.Stderr, "Unexpected status fetching JWKS: %s\n", resp.Status)
		os.Exit(1)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading response: %v\n", err)
		os.Exit(1)
	}

	var jwks JWKS
	if err := json.Unmarshal(body, &jwks); err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing JWKS: %v\n", err)
		os.Exit(1)
	}

	key, err := jwks.signingKey(*kid)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	pemBytes, err := key.PEM()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error converting key: %v\n", err)
		os.Exit(1)
	}
	fmt.Print(string(pemBytes))
}
