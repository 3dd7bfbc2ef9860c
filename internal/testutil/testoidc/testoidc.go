// Package testoidc runs an in-process OIDC provider that publishes a
// discovery document and a JWKS and issues RS256 tokens for any subject.
package testoidc

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const keyID = "askbox-test-1"

// Provider is a running mock identity provider.
type Provider struct {
	server *httptest.Server
	key    *rsa.PrivateKey
}

// Start starts the provider and stops it when tb finishes.
func Start(tb testing.TB) *Provider {
	tb.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		tb.Fatalf("generate RSA key: %v", err)
	}
	p := &Provider{key: key}

	mux := http.NewServeMux()
	mux.HandleFunc("/.well-known/openid-configuration", p.handleDiscovery)
	mux.HandleFunc("/jwks", p.handleJWKS)
	p.server = httptest.NewServer(mux)
	tb.Cleanup(p.server.Close)
	return p
}

// IssuerURL is the issuer claim and discovery base of issued tokens.
func (p *Provider) IssuerURL() string {
	return p.server.URL
}

// IssueToken signs a token for subject that expires after ttl.
func (p *Provider) IssueToken(subject string, ttl time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, jwt.MapClaims{
		"sub":                subject,
		"preferred_username": subject,
		"iss":                p.server.URL,
		"iat":                now.Unix(),
		"exp":                now.Add(ttl).Unix(),
	})
	token.Header["kid"] = keyID
	return token.SignedString(p.key)
}

func (p *Provider) handleDiscovery(w http.ResponseWriter, _ *http.Request) {
	base := p.server.URL
	writeJSON(w, map[string]any{
		"issuer":                                base,
		"authorization_endpoint":                base + "/auth",
		"token_endpoint":                        base + "/token",
		"jwks_uri":                              base + "/jwks",
		"response_types_supported":              []string{"code"},
		"subject_types_supported":               []string{"public"},
		"id_token_signing_alg_values_supported": []string{"RS256"},
	})
}

func (p *Provider) handleJWKS(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, map[string]any{"keys": []map[string]any{p.publicJWK()}})
}

func (p *Provider) publicJWK() map[string]any {
	pub := &p.key.PublicKey

	// E is encoded as minimal big-endian bytes.
	eBuf := make([]byte, 4)
	binary.BigEndian.PutUint32(eBuf, uint32(pub.E))
	for len(eBuf) > 1 && eBuf[0] == 0 {
		eBuf = eBuf[1:]
	}

	return map[string]any{
		"kty": "RSA",
		"alg": "RS256",
		"use": "sig",
		"kid": keyID,
		"n":   base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
		"e":   base64.RawURLEncoding.EncodeToString(eBuf),
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
